package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type repository struct {
	store *Store
	db    *sql.DB
}

// NewRepository создаёт PostgreSQL-реализацию репозитория CRM.
func NewRepository(store *Store) domain.Repository {
	return &repository{store: store, db: store.DB()}
}

const customerColumns = `c.id, c.name, c.email, c.phone, c.created_at`

var customerOrderColumns = map[string]string{
	domain.FieldID:        "c.id",
	domain.FieldName:      "c.name",
	domain.FieldEmail:     "c.email",
	domain.FieldCreatedAt: "c.created_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// FindCustomerByEmail ищет по LOWER(email).
func (r *repository) FindCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers c WHERE LOWER(c.email) = LOWER($1)`,
		strings.TrimSpace(email),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer by email: %w", err)
	}
	return c, nil
}

func (r *repository) FindCustomerByID(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers c WHERE c.id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer by id: %w", err)
	}
	return c, nil
}

// CreateCustomer опирается на уникальный индекс LOWER(email): из двух конкурентных
// вставок одного email вторая получает 23505 и ErrEmailAlreadyExists.
func (r *repository) CreateCustomer(ctx context.Context, c domain.NewCustomer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer := domain.Customer{
		ID:        c.ID,
		Name:      c.Name,
		Email:     strings.ToLower(c.Email),
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt.UTC(),
	}

	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, email, phone, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.CreatedAt); err != nil {
			if isEmailConflict(err) {
				return domain.ErrEmailAlreadyExists
			}
			return fmt.Errorf("insert customer: %w", err)
		}
		_, err := insertOutboxMessages(ctx, tx, c.Outbox)
		return err
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (r *repository) ListCustomers(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	w.addContains("c.name", q.NameContains)
	w.addContains("c.email", q.EmailContains)
	if q.PhonePrefix != "" {
		w.add("c.phone LIKE ?", escapeLike(q.PhonePrefix)+"%")
	}
	w.addTimeRange("c.created_at", q.Created)

	ordering, ok := q.Ordering()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers c`+w.sql()+orderClause(ordering, ok, customerOrderColumns, "c.seq"),
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	return customers, nil
}

// Summary считает агрегаты отчёта одним запросом.
func (r *repository) Summary(ctx context.Context) (domain.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		summary domain.Summary
		revenue decimal.Decimal
	)
	if err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM orders),
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders)
	`).Scan(&summary.Customers, &summary.Orders, &revenue); err != nil {
		return domain.Summary{}, fmt.Errorf("summary query: %w", err)
	}
	summary.Revenue = revenue

	return summary, nil
}

// OrdersSince возвращает заказы с датой не раньше since.
func (r *repository) OrdersSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	return r.ListOrders(ctx, domain.OrderQuery{OrderDate: domain.TimeRange{From: since}})
}

var _ domain.Repository = (*repository)(nil)
