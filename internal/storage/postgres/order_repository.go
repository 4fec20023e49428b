package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

var orderOrderColumns = map[string]string{
	domain.FieldID:          "o.id",
	domain.FieldTotalAmount: "o.total_amount",
	domain.FieldOrderDate:   "o.order_date",
	domain.FieldCreatedAt:   "o.created_at",
}

// CreateOrderAtomic пишет заголовок заказа, его позиции и outbox в одной транзакции.
// Клиент блокируется FOR KEY SHARE, чтобы ссылка не исчезла до коммита.
func (r *repository) CreateOrderAtomic(ctx context.Context, o domain.NewOrder) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var order domain.Order
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		customer, err := scanCustomer(tx.QueryRowContext(ctx,
			`SELECT `+customerColumns+` FROM customers c WHERE c.id = $1 FOR KEY SHARE`, o.CustomerID,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrCustomerNotFound
			}
			return fmt.Errorf("lock customer: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, total_amount, order_date, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, o.ID, o.CustomerID, o.TotalAmount, o.OrderDate.UTC(), o.CreatedAt.UTC()); err != nil {
			return mapOrderWriteError(err, "insert order")
		}

		for position, productID := range o.ProductIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_products (order_id, position, product_id)
				VALUES ($1,$2,$3)
			`, o.ID, position, productID); err != nil {
				return mapOrderWriteError(err, "insert order product")
			}
		}

		if _, err := insertOutboxMessages(ctx, tx, o.Outbox); err != nil {
			return err
		}

		products, err := loadOrderProducts(ctx, tx, []string{o.ID})
		if err != nil {
			return err
		}

		order = domain.Order{
			ID:          o.ID,
			CustomerID:  o.CustomerID,
			Customer:    customer,
			Products:    products[o.ID],
			TotalAmount: o.TotalAmount,
			OrderDate:   o.OrderDate.UTC(),
			CreatedAt:   o.CreatedAt.UTC(),
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// mapOrderWriteError переводит нарушение внешнего ключа в доменную ошибку ссылки.
func mapOrderWriteError(err error, op string) error {
	code, constraint := pgErrorCode(err)
	if code == codeForeignKeyViolation {
		switch constraint {
		case "orders_customer_id_fkey":
			return domain.ErrCustomerNotFound
		case "order_products_product_id_fkey":
			return domain.ErrProductNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *repository) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	w.addContains("c.name", q.CustomerNameContains)
	w.addDecimalRange("o.total_amount", q.Total)
	w.addTimeRange("o.order_date", q.OrderDate)
	if q.ProductID != "" || q.ProductNameContains != "" {
		conds := []string{"op.order_id = o.id"}
		if q.ProductID != "" {
			conds = append(conds, "op.product_id = "+w.bind(q.ProductID))
		}
		if q.ProductNameContains != "" {
			conds = append(conds, "p.name ILIKE "+w.bind(containsPattern(q.ProductNameContains)))
		}
		w.conds = append(w.conds,
			`EXISTS (SELECT 1 FROM order_products op JOIN products p ON p.id = op.product_id WHERE `+
				strings.Join(conds, " AND ")+`)`)
	}

	ordering, ok := q.Ordering()
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.total_amount, o.order_date, o.created_at, `+customerColumns+`
		FROM orders o
		JOIN customers c ON c.id = o.customer_id`+
		w.sql()+orderClause(ordering, ok, orderOrderColumns, "o.seq"),
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.TotalAmount, &o.OrderDate, &o.CreatedAt,
			&o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o.CustomerID = o.Customer.ID
		o.OrderDate = o.OrderDate.UTC()
		o.CreatedAt = o.CreatedAt.UTC()
		o.Customer.CreatedAt = o.Customer.CreatedAt.UTC()
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	products, err := loadOrderProducts(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Products = products[orders[i].ID]
	}

	return orders, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadOrderProducts загружает позиции всех заказов одним запросом, сохраняя порядок позиций.
func loadOrderProducts(ctx context.Context, db querier, orderIDs []string) (map[string][]domain.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT op.order_id, `+productColumns+`
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = ANY($1)
		ORDER BY op.order_id, op.position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.Product, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			p       domain.Product
		)
		if err := rows.Scan(&orderID, &p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order product: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result[orderID] = append(result[orderID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order products: %w", err)
	}

	return result, nil
}
