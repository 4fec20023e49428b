package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const productColumns = `p.id, p.name, p.price, p.stock, p.created_at`

var productOrderColumns = map[string]string{
	domain.FieldID:        "p.id",
	domain.FieldName:      "p.name",
	domain.FieldPrice:     "p.price",
	domain.FieldStock:     "p.stock",
	domain.FieldCreatedAt: "p.created_at",
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *repository) CreateProduct(ctx context.Context, p domain.NewProduct) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product := domain.Product{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt.UTC(),
	}

	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, price, stock, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, product.ID, product.Name, product.Price, product.Stock, product.CreatedAt); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		_, err := insertOutboxMessages(ctx, tx, p.Outbox)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	return product, nil
}

// FindProductsByIDs загружает товары одним запросом = ANY($1).
func (r *repository) FindProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return found, nil
}

func (r *repository) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var w whereBuilder
	w.addContains("p.name", q.NameContains)
	w.addDecimalRange("p.price", q.Price)
	w.addIntRange("p.stock", q.Stock)

	ordering, ok := q.Ordering()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p`+w.sql()+orderClause(ordering, ok, productOrderColumns, "p.seq"),
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// RestockLowStock пополняет товары одним UPDATE ... RETURNING.
func (r *repository) RestockLowStock(ctx context.Context, threshold, increment int) ([]domain.Restock, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE stock < $1
		RETURNING id, name, stock - $2, stock
	`, threshold, increment)
	if err != nil {
		return nil, fmt.Errorf("restock low stock products: %w", err)
	}
	defer rows.Close()

	var restocked []domain.Restock
	for rows.Next() {
		var rs domain.Restock
		if err := rows.Scan(&rs.ProductID, &rs.Name, &rs.OldStock, &rs.NewStock); err != nil {
			return nil, fmt.Errorf("scan restock row: %w", err)
		}
		restocked = append(restocked, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restock rows: %w", err)
	}

	return restocked, nil
}
