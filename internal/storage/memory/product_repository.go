package memory

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// CreateProduct сохраняет товар и его outbox-события под одной блокировкой.
func (s *Store) CreateProduct(ctx context.Context, p domain.NewProduct) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.productByID[product.ID] = len(s.products)
	s.products = append(s.products, product)
	s.enqueueLocked(p.Outbox)

	return product, nil
}

// FindProductsByIDs возвращает найденные товары одним проходом под одной блокировкой.
func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if idx, ok := s.productByID[id]; ok {
			found[id] = s.products[idx]
		}
	}
	return found, nil
}

// ListProducts возвращает товары по фильтру; без сортировки - в порядке вставки.
func (s *Store) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if q.Matches(p) {
			result = append(result, p)
		}
	}
	s.mu.RUnlock()

	if ordering, ok := q.Ordering(); ok {
		sortStable(result, ordering.Desc, func(a, b domain.Product) int {
			switch ordering.Field {
			case domain.FieldName:
				return strings.Compare(a.Name, b.Name)
			case domain.FieldPrice:
				return a.Price.Cmp(b.Price)
			case domain.FieldStock:
				return a.Stock - b.Stock
			case domain.FieldCreatedAt:
				return a.CreatedAt.Compare(b.CreatedAt)
			default:
				return strings.Compare(a.ID, b.ID)
			}
		})
	}

	return result, nil
}

// RestockLowStock пополняет товары с остатком ниже threshold.
func (s *Store) RestockLowStock(ctx context.Context, threshold, increment int) ([]domain.Restock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var restocked []domain.Restock
	for i := range s.products {
		p := &s.products[i]
		if p.Stock >= threshold {
			continue
		}
		restocked = append(restocked, domain.Restock{
			ProductID: p.ID,
			Name:      p.Name,
			OldStock:  p.Stock,
			NewStock:  p.Stock + increment,
		})
		p.Stock += increment
	}
	return restocked, nil
}
