package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// CreateOrderAtomic проверяет ссылки и пишет заказ вместе с позициями и outbox
// в одной критической секции: частично записанный заказ наблюдать нельзя.
func (s *Store) CreateOrderAtomic(ctx context.Context, o domain.NewOrder) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customerByID[o.CustomerID]; !ok {
		return domain.Order{}, domain.ErrCustomerNotFound
	}
	for _, id := range o.ProductIDs {
		if _, ok := s.productByID[id]; !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
	}

	rec := orderRecord{
		id:          o.ID,
		customerID:  o.CustomerID,
		productIDs:  append([]string(nil), o.ProductIDs...),
		totalAmount: o.TotalAmount,
		orderDate:   o.OrderDate,
		createdAt:   o.CreatedAt,
	}
	s.orders = append(s.orders, rec)
	s.enqueueLocked(o.Outbox)

	return s.resolveLocked(rec), nil
}

// ListOrders возвращает заказы с подставленными клиентом и товарами.
func (s *Store) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]domain.Order, 0, len(s.orders))
	for _, rec := range s.orders {
		order := s.resolveLocked(rec)
		if q.Matches(order) {
			result = append(result, order)
		}
	}
	s.mu.RUnlock()

	if ordering, ok := q.Ordering(); ok {
		sortStable(result, ordering.Desc, func(a, b domain.Order) int {
			switch ordering.Field {
			case domain.FieldTotalAmount:
				return a.TotalAmount.Cmp(b.TotalAmount)
			case domain.FieldOrderDate:
				return a.OrderDate.Compare(b.OrderDate)
			case domain.FieldCreatedAt:
				return a.CreatedAt.Compare(b.CreatedAt)
			default:
				return strings.Compare(a.ID, b.ID)
			}
		})
	}

	return result, nil
}

// OrdersSince возвращает заказы с датой не раньше since в порядке вставки.
func (s *Store) OrdersSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	return s.ListOrders(ctx, domain.OrderQuery{OrderDate: domain.TimeRange{From: since}})
}

func (s *Store) resolveLocked(rec orderRecord) domain.Order {
	order := domain.Order{
		ID:          rec.id,
		CustomerID:  rec.customerID,
		Customer:    s.customers[s.customerByID[rec.customerID]],
		Products:    make([]domain.Product, 0, len(rec.productIDs)),
		TotalAmount: rec.totalAmount,
		OrderDate:   rec.orderDate,
		CreatedAt:   rec.createdAt,
	}
	for _, id := range rec.productIDs {
		order.Products = append(order.Products, s.products[s.productByID[id]])
	}
	return order
}
