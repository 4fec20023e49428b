package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
)

// Сообщения операций с заказами.
const (
	MessageProductsRequired = "At least one product must be provided."
	MessageOrderFailed      = "Failed to create order."
	MessageProductsChanged  = "Some products are no longer available."
)

// CreateOrderInput - входные данные для создания заказа.
// Повторяющиеся ProductIDs допустимы и учитываются в сумме; nil OrderDate означает текущий момент.
type CreateOrderInput struct {
	CustomerID string
	ProductIDs []string
	OrderDate  *time.Time
}

// OrderService создаёт заказы.
type OrderService struct {
	base
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	logger *log.Entry,
	opts ...Option,
) *OrderService {
	return &OrderService{
		base:      newBase("order-service", logger, opts),
		customers: customers,
		products:  products,
		orders:    orders,
	}
}

// CreateOrder проверяет клиента и товары, считает сумму и атомарно сохраняет заказ.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	started := time.Now()
	order, err := s.createOrder(ctx, in)
	s.finish("create_order", started, err)
	if err == nil {
		s.metrics.ObserveOrderTotal(order.TotalAmount.InexactFloat64())
		s.logger.WithFields(log.Fields{
			"order_id":     order.ID,
			"customer_id":  order.CustomerID,
			"total_amount": order.TotalAmount.StringFixed(2),
		}).Info("order created")
	}
	return order, err
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	customerID := strings.TrimSpace(in.CustomerID)

	customer, err := s.customers.FindCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Order{}, customerMissing(customerID)
		}
		return domain.Order{}, domain.NewInfrastructureError(fmt.Errorf("find customer: %w", err), MessageOrderFailed)
	}

	if len(in.ProductIDs) == 0 {
		return domain.Order{}, domain.NewValidationError(domain.ErrProductsRequired, MessageProductsRequired)
	}

	distinct := distinctIDs(in.ProductIDs)
	found, err := s.products.FindProductsByIDs(ctx, distinct)
	if err != nil {
		return domain.Order{}, domain.NewInfrastructureError(fmt.Errorf("find products: %w", err), MessageOrderFailed)
	}

	var missing []string
	for _, id := range distinct {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, domain.NewReferenceError(domain.ErrProductNotFound,
			fmt.Sprintf("Invalid product IDs: %s", strings.Join(missing, ", ")))
	}

	products := make([]domain.Product, 0, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		products = append(products, found[id])
	}

	now := s.now()
	orderDate := now
	if in.OrderDate != nil && !in.OrderDate.IsZero() {
		orderDate = in.OrderDate.UTC()
	}

	candidate := domain.Order{
		ID:          s.newID(),
		CustomerID:  customer.ID,
		Customer:    customer,
		Products:    products,
		TotalAmount: domain.SumPrices(products),
		OrderDate:   orderDate,
		CreatedAt:   now,
	}
	if errs := candidate.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, domain.NewInfrastructureError(errors.Join(errs...), MessageOrderFailed)
	}

	newOrder := domain.NewOrder{
		ID:          candidate.ID,
		CustomerID:  candidate.CustomerID,
		ProductIDs:  candidate.ProductIDs(),
		TotalAmount: candidate.TotalAmount,
		OrderDate:   candidate.OrderDate,
		CreatedAt:   candidate.CreatedAt,
	}
	msg, err := newOutboxMessage(domain.AggregateOrder, newOrder.ID, domain.EventOrderCreated, kafka.NewOrderEvent(newOrder))
	if err != nil {
		return domain.Order{}, domain.NewInfrastructureError(err, MessageOrderFailed)
	}
	newOrder.Outbox = []domain.OutboxMessage{msg}

	created, err := s.orders.CreateOrderAtomic(ctx, newOrder)
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, domain.ErrCustomerNotFound):
		return domain.Order{}, customerMissing(customerID)
	case errors.Is(err, domain.ErrProductNotFound):
		return domain.Order{}, domain.NewReferenceError(err, MessageProductsChanged)
	default:
		return domain.Order{}, domain.NewInfrastructureError(fmt.Errorf("create order: %w", err), MessageOrderFailed)
	}
}

func customerMissing(id string) error {
	return domain.NewReferenceError(domain.ErrCustomerNotFound, fmt.Sprintf("Customer with id '%s' does not exist.", id))
}

// distinctIDs убирает повторы, сохраняя порядок первого появления.
func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
