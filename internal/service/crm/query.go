package crm

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// QueryService выполняет чтения с фильтрацией и сортировкой.
type QueryService struct {
	repo   domain.Repository
	logger *log.Entry
}

// NewQueryService создаёт сервис запросов.
func NewQueryService(repo domain.Repository, logger *log.Entry) *QueryService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &QueryService{
		repo:   repo,
		logger: logger.WithField("component", "query-service"),
	}
}

// ListCustomers возвращает клиентов по фильтру.
func (s *QueryService) ListCustomers(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx, q)
	if err != nil {
		return nil, s.readFailed("list_customers", err)
	}
	return customers, nil
}

// ListProducts возвращает товары по фильтру.
func (s *QueryService) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		return nil, s.readFailed("list_products", err)
	}
	return products, nil
}

// ListOrders возвращает заказы с разрешёнными клиентом и товарами.
func (s *QueryService) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	orders, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		return nil, s.readFailed("list_orders", err)
	}
	return orders, nil
}

// Summary возвращает число клиентов, заказов и общую выручку.
func (s *QueryService) Summary(ctx context.Context) (domain.Summary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return domain.Summary{}, s.readFailed("summary", err)
	}
	return summary, nil
}

// OrdersSince возвращает заказы с датой не раньше since.
func (s *QueryService) OrdersSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	orders, err := s.repo.OrdersSince(ctx, since)
	if err != nil {
		return nil, s.readFailed("orders_since", err)
	}
	return orders, nil
}

// FindCustomerByEmail возвращает клиента по email; ErrCustomerNotFound сохраняется в цепочке.
func (s *QueryService) FindCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	customer, err := s.repo.FindCustomerByEmail(ctx, email)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("find customer by email: %w", err)
	}
	return customer, nil
}

func (s *QueryService) readFailed(operation string, err error) error {
	s.logger.WithError(err).WithField("operation", operation).Error("crm query failed")
	return domain.NewInfrastructureError(fmt.Errorf("%s: %w", operation, err))
}
