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
	"github.com/vladislavdragonenkov/crm/internal/validation"
)

// Сообщения операций с товарами.
const (
	MessagePriceNotPositive = "Price must be a positive number."
	MessageStockNegative    = "Stock cannot be negative."
	MessageProductFailed    = "Failed to create product."
)

// CreateProductInput - входные данные для создания товара.
// Price передаётся литералом, чтобы не терять точность; nil Stock означает 0.
type CreateProductInput struct {
	Name  string
	Price string
	Stock *int
}

// ProductService создаёт товары.
type ProductService struct {
	base
	repo domain.ProductRepository
}

// NewProductService создаёт сервис товаров.
func NewProductService(repo domain.ProductRepository, logger *log.Entry, opts ...Option) *ProductService {
	return &ProductService{
		base: newBase("product-service", logger, opts),
		repo: repo,
	}
}

// CreateProduct проверяет цену и остаток и сохраняет товар.
func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	started := time.Now()
	product, err := s.createProduct(ctx, in)
	s.finish("create_product", started, err)
	return product, err
}

func (s *ProductService) createProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}

	candidate := domain.NewProduct{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Stock:     stock,
		CreatedAt: s.now(),
	}

	var messages []string
	var causes []error

	price, err := validation.ParseMoney(in.Price)
	if err != nil {
		messages = append(messages, MessagePriceNotPositive)
		causes = append(causes, err)
		// Цена не разобрана; остаток проверяем отдельно.
		if stock < 0 {
			messages = append(messages, MessageStockNegative)
			causes = append(causes, domain.ErrStockNegative)
		}
	} else {
		candidate.Price = price
		for _, verr := range candidate.Validate() {
			causes = append(causes, verr)
			switch {
			case errors.Is(verr, domain.ErrPriceNotPositive), errors.Is(verr, domain.ErrPriceScale):
				messages = append(messages, MessagePriceNotPositive)
			case errors.Is(verr, domain.ErrStockNegative):
				messages = append(messages, MessageStockNegative)
			}
		}
	}
	if len(messages) > 0 {
		return domain.Product{}, domain.NewValidationError(errors.Join(causes...), messages...)
	}
	// 19.990 и 19.99 хранятся одинаково во всех хранилищах.
	candidate.Price = candidate.Price.Round(domain.PriceScale)

	msg, err := newOutboxMessage(domain.AggregateProduct, candidate.ID, domain.EventProductCreated, kafka.NewProductEvent(domain.Product{
		ID:        candidate.ID,
		Name:      candidate.Name,
		Price:     candidate.Price,
		Stock:     candidate.Stock,
		CreatedAt: candidate.CreatedAt,
	}))
	if err != nil {
		return domain.Product{}, domain.NewInfrastructureError(err, MessageProductFailed)
	}
	candidate.Outbox = []domain.OutboxMessage{msg}

	created, err := s.repo.CreateProduct(ctx, candidate)
	if err != nil {
		return domain.Product{}, domain.NewInfrastructureError(fmt.Errorf("create product: %w", err), MessageProductFailed)
	}
	return created, nil
}
