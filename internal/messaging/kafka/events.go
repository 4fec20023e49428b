package kafka

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// Topics для Kafka
const (
	TopicCustomerEvents  = "crm.customer.events"
	TopicProductEvents   = "crm.product.events"
	TopicOrderEvents     = "crm.order.events"
	TopicDeadLetterQueue = "crm.dlq"
)

// TopicForAggregate выбирает topic по типу агрегата; неизвестные типы уходят в fallback.
func TopicForAggregate(aggregateType, fallback string) string {
	switch aggregateType {
	case domain.AggregateCustomer:
		return TopicCustomerEvents
	case domain.AggregateProduct:
		return TopicProductEvents
	case domain.AggregateOrder:
		return TopicOrderEvents
	default:
		return fallback
	}
}

// CustomerEvent - payload события о клиенте.
type CustomerEvent struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProductEvent - payload события о товаре. Цена передаётся строкой без потери точности.
type ProductEvent struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderEvent - payload события о заказе.
type OrderEvent struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	ProductIDs  []string        `json:"product_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   time.Time       `json:"order_date"`
}

// NewCustomerEvent создает событие клиента.
func NewCustomerEvent(c domain.Customer) *CustomerEvent {
	return &CustomerEvent{
		CustomerID: c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		CreatedAt:  c.CreatedAt,
	}
}

// NewProductEvent создает событие товара.
func NewProductEvent(p domain.Product) *ProductEvent {
	return &ProductEvent{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}
}

// NewOrderEvent создает событие заказа.
func NewOrderEvent(o domain.NewOrder) *OrderEvent {
	return &OrderEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		ProductIDs:  append([]string(nil), o.ProductIDs...),
		TotalAmount: o.TotalAmount,
		OrderDate:   o.OrderDate,
	}
}
