// Package api описывает транспортно-независимые запросы и ответы CRM
// и Endpoint, который переводит их в вызовы сервисов.
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// MoneyLiteral принимает денежную сумму как JSON-число или строку и хранит её исходный текст.
// Число не проходит через float64, поэтому 0.1 остаётся ровно 0.1.
type MoneyLiteral string

// UnmarshalJSON принимает строку или число и сохраняет исходный литерал.
func (m *MoneyLiteral) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*m = ""
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*m = MoneyLiteral(s)
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			// Некорректное значение отклоняет сервис с понятным сообщением.
			*m = MoneyLiteral(trimmed)
			return nil
		}
		*m = MoneyLiteral(n.String())
	}
	return nil
}

func (m MoneyLiteral) String() string { return string(m) }

// CreateCustomerRequest - запрос на создание клиента.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// BulkCreateCustomersRequest - пакетное создание клиентов.
type BulkCreateCustomersRequest struct {
	Customers []CreateCustomerRequest `json:"customers"`
}

// CreateProductRequest - запрос на создание товара; Stock по умолчанию 0.
type CreateProductRequest struct {
	Name  string       `json:"name"`
	Price MoneyLiteral `json:"price"`
	Stock *int         `json:"stock,omitempty"`
}

// CreateOrderRequest - запрос на создание заказа; OrderDate по умолчанию текущий момент.
type CreateOrderRequest struct {
	CustomerID string     `json:"customer_id"`
	ProductIDs []string   `json:"product_ids"`
	OrderDate  *time.Time `json:"order_date,omitempty"`
}

// ListCustomersRequest - фильтр и сортировка списка клиентов.
type ListCustomersRequest struct {
	NameContains  string     `json:"name,omitempty" form:"name"`
	EmailContains string     `json:"email,omitempty" form:"email"`
	PhonePrefix   string     `json:"phone_prefix,omitempty" form:"phone_prefix"`
	CreatedFrom   *time.Time `json:"created_from,omitempty" form:"created_from" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedTo     *time.Time `json:"created_to,omitempty" form:"created_to" time_format:"2006-01-02T15:04:05Z07:00"`
	OrderBy       string     `json:"order_by,omitempty" form:"order_by"`
}

// ListProductsRequest - фильтр и сортировка списка товаров.
type ListProductsRequest struct {
	NameContains string       `json:"name,omitempty" form:"name"`
	PriceMin     MoneyLiteral `json:"price_min,omitempty" form:"price_min"`
	PriceMax     MoneyLiteral `json:"price_max,omitempty" form:"price_max"`
	StockMin     *int         `json:"stock_min,omitempty" form:"stock_min"`
	StockMax     *int         `json:"stock_max,omitempty" form:"stock_max"`
	OrderBy      string       `json:"order_by,omitempty" form:"order_by"`
}

// ListOrdersRequest - фильтр и сортировка списка заказов.
type ListOrdersRequest struct {
	CustomerNameContains string       `json:"customer_name,omitempty" form:"customer_name"`
	ProductNameContains  string       `json:"product_name,omitempty" form:"product_name"`
	ProductID            string       `json:"product_id,omitempty" form:"product_id"`
	TotalMin             MoneyLiteral `json:"total_min,omitempty" form:"total_min"`
	TotalMax             MoneyLiteral `json:"total_max,omitempty" form:"total_max"`
	OrderDateFrom        *time.Time   `json:"order_date_from,omitempty" form:"order_date_from" time_format:"2006-01-02T15:04:05Z07:00"`
	OrderDateTo          *time.Time   `json:"order_date_to,omitempty" form:"order_date_to" time_format:"2006-01-02T15:04:05Z07:00"`
	OrderBy              string       `json:"order_by,omitempty" form:"order_by"`
}

// SummaryRequest пуст; нужен для единообразия gRPC-методов.
type SummaryRequest struct{}

// Customer - клиент в ответе API.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product - товар в ответе API; цена строкой с двумя знаками.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

// Order - заказ в ответе API.
type Order struct {
	ID          string    `json:"id"`
	Customer    Customer  `json:"customer"`
	Products    []Product `json:"products"`
	TotalAmount string    `json:"total_amount"`
	OrderDate   time.Time `json:"order_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCustomerResponse - созданный клиент или ошибки.
type CreateCustomerResponse struct {
	Customer *Customer `json:"customer"`
	Message  string    `json:"message,omitempty"`
	Errors   []string  `json:"errors"`
}

// BulkCreateCustomersResponse - созданные клиенты и ошибки строк в формате "Row N: ...".
type BulkCreateCustomersResponse struct {
	Customers []Customer `json:"customers"`
	Errors    []string   `json:"errors"`
}

// CreateProductResponse - созданный товар или ошибки.
type CreateProductResponse struct {
	Product *Product `json:"product"`
	Errors  []string `json:"errors"`
}

// CreateOrderResponse - созданный заказ или ошибки.
type CreateOrderResponse struct {
	Order  *Order   `json:"order"`
	Errors []string `json:"errors"`
}

// ListCustomersResponse - ответ со списком клиентов.
type ListCustomersResponse struct {
	Customers []Customer `json:"customers"`
}

// ListProductsResponse - ответ со списком товаров.
type ListProductsResponse struct {
	Products []Product `json:"products"`
}

// ListOrdersResponse - ответ со списком заказов.
type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

// SummaryResponse - сводка; выручка передаётся строкой с двумя знаками.
type SummaryResponse struct {
	Customers int    `json:"customers"`
	Orders    int    `json:"orders"`
	Revenue   string `json:"revenue"`
}

func toCustomer(c domain.Customer) Customer {
	return Customer{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

func toProduct(p domain.Product) Product {
	return Product{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
	}
}

func toOrder(o domain.Order) Order {
	products := make([]Product, 0, len(o.Products))
	for _, p := range o.Products {
		products = append(products, toProduct(p))
	}
	return Order{
		ID:          o.ID,
		Customer:    toCustomer(o.Customer),
		Products:    products,
		TotalAmount: o.TotalAmount.StringFixed(2),
		OrderDate:   o.OrderDate,
		CreatedAt:   o.CreatedAt,
	}
}
