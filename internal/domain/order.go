package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order агрегирует заказ клиента и товары, по которым он оформлен.
type Order struct {
	ID         string
	CustomerID string
	// Customer заполняется репозиторием при чтении заказа.
	Customer Customer
	// Products хранит товары в порядке запроса; повторяющиеся товары не схлопываются.
	Products    []Product
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	CreatedAt   time.Time
}

// ProductIDs возвращает идентификаторы товаров заказа в исходном порядке.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		ids = append(ids, p.ID)
	}
	return ids
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Products) == 0 {
		errs = append(errs, ErrProductsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой цен всех позиций.
	if !SumPrices(o.Products).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// SumPrices складывает цены товаров в точной десятичной арифметике.
func SumPrices(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

// NewOrder - данные для атомарной записи заказа и его связей с товарами.
type NewOrder struct {
	ID          string
	CustomerID  string
	ProductIDs  []string
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	CreatedAt   time.Time
	Outbox      []OutboxMessage
}

// Summary - агрегированные показатели для отчёта CRM.
type Summary struct {
	Customers int
	Orders    int
	Revenue   decimal.Decimal
}
