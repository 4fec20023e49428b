package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale - число знаков после запятой в цене товара и сумме заказа.
const PriceScale = 2

// Product описывает товар каталога.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
}

// NewProduct - проверенные данные для создания товара.
type NewProduct struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
	Outbox    []OutboxMessage
}

// Validate проверяет инварианты товара: цена строго положительна и укладывается
// в PriceScale знаков, остаток не отрицателен.
func (p *NewProduct) Validate() []error {
	var errs []error

	switch {
	case !p.Price.IsPositive():
		errs = append(errs, ErrPriceNotPositive)
	case !p.Price.Equal(p.Price.Round(PriceScale)):
		errs = append(errs, ErrPriceScale)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// Restock фиксирует пополнение остатка товара.
type Restock struct {
	ProductID string
	Name      string
	OldStock  int
	NewStock  int
}
