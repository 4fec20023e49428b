package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/validation"
)

func (r ListCustomersRequest) toQuery() domain.CustomerQuery {
	return domain.CustomerQuery{
		NameContains:  r.NameContains,
		EmailContains: r.EmailContains,
		PhonePrefix:   r.PhonePrefix,
		Created:       timeRange(r.CreatedFrom, r.CreatedTo),
		OrderBy:       r.OrderBy,
	}
}

func (r ListProductsRequest) toQuery() (domain.ProductQuery, error) {
	price, err := decimalRange(r.PriceMin, r.PriceMax)
	if err != nil {
		return domain.ProductQuery{}, err
	}
	return domain.ProductQuery{
		NameContains: r.NameContains,
		Price:        price,
		Stock:        domain.IntRange{Min: r.StockMin, Max: r.StockMax},
		OrderBy:      r.OrderBy,
	}, nil
}

func (r ListOrdersRequest) toQuery() (domain.OrderQuery, error) {
	total, err := decimalRange(r.TotalMin, r.TotalMax)
	if err != nil {
		return domain.OrderQuery{}, err
	}
	return domain.OrderQuery{
		CustomerNameContains: r.CustomerNameContains,
		ProductNameContains:  r.ProductNameContains,
		ProductID:            r.ProductID,
		Total:                total,
		OrderDate:            timeRange(r.OrderDateFrom, r.OrderDateTo),
		OrderBy:              r.OrderBy,
	}, nil
}

func timeRange(from, to *time.Time) domain.TimeRange {
	var r domain.TimeRange
	if from != nil {
		r.From = from.UTC()
	}
	if to != nil {
		r.To = to.UTC()
	}
	return r
}

// decimalRange разбирает границы фильтра; пустая граница не ограничивает.
func decimalRange(min, max MoneyLiteral) (domain.DecimalRange, error) {
	var r domain.DecimalRange
	for _, bound := range []struct {
		raw MoneyLiteral
		dst **decimal.Decimal
	}{
		{raw: min, dst: &r.Min},
		{raw: max, dst: &r.Max},
	} {
		if bound.raw == "" {
			continue
		}
		v, err := validation.ParseMoney(bound.raw.String())
		if err != nil {
			return domain.DecimalRange{}, domain.NewValidationError(err, err.Error())
		}
		*bound.dst = &v
	}
	return r, nil
}
