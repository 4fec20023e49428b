package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// MoneyError описывает значение, которое нельзя представить точной суммой.
type MoneyError struct {
	Input string
}

func (e *MoneyError) Error() string {
	return fmt.Sprintf("Invalid decimal value: %s", e.Input)
}

func (e *MoneyError) Is(target error) bool {
	return target == domain.ErrInvalidMoney
}

// ParseMoney разбирает десятичный литерал напрямую из цифр, без двоичного float.
func ParseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, &MoneyError{Input: raw}
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Decimal{}, &MoneyError{Input: raw}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &MoneyError{Input: raw}
	}
	return d, nil
}

// ParseMoneyValue принимает строку, целое, float или json.Number.
// float переводится в кратчайшее десятичное представление, поэтому 0.1 остаётся 0.1.
func ParseMoneyValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return ParseMoney(val)
	case json.Number:
		return ParseMoney(val.String())
	case decimal.Decimal:
		return val, nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Decimal{}, &MoneyError{Input: strconv.FormatFloat(val, 'g', -1, 64)}
		}
		return ParseMoney(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, &MoneyError{Input: strconv.FormatFloat(f, 'g', -1, 32)}
		}
		return ParseMoney(strconv.FormatFloat(f, 'f', -1, 32))
	case nil:
		return decimal.Decimal{}, &MoneyError{Input: "None"}
	default:
		return decimal.Decimal{}, &MoneyError{Input: fmt.Sprint(v)}
	}
}
