package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Поля сортировки, которые понимают репозитории.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldCreatedAt   = "created_at"
	FieldPrice       = "price"
	FieldStock       = "stock"
	FieldTotalAmount = "total_amount"
	FieldOrderDate   = "order_date"
)

var (
	customerOrderFields = []string{FieldID, FieldName, FieldEmail, FieldCreatedAt}
	productOrderFields  = []string{FieldID, FieldName, FieldPrice, FieldStock, FieldCreatedAt}
	orderOrderFields    = []string{FieldID, FieldTotalAmount, FieldOrderDate, FieldCreatedAt}
)

// Ordering - разобранное значение order_by: поле и направление.
type Ordering struct {
	Field string
	Desc  bool
}

// ParseOrdering разбирает строку вида "name" или "-created_at".
// ok=false, если поле пустое или не входит в allowed; тогда используется порядок вставки.
func ParseOrdering(raw string, allowed []string) (Ordering, bool) {
	raw = strings.TrimSpace(raw)
	desc := strings.HasPrefix(raw, "-")
	field := strings.ToLower(strings.TrimPrefix(raw, "-"))
	if field == "" {
		return Ordering{}, false
	}
	for _, f := range allowed {
		if f == field {
			return Ordering{Field: field, Desc: desc}, true
		}
	}
	return Ordering{}, false
}

// TimeRange - полуоткрытый диапазон [From, To); нулевые границы не ограничивают.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains проверяет попадание t в диапазон.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// DecimalRange - замкнутый диапазон сумм; nil-граница не ограничивает.
type DecimalRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// Contains проверяет v по заданным границам включительно.
func (r DecimalRange) Contains(v decimal.Decimal) bool {
	if r.Min != nil && v.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && v.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// IntRange - замкнутый диапазон целых; nil-граница не ограничивает.
type IntRange struct {
	Min *int
	Max *int
}

// Contains проверяет v по заданным границам включительно.
func (r IntRange) Contains(v int) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// CustomerQuery - фильтр и сортировка списка клиентов.
type CustomerQuery struct {
	NameContains  string
	EmailContains string
	PhonePrefix   string
	Created       TimeRange
	OrderBy       string
}

// Ordering возвращает распознанную сортировку клиентов.
func (q CustomerQuery) Ordering() (Ordering, bool) {
	return ParseOrdering(q.OrderBy, customerOrderFields)
}

// Matches проверяет клиента на соответствие фильтру.
func (q CustomerQuery) Matches(c Customer) bool {
	if !containsFold(c.Name, q.NameContains) || !containsFold(c.Email, q.EmailContains) {
		return false
	}
	if q.PhonePrefix != "" && !strings.HasPrefix(c.Phone, q.PhonePrefix) {
		return false
	}
	return q.Created.Contains(c.CreatedAt)
}

// ProductQuery - фильтр и сортировка списка товаров.
type ProductQuery struct {
	NameContains string
	Price        DecimalRange
	Stock        IntRange
	OrderBy      string
}

// Ordering разбирает OrderBy; false означает порядок вставки.
func (q ProductQuery) Ordering() (Ordering, bool) {
	return ParseOrdering(q.OrderBy, productOrderFields)
}

// Matches применяет фильтр к товару.
func (q ProductQuery) Matches(p Product) bool {
	return containsFold(p.Name, q.NameContains) && q.Price.Contains(p.Price) && q.Stock.Contains(p.Stock)
}

// OrderQuery - фильтр и сортировка списка заказов.
type OrderQuery struct {
	CustomerNameContains string
	ProductNameContains  string
	ProductID            string
	Total                DecimalRange
	OrderDate            TimeRange
	OrderBy              string
}

// Ordering разбирает OrderBy; false означает порядок вставки.
func (q OrderQuery) Ordering() (Ordering, bool) {
	return ParseOrdering(q.OrderBy, orderOrderFields)
}

// Matches ожидает заказ с заполненными Customer и Products.
func (q OrderQuery) Matches(o Order) bool {
	if !containsFold(o.Customer.Name, q.CustomerNameContains) {
		return false
	}
	if !q.Total.Contains(o.TotalAmount) || !q.OrderDate.Contains(o.OrderDate) {
		return false
	}
	if q.ProductNameContains == "" && q.ProductID == "" {
		return true
	}
	for _, p := range o.Products {
		if (q.ProductID == "" || p.ID == q.ProductID) && containsFold(p.Name, q.ProductNameContains) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
