package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   Ordering
		wantOK bool
	}{
		{name: "ascending", raw: "name", want: Ordering{Field: FieldName}, wantOK: true},
		{name: "descending", raw: "-created_at", want: Ordering{Field: FieldCreatedAt, Desc: true}, wantOK: true},
		{name: "case insensitive", raw: " Email ", want: Ordering{Field: FieldEmail}, wantOK: true},
		{name: "unknown field", raw: "password", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
		{name: "only minus", raw: "-", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseOrdering(tt.raw, customerOrderFields)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomerQueryMatches(t *testing.T) {
	created := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	c := Customer{Name: "Alice Smith", Email: "alice@example.com", Phone: "+233201234567", CreatedAt: created}

	assert.True(t, CustomerQuery{}.Matches(c))
	assert.True(t, CustomerQuery{NameContains: "alice"}.Matches(c))
	assert.True(t, CustomerQuery{EmailContains: "EXAMPLE", PhonePrefix: "+233"}.Matches(c))
	assert.False(t, CustomerQuery{PhonePrefix: "+1"}.Matches(c))
	assert.False(t, CustomerQuery{Created: TimeRange{From: created.Add(time.Hour)}}.Matches(c))
	assert.False(t, CustomerQuery{Created: TimeRange{To: created}}.Matches(c))
}

func TestProductQueryMatches(t *testing.T) {
	p := Product{Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10}
	lo := decimal.RequireFromString("999.99")
	hi := decimal.RequireFromString("500")
	five := 5

	assert.True(t, ProductQuery{NameContains: "lap", Price: DecimalRange{Min: &lo}}.Matches(p))
	assert.False(t, ProductQuery{Price: DecimalRange{Max: &hi}}.Matches(p))
	assert.False(t, ProductQuery{Stock: IntRange{Max: &five}}.Matches(p))
}

func TestOrderQueryMatches(t *testing.T) {
	o := Order{
		Customer:    Customer{Name: "Bob"},
		Products:    []Product{{ID: "p1", Name: "Tablet"}, {ID: "p2", Name: "Smartwatch"}},
		TotalAmount: decimal.RequireFromString("649.98"),
		OrderDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, OrderQuery{CustomerNameContains: "bo"}.Matches(o))
	assert.True(t, OrderQuery{ProductNameContains: "watch"}.Matches(o))
	assert.True(t, OrderQuery{ProductID: "p1"}.Matches(o))
	assert.False(t, OrderQuery{ProductID: "p1", ProductNameContains: "watch"}.Matches(o))
	assert.False(t, OrderQuery{ProductID: "p3"}.Matches(o))
	assert.False(t, OrderQuery{CustomerNameContains: "alice"}.Matches(o))

	_, ok := OrderQuery{OrderBy: "-total_amount"}.Ordering()
	assert.True(t, ok)
	_, ok = OrderQuery{OrderBy: "email"}.Ordering()
	assert.False(t, ok)
}
