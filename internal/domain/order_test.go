package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// helper для создания базового заказа с двумя товарами.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Products: []domain.Product{
			{ID: "p1", Name: "Laptop", Price: decimal.RequireFromString("10.00"), Stock: 3, CreatedAt: now},
			{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("5.50"), Stock: 7, CreatedAt: now},
		},
		TotalAmount: decimal.RequireFromString("15.50"),
		OrderDate:   now,
		CreatedAt:   now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.TotalAmount = decimal.NewFromInt(-1)
			},
		},
		{
			name: "no products",
			mut: func(o *domain.Order) {
				o.Products = nil
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.TotalAmount = decimal.RequireFromString("15.49")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestSumPrices_CountsDuplicates(t *testing.T) {
	p := domain.Product{ID: "p1", Price: decimal.RequireFromString("0.10")}
	q := domain.Product{ID: "p2", Price: decimal.RequireFromString("0.20")}

	got := domain.SumPrices([]domain.Product{p, q, p})
	if !got.Equal(decimal.RequireFromString("0.40")) {
		t.Fatalf("expected 0.40, got %s", got)
	}
}

func TestOrderProductIDs_KeepsOrder(t *testing.T) {
	order := makeOrder()
	order.Products = append(order.Products, order.Products[0])

	ids := order.ProductIDs()
	want := []string{"p1", "p2", "p1"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestNewProductValidate(t *testing.T) {
	cases := []struct {
		name    string
		product domain.NewProduct
		want    int
	}{
		{name: "valid", product: domain.NewProduct{Price: decimal.RequireFromString("1.00"), Stock: 0}, want: 0},
		{name: "zero price", product: domain.NewProduct{Price: decimal.Zero, Stock: 1}, want: 1},
		{name: "negative stock", product: domain.NewProduct{Price: decimal.NewFromInt(3), Stock: -1}, want: 1},
		{name: "both invalid", product: domain.NewProduct{Price: decimal.NewFromInt(-3), Stock: -1}, want: 2},
		{name: "sub-cent price", product: domain.NewProduct{Price: decimal.RequireFromString("0.001"), Stock: 1}, want: 1},
		{name: "trailing zero scale", product: domain.NewProduct{Price: decimal.RequireFromString("19.990"), Stock: 1}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(tc.product.Validate()); got != tc.want {
				t.Fatalf("expected %d errors, got %d", tc.want, got)
			}
		})
	}
}
