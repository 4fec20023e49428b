package api_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func newEndpoint() *api.Endpoint {
	store := memory.NewStore()
	return api.NewEndpoint(
		crm.NewCustomerService(store, nil),
		crm.NewProductService(store, nil),
		crm.NewOrderService(store, store, store, nil),
		crm.NewQueryService(store, nil),
	)
}

func TestMoneyLiteral_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want api.MoneyLiteral
	}{
		{name: "number keeps literal digits", raw: `{"price": 0.1}`, want: "0.1"},
		{name: "long fraction", raw: `{"price": 19.990000000000001}`, want: "19.990000000000001"},
		{name: "string", raw: `{"price": "999.99"}`, want: "999.99"},
		{name: "null", raw: `{"price": null}`, want: ""},
		{name: "boolean left for service", raw: `{"price": true}`, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req api.CreateProductRequest
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			assert.Equal(t, tt.want, req.Price)
		})
	}
}

func TestEndpoint_CreateCustomer(t *testing.T) {
	ep := newEndpoint()
	ctx := context.Background()

	resp := ep.CreateCustomer(ctx, api.CreateCustomerRequest{Name: "Alice", Email: "alice@example.com", Phone: "+233201234567"})
	require.NotNil(t, resp.Customer)
	assert.Equal(t, crm.MessageCustomerCreated, resp.Message)
	assert.Empty(t, resp.Errors)

	resp = ep.CreateCustomer(ctx, api.CreateCustomerRequest{Name: "Alice", Email: "alice@example.com"})
	assert.Nil(t, resp.Customer)
	assert.Equal(t, []string{"Email 'alice@example.com' already exists."}, resp.Errors)
}

func TestEndpoint_BulkCreateCustomers(t *testing.T) {
	ep := newEndpoint()

	resp := ep.BulkCreateCustomers(context.Background(), api.BulkCreateCustomersRequest{
		Customers: []api.CreateCustomerRequest{
			{Email: "a@x.com"},
			{Email: "a@x.com"},
		},
	})
	assert.Len(t, resp.Customers, 1)
	assert.Equal(t, []string{"Row 2: Email 'a@x.com' already exists."}, resp.Errors)
}

func TestEndpoint_CreateOrderFlow(t *testing.T) {
	ep := newEndpoint()
	ctx := context.Background()

	customer := ep.CreateCustomer(ctx, api.CreateCustomerRequest{Name: "Alice", Email: "alice@example.com"})
	require.NotNil(t, customer.Customer)

	var products []string
	for _, raw := range []string{`{"name":"Laptop","price":10.00,"stock":3}`, `{"name":"Mouse","price":"5.50"}`} {
		var req api.CreateProductRequest
		require.NoError(t, json.Unmarshal([]byte(raw), &req))
		resp := ep.CreateProduct(ctx, req)
		require.Empty(t, resp.Errors)
		products = append(products, resp.Product.ID)
	}

	order := ep.CreateOrder(ctx, api.CreateOrderRequest{CustomerID: customer.Customer.ID, ProductIDs: products})
	require.Empty(t, order.Errors)
	assert.Equal(t, "15.50", order.Order.TotalAmount)
	assert.Equal(t, "5.50", order.Order.Products[1].Price)

	missing := ep.CreateOrder(ctx, api.CreateOrderRequest{CustomerID: customer.Customer.ID, ProductIDs: []string{"nope"}})
	assert.Nil(t, missing.Order)
	assert.Equal(t, []string{"Invalid product IDs: nope"}, missing.Errors)

	list, err := ep.ListOrders(ctx, api.ListOrdersRequest{TotalMin: "15.50", TotalMax: "15.50"})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	summary, err := ep.Summary(ctx, api.SummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, api.SummaryResponse{Customers: 1, Orders: 1, Revenue: "15.50"}, summary)
}

func TestEndpoint_ListProductsRejectsBadBound(t *testing.T) {
	ep := newEndpoint()

	_, err := ep.ListProducts(context.Background(), api.ListProductsRequest{PriceMin: "cheap"})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, []string{"Invalid decimal value: cheap"}, domain.ErrorMessages(err))
}

func TestRequestHash(t *testing.T) {
	a, err := api.RequestHash("CreateCustomer", api.CreateCustomerRequest{Email: "a@x.com"})
	require.NoError(t, err)
	b, err := api.RequestHash("CreateCustomer", api.CreateCustomerRequest{Email: "a@x.com"})
	require.NoError(t, err)
	c, err := api.RequestHash("CreateCustomer", api.CreateCustomerRequest{Email: "b@x.com"})
	require.NoError(t, err)
	d, err := api.RequestHash("BulkCreateCustomers", api.CreateCustomerRequest{Email: "a@x.com"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	_, err = api.RequestHash("x", nil)
	assert.Error(t, err)
}
