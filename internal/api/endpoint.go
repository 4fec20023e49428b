package api

import (
	"context"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

// Endpoint переводит запросы API в вызовы сервисов CRM.
// Ошибки мутаций возвращаются в поле Errors ответа; error возвращают только чтения.
type Endpoint struct {
	customers *crm.CustomerService
	products  *crm.ProductService
	orders    *crm.OrderService
	queries   *crm.QueryService
}

// NewEndpoint связывает сервисы CRM с транспортным слоем.
func NewEndpoint(
	customers *crm.CustomerService,
	products *crm.ProductService,
	orders *crm.OrderService,
	queries *crm.QueryService,
) *Endpoint {
	return &Endpoint{
		customers: customers,
		products:  products,
		orders:    orders,
		queries:   queries,
	}
}

// CreateCustomer создаёт клиента; ошибки предметной области попадают в Errors ответа.
func (e *Endpoint) CreateCustomer(ctx context.Context, req CreateCustomerRequest) CreateCustomerResponse {
	customer, err := e.customers.CreateCustomer(ctx, crm.CreateCustomerInput(req))
	if err != nil {
		resp := CreateCustomerResponse{Errors: domain.ErrorMessages(err)}
		if domain.KindOf(err) == domain.KindInfrastructure {
			resp.Message = crm.MessageCustomerFailed
		}
		return resp
	}

	dto := toCustomer(customer)
	return CreateCustomerResponse{
		Customer: &dto,
		Message:  crm.MessageCustomerCreated,
		Errors:   []string{},
	}
}

// BulkCreateCustomers создаёт клиентов построчно и возвращает созданных вместе с ошибками строк.
func (e *Endpoint) BulkCreateCustomers(ctx context.Context, req BulkCreateCustomersRequest) BulkCreateCustomersResponse {
	inputs := make([]crm.CreateCustomerInput, 0, len(req.Customers))
	for _, c := range req.Customers {
		inputs = append(inputs, crm.CreateCustomerInput(c))
	}

	result := e.customers.BulkCreateCustomers(ctx, inputs)
	customers := make([]Customer, 0, len(result.Created))
	for _, c := range result.Created {
		customers = append(customers, toCustomer(c))
	}
	return BulkCreateCustomersResponse{
		Customers: customers,
		Errors:    result.ErrorStrings(),
	}
}

// CreateProduct создаёт товар.
func (e *Endpoint) CreateProduct(ctx context.Context, req CreateProductRequest) CreateProductResponse {
	product, err := e.products.CreateProduct(ctx, crm.CreateProductInput{
		Name:  req.Name,
		Price: req.Price.String(),
		Stock: req.Stock,
	})
	if err != nil {
		return CreateProductResponse{Errors: domain.ErrorMessages(err)}
	}

	dto := toProduct(product)
	return CreateProductResponse{Product: &dto, Errors: []string{}}
}

// CreateOrder создаёт заказ с точной суммой.
func (e *Endpoint) CreateOrder(ctx context.Context, req CreateOrderRequest) CreateOrderResponse {
	order, err := e.orders.CreateOrder(ctx, crm.CreateOrderInput(req))
	if err != nil {
		return CreateOrderResponse{Errors: domain.ErrorMessages(err)}
	}

	dto := toOrder(order)
	return CreateOrderResponse{Order: &dto, Errors: []string{}}
}

// ListCustomers возвращает клиентов по фильтру запроса.
func (e *Endpoint) ListCustomers(ctx context.Context, req ListCustomersRequest) (ListCustomersResponse, error) {
	customers, err := e.queries.ListCustomers(ctx, req.toQuery())
	if err != nil {
		return ListCustomersResponse{}, err
	}

	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomer(c))
	}
	return ListCustomersResponse{Customers: out}, nil
}

// ListProducts возвращает товары по фильтру запроса.
func (e *Endpoint) ListProducts(ctx context.Context, req ListProductsRequest) (ListProductsResponse, error) {
	q, err := req.toQuery()
	if err != nil {
		return ListProductsResponse{}, err
	}
	products, err := e.queries.ListProducts(ctx, q)
	if err != nil {
		return ListProductsResponse{}, err
	}

	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, toProduct(p))
	}
	return ListProductsResponse{Products: out}, nil
}

// ListOrders возвращает заказы вместе с клиентом и товарами.
func (e *Endpoint) ListOrders(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error) {
	q, err := req.toQuery()
	if err != nil {
		return ListOrdersResponse{}, err
	}
	orders, err := e.queries.ListOrders(ctx, q)
	if err != nil {
		return ListOrdersResponse{}, err
	}

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return ListOrdersResponse{Orders: out}, nil
}

// Summary считает клиентов, заказы и выручку.
func (e *Endpoint) Summary(ctx context.Context, _ SummaryRequest) (SummaryResponse, error) {
	summary, err := e.queries.Summary(ctx)
	if err != nil {
		return SummaryResponse{}, err
	}
	return SummaryResponse{
		Customers: summary.Customers,
		Orders:    summary.Orders,
		Revenue:   summary.Revenue.StringFixed(2),
	}, nil
}
