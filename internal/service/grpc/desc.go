package grpcsvc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/crm/internal/api"
)

// ServiceName - полное имя gRPC-сервиса CRM.
const ServiceName = "crm.v1.CRMService"

// Полные имена методов.
const (
	MethodCreateCustomer      = "/" + ServiceName + "/CreateCustomer"
	MethodBulkCreateCustomers = "/" + ServiceName + "/BulkCreateCustomers"
	MethodCreateProduct       = "/" + ServiceName + "/CreateProduct"
	MethodCreateOrder         = "/" + ServiceName + "/CreateOrder"
	MethodListCustomers       = "/" + ServiceName + "/ListCustomers"
	MethodListProducts        = "/" + ServiceName + "/ListProducts"
	MethodListOrders          = "/" + ServiceName + "/ListOrders"
	MethodGetSummary          = "/" + ServiceName + "/GetSummary"
)

// CRMServer - серверная часть CRM API.
type CRMServer interface {
	CreateCustomer(context.Context, *api.CreateCustomerRequest) (*api.CreateCustomerResponse, error)
	BulkCreateCustomers(context.Context, *api.BulkCreateCustomersRequest) (*api.BulkCreateCustomersResponse, error)
	CreateProduct(context.Context, *api.CreateProductRequest) (*api.CreateProductResponse, error)
	CreateOrder(context.Context, *api.CreateOrderRequest) (*api.CreateOrderResponse, error)
	ListCustomers(context.Context, *api.ListCustomersRequest) (*api.ListCustomersResponse, error)
	ListProducts(context.Context, *api.ListProductsRequest) (*api.ListProductsResponse, error)
	ListOrders(context.Context, *api.ListOrdersRequest) (*api.ListOrdersResponse, error)
	GetSummary(context.Context, *api.SummaryRequest) (*api.SummaryResponse, error)
}

func unaryMethod[Req, Resp any](name string, call func(CRMServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CRMServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CRMServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc описывает CRM API без сгенерированного protobuf-кода; сообщения идут через JSON-кодек.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CRMServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateCustomer", CRMServer.CreateCustomer),
		unaryMethod("BulkCreateCustomers", CRMServer.BulkCreateCustomers),
		unaryMethod("CreateProduct", CRMServer.CreateProduct),
		unaryMethod("CreateOrder", CRMServer.CreateOrder),
		unaryMethod("ListCustomers", CRMServer.ListCustomers),
		unaryMethod("ListProducts", CRMServer.ListProducts),
		unaryMethod("ListOrders", CRMServer.ListOrders),
		unaryMethod("GetSummary", CRMServer.GetSummary),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crm/v1/crm.json",
}

// RegisterCRMServer регистрирует реализацию на gRPC-сервере.
func RegisterCRMServer(s grpc.ServiceRegistrar, srv CRMServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client - клиент CRM API поверх JSON-кодека.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient создаёт клиента CRMService поверх соединения с JSON-кодеком.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCustomer вызывает CRMService/CreateCustomer.
func (c *Client) CreateCustomer(ctx context.Context, req *api.CreateCustomerRequest, opts ...grpc.CallOption) (*api.CreateCustomerResponse, error) {
	return invoke[api.CreateCustomerRequest, api.CreateCustomerResponse](ctx, c, MethodCreateCustomer, req, opts)
}

// BulkCreateCustomers вызывает CRMService/BulkCreateCustomers.
func (c *Client) BulkCreateCustomers(ctx context.Context, req *api.BulkCreateCustomersRequest, opts ...grpc.CallOption) (*api.BulkCreateCustomersResponse, error) {
	return invoke[api.BulkCreateCustomersRequest, api.BulkCreateCustomersResponse](ctx, c, MethodBulkCreateCustomers, req, opts)
}

// CreateProduct вызывает CRMService/CreateProduct.
func (c *Client) CreateProduct(ctx context.Context, req *api.CreateProductRequest, opts ...grpc.CallOption) (*api.CreateProductResponse, error) {
	return invoke[api.CreateProductRequest, api.CreateProductResponse](ctx, c, MethodCreateProduct, req, opts)
}

// CreateOrder вызывает CRMService/CreateOrder.
func (c *Client) CreateOrder(ctx context.Context, req *api.CreateOrderRequest, opts ...grpc.CallOption) (*api.CreateOrderResponse, error) {
	return invoke[api.CreateOrderRequest, api.CreateOrderResponse](ctx, c, MethodCreateOrder, req, opts)
}

func (c *Client) ListCustomers(ctx context.Context, req *api.ListCustomersRequest, opts ...grpc.CallOption) (*api.ListCustomersResponse, error) {
	return invoke[api.ListCustomersRequest, api.ListCustomersResponse](ctx, c, MethodListCustomers, req, opts)
}

func (c *Client) ListProducts(ctx context.Context, req *api.ListProductsRequest, opts ...grpc.CallOption) (*api.ListProductsResponse, error) {
	return invoke[api.ListProductsRequest, api.ListProductsResponse](ctx, c, MethodListProducts, req, opts)
}

func (c *Client) ListOrders(ctx context.Context, req *api.ListOrdersRequest, opts ...grpc.CallOption) (*api.ListOrdersResponse, error) {
	return invoke[api.ListOrdersRequest, api.ListOrdersResponse](ctx, c, MethodListOrders, req, opts)
}

func (c *Client) GetSummary(ctx context.Context, req *api.SummaryRequest, opts ...grpc.CallOption) (*api.SummaryResponse, error) {
	return invoke[api.SummaryRequest, api.SummaryResponse](ctx, c, MethodGetSummary, req, opts)
}
