package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	grpcsvc "github.com/vladislavdragonenkov/crm/internal/service/grpc"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

type testEnv struct {
	client *grpcsvc.Client
	conn   *grpc.ClientConn
	store  *memory.Store
	idem   domain.IdempotencyRepository
}

func startServer(t *testing.T) testEnv {
	t.Helper()

	store := memory.NewStore()
	idem := memory.NewIdempotencyRepository()
	endpoint := api.NewEndpoint(
		crm.NewCustomerService(store, nil),
		crm.NewProductService(store, nil),
		crm.NewOrderService(store, store, store, nil),
		crm.NewQueryService(store, nil),
	)

	server, _ := grpcsvc.NewServer(grpcsvc.NewCRMService(endpoint, idem, nil), prometheus.NewRegistry(), nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return testEnv{client: grpcsvc.NewClient(conn), conn: conn, store: store, idem: idem}
}

func withKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, grpcsvc.IdempotencyKeyHeader, key)
}

func TestCRMService_CreateOrderFlow(t *testing.T) {
	env := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	customer, err := env.client.CreateCustomer(ctx, &api.CreateCustomerRequest{Name: "Alice", Email: "Alice@Example.com", Phone: "+233201234567"})
	require.NoError(t, err)
	require.NotNil(t, customer.Customer)
	assert.Equal(t, "alice@example.com", customer.Customer.Email)
	assert.Equal(t, crm.MessageCustomerCreated, customer.Message)

	laptop, err := env.client.CreateProduct(ctx, &api.CreateProductRequest{Name: "Laptop", Price: "999.99", Stock: intPtr(10)})
	require.NoError(t, err)
	require.NotNil(t, laptop.Product)
	mouse, err := env.client.CreateProduct(ctx, &api.CreateProductRequest{Name: "Mouse", Price: "10.01"})
	require.NoError(t, err)
	require.NotNil(t, mouse.Product)
	assert.Equal(t, 0, mouse.Product.Stock)

	order, err := env.client.CreateOrder(ctx, &api.CreateOrderRequest{
		CustomerID: customer.Customer.ID,
		ProductIDs: []string{laptop.Product.ID, mouse.Product.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, order.Order)
	assert.Equal(t, "1010.00", order.Order.TotalAmount)
	assert.Empty(t, order.Errors)

	summary, err := env.client.GetSummary(ctx, &api.SummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Customers)
	assert.Equal(t, 1, summary.Orders)
	assert.Equal(t, "1010.00", summary.Revenue)

	orders, err := env.client.ListOrders(ctx, &api.ListOrdersRequest{CustomerNameContains: "ali"})
	require.NoError(t, err)
	assert.Len(t, orders.Orders, 1)
}

func TestCRMService_MutationErrorsInBody(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	product, err := env.client.CreateProduct(ctx, &api.CreateProductRequest{Name: "Broken", Price: "-1", Stock: intPtr(-1)})
	require.NoError(t, err)
	assert.Nil(t, product.Product)
	assert.Equal(t, []string{crm.MessagePriceNotPositive, crm.MessageStockNegative}, product.Errors)

	order, err := env.client.CreateOrder(ctx, &api.CreateOrderRequest{CustomerID: "missing", ProductIDs: []string{"p1"}})
	require.NoError(t, err)
	assert.Nil(t, order.Order)
	assert.Equal(t, []string{"Customer with id 'missing' does not exist."}, order.Errors)

	bulk, err := env.client.BulkCreateCustomers(ctx, &api.BulkCreateCustomersRequest{Customers: []api.CreateCustomerRequest{
		{Name: "Bob", Email: "bob@example.com", Phone: "123-456-7890"},
		{Name: "Bad", Email: "bad@example.com", Phone: "12ab"},
	}})
	require.NoError(t, err)
	assert.Len(t, bulk.Customers, 1)
	assert.Equal(t, []string{"Row 2: Invalid phone format. Use +1234567890 or 123-456-7890."}, bulk.Errors)
}

func TestCRMService_ReadFilterValidation(t *testing.T) {
	env := startServer(t)

	_, err := env.client.ListProducts(context.Background(), &api.ListProductsRequest{PriceMin: "abc"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "Invalid decimal value: abc")
}

func TestCRMService_IdempotentReplay(t *testing.T) {
	env := startServer(t)
	ctx := withKey(context.Background(), "key-1")
	req := &api.CreateCustomerRequest{Name: "Carol", Email: "carol@example.com"}

	first, err := env.client.CreateCustomer(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first.Customer)

	second, err := env.client.CreateCustomer(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, second.Customer)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Empty(t, second.Errors)

	customers, err := env.client.ListCustomers(context.Background(), &api.ListCustomersRequest{})
	require.NoError(t, err)
	assert.Len(t, customers.Customers, 1)

	record, err := env.idem.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, record.Status)
}

func TestCRMService_IdempotencyKeyReusedWithDifferentPayload(t *testing.T) {
	env := startServer(t)
	ctx := withKey(context.Background(), "key-2")

	_, err := env.client.CreateCustomer(ctx, &api.CreateCustomerRequest{Name: "Ann", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = env.client.CreateCustomer(ctx, &api.CreateCustomerRequest{Name: "Ben", Email: "b@example.com"})
	require.Error(t, err)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestCRMService_IdempotencyKeyStillProcessing(t *testing.T) {
	env := startServer(t)
	req := &api.CreateProductRequest{Name: "Tablet", Price: "399.99"}

	hash, err := api.RequestHash(grpcsvc.MethodCreateProduct, req)
	require.NoError(t, err)
	_, err = env.idem.CreateProcessing(context.Background(), "key-3", hash, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = env.client.CreateProduct(withKey(context.Background(), "key-3"), req)
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestCRMService_WithoutKeyIsNotCached(t *testing.T) {
	env := startServer(t)
	req := &api.CreateCustomerRequest{Name: "Dave", Email: "dave@example.com"}

	_, err := env.client.CreateCustomer(context.Background(), req)
	require.NoError(t, err)
	second, err := env.client.CreateCustomer(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, second.Customer)
	assert.Equal(t, []string{"Email 'dave@example.com' already exists."}, second.Errors)
}

func TestNewServer_Health(t *testing.T) {
	env := startServer(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcsvc.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func intPtr(v int) *int { return &v }
