package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/api/rest"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	grpcsvc "github.com/vladislavdragonenkov/crm/internal/service/grpc"
	"github.com/vladislavdragonenkov/crm/internal/service/jobs"
	"github.com/vladislavdragonenkov/crm/internal/service/outbox"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

// CRMLifecycleTestSuite поднимает HTTP и gRPC API поверх одного хранилища.
type CRMLifecycleTestSuite struct {
	suite.Suite
	store   *memory.Store
	queries *crm.QueryService
	http    *httptest.Server
	grpc    *grpcsvc.Client
	logger  *log.Entry
}

func (suite *CRMLifecycleTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	suite.logger = baseLogger.WithField("component", "integration-test")

	registry := prometheus.NewRegistry()
	m := metrics.NewCRMMetricsWithRegisterer(registry)
	suite.store = memory.NewStore()
	idem := memory.NewIdempotencyRepository()
	suite.queries = crm.NewQueryService(suite.store, suite.logger)

	endpoint := api.NewEndpoint(
		crm.NewCustomerService(suite.store, suite.logger, crm.WithMetrics(m)),
		crm.NewProductService(suite.store, suite.logger, crm.WithMetrics(m)),
		crm.NewOrderService(suite.store, suite.store, suite.store, suite.logger, crm.WithMetrics(m)),
		suite.queries,
	)

	suite.http = httptest.NewServer(rest.NewRouter(rest.RouterOptions{
		Endpoint:    endpoint,
		Idempotency: idem,
		Gatherer:    registry,
		Logger:      suite.logger,
	}))
	suite.T().Cleanup(suite.http.Close)

	server, _ := grpcsvc.NewServer(grpcsvc.NewCRMService(endpoint, idem, suite.logger), registry, suite.logger)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	suite.T().Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(suite.T(), err)
	suite.T().Cleanup(func() { _ = conn.Close() })
	suite.grpc = grpcsvc.NewClient(conn)
}

func (suite *CRMLifecycleTestSuite) post(path string, body any, out any) {
	data, err := json.Marshal(body)
	require.NoError(suite.T(), err)

	resp, err := http.Post(suite.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(out))
}

func (suite *CRMLifecycleTestSuite) get(path string, out any) {
	resp, err := http.Get(suite.http.URL + path)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(out))
}

// createCatalog создаёт клиента по HTTP и два товара по gRPC.
func (suite *CRMLifecycleTestSuite) createCatalog(ctx context.Context) (api.Customer, api.Product, api.Product) {
	var customer api.CreateCustomerResponse
	suite.post("/api/v1/customers", api.CreateCustomerRequest{Name: "Alice Johnson", Email: "alice@example.com", Phone: "+233201234567"}, &customer)
	require.NotNil(suite.T(), customer.Customer)

	laptop, err := suite.grpc.CreateProduct(ctx, &api.CreateProductRequest{Name: "Laptop", Price: "999.99", Stock: intPtr(10)})
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), laptop.Product)

	headphones, err := suite.grpc.CreateProduct(ctx, &api.CreateProductRequest{Name: "Wireless Headphones", Price: "199.99", Stock: intPtr(30)})
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), headphones.Product)

	return *customer.Customer, *laptop.Product, *headphones.Product
}

func (suite *CRMLifecycleTestSuite) TestOrderAcrossTransports() {
	ctx := context.Background()
	customer, laptop, headphones := suite.createCatalog(ctx)

	var order api.CreateOrderResponse
	suite.post("/api/v1/orders", api.CreateOrderRequest{
		CustomerID: customer.ID,
		ProductIDs: []string{laptop.ID, headphones.ID, headphones.ID},
	}, &order)
	require.Empty(suite.T(), order.Errors)
	require.NotNil(suite.T(), order.Order)
	require.Equal(suite.T(), "1399.97", order.Order.TotalAmount)
	require.Equal(suite.T(), customer.ID, order.Order.Customer.ID)

	orders, err := suite.grpc.ListOrders(ctx, &api.ListOrdersRequest{ProductID: laptop.ID})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders.Orders, 1)

	var summary api.SummaryResponse
	suite.get("/api/v1/summary", &summary)
	require.Equal(suite.T(), api.SummaryResponse{Customers: 1, Orders: 1, Revenue: "1399.97"}, summary)
}

func (suite *CRMLifecycleTestSuite) TestFailedOrderLeavesNoTrace() {
	ctx := context.Background()
	customer, laptop, _ := suite.createCatalog(ctx)

	resp, err := suite.grpc.CreateOrder(ctx, &api.CreateOrderRequest{
		CustomerID: customer.ID,
		ProductIDs: []string{laptop.ID, "ghost-1", "ghost-2", "ghost-1"},
	})
	require.NoError(suite.T(), err)
	require.Nil(suite.T(), resp.Order)
	require.Equal(suite.T(), []string{"Invalid product IDs: ghost-1, ghost-2"}, resp.Errors)

	stats, err := suite.store.Stats(ctx)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 3, stats.PendingCount, "only customer and product events are queued")

	var orders api.ListOrdersResponse
	suite.get("/api/v1/orders", &orders)
	require.Empty(suite.T(), orders.Orders)
}

func (suite *CRMLifecycleTestSuite) TestBulkCreateThenQuery() {
	var bulk api.BulkCreateCustomersResponse
	suite.post("/api/v1/customers/bulk", api.BulkCreateCustomersRequest{Customers: []api.CreateCustomerRequest{
		{Name: "Bob Smith", Email: "bob@example.com", Phone: "123-456-7890"},
		{Name: "Carol Danvers", Email: "carol@example.com", Phone: "+233541234567"},
		{Name: "Broken", Email: "broken@example.com", Phone: "555"},
		{Name: "David Miller", Email: "david@example.com"},
	}}, &bulk)
	require.Len(suite.T(), bulk.Customers, 3)
	require.Equal(suite.T(), []string{"Row 3: Invalid phone format. Use +1234567890 or 123-456-7890."}, bulk.Errors)

	customers, err := suite.grpc.ListCustomers(context.Background(), &api.ListCustomersRequest{OrderBy: "-name"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), customers.Customers, 3)
	require.Equal(suite.T(), "David Miller", customers.Customers[0].Name)
}

func (suite *CRMLifecycleTestSuite) TestOutboxDeliversCreatedEvents() {
	ctx := context.Background()
	customer, laptop, _ := suite.createCatalog(ctx)

	_, err := suite.grpc.CreateOrder(ctx, &api.CreateOrderRequest{CustomerID: customer.ID, ProductIDs: []string{laptop.ID}})
	require.NoError(suite.T(), err)

	mockProducer := mocks.NewSyncProducer(suite.T(), nil)
	for i := 0; i < 4; i++ {
		mockProducer.ExpectSendMessageAndSucceed()
	}
	producer := kafka.NewProducerFromSync(mockProducer, suite.logger)
	worker := outbox.NewWorker(suite.store,
		kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
		outbox.WithLogger(suite.logger),
	)

	require.Equal(suite.T(), 4, worker.ProcessOnce(ctx))
	stats, err := suite.store.Stats(ctx)
	require.NoError(suite.T(), err)
	require.Zero(suite.T(), stats.PendingCount)
	require.NoError(suite.T(), producer.Close())
}

func (suite *CRMLifecycleTestSuite) TestJobsSeeCommittedOrders() {
	ctx := context.Background()
	customer, laptop, headphones := suite.createCatalog(ctx)
	_, err := suite.grpc.CreateOrder(ctx, &api.CreateOrderRequest{CustomerID: customer.ID, ProductIDs: []string{laptop.ID, headphones.ID}})
	require.NoError(suite.T(), err)

	var buf bytes.Buffer
	scheduler := jobs.NewScheduler(suite.logger, nil)
	require.NoError(suite.T(), scheduler.RunOnce(ctx, jobs.NewReminders(suite.queries, jobs.NewSink(&buf), 0, nil)))
	require.Contains(suite.T(), buf.String(), "Retrieved 1 orders")
	require.Contains(suite.T(), buf.String(), "   - Alice Johnson: GHS 1199.98")

	buf.Reset()
	require.NoError(suite.T(), scheduler.RunOnce(ctx, jobs.NewLowStock(suite.store, jobs.NewSink(&buf), 15, 10, nil)))
	require.Contains(suite.T(), buf.String(), "Restocked 1 products")
	require.Contains(suite.T(), buf.String(), "   - Laptop: 10 -> 20")
}

func TestCRMLifecycleSuite(t *testing.T) {
	suite.Run(t, new(CRMLifecycleTestSuite))
}

func intPtr(v int) *int { return &v }
