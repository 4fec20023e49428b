package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/crm/internal/api"
	grpcsvc "github.com/vladislavdragonenkov/crm/internal/service/grpc"
)

type fakeCRMClient struct {
	mu       sync.Mutex
	keys     []string
	products int
	orders   [][]string

	customerFn func(*api.CreateCustomerRequest) (*api.CreateCustomerResponse, error)
	orderFn    func(*api.CreateOrderRequest) (*api.CreateOrderResponse, error)
}

func (f *fakeCRMClient) rememberKey(ctx context.Context) {
	md, _ := metadata.FromOutgoingContext(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, md.Get(grpcsvc.IdempotencyKeyHeader)...)
}

func (f *fakeCRMClient) CreateCustomer(ctx context.Context, req *api.CreateCustomerRequest, _ ...grpc.CallOption) (*api.CreateCustomerResponse, error) {
	f.rememberKey(ctx)
	if f.customerFn != nil {
		return f.customerFn(req)
	}
	return &api.CreateCustomerResponse{Customer: &api.Customer{ID: "c-" + req.Email}}, nil
}

func (f *fakeCRMClient) CreateProduct(ctx context.Context, req *api.CreateProductRequest, _ ...grpc.CallOption) (*api.CreateProductResponse, error) {
	f.rememberKey(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products++
	return &api.CreateProductResponse{Product: &api.Product{ID: fmt.Sprintf("p-%d", f.products), Name: req.Name}}, nil
}

func (f *fakeCRMClient) CreateOrder(ctx context.Context, req *api.CreateOrderRequest, _ ...grpc.CallOption) (*api.CreateOrderResponse, error) {
	f.rememberKey(ctx)
	f.mu.Lock()
	f.orders = append(f.orders, req.ProductIDs)
	f.mu.Unlock()
	if f.orderFn != nil {
		return f.orderFn(req)
	}
	return &api.CreateOrderResponse{Order: &api.Order{ID: "o-1", TotalAmount: "39.98"}}, nil
}

func testConfig(mode loadMode) config {
	return config{
		total:         20,
		concurrency:   4,
		connections:   1,
		timeout:       time.Second,
		mode:          mode,
		products:      3,
		itemsPerOrder: 2,
		price:         "19.99",
		emailDomain:   "load.test",
		idempotent:    true,
	}
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, cfg config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, "localhost:50051", cfg.addr)
				assert.Equal(t, modeOrder, cfg.mode)
				assert.Equal(t, 400, cfg.total)
				assert.True(t, cfg.idempotent)
			},
		},
		{
			name: "customer mode without catalog",
			args: []string{"-mode", "customer", "-products", "0", "-idempotent=false"},
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, modeCustomer, cfg.mode)
				assert.False(t, cfg.idempotent)
			},
		},
		{name: "unknown mode", args: []string{"-mode", "refund"}, wantErr: "unsupported mode"},
		{name: "zero total", args: []string{"-total", "0"}, wantErr: "total must be > 0"},
		{name: "zero concurrency", args: []string{"-concurrency", "0"}, wantErr: "concurrency must be > 0"},
		{name: "zero connections", args: []string{"-connections", "0"}, wantErr: "connections must be > 0"},
		{name: "zero timeout", args: []string{"-timeout", "0s"}, wantErr: "timeout must be > 0"},
		{name: "order mode needs catalog", args: []string{"-products", "0"}, wantErr: "products must be > 0"},
		{name: "order mode needs items", args: []string{"-items", "0"}, wantErr: "items must be > 0"},
		{name: "blank email domain", args: []string{"-email-domain", " "}, wantErr: "email-domain is required"},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseConfig(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestExecute_OrderMode(t *testing.T) {
	t.Parallel()

	client := &fakeCRMClient{}
	result, err := execute(testConfig(modeOrder), []crmClient{client}, "run1")
	require.NoError(t, err)

	assert.Equal(t, int64(20), result.TotalScenarios)
	assert.Zero(t, result.FailedScenarios)
	assert.Equal(t, int64(3), result.Methods["CreateProduct"].Calls)
	assert.Equal(t, int64(20), result.Methods["CreateCustomer"].Calls)
	assert.Equal(t, int64(20), result.Methods["CreateOrder"].Calls)

	require.Len(t, client.orders, 20)
	for _, ids := range client.orders {
		assert.Len(t, ids, 2)
	}
	// 3 товара, 20 клиентов и 20 заказов, у каждой мутации свой ключ.
	assert.Len(t, client.keys, 43)
	assert.Contains(t, client.keys, "lt-order-run1-0")
}

func TestExecute_CustomerModeSkipsCatalog(t *testing.T) {
	t.Parallel()

	client := &fakeCRMClient{}
	cfg := testConfig(modeCustomer)
	cfg.idempotent = false

	result, err := execute(cfg, []crmClient{client}, "run2")
	require.NoError(t, err)

	assert.Equal(t, int64(20), result.TotalScenarios)
	assert.NotContains(t, result.Methods, "CreateProduct")
	assert.NotContains(t, result.Methods, "CreateOrder")
	assert.Empty(t, client.keys)
}

func TestExecute_CountsFailures(t *testing.T) {
	t.Parallel()

	client := &fakeCRMClient{
		customerFn: func(req *api.CreateCustomerRequest) (*api.CreateCustomerResponse, error) {
			if strings.HasPrefix(req.Email, "lt-run3-1@") {
				return nil, status.Error(codes.Unavailable, "down")
			}
			return &api.CreateCustomerResponse{Customer: &api.Customer{ID: "c"}}, nil
		},
		orderFn: func(*api.CreateOrderRequest) (*api.CreateOrderResponse, error) {
			return &api.CreateOrderResponse{Errors: []string{"Invalid product IDs: x"}}, nil
		},
	}
	cfg := testConfig(modeOrder)
	cfg.total = 5

	result, err := execute(cfg, []crmClient{client}, "run3")
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.FailedScenarios)
	assert.InDelta(t, 1.0, result.ErrorRate, 1e-9)
	assert.Equal(t, int64(1), result.Methods["CreateCustomer"].Codes[codes.Unavailable.String()])
	assert.Equal(t, int64(4), result.Methods["CreateOrder"].Codes[codeRejected.String()])
}

func TestResultCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, codes.OK, resultCode(nil, nil))
	assert.Equal(t, codeRejected, resultCode([]string{"bad"}, nil))
	assert.Equal(t, codes.DeadlineExceeded, resultCode(nil, status.Error(codes.DeadlineExceeded, "slow")))
	assert.Equal(t, codes.Unknown, resultCode(nil, errors.New("plain")))
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []float64{1, 2, 3, 4, 5}
	assert.Zero(t, percentile(nil, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 99))
	assert.Equal(t, 3.0, percentile(sorted, 50))
	assert.InDelta(t, 4.8, percentile(sorted, 95), 1e-9)

	summary := buildLatencySummary([]float64{5, 1, 3})
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 5.0, summary.Max)
	assert.Equal(t, 3.0, summary.Avg)
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.Error(t, writeJSONReport(".", report{}))
	require.Error(t, writeJSONReport("../escape.json", report{}))

	require.NoError(t, writeJSONReport("report.json", report{TotalScenarios: 3}))
	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)

	var decoded report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, int64(3), decoded.TotalScenarios)
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	printReport(&out, report{
		TotalScenarios: 2,
		Methods: map[string]methodReport{
			"CreateOrder":    {Calls: 2, Success: 2},
			"CreateCustomer": {Calls: 2, Success: 2},
		},
	}, testConfig(modeOrder))

	text := out.String()
	assert.Contains(t, text, "mode=order total=2")
	assert.Contains(t, text, "scenario")
	assert.Less(t, strings.Index(text, "CreateCustomer"), strings.Index(text, "CreateOrder"))
}
