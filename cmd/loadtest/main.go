package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/crm/internal/api"
	grpcsvc "github.com/vladislavdragonenkov/crm/internal/service/grpc"
)

type loadMode string

const (
	modeCustomer loadMode = "customer"
	modeOrder    loadMode = "order"
)

// codeRejected помечает мутацию, вернувшую ошибки в теле ответа.
const codeRejected = codes.FailedPrecondition

type config struct {
	addr          string
	total         int
	concurrency   int
	connections   int
	timeout       time.Duration
	mode          loadMode
	products      int
	itemsPerOrder int
	price         string
	emailDomain   string
	idempotent    bool
	outputPath    string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.calls++
	if code != codes.OK {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		mr := methodReport{
			Calls:     stats.calls,
			Success:   stats.calls - stats.failed,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
		if name == "scenario" {
			result.TotalScenarios = mr.Calls
			result.FailedScenarios = mr.Failed
			result.ErrorRate = mr.ErrorRate
			result.ScenarioLatencyMs = mr.LatencyMs
			continue
		}
		result.Methods[name] = mr
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 10, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeOrder), "load mode: customer | order")
	fs.IntVar(&cfg.products, "products", 5, "catalog size created before the run (order mode)")
	fs.IntVar(&cfg.itemsPerOrder, "items", 2, "products per order (order mode)")
	fs.StringVar(&cfg.price, "price", "19.99", "price of catalog products")
	fs.StringVar(&cfg.emailDomain, "email-domain", "load.example.com", "domain of generated customer emails")
	fs.BoolVar(&cfg.idempotent, "idempotent", true, "send idempotency-key metadata with mutations")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch loadMode(strings.TrimSpace(modeValue)) {
	case modeCustomer:
		cfg.mode = modeCustomer
	case modeOrder:
		cfg.mode = modeOrder
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", modeValue)
	}

	switch {
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.mode == modeOrder && cfg.products <= 0:
		return cfg, errors.New("products must be > 0 in order mode")
	case cfg.mode == modeOrder && cfg.itemsPerOrder <= 0:
		return cfg, errors.New("items must be > 0 in order mode")
	case strings.TrimSpace(cfg.emailDomain) == "":
		return cfg, errors.New("email-domain is required")
	}
	return cfg, nil
}

// crmClient - часть grpcsvc.Client, нужная нагрузочному тесту.
type crmClient interface {
	CreateCustomer(ctx context.Context, req *api.CreateCustomerRequest, opts ...grpc.CallOption) (*api.CreateCustomerResponse, error)
	CreateProduct(ctx context.Context, req *api.CreateProductRequest, opts ...grpc.CallOption) (*api.CreateProductResponse, error)
	CreateOrder(ctx context.Context, req *api.CreateOrderRequest, opts ...grpc.CallOption) (*api.CreateOrderResponse, error)
}

type runner struct {
	cfg        config
	runID      string
	col        *collector
	productIDs []string
}

// prepareCatalog создаёт товары, которые будут использоваться в заказах.
func (r *runner) prepareCatalog(client crmClient) error {
	if r.cfg.mode != modeOrder {
		return nil
	}
	for i := 0; i < r.cfg.products; i++ {
		resp, err := call(r, "CreateProduct", fmt.Sprintf("lt-product-%s-%d", r.runID, i), func(ctx context.Context) ([]string, error) {
			resp, err := client.CreateProduct(ctx, &api.CreateProductRequest{
				Name:  fmt.Sprintf("load-%s-%d", r.runID, i),
				Price: api.MoneyLiteral(r.cfg.price),
			})
			if err != nil {
				return nil, err
			}
			if resp.Product != nil {
				r.productIDs = append(r.productIDs, resp.Product.ID)
			}
			return resp.Errors, nil
		})
		if err != nil {
			return fmt.Errorf("prepare catalog: %w", err)
		}
		if len(resp) > 0 {
			return fmt.Errorf("prepare catalog: %s", strings.Join(resp, "; "))
		}
	}
	return nil
}

func (r *runner) runScenario(client crmClient, index int) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		r.col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	var customerID string
	errs, err := call(r, "CreateCustomer", fmt.Sprintf("lt-customer-%s-%d", r.runID, index), func(ctx context.Context) ([]string, error) {
		resp, err := client.CreateCustomer(ctx, &api.CreateCustomerRequest{
			Name:  fmt.Sprintf("Load Customer %d", index),
			Email: fmt.Sprintf("lt-%s-%d@%s", r.runID, index, r.cfg.emailDomain),
		})
		if err != nil {
			return nil, err
		}
		if resp.Customer != nil {
			customerID = resp.Customer.ID
		}
		return resp.Errors, nil
	})
	if err != nil || len(errs) > 0 {
		scenarioCode = resultCode(errs, err)
		return scenarioError(errs, err)
	}
	if r.cfg.mode == modeCustomer {
		return nil
	}

	ids := make([]string, 0, r.cfg.itemsPerOrder)
	for i := 0; i < r.cfg.itemsPerOrder; i++ {
		ids = append(ids, r.productIDs[(index+i)%len(r.productIDs)])
	}
	errs, err = call(r, "CreateOrder", fmt.Sprintf("lt-order-%s-%d", r.runID, index), func(ctx context.Context) ([]string, error) {
		resp, err := client.CreateOrder(ctx, &api.CreateOrderRequest{CustomerID: customerID, ProductIDs: ids})
		if err != nil {
			return nil, err
		}
		return resp.Errors, nil
	})
	if err != nil || len(errs) > 0 {
		scenarioCode = resultCode(errs, err)
		return scenarioError(errs, err)
	}
	return nil
}

// call выполняет мутацию с таймаутом и ключом идемпотентности и пишет её в статистику.
func call(r *runner, method, key string, fn func(context.Context) ([]string, error)) ([]string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.timeout)
	defer cancel()
	if r.cfg.idempotent {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcsvc.IdempotencyKeyHeader, key)
	}

	errs, err := fn(ctx)
	r.col.record(method, time.Since(start), resultCode(errs, err))
	return errs, err
}

func resultCode(errs []string, err error) codes.Code {
	if err != nil {
		return status.Code(err)
	}
	if len(errs) > 0 {
		return codeRejected
	}
	return codes.OK
}

func scenarioError(errs []string, err error) error {
	if err != nil {
		return err
	}
	return errors.New(strings.Join(errs, "; "))
}

// execute прогоняет все сценарии через пул воркеров.
func execute(cfg config, clients []crmClient, runID string) (report, error) {
	r := &runner{cfg: cfg, runID: runID, col: newCollector()}
	if err := r.prepareCatalog(clients[0]); err != nil {
		return report{}, err
	}

	startedAt := time.Now()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(client crmClient) {
			defer wg.Done()
			for id := range jobs {
				_ = r.runScenario(client, id)
			}
		}(clients[workerID%len(clients)])
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return r.col.buildReport(startedAt, time.Since(startedAt)), nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]crmClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
	result, err := execute(cfg, clients, runID)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case !filepath.IsLocal(clean):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(clean, append(data, '\n'), 0o600)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintf(w, "Load test summary\nmode=%s total=%d failed=%d error_rate=%.4f\nduration=%.2fs rps=%.2f\n",
		cfg.mode, result.TotalScenarios, result.FailedScenarios, result.ErrorRate, result.DurationSeconds, result.RPS)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "method\tcalls\tfailed\terror_rate\tp50_ms\tp95_ms\tp99_ms\tmax_ms")
	row := func(name string, calls, failed int64, rate float64, l latencySummary) {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\n", name, calls, failed, rate, l.P50, l.P95, l.P99, l.Max)
	}
	row("scenario", result.TotalScenarios, result.FailedScenarios, result.ErrorRate, result.ScenarioLatencyMs)
	for _, name := range slices.Sorted(maps.Keys(result.Methods)) {
		m := result.Methods[name]
		row(name, m.Calls, m.Failed, m.ErrorRate, m.LatencyMs)
	}
	_ = tw.Flush()
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Sorted(slices.Values(values))

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
