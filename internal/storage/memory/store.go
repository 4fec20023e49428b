package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// orderRecord хранит заказ в нормализованном виде: ссылки на клиента и товары.
type orderRecord struct {
	id          string
	customerID  string
	productIDs  []string
	totalAmount decimal.Decimal
	orderDate   time.Time
	createdAt   time.Time
}

// Store - in-memory хранилище CRM для локальной разработки и тестов.
// Клиенты, товары, заказы и outbox живут под одним мьютексом, поэтому каждая запись атомарна.
type Store struct {
	mu sync.RWMutex

	customers    []domain.Customer
	customerByID map[string]int
	emailIndex   map[string]string

	products    []domain.Product
	productByID map[string]int

	orders []orderRecord

	outbox    map[string]*outboxRecord
	outboxSeq int
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		customerByID: make(map[string]int),
		emailIndex:   make(map[string]string),
		productByID:  make(map[string]int),
		outbox:       make(map[string]*outboxRecord),
	}
}

// Ping нужен для health-проверок.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Summary считает клиентов, заказы и выручку.
func (s *Store) Summary(ctx context.Context) (domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return domain.Summary{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	revenue := decimal.Zero
	for _, rec := range s.orders {
		revenue = revenue.Add(rec.totalAmount)
	}

	return domain.Summary{
		Customers: len(s.customers),
		Orders:    len(s.orders),
		Revenue:   revenue,
	}, nil
}

// sortStable упорядочивает items по compare; desc разворачивает порядок.
func sortStable[T any](items []T, desc bool, compare func(a, b T) int) {
	slices.SortStableFunc(items, func(a, b T) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

var _ domain.Repository = (*Store)(nil)
