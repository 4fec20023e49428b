package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// FindCustomerByEmail ищет клиента по email без учёта регистра.
func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return s.customers[s.customerByID[id]], nil
}

// FindCustomerByID возвращает клиента или ErrCustomerNotFound.
func (s *Store) FindCustomerByID(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.customerByID[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return s.customers[idx], nil
}

// CreateCustomer сохраняет клиента. Уникальность email проверяется под блокировкой записи,
// поэтому из двух конкурентных вставок одного email проходит только одна.
func (s *Store) CreateCustomer(ctx context.Context, c domain.NewCustomer) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	email := strings.ToLower(c.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailIndex[email]; exists {
		return domain.Customer{}, domain.ErrEmailAlreadyExists
	}
	if _, exists := s.customerByID[c.ID]; exists {
		return domain.Customer{}, fmt.Errorf("customer id %q already exists", c.ID)
	}

	customer := domain.Customer{
		ID:        c.ID,
		Name:      c.Name,
		Email:     email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}

	s.customerByID[customer.ID] = len(s.customers)
	s.customers = append(s.customers, customer)
	s.emailIndex[email] = customer.ID
	s.enqueueLocked(c.Outbox)

	return customer, nil
}

// ListCustomers возвращает клиентов по фильтру; без сортировки - в порядке вставки.
func (s *Store) ListCustomers(ctx context.Context, q domain.CustomerQuery) ([]domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if q.Matches(c) {
			result = append(result, c)
		}
	}
	s.mu.RUnlock()

	if ordering, ok := q.Ordering(); ok {
		sortStable(result, ordering.Desc, func(a, b domain.Customer) int {
			switch ordering.Field {
			case domain.FieldName:
				return strings.Compare(a.Name, b.Name)
			case domain.FieldEmail:
				return strings.Compare(a.Email, b.Email)
			case domain.FieldCreatedAt:
				return a.CreatedAt.Compare(b.CreatedAt)
			default:
				return strings.Compare(a.ID, b.ID)
			}
		})
	}

	return result, nil
}
