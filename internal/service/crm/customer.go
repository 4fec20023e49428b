package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/validation"
)

// Сообщения операций с клиентами.
const (
	MessageCustomerCreated = "Customer created successfully."
	MessageCustomerFailed  = "Failed to create customer."
	MessageEmailRequired   = "Email is required."
	MessageNameRequired    = "Name is required."
)

// CreateCustomerInput - входные данные для создания клиента.
type CreateCustomerInput struct {
	Name  string
	Email string
	Phone string
}

// RowError - ошибка строки пакетного создания; Row нумеруется с единицы.
type RowError struct {
	Row     int
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// BulkCreateResult - итог пакетного создания клиентов.
type BulkCreateResult struct {
	Created []domain.Customer
	Errors  []RowError
}

// ErrorStrings возвращает ошибки строк в виде "Row N: message".
func (r BulkCreateResult) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	return out
}

// CustomerService создаёт клиентов.
type CustomerService struct {
	base
	repo domain.CustomerRepository
}

// NewCustomerService создаёт сервис клиентов.
func NewCustomerService(repo domain.CustomerRepository, logger *log.Entry, opts ...Option) *CustomerService {
	return &CustomerService{
		base: newBase("customer-service", logger, opts),
		repo: repo,
	}
}

// CreateCustomer проверяет и сохраняет одного клиента.
func (s *CustomerService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (domain.Customer, error) {
	started := time.Now()
	customer, err := s.createCustomer(ctx, in)
	s.finish("create_customer", started, err)
	return customer, err
}

// BulkCreateCustomers создаёт клиентов построчно. Каждая строка независима:
// ошибка строки попадает в Errors и не отменяет остальные строки.
func (s *CustomerService) BulkCreateCustomers(ctx context.Context, inputs []CreateCustomerInput) BulkCreateResult {
	started := time.Now()
	result := BulkCreateResult{
		Created: make([]domain.Customer, 0, len(inputs)),
		Errors:  []RowError{},
	}

	for i, in := range inputs {
		customer, err := s.createCustomer(ctx, in)
		s.metrics.RecordBulkRow(resultOf(err))
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     i + 1,
				Message: strings.Join(domain.ErrorMessages(err), "; "),
			})
			if domain.KindOf(err) == domain.KindInfrastructure {
				s.logger.WithError(err).WithField("row", i+1).Error("bulk customer row failed")
			}
			continue
		}
		result.Created = append(result.Created, customer)
	}

	s.metrics.RecordMutation("bulk_create_customers", metrics.ResultSuccess, time.Since(started))
	s.logger.WithFields(log.Fields{
		"rows":    len(inputs),
		"created": len(result.Created),
		"errors":  len(result.Errors),
	}).Info("bulk customer creation finished")

	return result
}

func (s *CustomerService) createCustomer(ctx context.Context, in CreateCustomerInput) (domain.Customer, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	// Телефон проверяется как есть: пробелы по краям делают его невалидным.
	phone := in.Phone

	if name == "" {
		return domain.Customer{}, domain.NewValidationError(domain.ErrNameRequired, MessageNameRequired)
	}
	if email == "" {
		return domain.Customer{}, domain.NewValidationError(nil, MessageEmailRequired)
	}

	_, err := s.repo.FindCustomerByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.Customer{}, emailConflict(email)
	case !errors.Is(err, domain.ErrCustomerNotFound):
		return domain.Customer{}, domain.NewInfrastructureError(fmt.Errorf("find customer by email: %w", err), MessageCustomerFailed)
	}

	if err := validation.ValidatePhone(phone); err != nil {
		return domain.Customer{}, domain.NewValidationError(err, err.Error())
	}

	customer := domain.Customer{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: s.now(),
	}
	msg, err := newOutboxMessage(domain.AggregateCustomer, customer.ID, domain.EventCustomerCreated, kafka.NewCustomerEvent(customer))
	if err != nil {
		return domain.Customer{}, domain.NewInfrastructureError(err, MessageCustomerFailed)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.NewCustomer{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		CreatedAt: customer.CreatedAt,
		Outbox:    []domain.OutboxMessage{msg},
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			return domain.Customer{}, emailConflict(email)
		}
		return domain.Customer{}, domain.NewInfrastructureError(fmt.Errorf("create customer: %w", err), MessageCustomerFailed)
	}

	return created, nil
}

func emailConflict(email string) error {
	return domain.NewConflictError(domain.ErrEmailAlreadyExists, fmt.Sprintf("Email '%s' already exists.", email))
}
