package domain

import (
	"errors"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора клиента в заказе.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrProductsRequired = errors.New("order must contain at least one product")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка несоответствия суммы заказа и суммы цен товаров.
	ErrAmountMismatch = errors.New("order total does not match products sum")
	// Ошибка неположительной цены товара.
	ErrPriceNotPositive = errors.New("product price must be positive")
	// ErrPriceScale - у цены больше знаков после запятой, чем хранит каталог.
	ErrPriceScale = errors.New("product price has more than two decimal places")
	// ErrNameRequired - имя клиента пустое после обрезки пробелов.
	ErrNameRequired = errors.New("customer name is required")
	// Ошибка отрицательного остатка товара.
	ErrStockNegative = errors.New("product stock must be non-negative")
	// ErrInvalidPhone - телефон не соответствует допустимым форматам.
	ErrInvalidPhone = errors.New("invalid phone format")
	// ErrInvalidMoney - значение не удалось разобрать как точную денежную сумму.
	ErrInvalidMoney = errors.New("invalid money value")
	// ErrCustomerNotFound возвращается, если клиент не найден в репозитории.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = errors.New("product not found")
	// ErrEmailAlreadyExists - нарушено ограничение уникальности email.
	ErrEmailAlreadyExists = errors.New("customer email already exists")
	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired - ключ идемпотентности пустой.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired - хэш запроса пустой.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound - запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists - запрос с таким ключом уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch - ключ повторно использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// MessageInternal - сообщение, которое видит клиент при инфраструктурном сбое.
const MessageInternal = "Internal error. Please try again later."

// ErrorKind классифицирует ошибки операций CRM.
type ErrorKind string

const (
	// KindValidation - некорректные входные данные (телефон, цена, остаток, пустой список товаров).
	KindValidation ErrorKind = "validation"
	// KindConflict - конфликт уникальности (повторный email).
	KindConflict ErrorKind = "conflict"
	// KindReference - ссылка на несуществующего клиента или товар.
	KindReference ErrorKind = "reference"
	// KindInfrastructure - недоступность хранилища, сбой транзакции и т.п.
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error - ошибка операции с видом и списком сообщений для клиента.
type Error struct {
	Kind     ErrorKind
	Messages []string
	// Err - исходная причина, доступна через errors.Is/As.
	Err error
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return strings.Join(e.Messages, "; ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации.
func NewValidationError(cause error, messages ...string) *Error {
	return &Error{Kind: KindValidation, Messages: messages, Err: cause}
}

// NewConflictError создаёт ошибку конфликта.
func NewConflictError(cause error, messages ...string) *Error {
	return &Error{Kind: KindConflict, Messages: messages, Err: cause}
}

// NewReferenceError создаёт ошибку ссылки на несуществующую сущность.
func NewReferenceError(cause error, messages ...string) *Error {
	return &Error{Kind: KindReference, Messages: messages, Err: cause}
}

// NewInfrastructureError создаёт ошибку инфраструктуры.
func NewInfrastructureError(cause error, messages ...string) *Error {
	return &Error{Kind: KindInfrastructure, Messages: messages, Err: cause}
}

// KindOf возвращает вид ошибки; ошибки вне таксономии считаются инфраструктурными.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInfrastructure
}

// ErrorMessages приводит любую ошибку к списку сообщений для ответа клиенту.
func ErrorMessages(err error) []string {
	if err == nil {
		return []string{}
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && len(domainErr.Messages) > 0 {
		return append([]string(nil), domainErr.Messages...)
	}
	return []string{MessageInternal}
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
