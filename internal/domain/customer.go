package domain

import "time"

// Customer описывает клиента CRM.
type Customer struct {
	ID    string
	Name  string
	Email string
	// Phone пустой, если клиент не указал телефон.
	Phone     string
	CreatedAt time.Time
}

// NewCustomer - нормализованные данные для создания клиента в репозитории.
type NewCustomer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	// Outbox пишется в той же транзакции, что и сам клиент.
	Outbox []OutboxMessage
}
