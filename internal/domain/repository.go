package domain

import (
	"context"
	"time"
)

// CustomerRepository описывает хранилище клиентов.
type CustomerRepository interface {
	// FindCustomerByEmail ищет клиента по email без учёта регистра; ErrCustomerNotFound, если нет.
	FindCustomerByEmail(ctx context.Context, email string) (Customer, error)
	// FindCustomerByID возвращает клиента или ErrCustomerNotFound.
	FindCustomerByID(ctx context.Context, id string) (Customer, error)
	// CreateCustomer сохраняет клиента и его outbox-события; ErrEmailAlreadyExists при дубликате email.
	CreateCustomer(ctx context.Context, c NewCustomer) (Customer, error)
	ListCustomers(ctx context.Context, q CustomerQuery) ([]Customer, error)
}

// ProductRepository описывает хранилище товаров.
type ProductRepository interface {
	CreateProduct(ctx context.Context, p NewProduct) (Product, error)
	// FindProductsByIDs возвращает найденные товары по уникальным идентификаторам; отсутствующие пропускаются.
	FindProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	// RestockLowStock увеличивает остаток на increment для товаров с остатком ниже threshold.
	RestockLowStock(ctx context.Context, threshold, increment int) ([]Restock, error)
}

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	// CreateOrderAtomic пишет заказ, его позиции и outbox в одной транзакции.
	// Ничего не сохраняется, если любой шаг завершился ошибкой.
	CreateOrderAtomic(ctx context.Context, o NewOrder) (Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]Order, error)
}

// ReportRepository считает агрегаты для отчётов.
type ReportRepository interface {
	Summary(ctx context.Context) (Summary, error)
	// OrdersSince возвращает заказы с датой не раньше since.
	OrdersSince(ctx context.Context, since time.Time) ([]Order, error)
}

// Repository объединяет все хранилища CRM одного драйвера.
type Repository interface {
	CustomerRepository
	ProductRepository
	OrderRepository
	ReportRepository
}
