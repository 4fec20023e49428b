// Package seed наполняет CRM демонстрационными данными через сервисы.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/validation"
)

// DefaultOrders - число случайных заказов по умолчанию.
const DefaultOrders = 3

// maxProductsPerOrder ограничивает размер случайного заказа.
const maxProductsPerOrder = 3

// Customer - клиент в наборе данных.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Product - товар в наборе данных; Price может быть строкой или числом.
type Product struct {
	Name  string `json:"name"`
	Price any    `json:"price"`
	Stock int    `json:"stock"`
}

// Dataset - клиенты и товары для наполнения.
type Dataset struct {
	Customers []Customer `json:"customers"`
	Products  []Product  `json:"products"`
}

// DefaultDataset возвращает стандартный демонстрационный набор.
func DefaultDataset() Dataset {
	return Dataset{
		Customers: []Customer{
			{Name: "Alice Johnson", Email: "alice@example.com", Phone: "+233201234567"},
			{Name: "Bob Smith", Email: "bob@example.com", Phone: "123-456-7890"},
			{Name: "Carol Danvers", Email: "carol@example.com", Phone: "+233541234567"},
			{Name: "David Miller", Email: "david@example.com"},
		},
		Products: []Product{
			{Name: "Laptop", Price: "999.99", Stock: 10},
			{Name: "Smartphone", Price: "699.99", Stock: 25},
			{Name: "Tablet", Price: "399.99", Stock: 15},
			{Name: "Wireless Headphones", Price: "199.99", Stock: 30},
			{Name: "Smartwatch", Price: "249.99", Stock: 20},
		},
	}
}

// ReadDataset читает набор из JSON; числовые цены сохраняют исходные цифры.
func ReadDataset(r io.Reader) (Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// Result - итог наполнения.
type Result struct {
	Customers        []domain.Customer
	Products         []domain.Product
	CustomersCreated int
	ProductsCreated  int
	Orders           []domain.Order
}

// Services - сервисы, через которые идёт наполнение.
type Services struct {
	Customers *crm.CustomerService
	Products  *crm.ProductService
	Orders    *crm.OrderService
	Queries   *crm.QueryService
}

// Seeder создаёт отсутствующих клиентов и товары и несколько случайных заказов.
type Seeder struct {
	services Services
	rng      *rand.Rand
	logger   *log.Entry
}

// NewSeeder создаёт Seeder; rng задаёт выбор клиентов и товаров для заказов.
func NewSeeder(services Services, rng *rand.Rand, logger *log.Entry) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Seeder{services: services, rng: rng, logger: logger.WithField("component", "seeder")}
}

// Run наполняет хранилище. Повторный запуск не дублирует клиентов и товары, но добавляет заказы.
func (s *Seeder) Run(ctx context.Context, ds Dataset, orders int) (Result, error) {
	var res Result

	for _, c := range ds.Customers {
		customer, created, err := s.ensureCustomer(ctx, c)
		if err != nil {
			return res, err
		}
		if created {
			res.CustomersCreated++
		}
		res.Customers = append(res.Customers, customer)
	}

	for _, p := range ds.Products {
		product, created, err := s.ensureProduct(ctx, p)
		if err != nil {
			return res, err
		}
		if created {
			res.ProductsCreated++
		}
		res.Products = append(res.Products, product)
	}

	if len(res.Customers) == 0 || len(res.Products) == 0 {
		s.logger.Warn("cannot create orders: customers or products missing")
		return res, nil
	}

	for i := 0; i < orders; i++ {
		order, err := s.createRandomOrder(ctx, res.Customers, res.Products)
		if err != nil {
			return res, err
		}
		res.Orders = append(res.Orders, order)
	}
	return res, nil
}

func (s *Seeder) ensureCustomer(ctx context.Context, c Customer) (domain.Customer, bool, error) {
	existing, err := s.services.Queries.FindCustomerByEmail(ctx, c.Email)
	switch {
	case err == nil:
		s.logger.WithField("name", existing.Name).Info("customer already exists")
		return existing, false, nil
	case !errors.Is(err, domain.ErrCustomerNotFound):
		return domain.Customer{}, false, err
	}

	customer, err := s.services.Customers.CreateCustomer(ctx, crm.CreateCustomerInput{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
	})
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("seed customer %s: %w", c.Email, err)
	}
	s.logger.WithField("name", customer.Name).Info("created customer")
	return customer, true, nil
}

func (s *Seeder) ensureProduct(ctx context.Context, p Product) (domain.Product, bool, error) {
	existing, err := s.services.Queries.ListProducts(ctx, domain.ProductQuery{NameContains: p.Name})
	if err != nil {
		return domain.Product{}, false, err
	}
	for _, candidate := range existing {
		if strings.EqualFold(candidate.Name, p.Name) {
			s.logger.WithField("name", candidate.Name).Info("product already exists")
			return candidate, false, nil
		}
	}

	price, err := validation.ParseMoneyValue(p.Price)
	if err != nil {
		return domain.Product{}, false, domain.NewValidationError(fmt.Errorf("seed product %s: %w", p.Name, err), err.Error())
	}
	stock := p.Stock
	product, err := s.services.Products.CreateProduct(ctx, crm.CreateProductInput{
		Name:  p.Name,
		Price: price.String(),
		Stock: &stock,
	})
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("seed product %s: %w", p.Name, err)
	}
	s.logger.WithField("name", product.Name).Info("created product")
	return product, true, nil
}

func (s *Seeder) createRandomOrder(ctx context.Context, customers []domain.Customer, products []domain.Product) (domain.Order, error) {
	customer := customers[s.rng.IntN(len(customers))]

	k := 1 + s.rng.IntN(min(maxProductsPerOrder, len(products)))
	ids := make([]string, 0, k)
	for _, i := range s.rng.Perm(len(products))[:k] {
		ids = append(ids, products[i].ID)
	}

	order, err := s.services.Orders.CreateOrder(ctx, crm.CreateOrderInput{CustomerID: customer.ID, ProductIDs: ids})
	if err != nil {
		return domain.Order{}, fmt.Errorf("seed order for %s: %w", customer.Email, err)
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"customer": customer.Name,
		"products": len(ids),
	}).Info("created order")
	return order, nil
}
