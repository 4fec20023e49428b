// Package rest публикует CRM API по HTTP поверх gin.
package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/health"
)

// RouterOptions - зависимости HTTP-слоя. Idempotency, Health и Gatherer необязательны.
type RouterOptions struct {
	Endpoint    *api.Endpoint
	Idempotency domain.IdempotencyRepository
	Health      *health.Handler
	Gatherer    prometheus.Gatherer
	Logger      *log.Entry
}

// NewRouter настраивает маршруты CRM API и служебные эндпоинты.
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "crm-http")

	r := gin.New()
	r.Use(LoggerMiddleware(logger))
	r.Use(gin.Recovery())

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/livez", gin.WrapF(health.LivenessHandler))
	if opts.Health != nil {
		r.GET("/healthz", gin.WrapH(opts.Health))
		r.GET("/readyz", gin.WrapF(opts.Health.ReadinessHandler))
	}

	h := &handler{
		endpoint: opts.Endpoint,
		idemRepo: opts.Idempotency,
		logger:   logger,
	}

	v1 := r.Group("/api/v1")
	{
		customers := v1.Group("/customers")
		{
			customers.GET("", h.listCustomers)
			customers.POST("", h.createCustomer)
			customers.POST("/bulk", h.bulkCreateCustomers)
		}

		products := v1.Group("/products")
		{
			products.GET("", h.listProducts)
			products.POST("", h.createProduct)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", h.listOrders)
			orders.POST("", h.createOrder)
		}

		v1.GET("/summary", h.summary)
	}

	return r
}
