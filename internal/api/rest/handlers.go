package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type handler struct {
	endpoint *api.Endpoint
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

func (h *handler) createCustomer(c *gin.Context) {
	handleMutation(h, c, func(ctx context.Context, req api.CreateCustomerRequest) any {
		return h.endpoint.CreateCustomer(ctx, req)
	})
}

func (h *handler) bulkCreateCustomers(c *gin.Context) {
	handleMutation(h, c, func(ctx context.Context, req api.BulkCreateCustomersRequest) any {
		return h.endpoint.BulkCreateCustomers(ctx, req)
	})
}

func (h *handler) createProduct(c *gin.Context) {
	handleMutation(h, c, func(ctx context.Context, req api.CreateProductRequest) any {
		return h.endpoint.CreateProduct(ctx, req)
	})
}

func (h *handler) createOrder(c *gin.Context) {
	handleMutation(h, c, func(ctx context.Context, req api.CreateOrderRequest) any {
		return h.endpoint.CreateOrder(ctx, req)
	})
}

func (h *handler) listCustomers(c *gin.Context) {
	var req api.ListCustomersRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.endpoint.ListCustomers(c.Request.Context(), req)
	h.respondRead(c, resp, err)
}

func (h *handler) listProducts(c *gin.Context) {
	var req api.ListProductsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.endpoint.ListProducts(c.Request.Context(), req)
	h.respondRead(c, resp, err)
}

func (h *handler) listOrders(c *gin.Context) {
	var req api.ListOrdersRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.endpoint.ListOrders(c.Request.Context(), req)
	h.respondRead(c, resp, err)
}

func (h *handler) summary(c *gin.Context) {
	resp, err := h.endpoint.Summary(c.Request.Context(), api.SummaryRequest{})
	h.respondRead(c, resp, err)
}

func (h *handler) bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return false
	}
	return true
}

// respondRead отдаёт результат чтения: некорректный фильтр - 400, сбой хранилища - 500.
func (h *handler) respondRead(c *gin.Context, resp any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	message := strings.Join(domain.ErrorMessages(err), "; ")
	if domain.KindOf(err) == domain.KindValidation {
		writeError(c, http.StatusBadRequest, message)
		return
	}
	h.logger.WithError(err).WithField("path", c.FullPath()).Error("crm read failed")
	writeError(c, http.StatusInternalServerError, message)
}

func writeError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, api.ErrorPayload{Code: code, Message: message})
}
