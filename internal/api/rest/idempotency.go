package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// IdempotencyKeyHeader - заголовок с ключом идемпотентности мутации.
const IdempotencyKeyHeader = "Idempotency-Key"

// handleMutation разбирает тело запроса и выполняет мутацию.
// Ошибки бизнес-правил идут в поле errors ответа со статусом 200; 400 - только для нечитаемого JSON.
func handleMutation[Req any](h *handler, c *gin.Context, run func(context.Context, Req) any) {
	var req Req
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if h.idemRepo == nil || key == "" {
		c.JSON(http.StatusOK, run(ctx, req))
		return
	}

	reqHash, err := api.RequestHash(c.Request.Method+" "+c.FullPath(), req)
	if err != nil {
		h.logger.WithError(err).Warn("failed to build idempotency request hash")
		writeError(c, http.StatusInternalServerError, "failed to initialize idempotency request")
		return
	}

	record, err := h.idemRepo.CreateProcessing(ctx, key, reqHash, time.Now().UTC().Add(api.IdempotencyTTL))
	if err != nil {
		h.replay(c, err, record)
		return
	}

	body, err := json.Marshal(run(ctx, req))
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to encode response")
		payload, _ := json.Marshal(api.ErrorPayload{Code: http.StatusInternalServerError, Message: domain.MessageInternal})
		if markErr := h.idemRepo.MarkFailed(ctx, key, payload, http.StatusInternalServerError); markErr != nil {
			h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
		}
		writeError(c, http.StatusInternalServerError, domain.MessageInternal)
		return
	}

	if err := h.idemRepo.MarkDone(ctx, key, body, http.StatusOK); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	c.Data(http.StatusOK, gin.MIMEJSON, body)
}

func (h *handler) replay(c *gin.Context, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeError(c, http.StatusUnprocessableEntity, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 {
				writeError(c, http.StatusInternalServerError, "idempotency cache is empty")
				return
			}
			code := record.HTTPStatus
			if code < 100 || code > 599 {
				code = http.StatusOK
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(code, gin.MIMEJSON, record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			writeError(c, http.StatusConflict, "request with the same idempotency key is already processing")
		default:
			writeError(c, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeError(c, http.StatusInternalServerError, "failed to initialize idempotency request")
	}
}
