// Package crm содержит прикладные сервисы CRM: клиенты, товары, заказы и запросы.
package crm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

// Option настраивает сервис.
type Option func(*base)

// WithMetrics подключает метрики мутаций.
func WithMetrics(m *metrics.CRMMetrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithClock подменяет источник времени для CreatedAt и даты заказа по умолчанию.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов сущностей.
func WithIDGenerator(newID func() string) Option {
	return func(b *base) {
		if newID != nil {
			b.newID = newID
		}
	}
}

type base struct {
	logger  *log.Entry
	metrics *metrics.CRMMetrics
	now     func() time.Time
	newID   func() string
}

func newBase(component string, logger *log.Entry, opts []Option) base {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	b := base{
		logger: logger.WithField("component", component),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// finish пишет метрику и лог по результату мутации.
func (b *base) finish(operation string, started time.Time, err error) {
	result := resultOf(err)
	b.metrics.RecordMutation(operation, result, time.Since(started))

	if err == nil {
		return
	}
	entry := b.logger.WithFields(log.Fields{
		"operation": operation,
		"result":    result,
	})
	if domain.KindOf(err) == domain.KindInfrastructure {
		entry.WithError(err).Error("crm mutation failed")
		return
	}
	entry.WithField("messages", domain.ErrorMessages(err)).Warn("crm mutation rejected")
}

func resultOf(err error) string {
	switch domain.KindOf(err) {
	case "":
		return metrics.ResultSuccess
	case domain.KindValidation:
		return metrics.ResultValidation
	case domain.KindConflict:
		return metrics.ResultConflict
	case domain.KindReference:
		return metrics.ResultReference
	default:
		return metrics.ResultInfrastructure
	}
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, payload any) (domain.OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}
