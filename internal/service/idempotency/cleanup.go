// Package idempotency удаляет просроченные ключи идемпотентности мутаций CRM.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// JobName - имя задания очистки в планировщике и метриках.
const JobName = "idempotency-cleanup"

const defaultBatchSize = 500

var deletedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "crm_idempotency_cleanup_deleted_total",
	Help: "Total number of deleted expired idempotency records.",
})

// Cleaner удаляет записи с истёкшим TTL порциями batchSize.
// Реализует jobs.Job; интервал задаёт планировщик.
type Cleaner struct {
	repo      domain.IdempotencyRepository
	batchSize int
	now       func() time.Time
	logger    *log.Entry
}

// NewCleaner создаёт задание очистки; batchSize <= 0 заменяется значением по умолчанию.
func NewCleaner(repo domain.IdempotencyRepository, batchSize int, logger *log.Entry) *Cleaner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Cleaner{
		repo:      repo,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.WithField("component", JobName),
	}
}

func (c *Cleaner) Name() string { return JobName }

// Run удаляет всё, что истекло к текущему моменту. Отмена ctx ошибкой не считается.
func (c *Cleaner) Run(ctx context.Context) error {
	deleted, err := c.DeleteExpired(ctx, c.now())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
	return err
}

// DeleteExpired удаляет записи с ttl <= before, пока очередная порция не окажется неполной.
func (c *Cleaner) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if c.repo == nil {
		return 0, nil
	}

	total := 0
	for ctx.Err() == nil {
		n, err := c.repo.DeleteExpired(ctx, before, c.batchSize)
		total += n
		deletedTotal.Add(float64(n))
		if err != nil {
			return total, err
		}
		if n < c.batchSize {
			return total, nil
		}
	}
	return total, ctx.Err()
}
