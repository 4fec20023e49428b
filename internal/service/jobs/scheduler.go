package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

type entry struct {
	job      Job
	interval time.Duration
}

// Scheduler запускает каждое задание по своему интервалу.
type Scheduler struct {
	entries []entry
	logger  *log.Entry
	metrics *metrics.CRMMetrics
}

// NewScheduler создаёт пустой планировщик; m может быть nil.
func NewScheduler(logger *log.Entry, m *metrics.CRMMetrics) *Scheduler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Scheduler{
		logger:  logger.WithField("component", "job-scheduler"),
		metrics: m,
	}
}

// Add регистрирует задание; interval <= 0 отключает его.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	if job == nil || interval <= 0 {
		return
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

// Len возвращает число активных заданий.
func (s *Scheduler) Len() int { return len(s.entries) }

// RunOnce выполняет задание один раз и пишет метрику.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	logger := s.logger.WithField("job", job.Name())
	if err := job.Run(ctx); err != nil {
		s.metrics.RecordJobRun(job.Name(), metrics.ResultInfrastructure)
		logger.WithError(err).Error("job run failed")
		return err
	}
	s.metrics.RecordJobRun(job.Name(), metrics.ResultSuccess)
	logger.Debug("job run completed")
	return nil
}

// Run блокируется до отмены ctx. Ошибка задания не останавливает расписание.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.logger.Info("no jobs scheduled")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		g.Go(func() error {
			ticker := time.NewTicker(e.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					_ = s.RunOnce(ctx, e.job)
				}
			}
		})
	}
	return g.Wait()
}
