package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/service/idempotency"
	"github.com/vladislavdragonenkov/crm/internal/service/jobs"
)

// initScheduler регистрирует очистку ключей идемпотентности и, если JobsEnabled,
// открывает журналы в JobsLogDir для остальных заданий.
// Возвращённая функция закрывает журналы.
func initScheduler(cfg Config, repo domain.Repository, keys domain.IdempotencyRepository, queries *crm.QueryService, m *metrics.CRMMetrics, logger *log.Entry) (*jobs.Scheduler, func(), error) {
	scheduler := jobs.NewScheduler(logger, m)
	scheduler.Add(idempotency.NewCleaner(keys, cfg.IdempotencyCleanupBatchSize, logger), cfg.IdempotencyCleanupInterval)
	var sinks []*jobs.Sink
	closeSinks := func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				logger.WithError(err).Warn("failed to close job log")
			}
		}
	}

	if !cfg.JobsEnabled {
		return scheduler, closeSinks, nil
	}

	open := func(name string) (*jobs.Sink, error) {
		sink, err := jobs.OpenFileSink(cfg.JobsLogDir, name)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
		return sink, nil
	}

	heartbeat, err := open(jobs.HeartbeatLogFile)
	if err != nil {
		closeSinks()
		return nil, nil, err
	}
	report, err := open(jobs.ReportLogFile)
	if err != nil {
		closeSinks()
		return nil, nil, err
	}
	reminders, err := open(jobs.RemindersLogFile)
	if err != nil {
		closeSinks()
		return nil, nil, err
	}
	lowStock, err := open(jobs.LowStockLogFile)
	if err != nil {
		closeSinks()
		return nil, nil, err
	}

	scheduler.Add(jobs.NewHeartbeat(heartbeat, nil), cfg.HeartbeatInterval)
	scheduler.Add(jobs.NewReport(queries, report, nil), cfg.ReportInterval)
	scheduler.Add(jobs.NewReminders(queries, reminders, cfg.ReminderWindow, nil), cfg.RemindersInterval)
	scheduler.Add(jobs.NewLowStock(repo, lowStock, cfg.LowStockThreshold, cfg.LowStockIncrement, nil), cfg.LowStockInterval)

	logger.WithFields(log.Fields{
		"dir":  cfg.JobsLogDir,
		"jobs": scheduler.Len(),
	}).Info("scheduled jobs configured")
	return scheduler, closeSinks, nil
}
