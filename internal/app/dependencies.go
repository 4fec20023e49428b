package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/api"
	"github.com/vladislavdragonenkov/crm/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
	"github.com/vladislavdragonenkov/crm/internal/storage/postgres"
	"github.com/vladislavdragonenkov/crm/internal/storage/redis"
)

// runtimeDependencies - хранилища и проверки здоровья, выбранные конфигурацией.
type runtimeDependencies struct {
	repo            domain.Repository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	checkers        map[string]*healthcheck.PingChecker
	closers         []func() error
}

// initRuntimeDependencies открывает хранилище по StorageDriver и, если задан RedisAddr,
// переносит ключи идемпотентности в Redis.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]*healthcheck.PingChecker)}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		deps.repo = store
		deps.outboxRepo = store
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		deps.checkers["storage"] = healthcheck.NewPingChecker("storage", store, true)
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires postgres_dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN,
			postgres.WithMaxConns(cfg.PostgresMaxConns),
			postgres.WithConnMaxLifetime(cfg.PostgresConnMaxLifetime),
		)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				deps.close(logger)
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.repo = postgres.NewRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.checkers["storage"] = healthcheck.NewPingChecker("storage", store, true)
		logger.Info("postgres storage initialized")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		redisRepo, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			deps.close(logger)
			return nil, err
		}
		deps.idempotencyRepo = redisRepo
		deps.closers = append(deps.closers, redisRepo.Close)
		deps.checkers["redis"] = healthcheck.NewPingChecker("redis", redisRepo, false)
		logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency store initialized")
	}

	return deps, nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

// newEndpoint собирает сервисы CRM поверх выбранного хранилища.
func newEndpoint(repo domain.Repository, m *metrics.CRMMetrics, logger *log.Entry) (*api.Endpoint, *crm.QueryService) {
	serviceLogger := logger.WithField("layer", "service")
	queries := crm.NewQueryService(repo, serviceLogger)
	return api.NewEndpoint(
		crm.NewCustomerService(repo, serviceLogger, crm.WithMetrics(m)),
		crm.NewProductService(repo, serviceLogger, crm.WithMetrics(m)),
		crm.NewOrderService(repo, repo, repo, serviceLogger, crm.WithMetrics(m)),
		queries,
	), queries
}
