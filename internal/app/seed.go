package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/seed"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

// Seed наполняет хранилище из cfg демонстрационными данными.
// Для memory-хранилища данные живут только до завершения процесса.
func Seed(ctx context.Context, cfg Config, ds seed.Dataset, orders int) (seed.Result, error) {
	logger := log.WithField("component", "seed")

	if err := cfg.Validate(); err != nil {
		return seed.Result{}, err
	}
	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return seed.Result{}, err
	}
	defer deps.close(logger)

	m := metrics.NewCRMMetrics()
	seeder := seed.NewSeeder(seed.Services{
		Customers: crm.NewCustomerService(deps.repo, logger, crm.WithMetrics(m)),
		Products:  crm.NewProductService(deps.repo, logger, crm.WithMetrics(m)),
		Orders:    crm.NewOrderService(deps.repo, deps.repo, deps.repo, logger, crm.WithMetrics(m)),
		Queries:   crm.NewQueryService(deps.repo, logger),
	}, nil, logger)
	return seeder.Run(ctx, ds, orders)
}
