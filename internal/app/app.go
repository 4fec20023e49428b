// Package app собирает CRM-сервис: хранилище, транспорт, воркеры и задания.
package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/crm/internal/api/rest"
	healthcheck "github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/crm/internal/service/grpc"
	"github.com/vladislavdragonenkov/crm/internal/service/outbox"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

// Run поднимает gRPC и HTTP API, outbox worker и планировщик заданий
// и блокируется до отмены ctx или ошибки одного из компонентов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	crmMetrics := metrics.NewCRMMetrics()
	endpoint, queries := newEndpoint(deps.repo, crmMetrics, logger)

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeKafka(kafkaProducer, logger)

	scheduler, closeJobLogs, err := initScheduler(cfg, deps.repo, deps.idempotencyRepo, queries, crmMetrics, logger)
	if err != nil {
		return err
	}
	defer closeJobLogs()

	grpcServer, grpcHealth := grpcsvc.NewServer(
		grpcsvc.NewCRMService(endpoint, deps.idempotencyRepo, logger.WithField("layer", "grpc")),
		prometheus.DefaultRegisterer,
		logger,
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	gin.SetMode(gin.ReleaseMode)
	router := rest.NewRouter(rest.RouterOptions{
		Endpoint:    endpoint,
		Idempotency: deps.idempotencyRepo,
		Health:      healthHandler,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      logger.WithField("layer", "http"),
	})
	httpServer := rest.NewServer(cfg.HTTPAddr, router, logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		return grpcServer.Serve(grpcLis)
	})
	g.Go(func() error {
		return httpServer.Serve(httpLis)
	})

	if kafkaProducer != nil {
		worker := outbox.NewWorker(deps.outboxRepo,
			kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic),
			outbox.WithLogger(logger),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithMaxRetryDelay(cfg.OutboxMaxRetryDelay),
		)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	} else {
		logger.Info("kafka brokers are not configured, outbox events stay pending")
	}

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown with error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

type gracefulServer interface {
	GracefulStop()
	Stop()
}

// stopGRPC ждёт завершения активных вызовов не дольше timeout, затем останавливает сервер принудительно.
func stopGRPC(server gracefulServer, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return cfg.ShutdownTimeout
}
