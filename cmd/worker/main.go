package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/lifeflow-api/internal/config"
	"github.com/jwalitptl/lifeflow-api/internal/repository/postgres"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	redisbroker "github.com/jwalitptl/lifeflow-api/pkg/messaging/redis"
	"github.com/jwalitptl/lifeflow-api/pkg/worker"
)

// overrides are worker-local settings taken from the environment, on top of
// the shared config file.
type overrides struct {
	HealthPort      int           `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
	CleanupInterval time.Duration `envconfig:"WORKER_CLEANUP_INTERVAL" default:"1h"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	var env overrides
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("Failed to process environment overrides")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		appLogger.Fatal(err, "failed to run migrations")
	}

	broker, err := redisbroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		appLogger.Fatal(err, "failed to create redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), appLogger)

	setupHealthAndMetrics(env.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down")
		cancel()
	}()

	retention := time.Duration(cfg.Outbox.RetentionHours) * time.Hour
	go runCleanup(ctx, processor, env.CleanupInterval, retention, appLogger)

	processor.Start(ctx)
}

func runCleanup(ctx context.Context, p *worker.OutboxProcessor, interval, retention time.Duration, appLogger *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Cleanup(ctx, retention); err != nil {
				appLogger.Error(err, "outbox cleanup failed")
			}
		}
	}
}

func setupHealthAndMetrics(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.Error(err, "health server failed")
			os.Exit(1)
		}
	}()
}
