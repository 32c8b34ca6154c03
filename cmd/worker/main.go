package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"drawtica/internal/adapter/repo"
	"drawtica/internal/billing"
	"drawtica/internal/infra"
	"drawtica/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.Store != infra.StorePostgres {
		logger.Fatal().Str("store", cfg.Store).Msg("worker: maintenance needs the postgres store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	m := metrics.New()
	jobs := &maintenance{
		accounts: repo.NewAccountRepository(runner),
		intents:  billing.NewService(billing.NewStubProvider(), repo.NewTransactionRepository(runner), &logger),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}

	c := cron.New()
	if err := jobs.schedule(ctx, c, cfg.MaintenanceSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.MaintenanceSchedule).Msg("worker: invalid schedule")
	}

	var metricsServer *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("worker: metrics listener failed")
			}
		}()
	}

	// Catch up immediately instead of waiting for the first tick.
	jobs.runAll(ctx)
	c.Start()
	logger.Info().Str("schedule", cfg.MaintenanceSchedule).Msg("worker: started")

	<-ctx.Done()
	<-c.Stop().Done()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info().Msg("worker: stopped")
}
