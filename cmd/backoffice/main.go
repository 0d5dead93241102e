package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"backoffice/internal/config"
	"backoffice/internal/events"
	"backoffice/internal/http/handlers"
	applog "backoffice/internal/log"
	"backoffice/internal/metrics"
	"backoffice/internal/observability"
	"backoffice/internal/repos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	flush, err := applog.Init(cfg.LogLevel, cfg.Env, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer flush()
	logger := applog.L()
	logger.Info("startup", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:   cfg.OtelEndpoint,
		AuthHeader: cfg.OtelAuthHeader,
	})
	if err != nil {
		// tracing is optional; keep serving
		logger.Warn("tracing.setup.fail", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if cfg.SeedDemo {
		if err := repos.SeedDemo(ctx, db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	var pub events.Publisher = events.Nop{}
	if cfg.KafkaBroker != "" {
		pub = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
	}

	m := metrics.New()
	deps := handlers.NewDeps(db, cfg, handlers.LabelProvider(cfg), pub, m)
	app := handlers.NewApp(deps, handlers.AppOptions{
		OperatorTokenHash: cfg.OperatorTokenHash,
		Metrics:           m,
		RateLimit:         120,
		Health:            db.PingContext,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listen", zap.String("addr", ":"+cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(
		app.ShutdownWithContext(shutdownCtx),
		pub.Close(),
		shutdownTracing(shutdownCtx),
	)
}
