package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/bootstrap"
	"github.com/kirillkom/crop-disease-analyzer/internal/config"
	"github.com/kirillkom/crop-disease-analyzer/internal/observability/logging"
	"github.com/kirillkom/crop-disease-analyzer/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(logging.Options{
		Service:   serviceName,
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: cfg.LogSource,
	}))

	if err := run(cfg); err != nil {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, workerMetrics.Registerer())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalysisCompleted(ctx, func(handlerCtx context.Context, analysisID string) error {
		done := workerMetrics.Track()

		rec, err := app.RecommendUC.GenerateForAnalysis(handlerCtx, analysisID)
		switch {
		case err != nil:
			done(metrics.EventFailed)
			return err
		case rec == nil:
			done(metrics.EventSkipped)
			slog.Info("recommendation_exists", "analysis_id", analysisID)
			return nil
		}
		done(metrics.EventGenerated)
		slog.Info("recommendation_generated", "analysis_id", analysisID, "recommendation_id", rec.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}
