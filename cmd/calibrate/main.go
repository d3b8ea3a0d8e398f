package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/fund-nav-pipeline/internal/bootstrap"
	"github.com/kirillkom/fund-nav-pipeline/internal/config"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
	"github.com/kirillkom/fund-nav-pipeline/internal/observability/logging"
	"github.com/kirillkom/fund-nav-pipeline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.ForBinary("calibrate", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	pipelineMetrics := metrics.NewPipelineMetrics("calibrate")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: pipelineMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	rebuild := func(rebuildCtx context.Context) error {
		start := time.Now()
		report, err := app.CalibrateUC.Run(rebuildCtx)
		if err != nil {
			return err
		}
		pipelineMetrics.ObserveRebuild(report.CleanRecords, time.Since(start))
		return nil
	}

	// Rebuild once at startup so the clean view reflects whatever landed
	// while the worker was down.
	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	if err := rebuild(startupCtx); err != nil {
		cancel()
		log.Fatalf("initial rebuild error: %v", err)
	}
	cancel()

	log.Printf("calibrate subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchIngested(ctx, func(handlerCtx context.Context, event domain.BatchEvent) error {
		logger.Info("batch_ingested", "run_id", event.RunID, "inserted", event.Inserted)
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()
		return rebuild(rebuildCtx)
	})
	if err != nil {
		log.Fatalf("calibrate subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
