package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/fund-nav-pipeline/internal/bootstrap"
	"github.com/kirillkom/fund-nav-pipeline/internal/config"
	"github.com/kirillkom/fund-nav-pipeline/internal/observability/logging"
	"github.com/kirillkom/fund-nav-pipeline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.ForBinary("sync", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	pipelineMetrics := metrics.NewPipelineMetrics("sync")

	runOnce := func(ctx context.Context) error {
		mail := app.NewMailSource()
		defer mail.Close()

		start := time.Now()
		summary, err := app.NewSyncUseCase(mail).Run(ctx)
		pipelineMetrics.ObserveSyncRun("sync", summary.Mode,
			summary.Messages, summary.Inserted, summary.Duplicates, summary.Failures,
			time.Since(start), err)
		return err
	}

	if cfg.SyncCron == "" {
		if err := runOnce(ctx); err != nil {
			log.Fatalf("sync error: %v", err)
		}
		return
	}

	// Scheduled mode: keep running and expose metrics alongside.
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: pipelineMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SyncCron, func() {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if err := runOnce(runCtx); err != nil {
			logger.Error("sync_run_error", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("invalid SYNC_CRON %q: %v", cfg.SyncCron, err)
	}
	scheduler.Start()
	log.Printf("sync scheduled with %q", cfg.SyncCron)

	<-ctx.Done()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
