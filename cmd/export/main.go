package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/fund-nav-pipeline/internal/bootstrap"
	"github.com/kirillkom/fund-nav-pipeline/internal/config"
	xlsxreport "github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/fund-nav-pipeline/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.ForBinary("export", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := xlsxreport.NewWriter(app.Clean).Write(ctx, cfg.ExportPath); err != nil {
		log.Fatalf("export error: %v", err)
	}
	log.Printf("workbook written to %s", cfg.ExportPath)
}
