package ports

import (
	"context"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// MailboxSyncer is the inbound contract for one incremental sync run.
type MailboxSyncer interface {
	Run(ctx context.Context) (domain.SyncSummary, error)
}

// Calibrator rebuilds the clean view from the primary store.
type Calibrator interface {
	Run(ctx context.Context) (domain.CalibrationReport, error)
}

// AnomalyDetector reports anomalies without touching the clean view.
type AnomalyDetector interface {
	Detect(ctx context.Context) (domain.CalibrationReport, error)
}

// CleanReader is the inbound read model over the clean view.
type CleanReader interface {
	ListProducts(ctx context.Context) ([]domain.ProductSummary, error)
	ListByProduct(ctx context.Context, productCode string) ([]domain.CleanRecord, error)
}
