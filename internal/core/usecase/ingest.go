package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
)

// IngestionWriter applies one extracted batch to the primary store:
// attribution row first, then every record under the (product_code,
// nav_date) uniqueness constraint. Conflicts and skipped rows land in
// the failure log; nothing here is fatal to the batch.
type IngestionWriter struct {
	repo     ports.NavRepository
	failures ports.FailureLog
	logger   *slog.Logger
}

func NewIngestionWriter(repo ports.NavRepository, failures ports.FailureLog, logger *slog.Logger) *IngestionWriter {
	return &IngestionWriter{repo: repo, failures: failures, logger: logger}
}

type BatchResult struct {
	Inserted   int
	Duplicates int
	Skipped    int
}

func (w *IngestionWriter) WriteBatch(
	ctx context.Context,
	attr domain.SourceAttribution,
	records []domain.NavRecord,
	diags []domain.RowDiagnostic,
) (BatchResult, error) {
	var result BatchResult

	sourceID, err := w.repo.InsertAttribution(ctx, &attr)
	if err != nil {
		return result, fmt.Errorf("insert attribution: %w", err)
	}

	for _, rec := range records {
		rec.SourceID = sourceID
		err := w.repo.InsertRecord(ctx, &rec)
		switch {
		case err == nil:
			result.Inserted++
		case domain.IsKind(err, domain.ErrDuplicateRecord):
			result.Duplicates++
			w.logFailure(ctx, attr, fmt.Sprintf(
				"duplicate: product_code=%s nav_date=%d", rec.ProductCode, rec.NavDate,
			))
		default:
			result.Skipped++
			w.logFailure(ctx, attr, fmt.Sprintf("insert record: %v", err))
		}
	}

	for _, diag := range diags {
		result.Skipped++
		w.logFailure(ctx, attr, fmt.Sprintf("row %d skipped: %s", diag.Row, diag.Reason))
	}

	return result, nil
}

// LogFailure records an attachment-level extraction failure.
func (w *IngestionWriter) LogFailure(ctx context.Context, attr domain.SourceAttribution, reason string) {
	w.logFailure(ctx, attr, reason)
}

func (w *IngestionWriter) logFailure(ctx context.Context, attr domain.SourceAttribution, reason string) {
	failure := domain.ExtractionFailure{
		Subject:     attr.Subject,
		Sender:      attr.Sender,
		MessageDate: attr.MessageDate,
		Attachment:  attr.Attachment,
		SheetName:   attr.SheetName,
		Reason:      reason,
	}
	// A broken failure log must never interrupt ingestion.
	if err := w.failures.Record(ctx, failure); err != nil {
		w.logger.Warn("failure_log_write_error", "error", err, "reason", reason)
	}
}
