package ports

import (
	"context"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// MailSource exposes the mailbox: live incarnation state plus a message
// stream. With fullScan the sinceUID argument is ignored and the entire
// mailbox is walked.
type MailSource interface {
	Open(ctx context.Context) (domain.MailboxInfo, error)
	FetchSince(ctx context.Context, sinceUID uint32, fullScan bool, handle func(context.Context, domain.InboundMessage) error) error
	Close() error
}

// SheetDecoder turns attachment bytes into raw per-sheet grids. No
// header inference: cells come back exactly as stored.
type SheetDecoder interface {
	Decode(ctx context.Context, filename string, data []byte) ([]domain.SheetGrid, error)
}

// NavRepository is the primary store. InsertRecord reports a
// (product_code, nav_date) uniqueness conflict as ErrDuplicateRecord,
// distinct from any other failure.
type NavRepository interface {
	InsertAttribution(ctx context.Context, attr *domain.SourceAttribution) (int64, error)
	InsertRecord(ctx context.Context, rec *domain.NavRecord) error
	ListRecords(ctx context.Context) ([]domain.RecordWithSource, error)
}

// CursorStore persists the singleton mail cursor. Load reports whether
// a cursor exists at all.
type CursorStore interface {
	Load(ctx context.Context) (domain.MailCursor, bool, error)
	Save(ctx context.Context, cur domain.MailCursor) error
}

// FailureLog is the append-only extraction failure table.
type FailureLog interface {
	Record(ctx context.Context, f domain.ExtractionFailure) error
	List(ctx context.Context, limit int) ([]domain.ExtractionFailure, error)
}

// CleanStore holds the derived clean view. Replace swaps the full row
// set in one transaction so readers never observe a half-built view.
type CleanStore interface {
	Replace(ctx context.Context, records []domain.CleanRecord) error
	ListProducts(ctx context.Context) ([]domain.ProductSummary, error)
	ListByProduct(ctx context.Context, productCode string) ([]domain.CleanRecord, error)
}

// EventBus carries batch-ingested notifications from sync runs to the
// calibration worker.
type EventBus interface {
	PublishBatchIngested(ctx context.Context, event domain.BatchEvent) error
	SubscribeBatchIngested(ctx context.Context, handler func(context.Context, domain.BatchEvent) error) error
	Close()
}
