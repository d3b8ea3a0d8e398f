package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeMailSource struct {
	box      domain.MailboxInfo
	openErr  error
	messages []domain.InboundMessage
	fetchErr error

	gotSinceUID uint32
	gotFullScan bool
	closed      bool
}

func (f *fakeMailSource) Open(context.Context) (domain.MailboxInfo, error) {
	return f.box, f.openErr
}

func (f *fakeMailSource) FetchSince(ctx context.Context, sinceUID uint32, fullScan bool, handle func(context.Context, domain.InboundMessage) error) error {
	f.gotSinceUID = sinceUID
	f.gotFullScan = fullScan
	for _, msg := range f.messages {
		if !fullScan && msg.UID <= sinceUID {
			continue
		}
		if err := handle(ctx, msg); err != nil {
			return err
		}
	}
	return f.fetchErr
}

func (f *fakeMailSource) Close() error {
	f.closed = true
	return nil
}

type fakeDecoder struct {
	sheets map[string][]domain.SheetGrid
	err    error
}

func (f *fakeDecoder) Decode(_ context.Context, filename string, _ []byte) ([]domain.SheetGrid, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sheets[filename], nil
}

type fakeNavRepo struct {
	mu           sync.Mutex
	attributions []domain.SourceAttribution
	records      []domain.NavRecord
	rows         []domain.RecordWithSource
	insertErrs   map[string]error
	attrErr      error
	listErr      error
}

func (f *fakeNavRepo) InsertAttribution(_ context.Context, attr *domain.SourceAttribution) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrErr != nil {
		return 0, f.attrErr
	}
	attr.ID = int64(len(f.attributions) + 1)
	f.attributions = append(f.attributions, *attr)
	return attr.ID, nil
}

func (f *fakeNavRepo) InsertRecord(_ context.Context, rec *domain.NavRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.insertErrs[rec.ProductCode]; ok {
		return err
	}
	for _, existing := range f.records {
		if existing.ProductCode == rec.ProductCode && existing.NavDate == rec.NavDate {
			return domain.WrapError(domain.ErrDuplicateRecord, "insert nav record", errDuplicateRow)
		}
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

var errDuplicateRow = errors.New("duplicate key value violates unique constraint")

func (f *fakeNavRepo) ListRecords(context.Context) ([]domain.RecordWithSource, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows, nil
}

type fakeCursorStore struct {
	cur     domain.MailCursor
	exists  bool
	loadErr error
	saveErr error
	saved   []domain.MailCursor
}

func (f *fakeCursorStore) Load(context.Context) (domain.MailCursor, bool, error) {
	return f.cur, f.exists, f.loadErr
}

func (f *fakeCursorStore) Save(_ context.Context, cur domain.MailCursor) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cur)
	f.cur, f.exists = cur, true
	return nil
}

type fakeFailureLog struct {
	entries   []domain.ExtractionFailure
	recordErr error
}

func (f *fakeFailureLog) Record(_ context.Context, failure domain.ExtractionFailure) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.entries = append(f.entries, failure)
	return nil
}

func (f *fakeFailureLog) List(_ context.Context, limit int) ([]domain.ExtractionFailure, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

type fakeCleanStore struct {
	replaced   [][]domain.CleanRecord
	replaceErr error
}

func (f *fakeCleanStore) Replace(_ context.Context, records []domain.CleanRecord) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = append(f.replaced, records)
	return nil
}

func (f *fakeCleanStore) ListProducts(context.Context) ([]domain.ProductSummary, error) {
	return nil, nil
}

func (f *fakeCleanStore) ListByProduct(context.Context, string) ([]domain.CleanRecord, error) {
	return nil, nil
}

type fakeEventBus struct {
	published  []domain.BatchEvent
	publishErr error
}

func (f *fakeEventBus) PublishBatchIngested(_ context.Context, event domain.BatchEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakeEventBus) SubscribeBatchIngested(context.Context, func(context.Context, domain.BatchEvent) error) error {
	return nil
}

func (f *fakeEventBus) Close() {}
