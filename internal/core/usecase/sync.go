package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/extract"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
)

// SyncMailboxUseCase drives one batch run: cursor gate, message fetch,
// extraction, ingestion, cursor advance, ingest event.
//
// The cursor is written only after every message in the batch has been
// committed or logged, so a crash mid-batch redelivers on the next run
// and the store's uniqueness constraint absorbs the replays.
type SyncMailboxUseCase struct {
	mail    ports.MailSource
	decoder ports.SheetDecoder
	engine  *extract.Engine
	cursor  ports.CursorStore
	writer  *IngestionWriter
	events  ports.EventBus
	logger  *slog.Logger
}

func NewSyncMailboxUseCase(
	mail ports.MailSource,
	decoder ports.SheetDecoder,
	engine *extract.Engine,
	cursor ports.CursorStore,
	writer *IngestionWriter,
	events ports.EventBus,
	logger *slog.Logger,
) *SyncMailboxUseCase {
	return &SyncMailboxUseCase{
		mail:    mail,
		decoder: decoder,
		engine:  engine,
		cursor:  cursor,
		writer:  writer,
		events:  events,
		logger:  logger,
	}
}

func (uc *SyncMailboxUseCase) Run(ctx context.Context) (domain.SyncSummary, error) {
	summary := domain.SyncSummary{RunID: uuid.NewString()}
	logger := uc.logger.With("run_id", summary.RunID)

	cur, exists, err := uc.cursor.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load mail cursor: %w", err)
	}

	box, err := uc.mail.Open(ctx)
	if err != nil {
		return summary, fmt.Errorf("open mailbox: %w", err)
	}

	fullScan := !exists || cur.UIDValidity != box.UIDValidity
	if fullScan {
		summary.Mode = domain.SyncModeFullScan
		if exists && cur.UIDValidity != box.UIDValidity {
			logger.Warn("mailbox_incarnation_changed",
				"stored", cur.UIDValidity, "live", box.UIDValidity)
		}
	} else {
		summary.Mode = domain.SyncModeIncremental
	}
	logger.Info("sync_run_started", "mode", summary.Mode, "last_uid", cur.LastUID)

	maxUID := cur.LastUID
	if fullScan {
		maxUID = 0
	}

	err = uc.mail.FetchSince(ctx, cur.LastUID, fullScan, func(ctx context.Context, msg domain.InboundMessage) error {
		if err := uc.processMessage(ctx, msg, &summary); err != nil {
			return err
		}
		if msg.UID > maxUID {
			maxUID = msg.UID
		}
		summary.Messages++
		return nil
	})
	if err != nil {
		// Mid-batch transport or storage failure: leave the cursor
		// untouched so the unprocessed tail is redelivered next run.
		return summary, fmt.Errorf("process messages: %w", err)
	}

	summary.LastUID = maxUID

	if summary.Messages == 0 && !fullScan {
		logger.Info("sync_run_finished", "messages", 0)
		return summary, nil
	}

	if err := uc.cursor.Save(ctx, domain.MailCursor{LastUID: maxUID, UIDValidity: box.UIDValidity}); err != nil {
		return summary, fmt.Errorf("save mail cursor: %w", err)
	}

	if summary.Inserted > 0 && uc.events != nil {
		event := domain.BatchEvent{RunID: summary.RunID, Inserted: summary.Inserted}
		if err := uc.events.PublishBatchIngested(ctx, event); err != nil {
			logger.Warn("batch_event_publish_error", "error", err)
		}
	}

	logger.Info("sync_run_finished",
		"messages", summary.Messages,
		"attachments", summary.Attachments,
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
		"failures", summary.Failures,
		"last_uid", summary.LastUID,
	)
	return summary, nil
}

func (uc *SyncMailboxUseCase) processMessage(
	ctx context.Context,
	msg domain.InboundMessage,
	summary *domain.SyncSummary,
) error {
	for _, att := range msg.Attachments {
		if !isSpreadsheet(att.Filename) {
			continue
		}
		summary.Attachments++

		attr := domain.SourceAttribution{
			Subject:     msg.Subject,
			Sender:      msg.Sender,
			MessageDate: msg.Date,
			Attachment:  att.Filename,
		}

		sheets, err := uc.decoder.Decode(ctx, att.Filename, att.Data)
		if err != nil {
			summary.Failures++
			uc.writer.LogFailure(ctx, attr, fmt.Sprintf("decode workbook: %v", err))
			continue
		}

		for _, sheet := range sheets {
			attr := attr
			attr.SheetName = sheet.Name

			records, diags, err := uc.engine.Extract(sheet.Grid)
			if err != nil {
				summary.Failures++
				uc.writer.LogFailure(ctx, attr, err.Error())
				continue
			}

			result, err := uc.writer.WriteBatch(ctx, attr, records, diags)
			if err != nil {
				// Only storage-engine unreachability surfaces here. The
				// records are neither committed nor in the failure log, so
				// the run must abort before the cursor advances past them.
				return fmt.Errorf("write batch uid=%d attachment=%s: %w", msg.UID, att.Filename, err)
			}
			summary.Inserted += result.Inserted
			summary.Duplicates += result.Duplicates
			summary.Failures += result.Skipped
		}
	}
	return nil
}

func isSpreadsheet(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx", ".xlsm":
		return true
	}
	return false
}
