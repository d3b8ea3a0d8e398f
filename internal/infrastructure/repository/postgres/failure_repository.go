package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// FailureRepository is the append-only extraction failure log.
type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

func (r *FailureRepository) Record(ctx context.Context, f domain.ExtractionFailure) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_failures (subject, sender, message_date, attachment, sheet_name, reason, failed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		f.Subject, f.Sender, f.MessageDate, f.Attachment, f.SheetName, f.Reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert extraction failure: %w", err)
	}
	return nil
}

func (r *FailureRepository) List(ctx context.Context, limit int) ([]domain.ExtractionFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, subject, sender, message_date, attachment, sheet_name, reason, failed_at
FROM extraction_failures
ORDER BY id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list extraction failures: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExtractionFailure, 0)
	for rows.Next() {
		var f domain.ExtractionFailure
		err := rows.Scan(&f.ID, &f.Subject, &f.Sender, &f.MessageDate, &f.Attachment, &f.SheetName, &f.Reason, &f.FailedAt)
		if err != nil {
			return nil, fmt.Errorf("scan extraction failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extraction failures: %w", err)
	}
	return out, nil
}
