package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

const pgUniqueViolation = "23505"

// NavRepository is the primary store over Postgres. Records are never
// updated or deleted here; the table is append-only by construction.
type NavRepository struct {
	db *sql.DB
}

func NewNavRepository(db *sql.DB) *NavRepository {
	return &NavRepository{db: db}
}

func (r *NavRepository) InsertAttribution(ctx context.Context, attr *domain.SourceAttribution) (int64, error) {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
INSERT INTO mail_sources (subject, sender, message_date, attachment, sheet_name, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`,
		attr.Subject, attr.Sender, attr.MessageDate, attr.Attachment, attr.SheetName, now,
	).Scan(&attr.ID)
	if err != nil {
		return 0, fmt.Errorf("insert mail source: %w", err)
	}
	attr.IngestedAt = now
	return attr.ID, nil
}

func (r *NavRepository) InsertRecord(ctx context.Context, rec *domain.NavRecord) error {
	var (
		name     = sql.NullString{String: rec.ProductName, Valid: rec.ProductName != ""}
		cum      = sql.NullFloat64{}
		sourceID = sql.NullInt64{Int64: rec.SourceID, Valid: rec.SourceID != 0}
	)
	if rec.CumulativeNav != nil {
		cum = sql.NullFloat64{Float64: *rec.CumulativeNav, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO nav_records (product_name, product_code, nav_date, unit_nav, cumulative_nav, source_id, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`,
		name, rec.ProductCode, rec.NavDate, rec.UnitNav, cum, sourceID, time.Now().UTC(),
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WrapError(domain.ErrDuplicateRecord, "insert nav record", err)
		}
		return fmt.Errorf("insert nav record: %w", err)
	}
	return nil
}

func (r *NavRepository) ListRecords(ctx context.Context) ([]domain.RecordWithSource, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT r.id, r.product_name, r.product_code, r.nav_date, r.unit_nav, r.cumulative_nav, r.source_id, r.ingested_at,
       s.id, s.subject, s.sender, s.message_date, s.attachment, s.sheet_name
FROM nav_records r
LEFT JOIN mail_sources s ON r.source_id = s.id
ORDER BY r.id
`)
	if err != nil {
		return nil, fmt.Errorf("list nav records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RecordWithSource, 0)
	for rows.Next() {
		var (
			row      domain.RecordWithSource
			name     sql.NullString
			cum      sql.NullFloat64
			sourceID sql.NullInt64

			srcID      sql.NullInt64
			srcSubject sql.NullString
			srcSender  sql.NullString
			srcDate    sql.NullString
			srcFile    sql.NullString
			srcSheet   sql.NullString
		)
		err := rows.Scan(
			&row.Record.ID, &name, &row.Record.ProductCode, &row.Record.NavDate,
			&row.Record.UnitNav, &cum, &sourceID, &row.Record.IngestedAt,
			&srcID, &srcSubject, &srcSender, &srcDate, &srcFile, &srcSheet,
		)
		if err != nil {
			return nil, fmt.Errorf("scan nav record: %w", err)
		}
		row.Record.ProductName = name.String
		if cum.Valid {
			v := cum.Float64
			row.Record.CumulativeNav = &v
		}
		row.Record.SourceID = sourceID.Int64
		if srcID.Valid {
			row.Source = &domain.SourceAttribution{
				ID:          srcID.Int64,
				Subject:     srcSubject.String,
				Sender:      srcSender.String,
				MessageDate: srcDate.String,
				Attachment:  srcFile.String,
				SheetName:   srcSheet.String,
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nav records: %w", err)
	}
	return out, nil
}
