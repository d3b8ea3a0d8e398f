package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// CleanRepository holds the derived clean view, usually in a separate
// database from the primary store. Replace swaps the whole row set in
// one transaction so readers never see a half-rebuilt view.
type CleanRepository struct {
	db *sql.DB
}

func NewCleanRepository(db *sql.DB) *CleanRepository {
	return &CleanRepository{db: db}
}

func EnsureCleanSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031702)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS nav_records_clean (
	id BIGINT PRIMARY KEY,
	product_name TEXT,
	product_code TEXT NOT NULL,
	nav_date INTEGER NOT NULL,
	unit_nav DOUBLE PRECISION NOT NULL,
	cumulative_nav DOUBLE PRECISION,
	source_id BIGINT,
	ingested_at TIMESTAMPTZ NOT NULL,
	source_subject TEXT NOT NULL DEFAULT '',
	source_sender TEXT NOT NULL DEFAULT '',
	source_message_date TEXT NOT NULL DEFAULT '',
	source_attachment TEXT NOT NULL DEFAULT '',
	source_sheet_name TEXT NOT NULL DEFAULT '',
	UNIQUE (product_code, nav_date)
);

CREATE INDEX IF NOT EXISTS idx_nav_records_clean_code ON nav_records_clean(product_code);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CleanRepository) Replace(ctx context.Context, records []domain.CleanRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nav_records_clean`); err != nil {
		return fmt.Errorf("clear clean view: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO nav_records_clean (
	id, product_name, product_code, nav_date, unit_nav, cumulative_nav, source_id, ingested_at,
	source_subject, source_sender, source_message_date, source_attachment, source_sheet_name
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`)
	if err != nil {
		return fmt.Errorf("prepare clean insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var (
			name = sql.NullString{String: rec.ProductName, Valid: rec.ProductName != ""}
			cum  = sql.NullFloat64{}
			src  = sql.NullInt64{Int64: rec.SourceID, Valid: rec.SourceID != 0}
		)
		if rec.CumulativeNav != nil {
			cum = sql.NullFloat64{Float64: *rec.CumulativeNav, Valid: true}
		}
		ingested := rec.IngestedAt
		if ingested.IsZero() {
			ingested = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			rec.ID, name, rec.ProductCode, rec.NavDate, rec.UnitNav, cum, src, ingested,
			rec.Subject, rec.Sender, rec.MessageDate, rec.Attachment, rec.SheetName,
		)
		if err != nil {
			return fmt.Errorf("insert clean record id=%d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild tx: %w", err)
	}
	return nil
}

func (r *CleanRepository) ListProducts(ctx context.Context) ([]domain.ProductSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT
	product_code,
	MAX(COALESCE(product_name, '')),
	COUNT(*),
	MIN(nav_date),
	MAX(nav_date)
FROM nav_records_clean
GROUP BY product_code
ORDER BY product_code
`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProductSummary, 0)
	for rows.Next() {
		var s domain.ProductSummary
		if err := rows.Scan(&s.ProductCode, &s.ProductName, &s.Records, &s.FirstDate, &s.LastDate); err != nil {
			return nil, fmt.Errorf("scan product summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product summaries: %w", err)
	}

	for i := range out {
		if err := r.fillBoundaryNavs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *CleanRepository) fillBoundaryNavs(ctx context.Context, s *domain.ProductSummary) error {
	err := r.db.QueryRowContext(ctx, `
SELECT unit_nav FROM nav_records_clean WHERE product_code = $1 AND nav_date = $2
`, s.ProductCode, s.FirstDate).Scan(&s.FirstNav)
	if err != nil {
		return fmt.Errorf("read first nav for %s: %w", s.ProductCode, err)
	}
	err = r.db.QueryRowContext(ctx, `
SELECT unit_nav FROM nav_records_clean WHERE product_code = $1 AND nav_date = $2
`, s.ProductCode, s.LastDate).Scan(&s.LastNav)
	if err != nil {
		return fmt.Errorf("read last nav for %s: %w", s.ProductCode, err)
	}
	return nil
}

func (r *CleanRepository) ListByProduct(ctx context.Context, productCode string) ([]domain.CleanRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, product_name, product_code, nav_date, unit_nav, cumulative_nav, source_id, ingested_at,
       source_subject, source_sender, source_message_date, source_attachment, source_sheet_name
FROM nav_records_clean
WHERE product_code = $1
ORDER BY nav_date
`, productCode)
	if err != nil {
		return nil, fmt.Errorf("list clean records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CleanRecord, 0)
	for rows.Next() {
		var (
			rec  domain.CleanRecord
			name sql.NullString
			cum  sql.NullFloat64
			src  sql.NullInt64
		)
		err := rows.Scan(
			&rec.ID, &name, &rec.ProductCode, &rec.NavDate, &rec.UnitNav, &cum, &src, &rec.IngestedAt,
			&rec.Subject, &rec.Sender, &rec.MessageDate, &rec.Attachment, &rec.SheetName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan clean record: %w", err)
		}
		rec.ProductName = name.String
		if cum.Valid {
			v := cum.Float64
			rec.CumulativeNav = &v
		}
		rec.SourceID = src.Int64
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clean records: %w", err)
	}
	return out, nil
}
