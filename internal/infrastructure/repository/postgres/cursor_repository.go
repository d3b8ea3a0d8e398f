package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

const (
	cursorKeyLastUID     = "last_uid"
	cursorKeyUIDValidity = "uidvalidity"
)

// CursorRepository persists the singleton mail cursor in the
// sync_state key/value table.
type CursorRepository struct {
	db *sql.DB
}

func NewCursorRepository(db *sql.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

func (r *CursorRepository) Load(ctx context.Context) (domain.MailCursor, bool, error) {
	lastUID, uidOK, err := r.value(ctx, cursorKeyLastUID)
	if err != nil {
		return domain.MailCursor{}, false, err
	}
	validity, valOK, err := r.value(ctx, cursorKeyUIDValidity)
	if err != nil {
		return domain.MailCursor{}, false, err
	}
	if !uidOK || !valOK {
		return domain.MailCursor{}, false, nil
	}

	uid, err := strconv.ParseUint(lastUID, 10, 32)
	if err != nil {
		return domain.MailCursor{}, false, fmt.Errorf("parse stored last_uid %q: %w", lastUID, err)
	}
	return domain.MailCursor{LastUID: uint32(uid), UIDValidity: validity}, true, nil
}

func (r *CursorRepository) Save(ctx context.Context, cur domain.MailCursor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cursor tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const upsert = `
INSERT INTO sync_state (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`
	if _, err := tx.ExecContext(ctx, upsert, cursorKeyLastUID, strconv.FormatUint(uint64(cur.LastUID), 10)); err != nil {
		return fmt.Errorf("save last_uid: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, cursorKeyUIDValidity, cur.UIDValidity); err != nil {
		return fmt.Errorf("save uidvalidity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cursor tx: %w", err)
	}
	return nil
}

func (r *CursorRepository) value(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read sync state %s: %w", key, err)
	}
	return v, true, nil
}
