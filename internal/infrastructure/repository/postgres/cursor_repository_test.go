package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func newCursorRepoWithMock(t *testing.T) (*CursorRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CursorRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCursorLoadReportsMissing(t *testing.T) {
	repo, mock, done := newCursorRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyLastUID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyUIDValidity).
		WillReturnError(sql.ErrNoRows)

	_, exists, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if exists {
		t.Fatalf("expected no cursor on a fresh store")
	}
}

func TestCursorLoadParsesStoredValues(t *testing.T) {
	repo, mock, done := newCursorRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyLastUID).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("12345"))
	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyUIDValidity).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("987"))

	cur, exists, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !exists {
		t.Fatalf("expected cursor to exist")
	}
	if cur.LastUID != 12345 || cur.UIDValidity != "987" {
		t.Fatalf("unexpected cursor: %+v", cur)
	}
}

func TestCursorLoadRejectsCorruptUID(t *testing.T) {
	repo, mock, done := newCursorRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyLastUID).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("not-a-uid"))
	mock.ExpectQuery("SELECT value FROM sync_state").
		WithArgs(cursorKeyUIDValidity).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("987"))

	_, _, err := repo.Load(context.Background())
	if err == nil {
		t.Fatalf("expected parse error for corrupt last_uid")
	}
}

func TestCursorSaveUpsertsBothKeysInOneTx(t *testing.T) {
	repo, mock, done := newCursorRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs(cursorKeyLastUID, "777").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs(cursorKeyUIDValidity, "v2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), domain.MailCursor{LastUID: 777, UIDValidity: "v2"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
