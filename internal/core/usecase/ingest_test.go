package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func TestWriteBatchCountsDispositions(t *testing.T) {
	repo := &fakeNavRepo{insertErrs: map[string]error{"F500": errors.New("disk full")}}
	failures := &fakeFailureLog{}
	writer := NewIngestionWriter(repo, failures, discardLogger())

	attr := domain.SourceAttribution{Subject: "nav", Attachment: "a.xlsx", SheetName: "Sheet1"}
	records := []domain.NavRecord{
		{ProductCode: "F001", NavDate: 20240101, UnitNav: 1.01},
		{ProductCode: "F001", NavDate: 20240101, UnitNav: 1.01}, // duplicate
		{ProductCode: "F500", NavDate: 20240101, UnitNav: 1.05}, // store failure
	}
	diags := []domain.RowDiagnostic{{Row: 7, Reason: "nav_date: value missing"}}

	result, err := writer.WriteBatch(context.Background(), attr, records, diags)
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if result.Inserted != 1 || result.Duplicates != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(failures.entries) != 3 {
		t.Fatalf("expected 3 failure entries, got %d", len(failures.entries))
	}
	if !strings.Contains(failures.entries[0].Reason, "duplicate: product_code=F001 nav_date=20240101") {
		t.Fatalf("unexpected duplicate reason: %q", failures.entries[0].Reason)
	}
	if !strings.Contains(failures.entries[2].Reason, "row 7 skipped") {
		t.Fatalf("unexpected diagnostic reason: %q", failures.entries[2].Reason)
	}
}

func TestWriteBatchStampsSourceID(t *testing.T) {
	repo := &fakeNavRepo{}
	writer := NewIngestionWriter(repo, &fakeFailureLog{}, discardLogger())

	attr := domain.SourceAttribution{Attachment: "a.xlsx"}
	_, err := writer.WriteBatch(context.Background(), attr,
		[]domain.NavRecord{{ProductCode: "F001", NavDate: 20240101, UnitNav: 1.0}}, nil)
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if len(repo.records) != 1 || repo.records[0].SourceID != repo.attributions[0].ID {
		t.Fatalf("expected record stamped with attribution id, got %+v", repo.records)
	}
}

func TestWriteBatchSurvivesBrokenFailureLog(t *testing.T) {
	repo := &fakeNavRepo{}
	failures := &fakeFailureLog{recordErr: errors.New("failure table gone")}
	writer := NewIngestionWriter(repo, failures, discardLogger())

	attr := domain.SourceAttribution{Attachment: "a.xlsx"}
	records := []domain.NavRecord{
		{ProductCode: "F001", NavDate: 20240101, UnitNav: 1.0},
		{ProductCode: "F001", NavDate: 20240101, UnitNav: 1.0},
	}

	result, err := writer.WriteBatch(context.Background(), attr, records, nil)
	if err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}
	if result.Inserted != 1 || result.Duplicates != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
