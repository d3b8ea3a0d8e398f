package usecase

import (
	"context"
	"reflect"
	"testing"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func navRow(id int64, name, code string, date int, nav float64) domain.RecordWithSource {
	return domain.RecordWithSource{
		Record: domain.NavRecord{ID: id, ProductName: name, ProductCode: code, NavDate: date, UnitNav: nav},
	}
}

func TestCalibrationExcludesOutOfRangeRecords(t *testing.T) {
	cum := 6.2
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		navRow(1, "稳健一号", "F001", 20240101, 1.01),
		navRow(2, "稳健一号", "F001", 20240102, 5.01),
		{Record: domain.NavRecord{ID: 3, ProductCode: "F002", NavDate: 20240101, UnitNav: 1.0, CumulativeNav: &cum}},
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 5.0, discardLogger())

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.TotalRecords != 3 || report.CleanRecords != 1 || report.ExcludedRecords != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.RangeAnomalies) != 2 {
		t.Fatalf("expected 2 range anomalies, got %d", len(report.RangeAnomalies))
	}
	if len(clean.replaced) != 1 || len(clean.replaced[0]) != 1 {
		t.Fatalf("unexpected clean view: %+v", clean.replaced)
	}
	if clean.replaced[0][0].ID != 1 {
		t.Fatalf("expected only record 1 in clean view, got id=%d", clean.replaced[0][0].ID)
	}
}

func TestCalibrationBoundaryValueStays(t *testing.T) {
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		navRow(1, "", "F001", 20240101, 5.0),
	}}
	uc := NewCalibrationUseCase(repo, &fakeCleanStore{}, 5.0, discardLogger())

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.RangeAnomalies) != 0 || report.CleanRecords != 1 {
		t.Fatalf("nav exactly at the limit must stay, got %+v", report)
	}
}

func TestCalibrationDeduplicatesKeepingLowestID(t *testing.T) {
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		navRow(9, "稳健一号", "F001", 20240101, 1.02),
		navRow(4, "稳健一号", "F001", 20240101, 1.01),
		navRow(5, "稳健一号", "F001", 20240102, 1.03),
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 5.0, discardLogger())

	if _, err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	view := clean.replaced[0]
	if len(view) != 2 {
		t.Fatalf("expected 2 clean records, got %d", len(view))
	}
	if view[0].ID != 4 || view[0].NavDate != 20240101 {
		t.Fatalf("expected lowest id kept and date order, got %+v", view[0])
	}
}

func TestCalibrationRebuildIsIdempotent(t *testing.T) {
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		navRow(2, "进取二号", "F002", 20240101, 1.02),
		navRow(1, "稳健一号", "F001", 20240102, 1.01),
		navRow(3, "稳健一号", "F001", 20240101, 6.0),
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 5.0, discardLogger())

	if _, err := uc.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := uc.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !reflect.DeepEqual(clean.replaced[0], clean.replaced[1]) {
		t.Fatalf("rebuild over unchanged store must be identical:\n%+v\n%+v", clean.replaced[0], clean.replaced[1])
	}
}

func TestCalibrationIdentityAnomalyIsInformational(t *testing.T) {
	src1 := &domain.SourceAttribution{ID: 1, Subject: "nav a", Sender: "a@fund.cn"}
	src2 := &domain.SourceAttribution{ID: 2, Subject: "nav b", Sender: "b@fund.cn"}
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		{Record: domain.NavRecord{ID: 1, ProductName: "稳健一号", ProductCode: "F001", NavDate: 20240101, UnitNav: 1.0}, Source: src1},
		{Record: domain.NavRecord{ID: 2, ProductName: "稳健一号", ProductCode: "F002", NavDate: 20240101, UnitNav: 1.1}, Source: src2},
		{Record: domain.NavRecord{ID: 3, ProductName: "进取二号", ProductCode: "F003", NavDate: 20240101, UnitNav: 1.2}},
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 5.0, discardLogger())

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.IdentityAnomalies) != 1 {
		t.Fatalf("expected 1 identity anomaly, got %+v", report.IdentityAnomalies)
	}
	anomaly := report.IdentityAnomalies[0]
	if anomaly.ProductName != "稳健一号" || len(anomaly.Codes) != 2 {
		t.Fatalf("unexpected anomaly: %+v", anomaly)
	}
	if anomaly.Codes[0].ProductCode != "F001" || anomaly.Codes[1].ProductCode != "F002" {
		t.Fatalf("expected codes sorted, got %+v", anomaly.Codes)
	}
	if len(anomaly.Codes[0].Sources) != 1 || anomaly.Codes[0].Sources[0].Sender != "a@fund.cn" {
		t.Fatalf("expected attribution sample per code, got %+v", anomaly.Codes[0].Sources)
	}
	// All three records stay in the clean view.
	if report.CleanRecords != 3 {
		t.Fatalf("identity anomalies must not exclude records, got %+v", report)
	}
}

func TestCalibrationDenormalizesAttribution(t *testing.T) {
	src := &domain.SourceAttribution{ID: 7, Subject: "nav", Sender: "ops@fund.cn", Attachment: "a.xlsx", SheetName: "Sheet1"}
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		{Record: domain.NavRecord{ID: 1, ProductCode: "F001", NavDate: 20240101, UnitNav: 1.0}, Source: src},
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 0, discardLogger())

	if _, err := uc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := clean.replaced[0][0]
	if got.Subject != "nav" || got.Sender != "ops@fund.cn" || got.SheetName != "Sheet1" {
		t.Fatalf("expected attribution denormalized, got %+v", got)
	}
}

func TestDetectLeavesCleanViewUntouched(t *testing.T) {
	repo := &fakeNavRepo{rows: []domain.RecordWithSource{
		navRow(1, "稳健一号", "F001", 20240101, 1.01),
		navRow(2, "稳健一号", "F001", 20240102, 9.9),
		navRow(3, "稳健一号", "F002", 20240101, 1.02),
	}}
	clean := &fakeCleanStore{}
	uc := NewCalibrationUseCase(repo, clean, 5.0, discardLogger())

	report, err := uc.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(report.RangeAnomalies) != 1 || len(report.IdentityAnomalies) != 1 {
		t.Fatalf("expected both detectors to report, got %+v", report)
	}
	if report.CleanRecords != 2 || report.ExcludedRecords != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(clean.replaced) != 0 {
		t.Fatalf("Detect must not rewrite the clean view, got %d rebuilds", len(clean.replaced))
	}
}
