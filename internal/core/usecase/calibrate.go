package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
)

// identitySourceSamples caps how many attributions are traced per
// conflicting code in the identity anomaly report.
const identitySourceSamples = 3

// CalibrationUseCase runs the post-hoc anomaly pass over the primary
// store and rebuilds the clean view. Read-only against the primary
// store; the rebuild is idempotent.
//
// Only the range detector excludes records. The identity detector is
// informational: it surfaces name/code conflicts with their source
// attributions for manual review but never filters the view.
type CalibrationUseCase struct {
	primary  ports.NavRepository
	clean    ports.CleanStore
	navLimit float64
	logger   *slog.Logger
}

func NewCalibrationUseCase(primary ports.NavRepository, clean ports.CleanStore, navLimit float64, logger *slog.Logger) *CalibrationUseCase {
	if navLimit <= 0 {
		navLimit = 5.0
	}
	return &CalibrationUseCase{primary: primary, clean: clean, navLimit: navLimit, logger: logger}
}

func (uc *CalibrationUseCase) Run(ctx context.Context) (domain.CalibrationReport, error) {
	rows, err := uc.primary.ListRecords(ctx)
	if err != nil {
		return domain.CalibrationReport{}, fmt.Errorf("list primary records: %w", err)
	}

	report, cleanRecords := uc.analyze(rows)

	if err := uc.clean.Replace(ctx, cleanRecords); err != nil {
		return report, fmt.Errorf("replace clean view: %w", err)
	}

	uc.logger.Info("clean_view_rebuilt",
		"total", report.TotalRecords,
		"clean", report.CleanRecords,
		"excluded", report.ExcludedRecords,
		"range_anomalies", len(report.RangeAnomalies),
		"identity_anomalies", len(report.IdentityAnomalies),
	)
	return report, nil
}

// Detect runs both detectors over the primary store and reports what a
// rebuild would do, without writing the clean view. Serves the
// read-only anomaly endpoint.
func (uc *CalibrationUseCase) Detect(ctx context.Context) (domain.CalibrationReport, error) {
	rows, err := uc.primary.ListRecords(ctx)
	if err != nil {
		return domain.CalibrationReport{}, fmt.Errorf("list primary records: %w", err)
	}
	report, _ := uc.analyze(rows)
	return report, nil
}

func (uc *CalibrationUseCase) analyze(rows []domain.RecordWithSource) (domain.CalibrationReport, []domain.CleanRecord) {
	report := domain.CalibrationReport{
		TotalRecords: len(rows),
		RebuiltAt:    time.Now().UTC(),
	}

	flagged := make(map[int64]bool)
	for _, row := range rows {
		if uc.outOfRange(row.Record) {
			flagged[row.Record.ID] = true
			report.RangeAnomalies = append(report.RangeAnomalies, row.Record)
		}
	}

	report.IdentityAnomalies = uc.detectIdentityAnomalies(rows)

	cleanRecords := uc.buildCleanView(rows, flagged)
	report.CleanRecords = len(cleanRecords)
	report.ExcludedRecords = report.TotalRecords - report.CleanRecords
	return report, cleanRecords
}

func (uc *CalibrationUseCase) outOfRange(rec domain.NavRecord) bool {
	if rec.UnitNav > uc.navLimit {
		return true
	}
	return rec.CumulativeNav != nil && *rec.CumulativeNav > uc.navLimit
}

func (uc *CalibrationUseCase) detectIdentityAnomalies(rows []domain.RecordWithSource) []domain.IdentityAnomaly {
	type codeTrace struct {
		sources []domain.SourceAttribution
		seen    map[int64]bool
	}
	byName := make(map[string]map[string]*codeTrace)

	for _, row := range rows {
		name := row.Record.ProductName
		if name == "" {
			continue
		}
		codes, ok := byName[name]
		if !ok {
			codes = make(map[string]*codeTrace)
			byName[name] = codes
		}
		trace, ok := codes[row.Record.ProductCode]
		if !ok {
			trace = &codeTrace{seen: make(map[int64]bool)}
			codes[row.Record.ProductCode] = trace
		}
		if row.Source != nil && !trace.seen[row.Source.ID] && len(trace.sources) < identitySourceSamples {
			trace.seen[row.Source.ID] = true
			trace.sources = append(trace.sources, *row.Source)
		}
	}

	var anomalies []domain.IdentityAnomaly
	for name, codes := range byName {
		if len(codes) < 2 {
			continue
		}
		anomaly := domain.IdentityAnomaly{ProductName: name}
		for code, trace := range codes {
			anomaly.Codes = append(anomaly.Codes, domain.CodeProvenance{
				ProductCode: code,
				Sources:     trace.sources,
			})
		}
		sort.Slice(anomaly.Codes, func(i, j int) bool {
			return anomaly.Codes[i].ProductCode < anomaly.Codes[j].ProductCode
		})
		anomalies = append(anomalies, anomaly)
	}
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].ProductName < anomalies[j].ProductName
	})
	return anomalies
}

// buildCleanView drops range-flagged records, deduplicates on
// (code, date) keeping the lowest id, and orders the result so a
// rebuild over an unchanged primary store is byte-identical.
func (uc *CalibrationUseCase) buildCleanView(rows []domain.RecordWithSource, flagged map[int64]bool) []domain.CleanRecord {
	type key struct {
		code string
		date int
	}
	keep := make(map[key]domain.RecordWithSource)
	for _, row := range rows {
		if flagged[row.Record.ID] {
			continue
		}
		k := key{code: row.Record.ProductCode, date: row.Record.NavDate}
		if existing, ok := keep[k]; !ok || row.Record.ID < existing.Record.ID {
			keep[k] = row
		}
	}

	out := make([]domain.CleanRecord, 0, len(keep))
	for _, row := range keep {
		clean := domain.CleanRecord{NavRecord: row.Record}
		if row.Source != nil {
			clean.Subject = row.Source.Subject
			clean.Sender = row.Source.Sender
			clean.MessageDate = row.Source.MessageDate
			clean.Attachment = row.Source.Attachment
			clean.SheetName = row.Source.SheetName
		}
		out = append(out, clean)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductCode != out[j].ProductCode {
			return out[i].ProductCode < out[j].ProductCode
		}
		return out[i].NavDate < out[j].NavDate
	})
	return out
}
