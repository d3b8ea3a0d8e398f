package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// NormalizeTable walks the data region of a (titled) tabular grid and
// emits one record per usable row. Rows that fail coercion become
// diagnostics, never errors: a bad row must not sink the batch.
func NormalizeTable(grid domain.Grid, dataRow int, columns map[Field]int) ([]domain.NavRecord, []domain.RowDiagnostic) {
	var (
		records []domain.NavRecord
		diags   []domain.RowDiagnostic
	)
	for row := dataRow; row < len(grid); row++ {
		if rowIsEmpty(grid[row]) {
			continue
		}

		values := make(map[Field]string, len(columns))
		for field, col := range columns {
			if col < len(grid[row]) {
				if v := strings.TrimSpace(grid[row][col]); v != "" {
					values[field] = v
				}
			}
		}

		rec, err := assembleRecord(values)
		if err != nil {
			diags = append(diags, domain.RowDiagnostic{Row: row, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, diags
}

// NormalizeKeyValue assembles one record per key-value section. A
// section that labels some fields but cannot produce a valid record is
// reported as a diagnostic at its first row.
func NormalizeKeyValue(grid domain.Grid, table SynonymTable) ([]domain.NavRecord, []domain.RowDiagnostic) {
	var (
		records []domain.NavRecord
		diags   []domain.RowDiagnostic
	)
	for _, sec := range splitSections(grid) {
		values := resolveSectionLabels(grid, sec, table)
		if len(values) == 0 {
			continue
		}
		rec, err := assembleRecord(values)
		if err != nil {
			diags = append(diags, domain.RowDiagnostic{Row: sec.start, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, diags
}

func assembleRecord(values map[Field]string) (domain.NavRecord, error) {
	code := cleanText(values[FieldProductCode])
	if code == "" {
		return domain.NavRecord{}, domain.WrapError(domain.ErrRowCoercion, "product_code", errMissingValue)
	}

	navDate, err := parseDateKey(values[FieldNavDate])
	if err != nil {
		return domain.NavRecord{}, domain.WrapError(domain.ErrRowCoercion, "nav_date", err)
	}

	unitNav, err := parsePositiveDecimal(values[FieldUnitNav])
	if err != nil {
		return domain.NavRecord{}, domain.WrapError(domain.ErrRowCoercion, "unit_nav", err)
	}

	rec := domain.NavRecord{
		ProductName: cleanText(values[FieldProductName]),
		ProductCode: code,
		NavDate:     navDate,
		UnitNav:     unitNav,
	}

	// Cumulative NAV is best-effort: absent or unparsable stays null.
	if raw, ok := values[FieldCumulativeNav]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			rec.CumulativeNav = &v
		}
	}
	return rec, nil
}

var errMissingValue = fmt.Errorf("value missing")

// cleanText trims a text value and drops underscore-suffixed share
// class qualifiers, e.g. "SLA149_总层面" → "SLA149".
func cleanText(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.Index(v, "_"); i >= 0 {
		v = v[:i]
	}
	return v
}

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// parseDateKey coerces a date cell to its 8-digit YYYYMMDD key.
func parseDateKey(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errMissingValue
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		key, err := strconv.Atoi(t.Format("20060102"))
		if err != nil {
			return 0, err
		}
		return key, nil
	}
	return 0, fmt.Errorf("unsupported date format: %q", raw)
}

func parsePositiveDecimal(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errMissingValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("not a positive finite value: %q", raw)
	}
	return v, nil
}
