package extract

import (
	"strings"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// LayoutKind tags the spreadsheet layouts the engine understands.
type LayoutKind int

const (
	LayoutUnrecognized LayoutKind = iota
	LayoutTabular
	LayoutTitledTabular
	LayoutKeyValue
)

func (k LayoutKind) String() string {
	switch k {
	case LayoutTabular:
		return "tabular"
	case LayoutTitledTabular:
		return "titled_tabular"
	case LayoutKeyValue:
		return "key_value"
	default:
		return "unrecognized"
	}
}

// Classification is the classifier verdict plus the row where data
// begins. HeaderRow is -1 for key_value layouts.
type Classification struct {
	Kind      LayoutKind
	HeaderRow int
	DataRow   int
}

// headerScanRows bounds the header search: statements carry at most a
// few title rows above the real header.
const headerScanRows = 5

// minHeaderFields is how many distinct logical fields a row must match
// to qualify as a header. One match is not enough: a title row like
// "资产净值报告" would otherwise pass via the bare "净值" variant.
const minHeaderFields = 2

// Classify decides which layout a raw grid matches.
//
// The first qualifying row within the scan window becomes the header:
// row 0 means plain tabular, a later row means rows above it are
// titles. Grids with no header row are checked for the vertical
// key-value form, where at least one section must label all required
// fields. Anything else is unrecognized.
func Classify(grid domain.Grid, table SynonymTable) Classification {
	limit := headerScanRows
	if len(grid) < limit {
		limit = len(grid)
	}

	for row := 0; row < limit; row++ {
		if countHeaderFields(grid[row], table) < minHeaderFields {
			continue
		}
		kind := LayoutTabular
		if row > 0 {
			kind = LayoutTitledTabular
		}
		return Classification{Kind: kind, HeaderRow: row, DataRow: row + 1}
	}

	for _, section := range splitSections(grid) {
		if sectionHasRequiredLabels(grid, section, table) {
			return Classification{Kind: LayoutKeyValue, HeaderRow: -1}
		}
	}

	return Classification{Kind: LayoutUnrecognized, HeaderRow: -1}
}

func countHeaderFields(row []string, table SynonymTable) int {
	seen := map[Field]bool{}
	for _, cell := range row {
		if field, ok := table.Match(cell); ok {
			seen[field] = true
		}
	}
	return len(seen)
}

// section is a half-open row range [start, end) between empty rows.
type section struct {
	start, end int
}

func splitSections(grid domain.Grid) []section {
	var out []section
	start := -1
	for row := 0; row <= len(grid); row++ {
		empty := row == len(grid) || rowIsEmpty(grid[row])
		switch {
		case empty && start >= 0:
			out = append(out, section{start: start, end: row})
			start = -1
		case !empty && start < 0:
			start = row
		}
	}
	return out
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sectionHasRequiredLabels(grid domain.Grid, sec section, table SynonymTable) bool {
	found := map[Field]bool{}
	for row := sec.start; row < sec.end; row++ {
		for _, cell := range grid[row] {
			if field, ok := table.Match(cell); ok {
				found[field] = true
			}
		}
	}
	for _, field := range RequiredFields {
		if !found[field] {
			return false
		}
	}
	return true
}
