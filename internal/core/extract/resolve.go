package extract

import (
	"fmt"
	"strings"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// ResolveColumns maps logical fields to column indexes of a header row.
// The first column claiming a field keeps it. Resolution fails with
// ErrIncompleteFields when any required field stays unmapped.
func ResolveColumns(header []string, table SynonymTable) (map[Field]int, error) {
	columns := make(map[Field]int, len(fieldOrder))
	for col, cell := range header {
		field, ok := table.Match(cell)
		if !ok {
			continue
		}
		if _, claimed := columns[field]; !claimed {
			columns[field] = col
		}
	}

	if missing := missingRequired(columns); len(missing) > 0 {
		return nil, domain.WrapError(
			domain.ErrIncompleteFields,
			"resolve header columns",
			fmt.Errorf("missing %s", strings.Join(missing, ", ")),
		)
	}
	return columns, nil
}

func missingRequired(columns map[Field]int) []string {
	var missing []string
	for _, field := range RequiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field.String())
		}
	}
	return missing
}

// resolveSectionLabels maps logical fields to values inside one
// key-value section. A label's value lives either after a full-width
// colon in the same cell or in the first usable cell up to two columns
// to the right; cells that are themselves labels never count as values.
func resolveSectionLabels(grid domain.Grid, sec section, table SynonymTable) map[Field]string {
	values := make(map[Field]string)
	for row := sec.start; row < sec.end; row++ {
		for col, cell := range grid[row] {
			field, ok := table.Match(cell)
			if !ok {
				continue
			}
			if _, claimed := values[field]; claimed {
				continue
			}
			if v, ok := labelValue(grid, row, col, cell, table); ok {
				values[field] = v
			}
		}
	}
	return values
}

func labelValue(grid domain.Grid, row, col int, cell string, table SynonymTable) (string, bool) {
	for _, sep := range []string{"：", ":"} {
		if _, after, found := strings.Cut(cell, sep); found {
			v := strings.TrimSpace(after)
			if v != "" && !table.isLabelText(v) {
				return v, true
			}
		}
	}

	for offset := 1; offset <= 2; offset++ {
		if col+offset >= len(grid[row]) {
			break
		}
		v := strings.TrimSpace(grid[row][col+offset])
		if v != "" && !table.isLabelText(v) {
			return v, true
		}
	}
	return "", false
}
