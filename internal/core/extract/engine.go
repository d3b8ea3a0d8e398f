package extract

import (
	"fmt"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// Engine is the public extraction entry point: raw grid in, canonical
// records out. It is pure; all I/O stays with the callers.
type Engine struct {
	table SynonymTable
}

func NewEngine(table SynonymTable) *Engine {
	if table == nil {
		table = DefaultSynonyms()
	}
	return &Engine{table: table}
}

// Extract classifies the grid, resolves its fields and normalizes the
// data region. It fails with ErrUnrecognizedFormat when no layout
// matches and ErrIncompleteFields when a required field cannot be
// resolved; row-level problems come back as diagnostics alongside the
// records and never escalate.
func (e *Engine) Extract(grid domain.Grid) ([]domain.NavRecord, []domain.RowDiagnostic, error) {
	cls := Classify(grid, e.table)

	switch cls.Kind {
	case LayoutTabular, LayoutTitledTabular:
		columns, err := ResolveColumns(grid[cls.HeaderRow], e.table)
		if err != nil {
			return nil, nil, err
		}
		records, diags := NormalizeTable(grid, cls.DataRow, columns)
		return records, diags, nil

	case LayoutKeyValue:
		records, diags := NormalizeKeyValue(grid, e.table)
		return records, diags, nil

	default:
		return nil, nil, domain.WrapError(
			domain.ErrUnrecognizedFormat,
			"classify grid",
			fmt.Errorf("no qualifying header or label rows in %dx%d grid", len(grid), gridWidth(grid)),
		)
	}
}

func gridWidth(grid domain.Grid) int {
	w := 0
	for _, row := range grid {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
