package xlsx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

// Decoder turns workbook bytes into raw per-sheet grids. No header
// inference here: every cell comes back as its displayed string, the
// extraction engine decides what it means.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(_ context.Context, filename string, data []byte) ([]domain.SheetGrid, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	out := make([]domain.SheetGrid, 0, len(sheets))
	for _, name := range sheets {
		rows, err := book.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s of %s: %w", name, filename, err)
		}
		grid := make(domain.Grid, len(rows))
		for i, row := range rows {
			grid[i] = row
		}
		out = append(out, domain.SheetGrid{Name: name, Grid: grid})
	}
	return out, nil
}
