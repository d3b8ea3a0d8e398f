package xlsxreport

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
)

const summarySheet = "汇总"

// sheetNameLimit is the workbook format's hard cap on sheet names.
const sheetNameLimit = 31

// Writer renders the clean view into a workbook: one summary sheet
// plus one sheet per product code, records sorted by date.
type Writer struct {
	clean ports.CleanReader
}

func NewWriter(clean ports.CleanReader) *Writer {
	return &Writer{clean: clean}
}

func (w *Writer) Write(ctx context.Context, path string) error {
	products, err := w.clean.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	summaryHeader := []interface{}{
		"产品代码", "产品名称", "记录数", "最早日期", "最新日期", "最早单位净值", "最新单位净值",
	}
	if err := book.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for i, p := range products {
		row := []interface{}{
			p.ProductCode, p.ProductName, p.Records,
			p.FirstDate, p.LastDate, p.FirstNav, p.LastNav,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := book.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %s: %w", p.ProductCode, err)
		}

		if err := w.writeProductSheet(ctx, book, p.ProductCode); err != nil {
			return err
		}
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeProductSheet(ctx context.Context, book *excelize.File, productCode string) error {
	records, err := w.clean.ListByProduct(ctx, productCode)
	if err != nil {
		return fmt.Errorf("list records for %s: %w", productCode, err)
	}

	name := productCode
	if len(name) > sheetNameLimit {
		name = name[:sheetNameLimit]
	}
	if _, err := book.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	header := []interface{}{"产品名称", "产品代码", "净值日期", "单位净值", "累计单位净值"}
	if err := book.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header for %s: %w", name, err)
	}

	for i, rec := range records {
		row := []interface{}{rec.ProductName, rec.ProductCode, rec.NavDate, rec.UnitNav}
		if rec.CumulativeNav != nil {
			row = append(row, *rec.CumulativeNav)
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := book.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write row %d for %s: %w", i, name, err)
		}
	}
	return nil
}
