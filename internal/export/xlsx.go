package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hivefolio/tracker/internal/domain"
)

// XLSXWriter writes the portfolio report as an Excel workbook with
// Summary, Tokens and Pools sheets.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates a writer that saves the workbook at path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

func (w *XLSXWriter) Write(_ context.Context, p domain.Portfolio) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name string
		rows [][]any
	}{
		{"Summary", summaryRows(p)},
		{"Tokens", tokenRows(p)},
		{"Pools", poolRows(p)},
	}

	for i, sheet := range sheets {
		if i == 0 {
			// The default sheet becomes the first report sheet.
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return fmt.Errorf("renaming default sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("creating sheet %s: %w", sheet.name, err)
			}
		}
		for rowIdx, row := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("cell name for row %d: %w", rowIdx+1, err)
			}
			if err := f.SetSheetRow(sheet.name, cell, &row); err != nil {
				return fmt.Errorf("writing row %d of %s: %w", rowIdx+1, sheet.name, err)
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", w.path, err)
	}
	return nil
}
