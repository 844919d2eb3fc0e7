package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	maxColumnWide = 60.0
)

// XLSXExporter renders a Dataset as a single-sheet workbook with a bold,
// frozen header row and an autofilter over the data.
type XLSXExporter struct {
	Sheet string
}

// NewXLSXExporter builds an exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	return &XLSXExporter{Sheet: sheet}
}

// Render produces workbook bytes for the dataset. Missing cells are left blank.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx: %w", errNoHeaders)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := e.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	widths := make([]float64, len(data.Headers))
	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
		widths[i] = float64(len(h))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}

	var rec []string
	values := make([]interface{}, len(data.Headers))
	for r := range data.Rows {
		rec = data.record(r, rec)
		for i, cell := range rec {
			values[i] = cell
			if w := float64(len(cell)); w > widths[i] {
				widths[i] = w
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", r+1, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("style xlsx headers: %w", err)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if w > maxColumnWide {
			w = maxColumnWide
		}
		if err := f.SetColWidth(sheet, col, col, w+2); err != nil {
			return nil, fmt.Errorf("size xlsx column %s: %w", col, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze xlsx header: %w", err)
	}
	if len(data.Rows) > 0 {
		end, err := excelize.CoordinatesToCellName(len(data.Headers), len(data.Rows)+1)
		if err != nil {
			return nil, err
		}
		if err := f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return nil, fmt.Errorf("xlsx autofilter: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
