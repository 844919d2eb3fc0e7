package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes a Dataset as RFC 4180 CSV.
type CSVExporter struct {
	// BOM lets spreadsheet tools detect UTF-8.
	BOM bool
	// Raw disables the formula guard.
	Raw bool
}

// NewCSVExporter returns an exporter with BOM and formula guard enabled.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{BOM: true}
}

// Render encodes the dataset. Missing cells are empty.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv: %w", errNoHeaders)
	}
	var buf bytes.Buffer
	if e.BOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	var rec []string
	for i := range data.Rows {
		rec = data.record(i, rec)
		if !e.Raw {
			for c := range rec {
				rec[c] = guardFormula(rec[c])
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// guardFormula prefixes cells a spreadsheet would evaluate (=, +, -, @, tab,
// carriage return) with a quote. Plain numbers pass through.
func guardFormula(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return cell
		}
		return "'" + cell
	}
	return cell
}
