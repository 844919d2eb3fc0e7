package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is a label/value pair printed in the document header block.
type Field struct {
	Label string
	Value string
}

// Block is one titled part of a document. Text, Bullets and Table are printed in that order when set.
type Block struct {
	Heading string
	Text    string
	Bullets []string
	Table   *Dataset
}

// Document describes a printable report.
type Document struct {
	Title    string
	Subtitle string
	Fields   []Field
	Blocks   []Block
	Footer   string
}

// PDFExporter renders documents into A4 portrait PDFs.
type PDFExporter struct {
	font string
}

// NewPDFExporter constructs a PDF exporter using the core Helvetica font.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{font: "Helvetica"}
}

const (
	pageWidth   = 190.0
	labelWidth  = 45.0
	lineHeight  = 5.5
	headingSize = 12
)

// Render lays out the document and returns the PDF bytes.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(e.font, "I", 8)
		left := tr(doc.Footer)
		pdf.CellFormat(pageWidth/2, 6, left, "", 0, "L", false, 0, "")
		pdf.CellFormat(pageWidth/2, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	pdf.SetFont(e.font, "B", 16)
	pdf.MultiCell(0, 8, tr(doc.Title), "", "C", false)
	if doc.Subtitle != "" {
		pdf.SetFont(e.font, "", 11)
		pdf.MultiCell(0, 6, tr(doc.Subtitle), "", "C", false)
	}
	pdf.Ln(4)

	for _, field := range doc.Fields {
		pdf.SetFont(e.font, "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, tr(field.Label), "", 0, "", false, 0, "")
		pdf.SetFont(e.font, "", 10)
		pdf.MultiCell(0, lineHeight, tr(field.Value), "", "", false)
	}

	for _, block := range doc.Blocks {
		e.renderBlock(pdf, tr, block)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) renderBlock(pdf *gofpdf.Fpdf, tr func(string) string, block Block) {
	pdf.Ln(4)
	if block.Heading != "" {
		pdf.SetFont(e.font, "B", headingSize)
		pdf.SetFillColor(230, 236, 245)
		pdf.CellFormat(0, 7, tr(block.Heading), "", 1, "", true, 0, "")
		pdf.Ln(1)
	}
	pdf.SetFont(e.font, "", 10)
	if block.Text != "" {
		pdf.MultiCell(0, lineHeight, tr(block.Text), "", "", false)
	}
	for _, bullet := range block.Bullets {
		pdf.CellFormat(5, lineHeight, "-", "", 0, "", false, 0, "")
		pdf.MultiCell(0, lineHeight, tr(bullet), "", "", false)
	}
	if block.Table != nil && len(block.Table.Headers) > 0 {
		e.renderTable(pdf, tr, *block.Table)
	}
}

func (e *PDFExporter) renderTable(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset) {
	colWidth := pageWidth / float64(len(data.Headers))
	pdf.SetFont(e.font, "B", 9)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(e.font, "", 9)
	for _, row := range data.Rows {
		lines := 1
		cells := make([][]string, len(data.Headers))
		for i, header := range data.Headers {
			cells[i] = pdf.SplitText(tr(row[header]), colWidth-2)
			if len(cells[i]) > lines {
				lines = len(cells[i])
			}
		}
		height := float64(lines) * lineHeight
		if pdf.GetY()+height > 280 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for i := range data.Headers {
			pdf.Rect(x+float64(i)*colWidth, y, colWidth, height, "D")
			for j, line := range cells[i] {
				pdf.SetXY(x+float64(i)*colWidth+1, y+float64(j)*lineHeight)
				pdf.CellFormat(colWidth-2, lineHeight, line, "", 0, "", false, 0, "")
			}
		}
		pdf.SetXY(x, y+height)
	}
}
