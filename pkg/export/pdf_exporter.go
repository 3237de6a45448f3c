package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth   = 277.0
	pdfFirstColumn = 32.0
)

// PDFExporter renders a Workbook as a landscape PDF, one page per sheet.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws every sheet as a bordered table under its title. The first
// column is kept narrow for row labels; the rest share the remaining width.
func (e *PDFExporter) Render(book Workbook) ([]byte, error) {
	if len(book.Sheets) == 0 {
		return nil, fmt.Errorf("pdf requires at least one sheet")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetTitle(book.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, sheet := range book.Sheets {
		if err := sheet.validate("pdf"); err != nil {
			return nil, err
		}
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(sheet.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)

		widths := columnWidths(len(sheet.Headers))
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range sheet.Headers {
			pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range sheet.Rows {
			for i, value := range row {
				align := "C"
				if i == 0 {
					align = "L"
				}
				pdf.CellFormat(widths[i], 12, tr(value), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(n int) []float64 {
	widths := make([]float64, n)
	if n == 1 {
		widths[0] = pdfPageWidth
		return widths
	}
	widths[0] = pdfFirstColumn
	rest := (pdfPageWidth - pdfFirstColumn) / float64(n-1)
	for i := 1; i < n; i++ {
		widths[i] = rest
	}
	return widths
}
