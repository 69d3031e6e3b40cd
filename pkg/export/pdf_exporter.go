package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is one labelled value on the rendered document.
type Field struct {
	Label string
	Value string
}

// Image is an attachment embedded into the rendered document.
type Image struct {
	Name   string
	Type   string // "PNG" or "JPG"
	Reader io.Reader
}

// PDFExporter renders a ticket summary into a PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF with a title, a label/value table and embedded images.
func (e *PDFExporter) Render(title string, fields []Field, images []Image) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("pdf requires at least one field")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const labelWidth = 55.0
	const valueWidth = 135.0
	for _, field := range fields {
		pdf.SetFont("Arial", "B", 9)
		y := pdf.GetY()
		pdf.CellFormat(labelWidth, 7, field.Label, "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(valueWidth, 7, field.Value, "1", "", false)
		if pdf.GetY() == y {
			pdf.Ln(7)
		}
	}

	for _, image := range images {
		opts := gofpdf.ImageOptions{ImageType: image.Type, ReadDpi: true}
		info := pdf.RegisterImageOptionsReader(image.Name, opts, image.Reader)
		if pdf.Err() {
			// Unreadable attachment: clear the error and keep rendering.
			pdf.ClearError()
			continue
		}
		width := info.Width()
		if width > 180 {
			width = 180
		}
		pdf.AddPage()
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 8, image.Name, "", 1, "", false, 0, "")
		pdf.ImageOptions(image.Name, 10, pdf.GetY(), width, 0, false, opts, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
