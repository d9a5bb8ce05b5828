package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

var pdfColumns = []struct {
	header string
	width  float64
}{
	{"Title", 60},
	{"Priority", 20},
	{"State", 25},
	{"Deadline", 45},
	{"Description", 40},
}

func renderPDF(r *report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(r.Title, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Generated "+r.GeneratedAt.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Total %d | To do %d | In progress %d | Done %d | Overdue %d",
		r.Summary.Total, r.Summary.ToDo, r.Summary.InProgress, r.Summary.Done, r.Summary.Overdue), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, col.header, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, t := range r.Tasks {
		values := []string{t.Title, t.Priority, t.State, t.deadlineText(), t.Description}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 6, truncate(pdf, tr, values[i], col.width-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(r.Tasks) == 0 {
		pdf.CellFormat(0, 6, "No tasks.", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

// truncate shortens s with an ellipsis so it fits in width millimetres
func truncate(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if pdf.GetStringWidth(tr(s)) <= width {
		return tr(s)
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return tr(string(runes) + "...")
}
