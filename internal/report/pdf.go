package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

// WritePDF renders a loaded view as an A4 document.
func WritePDF(w io.Writer, title string, v View) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Report %s", v.SessionID), false)
	pdf.SetAuthor("thunder", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if strings.TrimSpace(title) == "" {
		title = "Analysis report"
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(14)

	for _, s := range v.Sections {
		writeSection(pdf, tr, s)
		pdf.Ln(6)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeSection(pdf *gofpdf.Fpdf, tr func(string) string, s Section) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, tr(s.Heading))
	pdf.Ln(10)

	if s.Placeholder != "" {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, tr(s.Placeholder), "", "L", false)
		return
	}

	for _, it := range s.Items {
		pdf.SetFont("Helvetica", "B", 12)
		head := it.Title
		if it.Confidence != "" {
			head += "  (" + it.Confidence + ")"
		}
		pdf.MultiCell(0, 6, tr(head), "", "L", false)

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(it.Why), "", "L", false)

		if len(it.Badges) > 0 {
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 5, tr(strings.Join(it.Badges, "  ")), "", "L", false)
		}
		pdf.Ln(3)
	}
}
