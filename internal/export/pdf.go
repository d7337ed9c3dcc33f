package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// PDFExporter exports debate results to PDF format.
type PDFExporter struct{}

// Export writes the debate result as PDF.
func (e *PDFExporter) Export(result *core.DebateResult, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(result.Question), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	e.addMetadataRow(pdf, "Session:", shortID(result.SessionID))
	e.addMetadataRow(pdf, "Outcome:", formatState(result.State))
	e.addMetadataRow(pdf, "Consensus:", fmt.Sprintf("%.0f%%", result.ConsensusScore*100))
	e.addMetadataRow(pdf, "Created:", result.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if result.CompletedAt != nil {
		e.addMetadataRow(pdf, "Completed:", result.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		e.addMetadataRow(pdf, "Duration:", formatDuration(result.CreatedAt, *result.CompletedAt))
	}
	pdf.Ln(5)

	// Panel section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Expert Panel")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	for _, match := range result.Panel {
		pdf.Cell(0, 5, e.sanitizeText(formatExpert(match)))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	// Synthesis section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Synthesis")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, e.sanitizeText(result.Synthesis), "", "", false)
	pdf.Ln(5)

	// Deliberation content
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Deliberation")
	pdf.Ln(8)

	if len(result.Rounds) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No rounds recorded.")
		pdf.Ln(6)
	}
	for _, round := range result.Rounds {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFillColor(230, 230, 230)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, fmt.Sprintf("Round %d", round.Round), "", 1, "", true, 0, "")
		pdf.Ln(2)

		for _, op := range round.Opinions {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			switch op.Position {
			case "support":
				pdf.SetFillColor(200, 255, 200) // Light green
			case "oppose":
				pdf.SetFillColor(255, 200, 200) // Light red
			default:
				pdf.SetFillColor(200, 230, 255) // Light blue
			}

			pdf.SetFont("Arial", "B", 10)
			header := fmt.Sprintf("%s - %s (confidence %.0f%%)", op.ExpertName, op.Position, op.Confidence*100)
			pdf.CellFormat(0, 7, e.sanitizeText(header), "", 1, "", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetFillColor(255, 255, 255)
			pdf.MultiCell(0, 5, e.sanitizeText(op.Opinion), "", "", false)
			pdf.Ln(5)
		}
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from quoorum", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// Sanitize text for PDF (gofpdf uses Windows-1252 encoding by default).
func (e *PDFExporter) sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"“", "\"",
		"”", "\"",
		"–", "-",
		"—", "--",
		"…", "...",
		"•", "*",
		" ", " ",
	)
	return replacer.Replace(text)
}
