// Package export handles exporting debate results to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Exporter defines the interface for exporting debate results.
type Exporter interface {
	Export(result *core.DebateResult, w io.Writer) error
	FileExtension() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(result *core.DebateResult, ext string) string {
	question := result.Question
	if len(question) > 50 {
		question = question[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	question = replacer.Replace(question)

	timestamp := result.CreatedAt.Format("20060102")
	return fmt.Sprintf("debate_%s_%s.%s", timestamp, question, ext)
}

func formatExpert(match core.ExpertMatch) string {
	return fmt.Sprintf("%s (%s, score %.0f)", match.Expert.Name, match.Role, match.Score)
}

func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}

func formatState(state core.SessionState) string {
	switch state {
	case core.StateConsensusReached:
		return "Consensus Reached"
	case core.StateForceConcluded:
		return "Force Concluded"
	case core.StateCompleted:
		return "Completed Without Consensus"
	case core.StateFailed:
		return "Failed"
	default:
		return string(state)
	}
}
