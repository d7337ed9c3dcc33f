package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// MarkdownExporter exports debate results to Markdown format.
type MarkdownExporter struct{}

// Export writes the debate result as Markdown.
func (e *MarkdownExporter) Export(result *core.DebateResult, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", result.Question))

	sb.WriteString("## Debate Information\n\n")
	sb.WriteString(fmt.Sprintf("- **Session:** `%s`\n", result.SessionID))
	sb.WriteString(fmt.Sprintf("- **Outcome:** %s\n", formatState(result.State)))
	sb.WriteString(fmt.Sprintf("- **Consensus:** %.0f%%\n", result.ConsensusScore*100))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", result.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if result.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed:** %s\n", result.CompletedAt.Format("January 2, 2006 at 3:04 PM")))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(result.CreatedAt, *result.CompletedAt)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Expert Panel\n\n")
	for _, match := range result.Panel {
		sb.WriteString(fmt.Sprintf("- %s\n", formatExpert(match)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Synthesis\n\n")
	sb.WriteString(result.Synthesis)
	sb.WriteString("\n\n")

	sb.WriteString("## Deliberation\n\n")
	if len(result.Rounds) == 0 {
		sb.WriteString("*No rounds recorded.*\n\n")
	}
	for _, round := range result.Rounds {
		sb.WriteString(fmt.Sprintf("### Round %d\n\n", round.Round))
		if round.Quality != nil {
			sb.WriteString(fmt.Sprintf("*Quality %.0f (depth %.0f, diversity %.0f, originality %.0f)*\n\n",
				round.Quality.OverallQuality, round.Quality.DepthScore,
				round.Quality.DiversityScore, round.Quality.OriginalityScore))
		}
		for _, op := range round.Opinions {
			sb.WriteString(fmt.Sprintf("#### %s — %s (confidence %.0f%%)\n\n",
				op.ExpertName, op.Position, op.Confidence*100))
			sb.WriteString(op.Opinion)
			sb.WriteString("\n\n")
			if op.Reasoning != "" {
				sb.WriteString(fmt.Sprintf("> %s\n\n", op.Reasoning))
			}
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from quoorum*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}
