package quality

import (
	"fmt"
	"sort"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// EffectivenessThreshold is the minimum overall-quality gain for an
// intervention to count as effective.
const EffectivenessThreshold = 15.0

// Moderator converts quality issues into targeted interventions for the
// next round's prompt context.
type Moderator struct{}

// NewModerator creates a meta-moderator.
func NewModerator() *Moderator {
	return &Moderator{}
}

// ShouldIntervene reports whether the round needs moderation.
func (m *Moderator) ShouldIntervene(analysis *core.QualityAnalysis) bool {
	return analysis != nil && analysis.NeedsModeration
}

// GenerateIntervention maps the single highest-severity issue to its
// intervention archetype. Returns nil when there are no issues.
func (m *Moderator) GenerateIntervention(analysis *core.QualityAnalysis) *core.Intervention {
	interventions := m.GenerateMultipleInterventions(analysis, 1)
	if len(interventions) == 0 {
		return nil
	}
	return &interventions[0]
}

// GenerateMultipleInterventions returns interventions for the top-n issues
// ordered by descending severity.
func (m *Moderator) GenerateMultipleInterventions(analysis *core.QualityAnalysis, n int) []core.Intervention {
	if analysis == nil || len(analysis.Issues) == 0 || n <= 0 {
		return nil
	}

	issues := make([]core.QualityIssue, len(analysis.Issues))
	copy(issues, analysis.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity > issues[j].Severity
	})

	if n > len(issues) {
		n = len(issues)
	}

	interventions := make([]core.Intervention, 0, n)
	for _, issue := range issues[:n] {
		interventions = append(interventions, interventionForIssue(issue))
	}
	return interventions
}

// interventionForIssue maps an issue type to its fixed archetype and
// templated prompt text.
func interventionForIssue(issue core.QualityIssue) core.Intervention {
	switch issue.Type {
	case core.IssueShallow:
		return core.Intervention{
			Type:     core.InterventionChallengeDepth,
			Severity: issue.Severity,
			Reason:   issue.Description,
			Prompt: "MODERATOR: The discussion is staying at the surface. In this round, " +
				"go deeper: support your position with concrete evidence, quantify " +
				"impacts where possible, and address the strongest counterargument " +
				"to your view.",
		}
	case core.IssueRepetitive:
		return core.Intervention{
			Type:     core.InterventionExploreAlternatives,
			Severity: issue.Severity,
			Reason:   issue.Description,
			Prompt: "MODERATOR: Recent rounds are restating earlier points. In this round, " +
				"bring genuinely new angles: options not yet considered, evidence not " +
				"yet cited, or second-order consequences no one has raised.",
		}
	case core.IssueLackOfDiversity:
		return core.Intervention{
			Type:     core.InterventionDiversifyPositions,
			Severity: issue.Severity,
			Reason:   issue.Description,
			Prompt: "MODERATOR: The panel is converging prematurely. In this round, argue " +
				"from your own discipline's perspective even where it conflicts with " +
				"the emerging consensus, and name the trade-offs others are glossing over.",
		}
	default:
		return core.Intervention{
			Type:     core.InterventionChallengeDepth,
			Severity: issue.Severity,
			Reason:   issue.Description,
			Prompt:   "MODERATOR: Improve the rigor of this round's contributions.",
		}
	}
}

// InterventionFrequency maps overall quality to how often (in rounds)
// moderation should even be considered.
func (m *Moderator) InterventionFrequency(analysis *core.QualityAnalysis) int {
	switch {
	case analysis.OverallQuality >= 80:
		return 5
	case analysis.OverallQuality >= 60:
		return 3
	default:
		return 2
	}
}

// WasInterventionEffective compares quality before and after an
// intervention. Only a gain of at least EffectivenessThreshold counts.
func (m *Moderator) WasInterventionEffective(before, after *core.QualityAnalysis) bool {
	if before == nil || after == nil {
		return false
	}
	return after.OverallQuality-before.OverallQuality >= EffectivenessThreshold
}

// DescribeIntervention renders an intervention for logs and transcripts.
func DescribeIntervention(iv *core.Intervention) string {
	if iv == nil {
		return ""
	}
	return fmt.Sprintf("[%s severity=%d] %s", iv.Type, iv.Severity, iv.Reason)
}
