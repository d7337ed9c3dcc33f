// Package quality scores completed deliberation rounds and drives
// moderation interventions.
package quality

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// Sub-score weights for the overall quality mean.
const (
	depthWeight       = 0.4
	diversityWeight   = 0.3
	originalityWeight = 0.3
)

// moderationFloor is the overall quality below which moderation is needed.
const moderationFloor = 60.0

// Sub-scores below this level produce an issue.
const issueFloor = 40.0

// Monitor scores rounds for depth, diversity, and originality.
type Monitor struct{}

// NewMonitor creates a quality monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// AnalyzeRound scores one round's opinions, optionally against prior
// rounds for repetition detection.
func (m *Monitor) AnalyzeRound(opinions []core.ExpertOpinion, priorRounds [][]core.ExpertOpinion) *core.QualityAnalysis {
	analysis := &core.QualityAnalysis{}
	if len(opinions) == 0 {
		analysis.NeedsModeration = true
		analysis.Issues = append(analysis.Issues, core.QualityIssue{
			Type:        core.IssueShallow,
			Severity:    10,
			Description: "round produced no opinions",
		})
		return analysis
	}

	analysis.DepthScore = m.scoreDepth(opinions, analysis)
	analysis.DiversityScore = m.scoreDiversity(opinions, analysis)
	analysis.OriginalityScore = m.scoreOriginality(opinions, priorRounds, analysis)

	analysis.OverallQuality = depthWeight*analysis.DepthScore +
		diversityWeight*analysis.DiversityScore +
		originalityWeight*analysis.OriginalityScore

	analysis.NeedsModeration = analysis.OverallQuality < moderationFloor
	for _, issue := range analysis.Issues {
		if issue.ForceModeration {
			analysis.NeedsModeration = true
		}
	}

	slog.Debug("Round quality analyzed",
		"overall", analysis.OverallQuality, "depth", analysis.DepthScore,
		"diversity", analysis.DiversityScore, "originality", analysis.OriginalityScore,
		"issues", len(analysis.Issues))

	return analysis
}

// scoreDepth maps the substance of each opinion's reasoning to 0-100.
// Around 120 words of combined opinion and reasoning counts as full depth.
func (m *Monitor) scoreDepth(opinions []core.ExpertOpinion, analysis *core.QualityAnalysis) float64 {
	const fullDepthWords = 120

	total := 0.0
	var shallowIdx []int
	for i, op := range opinions {
		words := len(strings.Fields(op.Opinion)) + len(strings.Fields(op.Reasoning))
		score := float64(words) / fullDepthWords * 100
		if score > 100 {
			score = 100
		}
		if score < issueFloor {
			shallowIdx = append(shallowIdx, i)
		}
		total += score
	}
	depth := total / float64(len(opinions))

	if len(shallowIdx) > 0 {
		severity := severityFromScore(depth)
		analysis.Issues = append(analysis.Issues, core.QualityIssue{
			Type:             core.IssueShallow,
			Severity:         severity,
			Description:      fmt.Sprintf("%d of %d opinions lack substantive reasoning", len(shallowIdx), len(opinions)),
			AffectedMessages: shallowIdx,
			ForceModeration:  severity >= 8,
		})
	}

	return depth
}

// scoreDiversity measures variance of stance across experts in one round
// via pairwise lexical overlap of their opinions.
func (m *Monitor) scoreDiversity(opinions []core.ExpertOpinion, analysis *core.QualityAnalysis) float64 {
	if len(opinions) < 2 {
		return 50
	}

	sets := make([]map[string]struct{}, len(opinions))
	for i, op := range opinions {
		sets[i] = tokenSet(op.Opinion + " " + op.Reasoning)
	}

	pairs := 0
	totalOverlap := 0.0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			totalOverlap += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	avgOverlap := totalOverlap / float64(pairs)
	diversity := (1 - avgOverlap) * 100

	if diversity < issueFloor {
		severity := severityFromScore(diversity)
		analysis.Issues = append(analysis.Issues, core.QualityIssue{
			Type:            core.IssueLackOfDiversity,
			Severity:        severity,
			Description:     "experts are converging on near-identical positions",
			ForceModeration: severity >= 8,
		})
	}

	return diversity
}

// scoreOriginality measures how much the round repeats earlier rounds.
func (m *Monitor) scoreOriginality(opinions []core.ExpertOpinion, priorRounds [][]core.ExpertOpinion, analysis *core.QualityAnalysis) float64 {
	if len(priorRounds) == 0 {
		return 80 // first round: nothing to repeat, but nothing proven novel either
	}

	prior := make(map[string]struct{})
	for _, round := range priorRounds {
		for _, op := range round {
			for tok := range tokenSet(op.Opinion + " " + op.Reasoning) {
				prior[tok] = struct{}{}
			}
		}
	}

	total := 0.0
	var repetitiveIdx []int
	for i, op := range opinions {
		current := tokenSet(op.Opinion + " " + op.Reasoning)
		overlap := jaccardAgainst(current, prior)
		score := (1 - overlap) * 100
		if score < issueFloor {
			repetitiveIdx = append(repetitiveIdx, i)
		}
		total += score
	}
	originality := total / float64(len(opinions))

	if len(repetitiveIdx) > 0 {
		severity := severityFromScore(originality)
		analysis.Issues = append(analysis.Issues, core.QualityIssue{
			Type:             core.IssueRepetitive,
			Severity:         severity,
			Description:      fmt.Sprintf("%d of %d opinions largely restate earlier rounds", len(repetitiveIdx), len(opinions)),
			AffectedMessages: repetitiveIdx,
			ForceModeration:  severity >= 8,
		})
	}

	return originality
}

// severityFromScore maps a 0-100 sub-score to a 1-10 issue severity,
// lower score meaning higher severity.
func severityFromScore(score float64) int {
	sev := int((100-score)/10) + 1
	if sev < 1 {
		sev = 1
	}
	if sev > 10 {
		sev = 10
	}
	return sev
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "is": {}, "it": {}, "that": {}, "this": {}, "we": {}, "i": {},
	"for": {}, "on": {}, "with": {}, "as": {}, "be": {}, "are": {},
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:()\"'")
		if len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// jaccardAgainst measures what fraction of the current set already
// appeared in the (much larger) prior set.
func jaccardAgainst(current, prior map[string]struct{}) float64 {
	if len(current) == 0 {
		return 0
	}
	inter := 0
	for tok := range current {
		if _, ok := prior[tok]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(current))
}
