package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

func opinion(id, text, reasoning string) core.ExpertOpinion {
	return core.ExpertOpinion{ExpertID: id, Opinion: text, Reasoning: reasoning}
}

func substantive(topic string) string {
	return "Considering " + topic + " carefully, the evidence points toward a measured approach. " +
		"Market conditions, execution capacity, regulatory posture, and the competitive landscape " +
		"each deserve separate weighting before committing capital. A staged rollout bounds the " +
		"downside while preserving the option to accelerate if early signals confirm demand. " +
		"The principal risks concentrate in hiring velocity and integration overhead, both of " +
		"which are controllable with explicit checkpoints and a pre-agreed abort criterion. " +
		"Quantifying the payback window against conservative adoption curves keeps the decision honest."
}

func TestAnalyzeRoundHighQuality(t *testing.T) {
	m := NewMonitor()

	opinions := []core.ExpertOpinion{
		opinion("a",
			"European expansion deserves a green light but only through a staged beachhead entry. "+
				"Begin with a single market where distribution partnerships already exist, validate "+
				"channel economics for two quarters, then replicate the playbook. Competitive dynamics "+
				"favor early movers here because incumbent loyalty programs remain weak and switching "+
				"costs are low. Waiting a year almost certainly cedes the partner network to rivals. "+
				"The strategic asymmetry is clear: a failed pilot costs one budget cycle, while a "+
				"successful one compounds across every subsequent market entry we attempt.",
			"Positioning theory and the current partner landscape both reward early commitment."),
		opinion("b",
			"The financial case is weaker than the enthusiasm suggests. Modeling conservative adoption "+
				"curves, payback stretches past thirty months once currency hedging, localized pricing "+
				"pressure, and duplicated compliance staffing are included. Unit margins in the pilot "+
				"geography run eleven points below domestic levels. Capital committed here is capital "+
				"unavailable for the higher-yield retention initiatives already scoped. If we proceed, "+
				"cap exposure at a fixed envelope with quarterly burn gates and a pre-agreed abort "+
				"criterion tied to contribution margin, not vanity growth metrics.",
			"Discounted cash flow under three demand scenarios drives every figure cited above."),
		opinion("c",
			"Operationally this hinges on hiring velocity and regulatory sequencing, not strategy "+
				"decks. Data residency rules add roughly a quarter of engineering lead time per "+
				"jurisdiction, and the first country team needs fifteen local hires across support, "+
				"logistics, and compliance before launch day. Our current recruiting pipeline fills "+
				"senior roles in about ninety days, which pushes any realistic go-live out eight "+
				"months. Build the regulatory and staffing critical path first; every other workstream "+
				"can parallelize behind it without schedule risk.",
			"Execution bottlenecks, not demand questions, have sunk our last two launches."),
	}

	analysis := m.AnalyzeRound(opinions, nil)

	assert.Greater(t, analysis.OverallQuality, 60.0)
	assert.False(t, analysis.NeedsModeration)
	assert.Greater(t, analysis.DepthScore, 60.0)
}

func TestAnalyzeRoundShallowOpinions(t *testing.T) {
	m := NewMonitor()

	opinions := []core.ExpertOpinion{
		opinion("a", "Yes, do it.", ""),
		opinion("b", "Agreed.", ""),
		opinion("c", "Sounds fine.", ""),
	}

	analysis := m.AnalyzeRound(opinions, nil)

	assert.True(t, analysis.NeedsModeration)
	require.NotEmpty(t, analysis.Issues)

	var shallow *core.QualityIssue
	for i := range analysis.Issues {
		if analysis.Issues[i].Type == core.IssueShallow {
			shallow = &analysis.Issues[i]
		}
	}
	require.NotNil(t, shallow, "expected a shallow issue")
	assert.GreaterOrEqual(t, shallow.Severity, 1)
	assert.LessOrEqual(t, shallow.Severity, 10)
}

func TestAnalyzeRoundDetectsRepetition(t *testing.T) {
	m := NewMonitor()

	text := substantive("the exact same considerations repeated verbatim across deliberation rounds")
	prior := [][]core.ExpertOpinion{{
		opinion("a", text, "identical reasoning about sequencing and checkpoints"),
	}}
	current := []core.ExpertOpinion{
		opinion("a", text, "identical reasoning about sequencing and checkpoints"),
	}

	analysis := m.AnalyzeRound(current, prior)

	var repetitive bool
	for _, issue := range analysis.Issues {
		if issue.Type == core.IssueRepetitive {
			repetitive = true
		}
	}
	assert.True(t, repetitive, "expected a repetitive issue, got %+v", analysis.Issues)
	assert.Less(t, analysis.OriginalityScore, 40.0)
}

func TestAnalyzeRoundDetectsLackOfDiversity(t *testing.T) {
	m := NewMonitor()

	shared := substantive("identical position wording shared by every panel member this round")
	opinions := []core.ExpertOpinion{
		opinion("a", shared, ""),
		opinion("b", shared, ""),
		opinion("c", shared, ""),
	}

	analysis := m.AnalyzeRound(opinions, nil)

	var lack bool
	for _, issue := range analysis.Issues {
		if issue.Type == core.IssueLackOfDiversity {
			lack = true
		}
	}
	assert.True(t, lack, "expected lack_of_diversity, got %+v", analysis.Issues)
}

func TestAnalyzeRoundEmpty(t *testing.T) {
	m := NewMonitor()

	analysis := m.AnalyzeRound(nil, nil)
	assert.True(t, analysis.NeedsModeration)
	assert.Equal(t, 0.0, analysis.OverallQuality)
}

func TestTokenSetFiltersStopwordsAndShortWords(t *testing.T) {
	set := tokenSet("The market is expanding to new regions and IT")
	_, hasThe := set["the"]
	_, hasMarket := set["market"]
	assert.False(t, hasThe)
	assert.True(t, hasMarket)
	assert.NotContains(t, strings.Join(keys(set), " "), " is ")
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
