package expert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

func strategicAnalysis() *core.QuestionAnalysis {
	return &core.QuestionAnalysis{
		Areas: []core.AnalysisArea{
			{Name: "strategy", Weight: 80},
			{Name: "finance", Weight: 50},
			{Name: "market", Weight: 30},
		},
		Topics: []core.AnalysisTopic{
			{Name: "expansion", Relevance: 90},
			{Name: "pricing", Relevance: 40},
		},
		Complexity:         7,
		DecisionType:       "strategic",
		RecommendedExperts: []string{"strategy-advisor"},
	}
}

func TestMatchExpertsSortedWithCriticLast(t *testing.T) {
	m := NewMatcher(NewRegistry())

	matches := m.MatchExperts(strategicAnalysis(), DefaultMatchOptions())
	require.NotEmpty(t, matches)

	// Critic is always the final entry regardless of score.
	last := matches[len(matches)-1]
	assert.Equal(t, CriticID, last.Expert.ID)
	assert.Equal(t, core.RoleCritic, last.Role)

	// Everything before the critic is sorted descending by score.
	for i := 0; i < len(matches)-2; i++ {
		assert.GreaterOrEqual(t, matches[i].Score, matches[i+1].Score,
			"match %d should outscore match %d", i, i+1)
	}

	// The recommended expert should lead the panel.
	assert.Equal(t, "strategy-advisor", matches[0].Expert.ID)
	assert.Equal(t, core.RolePrimary, matches[0].Role)
}

func TestMatchExpertsRespectsMaxExperts(t *testing.T) {
	m := NewMatcher(NewRegistry())

	opts := DefaultMatchOptions()
	opts.MaxExperts = 3

	matches := m.MatchExperts(strategicAnalysis(), opts)
	assert.LessOrEqual(t, len(matches), 3)
	assert.Equal(t, CriticID, matches[len(matches)-1].Expert.ID)
}

func TestMatchExpertsCriticExcludedWhenNotForced(t *testing.T) {
	m := NewMatcher(NewRegistry())

	opts := DefaultMatchOptions()
	opts.AlwaysIncludeCritic = false
	opts.MinScore = 99 // nothing scores this high, including the critic

	matches := m.MatchExperts(strategicAnalysis(), opts)
	for _, match := range matches {
		assert.NotEqual(t, CriticID, match.Expert.ID)
	}
}

func TestMatchExpertsPadsToMinExperts(t *testing.T) {
	m := NewMatcher(NewRegistry())

	opts := DefaultMatchOptions()
	opts.MinScore = 95 // effectively filters everyone
	opts.MinExperts = 3

	matches := m.MatchExperts(strategicAnalysis(), opts)
	// Three below-threshold experts plus the forced critic.
	assert.GreaterOrEqual(t, len(matches), 3)
}

func TestValidateMatching(t *testing.T) {
	t.Run("SingleExpertPanel", func(t *testing.T) {
		matches := []core.ExpertMatch{
			{Expert: core.Expert{ID: "solo"}, Score: 90, Role: core.RolePrimary},
		}

		result := ValidateMatching(matches)
		assert.False(t, result.Valid)

		found := false
		for _, issue := range result.Issues {
			if strings.Contains(issue, "panel size") {
				found = true
			}
		}
		assert.True(t, found, "expected an issue mentioning panel size, got %v", result.Issues)
	})

	t.Run("MissingCritic", func(t *testing.T) {
		matches := []core.ExpertMatch{
			{Expert: core.Expert{ID: "a"}, Score: 80, Role: core.RolePrimary},
			{Expert: core.Expert{ID: "b"}, Score: 70, Role: core.RoleSecondary},
			{Expert: core.Expert{ID: "c"}, Score: 60, Role: core.RoleSecondary},
		}

		result := ValidateMatching(matches)
		assert.False(t, result.Valid)
	})

	t.Run("LowAverageScore", func(t *testing.T) {
		matches := []core.ExpertMatch{
			{Expert: core.Expert{ID: "a"}, Score: 30, Role: core.RolePrimary},
			{Expert: core.Expert{ID: "b"}, Score: 35, Role: core.RoleSecondary},
			{Expert: core.Expert{ID: "c"}, Score: 20, Role: core.RoleCritic},
		}

		result := ValidateMatching(matches)
		assert.False(t, result.Valid)
	})

	t.Run("HealthyPanel", func(t *testing.T) {
		matches := []core.ExpertMatch{
			{Expert: core.Expert{ID: "a"}, Score: 85, Role: core.RolePrimary},
			{Expert: core.Expert{ID: "b"}, Score: 70, Role: core.RoleSecondary},
			{Expert: core.Expert{ID: "c"}, Score: 50, Role: core.RoleCritic},
		}

		result := ValidateMatching(matches)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Issues)
	})
}
