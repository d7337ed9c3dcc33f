package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

func TestShouldIntervene(t *testing.T) {
	m := NewModerator()

	assert.True(t, m.ShouldIntervene(&core.QualityAnalysis{NeedsModeration: true}))
	assert.False(t, m.ShouldIntervene(&core.QualityAnalysis{NeedsModeration: false}))
	assert.False(t, m.ShouldIntervene(nil))
}

func TestGenerateInterventionPicksHighestSeverity(t *testing.T) {
	m := NewModerator()

	analysis := &core.QualityAnalysis{
		NeedsModeration: true,
		Issues: []core.QualityIssue{
			{Type: core.IssueShallow, Severity: 4, Description: "thin reasoning"},
			{Type: core.IssueRepetitive, Severity: 9, Description: "restating round one"},
			{Type: core.IssueLackOfDiversity, Severity: 6, Description: "groupthink"},
		},
	}

	iv := m.GenerateIntervention(analysis)
	require.NotNil(t, iv)
	assert.Equal(t, core.InterventionExploreAlternatives, iv.Type)
	assert.Equal(t, 9, iv.Severity)
	assert.Equal(t, "restating round one", iv.Reason)
	assert.NotEmpty(t, iv.Prompt)
}

func TestGenerateInterventionArchetypeMapping(t *testing.T) {
	m := NewModerator()

	cases := []struct {
		issue core.IssueType
		want  core.InterventionType
	}{
		{core.IssueShallow, core.InterventionChallengeDepth},
		{core.IssueRepetitive, core.InterventionExploreAlternatives},
		{core.IssueLackOfDiversity, core.InterventionDiversifyPositions},
	}

	for _, tc := range cases {
		analysis := &core.QualityAnalysis{
			Issues: []core.QualityIssue{{Type: tc.issue, Severity: 5}},
		}
		iv := m.GenerateIntervention(analysis)
		require.NotNil(t, iv, "issue %s", tc.issue)
		assert.Equal(t, tc.want, iv.Type)
	}
}

func TestGenerateMultipleInterventions(t *testing.T) {
	m := NewModerator()

	analysis := &core.QualityAnalysis{
		Issues: []core.QualityIssue{
			{Type: core.IssueShallow, Severity: 3},
			{Type: core.IssueRepetitive, Severity: 8},
			{Type: core.IssueLackOfDiversity, Severity: 5},
		},
	}

	ivs := m.GenerateMultipleInterventions(analysis, 2)
	require.Len(t, ivs, 2)
	assert.Equal(t, 8, ivs[0].Severity)
	assert.Equal(t, 5, ivs[1].Severity)

	// Asking for more than exist returns all, still sorted.
	all := m.GenerateMultipleInterventions(analysis, 10)
	assert.Len(t, all, 3)

	assert.Nil(t, m.GenerateMultipleInterventions(&core.QualityAnalysis{}, 3))
}

func TestInterventionFrequency(t *testing.T) {
	m := NewModerator()

	assert.Equal(t, 5, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 85}))
	assert.Equal(t, 5, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 80}))
	assert.Equal(t, 3, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 70}))
	assert.Equal(t, 3, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 60}))
	assert.Equal(t, 2, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 59.9}))
	assert.Equal(t, 2, m.InterventionFrequency(&core.QualityAnalysis{OverallQuality: 45}))
}

func TestWasInterventionEffective(t *testing.T) {
	m := NewModerator()

	assert.True(t, m.WasInterventionEffective(
		&core.QualityAnalysis{OverallQuality: 40},
		&core.QualityAnalysis{OverallQuality: 70},
	))
	assert.False(t, m.WasInterventionEffective(
		&core.QualityAnalysis{OverallQuality: 40},
		&core.QualityAnalysis{OverallQuality: 42},
	))
	// Exactly at the threshold counts.
	assert.True(t, m.WasInterventionEffective(
		&core.QualityAnalysis{OverallQuality: 40},
		&core.QualityAnalysis{OverallQuality: 55},
	))
	assert.False(t, m.WasInterventionEffective(nil, &core.QualityAnalysis{OverallQuality: 90}))
}
