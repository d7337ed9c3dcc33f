package expert

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// MatchOptions controls panel assembly.
type MatchOptions struct {
	MinExperts          int
	MaxExperts          int
	MinScore            float64
	AlwaysIncludeCritic bool
}

// DefaultMatchOptions returns the standard panel options.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		MinExperts:          3,
		MaxExperts:          5,
		MinScore:            30,
		AlwaysIncludeCritic: true,
	}
}

// minPanelSize is the smallest panel ValidateMatching accepts.
const minPanelSize = 3

// minAverageScore is the panel quality floor for ValidateMatching.
const minAverageScore = 40.0

// Matcher scores registry experts against a question analysis.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over a registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// MatchExperts scores every registered expert and assembles a panel.
// Matches are filtered to score >= MinScore, except the critic which is
// retained regardless of score when AlwaysIncludeCritic is set. The result
// is sorted by score descending with the critic always last.
func (m *Matcher) MatchExperts(analysis *core.QuestionAnalysis, opts MatchOptions) []core.ExpertMatch {
	if opts.MaxExperts <= 0 {
		opts.MaxExperts = DefaultMatchOptions().MaxExperts
	}

	var scored []core.ExpertMatch
	var critic *core.ExpertMatch

	for _, e := range m.registry.All() {
		match := m.scoreExpert(e, analysis)
		if e.ID == CriticID {
			c := match
			critic = &c
			continue
		}
		scored = append(scored, match)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Filter to the score floor, but keep enough to satisfy MinExperts.
	var kept []core.ExpertMatch
	for _, s := range scored {
		if s.Score >= opts.MinScore {
			kept = append(kept, s)
		}
	}
	for _, s := range scored {
		if len(kept) >= opts.MinExperts {
			break
		}
		if s.Score < opts.MinScore {
			kept = append(kept, s)
		}
	}

	// Reserve a slot for the critic inside the panel cap.
	capacity := opts.MaxExperts
	includeCritic := critic != nil && (opts.AlwaysIncludeCritic || critic.Score >= opts.MinScore)
	if includeCritic {
		capacity--
	}
	if len(kept) > capacity {
		kept = kept[:capacity]
	}

	// Roles: top scorers are primary, the rest secondary.
	primarySlots := len(kept) / 2
	if primarySlots < 1 {
		primarySlots = 1
	}
	for i := range kept {
		if i < primarySlots {
			kept[i].Role = core.RolePrimary
		} else {
			kept[i].Role = core.RoleSecondary
		}
	}

	if includeCritic {
		critic.Role = core.RoleCritic
		kept = append(kept, *critic)
	}

	slog.Debug("Expert panel assembled", "size", len(kept), "critic", includeCritic)
	return kept
}

// scoreExpert computes a weighted overlap score between an expert's tags
// and the analysis's areas/topics, plus a direct-recommendation bonus.
func (m *Matcher) scoreExpert(e core.Expert, analysis *core.QuestionAnalysis) core.ExpertMatch {
	match := core.ExpertMatch{Expert: e}

	totalWeight := 0
	matchedWeight := 0
	for _, area := range analysis.Areas {
		totalWeight += area.Weight
		if tagsContain(e.ExpertiseTags, area.Name) {
			matchedWeight += area.Weight
			match.Reasons = append(match.Reasons, fmt.Sprintf("expertise covers %s (weight %d)", area.Name, area.Weight))
		}
	}

	totalRelevance := 0
	matchedRelevance := 0
	for _, topic := range analysis.Topics {
		totalRelevance += topic.Relevance
		if tagsContain(e.TopicTags, topic.Name) {
			matchedRelevance += topic.Relevance
			match.Reasons = append(match.Reasons, fmt.Sprintf("topic match on %s", topic.Name))
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score += 60 * float64(matchedWeight) / float64(totalWeight)
	}
	if totalRelevance > 0 {
		score += 40 * float64(matchedRelevance) / float64(totalRelevance)
	}

	for _, id := range analysis.RecommendedExperts {
		if id == e.ID {
			score += 25
			match.Reasons = append(match.Reasons, "directly recommended by analysis")
			break
		}
	}

	if score > 100 {
		score = 100
	}
	match.Score = score
	return match
}

// tagsContain reports whether any tag matches the name, case-insensitively,
// allowing substring containment in either direction.
func tagsContain(tags []string, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if tag == name || strings.Contains(tag, name) || strings.Contains(name, tag) {
			return true
		}
	}
	return false
}

// ValidationResult is the outcome of a panel sanity check.
type ValidationResult struct {
	Valid  bool
	Issues []string
}

// ValidateMatching checks a panel for structural problems: too few
// experts, no primary, no critic, or a mean score below the quality floor.
func ValidateMatching(matches []core.ExpertMatch) ValidationResult {
	var result ValidationResult

	if len(matches) < minPanelSize {
		result.Issues = append(result.Issues,
			fmt.Sprintf("panel size %d is below the minimum of %d", len(matches), minPanelSize))
	}

	hasPrimary := false
	hasCritic := false
	totalScore := 0.0
	for _, m := range matches {
		switch m.Role {
		case core.RolePrimary:
			hasPrimary = true
		case core.RoleCritic:
			hasCritic = true
		}
		totalScore += m.Score
	}

	if !hasPrimary {
		result.Issues = append(result.Issues, "panel has no primary expert")
	}
	if !hasCritic {
		result.Issues = append(result.Issues, "panel has no critic")
	}
	if len(matches) > 0 {
		avg := totalScore / float64(len(matches))
		if avg < minAverageScore {
			result.Issues = append(result.Issues,
				fmt.Sprintf("average match score %.1f is below the quality floor of %.0f", avg, minAverageScore))
		}
	}

	result.Valid = len(result.Issues) == 0
	return result
}
