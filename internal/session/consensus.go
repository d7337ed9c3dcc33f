package session

import (
	"strings"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// Stance labels derived from opinion text.
const (
	PositionSupport = "support"
	PositionOppose  = "oppose"
	PositionNeutral = "neutral"
)

var supportSignals = []string{
	"i recommend", "we should proceed", "proceed with", "go ahead",
	"i agree", "in favor", "support this", "yes,", "strongly recommend",
	"worth pursuing", "green light",
}

var opposeSignals = []string{
	"i advise against", "should not proceed", "hold off", "do not",
	"i disagree", "against this", "no,", "too risky", "recommend against",
	"wait until", "not worth",
}

// DerivePosition classifies an opinion's stance by scanning for signal
// phrases, the same way consensus phrases are detected in debate turns.
func DerivePosition(opinion string) string {
	lower := strings.ToLower(opinion)

	supportHits := 0
	for _, s := range supportSignals {
		if strings.Contains(lower, s) {
			supportHits++
		}
	}
	opposeHits := 0
	for _, s := range opposeSignals {
		if strings.Contains(lower, s) {
			opposeHits++
		}
	}

	switch {
	case supportHits > opposeHits:
		return PositionSupport
	case opposeHits > supportHits:
		return PositionOppose
	default:
		return PositionNeutral
	}
}

// ConsensusScore measures agreement across a round's opinions as the
// confidence-weighted share of the dominant position, on a 0-1 scale.
// It returns the score and the dominant position label.
func ConsensusScore(opinions []core.ExpertOpinion) (float64, string) {
	if len(opinions) == 0 {
		return 0, ""
	}

	weights := make(map[string]float64)
	total := 0.0
	for _, op := range opinions {
		w := op.Confidence
		if w <= 0 {
			w = 0.1
		}
		weights[op.Position] += w
		total += w
	}

	dominant := ""
	best := 0.0
	for pos, w := range weights {
		if w > best {
			best = w
			dominant = pos
		}
	}

	if total == 0 {
		return 0, dominant
	}
	return best / total, dominant
}
