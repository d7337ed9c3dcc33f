package core

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseOutcome tags how much of a model response could be parsed.
type ParseOutcome string

const (
	// OutcomeParsed means every section was found and parsed cleanly.
	OutcomeParsed ParseOutcome = "parsed"
	// OutcomePartialWithFallback means one or more sections were missing
	// or unparsable and a fallback value was substituted.
	OutcomePartialWithFallback ParseOutcome = "partial_with_fallback"
)

// DefaultConfidence is used when the CONFIDENCE section is absent or
// unparsable.
const DefaultConfidence = 0.7

// maxOpinionFallback bounds the raw-text fallback when no OPINION section
// is found.
const maxOpinionFallback = 500

// ParsedOpinion is the structured result of parsing a model response.
// Parsing never fails outright: missing sections degrade to fallbacks and
// the Outcome records that it happened.
type ParsedOpinion struct {
	Opinion    string
	Reasoning  string
	Confidence float64
	Outcome    ParseOutcome
}

var sectionRe = regexp.MustCompile(`(?im)^\s*(OPINION|REASONING|CONFIDENCE)\s*:\s*`)

// ParseOpinion extracts OPINION / REASONING / CONFIDENCE sections from a
// raw model response. Matching is case-insensitive and tolerates sections
// in any order. A confidence value greater than 1 is treated as a
// percentage and normalized to 0-1.
func ParseOpinion(raw string) ParsedOpinion {
	result := ParsedOpinion{
		Confidence: DefaultConfidence,
		Outcome:    OutcomeParsed,
	}

	sections := splitSections(raw)

	if op, ok := sections["OPINION"]; ok && strings.TrimSpace(op) != "" {
		result.Opinion = strings.TrimSpace(op)
	} else {
		// Fall back to the head of the raw response rather than failing.
		fallback := strings.TrimSpace(raw)
		if len(fallback) > maxOpinionFallback {
			fallback = fallback[:maxOpinionFallback]
		}
		result.Opinion = fallback
		result.Outcome = OutcomePartialWithFallback
	}

	if rs, ok := sections["REASONING"]; ok && strings.TrimSpace(rs) != "" {
		result.Reasoning = strings.TrimSpace(rs)
	} else {
		result.Outcome = OutcomePartialWithFallback
	}

	if cf, ok := sections["CONFIDENCE"]; ok {
		if v, ok := parseConfidence(cf); ok {
			result.Confidence = v
		} else {
			result.Outcome = OutcomePartialWithFallback
		}
	} else {
		result.Outcome = OutcomePartialWithFallback
	}

	return result
}

// splitSections breaks the response into labeled sections. Each section
// runs from its header to the next header or end of text.
func splitSections(raw string) map[string]string {
	sections := make(map[string]string)

	locs := sectionRe.FindAllStringSubmatchIndex(raw, -1)
	for i, loc := range locs {
		label := strings.ToUpper(raw[loc[2]:loc[3]])
		start := loc[1]
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		// First header wins on duplicates.
		if _, exists := sections[label]; !exists {
			sections[label] = raw[start:end]
		}
	}

	return sections
}

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// parseConfidence extracts a numeric confidence from free text and
// normalizes percentage-scaled values.
func parseConfidence(text string) (float64, bool) {
	match := numberRe.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	// Values above 1 are percentages.
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0, false
	}
	if v > 1 {
		v = 1
	}
	return v, true
}
