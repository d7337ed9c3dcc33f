// Package analyzer classifies decision questions into weighted topical
// areas so the matcher can assemble a panel.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
)

// Analyzer produces a QuestionAnalysis via one structured-output model call.
type Analyzer struct {
	provider provider.Provider
	model    string
}

// New creates an analyzer bound to a provider and model.
func New(p provider.Provider, model string) *Analyzer {
	return &Analyzer{provider: p, model: model}
}

const analysisSystemPrompt = `You are a question analysis engine. You classify decision questions
into weighted topical areas so a panel of domain experts can be assembled.
Respond with ONLY a JSON object, no prose, no markdown fences.`

// Analyze classifies a question. A malformed model response is a hard
// failure: the error propagates and no empty analysis is substituted.
func (a *Analyzer) Analyze(ctx context.Context, question, context_ string) (*core.QuestionAnalysis, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	userPrompt := buildAnalysisPrompt(question, context_)

	resp, err := a.provider.Generate(ctx, provider.Request{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   userPrompt,
		Model:        a.model,
		Temperature:  0.2,
		MaxTokens:    1500,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis call failed: %w", err)
	}

	analysis, err := parseAnalysis(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	// Ordering is a contract: downstream matching assumes top-N selection.
	sort.SliceStable(analysis.Areas, func(i, j int) bool {
		return analysis.Areas[i].Weight > analysis.Areas[j].Weight
	})
	sort.SliceStable(analysis.Topics, func(i, j int) bool {
		return analysis.Topics[i].Relevance > analysis.Topics[j].Relevance
	})

	slog.Debug("Question analyzed",
		"areas", len(analysis.Areas), "topics", len(analysis.Topics),
		"complexity", analysis.Complexity, "decision_type", analysis.DecisionType)

	return analysis, nil
}

func buildAnalysisPrompt(question, context_ string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	if context_ != "" {
		fmt.Fprintf(&b, "\nAdditional context: %s\n", context_)
	}
	b.WriteString(`
Classify this question. Respond with JSON in exactly this shape:
{
  "areas": [{"name": "...", "weight": 0-100, "reasoning": "..."}],
  "topics": [{"name": "...", "relevance": 0-100}],
  "complexity": 1-10,
  "decision_type": "strategic|operational|financial|technical|other",
  "recommended_experts": ["expert-id"],
  "reasoning": "..."
}`)
	return b.String()
}

// parseAnalysis decodes the model's JSON payload, tolerating markdown
// fences around it but nothing else.
func parseAnalysis(raw string) (*core.QuestionAnalysis, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var analysis core.QuestionAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if len(analysis.Areas) == 0 {
		return nil, fmt.Errorf("analysis contains no areas")
	}
	if analysis.Complexity < 1 || analysis.Complexity > 10 {
		return nil, fmt.Errorf("complexity %d out of range", analysis.Complexity)
	}

	return &analysis, nil
}
