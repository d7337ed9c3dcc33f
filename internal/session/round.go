package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/telemetry"
)

// Executor drives one expert through one deliberation round.
type Executor struct {
	registry  *provider.Registry
	admission *admission.Controller
	sink      telemetry.Sink

	// CallTimeout bounds each individual expert call, independent of any
	// session-level control.
	CallTimeout time.Duration

	// MaxOutputTokens bounds the model's response length.
	MaxOutputTokens int
}

// NewExecutor creates a round executor.
func NewExecutor(registry *provider.Registry, ctrl *admission.Controller, sink telemetry.Sink) *Executor {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Executor{
		registry:        registry,
		admission:       ctrl,
		sink:            sink,
		CallTimeout:     2 * time.Minute,
		MaxOutputTokens: 1200,
	}
}

// costPerThousandTokens is a rough blended estimate used for business
// cost accounting.
const costPerThousandTokens = 0.01

// ExecuteExpert runs one expert for one round and parses the structured
// opinion. The call passes through provider admission control and carries
// its own timeout.
func (e *Executor) ExecuteExpert(ctx context.Context, expert core.Expert, dc core.DeliberationContext) (core.ExpertOpinion, float64, error) {
	prov, err := e.registry.Get(expert.PreferredProvider)
	if err != nil {
		return core.ExpertOpinion{}, 0, fmt.Errorf("no provider for expert %s: %w", expert.ID, err)
	}

	userPrompt := buildRoundPrompt(dc)
	estimated := estimateTokens(expert.SystemPrompt+userPrompt) + e.MaxOutputTokens

	if err := e.admission.WaitForCapacity(ctx, expert.PreferredProvider, estimated); err != nil {
		return core.ExpertOpinion{}, 0, fmt.Errorf("admission denied for %s: %w", expert.PreferredProvider, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := prov.Generate(callCtx, provider.Request{
		SystemPrompt: expert.SystemPrompt,
		UserPrompt:   userPrompt,
		Model:        expert.PreferredModel,
		Temperature:  expert.Temperature,
		MaxTokens:    e.MaxOutputTokens,
	})
	latency := time.Since(start)

	event := telemetry.UsageEvent{
		Provider: expert.PreferredProvider,
		Model:    expert.PreferredModel,
		Latency:  latency,
		Success:  err == nil,
		Feature:  "deliberation_round",
	}
	if resp != nil {
		event.Tokens = resp.Usage.TotalTokens()
		event.CostUSD = float64(resp.Usage.TotalTokens()) / 1000 * costPerThousandTokens
	}
	e.sink.RecordUsage(event)

	if err != nil {
		return core.ExpertOpinion{}, 0, fmt.Errorf("expert %s generation failed: %w", expert.ID, err)
	}

	parsed := core.ParseOpinion(resp.Text)
	if parsed.Outcome == core.OutcomePartialWithFallback {
		slog.Debug("Opinion parsed with fallbacks", "expert", expert.ID, "round", dc.RoundNumber)
	}

	opinion := core.ExpertOpinion{
		ExpertID:   expert.ID,
		ExpertName: expert.Name,
		Opinion:    parsed.Opinion,
		Reasoning:  parsed.Reasoning,
		Confidence: parsed.Confidence,
		Position:   DerivePosition(parsed.Opinion),
		Round:      dc.RoundNumber,
		CreatedAt:  time.Now(),
	}

	return opinion, event.CostUSD, nil
}

// buildRoundPrompt renders the deliberation context into the expert's
// user prompt.
func buildRoundPrompt(dc core.DeliberationContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DECISION QUESTION: %s\n", dc.Topic)
	if dc.Description != "" {
		fmt.Fprintf(&b, "\nBACKGROUND:\n%s\n", dc.Description)
	}
	if len(dc.Objectives) > 0 {
		b.WriteString("\nOBJECTIVES:\n")
		for _, o := range dc.Objectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	if len(dc.Constraints) > 0 {
		b.WriteString("\nCONSTRAINTS:\n")
		for _, c := range dc.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	fmt.Fprintf(&b, "\nThis is deliberation round %d.\n", dc.RoundNumber)

	if len(dc.PreviousOpinions) > 0 {
		b.WriteString("\nPOSITIONS FROM EARLIER THIS DEBATE:\n")
		for _, op := range dc.PreviousOpinions {
			fmt.Fprintf(&b, "\n--- %s (round %d, confidence %.2f) ---\n%s\n",
				op.ExpertName, op.Round, op.Confidence, op.Opinion)
		}
	}

	if dc.ModeratorGuidance != "" {
		fmt.Fprintf(&b, "\n%s\n", dc.ModeratorGuidance)
	}

	b.WriteString(`
Respond in this exact format:
OPINION: [your position on the question]
REASONING: [the evidence and logic behind it]
CONFIDENCE: [0.0-1.0]`)

	return b.String()
}

// estimateTokens approximates token count from text length.
func estimateTokens(text string) int {
	return len(text) / 4
}
