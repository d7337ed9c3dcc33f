// Package expert holds the static expert catalog and the panel matcher.
package expert

import (
	"fmt"
	"sync"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// CriticID is the designated critic expert. The matcher treats it
// specially: it can be retained regardless of score and is always placed
// last on the panel.
const CriticID = "critic"

// Registry is the immutable expert catalog, loaded once at startup.
type Registry struct {
	mu      sync.RWMutex
	experts map[string]core.Expert
	order   []string
}

// NewRegistry creates a registry seeded with the builtin experts.
func NewRegistry() *Registry {
	r := &Registry{experts: make(map[string]core.Expert)}
	for _, e := range BuiltinExperts() {
		r.register(e)
	}
	return r
}

// NewEmptyRegistry creates a registry with no experts, for tests and
// fully config-driven catalogs.
func NewEmptyRegistry() *Registry {
	return &Registry{experts: make(map[string]core.Expert)}
}

// Register adds or replaces an expert definition.
func (r *Registry) Register(e core.Expert) error {
	if e.ID == "" {
		return fmt.Errorf("expert id cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(e)
	return nil
}

func (r *Registry) register(e core.Expert) {
	if _, exists := r.experts[e.ID]; !exists {
		r.order = append(r.order, e.ID)
	}
	r.experts[e.ID] = e
}

// Get retrieves an expert by ID.
func (r *Registry) Get(id string) (core.Expert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.experts[id]
	return e, ok
}

// All returns every registered expert in registration order.
func (r *Registry) All() []core.Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Expert, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.experts[id])
	}
	return out
}

// BuiltinExperts returns the default expert catalog.
func BuiltinExperts() []core.Expert {
	return []core.Expert{
		{
			ID:            "strategy-advisor",
			Name:          "Strategy Advisor",
			ExpertiseTags: []string{"strategy", "competition", "growth", "positioning"},
			TopicTags:     []string{"expansion", "market-entry", "pivot", "partnerships"},
			SystemPrompt: `You are a senior strategy advisor. You evaluate decisions through
competitive positioning, long-term advantage, and strategic fit. Ground
every recommendation in a clear theory of how the organization wins.`,
			Temperature:       0.7,
			PreferredProvider: "claude",
		},
		{
			ID:            "finance-analyst",
			Name:          "Finance Analyst",
			ExpertiseTags: []string{"finance", "valuation", "budgeting", "unit-economics"},
			TopicTags:     []string{"pricing", "fundraising", "cost", "investment"},
			SystemPrompt: `You are a rigorous finance analyst. You quantify everything: cash
impact, payback periods, downside scenarios. You flag any claim that
lacks a number behind it.`,
			Temperature:       0.4,
			PreferredProvider: "openai",
		},
		{
			ID:            "technology-architect",
			Name:          "Technology Architect",
			ExpertiseTags: []string{"technology", "architecture", "engineering", "scalability"},
			TopicTags:     []string{"build-vs-buy", "infrastructure", "technical-debt", "platform"},
			SystemPrompt: `You are a principal technology architect. You assess feasibility,
integration cost, operational burden, and the second-order effects of
technical choices.`,
			Temperature:       0.5,
			PreferredProvider: "claude",
		},
		{
			ID:            "operations-lead",
			Name:          "Operations Lead",
			ExpertiseTags: []string{"operations", "process", "execution", "logistics"},
			TopicTags:     []string{"hiring", "capacity", "supply-chain", "rollout"},
			SystemPrompt: `You are an operations lead. You care about what it takes to actually
execute: staffing, timelines, dependencies, and the failure modes of
a plan once it meets reality.`,
			Temperature:       0.5,
			PreferredProvider: "openai",
		},
		{
			ID:            "market-researcher",
			Name:          "Market Researcher",
			ExpertiseTags: []string{"market", "customers", "demand", "research"},
			TopicTags:     []string{"segmentation", "expansion", "pricing", "competition"},
			SystemPrompt: `You are a market researcher. You represent the customer's voice:
demand signals, willingness to pay, segment differences, and where the
evidence is thin.`,
			Temperature:       0.6,
			PreferredProvider: "gemini",
		},
		{
			ID:            "risk-assessor",
			Name:          "Risk Assessor",
			ExpertiseTags: []string{"risk", "compliance", "legal", "security"},
			TopicTags:     []string{"regulation", "liability", "downside", "contingency"},
			SystemPrompt: `You are a risk assessor. You enumerate what can go wrong, how likely
it is, and what the mitigation costs. You distinguish acceptable risk
from negligence.`,
			Temperature:       0.4,
			PreferredProvider: "claude",
		},
		{
			ID:            CriticID,
			Name:          "The Critic",
			ExpertiseTags: []string{"critique", "assumptions", "logic"},
			TopicTags:     []string{},
			SystemPrompt: `You are the panel's designated critic. Your job is to stress-test the
other experts' positions: expose unstated assumptions, weak evidence,
and motivated reasoning. You do not propose plans; you break them.`,
			Temperature:       0.8,
			PreferredProvider: "claude",
		},
	}
}
