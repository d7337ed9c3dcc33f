// Package core contains the core domain types for quoorum.
package core

import (
	"time"
)

// SessionState represents the lifecycle state of a debate session.
type SessionState string

const (
	StateDraft            SessionState = "draft"
	StatePending          SessionState = "pending"
	StateRunning          SessionState = "running"
	StatePaused           SessionState = "paused"
	StateConsensusReached SessionState = "consensus_reached"
	StateForceConcluded   SessionState = "force_concluded"
	StateCompleted        SessionState = "completed"
	StateFailed           SessionState = "failed"
)

// IsTerminal reports whether the state is final. No transition leaves a
// terminal state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateConsensusReached, StateForceConcluded, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Expert is a static expert agent definition. Experts are immutable and
// loaded once at startup.
type Expert struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	ExpertiseTags     []string `yaml:"expertise_tags" json:"expertise_tags"`
	TopicTags         []string `yaml:"topic_tags" json:"topic_tags"`
	SystemPrompt      string   `yaml:"system_prompt" json:"system_prompt"`
	Temperature       float64  `yaml:"temperature" json:"temperature"`
	PreferredProvider string   `yaml:"preferred_provider" json:"preferred_provider"`
	PreferredModel    string   `yaml:"preferred_model" json:"preferred_model"`
}

// AnalysisArea is one weighted topical area of a question.
type AnalysisArea struct {
	Name      string `json:"name"`
	Weight    int    `json:"weight"` // 0-100
	Reasoning string `json:"reasoning"`
}

// AnalysisTopic is one topic with a relevance score.
type AnalysisTopic struct {
	Name      string `json:"name"`
	Relevance int    `json:"relevance"` // 0-100
}

// QuestionAnalysis is the classified breakdown of a decision question.
// Areas are sorted by weight descending and Topics by relevance descending;
// downstream matching relies on that ordering.
type QuestionAnalysis struct {
	Areas              []AnalysisArea  `json:"areas"`
	Topics             []AnalysisTopic `json:"topics"`
	Complexity         int             `json:"complexity"` // 1-10
	DecisionType       string          `json:"decision_type"`
	RecommendedExperts []string        `json:"recommended_experts"`
	Reasoning          string          `json:"reasoning"`
}

// ExpertRole is the role an expert plays on a panel.
type ExpertRole string

const (
	RolePrimary   ExpertRole = "primary"
	RoleSecondary ExpertRole = "secondary"
	RoleCritic    ExpertRole = "critic"
)

// ExpertMatch is one scored expert with an assigned panel role.
type ExpertMatch struct {
	Expert  Expert     `json:"expert"`
	Score   float64    `json:"score"`
	Reasons []string   `json:"reasons"`
	Role    ExpertRole `json:"role"`
}

// DeliberationContext carries everything an expert needs for one round.
type DeliberationContext struct {
	Topic             string
	Description       string
	Objectives        []string
	Constraints       []string
	RoundNumber       int
	PreviousOpinions  []ExpertOpinion
	ModeratorGuidance string
}

// ExpertOpinion is the structured result of one expert in one round.
type ExpertOpinion struct {
	ExpertID     string    `json:"expert_id"`
	ExpertName   string    `json:"expert_name"`
	Opinion      string    `json:"opinion"`
	Reasoning    string    `json:"reasoning"`
	Confidence   float64   `json:"confidence"` // 0-1
	QualityScore float64   `json:"quality_score,omitempty"`
	Position     string    `json:"position"`
	Round        int       `json:"round"`
	CreatedAt    time.Time `json:"created_at"`
}

// IssueType classifies a detected quality problem in a round.
type IssueType string

const (
	IssueShallow         IssueType = "shallow"
	IssueRepetitive      IssueType = "repetitive"
	IssueLackOfDiversity IssueType = "lack_of_diversity"
)

// QualityIssue is one detected problem with the round's debate quality.
type QualityIssue struct {
	Type             IssueType `json:"type"`
	Severity         int       `json:"severity"` // 1-10
	Description      string    `json:"description"`
	AffectedMessages []int     `json:"affected_messages,omitempty"`
	ForceModeration  bool      `json:"force_moderation,omitempty"`
}

// QualityAnalysis scores one completed round.
type QualityAnalysis struct {
	OverallQuality   float64        `json:"overall_quality"` // 0-100
	DepthScore       float64        `json:"depth_score"`
	DiversityScore   float64        `json:"diversity_score"`
	OriginalityScore float64        `json:"originality_score"`
	Issues           []QualityIssue `json:"issues,omitempty"`
	NeedsModeration  bool           `json:"needs_moderation"`
}

// InterventionType is a moderation intervention archetype.
type InterventionType string

const (
	InterventionChallengeDepth      InterventionType = "challenge_depth"
	InterventionExploreAlternatives InterventionType = "explore_alternatives"
	InterventionDiversifyPositions  InterventionType = "diversify_positions"
)

// Intervention is moderator guidance injected into the next round.
type Intervention struct {
	Type     InterventionType `json:"type"`
	Severity int              `json:"severity"`
	Prompt   string           `json:"prompt"`
	Reason   string           `json:"reason"`
}

// LiveMetadata is the read-only snapshot of a running session exposed to
// callers.
type LiveMetadata struct {
	SessionID        string       `json:"session_id"`
	State            SessionState `json:"state"`
	CurrentRound     int          `json:"current_round"`
	MaxRounds        int          `json:"max_rounds"`
	ConsensusScore   float64      `json:"consensus_score"`
	DominantPosition string       `json:"dominant_position,omitempty"`
	ActiveExperts    []string     `json:"active_experts"`
	ArgumentCount    int          `json:"argument_count"`
	LastRoundSummary string       `json:"last_round_summary,omitempty"`
}

// RoundRecord is the persisted record of one completed round.
type RoundRecord struct {
	Round    int              `json:"round"`
	Opinions []ExpertOpinion  `json:"opinions"`
	Quality  *QualityAnalysis `json:"quality,omitempty"`
}

// DebateResult is the finished outcome of a session.
type DebateResult struct {
	SessionID      string        `json:"session_id"`
	Question       string        `json:"question"`
	State          SessionState  `json:"state"`
	Synthesis      string        `json:"synthesis"`
	ConsensusScore float64       `json:"consensus_score"`
	Rounds         []RoundRecord `json:"rounds"`
	Panel          []ExpertMatch `json:"panel"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// NewSessionConfig holds the configuration for creating a new session.
type NewSessionConfig struct {
	Question           string  `json:"question"`
	Context            string  `json:"context,omitempty"`
	ExpertCount        int     `json:"expert_count"`
	MaxRounds          int     `json:"max_rounds"`
	ConsensusThreshold float64 `json:"consensus_threshold"` // 0-1
	UserID             string  `json:"user_id"`
	Premium            bool    `json:"premium"`
}
