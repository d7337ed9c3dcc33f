// Package session owns the debate session state machine: the round loop,
// consensus scoring, and the external control surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/quality"
)

// ErrNotControllable is returned for control actions on a session that is
// not running or paused.
var ErrNotControllable = errors.New("session is not running or paused")

// ErrQuorumNotMet marks a round that lost too many experts.
var ErrQuorumNotMet = errors.New("round quorum not met")

// Config holds per-session tuning.
type Config struct {
	MaxRounds          int
	ConsensusThreshold float64 // 0-1
	QuorumFraction     float64 // fraction of the panel a round needs
	PerExpertTimeout   time.Duration
}

// DefaultConfig returns the standard session configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:          5,
		ConsensusThreshold: 0.8,
		QuorumFraction:     0.5,
		PerExpertTimeout:   3 * time.Minute,
	}
}

type controlKind int

const (
	ctrlPause controlKind = iota
	ctrlResume
	ctrlAddContext
	ctrlForceConsensus
)

type controlMsg struct {
	kind controlKind
	text string
}

// Session is one deliberation. Its round state is owned exclusively by the
// goroutine running Run; external control actions are message sends into
// the control channel, never direct mutation.
type Session struct {
	ID          string
	Question    string
	Description string
	Panel       []core.ExpertMatch

	cfg       Config
	executor  *Executor
	monitor   *quality.Monitor
	moderator *quality.Moderator

	ctrl chan controlMsg

	mu           sync.RWMutex
	state        core.SessionState
	meta         core.LiveMetadata
	extraContext []string
	costUSD      float64

	done   chan struct{}
	result *core.DebateResult
	runErr error

	createdAt time.Time
}

// New creates a session in the draft state.
func New(question, description string, panel []core.ExpertMatch, cfg Config, executor *Executor) *Session {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig().MaxRounds
	}
	if cfg.ConsensusThreshold <= 0 {
		cfg.ConsensusThreshold = DefaultConfig().ConsensusThreshold
	}
	if cfg.QuorumFraction <= 0 {
		cfg.QuorumFraction = DefaultConfig().QuorumFraction
	}
	if cfg.PerExpertTimeout <= 0 {
		cfg.PerExpertTimeout = DefaultConfig().PerExpertTimeout
	}

	s := &Session{
		ID:          core.GenerateID(),
		Question:    question,
		Description: description,
		Panel:       panel,
		cfg:         cfg,
		executor:    executor,
		monitor:     quality.NewMonitor(),
		moderator:   quality.NewModerator(),
		ctrl:        make(chan controlMsg, 16),
		state:       core.StateDraft,
		done:        make(chan struct{}),
		createdAt:   time.Now(),
	}
	s.meta = core.LiveMetadata{
		SessionID: s.ID,
		State:     core.StateDraft,
		MaxRounds: cfg.MaxRounds,
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() core.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LiveMetadata returns a snapshot of the running session.
func (s *Session) LiveMetadata() core.LiveMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta := s.meta
	meta.State = s.state
	return meta
}

// Result returns the finished result once the session is terminal.
func (s *Session) Result() (*core.DebateResult, error) {
	select {
	case <-s.done:
		return s.result, s.runErr
	default:
		return nil, fmt.Errorf("session %s has not finished", s.ID)
	}
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// CostUSD returns the accumulated provider spend.
func (s *Session) CostUSD() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.costUSD
}

// Pause requests a pause. The current round finishes first; the pause
// takes effect at the round boundary.
func (s *Session) Pause(reason string) error {
	return s.sendControl(controlMsg{kind: ctrlPause, text: reason})
}

// Resume returns a paused session to running.
func (s *Session) Resume() error {
	return s.sendControl(controlMsg{kind: ctrlResume})
}

// AddContext appends context visible starting the next round, without
// interrupting the current one.
func (s *Session) AddContext(text string) error {
	return s.sendControl(controlMsg{kind: ctrlAddContext, text: text})
}

// ForceConsensus short-circuits the loop at the next checkpoint and
// triggers a best-effort synthesis over whatever opinions exist.
func (s *Session) ForceConsensus() error {
	return s.sendControl(controlMsg{kind: ctrlForceConsensus})
}

func (s *Session) sendControl(msg controlMsg) error {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state != core.StateRunning && state != core.StatePaused {
		return fmt.Errorf("%w: state is %s", ErrNotControllable, state)
	}

	select {
	case s.ctrl <- msg:
		return nil
	default:
		return fmt.Errorf("control queue for session %s is full", s.ID)
	}
}

// Run executes the session to a terminal state. It must be called exactly
// once, from the goroutine that owns the session.
func (s *Session) Run(ctx context.Context) (*core.DebateResult, error) {
	s.setState(core.StatePending)
	s.setState(core.StateRunning)
	slog.Info("Debate session started",
		"session", s.ID, "panel_size", len(s.Panel), "max_rounds", s.cfg.MaxRounds)

	var (
		rounds             []core.RoundRecord
		prior              [][]core.ExpertOpinion
		guidance           string
		lastModeratedRound int
		consensus          float64
		dominant           string
		forced             bool
		final              core.SessionState
	)

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		stop, err := s.handleControls(ctx)
		if err != nil {
			return s.fail(rounds, err)
		}
		if stop {
			forced = true
			break
		}

		opinions, err := s.executeRound(ctx, round, guidance, prior)
		if err != nil {
			return s.fail(rounds, err)
		}
		guidance = ""

		qa := s.monitor.AnalyzeRound(opinions, prior)
		for i := range opinions {
			opinions[i].QualityScore = qa.OverallQuality
		}

		rounds = append(rounds, core.RoundRecord{Round: round, Opinions: opinions, Quality: qa})
		prior = append(prior, opinions)

		// Moderation is only considered at the cadence the current
		// quality level earns; whether it fires is a separate question.
		if round-lastModeratedRound >= s.moderator.InterventionFrequency(qa) {
			lastModeratedRound = round
			if s.moderator.ShouldIntervene(qa) {
				if iv := s.moderator.GenerateIntervention(qa); iv != nil {
					guidance = iv.Prompt
					slog.Info("Moderator intervention scheduled",
						"session", s.ID, "round", round, "type", iv.Type, "severity", iv.Severity)
				}
			}
		}

		consensus, dominant = ConsensusScore(opinions)
		s.updateMeta(round, consensus, dominant, opinions, qa)

		slog.Debug("Round complete",
			"session", s.ID, "round", round, "opinions", len(opinions),
			"consensus", consensus, "quality", qa.OverallQuality)

		if consensus >= s.cfg.ConsensusThreshold {
			final = core.StateConsensusReached
			break
		}
	}

	switch {
	case forced:
		final = core.StateForceConcluded
	case final == "":
		final = core.StateCompleted
	}

	synthesis := s.synthesize(ctx, rounds, consensus, dominant)

	now := time.Now()
	result := &core.DebateResult{
		SessionID:      s.ID,
		Question:       s.Question,
		State:          final,
		Synthesis:      synthesis,
		ConsensusScore: consensus,
		Rounds:         rounds,
		Panel:          s.Panel,
		CreatedAt:      s.createdAt,
		CompletedAt:    &now,
	}

	s.mu.Lock()
	s.state = final
	s.meta.State = final
	s.result = result
	s.mu.Unlock()
	close(s.done)

	slog.Info("Debate session finished",
		"session", s.ID, "state", final, "rounds", len(rounds), "consensus", consensus)
	return result, nil
}

// handleControls applies pending control messages at a round boundary.
// It blocks while paused. The returned stop flag signals forced consensus.
func (s *Session) handleControls(ctx context.Context) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case msg := <-s.ctrl:
			if stop, err := s.applyControl(ctx, msg); stop || err != nil {
				return stop, err
			}
		default:
			return false, nil
		}
	}
}

func (s *Session) applyControl(ctx context.Context, msg controlMsg) (bool, error) {
	switch msg.kind {
	case ctrlAddContext:
		s.mu.Lock()
		s.extraContext = append(s.extraContext, msg.text)
		s.mu.Unlock()
		return false, nil

	case ctrlForceConsensus:
		return true, nil

	case ctrlResume:
		return false, nil

	case ctrlPause:
		slog.Info("Session paused", "session", s.ID, "reason", msg.text)
		s.setState(core.StatePaused)
		// Block until resumed, forced, or cancelled. Round results so
		// far are retained.
		for {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case next := <-s.ctrl:
				switch next.kind {
				case ctrlResume:
					slog.Info("Session resumed", "session", s.ID)
					s.setState(core.StateRunning)
					return false, nil
				case ctrlForceConsensus:
					return true, nil
				case ctrlAddContext:
					s.mu.Lock()
					s.extraContext = append(s.extraContext, next.text)
					s.mu.Unlock()
				case ctrlPause:
					// Already paused.
				}
			}
		}
	}
	return false, nil
}

// executeRound fans the panel out concurrently and gathers opinions at
// the round barrier. A timed-out or failed expert is simply absent; the
// round fails only when the quorum is not met.
func (s *Session) executeRound(ctx context.Context, round int, guidance string, prior [][]core.ExpertOpinion) ([]core.ExpertOpinion, error) {
	dc := s.buildContext(round, guidance, prior)

	type outcome struct {
		opinion core.ExpertOpinion
		cost    float64
		err     error
		expert  string
	}

	results := make(chan outcome, len(s.Panel))
	for _, match := range s.Panel {
		go func(expert core.Expert) {
			expertCtx, cancel := context.WithTimeout(ctx, s.cfg.PerExpertTimeout)
			defer cancel()

			opinion, cost, err := s.executor.ExecuteExpert(expertCtx, expert, dc)
			results <- outcome{opinion: opinion, cost: cost, err: err, expert: expert.ID}
		}(match.Expert)
	}

	var opinions []core.ExpertOpinion
	for i := 0; i < len(s.Panel); i++ {
		res := <-results
		if res.err != nil {
			slog.Warn("Expert did not respond this round",
				"session", s.ID, "round", round, "expert", res.expert, "error", res.err)
			continue
		}
		opinions = append(opinions, res.opinion)
		s.mu.Lock()
		s.costUSD += res.cost
		s.mu.Unlock()
	}

	required := int(math.Ceil(s.cfg.QuorumFraction * float64(len(s.Panel))))
	if len(opinions) < required {
		return nil, fmt.Errorf("%w: round %d collected %d of %d required opinions",
			ErrQuorumNotMet, round, len(opinions), required)
	}

	return opinions, nil
}

func (s *Session) buildContext(round int, guidance string, prior [][]core.ExpertOpinion) core.DeliberationContext {
	s.mu.RLock()
	extra := make([]string, len(s.extraContext))
	copy(extra, s.extraContext)
	s.mu.RUnlock()

	description := s.Description
	if len(extra) > 0 {
		description += "\n\nADDITIONAL CONTEXT:\n" + strings.Join(extra, "\n")
	}

	var previous []core.ExpertOpinion
	if len(prior) > 0 {
		previous = prior[len(prior)-1]
	}

	return core.DeliberationContext{
		Topic:             s.Question,
		Description:       description,
		RoundNumber:       round,
		PreviousOpinions:  previous,
		ModeratorGuidance: guidance,
	}
}

// synthesize produces the final recommendation over whatever opinions
// exist. It is best effort: a failed synthesis call degrades to a
// mechanical summary, never an error.
func (s *Session) synthesize(ctx context.Context, rounds []core.RoundRecord, consensus float64, dominant string) string {
	fallback := s.mechanicalSummary(rounds, consensus, dominant)

	if len(rounds) == 0 || len(s.Panel) == 0 {
		return fallback
	}

	lead := s.Panel[0].Expert
	prov, err := s.executor.registry.Get(lead.PreferredProvider)
	if err != nil {
		return fallback
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nFinal positions from the expert panel:\n", s.Question)
	last := rounds[len(rounds)-1]
	for _, op := range last.Opinions {
		fmt.Fprintf(&b, "\n[%s, confidence %.2f]\n%s\n", op.ExpertName, op.Confidence, op.Opinion)
	}
	b.WriteString("\nSynthesize these positions into a single recommendation: state the decision, the key supporting reasons, the main dissent, and what would change the answer. Be concise.")

	if err := s.executor.admission.WaitForCapacity(ctx, lead.PreferredProvider, estimateTokens(b.String())+s.executor.MaxOutputTokens); err != nil {
		return fallback
	}

	callCtx, cancel := context.WithTimeout(ctx, s.executor.CallTimeout)
	defer cancel()

	resp, err := prov.Generate(callCtx, provider.Request{
		SystemPrompt: "You are a neutral chairperson synthesizing an expert panel's deliberation.",
		UserPrompt:   b.String(),
		Model:        lead.PreferredModel,
		Temperature:  0.3,
		MaxTokens:    s.executor.MaxOutputTokens,
	})
	if err != nil {
		slog.Warn("Synthesis call failed, using mechanical summary", "session", s.ID, "error", err)
		return fallback
	}
	return strings.TrimSpace(resp.Text)
}

func (s *Session) mechanicalSummary(rounds []core.RoundRecord, consensus float64, dominant string) string {
	if len(rounds) == 0 {
		return "No opinions were collected before the session concluded."
	}
	last := rounds[len(rounds)-1]
	return fmt.Sprintf(
		"After %d round(s), the dominant position was %q with a consensus score of %.0f%%, across %d expert opinion(s).",
		len(rounds), dominant, consensus*100, len(last.Opinions))
}

func (s *Session) fail(rounds []core.RoundRecord, err error) (*core.DebateResult, error) {
	s.mu.Lock()
	s.state = core.StateFailed
	s.meta.State = core.StateFailed
	s.runErr = err
	s.mu.Unlock()
	close(s.done)

	slog.Error("Debate session failed", "session", s.ID, "rounds_completed", len(rounds), "error", err)
	return nil, err
}

func (s *Session) setState(state core.SessionState) {
	s.mu.Lock()
	s.state = state
	s.meta.State = state
	s.mu.Unlock()
}

func (s *Session) updateMeta(round int, consensus float64, dominant string, opinions []core.ExpertOpinion, qa *core.QualityAnalysis) {
	active := make([]string, 0, len(opinions))
	for _, op := range opinions {
		active = append(active, op.ExpertName)
	}

	s.mu.Lock()
	s.meta.CurrentRound = round
	s.meta.ConsensusScore = consensus
	s.meta.DominantPosition = dominant
	s.meta.ActiveExperts = active
	s.meta.ArgumentCount += len(opinions)
	s.meta.LastRoundSummary = fmt.Sprintf("round %d: %d opinions, quality %.0f, consensus %.0f%%",
		round, len(opinions), qa.OverallQuality, consensus*100)
	s.mu.Unlock()
}
