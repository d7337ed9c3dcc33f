package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/analyzer"
	"github.com/arturoyo/Quoorum-sub007/internal/cache"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
	"github.com/arturoyo/Quoorum-sub007/internal/session"
	"github.com/arturoyo/Quoorum-sub007/internal/telemetry"
)

const expertResponse = "OPINION: I recommend we proceed with the migration given the readiness reviews.\nREASONING: The rollback path is tested.\nCONFIDENCE: 0.85"

const analysisResponse = `{
  "areas": [
    {"name": "technology", "weight": 80, "reasoning": "platform decision"},
    {"name": "finance", "weight": 60, "reasoning": "licensing cost"},
    {"name": "operations", "weight": 50, "reasoning": "rollout burden"}
  ],
  "topics": [
    {"name": "infrastructure", "relevance": 90},
    {"name": "cost", "relevance": 70},
    {"name": "rollout", "relevance": 60}
  ],
  "complexity": 5,
  "decision_type": "strategic",
  "recommended_experts": ["technology-architect", "finance-analyst", "operations-lead", "critic"],
  "reasoning": "Platform choice with cost and rollout implications."
}`

type fixture struct {
	handler *Handler
	manager *session.Manager
	store   *ratelimit.MemoryStore
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := provider.NewRegistry()
	ctrl := admission.NewController(nil)
	for _, name := range []string{"claude", "openai", "gemini"} {
		registry.Register(provider.NewMock(name, expertResponse))
		ctrl.SetLimits(name, admission.Limits{
			RequestsPerMinute: 100000,
			TokensPerMinute:   100000000,
			RequestsPerDay:    100000,
		})
	}

	executor := session.NewExecutor(registry, ctrl, telemetry.NopSink{})
	an := analyzer.New(provider.NewMock("analyzer", analysisResponse), "mock-v1")
	store := ratelimit.NewMemoryStore()
	manager := session.NewManager(an, expert.NewMatcher(expert.NewRegistry()), executor, ratelimit.NewLimiter(store), cache.New(), nil)

	handler := New(manager, registry, nil, nil)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return &fixture{handler: handler, manager: manager, store: store, server: server}
}

func (f *fixture) createDebate(t *testing.T, question, userID string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]any{"question": question, "user_id": userID})
	resp, err := http.Post(f.server.URL+"/api/debates", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func (f *fixture) awaitDone(t *testing.T, sessionID string) {
	t.Helper()

	sess, err := f.manager.Get(sessionID)
	require.NoError(t, err)
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestCreateAndGetDebate(t *testing.T) {
	f := newFixture(t)

	id := f.createDebate(t, "Should we migrate to Kubernetes?", "user-1")
	f.awaitDone(t, id)

	resp, err := http.Get(f.server.URL + "/api/debates/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		SessionID string `json:"session_id"`
		State     string `json:"state"`
		Synthesis string `json:"synthesis"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, id, result.SessionID)
	assert.Equal(t, "consensus_reached", result.State)
	assert.NotEmpty(t, result.Synthesis)
}

func TestCreateDebateRequiresUser(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(map[string]any{"question": "Should we?"})
	resp, err := http.Post(f.server.URL+"/api/debates", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateDebateRateLimited(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Update(context.Background(), "busy", func(rec *ratelimit.Record) {
		rec.ConcurrentDebates = 3
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"question": "Should we expand?", "user_id": "busy"})
	resp, err := http.Post(f.server.URL+"/api/debates", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGetDebateNotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/debates/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControlActionsOnFinishedDebate(t *testing.T) {
	f := newFixture(t)

	id := f.createDebate(t, "Should we migrate to Kubernetes?", "user-1")
	f.awaitDone(t, id)

	resp, err := http.Post(f.server.URL+"/api/debates/"+id+"/pause", "application/json", bytes.NewReader([]byte(`{"reason":"late"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAddContextRequiresText(t *testing.T) {
	f := newFixture(t)

	id := f.createDebate(t, "Should we migrate to Kubernetes?", "user-1")

	resp, err := http.Post(f.server.URL+"/api/debates/"+id+"/context", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.awaitDone(t, id)
}

func TestExportDebateMarkdown(t *testing.T) {
	f := newFixture(t)

	id := f.createDebate(t, "Should we migrate to Kubernetes?", "user-1")
	f.awaitDone(t, id)

	resp, err := http.Get(f.server.URL + "/api/debates/" + id + "/export?format=markdown")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".md")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Should we migrate to Kubernetes?")
}

func TestListProviders(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var providers []struct {
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
	assert.Len(t, providers, 3)
}
