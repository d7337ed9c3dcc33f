package provider

import (
	"context"
	"sync"
)

// Mock is a scripted provider for tests and offline runs. Responses cycle
// when calls exceed the scripted list.
type Mock struct {
	name      string
	available bool

	mu        sync.Mutex
	responses []string
	calls     int

	// GenerateFunc overrides the scripted responses when set.
	GenerateFunc func(ctx context.Context, req Request) (*Response, error)
}

// NewMock creates a mock provider with scripted responses.
func NewMock(name string, responses ...string) *Mock {
	return &Mock{
		name:      name,
		available: true,
		responses: responses,
	}
}

// Name returns the mock's identifier.
func (m *Mock) Name() string { return m.name }

// Available reports the configured availability.
func (m *Mock) Available() bool { return m.available }

// SetAvailable toggles availability for failure tests.
func (m *Mock) SetAvailable(v bool) { m.available = v }

// Calls returns how many generation calls were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate returns the next scripted response.
func (m *Mock) Generate(ctx context.Context, req Request) (*Response, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	text := "OPINION: No scripted response.\nREASONING: Mock default.\nCONFIDENCE: 0.5"
	if len(m.responses) > 0 {
		text = m.responses[m.calls%len(m.responses)]
	}
	m.calls++

	return &Response{
		Text: text,
		Usage: Usage{
			PromptTokens:     len(req.UserPrompt) / 4,
			CompletionTokens: len(text) / 4,
		},
	}, nil
}
