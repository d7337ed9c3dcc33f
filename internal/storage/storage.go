// Package storage persists finished debate results.
package storage

import (
	"context"
	"errors"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// ErrNotFound is returned when a session id has no stored result.
var ErrNotFound = errors.New("debate result not found")

// Storage persists and retrieves debate results.
type Storage interface {
	SaveResult(ctx context.Context, result *core.DebateResult) error
	GetResult(ctx context.Context, sessionID string) (*core.DebateResult, error)
	ListResults(ctx context.Context, limit int) ([]*core.DebateResult, error)
	Close() error
}
