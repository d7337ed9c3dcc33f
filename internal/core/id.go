package core

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique session/opinion identifier.
func GenerateID() string {
	return uuid.New().String()
}
