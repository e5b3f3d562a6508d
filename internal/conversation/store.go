// Package conversation stores the ordered message log of each conversation.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const DefaultTTL = 7 * 24 * time.Hour

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Store is an append-only log per conversation id. Every append resets the
// expiry of that conversation. Reading an unknown or expired id yields an
// empty slice, never an error.
type Store interface {
	NewID() string
	Append(ctx context.Context, id string, msg Message) error
	Read(ctx context.Context, id string) ([]Message, error)
	Clear(ctx context.Context, id string) error
}

func newID() string {
	return uuid.NewString()
}
