package conversation

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Citation points at the grounding source backing part of an assistant turn.
type Citation struct {
	SourceKind string  `json:"source_kind"` // "index" or "web"
	SourceRef  string  `json:"source_ref"`
	Score      float64 `json:"score"`
}

// Turn is a single persisted conversational exchange entry. Turns are
// immutable once stored; corrections are appended as new turns.
type Turn struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Role          Role       `json:"role"`
	Text          string     `json:"text"`
	Citations     []Citation `json:"citations,omitempty"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
	BlockReason   string     `json:"block_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Store persists and retrieves conversation history.
//
// AppendTurns is atomic for the given slice: either every turn is stored or
// none is. Recent returns up to limit turns in chronological order.
type Store interface {
	AppendTurns(ctx context.Context, userID string, turns []Turn) error
	Recent(ctx context.Context, userID string, limit int) ([]Turn, error)
	Close() error
}
