// Package profile is the personalization source: per-user CRM context and
// actionable intent recording.
package profile

import (
	"context"
	"time"
)

// Profile is a read-only per-turn snapshot of what the CRM knows about a
// user. Attributes carry free-form facts like "course", "campus", "year".
type Profile struct {
	UserID       string            `json:"user_id"`
	Attributes   map[string]string `json:"attributes"`
	LastSyncedAt time.Time         `json:"last_synced_at"`
}

// Attr returns an attribute value, or "" when unknown.
func (p Profile) Attr(key string) string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[key]
}

// Intent is an actionable request detected in a conversation.
type Intent struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type IntentStatus string

const (
	IntentProposed  IntentStatus = "proposed"
	IntentConfirmed IntentStatus = "confirmed"
	IntentFailed    IntentStatus = "failed"
)

// PendingIntent is the CRM-side record of a submitted intent.
type PendingIntent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Status     IntentStatus      `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Source exposes the personalization capability.
//
// FetchProfile may serve a snapshot up to the configured TTL old.
// SubmitIntent must be idempotent under the client-supplied key: retrying
// with the same key never creates a second downstream action.
type Source interface {
	FetchProfile(ctx context.Context, userID string) (Profile, error)
	SubmitIntent(ctx context.Context, userID string, intent Intent, idempotencyKey string) (PendingIntent, error)
}
