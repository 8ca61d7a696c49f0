package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Directory is an in-process Source for local/dev use and tests. Intents are
// deduplicated by idempotency key, mirroring the contract a real CRM is
// expected to honour.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	intents  map[string]PendingIntent // keyed by idempotency key
}

func NewDirectory() *Directory {
	return &Directory{
		profiles: make(map[string]Profile),
		intents:  make(map[string]PendingIntent),
	}
}

// SetProfile seeds or replaces a profile.
func (d *Directory) SetProfile(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.Attributes == nil {
		p.Attributes = map[string]string{}
	}
	p.LastSyncedAt = time.Now().UTC()
	d.profiles[p.UserID] = p
}

func (d *Directory) FetchProfile(_ context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.profiles[userID]; ok {
		return p, nil
	}
	return Profile{UserID: userID, Attributes: map[string]string{}, LastSyncedAt: time.Now().UTC()}, nil
}

func (d *Directory) SubmitIntent(_ context.Context, _ string, intent Intent, idempotencyKey string) (PendingIntent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.intents[idempotencyKey]; ok {
		return existing, nil
	}
	pending := PendingIntent{
		ID:         uuid.NewString(),
		Type:       intent.Type,
		Parameters: intent.Parameters,
		Status:     IntentConfirmed,
		CreatedAt:  time.Now().UTC(),
	}
	d.intents[idempotencyKey] = pending
	return pending, nil
}

// IntentCount reports how many distinct intents have been recorded.
func (d *Directory) IntentCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.intents)
}
