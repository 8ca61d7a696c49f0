package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process turn store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Turn)}
}

func (s *InMemoryStore) AppendTurns(_ context.Context, userID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.UserID == "" {
			turn.UserID = userID
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		s.records[userID] = append(s.records[userID], turn)
	}
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, userID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Turn, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
