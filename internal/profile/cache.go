package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CachedSource fronts another Source with a TTL cache for profile reads.
// A snapshot up to ttl old is acceptable per the personalization contract;
// intent submission is never cached.
type CachedSource struct {
	inner Source
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedSource(inner Source, ttl time.Duration) (*CachedSource, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init profile cache: %w", err)
	}
	return &CachedSource{inner: inner, cache: cache, ttl: ttl}, nil
}

func (s *CachedSource) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	if v, ok := s.cache.Get(userID); ok {
		if p, ok := v.(Profile); ok {
			return p, nil
		}
	}

	p, err := s.inner.FetchProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	s.cache.SetWithTTL(userID, p, int64(len(userID)+len(p.Attributes)*32+64), s.ttl)
	// Ristretto admits asynchronously; wait so a burst of turns for the same
	// user hits the cache instead of the CRM.
	s.cache.Wait()
	return p, nil
}

func (s *CachedSource) SubmitIntent(ctx context.Context, userID string, intent Intent, idempotencyKey string) (PendingIntent, error) {
	return s.inner.SubmitIntent(ctx, userID, intent, idempotencyKey)
}

func (s *CachedSource) Close() {
	s.cache.Close()
}
