package memory

import (
	"context"
	"sync"
	"time"

	"velora/internal/model"
	"velora/internal/repository"
)

type counterKey struct {
	userID      string
	granularity model.WindowGranularity
	index       int64
}

type RateLimitStore struct {
	mu       sync.Mutex
	counters map[counterKey]*model.RateLimitCounter
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		counters: make(map[counterKey]*model.RateLimitCounter),
	}
}

var _ repository.RateLimitRepository = (*RateLimitStore)(nil)

func (s *RateLimitStore) Increment(_ context.Context, userID string, windows []model.WindowKey) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make([]int64, len(windows))
	for i, w := range windows {
		k := counterKey{userID: userID, granularity: w.Granularity, index: w.Index}
		c, ok := s.counters[k]
		if !ok {
			c = &model.RateLimitCounter{
				UserID:      userID,
				Granularity: w.Granularity,
				WindowIndex: w.Index,
				ExpiresAt:   w.End(),
			}
			s.counters[k] = c
		}
		c.Count++
		counts[i] = c.Count
	}
	return counts, nil
}

func (s *RateLimitStore) GetCount(_ context.Context, userID string, window model.WindowKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[counterKey{userID: userID, granularity: window.Granularity, index: window.Index}]; ok {
		return c.Count, nil
	}
	return 0, nil
}

func (s *RateLimitStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, c := range s.counters {
		if c.ExpiresAt.Before(before) {
			delete(s.counters, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live counters.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
