// Package memory holds process-local repositories for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"github.com/google/uuid"
)

type FollowupStore struct {
	mu        sync.RWMutex
	followups map[string]*model.Followup
}

func NewFollowupStore() *FollowupStore {
	return &FollowupStore{
		followups: make(map[string]*model.Followup),
	}
}

var _ repository.FollowupRepository = (*FollowupStore)(nil)

func clone(f *model.Followup) *model.Followup {
	out := *f
	out.Participants = slices.Clone(f.Participants)
	return &out
}

func (s *FollowupStore) insertLocked(f *model.Followup) {
	f.ID = uuid.NewString()
	s.followups[f.ID] = clone(f)
}

func (s *FollowupStore) Create(_ context.Context, f *model.Followup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(f)
	return nil
}

func (s *FollowupStore) CreateIfAbsent(_ context.Context, f *model.Followup) (*model.Followup, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findOpenLocked(f.UserID, f.ThreadKey); existing != nil {
		return clone(existing), false, nil
	}
	s.insertLocked(f)
	return clone(f), true, nil
}

func (s *FollowupStore) Get(_ context.Context, id string) (*model.Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.followups[id]
	if !ok {
		return nil, nil
	}
	return clone(f), nil
}

func (s *FollowupStore) List(_ context.Context, userID string, statuses []model.FollowupStatus, direction model.FollowupDirection) ([]model.Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Followup{}
	for _, f := range s.followups {
		if f.UserID != userID || !slices.Contains(statuses, f.Status) {
			continue
		}
		if direction != "" && f.Direction != direction {
			continue
		}
		result = append(result, *clone(f))
	}
	sortByDue(result)
	return result, nil
}

func (s *FollowupStore) ListDueForReminder(_ context.Context, now, remindedBefore time.Time, limit int) ([]model.Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Followup{}
	for _, f := range s.followups {
		if !f.Status.IsOpen() || f.DueAt.After(now) {
			continue
		}
		if f.LastReminderAt != nil && !f.LastReminderAt.Before(remindedBefore) {
			continue
		}
		result = append(result, *clone(f))
	}
	sortByDue(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortByDue(fs []model.Followup) {
	slices.SortStableFunc(fs, func(a, b model.Followup) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func (s *FollowupStore) Update(_ context.Context, id string, patch model.FollowupPatch) (*model.Followup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.followups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(f)
	return clone(f), nil
}

func (s *FollowupStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.followups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.followups, id)
	return nil
}

func (s *FollowupStore) FindOpenByThreadKey(_ context.Context, userID, threadKey string) (*model.Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f := s.findOpenLocked(userID, threadKey); f != nil {
		return clone(f), nil
	}
	return nil, nil
}

func (s *FollowupStore) findOpenLocked(userID, threadKey string) *model.Followup {
	var found *model.Followup
	for _, f := range s.followups {
		if f.UserID != userID || f.ThreadKey != threadKey || !f.Status.IsOpen() {
			continue
		}
		if found == nil || f.CreatedAt.Before(found.CreatedAt) {
			found = f
		}
	}
	return found
}
