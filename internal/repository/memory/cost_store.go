package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"velora/internal/model"
	"velora/internal/repository"
)

type costKey struct {
	userID string
	dayKey string
}

type CostStore struct {
	mu      sync.Mutex
	records map[costKey]*model.UserCostRecord
}

func NewCostStore() *CostStore {
	return &CostStore{
		records: make(map[costKey]*model.UserCostRecord),
	}
}

var _ repository.CostRepository = (*CostStore)(nil)

func (s *CostStore) Add(_ context.Context, d model.CostDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := costKey{userID: d.UserID, dayKey: d.DayKey}
	r, ok := s.records[k]
	if !ok {
		r = &model.UserCostRecord{UserID: d.UserID, DayKey: d.DayKey}
		s.records[k] = r
	}
	r.Add(d)
	return nil
}

func (s *CostStore) Get(_ context.Context, userID, dayKey string) (*model.UserCostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[costKey{userID: userID, dayKey: dayKey}]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *CostStore) ListByDay(_ context.Context, dayKey string) ([]model.UserCostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.UserCostRecord{}
	for k, r := range s.records {
		if k.dayKey == dayKey {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b model.UserCostRecord) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out, nil
}
