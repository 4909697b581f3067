package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFollowup(userID, threadKey string, due time.Time) *model.Followup {
	return &model.Followup{
		UserID:    userID,
		ThreadKey: threadKey,
		Direction: model.DirectionYouOwe,
		Status:    model.StatusPending,
		DueAt:     due,
	}
}

func TestCreateIfAbsent_Concurrent(t *testing.T) {
	store := NewFollowupStore()
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, ok, err := store.CreateIfAbsent(context.Background(), newFollowup("u1", "thread_a", now))
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[f.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	open, err := store.List(context.Background(), "u1", model.OpenStatuses, "")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCreateIfAbsent_ClosedThreadAllowsNew(t *testing.T) {
	store := NewFollowupStore()
	ctx := context.Background()
	now := time.Now()

	first, created, err := store.CreateIfAbsent(ctx, newFollowup("u1", "thread_a", now))
	require.NoError(t, err)
	require.True(t, created)

	done := model.StatusDone
	_, err = store.Update(ctx, first.ID, model.FollowupPatch{Status: &done, UpdatedAt: now})
	require.NoError(t, err)

	second, created, err := store.CreateIfAbsent(ctx, newFollowup("u1", "thread_a", now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewFollowupStore()
	ctx := context.Background()
	f := newFollowup("u1", "thread_a", time.Now())
	f.Participants = []model.Participant{{Name: "Ana", Role: model.RoleThem}}
	require.NoError(t, store.Create(ctx, f))

	got, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	got.Participants[0].Name = "changed"
	got.Subject = "changed"

	again, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Participants[0].Name)
	assert.Empty(t, again.Subject)
}

func TestListDueForReminder(t *testing.T) {
	store := NewFollowupStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	due := newFollowup("u1", "thread_a", now.Add(-time.Hour))
	notDue := newFollowup("u1", "thread_b", now.Add(time.Hour))
	recent := newFollowup("u1", "thread_c", now.Add(-2*time.Hour))
	reminded := now.Add(-time.Hour)
	recent.LastReminderAt = &reminded
	for _, f := range []*model.Followup{due, notDue, recent} {
		require.NoError(t, store.Create(ctx, f))
	}

	got, err := store.ListDueForReminder(ctx, now, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)

	_, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), repository.ErrNotFound)
}
