package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"velora/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireEmulator(t *testing.T) (context.Context, string) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set, skip emulator integration test")
	}
	// a fresh user id per test keeps runs independent on a shared emulator
	return context.Background(), "user-" + uuid.NewString()
}

func TestFollowupStore_Emulator(t *testing.T) {
	ctx, userID := requireEmulator(t)
	client, err := NewClient(ctx, "velora-test", "")
	require.NoError(t, err)
	defer client.Close()
	store := NewFollowupStore(client)

	now := time.Now().UTC().Truncate(time.Millisecond)
	f := &model.Followup{
		UserID:       userID,
		ThreadKey:    "thread_emulator",
		Direction:    model.DirectionTheyOwe,
		Status:       model.StatusPending,
		DueAt:        now.Add(-time.Hour),
		Participants: []model.Participant{{Name: "Ana", Email: "ana@example.com", Role: model.RoleThem}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, created, err := store.CreateIfAbsent(ctx, f)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := store.CreateIfAbsent(ctx, &model.Followup{UserID: userID, ThreadKey: "thread_emulator", Direction: model.DirectionYouOwe, Status: model.StatusPending})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)

	found, err := store.FindOpenByThreadKey(ctx, userID, "thread_emulator")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ana", found.Participants[0].Name)

	done := model.StatusDone
	updated, err := store.Update(ctx, stored.ID, model.FollowupPatch{Status: &done, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, updated.Status)

	found, err = store.FindOpenByThreadKey(ctx, userID, "thread_emulator")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, store.Delete(ctx, stored.ID))
	missing, err := store.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRateLimitStore_Emulator(t *testing.T) {
	ctx, userID := requireEmulator(t)
	client, err := NewClient(ctx, "velora-test", "")
	require.NoError(t, err)
	defer client.Close()
	store := NewRateLimitStore(client)

	windows := []model.WindowKey{model.WindowFor(model.WindowMinute, time.Now()), model.WindowFor(model.WindowDay, time.Now())}
	for i := 1; i <= 3; i++ {
		counts, err := store.Increment(ctx, userID, windows)
		require.NoError(t, err)
		assert.Equal(t, []int64{int64(i), int64(i)}, counts)
	}

	n, err := store.GetCount(ctx, userID, windows[0])
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	expired := model.WindowFor(model.WindowMinute, time.Now().Add(-2*time.Hour))
	_, err = store.Increment(ctx, userID, []model.WindowKey{expired})
	require.NoError(t, err)

	deleted, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	n, err = store.GetCount(ctx, userID, expired)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.GetCount(ctx, userID, windows[0])
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
