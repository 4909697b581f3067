package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"velora/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitArg(t *testing.T) {
	tests := []struct {
		limit int
		want  any
	}{
		{limit: 100, want: 100},
		{limit: 1, want: 1},
		{limit: 0, want: nil},
		{limit: -5, want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, limitArg(tt.limit), "limit %d", tt.limit)
	}
}

// requirePostgres connects to a migrated database named by
// TEST_DB_CONNECTION_STRING and skips otherwise.
func requirePostgres(t *testing.T) (context.Context, *pgxpool.Pool, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("TEST_DB_CONNECTION_STRING is not set, skip postgres integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return ctx, pool, "user-" + uuid.NewString()
}

func TestFollowupRepo_Postgres(t *testing.T) {
	ctx, pool, userID := requirePostgres(t)
	repo := NewFollowupRepo(pool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	f := &model.Followup{
		UserID:       userID,
		ThreadKey:    "thread_pg",
		Direction:    model.DirectionTheyOwe,
		Status:       model.StatusPending,
		DueAt:        now.Add(-time.Hour),
		Participants: []model.Participant{{Name: "Ana", Email: "ana@example.com", Role: model.RoleThem}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, created, err := repo.CreateIfAbsent(ctx, f)
	require.NoError(t, err)
	require.True(t, created)
	t.Cleanup(func() { _ = repo.Delete(ctx, stored.ID) })

	cleared, err := repo.Update(ctx, stored.ID, model.FollowupPatch{Participants: []model.Participant{}, UpdatedAt: now})
	require.NoError(t, err)
	assert.NotNil(t, cleared.Participants)
	assert.Empty(t, cleared.Participants)

	due, err := repo.ListDueForReminder(ctx, now, now, 0)
	require.NoError(t, err)
	var found bool
	for _, d := range due {
		if d.ID == stored.ID {
			found = true
		}
	}
	assert.True(t, found, "a zero limit lists every due followup")
}
