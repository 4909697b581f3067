package cleanup

import (
	"context"
	"testing"
	"time"

	"velora/internal/clock"
	"velora/internal/model"
	"velora/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnce_DeletesExpiredCounters(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 15, 30, 0, time.UTC)
	repo := memory.NewRateLimitStore()
	_, err := repo.Increment(context.Background(), "u1", []model.WindowKey{
		model.WindowFor(model.WindowMinute, now),
		model.WindowFor(model.WindowHour, now),
		model.WindowFor(model.WindowDay, now),
	})
	require.NoError(t, err)

	clk := clock.NewMock(now.Add(2 * time.Minute))
	require.NoError(t, Once(context.Background(), zerolog.Nop(), repo, clk))
	assert.Equal(t, 2, repo.Len())

	clk.Advance(24 * time.Hour)
	require.NoError(t, Once(context.Background(), zerolog.Nop(), repo, clk))
	assert.Equal(t, 0, repo.Len())
}
