package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"velora/internal/model"
	"velora/internal/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderRunOnce_SendsAndMarks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	due := f.create("u1", "thread_a", model.DirectionTheyOwe, t0.Add(-time.Hour))
	f.create("u1", "thread_b", model.DirectionTheyOwe, t0.Add(time.Hour))

	run, err := f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReminderRun{Due: 1, Sent: 1}, run)

	events := f.publisher.byType(pubsub.EventReminderDue)
	require.Len(t, events, 1)
	assert.Equal(t, "reminder-emails", events[0].topic)
	var e pubsub.Event
	require.NoError(t, json.Unmarshal(events[0].payload, &e))
	assert.Equal(t, due.ID, e.FollowupID)

	got, err := f.service.GetFollowup(ctx, due.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReminderAt)
	assert.Equal(t, t0, *got.LastReminderAt)

	rec, err := f.reports.GetDailyCost(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.EmailsSent)
}

func TestReminderRunOnce_RespectsCooldown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.create("u1", "thread_a", model.DirectionTheyOwe, t0.Add(-time.Hour))

	_, err := f.reminder.RunOnce(ctx)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	run, err := f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, run.Due)

	f.clock.Advance(24 * time.Hour)
	run, err = f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Sent)
}

func TestReminderRunOnce_RateLimited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, key := range []string{"thread_a", "thread_b", "thread_c", "thread_d"} {
		f.create("u1", key, model.DirectionTheyOwe, t0.Add(-time.Hour))
	}

	run, err := f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Due)
	assert.Equal(t, 3, run.Sent)
	assert.Equal(t, 1, run.RateLimited)

	f.clock.Advance(time.Minute)
	run, err = f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReminderRun{Due: 1, Sent: 1}, run)
}

func TestReminderRunOnce_PublishFailureRetries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	due := f.create("u1", "thread_a", model.DirectionTheyOwe, t0.Add(-time.Hour))
	f.publisher.err = errors.New("pubsub down")

	run, err := f.reminder.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Failed)

	got, err := f.service.GetFollowup(ctx, due.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastReminderAt)
}
