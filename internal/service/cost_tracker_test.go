package service

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

func TestPricing_LLMPricePer1K(t *testing.T) {
	tests := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.00015},
		{"GPT-4o", 0.005},
		{"gpt-4o-mini-2024-07-18", 0.00015},
		{"gpt-4o-2024-08-06", 0.005},
		{"claude-haiku", 0.002},
		{"", 0.002},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, testPricing.LLMPricePer1K(tt.model))
		})
	}
}

func TestTrackEmail_ThousandEmails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		f.tracker.TrackEmail(ctx, "u1", "reminder")
	}

	rec, err := f.reports.GetDailyCost(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, rec.EmailsSent)
	assert.InDelta(t, 0.50, rec.EmailCostUSD, 1e-9)
	assert.InDelta(t, 0.50, rec.TotalCostUSD, 1e-9)
}

func TestTracker_TotalIsSumOfCategories(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.tracker.TrackEmail(ctx, "u1", "inbound")
	f.tracker.TrackLLM(ctx, "u1", 2000, "gpt-4o")
	f.tracker.TrackFirestore(ctx, "u1", 1000, 500)
	f.tracker.TrackLLM(ctx, "u1", 0, "gpt-4o")

	rec, err := f.reports.GetDailyCost(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.0005, rec.EmailCostUSD, 1e-12)
	assert.InDelta(t, 0.01, rec.LLMCostUSD, 1e-12)
	assert.InDelta(t, 0.0006+0.0009, rec.FirestoreCostUSD, 1e-12)
	assert.InDelta(t, rec.EmailCostUSD+rec.LLMCostUSD+rec.FirestoreCostUSD, rec.TotalCostUSD, 1e-12)
	assert.EqualValues(t, 2000, rec.TokensUsed)
	assert.EqualValues(t, 1000, rec.FirestoreReads)
	assert.EqualValues(t, 500, rec.FirestoreWrites)
}

func TestTracker_DayKeyFollowsClock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.tracker.TrackEmail(ctx, "u1", "inbound")
	f.clock.Advance(24 * time.Hour)
	f.tracker.TrackEmail(ctx, "u1", "inbound")

	yesterday, err := f.costs.Get(ctx, "u1", "20250310")
	require.NoError(t, err)
	require.NotNil(t, yesterday)
	assert.EqualValues(t, 1, yesterday.EmailsSent)

	today, err := f.reports.GetDailyCost(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "20250311", today.DayKey)
	assert.EqualValues(t, 1, today.EmailsSent)
}

func TestTracker_SinkErrorsAreSwallowed(t *testing.T) {
	tracker := NewCostTracker(NewDirectCostSink(failingCostRepo{}, time.Second), testPricing, time.UTC, clock.NewMock(t0), zerolog.Nop())

	assert.NotPanics(t, func() {
		tracker.TrackEmail(context.Background(), "u1", "inbound")
		tracker.TrackLLM(context.Background(), "u1", 100, "gpt-4o-mini")
		tracker.TrackFirestore(context.Background(), "u1", 1, 1)
	})
}

func TestTracker_NilSinkDropsDeltas(t *testing.T) {
	tracker := NewCostTracker(nil, testPricing, time.UTC, clock.NewMock(t0), zerolog.Nop())

	assert.NotPanics(t, func() {
		tracker.TrackEmail(context.Background(), "u1", "inbound")
	})
}

func TestAsyncCostSink_DrainsOnClose(t *testing.T) {
	costs := memory.NewCostStore()
	sink := NewAsyncCostSink(costs, 64, time.Second, zerolog.Nop())
	tracker := NewCostTracker(sink, testPricing, time.UTC, clock.NewMock(t0), zerolog.Nop())

	for i := 0; i < 20; i++ {
		tracker.TrackEmail(context.Background(), "u1", "inbound")
	}
	require.NoError(t, sink.Close())

	rec, err := costs.Get(context.Background(), "u1", "20250310")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, 20, rec.EmailsSent)

	err = sink.Record(context.Background(), model.CostDelta{UserID: "u1", DayKey: "20250310"})
	assert.ErrorIs(t, err, ErrCostSinkClosed)
	assert.NoError(t, sink.Close())
}

type recordingJSONQueue struct {
	queue string
	sent  []any
}

func (q *recordingJSONQueue) SendJSON(_ context.Context, queue string, v any) error {
	q.queue = queue
	q.sent = append(q.sent, v)
	return nil
}

func TestQueueCostSink_SendsDelta(t *testing.T) {
	q := &recordingJSONQueue{}
	tracker := NewCostTracker(NewQueueCostSink(q, "cost_events", time.Second), testPricing, time.UTC, clock.NewMock(t0), zerolog.Nop())

	tracker.TrackLLM(context.Background(), "u1", 1000, "gpt-4o-mini")

	require.Len(t, q.sent, 1)
	assert.Equal(t, "cost_events", q.queue)
	d, ok := q.sent[0].(model.CostDelta)
	require.True(t, ok)
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, "20250310", d.DayKey)
	assert.EqualValues(t, 1000, d.TokensUsed)
	assert.InDelta(t, 0.00015, d.LLMCostUSD, 1e-12)
}

func TestEstimateMonthly(t *testing.T) {
	tests := []struct {
		name   string
		daily  float64
		arpu   float64
		health model.CostHealth
	}{
		{"healthy", 0.05, 9.99, model.HealthHealthy},
		{"warning", 0.12, 9.99, model.HealthWarning},
		{"critical", 0.20, 9.99, model.HealthCritical},
		{"no revenue with cost", 0.01, 0, model.HealthCritical},
		{"no revenue no cost", 0, 0, model.HealthHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := EstimateMonthly(tt.daily, tt.arpu)
			assert.InDelta(t, tt.daily*30, e.MonthlyCostUSD, 1e-12)
			assert.Equal(t, tt.health, e.Health)
		})
	}
}

func TestCostReports_BreakdownAndSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create("u1", "thread_a", model.DirectionTheyOwe, t0.Add(time.Hour))
	f.create("u1", "thread_b", model.DirectionYouOwe, t0.Add(48*time.Hour))
	f.tracker.TrackLLM(ctx, "u1", 1000, "unknown-model")

	b, err := f.reports.GetCostBreakdown(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 100, b.EmailPercent+b.LLMPercent+b.FirestorePercent, 1e-9)
	assert.Greater(t, b.LLMPercent, b.FirestorePercent)

	summary, err := f.reports.GetUserCostSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActiveFollowups)
	assert.InDelta(t, summary.Today.TotalCostUSD/2, summary.CostPerActiveFollowupUSD, 1e-12)
	assert.Equal(t, model.HealthHealthy, summary.Monthly.Health)
}

func TestCostReports_EmptyDay(t *testing.T) {
	f := newFixture()

	b, err := f.reports.GetCostBreakdown(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, b.TotalCostUSD)
	assert.Zero(t, b.EmailPercent)

	summary, err := f.reports.GetUserCostSummary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, summary.ActiveFollowups)
	assert.Zero(t, summary.CostPerActiveFollowupUSD)
}

func TestCostReports_DayReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.tracker.TrackEmail(ctx, "u1", "inbound")
	f.tracker.TrackEmail(ctx, "u2", "inbound")
	f.tracker.TrackEmail(ctx, "u2", "reminder")

	report, err := f.reports.GetDayReport(ctx, "20250310")
	require.NoError(t, err)
	assert.Equal(t, 2, report.UserCount)
	assert.EqualValues(t, 3, report.Totals.EmailsSent)
	assert.InDelta(t, 0.0015, report.Totals.TotalCostUSD, 1e-12)

	empty, err := f.reports.GetDayReport(ctx, "20250101")
	require.NoError(t, err)
	assert.Zero(t, empty.UserCount)
	assert.NotNil(t, empty.Users)
}
