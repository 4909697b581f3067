package service

import (
	"context"
	"time"

	"velora/internal/clock"
	"velora/internal/model"

	"github.com/rs/zerolog"
)

// CostTracker turns usage events into cost deltas. Tracking is best effort:
// failures are logged and never returned to the caller.
type CostTracker interface {
	TrackEmail(ctx context.Context, userID, emailType string)
	TrackLLM(ctx context.Context, userID string, tokens int64, model string)
	TrackFirestore(ctx context.Context, userID string, reads, writes int64)
}

type costTracker struct {
	sink    CostSink
	pricing Pricing
	loc     *time.Location
	clock   clock.Clock
	logger  zerolog.Logger
}

func NewCostTracker(sink CostSink, pricing Pricing, loc *time.Location, clk clock.Clock, logger zerolog.Logger) CostTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &costTracker{
		sink:    sink,
		pricing: pricing,
		loc:     loc,
		clock:   clk,
		logger:  logger.With().Str("service", "CostTracker").Logger(),
	}
}

func (t *costTracker) delta(userID string) model.CostDelta {
	now := t.clock.Now()
	return model.CostDelta{UserID: userID, DayKey: model.DayKey(now, t.loc), At: now}
}

func (t *costTracker) record(ctx context.Context, d model.CostDelta, kind string) {
	if d.UserID == "" {
		return
	}
	if t.sink == nil {
		t.logger.Debug().Str("user_id", d.UserID).Str("kind", kind).Msg("No cost sink configured, dropping delta")
		return
	}
	if err := t.sink.Record(ctx, d); err != nil {
		t.logger.Warn().Err(err).Str("user_id", d.UserID).Str("kind", kind).Msg("Failed to track cost")
	}
}

func (t *costTracker) TrackEmail(ctx context.Context, userID, emailType string) {
	d := t.delta(userID)
	d.EmailsSent = 1
	d.EmailCostUSD = t.pricing.EmailCost(1)
	t.record(ctx, d, "email:"+emailType)
}

func (t *costTracker) TrackLLM(ctx context.Context, userID string, tokens int64, model string) {
	if tokens <= 0 {
		return
	}
	d := t.delta(userID)
	d.TokensUsed = tokens
	d.LLMCostUSD = t.pricing.LLMCost(tokens, model)
	t.record(ctx, d, "llm:"+model)
}

func (t *costTracker) TrackFirestore(ctx context.Context, userID string, reads, writes int64) {
	if reads <= 0 && writes <= 0 {
		return
	}
	d := t.delta(userID)
	d.FirestoreReads = reads
	d.FirestoreWrites = writes
	d.FirestoreCostUSD = t.pricing.StoreCost(reads, writes)
	t.record(ctx, d, "store")
}

type noopCostTracker struct{}

func (noopCostTracker) TrackEmail(context.Context, string, string) {}

func (noopCostTracker) TrackLLM(context.Context, string, int64, string) {}

func (noopCostTracker) TrackFirestore(context.Context, string, int64, int64) {}
