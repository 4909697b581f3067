package service

import (
	"context"

	"velora/internal/clock"
	"velora/internal/pubsub"

	"github.com/rs/zerolog"
)

// ReminderRun summarises one pass of the reminder scheduler.
type ReminderRun struct {
	Due         int
	Sent        int
	RateLimited int
	Failed      int
}

// ReminderService publishes reminder events for overdue followups.
type ReminderService interface {
	RunOnce(ctx context.Context) (ReminderRun, error)
}

type reminderService struct {
	followups FollowupService
	limiter   RateLimiter
	costs     CostTracker
	publisher pubsub.Publisher
	topic     string
	batchSize int
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewReminderService(
	followups FollowupService,
	limiter RateLimiter,
	costs CostTracker,
	publisher pubsub.Publisher,
	topic string,
	batchSize int,
	clk clock.Clock,
	logger zerolog.Logger,
) ReminderService {
	if costs == nil {
		costs = noopCostTracker{}
	}
	return &reminderService{
		followups: followups,
		limiter:   limiter,
		costs:     costs,
		publisher: publisher,
		topic:     topic,
		batchSize: batchSize,
		clock:     clk,
		logger:    logger.With().Str("service", "ReminderService").Logger(),
	}
}

// RunOnce sends at most one reminder per due followup. A followup is marked
// reminded only after its event is published, so failures retry next pass.
func (s *reminderService) RunOnce(ctx context.Context) (ReminderRun, error) {
	var run ReminderRun
	due, err := s.followups.ListDueForReminder(ctx, s.batchSize)
	if err != nil {
		return run, err
	}
	run.Due = len(due)

	for _, f := range due {
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		log := s.logger.With().Str("user_id", f.UserID).Str("followup_id", f.ID).Logger()

		limit := s.limiter.CheckRateLimit(ctx, f.UserID, ActionReminderEmail)
		if !limit.Allowed {
			run.RateLimited++
			log.Info().Int("retry_after", limit.RetryAfter).Msg("Reminder rate limited")
			continue
		}

		_, err := pubsub.PublishEvent(ctx, s.publisher, s.topic, pubsub.Event{
			Type:       pubsub.EventReminderDue,
			UserID:     f.UserID,
			FollowupID: f.ID,
			ThreadKey:  f.ThreadKey,
			Direction:  string(f.Direction),
			Subject:    f.Subject,
			DueAt:      f.DueAt,
			OccurredAt: s.clock.Now(),
		})
		if err != nil {
			run.Failed++
			log.Error().Err(err).Msg("Failed to publish reminder")
			continue
		}
		if err := s.followups.MarkReminded(ctx, f.ID); err != nil {
			run.Failed++
			log.Error().Err(err).Msg("Failed to mark followup reminded")
			continue
		}
		s.costs.TrackEmail(ctx, f.UserID, "reminder")
		run.Sent++
	}

	if run.Due > 0 {
		s.logger.Info().
			Int("due", run.Due).
			Int("sent", run.Sent).
			Int("rate_limited", run.RateLimited).
			Int("failed", run.Failed).
			Msg("Reminder pass finished")
	}
	return run, nil
}
