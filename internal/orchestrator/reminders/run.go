package reminders

import (
	"context"
	"time"

	"velora/internal/orchestrator"
	"velora/internal/service"

	"github.com/rs/zerolog"
)

// Run starts the reminders orchestrator.
func Run(ctx context.Context, logger zerolog.Logger, svc service.ReminderService, interval time.Duration) error {
	logger = logger.With().Str("orchestrator", "reminders").Logger()
	logger.Info().Dur("interval", interval).Msg("Starting reminders orchestrator")

	orchestrator.RunEvery(ctx, interval, logger, func(ctx context.Context) error {
		_, err := svc.RunOnce(ctx)
		return err
	})

	logger.Info().Msg("Shutting down reminders orchestrator")
	return nil
}
