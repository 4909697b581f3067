package cleanup

import (
	"context"
	"time"

	"velora/internal/clock"
	"velora/internal/orchestrator"
	"velora/internal/repository"

	"github.com/rs/zerolog"
)

// Run starts the cleanup orchestrator, which drops rate limit counters whose
// window has ended.
func Run(ctx context.Context, logger zerolog.Logger, repo repository.RateLimitRepository, clk clock.Clock, interval time.Duration) error {
	logger = logger.With().Str("orchestrator", "cleanup").Logger()
	logger.Info().Dur("interval", interval).Msg("Starting cleanup orchestrator")

	orchestrator.RunEvery(ctx, interval, logger, func(ctx context.Context) error {
		return Once(ctx, logger, repo, clk)
	})

	logger.Info().Msg("Shutting down cleanup orchestrator")
	return nil
}

// Once deletes every counter that expired before now.
func Once(ctx context.Context, logger zerolog.Logger, repo repository.RateLimitRepository, clk clock.Clock) error {
	n, err := repo.DeleteExpired(ctx, clk.Now())
	if n > 0 {
		logger.Info().Int64("deleted", n).Msg("Expired rate limit counters deleted")
	}
	return err
}
