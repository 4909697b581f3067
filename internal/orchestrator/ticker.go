// Package orchestrator holds the background workers run by cmd/orchestrator.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunEvery calls fn immediately and then on every tick until ctx is done.
// Errors are logged and do not stop the loop.
func RunEvery(ctx context.Context, interval time.Duration, logger zerolog.Logger, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Scheduled run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
