package report

import (
	"context"
	"time"

	"velora/internal/clock"
	"velora/internal/orchestrator"
	"velora/internal/service"

	"github.com/rs/zerolog"
)

// Run starts the report orchestrator. Each pass exports the previous day,
// which is complete by then.
func Run(ctx context.Context, logger zerolog.Logger, exporter service.ReportExporter, clk clock.Clock, interval time.Duration) error {
	logger = logger.With().Str("orchestrator", "report").Logger()
	logger.Info().Dur("interval", interval).Msg("Starting report orchestrator")

	orchestrator.RunEvery(ctx, interval, logger, func(ctx context.Context) error {
		_, err := exporter.ExportDay(ctx, clk.Now().AddDate(0, 0, -1))
		return err
	})

	logger.Info().Msg("Shutting down report orchestrator")
	return nil
}
