package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"velora/internal/bootstrap"
	"velora/internal/config"
	"velora/internal/logger"
	"velora/internal/orchestrator/cleanup"
	"velora/internal/orchestrator/costs"
	"velora/internal/orchestrator/reminders"
	"velora/internal/orchestrator/report"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: costs|reminders|cleanup|report")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, "postgres", logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize orchestrator: %v", err)
	}
	defer app.Close()

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "costs":
		if app.Queue == nil {
			logger.Fatal().Msg("costs orchestrator needs DB_CONNECTION_STRING")
		}
		consumer := costs.NewConsumer(app.Queue, app.Stores.Costs, app.DLQ, costs.Options{
			QueueName:      cfg.CostQueueName,
			PollTimeoutSec: cfg.CostPollTimeoutSec,
			PollMaxMsg:     cfg.CostPollMaxMsg,
			MaxDeliveries:  cfg.CostMaxDeliveries,
		}, logger)
		runErr = consumer.Run(ctx)
	case "reminders":
		runErr = reminders.Run(ctx, logger, app.Reminders, cfg.ReminderInterval)
	case "cleanup":
		runErr = cleanup.Run(ctx, logger, app.Stores.RateLimits, app.Clock, cfg.CleanupInterval)
	case "report":
		exporter, err := app.ReportExporter(ctx)
		if err != nil {
			logger.Fatal().Msgf("Failed to build report exporter: %v", err)
		}
		runErr = report.Run(ctx, logger, exporter, app.Clock, cfg.ReportInterval)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
