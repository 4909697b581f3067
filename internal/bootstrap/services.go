package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"velora/internal/clock"
	"velora/internal/config"
	"velora/internal/llm"
	"velora/internal/pgmq"
	"velora/internal/pubsub"
	"velora/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// App holds every long-lived dependency of a process.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Clock  clock.Clock

	DB        *sql.DB
	Queue     *pgmq.Client
	Stores    *Stores
	Publisher pubsub.Publisher
	CostSink  service.CostSink

	RateLimiter service.RateLimiter
	Costs       service.CostTracker
	CostReports service.CostReportService
	Followups   service.FollowupService
	Ingestion   service.IngestionService
	Reminders   service.ReminderService
	APIKeys     service.APIKeyService
	DLQ         service.DLQService

	closers []func() error
}

// New opens stores and clients and builds the service graph. driver is the
// database/sql driver name used for the dead-letter table and pgmq.
func New(ctx context.Context, cfg *config.Config, driver string, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Clock: clock.System()}
	if err := a.init(ctx, driver); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, driver string) error {
	cfg, logger := a.Config, a.Logger

	db, err := OpenSQL(ctx, cfg, driver)
	if err != nil {
		return err
	}
	if db != nil {
		a.DB = db
		a.Queue = pgmq.New(db)
		a.closers = append(a.closers, db.Close)
		logger.Info().Msg("Database connection established")
	}

	stores, err := OpenStores(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	a.Stores = stores
	a.closers = append(a.closers, func() error { stores.Close(); return nil })

	publisher, closePublisher, err := NewPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.Publisher = publisher
	a.closers = append(a.closers, closePublisher)

	sink, err := a.newCostSink()
	if err != nil {
		return err
	}
	a.CostSink = sink
	// the sink closes before the stores it drains into
	a.closers = append(a.closers, sink.Close)

	var secrets service.SecretManagerService
	if cfg.UserKeysInSecretManager {
		secrets, err = service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			return err
		}
	}
	llmClient, err := NewLLMClient(ctx, cfg)
	if err != nil {
		return err
	}

	loc := cfg.Location()
	defaults := service.FollowupDefaults{
		TheyOweDueAfter:  cfg.TheyOweDueAfter,
		YouOweDueAfter:   cfg.YouOweDueAfter,
		ReminderCooldown: cfg.ReminderCooldown,
	}

	a.RateLimiter = service.NewRateLimiter(stores.RateLimits, service.RateLimitsFromConfig(cfg), cfg.InboundAlias, cfg.RemoteCallTimeout, a.Clock, logger)
	a.Costs = service.NewCostTracker(sink, service.PricingFromConfig(cfg), loc, a.Clock, logger)
	drafts := service.NewDraftGenerator(llmClient, secrets, cfg.LLMTimeout, logger)
	a.Followups = service.NewFollowupService(stores.Followups, drafts, a.Costs, publisher, cfg.PubSubFollowupTopic, defaults, loc, a.Clock, logger)
	a.CostReports = service.NewCostReportService(stores.Costs, a.Followups, cfg.ARPU, loc, a.Clock, logger)
	a.Ingestion = service.NewIngestionService(a.Followups, a.RateLimiter, a.Costs, validator.New(validator.WithRequiredStructEnabled()), cfg.InboundAlias, defaults, a.Clock, logger)
	a.Reminders = service.NewReminderService(a.Followups, a.RateLimiter, a.Costs, publisher, cfg.PubSubReminderTopic, cfg.ReminderBatchSize, a.Clock, logger)
	a.APIKeys = service.NewAPIKeyService(secrets, llm.NewOpenAIClient(cfg.OpenAIBaseURL, "", cfg.OpenAIModel), logger)
	a.DLQ = service.NewDLQService(stores.DLQ)
	return nil
}

func (a *App) newCostSink() (service.CostSink, error) {
	cfg := a.Config
	switch cfg.CostSink {
	case config.CostSinkDirect:
		return service.NewDirectCostSink(a.Stores.Costs, cfg.RemoteCallTimeout), nil
	case config.CostSinkAsync:
		return service.NewAsyncCostSink(a.Stores.Costs, cfg.CostAsyncBuffer, cfg.RemoteCallTimeout, a.Logger), nil
	case config.CostSinkQueue:
		if a.Queue == nil {
			return nil, fmt.Errorf("cost sink %q needs DB_CONNECTION_STRING", cfg.CostSink)
		}
		return service.NewQueueCostSink(a.Queue, cfg.CostQueueName, cfg.RemoteCallTimeout), nil
	}
	return nil, fmt.Errorf("unknown cost sink %q", cfg.CostSink)
}

// ReportExporter builds the S3 exporter used by the report orchestrator.
func (a *App) ReportExporter(ctx context.Context) (service.ReportExporter, error) {
	if a.Config.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for cost reports")
	}
	client, err := NewS3Client(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	return service.NewReportExporter(a.CostReports, client, a.Config.S3Bucket, a.Config.Location(), a.Logger), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}
