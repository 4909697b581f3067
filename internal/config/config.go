package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Cost sinks selectable through COST_SINK.
const (
	CostSinkDirect = "direct"
	CostSinkAsync  = "async"
	CostSinkQueue  = "queue"
)

// LLM providers selectable through LLM_PROVIDER.
const (
	LLMProviderOpenAI = "openai"
	LLMProviderVertex = "vertex"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Storage
	StorageBackend     string        `envconfig:"STORAGE_BACKEND" default:"postgres"`
	DBConnectionString string        `envconfig:"DB_CONNECTION_STRING"`
	GCPProjectID       string        `envconfig:"GCP_PROJECT_ID"`
	GCPCredentialsFile string        `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	RemoteCallTimeout  time.Duration `envconfig:"REMOTE_CALL_TIMEOUT" default:"5s"`
	Timezone           string        `envconfig:"TIMEZONE" default:"UTC"`

	// Rate limiting
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"3"`
	RateLimitPerHour   int    `envconfig:"RATE_LIMIT_PER_HOUR" default:"10"`
	RateLimitPerDay    int    `envconfig:"RATE_LIMIT_PER_DAY" default:"50"`
	InboundAlias       string `envconfig:"INBOUND_ALIAS" default:"radar"`

	// Pricing (USD)
	PriceEmailPer1000       float64            `envconfig:"PRICE_EMAIL_PER_1000" default:"0.50"`
	PriceLLMDefaultPer1K    float64            `envconfig:"PRICE_LLM_DEFAULT_PER_1K" default:"0.002"`
	PriceLLMModels          map[string]float64 `envconfig:"PRICE_LLM_MODELS" default:"gpt-4o-mini:0.00015,gpt-4o:0.005,gpt-3.5-turbo:0.0015"`
	PriceStoreReadsPer100K  float64            `envconfig:"PRICE_STORE_READS_PER_100K" default:"0.06"`
	PriceStoreWritesPer100K float64            `envconfig:"PRICE_STORE_WRITES_PER_100K" default:"0.18"`
	ARPU                    float64            `envconfig:"ARPU_USD" default:"9.99"`

	// Cost telemetry path
	CostSink           string `envconfig:"COST_SINK" default:"direct"`
	CostQueueName      string `envconfig:"COST_QUEUE_NAME" default:"cost_events"`
	CostAsyncBuffer    int    `envconfig:"COST_ASYNC_BUFFER" default:"1024"`
	CostPollTimeoutSec int    `envconfig:"COST_POLL_TIMEOUT_SEC" default:"30"`
	CostPollMaxMsg     int    `envconfig:"COST_POLL_MAX_MSG" default:"50"`
	CostMaxDeliveries  int    `envconfig:"COST_MAX_DELIVERIES" default:"5"`

	// Draft generation
	LLMProvider             string        `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIBaseURL           string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey            string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel             string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	VertexLocation          string        `envconfig:"VERTEX_LOCATION" default:"us-central1"`
	VertexModel             string        `envconfig:"VERTEX_MODEL" default:"gemini-2.5-flash"`
	UserKeysInSecretManager bool          `envconfig:"USER_KEYS_IN_SECRET_MANAGER" default:"false"`
	LLMTimeout              time.Duration `envconfig:"LLM_TIMEOUT" default:"20s"`

	// Pub/Sub
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubInboundTopic            string `envconfig:"PUBSUB_INBOUND_TOPIC" default:"inbound-email"`
	PubSubFollowupTopic           string `envconfig:"PUBSUB_FOLLOWUP_TOPIC" default:"followup-events"`
	PubSubReminderTopic           string `envconfig:"PUBSUB_REMINDER_TOPIC" default:"reminder-emails"`
	PubSubPushAudience            string `envconfig:"PUBSUB_PUSH_AUDIENCE"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Followup defaults
	TheyOweDueAfter time.Duration `envconfig:"THEY_OWE_DUE_AFTER" default:"72h"`
	YouOweDueAfter  time.Duration `envconfig:"YOU_OWE_DUE_AFTER" default:"24h"`

	// Orchestrators
	ReminderInterval    time.Duration `envconfig:"REMINDER_INTERVAL" default:"1m"`
	ReminderCooldown    time.Duration `envconfig:"REMINDER_COOLDOWN" default:"24h"`
	ReminderBatchSize   int           `envconfig:"REMINDER_BATCH_SIZE" default:"100"`
	CleanupInterval     time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	ReportInterval      time.Duration `envconfig:"REPORT_INTERVAL" default:"24h"`

	// Cost report export
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendPostgres:
		if c.DBConnectionString == "" {
			return fmt.Errorf("DB_CONNECTION_STRING is required for the %s backend", c.StorageBackend)
		}
	case BackendFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the %s backend", c.StorageBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.CostSink {
	case CostSinkDirect, CostSinkAsync:
	case CostSinkQueue:
		if c.DBConnectionString == "" {
			return fmt.Errorf("DB_CONNECTION_STRING is required for the %s cost sink", c.CostSink)
		}
	default:
		return fmt.Errorf("unknown COST_SINK %q", c.CostSink)
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI:
	case LLMProviderVertex:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the %s LLM provider", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.RateLimitPerMinute <= 0 || c.RateLimitPerHour <= 0 || c.RateLimitPerDay <= 0 {
		return fmt.Errorf("rate limit caps must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the calendar location used for day boundaries.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsLocalDev reports whether Pub/Sub traffic goes to the emulator.
func (c *Config) IsLocalDev() bool {
	return c.PubSubEmulatorHost != ""
}
