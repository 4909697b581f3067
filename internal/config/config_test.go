package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.RateLimitPerHour)
	assert.Equal(t, 50, cfg.RateLimitPerDay)
	assert.Equal(t, 0.50, cfg.PriceEmailPer1000)
	assert.Equal(t, 0.00015, cfg.PriceLLMModels["gpt-4o-mini"])
	assert.Equal(t, 72*time.Hour, cfg.TheyOweDueAfter)
	assert.Equal(t, CostSinkDirect, cfg.CostSink)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.IsLocalDev())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageBackend:     BackendMemory,
			CostSink:           CostSinkDirect,
			LLMProvider:        LLMProviderOpenAI,
			RateLimitPerMinute: 3,
			RateLimitPerHour:   10,
			RateLimitPerDay:    50,
			Timezone:           "UTC",
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"postgres without dsn", func(c *Config) { c.StorageBackend = BackendPostgres }, "DB_CONNECTION_STRING"},
		{"firestore without project", func(c *Config) { c.StorageBackend = BackendFirestore }, "GCP_PROJECT_ID"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, "STORAGE_BACKEND"},
		{"queue sink without dsn", func(c *Config) { c.CostSink = CostSinkQueue }, "DB_CONNECTION_STRING"},
		{"unknown sink", func(c *Config) { c.CostSink = "kafka" }, "COST_SINK"},
		{"vertex without project", func(c *Config) { c.LLMProvider = LLMProviderVertex }, "GCP_PROJECT_ID"},
		{"zero cap", func(c *Config) { c.RateLimitPerHour = 0 }, "positive"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
