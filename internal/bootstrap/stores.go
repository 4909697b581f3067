// Package bootstrap wires configuration into stores, clients and services
// shared by the API server and the orchestrators.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"velora/internal/config"
	"velora/internal/repository"
	fsstore "velora/internal/repository/firestore"
	"velora/internal/repository/memory"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Stores bundles the repositories of the selected storage backend.
type Stores struct {
	Followups  repository.FollowupRepository
	RateLimits repository.RateLimitRepository
	Costs      repository.CostRepository
	DLQ        repository.DLQRepository

	closers []func()
}

// Close releases backend connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores connects to the backend named by STORAGE_BACKEND. db backs the
// Postgres dead-letter table and may be nil for the other backends.
func OpenStores(ctx context.Context, cfg *config.Config, db *sql.DB, logger zerolog.Logger) (*Stores, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := OpenPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if db == nil {
			pool.Close()
			return nil, fmt.Errorf("postgres backend needs a database/sql handle for dead letters")
		}
		logger.Info().Msg("Using Postgres stores")
		return &Stores{
			Followups:  repository.NewFollowupRepo(pool),
			RateLimits: repository.NewRateLimitRepo(pool),
			Costs:      repository.NewCostRepo(pool),
			DLQ:        repository.NewDLQRepository(db),
			closers:    []func(){pool.Close},
		}, nil

	case config.BackendFirestore:
		client, err := fsstore.NewClient(ctx, cfg.GCPProjectID, cfg.GCPCredentialsFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("project", cfg.GCPProjectID).Msg("Using Firestore stores")
		return &Stores{
			Followups:  fsstore.NewFollowupStore(client),
			RateLimits: fsstore.NewRateLimitStore(client),
			Costs:      fsstore.NewCostStore(client),
			DLQ:        fsstore.NewDLQStore(client),
			closers:    []func(){func() { _ = client.Close() }},
		}, nil

	case config.BackendMemory:
		logger.Warn().Msg("Using in-memory stores; data is lost on restart")
		return &Stores{
			Followups:  memory.NewFollowupStore(),
			RateLimits: memory.NewRateLimitStore(),
			Costs:      memory.NewCostStore(),
			DLQ:        memory.NewDLQStore(),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// OpenPool opens the pgx pool used by the Postgres repositories. Outside
// development the simple protocol is used so transaction poolers such as
// pgbouncer do not trip over server-side prepared statements.
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(withSSLMode(cfg, cfg.DBConnectionString))
	if err != nil {
		return nil, fmt.Errorf("parsing DB_CONNECTION_STRING: %w", err)
	}
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// OpenSQL opens a database/sql handle with the given driver ("pgx" or
// "postgres"). It returns nil when no DSN is configured.
func OpenSQL(ctx context.Context, cfg *config.Config, driver string) (*sql.DB, error) {
	if cfg.DBConnectionString == "" {
		return nil, nil
	}
	dsn := withSSLMode(cfg, cfg.DBConnectionString)
	if driver == "pgx" && cfg.Environment != "development" && !strings.Contains(dsn, "prefer_simple_protocol") {
		dsn = appendParam(dsn, "prefer_simple_protocol=true")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening DB connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging DB: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// withSSLMode disables SSL for local development unless the DSN says otherwise.
func withSSLMode(cfg *config.Config, dsn string) string {
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		return appendParam(dsn, "sslmode=disable")
	}
	return dsn
}

func appendParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}
