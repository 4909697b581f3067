package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository stores fixed-window action counters.
type RateLimitRepository interface {
	// Increment atomically adds one to each window's counter, creating it on
	// first use, and returns the post-increment counts in window order.
	Increment(ctx context.Context, userID string, windows []model.WindowKey) ([]int64, error)
	// GetCount returns the window's count, or zero when it does not exist.
	GetCount(ctx context.Context, userID string, window model.WindowKey) (int64, error)
	// DeleteExpired removes counters whose window ended before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type rateLimitRepo struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepo(pool *pgxpool.Pool) RateLimitRepository {
	return &rateLimitRepo{pool: pool}
}

func (r *rateLimitRepo) Increment(ctx context.Context, userID string, windows []model.WindowKey) ([]int64, error) {
	const q = `
		INSERT INTO rate_limit_counters (user_id, granularity, window_index, count, expires_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, granularity, window_index)
		DO UPDATE SET count = rate_limit_counters.count + 1
		RETURNING count
	`
	batch := &pgx.Batch{}
	for _, w := range windows {
		batch.Queue(q, userID, string(w.Granularity), w.Index, w.End())
	}
	br := r.pool.SendBatch(ctx, batch)
	defer func() {
		_ = br.Close()
	}()

	counts := make([]int64, len(windows))
	for i, w := range windows {
		if err := br.QueryRow().Scan(&counts[i]); err != nil {
			return nil, fmt.Errorf("incrementing %s counter for user %s: %w", w.Granularity, userID, err)
		}
	}
	return counts, nil
}

func (r *rateLimitRepo) GetCount(ctx context.Context, userID string, window model.WindowKey) (int64, error) {
	const q = `
		SELECT count FROM rate_limit_counters
		WHERE user_id = $1 AND granularity = $2 AND window_index = $3
	`
	var count int64
	if err := r.pool.QueryRow(ctx, q, userID, string(window.Granularity), window.Index).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s counter for user %s: %w", window.Granularity, userID, err)
	}
	return count, nil
}

func (r *rateLimitRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rate_limit_counters WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting expired counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
