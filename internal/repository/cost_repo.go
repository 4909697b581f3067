package repository

import (
	"context"
	"errors"
	"fmt"

	"velora/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CostRepository accumulates per-user daily cost records.
type CostRepository interface {
	// Add folds the delta into the (user, day) record in one atomic write. The
	// total is always incremented by the sum of the category costs.
	Add(ctx context.Context, d model.CostDelta) error
	Get(ctx context.Context, userID, dayKey string) (*model.UserCostRecord, error)
	ListByDay(ctx context.Context, dayKey string) ([]model.UserCostRecord, error)
}

type costRepo struct {
	pool *pgxpool.Pool
}

func NewCostRepo(pool *pgxpool.Pool) CostRepository {
	return &costRepo{pool: pool}
}

const costColumns = `user_id, day_key, emails_sent, email_cost_usd, tokens_used, llm_cost_usd,
	firestore_reads, firestore_writes, firestore_cost_usd, total_cost_usd, last_updated`

func (r *costRepo) Add(ctx context.Context, d model.CostDelta) error {
	const q = `
		INSERT INTO user_costs (` + costColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, day_key) DO UPDATE SET
			emails_sent        = user_costs.emails_sent + EXCLUDED.emails_sent,
			email_cost_usd     = user_costs.email_cost_usd + EXCLUDED.email_cost_usd,
			tokens_used        = user_costs.tokens_used + EXCLUDED.tokens_used,
			llm_cost_usd       = user_costs.llm_cost_usd + EXCLUDED.llm_cost_usd,
			firestore_reads    = user_costs.firestore_reads + EXCLUDED.firestore_reads,
			firestore_writes   = user_costs.firestore_writes + EXCLUDED.firestore_writes,
			firestore_cost_usd = user_costs.firestore_cost_usd + EXCLUDED.firestore_cost_usd,
			total_cost_usd     = user_costs.total_cost_usd + EXCLUDED.total_cost_usd,
			last_updated       = GREATEST(user_costs.last_updated, EXCLUDED.last_updated)
	`
	_, err := r.pool.Exec(ctx, q,
		d.UserID,
		d.DayKey,
		d.EmailsSent,
		d.EmailCostUSD,
		d.TokensUsed,
		d.LLMCostUSD,
		d.FirestoreReads,
		d.FirestoreWrites,
		d.FirestoreCostUSD,
		d.TotalCostUSD(),
		d.At,
	)
	if err != nil {
		return fmt.Errorf("adding cost for user %s day %s: %w", d.UserID, d.DayKey, err)
	}
	return nil
}

func scanCost(row pgx.Row) (*model.UserCostRecord, error) {
	var c model.UserCostRecord
	if err := row.Scan(
		&c.UserID,
		&c.DayKey,
		&c.EmailsSent,
		&c.EmailCostUSD,
		&c.TokensUsed,
		&c.LLMCostUSD,
		&c.FirestoreReads,
		&c.FirestoreWrites,
		&c.FirestoreCostUSD,
		&c.TotalCostUSD,
		&c.LastUpdated,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *costRepo) Get(ctx context.Context, userID, dayKey string) (*model.UserCostRecord, error) {
	q := `SELECT ` + costColumns + ` FROM user_costs WHERE user_id = $1 AND day_key = $2`
	c, err := scanCost(r.pool.QueryRow(ctx, q, userID, dayKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cost for user %s day %s: %w", userID, dayKey, err)
	}
	return c, nil
}

func (r *costRepo) ListByDay(ctx context.Context, dayKey string) ([]model.UserCostRecord, error) {
	q := `SELECT ` + costColumns + ` FROM user_costs WHERE day_key = $1 ORDER BY user_id`
	rows, err := r.pool.Query(ctx, q, dayKey)
	if err != nil {
		return nil, fmt.Errorf("querying costs for day %s: %w", dayKey, err)
	}
	defer rows.Close()

	records := []model.UserCostRecord{}
	for rows.Next() {
		c, err := scanCost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cost row: %w", err)
		}
		records = append(records, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cost rows: %w", err)
	}
	return records, nil
}
