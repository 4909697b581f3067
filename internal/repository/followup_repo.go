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

// FollowupRepository persists followup records.
type FollowupRepository interface {
	// Create inserts f without any dedup check and fills in f.ID.
	Create(ctx context.Context, f *model.Followup) error
	// CreateIfAbsent inserts f unless an open followup with the same user and
	// thread key exists. It returns the stored record and whether it was created.
	CreateIfAbsent(ctx context.Context, f *model.Followup) (*model.Followup, bool, error)
	Get(ctx context.Context, id string) (*model.Followup, error)
	// List returns the user's followups in the given statuses ordered by due
	// time. An empty direction matches both.
	List(ctx context.Context, userID string, statuses []model.FollowupStatus, direction model.FollowupDirection) ([]model.Followup, error)
	// Update applies the patch and returns the updated record, or ErrNotFound.
	Update(ctx context.Context, id string, patch model.FollowupPatch) (*model.Followup, error)
	Delete(ctx context.Context, id string) error
	FindOpenByThreadKey(ctx context.Context, userID, threadKey string) (*model.Followup, error)
	// ListDueForReminder returns open followups due at or before now whose last
	// reminder is absent or older than remindedBefore.
	ListDueForReminder(ctx context.Context, now, remindedBefore time.Time, limit int) ([]model.Followup, error)
}

type followupRepo struct {
	pool *pgxpool.Pool
}

func NewFollowupRepo(pool *pgxpool.Pool) FollowupRepository {
	return &followupRepo{pool: pool}
}

const followupColumns = `id, user_id, thread_key, direction, status, due_at, snooze_until, subject,
	source_message_id, snippet, participants, draft, draft_generated_at, drafts_generated,
	last_draft_at, last_reminder_at, created_at, updated_at`

const insertFollowupQ = `
	INSERT INTO followups (user_id, thread_key, direction, status, due_at, snooze_until, subject,
		source_message_id, snippet, participants, draft, draft_generated_at, drafts_generated,
		last_draft_at, last_reminder_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING id
`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanFollowup(row pgx.Row) (*model.Followup, error) {
	var (
		f                 model.Followup
		direction, status string
	)
	if err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.ThreadKey,
		&direction,
		&status,
		&f.DueAt,
		&f.SnoozeUntil,
		&f.Subject,
		&f.Source.MessageID,
		&f.Source.Snippet,
		&f.Participants,
		&f.Draft,
		&f.DraftGeneratedAt,
		&f.Analytics.DraftsGenerated,
		&f.Analytics.LastDraftAt,
		&f.LastReminderAt,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.Direction = model.FollowupDirection(direction)
	f.Status = model.FollowupStatus(status)
	return &f, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func insertFollowup(ctx context.Context, q queryRower, f *model.Followup) error {
	participants := f.Participants
	if participants == nil {
		participants = []model.Participant{}
	}
	return q.QueryRow(ctx, insertFollowupQ,
		f.UserID,
		f.ThreadKey,
		string(f.Direction),
		string(f.Status),
		f.DueAt,
		f.SnoozeUntil,
		f.Subject,
		f.Source.MessageID,
		f.Source.Snippet,
		participants,
		f.Draft,
		f.DraftGeneratedAt,
		f.Analytics.DraftsGenerated,
		f.Analytics.LastDraftAt,
		f.LastReminderAt,
		f.CreatedAt,
		f.UpdatedAt,
	).Scan(&f.ID)
}

func openStatuses() []string {
	return []string{string(model.StatusPending), string(model.StatusSnoozed)}
}

func (r *followupRepo) Create(ctx context.Context, f *model.Followup) error {
	if err := insertFollowup(ctx, r.pool, f); err != nil {
		return fmt.Errorf("inserting followup for user %s: %w", f.UserID, err)
	}
	return nil
}

// CreateIfAbsent runs the lookup and the insert in one serializable
// transaction, retrying on serialization failures.
func (r *followupRepo) CreateIfAbsent(ctx context.Context, f *model.Followup) (*model.Followup, bool, error) {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var (
			stored  *model.Followup
			created bool
		)
		stored, created, err = r.createIfAbsentTx(ctx, f)
		if err == nil {
			return stored, created, nil
		}
		if !isRetryable(err) {
			break
		}
	}
	return nil, false, fmt.Errorf("creating followup for user %s thread %s: %w", f.UserID, f.ThreadKey, err)
}

func (r *followupRepo) createIfAbsentTx(ctx context.Context, f *model.Followup) (*model.Followup, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := `SELECT ` + followupColumns + ` FROM followups
		WHERE user_id = $1 AND thread_key = $2 AND status = ANY($3)
		ORDER BY created_at
		LIMIT 1`
	existing, err := scanFollowup(tx.QueryRow(ctx, q, f.UserID, f.ThreadKey, openStatuses()))
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, false, err
	}

	if err := insertFollowup(ctx, tx, f); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	out := *f
	return &out, true, nil
}

func (r *followupRepo) Get(ctx context.Context, id string) (*model.Followup, error) {
	q := `SELECT ` + followupColumns + ` FROM followups WHERE id = $1`
	f, err := scanFollowup(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting followup %s: %w", id, err)
	}
	return f, nil
}

func (r *followupRepo) List(ctx context.Context, userID string, statuses []model.FollowupStatus, direction model.FollowupDirection) ([]model.Followup, error) {
	wanted := make([]string, 0, len(statuses))
	for _, s := range statuses {
		wanted = append(wanted, string(s))
	}
	q := `SELECT ` + followupColumns + ` FROM followups
		WHERE user_id = $1
		  AND status = ANY($2)
		  AND ($3 = '' OR direction = $3)
		ORDER BY due_at ASC`
	rows, err := r.pool.Query(ctx, q, userID, wanted, string(direction))
	if err != nil {
		return nil, fmt.Errorf("querying followups for user %s: %w", userID, err)
	}
	return collectFollowups(rows)
}

func (r *followupRepo) ListDueForReminder(ctx context.Context, now, remindedBefore time.Time, limit int) ([]model.Followup, error) {
	q := `SELECT ` + followupColumns + ` FROM followups
		WHERE status = ANY($1)
		  AND due_at <= $2
		  AND (last_reminder_at IS NULL OR last_reminder_at < $3)
		ORDER BY due_at ASC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, q, openStatuses(), now, remindedBefore, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("querying due followups: %w", err)
	}
	return collectFollowups(rows)
}

func collectFollowups(rows pgx.Rows) ([]model.Followup, error) {
	defer rows.Close()
	followups := []model.Followup{}
	for rows.Next() {
		f, err := scanFollowup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning followup row: %w", err)
		}
		followups = append(followups, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("followup rows: %w", err)
	}
	return followups, nil
}

// Update locks the row, merges the patch in Go and writes every mutable
// column back.
func (r *followupRepo) Update(ctx context.Context, id string, patch model.FollowupPatch) (*model.Followup, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting followup update: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := `SELECT ` + followupColumns + ` FROM followups WHERE id = $1 FOR UPDATE`
	f, err := scanFollowup(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading followup %s: %w", id, err)
	}
	patch.Apply(f)
	if f.Participants == nil {
		f.Participants = []model.Participant{}
	}

	const updateQ = `
		UPDATE followups SET
			direction = $2, status = $3, due_at = $4, snooze_until = $5, subject = $6,
			snippet = $7, participants = $8, draft = $9, draft_generated_at = $10,
			drafts_generated = $11, last_draft_at = $12, last_reminder_at = $13, updated_at = $14
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQ,
		id,
		string(f.Direction),
		string(f.Status),
		f.DueAt,
		f.SnoozeUntil,
		f.Subject,
		f.Source.Snippet,
		f.Participants,
		f.Draft,
		f.DraftGeneratedAt,
		f.Analytics.DraftsGenerated,
		f.Analytics.LastDraftAt,
		f.LastReminderAt,
		f.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("updating followup %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing followup %s: %w", id, err)
	}
	return f, nil
}

func (r *followupRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM followups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting followup %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *followupRepo) FindOpenByThreadKey(ctx context.Context, userID, threadKey string) (*model.Followup, error) {
	q := `SELECT ` + followupColumns + ` FROM followups
		WHERE user_id = $1 AND thread_key = $2 AND status = ANY($3)
		ORDER BY created_at
		LIMIT 1`
	f, err := scanFollowup(r.pool.QueryRow(ctx, q, userID, threadKey, openStatuses()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding followup by thread key for user %s: %w", userID, err)
	}
	return f, nil
}
