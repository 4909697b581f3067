package repository

import (
	"context"
	"database/sql"
	"fmt"

	"velora/internal/model"
)

// DLQRepository records messages that could not be processed.
type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	db *sql.DB
}

func NewDLQRepository(db *sql.DB) DLQRepository {
	return &dlqRepository{db: db}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	query := `
        INSERT INTO dead_letter_messages (source, subscription_name, message_id, payload, attributes, reason, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRowContext(
		ctx,
		query,
		message.Source,
		message.SubscriptionName,
		message.MessageID,
		message.Payload,
		message.Attributes,
		message.Reason,
		message.Status,
	).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recording dead letter %s: %w", message.MessageID, err)
	}
	return nil
}
