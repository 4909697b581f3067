package model

import "time"

// Dead letter sources.
const (
	DeadLetterSourcePubSub    = "pubsub"
	DeadLetterSourceCostQueue = "cost_queue"
)

// DeadLetterMessage is a message that exhausted delivery or could not be
// decoded, kept for manual inspection.
type DeadLetterMessage struct {
	ID               string    `db:"id"`
	Source           string    `db:"source"`
	SubscriptionName string    `db:"subscription_name"`
	MessageID        string    `db:"message_id"`
	Payload          string    `db:"payload"`    // JSON or raw text
	Attributes       *string   `db:"attributes"` // JSON object, nullable
	Reason           string    `db:"reason"`
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
