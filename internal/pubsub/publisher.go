package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"velora/internal/config"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Event types published by the followup pipeline.
const (
	EventFollowupCreated = "followup.created"
	EventReminderDue     = "followup.reminder_due"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error)
}

// Event is the JSON envelope every published message carries.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	FollowupID string    `json:"followup_id"`
	ThreadKey  string    `json:"thread_key,omitempty"`
	Direction  string    `json:"direction,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	DueAt      time.Time `json:"due_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PublishEvent marshals the event and publishes it with its type and user as
// attributes, so subscriptions can filter on them.
func PublishEvent(ctx context.Context, p Publisher, topic string, e Event) (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return p.Publish(ctx, topic, payload, map[string]string{
		"type":    e.Type,
		"user_id": e.UserID,
	})
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
// PUBSUB_EMULATOR_HOST is honoured by the client library.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher writes events to the log instead of a topic. Used when no GCP
// project is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "LogPublisher").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	p.logger.Info().
		Str("topic", topic).
		Interface("attributes", attrs).
		RawJSON("payload", payload).
		Msg("Event published")
	return "", nil
}
