package firestore

import (
	"context"
	"fmt"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"cloud.google.com/go/firestore"
)

type deadLetterDoc struct {
	Source           string    `firestore:"source"`
	SubscriptionName string    `firestore:"subscription_name"`
	MessageID        string    `firestore:"message_id"`
	Payload          string    `firestore:"payload"`
	Attributes       *string   `firestore:"attributes"`
	Reason           string    `firestore:"reason"`
	Status           string    `firestore:"status"`
	CreatedAt        time.Time `firestore:"created_at"`
	UpdatedAt        time.Time `firestore:"updated_at"`
}

type DLQStore struct {
	client *firestore.Client
}

func NewDLQStore(client *firestore.Client) *DLQStore {
	return &DLQStore{client: client}
}

var _ repository.DLQRepository = (*DLQStore)(nil)

func (s *DLQStore) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	now := time.Now().UTC()
	ref := s.client.Collection(deadLettersCollection).NewDoc()
	doc := deadLetterDoc{
		Source:           message.Source,
		SubscriptionName: message.SubscriptionName,
		MessageID:        message.MessageID,
		Payload:          message.Payload,
		Attributes:       message.Attributes,
		Reason:           message.Reason,
		Status:           message.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore CreateDeadLetter: %w", err)
	}
	message.ID = ref.ID
	message.CreatedAt = now
	message.UpdatedAt = now
	return nil
}
