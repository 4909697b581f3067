package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"velora/internal/model"
	"velora/internal/repository"
)

// PushMessage is a Pub/Sub push envelope reduced to what the DLQ stores.
type PushMessage struct {
	Subscription string
	MessageID    string
	Data         string // base64
	Attributes   map[string]string
}

type DLQService interface {
	ProcessAndSave(ctx context.Context, msg PushMessage) error
	RecordQueueMessage(ctx context.Context, queue, messageID string, payload []byte, reason string) error
}

type dlqService struct {
	repo repository.DLQRepository
}

func NewDLQService(repo repository.DLQRepository) DLQService {
	return &dlqService{repo: repo}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, msg PushMessage) error {
	decodedPayload, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		// keep the raw data when it is not base64
		decodedPayload = []byte(msg.Data)
	}

	var attributesJSON *string
	if len(msg.Attributes) > 0 {
		if attrBytes, err := json.Marshal(msg.Attributes); err == nil {
			attrStr := string(attrBytes)
			attributesJSON = &attrStr
		}
	}

	return s.repo.Create(ctx, &model.DeadLetterMessage{
		Source:           model.DeadLetterSourcePubSub,
		SubscriptionName: msg.Subscription,
		MessageID:        msg.MessageID,
		Payload:          string(decodedPayload),
		Attributes:       attributesJSON,
		Status:           "unprocessed",
	})
}

// RecordQueueMessage stores a pgmq message the consumer gave up on.
func (s *dlqService) RecordQueueMessage(ctx context.Context, queue, messageID string, payload []byte, reason string) error {
	return s.repo.Create(ctx, &model.DeadLetterMessage{
		Source:           model.DeadLetterSourceCostQueue,
		SubscriptionName: queue,
		MessageID:        messageID,
		Payload:          string(payload),
		Reason:           reason,
		Status:           "unprocessed",
	})
}
