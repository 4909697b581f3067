package service

import (
	"context"
	"encoding/base64"
	"testing"

	"velora/internal/model"
	"velora/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAndSave(t *testing.T) {
	store := memory.NewDLQStore()
	svc := NewDLQService(store)

	err := svc.ProcessAndSave(context.Background(), PushMessage{
		Subscription: "projects/p/subscriptions/inbound-email-dlq-push",
		MessageID:    "42",
		Data:         base64.StdEncoding.EncodeToString([]byte(`{"message_id":"<m1@mail>"}`)),
		Attributes:   map[string]string{"type": "inbound"},
	})
	require.NoError(t, err)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DeadLetterSourcePubSub, msgs[0].Source)
	assert.Equal(t, `{"message_id":"<m1@mail>"}`, msgs[0].Payload)
	require.NotNil(t, msgs[0].Attributes)
	assert.JSONEq(t, `{"type":"inbound"}`, *msgs[0].Attributes)
}

func TestProcessAndSave_KeepsRawData(t *testing.T) {
	store := memory.NewDLQStore()
	svc := NewDLQService(store)

	require.NoError(t, svc.ProcessAndSave(context.Background(), PushMessage{MessageID: "1", Data: "not base64!"}))

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "not base64!", msgs[0].Payload)
	assert.Nil(t, msgs[0].Attributes)
}

func TestRecordQueueMessage(t *testing.T) {
	store := memory.NewDLQStore()
	svc := NewDLQService(store)

	require.NoError(t, svc.RecordQueueMessage(context.Background(), "cost_events", "7", []byte("{"), "undecodable"))

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DeadLetterSourceCostQueue, msgs[0].Source)
	assert.Equal(t, "cost_events", msgs[0].SubscriptionName)
	assert.Equal(t, "undecodable", msgs[0].Reason)
}
