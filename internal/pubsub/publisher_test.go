package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"velora/internal/config"

	ps "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic   string
	payload []byte
	attrs   map[string]string
}

func (c *capturePublisher) Publish(_ context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	c.topic, c.payload, c.attrs = topic, payload, attrs
	return "msg-1", nil
}

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	if _, err := NewPublisher(context.Background(), cfg); err == nil {
		t.Fatal("expected error when project ID is empty")
	}
}

func TestPublishEvent(t *testing.T) {
	p := &capturePublisher{}
	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	id, err := PublishEvent(context.Background(), p, "followup-events", Event{
		Type:       EventFollowupCreated,
		UserID:     "u1",
		FollowupID: "f1",
		DueAt:      due,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "followup-events", p.topic)
	assert.Equal(t, map[string]string{"type": EventFollowupCreated, "user_id": "u1"}, p.attrs)

	var got Event
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, "f1", got.FollowupID)
	assert.True(t, due.Equal(got.DueAt))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))
	_, err := p.Publish(context.Background(), "reminder-emails", []byte(`{"a":1}`), nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"topic":"reminder-emails"`)
	assert.Contains(t, buf.String(), `"payload":{"a":1}`)
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{GCPProjectID: "test-project"}
	pub, err := NewPublisher(ctx, cfg)
	require.NoError(t, err)
	defer pub.Close()

	topicName := "followup-events-test"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "followup-events-test-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	msgID, err := PublishEvent(ctx, pub, topicName, Event{Type: EventReminderDue, UserID: "u1", FollowupID: "f1"})
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan *ps.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			c <- m
			m.Ack()
			cancel()
		})
	}()

	select {
	case m := <-c:
		assert.Equal(t, EventReminderDue, m.Attributes["type"])
		var e Event
		require.NoError(t, json.Unmarshal(m.Data, &e))
		assert.Equal(t, "f1", e.FollowupID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
