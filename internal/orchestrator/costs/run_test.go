package costs

import (
	"context"
	"errors"
	"testing"

	"velora/internal/model"
	"velora/internal/pgmq"
	"velora/internal/repository/memory"
	"velora/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	deleted  []int64
	archived []int64
}

func (q *fakeQueue) ReadWithPoll(context.Context, string, int, int) ([]*pgmq.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Delete(_ context.Context, _ string, ids []int64) error {
	q.deleted = append(q.deleted, ids...)
	return nil
}

func (q *fakeQueue) Archive(_ context.Context, _ string, ids []int64) error {
	q.archived = append(q.archived, ids...)
	return nil
}

type flakyCostRepo struct{}

func (flakyCostRepo) Add(context.Context, model.CostDelta) error { return errors.New("connection reset") }

func (flakyCostRepo) Get(context.Context, string, string) (*model.UserCostRecord, error) {
	return nil, nil
}

func (flakyCostRepo) ListByDay(context.Context, string) ([]model.UserCostRecord, error) {
	return nil, nil
}

func TestHandle_AppliesAndDeletes(t *testing.T) {
	q := &fakeQueue{}
	costs := memory.NewCostStore()
	c := NewConsumer(q, costs, nil, Options{QueueName: "cost_events"}, zerolog.Nop())

	applied := c.Handle(context.Background(), []*pgmq.Message{
		{ID: 1, ReadCt: 1, Data: []byte(`{"user_id":"u1","day_key":"20250310","emails_sent":1,"email_cost_usd":0.0005}`)},
		{ID: 2, ReadCt: 1, Data: []byte(`{"user_id":"u1","day_key":"20250310","tokens_used":1000,"llm_cost_usd":0.002}`)},
	})

	assert.Equal(t, 2, applied)
	assert.Equal(t, []int64{1, 2}, q.deleted)
	assert.Empty(t, q.archived)

	rec, err := costs.Get(context.Background(), "u1", "20250310")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.InDelta(t, 0.0025, rec.TotalCostUSD, 1e-12)
}

func TestHandle_UndecodableGoesToDeadLetters(t *testing.T) {
	q := &fakeQueue{}
	dead := memory.NewDLQStore()
	c := NewConsumer(q, memory.NewCostStore(), service.NewDLQService(dead), Options{QueueName: "cost_events"}, zerolog.Nop())

	applied := c.Handle(context.Background(), []*pgmq.Message{
		{ID: 3, ReadCt: 1, Data: []byte(`not json`)},
		{ID: 4, ReadCt: 1, Data: []byte(`{"day_key":"20250310"}`)},
	})

	assert.Zero(t, applied)
	assert.Empty(t, q.deleted)
	assert.Equal(t, []int64{3, 4}, q.archived)
	msgs := dead.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "3", msgs[0].MessageID)
	assert.Equal(t, model.DeadLetterSourceCostQueue, msgs[0].Source)
}

func TestHandle_RetriesUntilMaxDeliveries(t *testing.T) {
	q := &fakeQueue{}
	dead := memory.NewDLQStore()
	c := NewConsumer(q, flakyCostRepo{}, service.NewDLQService(dead), Options{QueueName: "cost_events", MaxDeliveries: 3}, zerolog.Nop())
	data := []byte(`{"user_id":"u1","day_key":"20250310","emails_sent":1}`)

	c.Handle(context.Background(), []*pgmq.Message{{ID: 5, ReadCt: 2, Data: data}})
	assert.Empty(t, q.deleted)
	assert.Empty(t, q.archived)
	assert.Empty(t, dead.Messages())

	c.Handle(context.Background(), []*pgmq.Message{{ID: 5, ReadCt: 3, Data: data}})
	assert.Equal(t, []int64{5}, q.archived)
	require.Len(t, dead.Messages(), 1)
	assert.Equal(t, "connection reset", dead.Messages()[0].Reason)
}
