package service

import (
	"context"
	"testing"
	"time"

	"velora/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inbound(messageID string, to ...string) *model.InboundEmail {
	return &model.InboundEmail{
		MessageID:  messageID,
		Recipient:  "radar+u1@velora.app",
		From:       "Ana Lima <ana@example.com>",
		To:         to,
		Subject:    "Contract review",
		Snippet:    "Can you send the signed copy?",
		ReceivedAt: t0.Add(-time.Hour),
	}
}

func TestIngest_CreatesYouOweFollowup(t *testing.T) {
	f := newFixture()

	res, err := f.ingest.Ingest(context.Background(), inbound("<m1@mail>", "me@example.com", "radar+u1@velora.app"))
	require.NoError(t, err)
	require.True(t, res.Created)

	fu := res.Followup
	assert.Equal(t, "u1", fu.UserID)
	assert.Equal(t, model.DirectionYouOwe, fu.Direction)
	assert.Equal(t, t0.Add(-time.Hour).Add(24*time.Hour), fu.DueAt)
	assert.Equal(t, "<m1@mail>", fu.Source.MessageID)
	require.Len(t, fu.Participants, 2)
	assert.Equal(t, model.Participant{Name: "Ana Lima", Email: "ana@example.com", Role: model.RoleThem}, fu.Participants[0])
	assert.Equal(t, model.RoleMe, fu.Participants[1].Role)

	rec, err := f.reports.GetDailyCost(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.EmailsSent)
}

func TestIngest_BccMeansTheyOwe(t *testing.T) {
	f := newFixture()
	email := inbound("<m1@mail>", "bob@example.com")
	email.From = "me@example.com"
	email.Bcc = []string{"radar+u1@velora.app"}

	res, err := f.ingest.Ingest(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionTheyOwe, res.Followup.Direction)
	assert.Equal(t, t0.Add(-time.Hour).Add(72*time.Hour), res.Followup.DueAt)
}

func TestIngest_SameThreadTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.ingest.Ingest(ctx, inbound("<m1@mail>", "bob@example.com", "carol@example.com"))
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.ingest.Ingest(ctx, inbound("<m1@mail>", "carol@example.com", "bob@example.com"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Followup.ID, second.Followup.ID)

	found, err := f.service.FindByThreadKey(ctx, "u1", first.Followup.ThreadKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.Followup.ID, found.ID)

	// the repeat delivery is not charged against the limiter
	status := f.limiter.GetUserStatus(ctx, "u1")
	assert.EqualValues(t, 1, status.Minute.Count)
}

func TestIngest_RateLimited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, id := range []string{"<m1@mail>", "<m2@mail>", "<m3@mail>"} {
		_, err := f.ingest.Ingest(ctx, inbound(id, "bob@example.com"))
		require.NoError(t, err)
	}

	res, err := f.ingest.Ingest(ctx, inbound("<m4@mail>", "bob@example.com"))
	require.ErrorIs(t, err, ErrRateLimited)
	require.NotNil(t, res.RateLimit)
	assert.False(t, res.RateLimit.Allowed)
	assert.Positive(t, res.RateLimit.RetryAfter)

	open, err := f.service.GetFollowups(ctx, "u1", model.FollowupFilter{})
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestIngest_UnidentifiedSender(t *testing.T) {
	f := newFixture()
	email := inbound("<m1@mail>", "bob@example.com")
	email.Recipient = "hello@velora.app"

	_, err := f.ingest.Ingest(context.Background(), email)
	assert.ErrorIs(t, err, ErrUnidentifiedSender)
	assert.Equal(t, 0, f.rates.Len())
}

func TestIngest_ValidatesPayload(t *testing.T) {
	f := newFixture()
	svc := NewIngestionService(f.service, f.limiter, f.tracker, validator.New(), "radar", testDefaults, f.clock, zerolog.Nop())

	email := inbound("", "bob@example.com")
	_, err := svc.Ingest(context.Background(), email)
	assert.ErrorIs(t, err, ErrInvalidFollowup)
}

func TestIngest_MissingReceivedAtUsesNow(t *testing.T) {
	f := newFixture()
	email := inbound("<m1@mail>", "bob@example.com")
	email.ReceivedAt = time.Time{}

	res, err := f.ingest.Ingest(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(24*time.Hour), res.Followup.DueAt)
}
