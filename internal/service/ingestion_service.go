package service

import (
	"context"
	"fmt"
	"time"

	"velora/internal/clock"
	"velora/internal/model"
	"velora/internal/threadkey"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// IngestResult describes what happened to an inbound email.
type IngestResult struct {
	Followup  *model.Followup
	Created   bool
	RateLimit *model.RateLimitResult
}

// IngestionService turns emails sent to a user's radar address into followups.
type IngestionService interface {
	Ingest(ctx context.Context, email *model.InboundEmail) (*IngestResult, error)
}

type ingestionService struct {
	followups FollowupService
	limiter   RateLimiter
	costs     CostTracker
	validate  *validator.Validate
	alias     string
	defaults  FollowupDefaults
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewIngestionService(
	followups FollowupService,
	limiter RateLimiter,
	costs CostTracker,
	validate *validator.Validate,
	inboundAlias string,
	defaults FollowupDefaults,
	clk clock.Clock,
	logger zerolog.Logger,
) IngestionService {
	if costs == nil {
		costs = noopCostTracker{}
	}
	return &ingestionService{
		followups: followups,
		limiter:   limiter,
		costs:     costs,
		validate:  validate,
		alias:     inboundAlias,
		defaults:  defaults,
		clock:     clk,
		logger:    logger.With().Str("service", "IngestionService").Logger(),
	}
}

// Ingest looks up the thread first so repeated deliveries of a tracked
// thread do not consume quota. New threads are rate limited, then created
// atomically against concurrent deliveries.
func (s *ingestionService) Ingest(ctx context.Context, email *model.InboundEmail) (*IngestResult, error) {
	if s.validate != nil {
		if err := s.validate.Struct(email); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFollowup, err)
		}
	}
	userID, err := ExtractUserIDFromAddress(email.Recipient, s.alias)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("user_id", userID).Str("message_id", email.MessageID).Logger()

	_, recipient := addressOf(email.Recipient)
	direction := model.DirectionYouOwe
	for _, b := range email.Bcc {
		if _, addr := addressOf(b); addr == recipient {
			direction = model.DirectionTheyOwe
			break
		}
	}

	participants, addrs := s.participants(email, recipient, direction)
	key := threadkey.Generate(email.MessageID, addrs)

	existing, err := s.followups.FindByThreadKey(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Debug().Str("followup_id", existing.ID).Msg("Thread already tracked")
		return &IngestResult{Followup: existing}, nil
	}

	limit := s.limiter.CheckEmailRateLimit(ctx, email.Recipient)
	if !limit.Allowed {
		log.Info().Int("retry_after", limit.RetryAfter).Msg("Inbound email rate limited")
		return &IngestResult{RateLimit: &limit}, ErrRateLimited
	}

	received := email.ReceivedAt
	if received.IsZero() {
		received = s.clock.Now()
	}
	due := received.Add(s.dueAfter(direction))

	f := &model.Followup{
		UserID:       userID,
		ThreadKey:    key,
		Direction:    direction,
		DueAt:        due,
		Subject:      email.Subject,
		Source:       model.FollowupSource{MessageID: email.MessageID, Snippet: email.Snippet},
		Participants: participants,
	}
	stored, created, err := s.followups.CreateIfAbsent(ctx, f)
	if err != nil {
		return nil, err
	}
	s.costs.TrackEmail(ctx, userID, "inbound")
	log.Info().Str("followup_id", stored.ID).Bool("created", created).Str("direction", string(direction)).Msg("Inbound email ingested")
	return &IngestResult{Followup: stored, Created: created, RateLimit: &limit}, nil
}

func (s *ingestionService) dueAfter(direction model.FollowupDirection) time.Duration {
	if direction == model.DirectionTheyOwe {
		return s.defaults.TheyOweDueAfter
	}
	return s.defaults.YouOweDueAfter
}

// participants returns display participants and the address set used for
// the thread key. The radar address itself is excluded from both.
func (s *ingestionService) participants(email *model.InboundEmail, recipient string, direction model.FollowupDirection) ([]model.Participant, []string) {
	senderRole, otherRole := model.RoleThem, model.RoleMe
	if direction == model.DirectionTheyOwe {
		senderRole, otherRole = model.RoleMe, model.RoleThem
	}

	seen := map[string]bool{recipient: true}
	var (
		participants []model.Participant
		addrs        []string
	)
	add := func(raw string, role model.ParticipantRole, display bool) {
		name, addr := addressOf(raw)
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		addrs = append(addrs, addr)
		if display {
			if name == "" {
				name = addr
			}
			participants = append(participants, model.Participant{Name: name, Email: addr, Role: role})
		}
	}

	add(email.From, senderRole, true)
	for _, v := range email.To {
		add(v, otherRole, true)
	}
	for _, v := range email.Cc {
		add(v, otherRole, true)
	}
	for _, v := range email.Bcc {
		add(v, otherRole, false)
	}
	return participants, addrs
}
