package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora/internal/clock"
	"velora/internal/model"
	"velora/internal/pubsub"
	"velora/internal/repository"
	"velora/internal/threadkey"

	"github.com/rs/zerolog"
)

// FollowupService owns followup CRUD, status transitions and radar stats.
type FollowupService interface {
	// CreateFollowup inserts a new PENDING followup without a dedup check.
	CreateFollowup(ctx context.Context, f *model.Followup) (*model.Followup, error)
	// CreateIfAbsent inserts f unless an open followup already tracks its
	// thread, in which case the existing record is returned.
	CreateIfAbsent(ctx context.Context, f *model.Followup) (*model.Followup, bool, error)
	GetFollowups(ctx context.Context, userID string, filter model.FollowupFilter) ([]model.Followup, error)
	GetFollowup(ctx context.Context, id string) (*model.Followup, error)
	UpdateFollowup(ctx context.Context, id string, patch model.FollowupPatch) (*model.Followup, error)
	MarkDone(ctx context.Context, id string) (*model.Followup, error)
	SnoozeFollowup(ctx context.Context, id string, until time.Time) (*model.Followup, error)
	CancelFollowup(ctx context.Context, id string) (*model.Followup, error)
	DeleteFollowup(ctx context.Context, id string) error
	FindByThreadKey(ctx context.Context, userID, threadKey string) (*model.Followup, error)
	GetRadarStats(ctx context.Context, userID string) (*model.RadarStats, error)
	GenerateDraft(ctx context.Context, id string, tone DraftTone) (*model.Followup, error)
	ListDueForReminder(ctx context.Context, limit int) ([]model.Followup, error)
	MarkReminded(ctx context.Context, id string) error
}

// FollowupDefaults are the due offsets applied when a followup has no due time.
type FollowupDefaults struct {
	TheyOweDueAfter  time.Duration
	YouOweDueAfter   time.Duration
	ReminderCooldown time.Duration
}

type followupService struct {
	repo      repository.FollowupRepository
	drafts    DraftGenerator
	costs     CostTracker
	publisher pubsub.Publisher
	topic     string
	defaults  FollowupDefaults
	loc       *time.Location
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewFollowupService(
	repo repository.FollowupRepository,
	drafts DraftGenerator,
	costs CostTracker,
	publisher pubsub.Publisher,
	topic string,
	defaults FollowupDefaults,
	loc *time.Location,
	clk clock.Clock,
	logger zerolog.Logger,
) FollowupService {
	if costs == nil {
		costs = noopCostTracker{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &followupService{
		repo:      repo,
		drafts:    drafts,
		costs:     costs,
		publisher: publisher,
		topic:     topic,
		defaults:  defaults,
		loc:       loc,
		clock:     clk,
		logger:    logger.With().Str("service", "FollowupService").Logger(),
	}
}

// dayBounds returns the start of the local calendar day containing now and
// the start of the next one.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ThreadKeyFor returns f's thread key, deriving it from the source message
// and participants when unset. It is empty when neither is available.
func ThreadKeyFor(f *model.Followup) string {
	if f.ThreadKey != "" || f.Source.MessageID == "" {
		return f.ThreadKey
	}
	emails := make([]string, 0, len(f.Participants))
	for _, p := range f.Participants {
		emails = append(emails, p.Email)
	}
	return threadkey.Generate(f.Source.MessageID, emails)
}

func (s *followupService) prepare(f *model.Followup) error {
	if f.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidFollowup)
	}
	if !f.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidFollowup, f.Direction)
	}
	if f.ThreadKey = ThreadKeyFor(f); f.ThreadKey == "" {
		return fmt.Errorf("%w: thread key or source message id is required", ErrInvalidFollowup)
	}

	now := s.clock.Now()
	if f.DueAt.IsZero() {
		after := s.defaults.YouOweDueAfter
		if f.Direction == model.DirectionTheyOwe {
			after = s.defaults.TheyOweDueAfter
		}
		f.DueAt = now.Add(after)
	}
	f.Status = model.StatusPending
	f.SnoozeUntil = nil
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (s *followupService) CreateFollowup(ctx context.Context, f *model.Followup) (*model.Followup, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	if err := s.prepare(f); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		s.logger.Error().Err(err).Str("user_id", f.UserID).Msg("Failed to create followup")
		return nil, err
	}
	s.costs.TrackFirestore(ctx, f.UserID, 0, 1)
	s.publishCreated(ctx, f)
	return f, nil
}

func (s *followupService) CreateIfAbsent(ctx context.Context, f *model.Followup) (*model.Followup, bool, error) {
	if s.repo == nil {
		return nil, false, ErrStoreUnavailable
	}
	if err := s.prepare(f); err != nil {
		return nil, false, err
	}
	stored, created, err := s.repo.CreateIfAbsent(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", f.UserID).Str("thread_key", f.ThreadKey).Msg("Failed to create followup")
		return nil, false, err
	}
	if created {
		s.costs.TrackFirestore(ctx, f.UserID, 1, 1)
		s.publishCreated(ctx, stored)
	} else {
		s.costs.TrackFirestore(ctx, f.UserID, 1, 0)
	}
	return stored, created, nil
}

// publishCreated is best effort; the record is already committed.
func (s *followupService) publishCreated(ctx context.Context, f *model.Followup) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	_, err := pubsub.PublishEvent(ctx, s.publisher, s.topic, pubsub.Event{
		Type:       pubsub.EventFollowupCreated,
		UserID:     f.UserID,
		FollowupID: f.ID,
		ThreadKey:  f.ThreadKey,
		Direction:  string(f.Direction),
		Subject:    f.Subject,
		DueAt:      f.DueAt,
		OccurredAt: f.CreatedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("followup_id", f.ID).Msg("Failed to publish followup.created")
	}
}

// GetFollowups lists followups ordered by due time. Statuses default to the
// open set. The timeframe is applied after the store query.
func (s *followupService) GetFollowups(ctx context.Context, userID string, filter model.FollowupFilter) ([]model.Followup, error) {
	if s.repo == nil {
		return []model.Followup{}, nil
	}
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = model.OpenStatuses
	}
	followups, err := s.repo.List(ctx, userID, statuses, filter.Direction)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list followups")
		return nil, err
	}
	s.costs.TrackFirestore(ctx, userID, max(int64(len(followups)), 1), 0)

	if filter.Timeframe == model.TimeframeAny {
		return followups, nil
	}
	now := s.clock.Now()
	startOfDay, endOfDay := dayBounds(now, s.loc)
	out := make([]model.Followup, 0, len(followups))
	for _, f := range followups {
		var keep bool
		switch filter.Timeframe {
		case model.TimeframeOverdue:
			keep = f.DueAt.Before(now)
		case model.TimeframeToday:
			keep = !f.DueAt.Before(startOfDay) && f.DueAt.Before(endOfDay)
		case model.TimeframeUpcoming:
			keep = !f.DueAt.Before(endOfDay)
		}
		if keep {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *followupService) GetFollowup(ctx context.Context, id string) (*model.Followup, error) {
	if s.repo == nil {
		return nil, nil
	}
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("followup_id", id).Msg("Failed to get followup")
		return nil, err
	}
	if f != nil {
		s.costs.TrackFirestore(ctx, f.UserID, 1, 0)
	}
	return f, nil
}

// UpdateFollowup merges the patch and bumps updatedAt. A status other than
// SNOOZED clears snoozeUntil; snoozing without a due time moves dueAt to the
// snooze time. A snooze time alone is only accepted on a SNOOZED record.
func (s *followupService) UpdateFollowup(ctx context.Context, id string, patch model.FollowupPatch) (*model.Followup, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFollowup, *patch.Status)
		}
		if *patch.Status != model.StatusSnoozed {
			patch.ClearSnooze = true
			patch.SnoozeUntil = nil
		} else if patch.SnoozeUntil != nil && patch.DueAt == nil {
			until := *patch.SnoozeUntil
			patch.DueAt = &until
		}
	} else if patch.SnoozeUntil != nil {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Str("followup_id", id).Msg("Failed to load followup for update")
			return nil, err
		}
		if current == nil {
			return nil, ErrFollowupNotFound
		}
		if current.Status != model.StatusSnoozed {
			return nil, fmt.Errorf("%w: snooze time requires status %s, followup is %s", ErrInvalidFollowup, model.StatusSnoozed, current.Status)
		}
		if patch.DueAt == nil {
			until := *patch.SnoozeUntil
			patch.DueAt = &until
		}
	}
	if patch.Direction != nil && !patch.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidFollowup, *patch.Direction)
	}
	patch.UpdatedAt = s.clock.Now()

	f, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFollowupNotFound
		}
		s.logger.Error().Err(err).Str("followup_id", id).Msg("Failed to update followup")
		return nil, err
	}
	s.costs.TrackFirestore(ctx, f.UserID, 1, 1)
	return f, nil
}

// transition moves a followup to target. Repeating a terminal transition is
// a no-op; leaving a terminal status is rejected.
func (s *followupService) transition(ctx context.Context, id string, target model.FollowupStatus, patch model.FollowupPatch) (*model.Followup, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("followup_id", id).Msg("Failed to load followup")
		return nil, err
	}
	if current == nil {
		return nil, ErrFollowupNotFound
	}
	if current.Status.IsTerminal() {
		if current.Status == target {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
	}
	patch.Status = &target
	return s.UpdateFollowup(ctx, id, patch)
}

func (s *followupService) MarkDone(ctx context.Context, id string) (*model.Followup, error) {
	return s.transition(ctx, id, model.StatusDone, model.FollowupPatch{})
}

func (s *followupService) CancelFollowup(ctx context.Context, id string) (*model.Followup, error) {
	return s.transition(ctx, id, model.StatusCancelled, model.FollowupPatch{})
}

// SnoozeFollowup sets snoozeUntil and dueAt to until.
func (s *followupService) SnoozeFollowup(ctx context.Context, id string, until time.Time) (*model.Followup, error) {
	if until.IsZero() {
		return nil, fmt.Errorf("%w: snooze time is required", ErrInvalidFollowup)
	}
	return s.transition(ctx, id, model.StatusSnoozed, model.FollowupPatch{
		SnoozeUntil: &until,
		DueAt:       &until,
	})
}

// DeleteFollowup removes the record regardless of status.
func (s *followupService) DeleteFollowup(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrStoreUnavailable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFollowupNotFound
		}
		s.logger.Error().Err(err).Str("followup_id", id).Msg("Failed to delete followup")
		return err
	}
	return nil
}

func (s *followupService) FindByThreadKey(ctx context.Context, userID, threadKey string) (*model.Followup, error) {
	if s.repo == nil {
		return nil, nil
	}
	f, err := s.repo.FindOpenByThreadKey(ctx, userID, threadKey)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("thread_key", threadKey).Msg("Failed to find followup by thread key")
		return nil, err
	}
	s.costs.TrackFirestore(ctx, userID, 1, 0)
	return f, nil
}

// GetRadarStats classifies open followups from a single fetch. Each record
// lands in exactly one of overdue, today or upcoming.
func (s *followupService) GetRadarStats(ctx context.Context, userID string) (*model.RadarStats, error) {
	stats := &model.RadarStats{}
	if s.repo == nil {
		return stats, nil
	}
	open, err := s.repo.List(ctx, userID, model.OpenStatuses, "")
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list followups for stats")
		return nil, err
	}
	s.costs.TrackFirestore(ctx, userID, max(int64(len(open)), 1), 0)

	now := s.clock.Now()
	_, endOfDay := dayBounds(now, s.loc)
	for _, f := range open {
		switch {
		case f.DueAt.Before(now):
			stats.OverdueCount++
		case f.DueAt.Before(endOfDay):
			stats.TodayCount++
		default:
			stats.UpcomingCount++
		}
		if f.Direction == model.DirectionYouOwe {
			stats.YouOweCount++
		} else {
			stats.TheyOweCount++
		}
	}
	return stats, nil
}

// GenerateDraft stores a new reply draft and bumps the draft counter. LLM
// failures are absorbed by the generator's fallback template.
func (s *followupService) GenerateDraft(ctx context.Context, id string, tone DraftTone) (*model.Followup, error) {
	if s.repo == nil {
		return nil, ErrStoreUnavailable
	}
	f, err := s.GetFollowup(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFollowupNotFound
	}

	var result DraftResult
	if s.drafts != nil {
		result = s.drafts.Generate(ctx, f, tone)
	} else {
		result = DraftResult{Text: FallbackDraft(f.Direction), Fallback: true}
	}
	if !result.Fallback {
		s.costs.TrackLLM(ctx, f.UserID, result.Tokens, result.Model)
	}

	now := s.clock.Now()
	count := f.Analytics.DraftsGenerated + 1
	return s.UpdateFollowup(ctx, id, model.FollowupPatch{
		Draft:            &result.Text,
		DraftGeneratedAt: &now,
		DraftsGenerated:  &count,
		LastDraftAt:      &now,
	})
}

func (s *followupService) ListDueForReminder(ctx context.Context, limit int) ([]model.Followup, error) {
	if s.repo == nil {
		return []model.Followup{}, nil
	}
	now := s.clock.Now()
	return s.repo.ListDueForReminder(ctx, now, now.Add(-s.defaults.ReminderCooldown), limit)
}

func (s *followupService) MarkReminded(ctx context.Context, id string) error {
	now := s.clock.Now()
	_, err := s.UpdateFollowup(ctx, id, model.FollowupPatch{LastReminderAt: &now})
	return err
}
