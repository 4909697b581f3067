package handler

import (
	"context"
	"net/http"

	"velora/internal/api/v1/dto"
	"velora/internal/api/v1/operation"
	"velora/internal/model"
	"velora/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// FollowupHandler implements followup CRUD, transitions and radar stats.
type FollowupHandler struct {
	followups service.FollowupService
	limiter   service.RateLimiter
	logger    zerolog.Logger
}

func NewFollowupHandler(followups service.FollowupService, limiter service.RateLimiter, logger zerolog.Logger) *FollowupHandler {
	return &FollowupHandler{
		followups: followups,
		limiter:   limiter,
		logger:    logger,
	}
}

// owned loads a followup and hides records that belong to someone else.
func (h *FollowupHandler) owned(ctx context.Context, id string) (string, *model.Followup, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return "", nil, err
	}
	f, err := h.followups.GetFollowup(ctx, id)
	if err != nil {
		return "", nil, huma.Error500InternalServerError("Failed to get followup", err)
	}
	if f == nil || f.UserID != userID {
		return "", nil, huma.Error404NotFound("Followup not found")
	}
	return userID, f, nil
}

func (h *FollowupHandler) ListFollowups(ctx context.Context, input *operation.ListFollowupsInput) (*operation.ListFollowupsOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	filter := model.FollowupFilter{
		Direction: model.FollowupDirection(input.Direction),
		Timeframe: model.Timeframe(input.Timeframe),
	}
	for _, s := range input.Status {
		status := model.FollowupStatus(s)
		if !status.Valid() {
			return nil, huma.Error422UnprocessableEntity("Unknown status " + s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	followups, err := h.followups.GetFollowups(ctx, userID, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list followups", err)
	}

	out := make([]dto.FollowupResponseDTO, 0, len(followups))
	for i := range followups {
		out = append(out, dto.FollowupFromModel(&followups[i]))
	}
	return &operation.ListFollowupsOutput{Body: out}, nil
}

// CreateFollowup is rate limited per user and answers 429 with Retry-After.
// A thread that already has an open followup returns that record with 200
// and is not charged against the limit.
func (h *FollowupHandler) CreateFollowup(ctx context.Context, input *operation.CreateFollowupInput) (*operation.CreateFollowupOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	f := &model.Followup{
		UserID:       userID,
		ThreadKey:    input.Body.ThreadKey,
		Direction:    model.FollowupDirection(input.Body.Direction),
		Subject:      input.Body.Subject,
		Source:       model.FollowupSource{MessageID: input.Body.MessageID, Snippet: input.Body.Snippet},
		Participants: dto.ParticipantsFromDTO(input.Body.Participants),
	}
	if input.Body.DueAt != nil {
		f.DueAt = *input.Body.DueAt
	}

	if key := service.ThreadKeyFor(f); key != "" {
		existing, err := h.followups.FindByThreadKey(ctx, userID, key)
		if err != nil {
			return nil, toHTTPError(err, "Failed to create followup")
		}
		if existing != nil {
			return &operation.CreateFollowupOutput{Status: http.StatusOK, Body: dto.FollowupFromModel(existing)}, nil
		}
	}

	limit := h.limiter.CheckRateLimit(ctx, userID, service.ActionFollowupCreate)
	if !limit.Allowed {
		return nil, rateLimitedError(limit)
	}

	stored, created, err := h.followups.CreateIfAbsent(ctx, f)
	if err != nil {
		return nil, toHTTPError(err, "Failed to create followup")
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return &operation.CreateFollowupOutput{Status: status, Body: dto.FollowupFromModel(stored)}, nil
}

func (h *FollowupHandler) GetFollowup(ctx context.Context, input *operation.GetFollowupInput) (*operation.FollowupOutput, error) {
	_, f, err := h.owned(ctx, input.FollowupID)
	if err != nil {
		return nil, err
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) UpdateFollowup(ctx context.Context, input *operation.UpdateFollowupInput) (*operation.FollowupOutput, error) {
	if _, _, err := h.owned(ctx, input.FollowupID); err != nil {
		return nil, err
	}

	body := input.Body
	patch := model.FollowupPatch{
		DueAt:        body.DueAt,
		SnoozeUntil:  body.SnoozeUntil,
		Subject:      body.Subject,
		Snippet:      body.Snippet,
		Participants: dto.ParticipantsFromDTO(body.Participants),
	}
	if body.Direction != nil {
		d := model.FollowupDirection(*body.Direction)
		patch.Direction = &d
	}
	if body.Status != nil {
		s := model.FollowupStatus(*body.Status)
		patch.Status = &s
	}

	updated, err := h.followups.UpdateFollowup(ctx, input.FollowupID, patch)
	if err != nil {
		return nil, toHTTPError(err, "Failed to update followup")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(updated)}, nil
}

func (h *FollowupHandler) DeleteFollowup(ctx context.Context, input *operation.DeleteFollowupInput) (*operation.DeleteFollowupOutput, error) {
	userID, _, err := h.owned(ctx, input.FollowupID)
	if err != nil {
		return nil, err
	}
	if err := h.followups.DeleteFollowup(ctx, input.FollowupID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("followup_id", input.FollowupID).Msg("Failed to delete followup")
		return nil, toHTTPError(err, "Failed to delete followup")
	}
	return &operation.DeleteFollowupOutput{}, nil
}

func (h *FollowupHandler) MarkDone(ctx context.Context, input *operation.FollowupTransitionInput) (*operation.FollowupOutput, error) {
	if _, _, err := h.owned(ctx, input.FollowupID); err != nil {
		return nil, err
	}
	f, err := h.followups.MarkDone(ctx, input.FollowupID)
	if err != nil {
		return nil, toHTTPError(err, "Failed to mark followup done")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) CancelFollowup(ctx context.Context, input *operation.FollowupTransitionInput) (*operation.FollowupOutput, error) {
	if _, _, err := h.owned(ctx, input.FollowupID); err != nil {
		return nil, err
	}
	f, err := h.followups.CancelFollowup(ctx, input.FollowupID)
	if err != nil {
		return nil, toHTTPError(err, "Failed to cancel followup")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) SnoozeFollowup(ctx context.Context, input *operation.SnoozeFollowupInput) (*operation.FollowupOutput, error) {
	if _, _, err := h.owned(ctx, input.FollowupID); err != nil {
		return nil, err
	}
	f, err := h.followups.SnoozeFollowup(ctx, input.FollowupID, input.Body.Until)
	if err != nil {
		return nil, toHTTPError(err, "Failed to snooze followup")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) GenerateDraft(ctx context.Context, input *operation.GenerateDraftInput) (*operation.FollowupOutput, error) {
	if _, _, err := h.owned(ctx, input.FollowupID); err != nil {
		return nil, err
	}
	tone := service.TonePolite
	if input.Body != nil && input.Body.Tone != "" {
		tone = service.DraftTone(input.Body.Tone)
	}
	f, err := h.followups.GenerateDraft(ctx, input.FollowupID, tone)
	if err != nil {
		return nil, toHTTPError(err, "Failed to generate draft")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) FindByThread(ctx context.Context, input *operation.FindByThreadInput) (*operation.FollowupOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	f, err := h.followups.FindByThreadKey(ctx, userID, input.ThreadKey)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to look up thread", err)
	}
	if f == nil {
		return nil, huma.Error404NotFound("No open followup for thread")
	}
	return &operation.FollowupOutput{Body: dto.FollowupFromModel(f)}, nil
}

func (h *FollowupHandler) GetRadarStats(ctx context.Context, input *operation.UserScopedInput) (*operation.GetRadarStatsOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.followups.GetRadarStats(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to compute radar stats", err)
	}
	return &operation.GetRadarStatsOutput{Body: *stats}, nil
}
