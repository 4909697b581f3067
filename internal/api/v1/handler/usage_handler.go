package handler

import (
	"context"

	"velora/internal/api/v1/operation"
	"velora/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// UsageHandler exposes rate limit status and cost reporting for the caller.
type UsageHandler struct {
	limiter service.RateLimiter
	costs   service.CostReportService
	logger  zerolog.Logger
}

func NewUsageHandler(limiter service.RateLimiter, costs service.CostReportService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{limiter: limiter, costs: costs, logger: logger}
}

func (h *UsageHandler) GetRateLimitStatus(ctx context.Context, input *operation.UserScopedInput) (*operation.GetRateLimitStatusOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &operation.GetRateLimitStatusOutput{Body: h.limiter.GetUserStatus(ctx, userID)}, nil
}

func (h *UsageHandler) GetDailyCost(ctx context.Context, input *operation.UserScopedInput) (*operation.GetDailyCostOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := h.costs.GetDailyCost(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get daily cost", err)
	}
	return &operation.GetDailyCostOutput{Body: *rec}, nil
}

func (h *UsageHandler) GetCostBreakdown(ctx context.Context, input *operation.UserScopedInput) (*operation.GetCostBreakdownOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	b, err := h.costs.GetCostBreakdown(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get cost breakdown", err)
	}
	return &operation.GetCostBreakdownOutput{Body: *b}, nil
}

func (h *UsageHandler) EstimateMonthlyCost(ctx context.Context, input *operation.UserScopedInput) (*operation.EstimateMonthlyCostOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	e, err := h.costs.EstimateMonthlyCost(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to estimate monthly cost", err)
	}
	return &operation.EstimateMonthlyCostOutput{Body: *e}, nil
}

func (h *UsageHandler) GetCostSummary(ctx context.Context, input *operation.UserScopedInput) (*operation.GetCostSummaryOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	s, err := h.costs.GetUserCostSummary(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get cost summary", err)
	}
	return &operation.GetCostSummaryOutput{Body: *s}, nil
}
