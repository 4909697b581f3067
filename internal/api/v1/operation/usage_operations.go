package operation

import "velora/internal/model"

// Radar and rate limit operations take no input; the user ID comes from
// the auth context.

type UserScopedInput struct{}

type GetRadarStatsOutput struct {
	Body model.RadarStats `json:"body"`
}

type GetRateLimitStatusOutput struct {
	Body model.RateLimitStatus `json:"body"`
}

// Cost Operations

type GetDailyCostOutput struct {
	Body model.UserCostRecord `json:"body"`
}

type GetCostBreakdownOutput struct {
	Body model.CostBreakdown `json:"body"`
}

type EstimateMonthlyCostOutput struct {
	Body model.MonthlyCostEstimate `json:"body"`
}

type GetCostSummaryOutput struct {
	Body model.UserCostSummary `json:"body"`
}
