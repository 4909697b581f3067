package service

import (
	"context"
	"fmt"
	"time"

	"velora/internal/clock"
	"velora/internal/model"
	"velora/internal/repository"

	"github.com/rs/zerolog"
)

const (
	daysPerMonth = 30

	healthyCOGSRatio = 0.30
	warningCOGSRatio = 0.50
)

// RadarStatsSource provides open followup counts for cost-per-followup.
type RadarStatsSource interface {
	GetRadarStats(ctx context.Context, userID string) (*model.RadarStats, error)
}

// CostReportService is the read side of cost tracking.
type CostReportService interface {
	GetDailyCost(ctx context.Context, userID string) (*model.UserCostRecord, error)
	GetCostBreakdown(ctx context.Context, userID string) (*model.CostBreakdown, error)
	EstimateMonthlyCost(ctx context.Context, userID string) (*model.MonthlyCostEstimate, error)
	GetUserCostSummary(ctx context.Context, userID string) (*model.UserCostSummary, error)
	GetDayReport(ctx context.Context, dayKey string) (*model.DailyCostReport, error)
}

type costReportService struct {
	repo   repository.CostRepository
	stats  RadarStatsSource
	arpu   float64
	loc    *time.Location
	clock  clock.Clock
	logger zerolog.Logger
}

func NewCostReportService(
	repo repository.CostRepository,
	stats RadarStatsSource,
	arpu float64,
	loc *time.Location,
	clk clock.Clock,
	logger zerolog.Logger,
) CostReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &costReportService{
		repo:   repo,
		stats:  stats,
		arpu:   arpu,
		loc:    loc,
		clock:  clk,
		logger: logger.With().Str("service", "CostReportService").Logger(),
	}
}

// GetDailyCost returns today's record, zero-valued when nothing was tracked.
func (s *costReportService) GetDailyCost(ctx context.Context, userID string) (*model.UserCostRecord, error) {
	dayKey := model.DayKey(s.clock.Now(), s.loc)
	empty := &model.UserCostRecord{UserID: userID, DayKey: dayKey}
	if s.repo == nil {
		return empty, nil
	}
	rec, err := s.repo.Get(ctx, userID, dayKey)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read daily cost")
		return nil, fmt.Errorf("reading daily cost: %w", err)
	}
	if rec == nil {
		return empty, nil
	}
	return rec, nil
}

func (s *costReportService) GetCostBreakdown(ctx context.Context, userID string) (*model.CostBreakdown, error) {
	rec, err := s.GetDailyCost(ctx, userID)
	if err != nil {
		return nil, err
	}
	b := &model.CostBreakdown{
		DayKey:           rec.DayKey,
		EmailCostUSD:     rec.EmailCostUSD,
		LLMCostUSD:       rec.LLMCostUSD,
		FirestoreCostUSD: rec.FirestoreCostUSD,
		TotalCostUSD:     rec.TotalCostUSD,
	}
	if rec.TotalCostUSD > 0 {
		b.EmailPercent = rec.EmailCostUSD / rec.TotalCostUSD * 100
		b.LLMPercent = rec.LLMCostUSD / rec.TotalCostUSD * 100
		b.FirestorePercent = rec.FirestoreCostUSD / rec.TotalCostUSD * 100
	}
	return b, nil
}

// EstimateMonthly extrapolates a daily cost over a month and classifies it
// against revenue per user.
func EstimateMonthly(dailyCost, arpu float64) model.MonthlyCostEstimate {
	e := model.MonthlyCostEstimate{
		DailyCostUSD:   dailyCost,
		MonthlyCostUSD: dailyCost * daysPerMonth,
		ARPU:           arpu,
	}
	if arpu > 0 {
		e.COGSRatio = e.MonthlyCostUSD / arpu
	} else if e.MonthlyCostUSD > 0 {
		e.COGSRatio = 1
	}
	switch {
	case e.COGSRatio < healthyCOGSRatio:
		e.Health = model.HealthHealthy
	case e.COGSRatio < warningCOGSRatio:
		e.Health = model.HealthWarning
	default:
		e.Health = model.HealthCritical
	}
	return e
}

func (s *costReportService) EstimateMonthlyCost(ctx context.Context, userID string) (*model.MonthlyCostEstimate, error) {
	rec, err := s.GetDailyCost(ctx, userID)
	if err != nil {
		return nil, err
	}
	e := EstimateMonthly(rec.TotalCostUSD, s.arpu)
	return &e, nil
}

func (s *costReportService) GetUserCostSummary(ctx context.Context, userID string) (*model.UserCostSummary, error) {
	rec, err := s.GetDailyCost(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &model.UserCostSummary{
		UserID:  userID,
		Today:   *rec,
		Monthly: EstimateMonthly(rec.TotalCostUSD, s.arpu),
	}
	if s.stats != nil {
		stats, err := s.stats.GetRadarStats(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("reading radar stats: %w", err)
		}
		summary.ActiveFollowups = stats.Open()
	}
	if summary.ActiveFollowups > 0 {
		summary.CostPerActiveFollowupUSD = rec.TotalCostUSD / float64(summary.ActiveFollowups)
	}
	return summary, nil
}

// GetDayReport rolls up every user's record for a day.
func (s *costReportService) GetDayReport(ctx context.Context, dayKey string) (*model.DailyCostReport, error) {
	report := &model.DailyCostReport{
		DayKey:      dayKey,
		GeneratedAt: s.clock.Now(),
		Totals:      model.UserCostRecord{DayKey: dayKey},
		Users:       []model.UserCostRecord{},
	}
	if s.repo == nil {
		return report, nil
	}
	records, err := s.repo.ListByDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("listing costs for %s: %w", dayKey, err)
	}
	for _, r := range records {
		report.Totals.EmailsSent += r.EmailsSent
		report.Totals.EmailCostUSD += r.EmailCostUSD
		report.Totals.TokensUsed += r.TokensUsed
		report.Totals.LLMCostUSD += r.LLMCostUSD
		report.Totals.FirestoreReads += r.FirestoreReads
		report.Totals.FirestoreWrites += r.FirestoreWrites
		report.Totals.FirestoreCostUSD += r.FirestoreCostUSD
		report.Totals.TotalCostUSD += r.TotalCostUSD
		if r.LastUpdated.After(report.Totals.LastUpdated) {
			report.Totals.LastUpdated = r.LastUpdated
		}
	}
	report.Users = records
	report.UserCount = len(records)
	return report, nil
}
