package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"velora/internal/clock"
	"velora/internal/config"
	"velora/internal/model"
	"velora/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Rate limit actions.
const (
	ActionFollowupCreate = "followup_create"
	ActionReminderEmail  = "reminder_email"
	ActionInboundEmail   = "inbound_email"
)

// Rejection reasons.
const (
	ReasonUnidentifiedSender = "unidentified_sender"
)

// RateLimiter admits or rejects user actions against three aligned fixed
// windows. Windows are per user and shared by all actions.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID, action string) model.RateLimitResult
	GetUserStatus(ctx context.Context, userID string) model.RateLimitStatus
	CheckEmailRateLimit(ctx context.Context, address string) model.RateLimitResult
}

type RateLimits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

func RateLimitsFromConfig(cfg *config.Config) RateLimits {
	return RateLimits{
		PerMinute: cfg.RateLimitPerMinute,
		PerHour:   cfg.RateLimitPerHour,
		PerDay:    cfg.RateLimitPerDay,
	}
}

var windowOrder = []model.WindowGranularity{model.WindowMinute, model.WindowHour, model.WindowDay}

func (l RateLimits) capFor(g model.WindowGranularity) int {
	switch g {
	case model.WindowMinute:
		return l.PerMinute
	case model.WindowHour:
		return l.PerHour
	default:
		return l.PerDay
	}
}

type rateLimiter struct {
	repo    repository.RateLimitRepository
	limits  RateLimits
	alias   string
	timeout time.Duration
	clock   clock.Clock
	logger  zerolog.Logger
}

func NewRateLimiter(
	repo repository.RateLimitRepository,
	limits RateLimits,
	inboundAlias string,
	timeout time.Duration,
	clk clock.Clock,
	logger zerolog.Logger,
) RateLimiter {
	return &rateLimiter{
		repo:    repo,
		limits:  limits,
		alias:   inboundAlias,
		timeout: timeout,
		clock:   clk,
		logger:  logger.With().Str("service", "RateLimiter").Logger(),
	}
}

func (s *rateLimiter) windows(now time.Time) []model.WindowKey {
	keys := make([]model.WindowKey, len(windowOrder))
	for i, g := range windowOrder {
		keys[i] = model.WindowFor(g, now)
	}
	return keys
}

// CheckRateLimit counts the attempt in all three windows, then compares.
// Rejected attempts stay counted. When the counter store fails the action
// is allowed.
func (s *rateLimiter) CheckRateLimit(ctx context.Context, userID, action string) model.RateLimitResult {
	now := s.clock.Now()
	windows := s.windows(now)

	if s.repo == nil {
		s.logger.Warn().Str("user_id", userID).Str("action", action).Msg("Rate limit store not configured, allowing action")
		return s.failOpen(windows)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	counts, err := s.repo.Increment(ctx, userID, windows)
	if err != nil || len(counts) != len(windows) {
		if err == nil {
			err = fmt.Errorf("expected %d counts, got %d", len(windows), len(counts))
		}
		s.logger.Warn().Err(err).Str("user_id", userID).Str("action", action).Msg("Rate limit check failed, allowing action")
		return s.failOpen(windows)
	}

	var exceeded *model.WindowKey
	remaining, bindingIdx := math.MaxInt, 0
	for i, w := range windows {
		limit := s.limits.capFor(w.Granularity)
		if counts[i] > int64(limit) {
			// retry after the furthest exceeded boundary; earlier ones would still reject
			if exceeded == nil || w.End().After(exceeded.End()) {
				exceeded = &windows[i]
			}
			continue
		}
		if left := limit - int(counts[i]); left < remaining {
			remaining = left
			bindingIdx = i
		}
	}

	if exceeded != nil {
		reset := exceeded.End()
		retryAfter := int(math.Ceil(reset.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		s.logger.Info().
			Str("user_id", userID).
			Str("action", action).
			Str("window", string(exceeded.Granularity)).
			Int("retry_after", retryAfter).
			Msg("Rate limit exceeded")
		return model.RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  reset,
			RetryAfter: retryAfter,
			Reason:     string(exceeded.Granularity) + "_limit_exceeded",
		}
	}

	return model.RateLimitResult{
		Allowed:   true,
		Remaining: remaining,
		ResetTime: windows[bindingIdx].End(),
	}
}

func (s *rateLimiter) failOpen(windows []model.WindowKey) model.RateLimitResult {
	return model.RateLimitResult{
		Allowed:   true,
		Remaining: s.limits.PerMinute,
		ResetTime: windows[0].End(),
	}
}

// GetUserStatus reads the three current windows in parallel without
// incrementing. Unreadable windows report zero.
func (s *rateLimiter) GetUserStatus(ctx context.Context, userID string) model.RateLimitStatus {
	now := s.clock.Now()
	windows := s.windows(now)
	usage := make([]model.WindowUsage, len(windows))
	for i, w := range windows {
		usage[i] = model.WindowUsage{Limit: s.limits.capFor(w.Granularity), ResetTime: w.End()}
	}

	if s.repo != nil {
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for i, w := range windows {
			g.Go(func() error {
				count, err := s.repo.GetCount(gctx, userID, w)
				if err != nil {
					s.logger.Warn().Err(err).Str("user_id", userID).Str("window", string(w.Granularity)).Msg("Failed to read rate limit counter")
					return nil
				}
				usage[i].Count = count
				return nil
			})
		}
		_ = g.Wait()
	}

	return model.RateLimitStatus{Minute: usage[0], Hour: usage[1], Day: usage[2]}
}

// CheckEmailRateLimit rejects outright when the address carries no user id,
// and otherwise applies the per-user check.
func (s *rateLimiter) CheckEmailRateLimit(ctx context.Context, address string) model.RateLimitResult {
	userID, err := ExtractUserIDFromAddress(address, s.alias)
	if err != nil {
		s.logger.Warn().Err(err).Str("address", address).Msg("Rejecting email from unidentified sender")
		return model.RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetTime: s.clock.Now(),
			Reason:    ReasonUnidentifiedSender,
		}
	}
	return s.CheckRateLimit(ctx, userID, ActionInboundEmail)
}
