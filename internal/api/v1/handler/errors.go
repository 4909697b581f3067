package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"velora/internal/middleware"
	"velora/internal/model"
	"velora/internal/service"

	"github.com/danielgtaylor/huma/v2"
)

// Helper to extract user ID from context (injected by auth middleware)
func getUserIDFromContext(ctx context.Context) (string, error) {
	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("User ID not found in context")
	}
	return userID, nil
}

// toHTTPError maps service errors to Huma status errors.
func toHTTPError(err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrFollowupNotFound):
		return huma.Error404NotFound("Followup not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidFollowup):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		return huma.Error503ServiceUnavailable("Followup store unavailable")
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func rateLimitedError(r model.RateLimitResult) error {
	return huma.ErrorWithHeaders(
		huma.Error429TooManyRequests(fmt.Sprintf("Rate limit exceeded: %s", r.Reason)),
		http.Header{"Retry-After": []string{strconv.Itoa(r.RetryAfter)}},
	)
}
