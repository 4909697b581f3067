package service

import "errors"

var (
	// ErrStoreUnavailable is returned by mutations when no store is configured.
	ErrStoreUnavailable = errors.New("followup store unavailable")
	ErrFollowupNotFound = errors.New("followup not found")
	// ErrInvalidTransition is returned when a status transition would leave a
	// terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidFollowup   = errors.New("invalid followup")
	ErrRateLimited       = errors.New("rate limit exceeded")
	// ErrUnidentifiedSender means no user id could be read from an address.
	ErrUnidentifiedSender = errors.New("unidentified sender")
	ErrCostBufferFull     = errors.New("cost buffer full")
	ErrCostSinkClosed     = errors.New("cost sink closed")
	ErrAPIKeysDisabled    = errors.New("user API keys are not enabled")
	// ErrInvalidAPIKey wraps validation failures from the provider.
	ErrInvalidAPIKey = errors.New("invalid API key")
)
