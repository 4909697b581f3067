package model

import (
	"fmt"
	"time"
)

// WindowGranularity is the size class of a fixed rate-limit window.
type WindowGranularity string

const (
	WindowMinute WindowGranularity = "minute"
	WindowHour   WindowGranularity = "hour"
	WindowDay    WindowGranularity = "day"
)

// Size returns the window length.
func (g WindowGranularity) Size() time.Duration {
	switch g {
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	}
	return 0
}

// WindowKey identifies one aligned window: index = floor(now / size).
type WindowKey struct {
	Granularity WindowGranularity
	Index       int64
}

// WindowFor returns the window of granularity g containing t.
func WindowFor(g WindowGranularity, t time.Time) WindowKey {
	sizeMs := g.Size().Milliseconds()
	return WindowKey{Granularity: g, Index: t.UnixMilli() / sizeMs}
}

// Start is the first instant of the window.
func (k WindowKey) Start() time.Time {
	return time.UnixMilli(k.Index * k.Granularity.Size().Milliseconds())
}

// End is the first instant after the window. Counters are stale from then on.
func (k WindowKey) End() time.Time {
	return time.UnixMilli((k.Index + 1) * k.Granularity.Size().Milliseconds())
}

// DocID is the storage key of the counter for userID in this window.
func (k WindowKey) DocID(userID string) string {
	return fmt.Sprintf("%s_%s_%d", userID, k.Granularity, k.Index)
}

// RateLimitCounter counts checked actions for one user in one window.
type RateLimitCounter struct {
	UserID      string            `db:"user_id" json:"user_id"`
	Granularity WindowGranularity `db:"granularity" json:"granularity"`
	WindowIndex int64             `db:"window_index" json:"window_index"`
	Count       int64             `db:"count" json:"count"`
	ExpiresAt   time.Time         `db:"expires_at" json:"expires_at"`
}

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	RetryAfter int       `json:"retry_after,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// WindowUsage is the current count of one window against its cap.
type WindowUsage struct {
	Count     int64     `json:"count"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"reset_time"`
}

// RateLimitStatus is a read-only view of all three windows.
type RateLimitStatus struct {
	Minute WindowUsage `json:"minute"`
	Hour   WindowUsage `json:"hour"`
	Day    WindowUsage `json:"day"`
}
