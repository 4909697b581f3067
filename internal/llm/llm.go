// Package llm holds the completion clients used for reply drafts.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the provider answers with no text.
var ErrEmptyCompletion = errors.New("llm returned empty text")

// Request is a single system+user completion call.
type Request struct {
	// APIKey overrides the client's default key when set.
	APIKey      string
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

type Completion struct {
	Text        string
	Model       string
	TotalTokens int64
}

// Client is an LLM completion endpoint.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	DefaultModel() string
}
