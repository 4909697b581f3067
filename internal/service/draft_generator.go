package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"velora/internal/llm"
	"velora/internal/model"

	"github.com/rs/zerolog"
)

// DraftTone selects the register of a generated reply.
type DraftTone string

const (
	TonePolite   DraftTone = "polite"
	ToneFriendly DraftTone = "friendly"
	ToneFirm     DraftTone = "firm"
	ToneBrief    DraftTone = "brief"
)

func (t DraftTone) Valid() bool {
	switch t {
	case TonePolite, ToneFriendly, ToneFirm, ToneBrief:
		return true
	}
	return false
}

const (
	draftMaxTokens   = 300
	draftTemperature = 0.7
	snippetMaxRunes  = 1000
)

var fallbackDrafts = map[model.FollowupDirection]string{
	model.DirectionYouOwe:  "Hi,\n\nThanks for your patience. I wanted to get back to you on this and will follow up with a full reply shortly.\n\nBest regards",
	model.DirectionTheyOwe: "Hi,\n\nI wanted to follow up on my previous message. Could you let me know when you have had a chance to look at it?\n\nBest regards",
}

// FallbackDraft is the fixed reply used when no completion is available.
func FallbackDraft(direction model.FollowupDirection) string {
	if d, ok := fallbackDrafts[direction]; ok {
		return d
	}
	return fallbackDrafts[model.DirectionTheyOwe]
}

// DraftResult is a generated reply. Fallback drafts carry no token usage.
type DraftResult struct {
	Text     string
	Model    string
	Tokens   int64
	Fallback bool
}

// DraftGenerator writes a reply draft for a followup. It never fails: any
// completion error yields the fallback template for the followup's direction.
type DraftGenerator interface {
	Generate(ctx context.Context, f *model.Followup, tone DraftTone) DraftResult
}

type draftGenerator struct {
	client  llm.Client
	keys    SecretManagerService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDraftGenerator builds a generator. keys is optional; when set the
// user's own OpenAI key is preferred over the service key.
func NewDraftGenerator(client llm.Client, keys SecretManagerService, timeout time.Duration, logger zerolog.Logger) DraftGenerator {
	return &draftGenerator{
		client:  client,
		keys:    keys,
		timeout: timeout,
		logger:  logger.With().Str("service", "DraftGenerator").Logger(),
	}
}

func (g *draftGenerator) fallback(f *model.Followup) DraftResult {
	return DraftResult{Text: FallbackDraft(f.Direction), Fallback: true}
}

func (g *draftGenerator) Generate(ctx context.Context, f *model.Followup, tone DraftTone) DraftResult {
	if g.client == nil {
		return g.fallback(f)
	}
	if !tone.Valid() {
		tone = TonePolite
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.Request{
		Model:       g.client.DefaultModel(),
		System:      draftSystemPrompt(tone),
		User:        draftUserPrompt(f),
		MaxTokens:   draftMaxTokens,
		Temperature: draftTemperature,
	}
	if g.keys != nil {
		key, err := g.keys.GetUserAPIKey(ctx, f.UserID, ProviderOpenAI)
		if err != nil {
			g.logger.Debug().Err(err).Str("user_id", f.UserID).Msg("Could not read user API key, using service key")
		}
		req.APIKey = key
	}

	out, err := g.client.Complete(ctx, req)
	if err != nil {
		g.logger.Warn().Err(err).Str("followup_id", f.ID).Msg("Draft completion failed, using fallback")
		return g.fallback(f)
	}
	return DraftResult{Text: out.Text, Model: out.Model, Tokens: out.TotalTokens}
}

func draftSystemPrompt(tone DraftTone) string {
	return fmt.Sprintf("You write short email follow-ups. Use a %s tone. Reply with the email body only, no subject line.", tone)
}

func draftUserPrompt(f *model.Followup) string {
	var b strings.Builder
	if f.Direction == model.DirectionYouOwe {
		b.WriteString("I owe a reply on this thread.\n")
	} else {
		b.WriteString("I am waiting for a reply on this thread and want to nudge them.\n")
	}
	fmt.Fprintf(&b, "Subject: %s\n", f.Subject)

	var names []string
	for _, p := range f.Participants {
		if p.Role != model.RoleThem {
			continue
		}
		if p.Name != "" {
			names = append(names, p.Name)
		} else if p.Email != "" {
			names = append(names, p.Email)
		}
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, "Recipients: %s\n", strings.Join(names, ", "))
	}
	if snippet := []rune(f.Source.Snippet); len(snippet) > 0 {
		if len(snippet) > snippetMaxRunes {
			snippet = snippet[:snippetMaxRunes]
		}
		fmt.Fprintf(&b, "Last message:\n%s\n", string(snippet))
	}
	return b.String()
}
