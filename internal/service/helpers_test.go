package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"velora/internal/clock"
	"velora/internal/llm"
	"velora/internal/model"
	"velora/internal/repository/memory"

	"github.com/rs/zerolog"
)

// t0 sits 30s into a minute so a test can make a few calls before the
// minute window rolls over.
var t0 = time.Date(2025, 3, 10, 9, 15, 30, 0, time.UTC)

var errUnavailable = errors.New("store unavailable")

var testLimits = RateLimits{PerMinute: 3, PerHour: 10, PerDay: 50}

var testDefaults = FollowupDefaults{
	TheyOweDueAfter:  72 * time.Hour,
	YouOweDueAfter:   24 * time.Hour,
	ReminderCooldown: 24 * time.Hour,
}

var testPricing = Pricing{
	EmailPer1000:       0.50,
	LLMDefaultPer1K:    0.002,
	LLMModelsPer1K:     map[string]float64{"gpt-4o-mini": 0.00015, "gpt-4o": 0.005},
	StoreReadsPer100K:  0.06,
	StoreWritesPer100K: 0.18,
}

// failingRateRepo simulates an unreachable counter store.
type failingRateRepo struct{}

func (failingRateRepo) Increment(context.Context, string, []model.WindowKey) ([]int64, error) {
	return nil, errUnavailable
}

func (failingRateRepo) GetCount(context.Context, string, model.WindowKey) (int64, error) {
	return 0, errUnavailable
}

func (failingRateRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errUnavailable
}

// failingCostRepo rejects every write.
type failingCostRepo struct{}

func (failingCostRepo) Add(context.Context, model.CostDelta) error { return errUnavailable }

func (failingCostRepo) Get(context.Context, string, string) (*model.UserCostRecord, error) {
	return nil, errUnavailable
}

func (failingCostRepo) ListByDay(context.Context, string) ([]model.UserCostRecord, error) {
	return nil, errUnavailable
}

type published struct {
	topic   string
	payload []byte
	attrs   map[string]string
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, attrs: attrs})
	return "msg-id", nil
}

func (p *capturePublisher) byType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.attrs["type"] == eventType {
			out = append(out, m)
		}
	}
	return out
}

type fakeLLM struct {
	text   string
	tokens int64
	err    error
	last   llm.Request
	calls  int
}

func (f *fakeLLM) DefaultModel() string { return "gpt-4o-mini" }

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.text, Model: req.Model, TotalTokens: f.tokens}, nil
}

// fakeSecrets keeps keys in a map keyed by user id.
type fakeSecrets struct {
	keys map[string]string
	err  error
}

func (s *fakeSecrets) StoreUserAPIKey(_ context.Context, userID, _, apiKey string) error {
	if s.err != nil {
		return s.err
	}
	s.keys[userID] = apiKey
	return nil
}

func (s *fakeSecrets) GetUserAPIKey(_ context.Context, userID, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.keys[userID], nil
}

func (s *fakeSecrets) DeleteUserAPIKey(_ context.Context, userID, _ string) error {
	delete(s.keys, userID)
	return nil
}

// fixture wires the services over memory stores and a mock clock.
type fixture struct {
	clock     *clock.Mock
	followups *memory.FollowupStore
	rates     *memory.RateLimitStore
	costs     *memory.CostStore
	publisher *capturePublisher
	llm       *fakeLLM

	limiter  RateLimiter
	tracker  CostTracker
	service  FollowupService
	reports  CostReportService
	ingest   IngestionService
	reminder ReminderService
}

func newFixture() *fixture {
	f := &fixture{
		clock:     clock.NewMock(t0),
		followups: memory.NewFollowupStore(),
		rates:     memory.NewRateLimitStore(),
		costs:     memory.NewCostStore(),
		publisher: &capturePublisher{},
		llm:       &fakeLLM{text: "Hi, just checking in.", tokens: 120},
	}
	log := zerolog.Nop()
	f.limiter = NewRateLimiter(f.rates, testLimits, "radar", time.Second, f.clock, log)
	f.tracker = NewCostTracker(NewDirectCostSink(f.costs, time.Second), testPricing, time.UTC, f.clock, log)
	drafts := NewDraftGenerator(f.llm, nil, time.Second, log)
	f.service = NewFollowupService(f.followups, drafts, f.tracker, f.publisher, "followup-events", testDefaults, time.UTC, f.clock, log)
	f.reports = NewCostReportService(f.costs, f.service, 9.99, time.UTC, f.clock, log)
	f.ingest = NewIngestionService(f.service, f.limiter, f.tracker, nil, "radar", testDefaults, f.clock, log)
	f.reminder = NewReminderService(f.service, f.limiter, f.tracker, f.publisher, "reminder-emails", 100, f.clock, log)
	return f
}

func (f *fixture) create(userID, threadKey string, direction model.FollowupDirection, due time.Time) *model.Followup {
	created, err := f.service.CreateFollowup(context.Background(), &model.Followup{
		UserID:    userID,
		ThreadKey: threadKey,
		Direction: direction,
		DueAt:     due,
		Subject:   "Contract review",
	})
	if err != nil {
		panic(err)
	}
	return created
}
