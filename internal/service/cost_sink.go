package service

import (
	"context"
	"sync"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"github.com/rs/zerolog"
)

// CostSink receives cost deltas off the followup write path.
type CostSink interface {
	Record(ctx context.Context, d model.CostDelta) error
	Close() error
}

// DirectCostSink writes each delta to the cost store before returning.
type DirectCostSink struct {
	repo    repository.CostRepository
	timeout time.Duration
}

func NewDirectCostSink(repo repository.CostRepository, timeout time.Duration) *DirectCostSink {
	return &DirectCostSink{repo: repo, timeout: timeout}
}

func (s *DirectCostSink) Record(ctx context.Context, d model.CostDelta) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Add(ctx, d)
}

func (s *DirectCostSink) Close() error { return nil }

// AsyncCostSink hands deltas to a background worker through a bounded
// buffer. Record never blocks; a full buffer drops the delta.
type AsyncCostSink struct {
	repo    repository.CostRepository
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan model.CostDelta
	done   chan struct{}
}

func NewAsyncCostSink(repo repository.CostRepository, buffer int, timeout time.Duration, logger zerolog.Logger) *AsyncCostSink {
	if buffer <= 0 {
		buffer = 1
	}
	s := &AsyncCostSink{
		repo:    repo,
		timeout: timeout,
		logger:  logger.With().Str("component", "AsyncCostSink").Logger(),
		ch:      make(chan model.CostDelta, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncCostSink) run() {
	defer close(s.done)
	for d := range s.ch {
		ctx, cancel := withTimeout(context.Background(), s.timeout)
		if err := s.repo.Add(ctx, d); err != nil {
			s.logger.Warn().Err(err).Str("user_id", d.UserID).Str("day_key", d.DayKey).Msg("Failed to write cost delta")
		}
		cancel()
	}
}

// Record ignores ctx; the write happens on the worker's own deadline.
func (s *AsyncCostSink) Record(_ context.Context, d model.CostDelta) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrCostSinkClosed
	}
	select {
	case s.ch <- d:
		return nil
	default:
		return ErrCostBufferFull
	}
}

// Close stops accepting deltas and waits for the buffer to drain.
func (s *AsyncCostSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

// JSONQueue is the subset of the pgmq client the queue sink needs.
type JSONQueue interface {
	SendJSON(ctx context.Context, queue string, v any) error
}

// QueueCostSink sends deltas to a message queue consumed by the costs
// orchestrator.
type QueueCostSink struct {
	queue   JSONQueue
	name    string
	timeout time.Duration
}

func NewQueueCostSink(queue JSONQueue, name string, timeout time.Duration) *QueueCostSink {
	return &QueueCostSink{queue: queue, name: name, timeout: timeout}
}

func (s *QueueCostSink) Record(ctx context.Context, d model.CostDelta) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.queue.SendJSON(ctx, s.name, d)
}

func (s *QueueCostSink) Close() error { return nil }
