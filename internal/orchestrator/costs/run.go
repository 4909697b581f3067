package costs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"velora/internal/model"
	"velora/internal/pgmq"
	"velora/internal/repository"
	"velora/internal/service"

	"github.com/rs/zerolog"
)

// Queue is the part of the pgmq client the consumer needs.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgIDs []int64) error
	Archive(ctx context.Context, queue string, msgIDs []int64) error
}

type Options struct {
	QueueName      string
	PollTimeoutSec int
	PollMaxMsg     int
	// MaxDeliveries is how many reads a message gets before it is dead-lettered.
	MaxDeliveries int
}

// Consumer applies queued cost deltas to the cost store. Delivery is at least
// once: a delta whose delete fails after a successful write is applied again.
type Consumer struct {
	queue  Queue
	repo   repository.CostRepository
	dlq    service.DLQService
	opts   Options
	logger zerolog.Logger
}

func NewConsumer(queue Queue, repo repository.CostRepository, dlq service.DLQService, opts Options, logger zerolog.Logger) *Consumer {
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 5
	}
	if opts.PollMaxMsg <= 0 {
		opts.PollMaxMsg = 1
	}
	return &Consumer{
		queue:  queue,
		repo:   repo,
		dlq:    dlq,
		opts:   opts,
		logger: logger.With().Str("orchestrator", "costs").Str("queue", opts.QueueName).Logger(),
	}
}

// Run starts the costs orchestrator.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("Starting costs orchestrator")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Shutting down costs orchestrator")
			return nil
		default:
		}

		msgs, err := c.queue.ReadWithPoll(ctx, c.opts.QueueName, c.opts.PollTimeoutSec, c.opts.PollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error().Err(err).Msg("Error reading cost queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		c.Handle(ctx, msgs)
	}
}

// Handle applies a batch and returns how many deltas were written. Messages
// that fail to write stay queued until they exceed MaxDeliveries; dead-lettered
// messages are archived rather than deleted.
func (c *Consumer) Handle(ctx context.Context, msgs []*pgmq.Message) int {
	var (
		done     []int64
		archived []int64
		applied  int
	)
	for _, msg := range msgs {
		log := c.logger.With().Int64("msg_id", msg.ID).Logger()

		d, err := decode(msg.Data)
		if err != nil {
			log.Error().Err(err).Msg("Dropping undecodable cost message")
			c.deadLetter(ctx, msg, err.Error())
			archived = append(archived, msg.ID)
			continue
		}

		if err := c.repo.Add(ctx, d); err != nil {
			if msg.ReadCt >= c.opts.MaxDeliveries {
				log.Error().Err(err).Int("read_ct", msg.ReadCt).Msg("Cost message exceeded max deliveries")
				c.deadLetter(ctx, msg, err.Error())
				archived = append(archived, msg.ID)
				continue
			}
			log.Warn().Err(err).Int("read_ct", msg.ReadCt).Msg("Failed to apply cost delta; will retry")
			continue
		}
		applied++
		done = append(done, msg.ID)
	}

	if err := c.queue.Delete(ctx, c.opts.QueueName, done); err != nil {
		c.logger.Error().Err(err).Int("count", len(done)).Msg("Error deleting cost messages")
	}
	if err := c.queue.Archive(ctx, c.opts.QueueName, archived); err != nil {
		c.logger.Error().Err(err).Int("count", len(archived)).Msg("Error archiving cost messages")
	}
	return applied
}

func decode(data []byte) (model.CostDelta, error) {
	var d model.CostDelta
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decoding cost delta: %w", err)
	}
	if d.UserID == "" || d.DayKey == "" {
		return d, fmt.Errorf("cost delta missing user_id or day_key")
	}
	return d, nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg *pgmq.Message, reason string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.RecordQueueMessage(ctx, c.opts.QueueName, strconv.FormatInt(msg.ID, 10), msg.Data, reason); err != nil {
		c.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to record dead letter")
	}
}
