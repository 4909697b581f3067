package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"velora/internal/api/v1/dto"
	"velora/internal/api/v1/operation"
	"velora/internal/model"
	"velora/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// IngestHandler receives inbound emails pushed by Pub/Sub. Outcomes that a
// retry cannot change are acknowledged with 200; malformed payloads get 400
// so the subscription dead-letters them after its retry budget.
type IngestHandler struct {
	ingestion service.IngestionService
	logger    zerolog.Logger
}

func NewIngestHandler(ingestion service.IngestionService, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{ingestion: ingestion, logger: logger}
}

func (h *IngestHandler) IngestEmail(ctx context.Context, input *operation.IngestEmailInput) (*operation.IngestEmailOutput, error) {
	log := h.logger.With().Str("messageId", input.Body.Message.MessageID).Logger()

	data, err := base64.StdEncoding.DecodeString(input.Body.Message.Data)
	if err != nil {
		log.Warn().Err(err).Msg("Push message data is not base64")
		return nil, huma.Error400BadRequest("Message data is not base64")
	}
	var email model.InboundEmail
	if err := json.Unmarshal(data, &email); err != nil {
		log.Warn().Err(err).Msg("Push message data is not an inbound email")
		return nil, huma.Error400BadRequest("Message data is not an inbound email")
	}

	res, err := h.ingestion.Ingest(ctx, &email)
	switch {
	case errors.Is(err, service.ErrRateLimited):
		out := dto.IngestResponseDTO{Status: "rate_limited"}
		if res != nil && res.RateLimit != nil {
			out.RetryAfter = res.RateLimit.RetryAfter
			out.Reason = res.RateLimit.Reason
		}
		return &operation.IngestEmailOutput{Body: out}, nil
	case errors.Is(err, service.ErrUnidentifiedSender):
		log.Warn().Err(err).Msg("Dropping email for unidentified user")
		return &operation.IngestEmailOutput{Body: dto.IngestResponseDTO{Status: "rejected", Reason: service.ReasonUnidentifiedSender}}, nil
	case errors.Is(err, service.ErrInvalidFollowup):
		return nil, huma.Error400BadRequest(err.Error())
	case err != nil:
		log.Error().Err(err).Msg("Failed to ingest email")
		return nil, huma.Error500InternalServerError("Failed to ingest email", err)
	}

	status := "existing"
	if res.Created {
		status = "created"
	}
	return &operation.IngestEmailOutput{Body: dto.IngestResponseDTO{Status: status, FollowupID: res.Followup.ID}}, nil
}

type DLQHandler struct {
	service service.DLQService
	logger  zerolog.Logger
}

func NewDLQHandler(s service.DLQService, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, logger: l}
}

func (h *DLQHandler) RecordDLQ(ctx context.Context, input *operation.RecordDLQInput) (*operation.RecordDLQOutput, error) {
	if input.Body.Message.MessageID == "" {
		return nil, huma.Error400BadRequest("Invalid Pub/Sub message format: missing message ID")
	}

	h.logger.Info().
		Str("messageId", input.Body.Message.MessageID).
		Str("subscription", input.Body.Subscription).
		Msg("Processing dead-letter queue message")

	err := h.service.ProcessAndSave(ctx, service.PushMessage{
		Subscription: input.Body.Subscription,
		MessageID:    input.Body.Message.MessageID,
		Data:         input.Body.Message.Data,
		Attributes:   input.Body.Message.Attributes,
	})
	if err != nil {
		// Acknowledge anyway; the message is already dead-lettered and a retry
		// would only duplicate it.
		h.logger.Error().Err(err).Msg("Failed to save DLQ message to database")
	}
	return &operation.RecordDLQOutput{}, nil
}
