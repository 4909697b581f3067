package handler

import (
	"context"
	"errors"

	"velora/internal/api/v1/dto"
	"velora/internal/api/v1/operation"
	"velora/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// UserHandler manages the caller's own LLM key.
type UserHandler struct {
	apiKeys service.APIKeyService
	logger  zerolog.Logger
}

func NewUserHandler(apiKeys service.APIKeyService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{apiKeys: apiKeys, logger: logger}
}

func apiKeyError(err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrAPIKeysDisabled):
		return huma.Error501NotImplemented("User API keys are not enabled")
	case errors.Is(err, service.ErrInvalidAPIKey):
		return huma.Error400BadRequest("Invalid API key")
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func (h *UserHandler) GetAPIKey(ctx context.Context, input *operation.UserScopedInput) (*operation.APIKeyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	has, err := h.apiKeys.HasOpenAIKey(ctx, userID)
	if err != nil {
		return nil, apiKeyError(err, "Failed to read API key")
	}
	return &operation.APIKeyOutput{Body: dto.APIKeyResponseDTO{Provider: service.ProviderOpenAI, HasAPIKey: has}}, nil
}

func (h *UserHandler) StoreAPIKey(ctx context.Context, input *operation.StoreAPIKeyInput) (*operation.APIKeyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.apiKeys.SaveOpenAIKey(ctx, userID, input.Body.APIKey); err != nil {
		return nil, apiKeyError(err, "Failed to store API key")
	}
	return &operation.APIKeyOutput{Body: dto.APIKeyResponseDTO{Provider: service.ProviderOpenAI, HasAPIKey: true}}, nil
}

func (h *UserHandler) DeleteAPIKey(ctx context.Context, input *operation.UserScopedInput) (*operation.APIKeyOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.apiKeys.DeleteOpenAIKey(ctx, userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete API key")
		return nil, apiKeyError(err, "Failed to delete API key")
	}
	return &operation.APIKeyOutput{Body: dto.APIKeyResponseDTO{Provider: service.ProviderOpenAI, HasAPIKey: false}}, nil
}
