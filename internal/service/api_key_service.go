package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const ProviderOpenAI = "openai"

// KeyValidator checks a provider API key against the provider.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) error
}

// APIKeyService manages the user's own LLM key used for drafts.
type APIKeyService interface {
	SaveOpenAIKey(ctx context.Context, userID, apiKey string) error
	DeleteOpenAIKey(ctx context.Context, userID string) error
	HasOpenAIKey(ctx context.Context, userID string) (bool, error)
}

type apiKeyService struct {
	secrets   SecretManagerService
	validator KeyValidator
	logger    zerolog.Logger
}

func NewAPIKeyService(secrets SecretManagerService, validator KeyValidator, logger zerolog.Logger) APIKeyService {
	return &apiKeyService{
		secrets:   secrets,
		validator: validator,
		logger:    logger.With().Str("service", "APIKeyService").Logger(),
	}
}

func (s *apiKeyService) SaveOpenAIKey(ctx context.Context, userID, apiKey string) error {
	if s.secrets == nil {
		return ErrAPIKeysDisabled
	}
	if err := s.validator.ValidateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}
	if err := s.secrets.StoreUserAPIKey(ctx, userID, ProviderOpenAI, apiKey); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store API key")
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("Stored user API key")
	return nil
}

func (s *apiKeyService) DeleteOpenAIKey(ctx context.Context, userID string) error {
	if s.secrets == nil {
		return ErrAPIKeysDisabled
	}
	return s.secrets.DeleteUserAPIKey(ctx, userID, ProviderOpenAI)
}

func (s *apiKeyService) HasOpenAIKey(ctx context.Context, userID string) (bool, error) {
	if s.secrets == nil {
		return false, nil
	}
	key, err := s.secrets.GetUserAPIKey(ctx, userID, ProviderOpenAI)
	if err != nil {
		return false, err
	}
	return key != "", nil
}
