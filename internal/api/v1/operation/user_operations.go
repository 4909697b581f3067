package operation

import "velora/internal/api/v1/dto"

// API Key Operations

type StoreAPIKeyInput struct {
	Body dto.APIKeyRequestDTO `json:"body"`
}

type APIKeyOutput struct {
	Body dto.APIKeyResponseDTO `json:"body"`
}
