package dto

type APIKeyRequestDTO struct {
	APIKey string `json:"api_key" minLength:"1" doc:"OpenAI API key"`
}

type APIKeyResponseDTO struct {
	Provider  string `json:"provider"`
	HasAPIKey bool   `json:"has_api_key"`
}
