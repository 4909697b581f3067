package operation

import "velora/internal/api/v1/dto"

// Pub/Sub Push Operations

type IngestEmailInput struct {
	Body dto.PubSubPushRequest `json:"body"`
}

type IngestEmailOutput struct {
	Body dto.IngestResponseDTO `json:"body"`
}

type RecordDLQInput struct {
	Body dto.PubSubPushRequest `json:"body"`
}

type RecordDLQOutput struct {
	// 200 OK with empty body
}
