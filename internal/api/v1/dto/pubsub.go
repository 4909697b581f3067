package dto

// PubSubPushRequest is the request body for a Pub/Sub push notification.
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// PubSubMessage is the actual message from Pub/Sub.
type PubSubMessage struct {
	Data        string            `json:"data"` // Base64-encoded
	MessageID   string            `json:"messageId"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	PublishTime string            `json:"publishTime,omitempty"`
}

// IngestResponseDTO reports what happened to a pushed inbound email.
type IngestResponseDTO struct {
	Status     string `json:"status" enum:"created,existing,rate_limited,rejected"`
	FollowupID string `json:"followup_id,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
