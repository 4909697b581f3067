package model

import "time"

// InboundEmail is a message BCC'd or forwarded to a user's radar address.
type InboundEmail struct {
	MessageID  string    `json:"message_id" validate:"required,max=998"`
	Recipient  string    `json:"recipient" validate:"required,email"`
	From       string    `json:"from" validate:"required"`
	To         []string  `json:"to"`
	Cc         []string  `json:"cc"`
	Bcc        []string  `json:"bcc"`
	Subject    string    `json:"subject" validate:"max=998"`
	Snippet    string    `json:"snippet" validate:"max=2000"`
	ReceivedAt time.Time `json:"received_at"`
}
