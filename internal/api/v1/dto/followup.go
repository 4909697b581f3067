package dto

import (
	"time"

	"velora/internal/model"
)

type ParticipantDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty" format:"email"`
	Role  string `json:"role" enum:"me,them"`
}

type FollowupCreateDTO struct {
	ThreadKey    string           `json:"thread_key,omitempty" maxLength:"64" doc:"Thread key; generated from message_id and participants when omitted"`
	MessageID    string           `json:"message_id,omitempty" maxLength:"998"`
	Direction    string           `json:"direction" enum:"YOU_OWE,THEY_OWE"`
	DueAt        *time.Time       `json:"due_at,omitempty"`
	Subject      string           `json:"subject,omitempty" maxLength:"998"`
	Snippet      string           `json:"snippet,omitempty" maxLength:"2000"`
	Participants []ParticipantDTO `json:"participants,omitempty"`
}

type FollowupUpdateDTO struct {
	Direction    *string          `json:"direction,omitempty" doc:"YOU_OWE or THEY_OWE"`
	Status       *string          `json:"status,omitempty" doc:"PENDING, SNOOZED, DONE or CANCELLED"`
	DueAt        *time.Time       `json:"due_at,omitempty"`
	SnoozeUntil  *time.Time       `json:"snooze_until,omitempty"`
	Subject      *string          `json:"subject,omitempty" maxLength:"998"`
	Snippet      *string          `json:"snippet,omitempty" maxLength:"2000"`
	Participants []ParticipantDTO `json:"participants,omitempty"`
}

type SnoozeRequestDTO struct {
	Until time.Time `json:"until" doc:"When the followup becomes due again"`
}

type DraftRequestDTO struct {
	Tone string `json:"tone,omitempty" enum:"polite,friendly,firm,brief" doc:"Defaults to polite"`
}

type FollowupResponseDTO struct {
	ID               string                  `json:"id"`
	ThreadKey        string                  `json:"thread_key"`
	Direction        model.FollowupDirection `json:"direction"`
	Status           model.FollowupStatus    `json:"status"`
	DueAt            time.Time               `json:"due_at"`
	SnoozeUntil      *time.Time              `json:"snooze_until,omitempty"`
	Subject          string                  `json:"subject"`
	Snippet          string                  `json:"snippet,omitempty"`
	Participants     []ParticipantDTO        `json:"participants"`
	Draft            string                  `json:"draft,omitempty"`
	DraftGeneratedAt *time.Time              `json:"draft_generated_at,omitempty"`
	DraftsGenerated  int                     `json:"drafts_generated"`
	LastReminderAt   *time.Time              `json:"last_reminder_at,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func ParticipantsFromDTO(in []ParticipantDTO) []model.Participant {
	if in == nil {
		return nil
	}
	out := make([]model.Participant, len(in))
	for i, p := range in {
		out[i] = model.Participant{Name: p.Name, Email: p.Email, Role: model.ParticipantRole(p.Role)}
	}
	return out
}

func FollowupFromModel(f *model.Followup) FollowupResponseDTO {
	participants := make([]ParticipantDTO, len(f.Participants))
	for i, p := range f.Participants {
		participants[i] = ParticipantDTO{Name: p.Name, Email: p.Email, Role: string(p.Role)}
	}
	return FollowupResponseDTO{
		ID:               f.ID,
		ThreadKey:        f.ThreadKey,
		Direction:        f.Direction,
		Status:           f.Status,
		DueAt:            f.DueAt,
		SnoozeUntil:      f.SnoozeUntil,
		Subject:          f.Subject,
		Snippet:          f.Source.Snippet,
		Participants:     participants,
		Draft:            f.Draft,
		DraftGeneratedAt: f.DraftGeneratedAt,
		DraftsGenerated:  f.Analytics.DraftsGenerated,
		LastReminderAt:   f.LastReminderAt,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}
