package operation

import "velora/internal/api/v1/dto"

// Followup CRUD Operations

type ListFollowupsInput struct {
	Direction string   `query:"direction" enum:"YOU_OWE,THEY_OWE" doc:"Only followups in this direction"`
	Status    []string `query:"status" doc:"Statuses to include; defaults to PENDING and SNOOZED"`
	Timeframe string   `query:"timeframe" enum:"overdue,today,upcoming" doc:"Due time relative to now"`
}

type ListFollowupsOutput struct {
	Body []dto.FollowupResponseDTO `json:"body"`
}

type CreateFollowupInput struct {
	Body dto.FollowupCreateDTO `json:"body"`
}

// CreateFollowupOutput is 201 for a new record and 200 when the thread
// already has an open followup.
type CreateFollowupOutput struct {
	Status int
	Body   dto.FollowupResponseDTO `json:"body"`
}

type GetFollowupInput struct {
	FollowupID string `path:"followupId" doc:"Followup ID"`
}

type UpdateFollowupInput struct {
	FollowupID string                `path:"followupId" doc:"Followup ID"`
	Body       dto.FollowupUpdateDTO `json:"body"`
}

type DeleteFollowupInput struct {
	FollowupID string `path:"followupId" doc:"Followup ID"`
}

type DeleteFollowupOutput struct {
	// 204 No Content - no body
}

// Transition Operations

type FollowupTransitionInput struct {
	FollowupID string `path:"followupId" doc:"Followup ID"`
}

type SnoozeFollowupInput struct {
	FollowupID string               `path:"followupId" doc:"Followup ID"`
	Body       dto.SnoozeRequestDTO `json:"body"`
}

type GenerateDraftInput struct {
	FollowupID string               `path:"followupId" doc:"Followup ID"`
	Body       *dto.DraftRequestDTO `json:"body,omitempty" required:"false"`
}

type FindByThreadInput struct {
	ThreadKey string `path:"threadKey" doc:"Thread key"`
}

// FollowupOutput is shared by every operation returning a single followup.
type FollowupOutput struct {
	Body dto.FollowupResponseDTO `json:"body"`
}
