package model

import "time"

// FollowupDirection says who owes the next message on a thread.
type FollowupDirection string

const (
	DirectionYouOwe  FollowupDirection = "YOU_OWE"
	DirectionTheyOwe FollowupDirection = "THEY_OWE"
)

// Valid reports whether d is a known direction.
func (d FollowupDirection) Valid() bool {
	return d == DirectionYouOwe || d == DirectionTheyOwe
}

// FollowupStatus is the lifecycle state of a followup.
type FollowupStatus string

const (
	StatusPending   FollowupStatus = "PENDING"
	StatusSnoozed   FollowupStatus = "SNOOZED"
	StatusDone      FollowupStatus = "DONE"
	StatusCancelled FollowupStatus = "CANCELLED"
)

// OpenStatuses are the statuses that still need attention. At most one open
// followup may exist per (user, thread key).
var OpenStatuses = []FollowupStatus{StatusPending, StatusSnoozed}

// Valid reports whether s is a known status.
func (s FollowupStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSnoozed, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether s belongs to the open set.
func (s FollowupStatus) IsOpen() bool {
	return s == StatusPending || s == StatusSnoozed
}

// IsTerminal reports whether no further transitions leave s.
func (s FollowupStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// ParticipantRole marks a participant as the user or a counterpart.
type ParticipantRole string

const (
	RoleMe   ParticipantRole = "me"
	RoleThem ParticipantRole = "them"
)

type Participant struct {
	Name  string          `json:"name"`
	Email string          `json:"email,omitempty"`
	Role  ParticipantRole `json:"role"`
}

// FollowupSource describes the message a followup was created from.
type FollowupSource struct {
	MessageID string `json:"message_id,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

type FollowupAnalytics struct {
	DraftsGenerated int        `json:"drafts_generated"`
	LastDraftAt     *time.Time `json:"last_draft_at,omitempty"`
}

// Followup is a tracked obligation to respond to, or chase, a message thread.
type Followup struct {
	ID               string            `db:"id" json:"id"`
	UserID           string            `db:"user_id" json:"user_id"`
	ThreadKey        string            `db:"thread_key" json:"thread_key"`
	Direction        FollowupDirection `db:"direction" json:"direction"`
	Status           FollowupStatus    `db:"status" json:"status"`
	DueAt            time.Time         `db:"due_at" json:"due_at"`
	SnoozeUntil      *time.Time        `db:"snooze_until" json:"snooze_until,omitempty"`
	Subject          string            `db:"subject" json:"subject"`
	Source           FollowupSource    `json:"source"`
	Participants     []Participant     `db:"participants" json:"participants"`
	Draft            string            `db:"draft" json:"draft,omitempty"`
	DraftGeneratedAt *time.Time        `db:"draft_generated_at" json:"draft_generated_at,omitempty"`
	Analytics        FollowupAnalytics `json:"analytics"`
	LastReminderAt   *time.Time        `db:"last_reminder_at" json:"last_reminder_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// FollowupPatch is a partial update. Nil fields are left untouched.
type FollowupPatch struct {
	Direction        *FollowupDirection
	Status           *FollowupStatus
	DueAt            *time.Time
	SnoozeUntil      *time.Time
	ClearSnooze      bool
	Subject          *string
	Snippet          *string
	Participants     []Participant
	Draft            *string
	DraftGeneratedAt *time.Time
	DraftsGenerated  *int
	LastDraftAt      *time.Time
	LastReminderAt   *time.Time
	UpdatedAt        time.Time
}

// Apply merges the patch into f.
func (p FollowupPatch) Apply(f *Followup) {
	if p.Direction != nil {
		f.Direction = *p.Direction
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.DueAt != nil {
		f.DueAt = *p.DueAt
	}
	if p.ClearSnooze {
		f.SnoozeUntil = nil
	}
	if p.SnoozeUntil != nil {
		t := *p.SnoozeUntil
		f.SnoozeUntil = &t
	}
	if p.Subject != nil {
		f.Subject = *p.Subject
	}
	if p.Snippet != nil {
		f.Source.Snippet = *p.Snippet
	}
	if p.Participants != nil {
		// an empty patch list clears participants but stays non-nil
		f.Participants = make([]Participant, len(p.Participants))
		copy(f.Participants, p.Participants)
	}
	if p.Draft != nil {
		f.Draft = *p.Draft
	}
	if p.DraftGeneratedAt != nil {
		t := *p.DraftGeneratedAt
		f.DraftGeneratedAt = &t
	}
	if p.DraftsGenerated != nil {
		f.Analytics.DraftsGenerated = *p.DraftsGenerated
	}
	if p.LastDraftAt != nil {
		t := *p.LastDraftAt
		f.Analytics.LastDraftAt = &t
	}
	if p.LastReminderAt != nil {
		t := *p.LastReminderAt
		f.LastReminderAt = &t
	}
	f.UpdatedAt = p.UpdatedAt
}

// Timeframe narrows a followup listing relative to now.
type Timeframe string

const (
	TimeframeAny      Timeframe = ""
	TimeframeOverdue  Timeframe = "overdue"
	TimeframeToday    Timeframe = "today"
	TimeframeUpcoming Timeframe = "upcoming"
)

// FollowupFilter selects followups for a user. An empty Statuses means the
// open set.
type FollowupFilter struct {
	Direction FollowupDirection
	Statuses  []FollowupStatus
	Timeframe Timeframe
}

// RadarStats are counts over a user's open followups.
type RadarStats struct {
	OverdueCount  int `json:"overdue_count"`
	TodayCount    int `json:"today_count"`
	UpcomingCount int `json:"upcoming_count"`
	YouOweCount   int `json:"you_owe_count"`
	TheyOweCount  int `json:"they_owe_count"`
}

// Open returns the number of open followups the stats were computed from.
func (s RadarStats) Open() int {
	return s.OverdueCount + s.TodayCount + s.UpcomingCount
}
