package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type followupDoc struct {
	UserID           string           `firestore:"user_id"`
	ThreadKey        string           `firestore:"thread_key"`
	Direction        string           `firestore:"direction"`
	Status           string           `firestore:"status"`
	DueAt            time.Time        `firestore:"due_at"`
	SnoozeUntil      *time.Time       `firestore:"snooze_until"`
	Subject          string           `firestore:"subject"`
	Source           sourceDoc        `firestore:"source"`
	Participants     []participantDoc `firestore:"participants"`
	Draft            string           `firestore:"draft,omitempty"`
	DraftGeneratedAt *time.Time       `firestore:"draft_generated_at"`
	Analytics        analyticsDoc     `firestore:"analytics"`
	LastReminderAt   *time.Time       `firestore:"last_reminder_at"`
	CreatedAt        time.Time        `firestore:"created_at"`
	UpdatedAt        time.Time        `firestore:"updated_at"`
}

type sourceDoc struct {
	MessageID string `firestore:"message_id"`
	Snippet   string `firestore:"snippet"`
}

type participantDoc struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Role  string `firestore:"role"`
}

type analyticsDoc struct {
	DraftsGenerated int        `firestore:"drafts_generated"`
	LastDraftAt     *time.Time `firestore:"last_draft_at"`
}

func toFollowupDoc(f *model.Followup) followupDoc {
	participants := make([]participantDoc, 0, len(f.Participants))
	for _, p := range f.Participants {
		participants = append(participants, participantDoc{Name: p.Name, Email: p.Email, Role: string(p.Role)})
	}
	return followupDoc{
		UserID:           f.UserID,
		ThreadKey:        f.ThreadKey,
		Direction:        string(f.Direction),
		Status:           string(f.Status),
		DueAt:            f.DueAt,
		SnoozeUntil:      f.SnoozeUntil,
		Subject:          f.Subject,
		Source:           sourceDoc{MessageID: f.Source.MessageID, Snippet: f.Source.Snippet},
		Participants:     participants,
		Draft:            f.Draft,
		DraftGeneratedAt: f.DraftGeneratedAt,
		Analytics:        analyticsDoc{DraftsGenerated: f.Analytics.DraftsGenerated, LastDraftAt: f.Analytics.LastDraftAt},
		LastReminderAt:   f.LastReminderAt,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*model.Followup, error) {
	var doc followupDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode followupDoc %s: %w", snap.Ref.ID, err)
	}
	participants := make([]model.Participant, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		participants = append(participants, model.Participant{Name: p.Name, Email: p.Email, Role: model.ParticipantRole(p.Role)})
	}
	return &model.Followup{
		ID:               snap.Ref.ID,
		UserID:           doc.UserID,
		ThreadKey:        doc.ThreadKey,
		Direction:        model.FollowupDirection(doc.Direction),
		Status:           model.FollowupStatus(doc.Status),
		DueAt:            doc.DueAt,
		SnoozeUntil:      doc.SnoozeUntil,
		Subject:          doc.Subject,
		Source:           model.FollowupSource{MessageID: doc.Source.MessageID, Snippet: doc.Source.Snippet},
		Participants:     participants,
		Draft:            doc.Draft,
		DraftGeneratedAt: doc.DraftGeneratedAt,
		Analytics:        model.FollowupAnalytics{DraftsGenerated: doc.Analytics.DraftsGenerated, LastDraftAt: doc.Analytics.LastDraftAt},
		LastReminderAt:   doc.LastReminderAt,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func openStatuses() []string {
	return []string{string(model.StatusPending), string(model.StatusSnoozed)}
}

type FollowupStore struct {
	client *firestore.Client
}

func NewFollowupStore(client *firestore.Client) *FollowupStore {
	return &FollowupStore{client: client}
}

var _ repository.FollowupRepository = (*FollowupStore)(nil)

func (s *FollowupStore) col() *firestore.CollectionRef {
	return s.client.Collection(followupsCollection)
}

func (s *FollowupStore) openByThreadKey(userID, threadKey string) firestore.Query {
	return s.col().
		Where("user_id", "==", userID).
		Where("thread_key", "==", threadKey).
		Where("status", "in", openStatuses()).
		Limit(1)
}

func (s *FollowupStore) Create(ctx context.Context, f *model.Followup) error {
	ref := s.col().NewDoc()
	if _, err := ref.Create(ctx, toFollowupDoc(f)); err != nil {
		return fmt.Errorf("firestore CreateFollowup: %w", err)
	}
	f.ID = ref.ID
	return nil
}

// CreateIfAbsent runs the open-record query and the insert in one
// transaction, so concurrent ingestion of the same thread creates one record.
func (s *FollowupStore) CreateIfAbsent(ctx context.Context, f *model.Followup) (*model.Followup, bool, error) {
	var (
		stored  *model.Followup
		created bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, created = nil, false
		snaps, err := tx.Documents(s.openByThreadKey(f.UserID, f.ThreadKey)).GetAll()
		if err != nil {
			return err
		}
		if len(snaps) > 0 {
			stored, err = fromSnapshot(snaps[0])
			return err
		}
		ref := s.col().NewDoc()
		if err := tx.Create(ref, toFollowupDoc(f)); err != nil {
			return err
		}
		out := *f
		out.ID = ref.ID
		stored, created = &out, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("firestore CreateIfAbsent: %w", err)
	}
	if created {
		f.ID = stored.ID
	}
	return stored, created, nil
}

func (s *FollowupStore) Get(ctx context.Context, id string) (*model.Followup, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore GetFollowup: %w", err)
	}
	return fromSnapshot(snap)
}

func (s *FollowupStore) List(ctx context.Context, userID string, statuses []model.FollowupStatus, direction model.FollowupDirection) ([]model.Followup, error) {
	if len(statuses) == 0 {
		return []model.Followup{}, nil
	}
	wanted := make([]string, 0, len(statuses))
	for _, st := range statuses {
		wanted = append(wanted, string(st))
	}
	q := s.col().Where("user_id", "==", userID).Where("status", "in", wanted)
	if direction != "" {
		q = q.Where("direction", "==", string(direction))
	}
	return collect(q.OrderBy("due_at", firestore.Asc).Documents(ctx))
}

func (s *FollowupStore) ListDueForReminder(ctx context.Context, now, remindedBefore time.Time, limit int) ([]model.Followup, error) {
	q := s.col().
		Where("status", "in", openStatuses()).
		Where("due_at", "<=", now).
		OrderBy("due_at", firestore.Asc)
	all, err := collect(q.Documents(ctx))
	if err != nil {
		return nil, err
	}
	// Firestore cannot combine the null check with the range filter on due_at.
	out := []model.Followup{}
	for _, f := range all {
		if f.LastReminderAt != nil && !f.LastReminderAt.Before(remindedBefore) {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func collect(iter *firestore.DocumentIterator) ([]model.Followup, error) {
	defer iter.Stop()

	out := []model.Followup{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore list followups: %w", err)
		}
		f, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *FollowupStore) Update(ctx context.Context, id string, patch model.FollowupPatch) (*model.Followup, error) {
	ref := s.col().Doc(id)
	var updated *model.Followup
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repository.ErrNotFound
			}
			return err
		}
		f, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		patch.Apply(f)
		updated = f
		return tx.Set(ref, toFollowupDoc(f))
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("firestore UpdateFollowup: %w", err)
	}
	return updated, nil
}

func (s *FollowupStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return repository.ErrNotFound
		}
		return fmt.Errorf("firestore DeleteFollowup: %w", err)
	}
	return nil
}

func (s *FollowupStore) FindOpenByThreadKey(ctx context.Context, userID, threadKey string) (*model.Followup, error) {
	out, err := collect(s.openByThreadKey(userID, threadKey).Documents(ctx))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
