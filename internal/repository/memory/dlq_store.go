package memory

import (
	"context"
	"sync"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"github.com/google/uuid"
)

type DLQStore struct {
	mu       sync.Mutex
	messages []model.DeadLetterMessage
}

func NewDLQStore() *DLQStore {
	return &DLQStore{}
}

var _ repository.DLQRepository = (*DLQStore)(nil)

func (s *DLQStore) Create(_ context.Context, message *model.DeadLetterMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	message.ID = uuid.NewString()
	message.CreatedAt = now
	message.UpdatedAt = now
	s.messages = append(s.messages, *message)
	return nil
}

// Messages returns a copy of everything recorded so far.
func (s *DLQStore) Messages() []model.DeadLetterMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DeadLetterMessage(nil), s.messages...)
}
