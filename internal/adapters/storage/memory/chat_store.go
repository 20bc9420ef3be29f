package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// ChatStore is an in-memory domain.ChatStore. SaveChat overwrites by id.
type ChatStore struct {
	mu    sync.RWMutex
	chats map[domain.ChatID]*domain.HistoryRecord

	// Err, when set, is returned by every call.
	Err error
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		chats: make(map[domain.ChatID]*domain.HistoryRecord),
	}
}

func (s *ChatStore) SaveChat(_ context.Context, rec *domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.chats[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *ChatStore) GetChat(_ context.Context, id domain.ChatID) (*domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	rec, ok := s.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListChatsByOwner returns the owner's records in no particular order.
func (s *ChatStore) ListChatsByOwner(_ context.Context, email string) ([]*domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	var out []*domain.HistoryRecord
	for _, rec := range s.chats {
		if rec.UserEmail == email {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *ChatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

func cloneRecord(rec *domain.HistoryRecord) *domain.HistoryRecord {
	cp := *rec
	cp.Messages = append([]domain.Turn(nil), rec.Messages...)
	return &cp
}
