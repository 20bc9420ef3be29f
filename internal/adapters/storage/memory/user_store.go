package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.UserProfile
}

func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*domain.UserProfile),
	}
}

// CreateUser stores profile unless one with the same email exists.
func (s *UserStore) CreateUser(_ context.Context, profile *domain.UserProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[profile.Email]; exists {
		return false, nil
	}
	cp := *profile
	s.users[profile.Email] = &cp
	return true, nil
}

func (s *UserStore) GetUser(_ context.Context, email string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
