package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// AgentStore is an in-memory domain.AgentStore.
// It is NOT persistent and is only suitable for development / local mode.
type AgentStore struct {
	mu      sync.RWMutex
	agents  map[domain.AgentID]*domain.Agent
	byOwner map[string][]domain.AgentID
}

func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents:  make(map[domain.AgentID]*domain.Agent),
		byOwner: make(map[string][]domain.AgentID),
	}
}

func (s *AgentStore) CreateAgent(_ context.Context, agent *domain.Agent) error {
	if agent == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; exists {
		return errors.New("agent already exists")
	}

	cp := *agent
	s.agents[agent.ID] = &cp
	s.byOwner[agent.OwnerEmail] = append(s.byOwner[agent.OwnerEmail], agent.ID)
	return nil
}

func (s *AgentStore) GetAgent(_ context.Context, id domain.AgentID) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAgentsByOwner returns the owner's agents, oldest first.
func (s *AgentStore) ListAgentsByOwner(_ context.Context, email string) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[email]
	out := make([]*domain.Agent, 0, len(ids))
	for _, id := range ids {
		cp := *s.agents[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
