package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// Service serves preset agents and writes user-created ones.
type Service struct {
	presets []domain.Agent
	byID    map[domain.AgentID]int
	store   domain.AgentStore
	now     func() time.Time
}

// NewService creates a catalog from presets and an AgentStore. store can be an
// in-memory, bolt or Firestore implementation.
func NewService(presets []domain.Agent, store domain.AgentStore) *Service {
	byID := make(map[domain.AgentID]int, len(presets))
	for i, a := range presets {
		byID[a.ID] = i
	}
	return &Service{
		presets: presets,
		byID:    byID,
		store:   store,
		now:     time.Now,
	}
}

// ListPresets returns presets, optionally only those whose featured flag
// equals *featured.
func (s *Service) ListPresets(featured *bool) []domain.Agent {
	out := make([]domain.Agent, 0, len(s.presets))
	for _, a := range s.presets {
		if featured != nil && a.Featured != *featured {
			continue
		}
		out = append(out, a)
	}
	return out
}

type CreateAgentInput struct {
	Name   string
	Emoji  string
	Prompt string
	Owner  string
}

// CreateAgent validates and appends one user agent keyed by the current Unix
// millisecond timestamp.
func (s *Service) CreateAgent(ctx context.Context, in CreateAgentInput) (domain.AgentID, error) {
	log := observability.LoggerFromContext(ctx).With("user", in.Owner)

	name := strings.TrimSpace(in.Name)
	emoji := strings.TrimSpace(in.Emoji)
	prompt := strings.TrimSpace(in.Prompt)
	if name == "" || emoji == "" || prompt == "" {
		return "", domain.ErrMissingFields
	}

	agent := &domain.Agent{
		ID:            generateID(s.now()),
		Name:          name,
		PersonaPrompt: prompt,
		Emoji:         emoji,
		IsUserCreated: true,
		OwnerEmail:    in.Owner,
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		log.Error("failed to create agent", "error", err)
		return "", fmt.Errorf("create agent: %w", err)
	}

	log.Info("agent created", "agent_id", agent.ID)
	return agent.ID, nil
}

// ListUserAgents returns the agents owner created.
func (s *Service) ListUserAgents(ctx context.Context, owner string) ([]*domain.Agent, error) {
	agents, err := s.store.ListAgentsByOwner(ctx, owner)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list user agents", "user", owner, "error", err)
		return nil, err
	}
	return agents, nil
}

// Get resolves a preset first, then a user agent owned by owner.
func (s *Service) Get(ctx context.Context, id domain.AgentID, owner string) (*domain.Agent, error) {
	if i, ok := s.byID[id]; ok {
		a := s.presets[i]
		return &a, nil
	}

	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	if a.OwnerEmail != owner {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func generateID(now time.Time) domain.AgentID {
	return domain.AgentID(strconv.FormatInt(now.UnixMilli(), 10))
}
