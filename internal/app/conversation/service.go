package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// AgentResolver finds the agent a conversation starts from.
type AgentResolver interface {
	Get(ctx context.Context, id domain.AgentID, owner string) (*domain.Agent, error)
}

// Service keeps the open conversations of the process.
type Service struct {
	agents   AgentResolver
	model    domain.ChatModel
	uploader Uploader
	chats    domain.ChatStore
	notifier Notifier
	now      func() time.Time

	mu   sync.RWMutex
	open map[domain.ChatID]*Conversation
}

func NewService(
	agents AgentResolver,
	model domain.ChatModel,
	uploader Uploader,
	chats domain.ChatStore,
	notifier Notifier,
) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		agents:   agents,
		model:    model,
		uploader: uploader,
		chats:    chats,
		notifier: notifier,
		now:      time.Now,
		open:     make(map[domain.ChatID]*Conversation),
	}
}

type OpenInput struct {
	Owner   domain.Identity
	AgentID domain.AgentID
}

// Open starts a conversation for an agent. The persona is inserted once as the
// first, system turn.
func (s *Service) Open(ctx context.Context, in OpenInput) (*Conversation, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user", in.Owner.EmailAddress,
		"agent_id", in.AgentID,
	)

	agent, err := s.agents.Get(ctx, in.AgentID, in.Owner.EmailAddress)
	if err != nil {
		log.Error("failed to resolve agent", "error", err)
		return nil, err
	}

	var seed []domain.Turn
	if agent.PersonaPrompt != "" {
		seed = append(seed, domain.NewTextTurn(domain.RoleSystem, agent.PersonaPrompt))
	}

	c := s.register(domain.ChatID(uuid.NewString()), in.Owner, *agent, seed)
	log.Info("conversation opened", "chat_id", c.id)
	return c, nil
}

// Resume reopens a stored history record owned by owner. The record id is
// reused so later sends overwrite the same record.
func (s *Service) Resume(ctx context.Context, owner domain.Identity, id domain.ChatID) (*Conversation, error) {
	log := observability.LoggerFromContext(ctx).With("user", owner.EmailAddress, "chat_id", id)

	if c, err := s.Get(id, owner); err == nil {
		return c, nil
	}
	if s.chats == nil {
		return nil, domain.ErrNotFound
	}

	rec, err := s.chats.GetChat(ctx, id)
	if err != nil {
		log.Error("failed to load history record", "error", err)
		return nil, err
	}
	if rec.UserEmail != owner.EmailAddress {
		return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}

	agent := domain.Agent{
		ID:            rec.AgentID,
		Name:          rec.AgentName,
		PersonaPrompt: rec.AgentPrompt,
		Emoji:         rec.Emoji,
	}

	seed := make([]domain.Turn, 0, len(rec.Messages)+1)
	hasSystem := len(rec.Messages) > 0 && rec.Messages[0].Role == domain.RoleSystem
	if !hasSystem && rec.AgentPrompt != "" {
		seed = append(seed, domain.NewTextTurn(domain.RoleSystem, rec.AgentPrompt))
	}
	seed = append(seed, persistable(rec.Messages)...)

	c := s.register(rec.ID, owner, agent, seed)
	log.Info("conversation resumed", "turns", len(seed))
	return c, nil
}

func (s *Service) register(id domain.ChatID, owner domain.Identity, agent domain.Agent, seed []domain.Turn) *Conversation {
	c := &Conversation{
		id:         id,
		owner:      owner,
		agent:      agent,
		transcript: NewTranscript(seed...),
		model:      s.model,
		uploader:   s.uploader,
		chats:      s.chats,
		notifier:   s.notifier,
		now:        s.now,
		lastActive: s.now(),
	}
	c.transcript.OnChange(func(ch Change) {
		s.notifier.Publish(context.Background(), Event{
			ChatID:   id,
			Kind:     EventTurn,
			Change:   &ch,
			ScrollTo: ch.Index,
		})
	})

	s.mu.Lock()
	s.open[id] = c
	s.mu.Unlock()
	return c
}

// Get returns an open conversation owned by owner.
func (s *Service) Get(id domain.ChatID, owner domain.Identity) (*Conversation, error) {
	s.mu.RLock()
	c, ok := s.open[id]
	s.mu.RUnlock()

	if !ok || c.owner.EmailAddress != owner.EmailAddress {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// Close persists and discards a conversation.
func (s *Service) Close(ctx context.Context, id domain.ChatID, owner domain.Identity) error {
	c, err := s.Get(id, owner)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.open, id)
	s.mu.Unlock()

	c.Close(ctx)
	observability.LoggerFromContext(ctx).Info("conversation closed", "chat_id", id)
	return nil
}

// CloseAllFor closes every open conversation of owner and returns how many.
func (s *Service) CloseAllFor(ctx context.Context, owner domain.Identity) int {
	s.mu.Lock()
	var mine []*Conversation
	for id, c := range s.open {
		if c.owner.EmailAddress == owner.EmailAddress {
			mine = append(mine, c)
			delete(s.open, id)
		}
	}
	s.mu.Unlock()

	for _, c := range mine {
		c.Close(ctx)
	}
	return len(mine)
}

// CloseAll closes every open conversation, persisting each transcript.
func (s *Service) CloseAll(ctx context.Context) int {
	s.mu.Lock()
	all := make([]*Conversation, 0, len(s.open))
	for id, c := range s.open {
		all = append(all, c)
		delete(s.open, id)
	}
	s.mu.Unlock()

	for _, c := range all {
		c.Close(ctx)
	}
	return len(all)
}

// EvictIdle closes conversations unused for longer than ttl, persisting each
// one. Conversations with a send in flight are kept.
func (s *Service) EvictIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var idle []*Conversation
	for id, c := range s.open {
		since, busy := c.idleSince()
		if busy || since.After(cutoff) {
			continue
		}
		idle = append(idle, c)
		delete(s.open, id)
	}
	s.mu.Unlock()

	for _, c := range idle {
		c.Close(ctx)
	}
	if len(idle) > 0 {
		observability.LoggerFromContext(ctx).Info("evicted idle conversations", "count", len(idle), "ttl", ttl.String())
	}
	return len(idle)
}

// SweepIdle runs EvictIdle every interval until ctx is done.
func (s *Service) SweepIdle(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(context.WithoutCancel(ctx), ttl)
		}
	}
}

// OpenCount is the number of live conversations.
func (s *Service) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open)
}
