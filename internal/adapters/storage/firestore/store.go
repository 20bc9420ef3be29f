package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// Store implements AgentStore, ChatStore and UserStore on Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (ANIMA_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) agentsCol() *firestore.CollectionRef {
	return s.client.Collection("agents")
}

func (s *Store) chatsCol() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

func (s *Store) usersCol() *firestore.CollectionRef {
	return s.client.Collection("users")
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// AgentStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	_, err := s.agentsCol().Doc(string(agent.ID)).Create(ctx, agentToDoc(agent))
	if err != nil {
		return fmt.Errorf("firestore CreateAgent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id domain.AgentID) (*domain.Agent, error) {
	snap, err := s.agentsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetAgent: %w", err)
	}

	var doc agentDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetAgent decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *Store) ListAgentsByOwner(ctx context.Context, email string) ([]*domain.Agent, error) {
	iter := s.agentsCol().Where("userEmail", "==", email).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Agent
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListAgentsByOwner: %w", err)
		}

		var doc agentDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode agentDoc: %w", err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID))
	}
	return out, nil
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveChat(ctx context.Context, rec *domain.HistoryRecord) error {
	_, err := s.chatsCol().Doc(string(rec.ID)).Set(ctx, chatToDoc(rec))
	if err != nil {
		return fmt.Errorf("firestore SaveChat: %w", err)
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.HistoryRecord, error) {
	snap, err := s.chatsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetChat: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetChat decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID)
}

// ListChatsByOwner returns the owner's chats, most recently modified first.
func (s *Store) ListChatsByOwner(ctx context.Context, email string) ([]*domain.HistoryRecord, error) {
	q := s.chatsCol().Where("userEmail", "==", email).OrderBy("lastModified", firestore.Desc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.HistoryRecord
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListChatsByOwner: %w", err)
		}

		var doc chatDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode chatDoc: %w", err)
		}
		rec, err := doc.toDomain(snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ─────────────────────────────────────────
// UserStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, profile *domain.UserProfile) (bool, error) {
	_, err := s.usersCol().Doc(profile.Email).Create(ctx, userDoc{
		Email:      profile.Email,
		Name:       profile.Name,
		JoinedDate: profile.JoinedDate,
		Credits:    profile.Credits,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("firestore CreateUser: %w", err)
	}
	return true, nil
}

func (s *Store) GetUser(ctx context.Context, email string) (*domain.UserProfile, error) {
	snap, err := s.usersCol().Doc(email).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetUser: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetUser decode: %w", err)
	}
	return &domain.UserProfile{
		Email:      doc.Email,
		Name:       doc.Name,
		JoinedDate: doc.JoinedDate,
		Credits:    doc.Credits,
	}, nil
}
