package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

var (
	agentsBucket = []byte("agents")
	chatsBucket  = []byte("chats")
	usersBucket  = []byte("users")
)

var errExists = errors.New("already exists")

// Store keeps agents, chats and users as JSON values in a single bbolt file.
// The file is locked by one process at a time.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path and makes sure every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{agentsBucket, chatsBucket, usersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v any, onlyNew bool) error {
	b := tx.Bucket(bucket)
	if onlyNew && b.Get([]byte(key)) != nil {
		return errExists
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}
	return b.Put([]byte(key), data)
}

func get(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", bucket, err)
	}
	return nil
}

// AgentStore

func (s *Store) CreateAgent(_ context.Context, agent *domain.Agent) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, agentsBucket, string(agent.ID), agent, true)
	})
	if err != nil {
		return fmt.Errorf("bolt CreateAgent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(_ context.Context, id domain.AgentID) (*domain.Agent, error) {
	var a domain.Agent
	if err := s.db.View(func(tx *bolt.Tx) error { return get(tx, agentsBucket, string(id), &a) }); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAgentsByOwner scans the agents bucket. Keys are millisecond ids, so the
// result is in creation order.
func (s *Store) ListAgentsByOwner(_ context.Context, email string) ([]*domain.Agent, error) {
	var out []*domain.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(agentsBucket).ForEach(func(_, v []byte) error {
			var a domain.Agent
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal agent: %w", err)
			}
			if a.OwnerEmail == email {
				out = append(out, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt ListAgentsByOwner: %w", err)
	}
	return out, nil
}

// ChatStore

func (s *Store) SaveChat(_ context.Context, rec *domain.HistoryRecord) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, chatsBucket, string(rec.ID), rec, false)
	})
	if err != nil {
		return fmt.Errorf("bolt SaveChat: %w", err)
	}
	return nil
}

func (s *Store) GetChat(_ context.Context, id domain.ChatID) (*domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	if err := s.db.View(func(tx *bolt.Tx) error { return get(tx, chatsBucket, string(id), &rec) }); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListChatsByOwner(_ context.Context, email string) ([]*domain.HistoryRecord, error) {
	var out []*domain.HistoryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(chatsBucket).ForEach(func(_, v []byte) error {
			var rec domain.HistoryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal chat: %w", err)
			}
			if rec.UserEmail == email {
				out = append(out, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt ListChatsByOwner: %w", err)
	}
	return out, nil
}

// UserStore

func (s *Store) CreateUser(_ context.Context, profile *domain.UserProfile) (bool, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, usersBucket, profile.Email, profile, true)
	})
	if errors.Is(err, errExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bolt CreateUser: %w", err)
	}
	return true, nil
}

func (s *Store) GetUser(_ context.Context, email string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	if err := s.db.View(func(tx *bolt.Tx) error { return get(tx, usersBucket, email, &u) }); err != nil {
		return nil, err
	}
	return &u, nil
}
