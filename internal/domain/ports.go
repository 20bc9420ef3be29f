package domain

import "context"

// ChatModel is the hosted chat-completion endpoint: the full turn list in, the
// assistant text out.
type ChatModel interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// AgentStore persists user-created agents. Creation is append-only.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id AgentID) (*Agent, error)
	ListAgentsByOwner(ctx context.Context, email string) ([]*Agent, error)
}

// ChatStore persists transcripts as history records.
type ChatStore interface {
	SaveChat(ctx context.Context, rec *HistoryRecord) error
	GetChat(ctx context.Context, id ChatID) (*HistoryRecord, error)
	ListChatsByOwner(ctx context.Context, email string) ([]*HistoryRecord, error)
}

// UserStore holds signup profiles. CreateUser reports false when the profile
// already existed.
type UserStore interface {
	CreateUser(ctx context.Context, profile *UserProfile) (bool, error)
	GetUser(ctx context.Context, email string) (*UserProfile, error)
}

// ObjectStore uploads one object into a fixed bucket and returns its public URL.
type ObjectStore interface {
	UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// IdentityProvider resolves a session token into an identity.
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}
