package domain

// Agent is a persona/prompt template a conversation can start from.
type Agent struct {
	ID            AgentID `json:"id"`
	Name          string  `json:"name"`
	PersonaPrompt string  `json:"prompt"`
	Emoji         string  `json:"emoji,omitempty"`
	IsUserCreated bool    `json:"isUserCreated"`

	// Preset-only metadata
	Description string `json:"desc,omitempty"`
	InitialText string `json:"initialText,omitempty"`
	Kind        string `json:"type,omitempty"`
	Featured    bool   `json:"featured"`

	// OwnerEmail is set for user-created agents.
	OwnerEmail string `json:"userEmail,omitempty"`
}

// HistoryRecord is a persisted transcript for one user and agent.
type HistoryRecord struct {
	ID           ChatID  `json:"id"`
	AgentID      AgentID `json:"agentId"`
	AgentName    string  `json:"agentName"`
	AgentPrompt  string  `json:"agentPrompt"`
	Emoji        string  `json:"emoji,omitempty"`
	Messages     []Turn  `json:"messages"`
	LastModified int64   `json:"lastModified"` // unix millis
	UserEmail    string  `json:"userEmail"`
}
