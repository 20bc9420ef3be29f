package firestore

import (
	"fmt"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

// Field names match the documents the mobile app already writes.

type agentDoc struct {
	AgentID   string `firestore:"agentId"`
	AgentName string `firestore:"agentName"`
	Prompt    string `firestore:"prompt"`
	Emoji     string `firestore:"emoji"`
	UserEmail string `firestore:"userEmail"`
}

type chatDoc struct {
	AgentID      string           `firestore:"agentId"`
	AgentName    string           `firestore:"agentName"`
	AgentPrompt  string           `firestore:"agentPrompt"`
	Emoji        string           `firestore:"emoji"`
	Messages     []map[string]any `firestore:"messages"`
	LastModified int64            `firestore:"lastModified"`
	UserEmail    string           `firestore:"userEmail"`
}

type userDoc struct {
	Email      string `firestore:"email"`
	Name       string `firestore:"name"`
	JoinedDate int64  `firestore:"joinedDate"`
	Credits    int    `firestore:"credits"`
}

func agentToDoc(a *domain.Agent) agentDoc {
	return agentDoc{
		AgentID:   string(a.ID),
		AgentName: a.Name,
		Prompt:    a.PersonaPrompt,
		Emoji:     a.Emoji,
		UserEmail: a.OwnerEmail,
	}
}

func (d agentDoc) toDomain(docID string) *domain.Agent {
	id := d.AgentID
	if id == "" {
		id = docID
	}
	return &domain.Agent{
		ID:            domain.AgentID(id),
		Name:          d.AgentName,
		PersonaPrompt: d.Prompt,
		Emoji:         d.Emoji,
		IsUserCreated: true,
		OwnerEmail:    d.UserEmail,
	}
}

func chatToDoc(rec *domain.HistoryRecord) chatDoc {
	msgs := make([]map[string]any, 0, len(rec.Messages))
	for _, t := range rec.Messages {
		msgs = append(msgs, domain.TurnToValue(t))
	}
	return chatDoc{
		AgentID:      string(rec.AgentID),
		AgentName:    rec.AgentName,
		AgentPrompt:  rec.AgentPrompt,
		Emoji:        rec.Emoji,
		Messages:     msgs,
		LastModified: rec.LastModified,
		UserEmail:    rec.UserEmail,
	}
}

func (d chatDoc) toDomain(docID string) (*domain.HistoryRecord, error) {
	turns := make([]domain.Turn, 0, len(d.Messages))
	for i, m := range d.Messages {
		t, err := domain.TurnFromValue(m)
		if err != nil {
			return nil, fmt.Errorf("chat %s message %d: %w", docID, i, err)
		}
		turns = append(turns, t)
	}
	return &domain.HistoryRecord{
		ID:           domain.ChatID(docID),
		AgentID:      domain.AgentID(d.AgentID),
		AgentName:    d.AgentName,
		AgentPrompt:  d.AgentPrompt,
		Emoji:        d.Emoji,
		Messages:     turns,
		LastModified: d.LastModified,
		UserEmail:    d.UserEmail,
	}, nil
}
