package history

import (
	"context"
	"sort"
	"strings"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

const (
	PreviewMedia = "Media message"
	PreviewEmpty = "No messages yet..."
)

// Item is one row of the history list.
type Item struct {
	ID           domain.ChatID  `json:"id"`
	AgentID      domain.AgentID `json:"agentId"`
	AgentName    string         `json:"agentName"`
	Emoji        string         `json:"emoji,omitempty"`
	Preview      string         `json:"preview"`
	LastModified int64          `json:"lastModified"`
	MessageCount int            `json:"messageCount"`
}

// Service builds the searchable history list of a user.
type Service struct {
	chats domain.ChatStore
}

// NewService creates a history list over a ChatStore.
func NewService(chats domain.ChatStore) *Service {
	return &Service{chats: chats}
}

// List returns the owner's non-empty records, newest first, filtered by term.
// A store failure yields an empty list.
func (s *Service) List(ctx context.Context, owner, term string) []Item {
	log := observability.LoggerFromContext(ctx).With("user", owner)

	records, err := s.chats.ListChatsByOwner(ctx, owner)
	if err != nil {
		log.Warn("failed to load history", "error", err)
		return []Item{}
	}

	kept := records[:0]
	for _, rec := range records {
		if rec == nil || len(rec.Messages) == 0 {
			continue
		}
		kept = append(kept, rec)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].LastModified > kept[j].LastModified
	})

	out := make([]Item, 0, len(kept))
	for _, rec := range kept {
		if !Matches(rec, term) {
			continue
		}
		out = append(out, Item{
			ID:           rec.ID,
			AgentID:      rec.AgentID,
			AgentName:    rec.AgentName,
			Emoji:        rec.Emoji,
			Preview:      Preview(rec),
			LastModified: rec.LastModified,
			MessageCount: len(rec.Messages),
		})
	}

	log.Info("history listed", "records", len(records), "matched", len(out))
	return out
}

// Matches reports whether term (case-insensitive) occurs in the agent name or in
// any turn's display text. A blank term matches everything.
func Matches(rec *domain.HistoryRecord, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.AgentName), term) {
		return true
	}
	for _, t := range rec.Messages {
		if text, ok := t.DisplayText(); ok && strings.Contains(strings.ToLower(text), term) {
			return true
		}
	}
	return false
}

// Preview is the text shown under a history row: the last visible turn.
func Preview(rec *domain.HistoryRecord) string {
	for i := len(rec.Messages) - 1; i >= 0; i-- {
		t := rec.Messages[i]
		if t.Role == domain.RoleSystem || t.IsPlaceholder() {
			continue
		}
		if text, ok := t.Content.FirstText(); ok && text != "" {
			return text
		}
		return PreviewMedia
	}
	return PreviewEmpty
}
