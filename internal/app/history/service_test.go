package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/anima-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/anima-agent/internal/app/history"
	"github.com/PabloGalante/anima-agent/internal/domain"
)

const owner = "ana@example.com"

func rec(id, agent string, modified int64, turns ...domain.Turn) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		ID:           domain.ChatID(id),
		AgentName:    agent,
		Messages:     turns,
		LastModified: modified,
		UserEmail:    owner,
	}
}

func user(text string) domain.Turn      { return domain.NewTextTurn(domain.RoleUser, text) }
func assistant(text string) domain.Turn { return domain.NewTextTurn(domain.RoleAssistant, text) }

func seed(t *testing.T, records ...*domain.HistoryRecord) *memory.ChatStore {
	t.Helper()
	store := memory.NewChatStore()
	for _, r := range records {
		require.NoError(t, store.SaveChat(context.Background(), r))
	}
	return store
}

func ids(items []history.Item) []domain.ChatID {
	out := make([]domain.ChatID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestListSortsAndDropsEmpty(t *testing.T) {
	store := seed(t,
		rec("old", "Fitness Coach", 100, user("squats?")),
		rec("empty", "Pizza Bot", 900),
		rec("new", "Code Buddy", 500, user("review this"), assistant("looks fine")),
	)
	other := rec("foreign", "Pizza Bot", 999, user("pizza"))
	other.UserEmail = "bob@example.com"
	require.NoError(t, store.SaveChat(context.Background(), other))

	items := history.NewService(store).List(context.Background(), owner, "")

	assert.Equal(t, []domain.ChatID{"new", "old"}, ids(items))
	assert.Equal(t, "looks fine", items[0].Preview)
	assert.Equal(t, 2, items[0].MessageCount)
}

func TestListFiltersByAgentNameOrMessage(t *testing.T) {
	store := seed(t,
		rec("a", "Pizza Bot", 300, user("hello")),
		rec("b", "Travel Planner", 200, user("best PIZZA in Naples?")),
		rec("c", "Code Buddy", 100, user("nil pointer")),
	)
	svc := history.NewService(store)

	assert.Equal(t, []domain.ChatID{"a", "b"}, ids(svc.List(context.Background(), owner, "pizza")))
	assert.Equal(t, []domain.ChatID{"c"}, ids(svc.List(context.Background(), owner, "  NIL ")))
	assert.Empty(t, svc.List(context.Background(), owner, "sushi"))
	assert.Len(t, svc.List(context.Background(), owner, "   "), 3)
}

func TestSystemTurnsAreNotSearchable(t *testing.T) {
	store := seed(t, rec("a", "Chef", 1,
		domain.NewTextTurn(domain.RoleSystem, "You are a pizza expert."),
		user("hello"),
	))

	assert.Empty(t, history.NewService(store).List(context.Background(), owner, "pizza"))
}

func TestListReadFailureIsEmpty(t *testing.T) {
	store := memory.NewChatStore()
	store.Err = errors.New("unavailable")

	items := history.NewService(store).List(context.Background(), owner, "")
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestPreview(t *testing.T) {
	media := domain.Turn{Role: domain.RoleUser, Content: domain.PartsContent(domain.ImagePart("https://cdn/a.jpg"))}
	withText := domain.Turn{Role: domain.RoleUser, Content: domain.PartsContent(domain.TextPart("look"), domain.ImagePart("https://cdn/a.jpg"))}

	cases := []struct {
		name  string
		turns []domain.Turn
		want  string
	}{
		{"text", []domain.Turn{user("a"), assistant("b")}, "b"},
		{"media only", []domain.Turn{media}, history.PreviewMedia},
		{"parts with text", []domain.Turn{withText}, "look"},
		{"system only", []domain.Turn{domain.NewTextTurn(domain.RoleSystem, "p")}, history.PreviewEmpty},
		{"none", nil, history.PreviewEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, history.Preview(rec("x", "A", 0, tc.turns...)))
		})
	}
}
