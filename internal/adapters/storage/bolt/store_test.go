package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anima.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestChatsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	rec := &domain.HistoryRecord{
		ID:        "c1",
		AgentID:   "1",
		AgentName: "Pizza Bot",
		Messages: []domain.Turn{
			domain.NewTextTurn(domain.RoleUser, "hello"),
			{Role: domain.RoleUser, Content: domain.PartsContent(domain.TextPart("look"), domain.ImagePart("https://cdn/a.jpg"))},
		},
		LastModified: 1700000000000,
		UserEmail:    "a@x",
	}
	require.NoError(t, s.SaveChat(ctx, rec))
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.True(t, got.Messages[1].Equal(rec.Messages[1]))
	assert.Equal(t, rec.LastModified, got.LastModified)

	mine, err := s.ListChatsByOwner(ctx, "a@x")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = s.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAgentsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	a := &domain.Agent{ID: "100", Name: "Chef", PersonaPrompt: "cook", Emoji: "🍝", IsUserCreated: true, OwnerEmail: "a@x"}
	require.NoError(t, s.CreateAgent(ctx, a))
	assert.Error(t, s.CreateAgent(ctx, a))
	require.NoError(t, s.CreateAgent(ctx, &domain.Agent{ID: "200", Name: "Other", OwnerEmail: "b@x"}))

	mine, err := s.ListAgentsByOwner(ctx, "a@x")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Chef", mine[0].Name)

	got, err := s.GetAgent(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, *a, *got)
}

func TestCreateUserOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	created, err := s.CreateUser(ctx, &domain.UserProfile{Email: "a@x", Name: "A", Credits: 20})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateUser(ctx, &domain.UserProfile{Email: "a@x", Credits: 0})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := s.GetUser(ctx, "a@x")
	require.NoError(t, err)
	assert.Equal(t, 20, u.Credits)
}
