package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/anima-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/anima-agent/internal/domain"
)

type failingAgentStore struct{ *memory.AgentStore }

func (failingAgentStore) CreateAgent(context.Context, *domain.Agent) error {
	return errors.New("write refused")
}

func newTestService(t *testing.T) (*Service, *memory.AgentStore) {
	t.Helper()
	presets, err := DefaultPresets()
	require.NoError(t, err)
	store := memory.NewAgentStore()
	svc := NewService(presets, store)
	svc.now = func() time.Time { return time.UnixMilli(1712345678901) }
	return svc, store
}

func TestDefaultPresetsLoad(t *testing.T) {
	presets, err := DefaultPresets()
	require.NoError(t, err)
	require.NotEmpty(t, presets)

	for _, p := range presets {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.PersonaPrompt)
		assert.False(t, p.IsUserCreated)
	}
}

func TestParsePresetsRejectsDuplicates(t *testing.T) {
	_, err := ParsePresets([]byte(`
- {id: "1", name: A, prompt: a}
- {id: "1", name: B, prompt: b}
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParsePresets([]byte(`- {id: "1", name: A}`))
	assert.Error(t, err)
}

func TestListPresetsFeaturedFilter(t *testing.T) {
	svc, _ := newTestService(t)

	all := svc.ListPresets(nil)
	yes, no := true, false
	featured := svc.ListPresets(&yes)
	rest := svc.ListPresets(&no)

	assert.Equal(t, len(all), len(featured)+len(rest))
	for _, a := range featured {
		assert.True(t, a.Featured)
	}
	for _, a := range rest {
		assert.False(t, a.Featured)
	}
}

func TestCreateAgent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	id, err := svc.CreateAgent(ctx, CreateAgentInput{
		Name:   " Chef ",
		Emoji:  "🍝",
		Prompt: "You cook pasta.",
		Owner:  "a@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentID("1712345678901"), id)

	got, err := store.GetAgent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Chef", got.Name)
	assert.Equal(t, "a@x.com", got.OwnerEmail)
	assert.True(t, got.IsUserCreated)

	mine, err := svc.ListUserAgents(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateAgentMissingFieldsWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	cases := []CreateAgentInput{
		{Emoji: "🍝", Prompt: "p", Owner: "a@x"},
		{Name: "n", Prompt: "p", Owner: "a@x"},
		{Name: "n", Emoji: "🍝", Prompt: "   ", Owner: "a@x"},
	}
	for _, in := range cases {
		_, err := svc.CreateAgent(ctx, in)
		assert.ErrorIs(t, err, domain.ErrMissingFields)
	}

	mine, err := store.ListAgentsByOwner(ctx, "a@x")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreateAgentStoreFailure(t *testing.T) {
	presets, _ := DefaultPresets()
	svc := NewService(presets, failingAgentStore{memory.NewAgentStore()})

	_, err := svc.CreateAgent(context.Background(), CreateAgentInput{Name: "n", Emoji: "e", Prompt: "p"})
	assert.ErrorContains(t, err, "write refused")
}

func TestGetResolvesPresetThenOwnedAgent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	p, err := svc.Get(ctx, "1", "anyone")
	require.NoError(t, err)
	assert.Equal(t, "Pizza Bot", p.Name)

	id, err := svc.CreateAgent(ctx, CreateAgentInput{Name: "n", Emoji: "e", Prompt: "p", Owner: "a@x"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, id, "a@x")
	assert.NoError(t, err)

	_, err = svc.Get(ctx, id, "b@x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, "missing", "a@x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
