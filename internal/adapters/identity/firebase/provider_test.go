package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	tok, ok := f[idToken]
	if !ok {
		return nil, errors.New("token expired")
	}
	return tok, nil
}

func TestResolveMapsClaims(t *testing.T) {
	p := NewWithVerifier(fakeVerifier{
		"good": {UID: "u1", Claims: map[string]interface{}{
			"email":   "ana@example.com",
			"name":    "Ana",
			"picture": "https://img/ana.png",
		}},
		"anonymous": {UID: "u2", Claims: map[string]interface{}{}},
	})

	id, err := p.Resolve(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.EmailAddress)
	assert.Equal(t, "Ana", id.DisplayName)
	assert.Equal(t, "https://img/ana.png", id.AvatarURL)

	_, err = p.Resolve(context.Background(), "anonymous")
	assert.ErrorContains(t, err, "no email")

	_, err = p.Resolve(context.Background(), "bad")
	assert.ErrorContains(t, err, "token expired")
}
