package firebase

import (
	"context"
	"fmt"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// TokenVerifier is the part of *auth.Client the provider needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Provider verifies Firebase Auth ID tokens.
type Provider struct {
	verifier TokenVerifier
}

// New initializes a Firebase app for projectID using application default
// credentials and returns a provider backed by its auth client.
func New(ctx context.Context, projectID string) (*Provider, error) {
	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return &Provider{verifier: client}, nil
}

// NewWithVerifier builds a provider around an existing verifier.
func NewWithVerifier(v TokenVerifier) *Provider {
	return &Provider{verifier: v}
}

func (p *Provider) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	tok, err := p.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("firebase verify token: %w", err)
	}

	email := claim(tok, "email")
	if email == "" {
		return domain.Identity{}, fmt.Errorf("firebase token for %s has no email claim", tok.UID)
	}
	return domain.Identity{
		EmailAddress: email,
		DisplayName:  claim(tok, "name"),
		AvatarURL:    claim(tok, "picture"),
	}, nil
}

func claim(tok *auth.Token, key string) string {
	if tok == nil || tok.Claims == nil {
		return ""
	}
	s, _ := tok.Claims[key].(string)
	return s
}
