package dev

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

// Provider treats the bearer token as the user's email address.
// It does no verification and is only suitable for local mode.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Resolve(_ context.Context, token string) (domain.Identity, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(token))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("dev identity: %w", err)
	}
	return domain.Identity{
		EmailAddress: strings.ToLower(addr.Address),
		DisplayName:  addr.Name,
	}, nil
}
