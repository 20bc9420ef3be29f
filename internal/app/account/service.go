package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

type ctxKey struct{}

// WithIdentity stores the signed-in identity in ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CurrentUser returns the identity the auth middleware resolved for ctx.
func CurrentUser(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok && id.EmailAddress != ""
}

// ConversationCloser ends every open conversation of a user.
type ConversationCloser interface {
	CloseAllFor(ctx context.Context, owner domain.Identity) int
}

type SessionOutcome struct {
	Identity domain.Identity `json:"identity"`
	NewUser  bool            `json:"new_user"`
}

// Service handles sign-in, sign-out and the signup profile.
type Service struct {
	identity      domain.IdentityProvider
	users         domain.UserStore
	conversations ConversationCloser
	now           func() time.Time
}

func NewService(identity domain.IdentityProvider, users domain.UserStore, conversations ConversationCloser) *Service {
	return &Service{
		identity:      identity,
		users:         users,
		conversations: conversations,
		now:           time.Now,
	}
}

// Authenticate resolves a bearer token into an identity.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	id, err := s.identity.Resolve(ctx, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if id.EmailAddress == "" {
		return domain.Identity{}, fmt.Errorf("%w: identity has no email", domain.ErrUnauthenticated)
	}
	return id, nil
}

// SignIn resolves token and writes the signup profile the first time a user is
// seen. A profile write failure does not fail sign-in.
func (s *Service) SignIn(ctx context.Context, token string) (SessionOutcome, error) {
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		observability.LoggerFromContext(ctx).Info("sign-in rejected", "error", err)
		return SessionOutcome{}, err
	}
	log := observability.LoggerFromContext(ctx).With("user", id.EmailAddress)

	name := id.DisplayName
	if name == "" {
		name, _, _ = strings.Cut(id.EmailAddress, "@")
	}
	profile := &domain.UserProfile{
		Email:      id.EmailAddress,
		Name:       name,
		JoinedDate: s.now().UnixMilli(),
		Credits:    domain.SignupCredits,
	}

	created, err := s.users.CreateUser(ctx, profile)
	if err != nil {
		log.Error("failed to write signup profile", "error", err)
		return SessionOutcome{Identity: id}, nil
	}
	if created {
		log.Info("user signed up", "credits", profile.Credits)
	} else {
		log.Info("user signed in")
	}
	return SessionOutcome{Identity: id, NewUser: created}, nil
}

// SignOut closes, and thereby persists, every open conversation of id.
func (s *Service) SignOut(ctx context.Context, id domain.Identity) int {
	n := 0
	if s.conversations != nil {
		n = s.conversations.CloseAllFor(ctx, id)
	}
	observability.LoggerFromContext(ctx).Info("user signed out",
		"user", id.EmailAddress,
		"closed_conversations", n)
	return n
}

// Profile returns the stored signup profile for id.
func (s *Service) Profile(ctx context.Context, id domain.Identity) (*domain.UserProfile, error) {
	return s.users.GetUser(ctx, id.EmailAddress)
}
