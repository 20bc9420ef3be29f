package domain

type ChatID string
type AgentID string

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three transcript roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// LoadingSentinel is the content of the transient assistant turn shown while a
// completion is in flight. It must never survive as final content.
const LoadingSentinel = "...loading"

// ApologyText replaces the placeholder when the completion call fails.
const ApologyText = "Sorry, something went wrong. Please try again."

// Identity is the resolved user as seen by the core. The auth protocol itself
// lives in the identity provider.
type Identity struct {
	EmailAddress string `json:"email_address"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url"`
}

// UserProfile is the users/<email> record written once at signup.
type UserProfile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	JoinedDate int64  `json:"joinedDate"` // unix millis
	Credits    int    `json:"credits"`
}

// SignupCredits is the credit balance given to a new profile.
const SignupCredits = 20
