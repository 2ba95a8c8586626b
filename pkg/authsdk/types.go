package authsdk

import (
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/transport"
)

// Credentials are sent to the login endpoint. TOTPCode is only needed for
// accounts with a second factor enrolled.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty" validate:"omitempty,numeric,len=6"`
}

// TelegramCredentials identify a user signing in through the Telegram bot.
type TelegramCredentials struct {
	TelegramID int64  `json:"telegram_id" validate:"required,gt=0"`
	Username   string `json:"username" validate:"required"`
}

// CreateUserRequest registers a new user.
type CreateUserRequest struct {
	TelegramID int64          `json:"telegram_id" validate:"required,gt=0"`
	Username   string         `json:"username" validate:"required,min=3,max=32"`
	Settings   map[string]any `json:"settings,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// User is the account record returned by the identity service.
type User struct {
	ID         string     `json:"id"`
	TelegramID int64      `json:"telegram_id,omitempty"`
	Username   string     `json:"username"`
	Status     string     `json:"status,omitempty"`
	TrustLevel string     `json:"trust_level,omitempty"`
	Role       string     `json:"role,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastActive *time.Time `json:"last_active,omitempty"`

	// Settings and Metadata are kept as sent by the service
	Settings map[string]any `json:"settings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Meta transport.Meta `json:"-"`
}

// TokenPair is a snapshot of the session's tokens. Empty strings mean unset.
type TokenPair struct {
	Access  string
	Refresh string
}

// IsZero reports whether neither token is set.
func (p TokenPair) IsZero() bool {
	return p.Access == "" && p.Refresh == ""
}

// AuthResult is the normalized payload of a login or refresh.
type AuthResult struct {
	User   User
	Tokens TokenPair

	// ExpiresAt is when the access token expires, zero if unknown
	ExpiresAt time.Time

	Meta transport.Meta
}

// authResponse is the wire form of a login or refresh response.
type authResponse struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
