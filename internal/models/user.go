package models

import "time"

// User represents an account known to the identity layer. IDs are UUIDs so
// they can double as the profile id on the application side.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	OAuthProvider  string
	OAuthSubject   string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session represents an authenticated session
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Auth code types. Magic-link and recovery codes arrive by email; oauth
// codes bridge the provider callback into the common exchange path.
const (
	CodeTypeMagicLink = "magiclink"
	CodeTypeRecovery  = "recovery"
	CodeTypeOAuth     = "oauth"
)

// AuthCode is a single-use code exchanged for a session at /auth/callback.
type AuthCode struct {
	Code      string
	UserID    string
	CodeType  string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired checks if the code has expired
func (c *AuthCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
