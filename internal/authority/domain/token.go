package domain

import "time"

// TokenPair is what a login or refresh hands back: the short-lived signed
// access token and the opaque single-use refresh token. It is not a wire
// type; handlers convert it, ExpiresIn included, into their own response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string // typically "Bearer"
	ExpiresIn    time.Duration
}

// RefreshSession is the stored row behind a refresh token. There is at
// most one per (ClientID, UserID); a newer login overwrites it.
type RefreshSession struct {
	ClientID    string
	UserID      string
	TokenHash   string // base64url SHA-256 fingerprint of the opaque token
	AccessToken string // access token issued alongside the refresh token
	CreatedAt   time.Time
}

// ConfirmationToken proves control of an email address during sign-up.
// At most one exists per user.
type ConfirmationToken struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
