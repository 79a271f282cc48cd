package authsdk

import "github.com/aussiebroadwan/authority/pkg/jwtx"

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is returned when a session is issued or refreshed.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// MeResponse describes the caller of GET /v1/me.
type MeResponse struct {
	Subject   string   `json:"sub"`
	UserID    string   `json:"user_id"`
	ClientID  string   `json:"client_id"`
	Roles     []string `json:"roles"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}

// NewMeResponse flattens validated claims for the wire.
func NewMeResponse(c *jwtx.Claims) MeResponse {
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	return MeResponse{
		Subject:   c.Subject,
		UserID:    c.UserID,
		ClientID:  c.ClientID,
		Roles:     roles,
		IssuedAt:  c.IssuedAt.Unix(),
		ExpiresAt: c.ExpiresAt.Unix(),
	}
}

// ConfirmationResponse identifies the registration a confirmation link
// belongs to.
type ConfirmationResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// SessionRequest asks the authority to open a session for an identity the
// caller has already authenticated.
type SessionRequest struct {
	ClientID string   `json:"client_id"`
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// ConfirmationRequest asks for a registration confirmation token.
type ConfirmationRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IssuedConfirmation carries a freshly minted confirmation token for the
// caller to embed in the link it emails.
type IssuedConfirmation struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// HealthResponse is returned by /livez and /readyz. Checks is only set on
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
