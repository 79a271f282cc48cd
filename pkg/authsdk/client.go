package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InternalTokenHeader carries the shared secret that guards the routes
// trusted collaborators use to open sessions and mint confirmation tokens.
const InternalTokenHeader = "X-Internal-Token"

// SDKClient talks to the token authority over HTTP.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// InternalToken is sent on internal routes. Leave empty for public
	// clients.
	InternalToken string
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token stops working whether or not the call succeeds on the wire.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{"refresh_token": {refreshToken}}
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/token/refresh",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout revokes accessToken and ends the session it belongs to.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/logout", nil, bearer(accessToken))
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the claims of accessToken as the authority sees them.
func (c *SDKClient) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/me", nil, bearer(accessToken))
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// ConfirmRegistration checks a confirmation link token. It does not
// consume it.
func (c *SDKClient) ConfirmRegistration(ctx context.Context, token string) (*ConfirmationResponse, error) {
	q := url.Values{"token": {token}}
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/registration/confirm?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	var out ConfirmationResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// IssueSession opens a session for an already authenticated identity.
// Requires InternalToken.
func (c *SDKClient) IssueSession(ctx context.Context, req SessionRequest) (*TokenResponse, error) {
	resp, err := c.doInternal(ctx, http.MethodPost, "/v1/internal/sessions", req)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusCreated); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// IssueConfirmation mints a registration confirmation token, replacing any
// earlier one for the same user. Requires InternalToken.
func (c *SDKClient) IssueConfirmation(ctx context.Context, req ConfirmationRequest) (*IssuedConfirmation, error) {
	resp, err := c.doInternal(ctx, http.MethodPost, "/v1/internal/confirmations", req)
	if err != nil {
		return nil, err
	}

	var out IssuedConfirmation
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsumeConfirmation deletes the user's confirmation token once the
// account is activated. Requires InternalToken.
func (c *SDKClient) ConsumeConfirmation(ctx context.Context, userID string) error {
	resp, err := c.doInternal(ctx, http.MethodDelete, "/v1/internal/confirmations/"+url.PathEscape(userID), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
