package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authority/pkg/httpx"
)

// OAuth2 error codes (RFC 6749, RFC 6750) used by the authority.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeServerError            = "server_error"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrorCodeAccessDenied           = "access_denied"
)

// OAuth2Error is an OAuth2 error response. The server writes it with
// WriteError and the client returns it from failed calls.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes the error as a JSON body with e.StatusCode.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// Is matches on status and code so callers can use errors.Is against the
// predefined errors below.
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidGrant is returned when a refresh token is unknown, already
	// used or issued to a session that has since ended.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidGrant,
		Description: "the refresh token is invalid or has already been used",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	// ErrInvalidConfirmation is returned for confirmation links that are
	// expired, superseded or were never issued.
	ErrInvalidConfirmation = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidToken,
		Description: "the confirmation token is invalid or has expired",
	}

	ErrAccessDenied = &OAuth2Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrTemporarilyUnavailable is returned when a storage dependency did
	// not answer in time. The request may be retried.
	ErrTemporarilyUnavailable = &OAuth2Error{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the service is temporarily unavailable, try again later",
	}
)

func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: statusCode, Code: code, Description: description}
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error. It
// returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Bearer rejections carry no body, only WWW-Authenticate.
	if resp.StatusCode == http.StatusUnauthorized {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeInvalidToken,
			Description: resp.Header.Get("WWW-Authenticate"),
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
