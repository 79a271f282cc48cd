package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/pkg/authsdk"
	"github.com/aussiebroadwan/authority/pkg/httpx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

const maxInternalBody = 64 << 10

// RequireInternalToken rejects requests whose X-Internal-Token header does
// not match token.
func RequireInternalToken(token string) httpx.Middleware {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(authsdk.InternalTokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				slogx.FromContext(r.Context()).Warn("internal route called without a valid token")
				authsdk.ErrAccessDenied.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InternalHandler serves the routes the login and sign-up flows call once
// they have authenticated a user themselves.
type InternalHandler struct {
	Authority *service.Authority
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxInternalBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"invalid JSON body").WriteError(w)
		return false
	}
	return true
}

// HandleIssueSession serves POST /v1/internal/sessions.
//
//	@Summary		Issue a session
//	@Description	Logs an already authenticated user in on a client, replacing any session the pair had.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Param			X-Internal-Token	header		string					true	"Shared internal token"
//	@Param			request				body		authsdk.SessionRequest	true	"Identity to issue tokens for"
//	@Success		201					{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/internal/sessions [post].
func (h *InternalHandler) HandleIssueSession(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.Authority.IssueAuthTokens(r.Context(), req.Roles, req.ClientID, req.UserID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(pair))
}

// HandleIssueConfirmation serves POST /v1/internal/confirmations.
//
//	@Summary		Issue a confirmation token
//	@Description	Starts or restarts email confirmation for a user. Any earlier token of that user stops confirming.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Param			X-Internal-Token	header		string						true	"Shared internal token"
//	@Param			request				body		authsdk.ConfirmationRequest	true	"User and email to confirm"
//	@Success		201					{object}	authsdk.IssuedConfirmation	"user_id, email, token, expires_in"
//	@Failure		400					{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		403					{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		503					{object}	authsdk.ErrorResponse		"error, error_description"
//	@Router			/v1/internal/confirmations [post].
func (h *InternalHandler) HandleIssueConfirmation(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ConfirmationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Email) == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"user_id and email are required").WriteError(w)
		return
	}

	ct, err := h.Authority.IssueConfirmationToken(r.Context(), req.UserID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.IssuedConfirmation{
		UserID:    ct.UserID,
		Email:     ct.Email,
		Token:     ct.Token,
		ExpiresIn: int(h.Authority.Lifetimes().Confirmation.Duration().Seconds()),
	})
}

// HandleConsumeConfirmation serves DELETE /v1/internal/confirmations/{user_id}.
//
//	@Summary		Consume a confirmation token
//	@Description	Deletes the pending confirmation of a user once the account is activated.
//	@Tags			Internal
//	@Param			X-Internal-Token	header	string	true	"Shared internal token"
//	@Param			user_id				path	string	true	"User identifier"
//	@Success		204					"Confirmation consumed"
//	@Failure		400					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503					{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/internal/confirmations/{user_id} [delete].
func (h *InternalHandler) HandleConsumeConfirmation(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("user_id"))
	if userID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Authority.ConsumeConfirmationToken(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
