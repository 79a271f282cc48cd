package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/pkg/authsdk"
	"github.com/aussiebroadwan/authority/pkg/httpx"
)

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
	}
}

// RefreshHandler serves POST /v1/token/refresh. The form field
// refresh_token is exchanged for a new pair; the old one is spent even if
// the response never reaches the caller.
type RefreshHandler struct {
	Authority *service.Authority
}

// ServeHTTP godoc
//
//	@Summary		Refresh a session
//	@Description	Exchanges a refresh token for a new access and refresh token pair. The presented refresh token is consumed and the access token issued with it is revoked.
//	@Tags			Tokens
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			refresh_token	formData	string					true	"Refresh token from the previous login or refresh"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/token/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"content-type must be application/x-www-form-urlencoded").WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	refreshToken := strings.TrimSpace(r.PostForm.Get("refresh_token"))
	if refreshToken == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"refresh_token is required").WriteError(w)
		return
	}

	pair, err := h.Authority.RotateRefreshToken(r.Context(), refreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// LogoutHandler serves POST /v1/logout: the caller's access token is revoked
// on its own client and the session's refresh token is dropped.
type LogoutHandler struct {
	Authority *service.Authority
}

// ServeHTTP godoc
//
//	@Summary		Log out
//	@Description	Revokes the caller's access token on its own client and drops the refresh session of that client.
//	@Tags			Tokens
//	@Security		BearerAuth
//	@Success		204	"Session ended"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := httpx.ClaimsFromContext(ctx)
	if claims == nil {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.Authority.RevokeAccessToken(ctx, claims.ClientID, httpx.TokenFromContext(ctx)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler serves GET /v1/me with the claims of the caller's token.
//
//	@Summary		Describe the caller
//	@Description	Returns the claims carried by the caller's access token.
//	@Tags			Tokens
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse		"sub, user_id, client_id, roles, iat, exp"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		503	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/me [get].
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := httpx.ClaimsFromContext(r.Context())
		if claims == nil {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.NewMeResponse(claims))
	}
}
