package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/pkg/authsdk"
	"github.com/aussiebroadwan/authority/pkg/httpx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// ConfirmHandler serves GET /v1/registration/confirm?token=. It only
// reports whose registration the link confirms; the sign-up flow activates
// the account and consumes the token through the internal routes.
type ConfirmHandler struct {
	Authority *service.Authority
}

// ServeHTTP godoc
//
//	@Summary		Check a registration link
//	@Description	Reports whose registration a confirmation token confirms. Superseded and expired tokens are rejected.
//	@Tags			Registration
//	@Produce		json
//	@Param			token	query		string							true	"Confirmation token from the email link"
//	@Success		200		{object}	authsdk.ConfirmationResponse	"user_id, email"
//	@Failure		400		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		503		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Router			/v1/registration/confirm [get].
func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"token is required").WriteError(w)
		return
	}

	ct, err := h.Authority.ConfirmRegistration(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ct == nil {
		slogx.FromContext(r.Context()).Info("confirmation link rejected")
		authsdk.ErrInvalidConfirmation.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ConfirmationResponse{
		UserID: ct.UserID,
		Email:  ct.Email,
	})
}
