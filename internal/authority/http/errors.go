package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/authsdk"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// writeServiceError maps an Authority error onto its wire form. Storage
// trouble is reported as retryable and never as a credential problem.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrRefreshTokenInvalid):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrIncompleteIdentity):
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"client_id, user_id and email are required").WriteError(w)
	case errors.Is(err, store.ErrTimeout), errors.Is(err, store.ErrUnavailable):
		slogx.FromContext(r.Context()).Error("storage unavailable", "err", err)
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
