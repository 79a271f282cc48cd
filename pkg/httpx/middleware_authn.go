package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authority/pkg/jwtx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// TokenValidator decides whether a bearer token authenticates anyone.
// nil claims with a nil error means it does not.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*jwtx.Claims, error)
}

// AuthnMiddleware rejects requests without a currently valid bearer token
// and puts the token's claims in the request context.
func AuthnMiddleware(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.ValidateAccessToken(ctx, raw)
			if err != nil {
				log.Error("token validation unavailable", "err", err)
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":             "temporarily_unavailable",
					"error_description": "token validation is temporarily unavailable",
				})
				return
			}
			if claims == nil {
				writeBearerError(w, "token is invalid, expired or revoked")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, raw, claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
