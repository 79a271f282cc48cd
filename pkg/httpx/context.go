package httpx

import (
	"context"

	"github.com/aussiebroadwan/authority/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
	CtxKeyToken  ctxKey = "bearer_token"
)

func contextWithAuth(ctx context.Context, token string, c *jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.UserID)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	ctx = context.WithValue(ctx, CtxKeyToken, token)
	return ctx
}

// ClaimsFromContext returns the claims AuthnMiddleware attached, or nil.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	c, _ := ctx.Value(CtxKeyClaims).(*jwtx.Claims)
	return c
}

// TokenFromContext returns the bearer token AuthnMiddleware accepted.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(CtxKeyToken).(string)
	return t
}
