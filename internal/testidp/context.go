package testidp

import (
	"context"

	"github.com/aussiebroadwan/trustkit/pkg/jwtx"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"
	ctxKeyClaims ctxKey = "claims"
)

func contextWithAuth(ctx context.Context, c *jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, ctxKeyClaims, c)
	return ctx
}

func userIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return v
	}
	return ""
}

func claimsFromCtx(ctx context.Context) *jwtx.Claims {
	if v, ok := ctx.Value(ctxKeyClaims).(*jwtx.Claims); ok {
		return v
	}
	return nil
}
