package auth

import (
	"context"

	"github.com/plabarre/agenda/internal/store"
)

type contextKey string

const (
	contextKeyUser      contextKey = "user"
	contextKeyLinkToken contextKey = "link_token"
)

func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(contextKeyUser).(*store.User)
	return u, ok
}

func WithLinkToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyLinkToken, token)
}

func LinkTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(contextKeyLinkToken).(string)
	return t
}
