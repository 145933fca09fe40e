package auth

import (
	"context"

	"github.com/sand/digiseba/backend/internal/entities"
)

// Session identifies the caller of a request. Middleware places it in the
// request context; nothing else holds it.
type Session struct {
	UserID int64
	Role   entities.Role
}

func (s Session) IsAdmin() bool {
	return s.Role == entities.RoleAdmin
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
