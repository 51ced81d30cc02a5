package shared

import (
	"context"

	"github.com/librarydesk/librarydesk/internal/session"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// CurrentUser returns the authenticated identity attached to ctx, if any.
func CurrentUser(ctx context.Context) (session.Session, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.auth == nil {
		return session.Session{}, false
	}
	return sess.auth.Current()
}
