package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/pkg/logger"
)

const (
	userIDHeader    = "X-User-Id"
	sessionIDHeader = "X-Session-Id"
)

// Identity is who the upstream gateway says is calling: an authenticated
// user, an anonymous session, or both during a login handoff.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

// HasUser reports whether the caller is an authenticated user.
func (i Identity) HasUser() bool {
	return i.UserID != nil
}

type identityKey struct{}

// ExtractIdentity reads the gateway identity headers into the request
// context. Requests without either header still pass; endpoints that need
// an identity reject them.
func ExtractIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity Identity

			if raw := strings.TrimSpace(r.Header.Get(userIDHeader)); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					identity.UserID = &id
				}
			}
			identity.SessionID = strings.TrimSpace(r.Header.Get(sessionIDHeader))

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil && identity.UserID != nil {
				ctx = logg.WithUserID(ctx, identity.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores a resolved identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity stored by ExtractIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
