// ABOUTME: Request context helpers for the authenticated user
// ABOUTME: Provides WithUser/FromContext used by middleware and handlers

package auth

import (
	"context"

	"github.com/banrovegrie/makearjowork/internal/store"
)

// userContextKey is the key type for storing the user in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// FromContext retrieves the authenticated user, returning nil if not present.
func FromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey{}).(*store.User)
	return user
}
