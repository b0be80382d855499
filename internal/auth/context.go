// internal/auth/context.go
package auth

import (
	"context"
	"errors"
)

type contextKey string

const userIDKey = contextKey("userID")

var ErrNoUser = errors.New("user ID not found in context")

// WithUserID marks ctx as acting on behalf of the given user.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the acting user. A context without one belongs to an anonymous visitor.
func GetUserIDFromContext(ctx context.Context) (uint, error) {
	val := ctx.Value(userIDKey)
	id, ok := val.(uint)
	if !ok {
		return 0, ErrNoUser
	}
	return id, nil
}
