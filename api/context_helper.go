package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type contextKey string

const requesterKey contextKey = "requesterUserID"

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// WithRequester stores the authenticated user ID on the context
func WithRequester(parent context.Context, userID int64) context.Context {
	return context.WithValue(parent, requesterKey, userID)
}

// RequesterID returns the authenticated user ID set by the auth middleware
func RequesterID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requesterKey).(int64)
	return id, ok && id > 0
}
