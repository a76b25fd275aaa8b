package id

import "context"

type contextKey string

const (
	userKey   contextKey = "timestep_user_id"
	threadKey contextKey = "timestep_thread_id"
)

// WithUserID stores the authenticated user identifier on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// UserIDFromContext returns the user identifier stored on the context, if any.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userKey).(string); ok {
		return v
	}
	return ""
}

// WithThreadID stores the active thread identifier on the context so log and
// trace consumers can correlate work back to a conversation.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	if threadID == "" {
		return ctx
	}
	return context.WithValue(ctx, threadKey, threadID)
}

// ThreadIDFromContext returns the thread identifier stored on the context, if any.
func ThreadIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(threadKey).(string); ok {
		return v
	}
	return ""
}
