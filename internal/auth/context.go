package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"

	UserIDHeader    = "x-user-id"
	RequestIDHeader = "x-request-id"
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetUserID returns the acting user. It may be empty: anonymous actors are
// accepted and recorded as NULL.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return fromMetadata(ctx, UserIDHeader)
}

func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(requestIDKey).(string); ok {
		return val
	}
	return fromMetadata(ctx, RequestIDHeader)
}

func fromMetadata(ctx context.Context, header string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(header); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}
