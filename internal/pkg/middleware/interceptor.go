package middleware

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/auth"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ContextInterceptor copies the caller identity and request id from metadata
// into the context. A missing request id is generated.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var userID, requestID string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(auth.UserIDHeader); len(v) > 0 {
				userID = v[0]
			}
			if v := md.Get(auth.RequestIDHeader); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = auth.WithUserID(ctx, userID)
		ctx = auth.WithRequestID(ctx, requestID)
		return handler(ctx, req)
	}
}

func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("request_id", auth.GetRequestID(ctx)),
			zap.String("user_id", auth.GetUserID(ctx)),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("gRPC request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("gRPC request", fields...)
		}
		return resp, err
	}
}
