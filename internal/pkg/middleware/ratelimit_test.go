package middleware

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/auth"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 2, Burst: 3})
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user:a"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("user:a"))
	assert.True(t, rl.Allow("user:b"), "buckets are per caller")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("user:a"), "one token refilled")
	assert.False(t, rl.Allow("user:a"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow("anonymous"))
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.Allow("user:a")
	rl.Allow("user:b")
	assert.Len(t, rl.buckets, 2)

	now = now.Add(2 * time.Minute)
	rl.Allow("user:c")
	assert.Len(t, rl.buckets, 1)
}

func peerContext(addr string) context.Context {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		panic(err)
	}
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func TestRateLimitInterceptor(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	rl.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	interceptor := RateLimitInterceptor(rl, metrics.New(prometheus.NewRegistry()))

	info := &grpc.UnaryServerInfo{FullMethod: "/omnipos.reservation.v1.ReservationService/ReserveStock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	ctx := peerContext("10.0.0.5:40100")

	resp, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(peerContext("10.0.0.5:40101"), nil, info, handler)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err), "a new connection from the same host shares the bucket")

	_, err = interceptor(peerContext("10.0.0.6:40100"), nil, info, handler)
	assert.NoError(t, err)
}

func TestRateLimitIgnoresClaimedUserID(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	rl.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	limit := RateLimitInterceptor(rl, nil)
	withContext := ContextInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/omnipos.reservation.v1.ReservationService/ReserveStock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	allowed := 0
	for i := 0; i < 100; i++ {
		md := metadata.Pairs(auth.UserIDHeader, fmt.Sprintf("u%d", i))
		ctx := metadata.NewIncomingContext(peerContext("10.0.0.9:51000"), md)
		_, err := withContext(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return limit(ctx, req, info, handler)
		})
		if err == nil {
			allowed++
		} else {
			assert.Equal(t, codes.ResourceExhausted, status.Code(err))
		}
	}

	assert.Equal(t, 1, allowed)
	assert.Len(t, rl.buckets, 1)
}

func TestContextInterceptor(t *testing.T) {
	interceptor := ContextInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test"}

	var userID, requestID string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		userID = auth.GetUserID(ctx)
		requestID = auth.GetRequestID(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(auth.UserIDHeader, "u-1", auth.RequestIDHeader, "req-1"))
	_, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "req-1", requestID)

	_, err = interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.NotEmpty(t, requestID, "missing request id is generated")
}
