package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/pkg/metrics"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate of each caller's bucket. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// IdleTTL is how long an unused bucket is kept before it is evicted.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	if rl.cfg.RequestsPerSecond <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.cfg.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > rl.cfg.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimitInterceptor rejects calls with ResourceExhausted once the caller's
// bucket is empty. Callers are keyed by the host of the peer address: the
// x-user-id header is set by the client and is never used as a key.
func RateLimitInterceptor(rl *RateLimiter, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !rl.Allow(callerKey(ctx)) {
			m.IncRateLimited(info.FullMethod)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded, retry later")
		}
		return handler(ctx, req)
	}
}

func callerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "anonymous"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return "peer:" + host
	}
	return "peer:" + addr
}
