package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-reservation-service/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// RedisIdempotencyStore maps reserve idempotency keys to reservation ids.
// A key is "pending" while its request runs and holds the reservation id
// once the request committed.
type RedisIdempotencyStore struct {
	cache      *cache.RedisClient
	pendingTTL time.Duration
	resultTTL  time.Duration
}

func NewRedisIdempotencyStore(c *cache.RedisClient, pendingTTL, resultTTL time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{cache: c, pendingTTL: pendingTTL, resultTTL: resultTTL}
}

func idempotencyKey(key string) string {
	return "idempotency:reserve:" + key
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (string, bool, error) {
	k := idempotencyKey(key)

	acquired, err := s.cache.AcquireLock(ctx, k, pendingMarker, s.pendingTTL)
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if acquired {
		return "", true, nil
	}

	val, err := s.cache.Client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Released between our SETNX and GET; let the caller retry.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return "", false, nil
	}
	return val, false, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, reservationID string) error {
	if err := s.cache.Client.Set(ctx, idempotencyKey(key), reservationID, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("store idempotency result: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.cache.ReleaseLock(ctx, idempotencyKey(key), pendingMarker)
}
