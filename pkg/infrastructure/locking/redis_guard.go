package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// DefaultLockTTL outlasts the backend client's default timeout and bounds how
// long a crashed holder can keep a line blocked
const DefaultLockTTL = time.Minute

type obtainFunc func(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)

// RedisGuard serializes bulk transitions per line across processes sharing
// one Redis
type RedisGuard struct {
	prefix string
	ttl    time.Duration
	obtain obtainFunc
}

// NewRedisGuard creates a guard over a Redis client
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	locker := redislock.New(client)
	return newRedisGuard(ttl, func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
		lock, err := locker.Obtain(ctx, key, ttl, nil)
		if err != nil {
			return nil, err
		}
		return lock.Release, nil
	})
}

func newRedisGuard(ttl time.Duration, obtain obtainFunc) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisGuard{prefix: "tandas:lock:line", ttl: ttl, obtain: obtain}
}

// Key returns the Redis key guarding a line
func (g *RedisGuard) Key(lineID entities.LineID) string {
	return fmt.Sprintf("%s:%d", g.prefix, lineID)
}

// TryAcquire obtains the line's lock without retrying
func (g *RedisGuard) TryAcquire(ctx context.Context, lineID entities.LineID) (func(context.Context) error, error) {
	release, err := g.obtain(ctx, g.Key(lineID), g.ttl)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, entities.ErrTransitionInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock for line %d: %w", lineID, err)
	}

	return func(ctx context.Context) error {
		err := release(ctx)
		// An expired lock is already free
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}

// Connect opens a Redis client and checks it answers
func Connect(ctx context.Context, address string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: "",
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", address, err)
	}
	return rdb, nil
}
