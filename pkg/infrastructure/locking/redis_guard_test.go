package locking

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bsm/redislock"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/rest"
)

var _ lifecycle.Guard = (*RedisGuard)(nil)

func TestRedisGuard_TryAcquire(t *testing.T) {
	var gotKey string
	var gotTTL time.Duration
	released := false

	guard := newRedisGuard(5*time.Second, func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
		gotKey, gotTTL = key, ttl
		return func(context.Context) error {
			released = true
			return redislock.ErrLockNotHeld
		}, nil
	})

	release, err := guard.TryAcquire(context.Background(), 7)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if gotKey != "tandas:lock:line:7" || gotTTL != 5*time.Second {
		t.Errorf("Unexpected lock request %q %v", gotKey, gotTTL)
	}
	if err := release(context.Background()); err != nil {
		t.Errorf("Expected expired lock release to succeed, got %v", err)
	}
	if !released {
		t.Error("Expected lock to be released")
	}
}

func TestRedisGuard_Errors(t *testing.T) {
	tests := []struct {
		name     string
		obtain   error
		wantIn   bool
		wantWrap error
	}{
		{"held elsewhere", redislock.ErrNotObtained, true, nil},
		{"redis down", errors.New("dial tcp: connection refused"), false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := newRedisGuard(0, func(context.Context, string, time.Duration) (func(context.Context) error, error) {
				return nil, tt.obtain
			})
			_, err := guard.TryAcquire(context.Background(), 1)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if got := errors.Is(err, entities.ErrTransitionInFlight); got != tt.wantIn {
				t.Errorf("errors.Is(ErrTransitionInFlight) = %v, want %v (%v)", got, tt.wantIn, err)
			}
			if guard.ttl != DefaultLockTTL {
				t.Errorf("Expected default ttl, got %v", guard.ttl)
			}
		})
	}
}

func TestDefaultLockTTL_OutlastsBackendTimeout(t *testing.T) {
	if DefaultLockTTL <= rest.DefaultTimeout {
		t.Errorf("Expected lock ttl %v to outlast backend timeout %v", DefaultLockTTL, rest.DefaultTimeout)
	}
}

// Runs against a real Redis when TANDAS_TEST_REDIS is set, e.g. localhost:6379
func TestRedisGuard_Live(t *testing.T) {
	addr := os.Getenv("TANDAS_TEST_REDIS")
	if addr == "" {
		t.Skip("TANDAS_TEST_REDIS not set")
	}
	ctx := context.Background()

	rdb, err := Connect(ctx, addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer rdb.Close()

	a := NewRedisGuard(rdb, 2*time.Second)
	b := NewRedisGuard(rdb, 2*time.Second)
	line := entities.LineID(time.Now().UnixNano() % 1_000_000)

	release, err := a.TryAcquire(ctx, line)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if _, err := b.TryAcquire(ctx, line); !errors.Is(err, entities.ErrTransitionInFlight) {
		t.Errorf("Expected second guard to be refused, got %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	release, err = b.TryAcquire(ctx, line)
	if err != nil {
		t.Fatalf("Expected lock to be free after release, got %v", err)
	}
	_ = release(ctx)
}
