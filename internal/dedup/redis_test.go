package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisFilterWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	f, err := NewRedis(client, 2*time.Second)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	dup, err := f.Seen(ctx, "s|v|99|1", now)
	if err != nil || dup {
		t.Fatalf("first Seen() = %v, %v; want false, nil", dup, err)
	}
	dup, err = f.Seen(ctx, "s|v|99|1", now)
	if err != nil || !dup {
		t.Fatalf("second Seen() = %v, %v; want true, nil", dup, err)
	}

	mr.FastForward(2 * time.Second)
	dup, err = f.Seen(ctx, "s|v|99|1", now)
	if err != nil || dup {
		t.Fatalf("Seen() after window = %v, %v; want false, nil", dup, err)
	}
}

func TestRedisFilterServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	f, err := NewRedis(client, time.Second)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	mr.Close()
	if _, err := f.Seen(context.Background(), "k", time.Now()); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

func TestDialRedisInvalidURL(t *testing.T) {
	if _, err := DialRedis(context.Background(), "://nope", time.Second); err == nil {
		t.Fatalf("expected invalid URL error")
	}
}

func TestNewRedisRequiresClient(t *testing.T) {
	if _, err := NewRedis(nil, time.Second); err == nil {
		t.Fatalf("expected nil client error")
	}
}
