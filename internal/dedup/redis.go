package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storepulse:dedup:atc:"

// Redis shares the filter between collector instances. Keys expire on their
// own after the window, so no sweep is needed.
type Redis struct {
	client *redis.Client
	window time.Duration
}

func NewRedis(client *redis.Client, window time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window}, nil
}

// DialRedis parses url, connects, and verifies the server answers.
func DialRedis(ctx context.Context, url string, window time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedis(client, window)
}

func (r *Redis) Seen(ctx context.Context, key string, _ time.Time) (bool, error) {
	sum := sha256.Sum256([]byte(key))
	set, err := r.client.SetNX(ctx, redisKeyPrefix+hex.EncodeToString(sum[:]), 1, r.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup: %w", err)
	}
	return !set, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
