package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "drawtica:ratelimit:"

// hitScript counts a hit and opens the window in one step. PEXPIRE runs
// whenever the key carries no TTL, which also repairs a key left without one.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares windows between instances.
type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	vals, err := hitScript.Run(ctx, s.client, []string{keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: hit: %w", err)
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: hit: unexpected reply %v", vals)
	}
	count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
	return Decision{
		Allowed: count <= int64(limit),
		Count:   int(count),
		ResetAt: s.now().Add(ttl),
	}, nil
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return client, nil
}
