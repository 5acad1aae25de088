package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mrkeshav-05/learning-backend/cache"
)

// KEYS[1] key, ARGV[1] expected, ARGV[2] replacement, ARGV[3] ttl in ms (0 keeps no expiry).
const compareAndSwapScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

var compareAndSwapLua = goredis.NewScript(compareAndSwapScript)

// Store implements cache.Store on top of a go-redis client.
type Store struct {
	client goredis.UniversalClient
	owned  bool
}

// NewStore dials lazily; use Ping to check connectivity.
func NewStore(opts Options) *Store {
	return &Store{client: goredis.NewClient(opts.clientOptions()), owned: true}
}

// NewStoreFromClient wraps an existing client. Close leaves it open.
func NewStoreFromClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis: GET %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, expiration(ttl)).Err(); err != nil {
		return fmt.Errorf("redis: SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, expiration(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: SETNX %s: %w", key, err)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL %s: %w", key, err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	ms := int64(0)
	if ttl > 0 {
		ms = max(ttl.Milliseconds(), 1)
	}
	res, err := compareAndSwapLua.Run(ctx, s.client, []string{key}, old, next, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: compare-and-swap %s: %w", key, err)
	}
	return res == 1, nil
}

// expiration maps the cache.Store convention (<= 0 means no expiry) onto
// go-redis, where a sub-millisecond positive ttl would be rejected.
func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl, time.Millisecond)
}
