package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript performs increment-or-create in one server-side step.
// A key left without a TTL (PTTL == -1) is stale and restarts at delta; a
// missing key (PTTL == -2) is created by INCRBY and given the TTL. Live
// windows are never extended.
var incrementScript = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl == -1 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return tonumber(ARGV[1])
end
local n = redis.call('INCRBY', KEYS[1], ARGV[1])
if ttl == -2 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return n
`)

// RedisStore implements [Store] on Redis. Keys are used verbatim; callers own
// the namespace.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing go-redis client. The caller keeps ownership
// of the client and closes it.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the stored count for key.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count <= 0 {
		return 0, false, nil
	}
	return count, true, nil
}

// IncrementOrCreate runs the increment script.
func (s *RedisStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error) {
	if err := checkIncrement(key, ttlOnCreate); err != nil {
		return 0, err
	}

	count, err := incrementScript.Run(ctx, s.client, []string{key}, delta, ttlOnCreate.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// RemainingTTL reads PTTL. Missing keys and keys without expiry report 0.
func (s *RedisStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Expire re-arms the TTL. PEXPIRE on a missing key is a no-op in Redis.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.client.PExpire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
