package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// session list helpers

// AppendCapped pushes values onto a list, keeps only the last maxLen entries and refreshes the
// ttl of the list and its meta hash, all in one MULTI. It returns the list length before trimming.
func (s *Store) AppendCapped(ctx context.Context, key, metaKey string, maxLen int64, ttl time.Duration, now time.Time, values ...interface{}) (int64, error) {
	var push *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		push = pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -maxLen, -1)
		pipe.PExpire(ctx, key, ttl)
		pipe.HSetNX(ctx, metaKey, "created_at", now.UnixMilli())
		pipe.HSet(ctx, metaKey, "last_active", now.UnixMilli())
		pipe.PExpire(ctx, metaKey, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return push.Val(), nil
}

// ListTail returns the last n entries, or the whole list when n <= 0.
func (s *Store) ListTail(ctx context.Context, key string, n int64) ([]string, error) {
	start := int64(0)
	if n > 0 {
		start = -n
	}
	return s.client.LRange(ctx, key, start, -1).Result()
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.PTTL(ctx, key).Result()
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) error {
	return s.client.IncrBy(ctx, key, n).Err()
}

// ScanKeys walks the keyspace with SCAN, never KEYS.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
