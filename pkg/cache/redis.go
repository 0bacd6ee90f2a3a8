package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/merxcommerce/merx/errors"
)

// scanBatch is the COUNT hint for redis SCAN iterations.
const scanBatch = 256

// redisStore implements RemoteStore on a redis database. All keys are
// namespaced under a prefix so a shared database can host multiple services.
type redisStore struct {
	client *redis.Client
	prefix string
}

func newRedisStore(url, prefix string) (*redisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.WrapInvalid(err, "cache", "newRedisStore", "parse redis url")
	}
	return &redisStore{
		client: redis.NewClient(opt),
		prefix: prefix,
	}, nil
}

func (s *redisStore) Name() string {
	return BackendRedis
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(err, "cache", "Ping", "redis ping")
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapTransient(err, "cache", "Get", "redis get")
	}
	return data, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return errors.WrapTransient(err, "cache", "Set", "redis set")
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, errors.WrapTransient(err, "cache", "Delete", "redis del")
	}
	return n > 0, nil
}

// DeletePattern removes every key matching the glob pattern. Redis MATCH
// globs share `*`, `?` and `[...]` semantics with the cache contract, so the
// pattern passes through with only the prefix prepended.
func (s *redisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, s.prefix+pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return errors.WrapTransient(err, "cache", "DeletePattern", "redis del")
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, errors.WrapTransient(err, "cache", "DeletePattern", "redis scan")
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Clear removes this service's keys only. FLUSHDB would take unrelated
// tenants of a shared database with it.
func (s *redisStore) Clear(ctx context.Context) error {
	_, err := s.DeletePattern(ctx, "*")
	if err != nil {
		return errors.WrapTransient(err, "cache", "Clear", "redis clear")
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.WrapTransient(err, "cache", "Keys", "redis scan")
	}
	return keys, nil
}

func (s *redisStore) Size(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.WrapTransient(err, "cache", "Size", "redis scan")
	}
	return count, nil
}

func (s *redisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.WrapTransient(err, "cache", "Close", "redis close")
	}
	return nil
}
