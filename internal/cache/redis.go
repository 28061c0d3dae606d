package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// genTTL bounds how long a generation counter outlives its last Delete.
const genTTL = 24 * time.Hour

// setIfGeneration writes KEYS[1] only while the counter at KEYS[2] still
// equals ARGV[1]. A missing counter reads as 0.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore implements Store on Redis so every instance shares one view
// cache. Generations live next to each key under "gen:".
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore(client redis.Cmdable, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the keys and bumps their generations in one MULTI/EXEC.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.keyPrefix + k
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		for _, k := range keys {
			pipe.Incr(ctx, s.genKey(k))
			pipe.Expire(ctx, s.genKey(k), genTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := s.client.Get(ctx, s.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis generation %s: %w", key, err)
	}
	return gen, nil
}

func (s *RedisStore) SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	n, err := setIfGeneration.Run(ctx, s.client,
		[]string{s.keyPrefix + key, s.genKey(key)},
		strconv.FormatInt(gen, 10), val, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) genKey(key string) string {
	return s.keyPrefix + "gen:" + key
}

var _ Store = (*RedisStore)(nil)
