package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// swapScript sets KEYS[1] and returns its previous value (false when absent).
var swapScript = redis.NewScript(`
local old = redis.call("GET", KEYS[1])
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return old
`)

// casScript sets KEYS[1] to ARGV[2] only while it still holds ARGV[1].
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// RedisSessionStore implements SessionStore on a shared Redis deployment.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed session store. prefix is prepended to every key.
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("get", err)
	}
	return val, true, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("delete", err)
	}
	return nil
}

func (s *RedisSessionStore) GetDelete(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("getdel", err)
	}
	return val, true, nil
}

func (s *RedisSessionStore) Swap(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	res, err := swapScript.Run(ctx, s.client, []string{s.key(key)}, value, ttl.Milliseconds()).Result()
	if err != nil {
		// a nil bulk reply from the script surfaces as redis.Nil
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("swap", err)
	}
	old, ok := res.(string)
	if !ok {
		return "", false, nil
	}
	return old, true, nil
}

func (s *RedisSessionStore) CompareAndSwap(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	n, err := casScript.Run(ctx, s.client, []string{s.key(key)}, expected, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable("compare-and-swap", err)
	}
	return n == 1, nil
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
