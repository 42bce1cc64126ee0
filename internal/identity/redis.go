package identity

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisURL = "redis://localhost:6379/0"

// RedisStorage stores keys as nocturn:<scope>:<key> without expiry.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage connects using a redis:// URL and verifies the server answers.
func NewRedisStorage(ctx context.Context, url, scope string) (*RedisStorage, error) {
	if strings.TrimSpace(url) == "" {
		url = defaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "redis storage: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis storage: ping")
	}
	return NewRedisStorageFromClient(client, scope), nil
}

func NewRedisStorageFromClient(client *redis.Client, scope string) *RedisStorage {
	return &RedisStorage{client: client, prefix: "nocturn:" + scope + ":"}
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis storage: get %s", key)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis storage: set %s", key)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
