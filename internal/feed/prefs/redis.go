package prefs

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// DefaultRedisHash is the hash all preference fields live under.
const DefaultRedisHash = "kintsugi:prefs"

// RedisStore keeps preferences as fields of a single redis hash, so that
// several dashboard instances share them.
type RedisStore struct {
	client redis.UniversalClient
	hash   string
}

func NewRedisStore(client redis.UniversalClient, hash string) *RedisStore {
	if hash == "" {
		hash = DefaultRedisHash
	}
	return &RedisStore{client: client, hash: hash}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.HSet(ctx, r.hash, key, value).Err()
}
