package selectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the locators in one hash named by the namespace,
// mirroring the Firebase object layout.
type RedisStore struct {
	client    redis.Cmdable
	namespace string
}

func NewRedisStore(client redis.Cmdable, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) Fetch(ctx context.Context, name string) (string, error) {
	value, err := s.client.HGet(ctx, s.namespace, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s not found in database", ErrSelectorUnavailable, name)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSelectorUnavailable, err)
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSelectorUnavailable, name)
	}
	return value, nil
}

// Put writes a locator. Used by operators seeding a fresh directory.
func (s *RedisStore) Put(ctx context.Context, name, value string) error {
	return s.client.HSet(ctx, s.namespace, name, value).Err()
}
