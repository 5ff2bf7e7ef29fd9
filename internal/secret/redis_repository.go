package secret

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "passcode:v1:"

// RedisRepository stores passcode hashes as plain Redis strings without expiry.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository builds a Redis-backed passcode repository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// Get returns the hash stored for owner.
func (r *RedisRepository) Get(ctx context.Context, owner string) ([]byte, error) {
	hash, err := r.client.Get(ctx, redisKeyPrefix+owner).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hash, nil
}

// Put replaces the hash stored for owner.
func (r *RedisRepository) Put(ctx context.Context, owner string, hash []byte) error {
	return r.client.Set(ctx, redisKeyPrefix+owner, hash, 0).Err()
}

// Delete removes the hash stored for owner.
func (r *RedisRepository) Delete(ctx context.Context, owner string) error {
	n, err := r.client.Del(ctx, redisKeyPrefix+owner).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
