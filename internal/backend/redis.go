package backend

import (
	"context"
	"strings"
	"time"

	"github.com/lyzr/flowengine/common/redis"
	"github.com/lyzr/flowengine/internal/errs"
)

// RedisBackend rides on common/redis.Client rather than talking to go-redis
// a second time: the queue half of the Backend contract maps onto
// PushToList/BlockingPopList, the cache half onto Set/Get/Delete.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an already-constructed common/redis.Client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Push(ctx context.Context, queue string, payload []byte) error {
	if err := b.client.PushToList(ctx, queue, string(payload)); err != nil {
		return errs.Backend("push_failed", "queue push failed for "+queue, err)
	}
	return nil
}

// Pop returns (nil, nil) on timeout; common/redis.Client already translates
// the redis.Nil case to an empty result.
func (b *RedisBackend) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	result, err := b.client.BlockingPopList(ctx, timeout, queue)
	if err != nil {
		return nil, errs.Backend("pop_failed", "queue pop failed for "+queue, err)
	}
	// BlockingPopList returns [queueName, value] on success, nil on timeout.
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, string(value), ttl); err != nil {
		return errs.Backend("set_failed", "cache set failed for "+key, err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errs.Backend("get_failed", "cache get failed for "+key, err)
	}
	return []byte(val), nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	existed, err := b.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if err := b.client.Delete(ctx, key); err != nil {
		return false, errs.Backend("delete_failed", "cache delete failed for "+key, err)
	}
	return existed, nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errs.Backend("exists_failed", "cache exists check failed for "+key, err)
	}
	return true, nil
}

// isNotFound recognizes common/redis.Client's "key not found: %s" wrapping
// of redis.Nil, since that package intentionally doesn't export a sentinel.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "key not found")
}
