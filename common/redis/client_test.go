package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/common/redis"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.NewClient(rdb, nopLogger{})
}

func TestSetGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestGetMissingKeyIsError(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestSetWithExpiryEventuallyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := redis.NewClient(rdb, nopLogger{})
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 50*time.Millisecond))

	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	// miniredis only ages keys when its clock is advanced explicitly.
	mr.FastForward(100 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
}

func TestPushToListAndBlockingPopList(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.PushToList(ctx, "q", "a", "b"))

	result, err := c.BlockingPopList(ctx, time.Second, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"q", "a"}, result)
}

func TestBlockingPopListTimesOutWithoutError(t *testing.T) {
	c := newTestClient(t)
	result, err := c.BlockingPopList(context.Background(), 10*time.Millisecond, "empty")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPipelineSetAndStream(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	pipe := c.NewPipeline()
	pipe.SetWithExpiry(ctx, "status", "running", 0)
	pipe.AddToStream(ctx, "events", map[string]interface{}{"type": "nodeStarted"})
	require.NoError(t, pipe.Exec(ctx))

	val, err := c.Get(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "running", val)
}
