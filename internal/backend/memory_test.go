package backend_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/internal/backend"
)

func TestPushPopRoundTrip(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "q", []byte("payload")))
	got, err := b.Pop(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestPopTimeoutReturnsNil(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	got, err := b.Pop(context.Background(), "empty", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestPopExclusiveDelivery: with N payloads pushed and N concurrent
// consumers popping, every payload is delivered to exactly one consumer,
// none are duplicated or lost.
func TestPopExclusiveDelivery(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, b.Push(ctx, "q", []byte{byte(i)}))
	}

	var mu sync.Mutex
	seen := map[byte]int{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := b.Pop(ctx, "q", time.Second)
			require.NoError(t, err)
			require.NotNil(t, payload)
			mu.Lock()
			seen[payload[0]]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestCacheSetGetDeleteExists(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	ok, err := b.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err = b.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheTTLExpiry(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheSetLastWriterWins(t *testing.T) {
	b := backend.NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("first"), 0))
	require.NoError(t, b.Set(ctx, "k", []byte("second"), 0))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "dev:out:n1", backend.DevOutputKey("n1"))
	assert.Equal(t, "dlq:wf-1", backend.DLQKey("wf-1"))
	assert.Equal(t, "queue_w_r", backend.QueueName("w", "r"))
}
