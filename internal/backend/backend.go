// Package backend implements the Backend collaborator: durable FIFO queues
// plus a TTL key-value cache.
package backend

import (
	"context"
	"time"
)

// Backend is the typed API every Runner, Dispatcher and the dev-mode path
// interacts with. Two concrete implementations satisfy it: RedisBackend for
// production and MemoryBackend for tests and the single-process dev mode.
type Backend interface {
	// Push appends payload to the tail of the named queue.
	Push(ctx context.Context, queue string, payload []byte) error
	// Pop blocks up to timeout for the head element of the named queue;
	// returns (nil, nil) on timeout. Safe across concurrent consumers: a
	// payload is delivered to exactly one caller.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)

	// Set stores value under key with an optional ttl (zero means no
	// expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key, or (nil, nil) if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Well-known key namespaces.
const (
	DevOutputPrefix = "dev:out:"
	DLQPrefix       = "dlq:"
)

// DevOutputKey returns the cache key a development-mode run writes its
// output under.
func DevOutputKey(nodeID string) string { return DevOutputPrefix + nodeID }

// DLQKey returns the queue name the dead-letter sink pushes to for a given
// workflow.
func DLQKey(workflowID string) string { return DLQPrefix + workflowID }

// QueueName synthesizes the deterministic inter-loop queue name the
// QueueMapper post-processor assigns: queue_{writerId}_{readerId}.
func QueueName(writerID, readerID string) string {
	return "queue_" + writerID + "_" + readerID
}
