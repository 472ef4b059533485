package tracker

import (
	"context"
	"fmt"

	"github.com/lyzr/flowengine/common/redis"
)

// RedisMirror mirrors a Tracker's status and events into Redis, combining
// the status SET and the event stream append into one pipelined round trip.
// Subscribe a RedisMirror's OnEvent to a Tracker to keep a best-effort,
// eventually-consistent view of a workflow's progress in Redis.
type RedisMirror struct {
	client     *redis.Client
	workflowID string
}

// NewRedisMirror returns a mirror writing the workflow status and an event
// stream under keys namespaced by workflowID.
func NewRedisMirror(client *redis.Client, workflowID string) *RedisMirror {
	return &RedisMirror{client: client, workflowID: workflowID}
}

// OnEvent is registered via Tracker.Subscribe. It batches a status update
// with a stream append for the event into a single pipelined round
// trip. Redis errors are intentionally swallowed: mirroring is best-effort
// observability, not part of the engine's correctness contract.
func (m *RedisMirror) OnEvent(t *Tracker) Listener {
	return func(evt Event) {
		status, _ := t.Status()

		ctx := context.Background()
		pipe := m.client.NewPipeline()
		pipe.SetWithExpiry(ctx, m.statusKey(), string(status), 0)
		pipe.AddToStream(ctx, m.eventsKey(), map[string]interface{}{
			"type":   string(evt.Type),
			"nodeId": evt.NodeID,
		})
		_ = pipe.Exec(ctx)
	}
}

func (m *RedisMirror) statusKey() string { return fmt.Sprintf("workflow:%s:status", m.workflowID) }
func (m *RedisMirror) eventsKey() string { return fmt.Sprintf("workflow:%s:events", m.workflowID) }
