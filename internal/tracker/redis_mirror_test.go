package tracker_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/common/redis"
	"github.com/lyzr/flowengine/internal/tracker"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

// TestRedisMirrorPipelinesStatusAndStream covers the production path wired
// in cmd/engine/main.go: a Tracker subscriber that mirrors workflow status
// and per-event stream entries into Redis via a single pipelined round trip.
func TestRedisMirrorPipelinesStatusAndStream(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redis.NewClient(rdb, nopLogger{})

	tr := tracker.New()
	mirror := tracker.NewRedisMirror(client, "wf-1")
	tr.Subscribe(mirror.OnEvent(tr))

	tr.WorkflowStarted()
	tr.NodeStarted("p", "p")

	status, err := client.Get(context.Background(), "workflow:wf-1:status")
	require.NoError(t, err)
	assert.Equal(t, string(tracker.StatusRunning), status)

	entries, err := rdb.XRange(context.Background(), "workflow:wf-1:events", "-", "+").Result()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "nodeStarted", entries[len(entries)-1].Values["type"])
}

// TestRedisMirrorSwallowsErrors covers the "best-effort, errors swallowed"
// contract: once the miniredis server is closed, OnEvent must not panic.
func TestRedisMirrorSwallowsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := redis.NewClient(rdb, nopLogger{})
	mr.Close()

	tr := tracker.New()
	mirror := tracker.NewRedisMirror(client, "wf-2")
	listener := mirror.OnEvent(tr)

	assert.NotPanics(t, func() {
		listener(tracker.Event{Type: tracker.EventNodeStarted, NodeID: "n"})
	})
}
