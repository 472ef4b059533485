package postprocess_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/graph"
	"github.com/lyzr/flowengine/internal/postprocess"
)

type fakeNode struct {
	cfg   *flownode.NodeConfig
	ready error
}

func (n *fakeNode) ID() string                        { return n.cfg.ID }
func (n *fakeNode) Kind() flownode.Kind               { return flownode.KindBlocking }
func (n *fakeNode) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *fakeNode) Config() *flownode.NodeConfig      { return n.cfg }
func (n *fakeNode) Init(ctx context.Context) error    { return nil }
func (n *fakeNode) Cleanup(ctx context.Context) error { return nil }
func (n *fakeNode) Ready(strict bool) error           { return n.ready }
func (n *fakeNode) Run(ctx context.Context, in flownode.NodeOutput) (flownode.NodeOutput, error) {
	return in, nil
}

func TestQueueMapperAssignsDeterministicName(t *testing.T) {
	g := graph.New()
	_, err := g.Add("w", &fakeNode{cfg: &flownode.NodeConfig{ID: "w"}})
	require.NoError(t, err)
	_, err = g.Add("r", &fakeNode{cfg: &flownode.NodeConfig{ID: "r"}})
	require.NoError(t, err)
	g.AddQueueLink("w", "r")

	require.NoError(t, postprocess.Run(g, postprocess.QueueMapper{}))

	w, _ := g.Get("w")
	r, _ := g.Get("r")
	wName, _ := w.Node.Config().FormValue(postprocess.QueueNameField)
	rName, _ := r.Node.Config().FormValue(postprocess.QueueNameField)
	assert.Equal(t, "queue_w_r", wName)
	assert.Equal(t, "queue_w_r", rName)
}

// TestQueueMapperDeterministicAcrossBuilds: running the post-processor
// against equivalent graphs twice yields identical assignments.
func TestQueueMapperDeterministicAcrossBuilds(t *testing.T) {
	build := func() interface{} {
		g := graph.New()
		_, _ = g.Add("w", &fakeNode{cfg: &flownode.NodeConfig{ID: "w"}})
		_, _ = g.Add("r", &fakeNode{cfg: &flownode.NodeConfig{ID: "r"}})
		g.AddQueueLink("w", "r")
		_ = postprocess.Run(g, postprocess.QueueMapper{})
		w, _ := g.Get("w")
		name, _ := w.Node.Config().FormValue(postprocess.QueueNameField)
		return name
	}
	assert.Equal(t, build(), build())
}

func TestReadinessValidatorCollectsViolations(t *testing.T) {
	g := graph.New()
	_, err := g.Add("ok", &fakeNode{cfg: &flownode.NodeConfig{ID: "ok"}})
	require.NoError(t, err)
	_, err = g.Add("bad1", &fakeNode{cfg: &flownode.NodeConfig{ID: "bad1"}, ready: assert.AnError})
	require.NoError(t, err)
	_, err = g.Add("bad2", &fakeNode{cfg: &flownode.NodeConfig{ID: "bad2"}, ready: assert.AnError})
	require.NoError(t, err)

	err = postprocess.Run(g, postprocess.ReadinessValidator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad1")
	assert.Contains(t, err.Error(), "bad2")
	assert.Contains(t, err.Error(), "2 node(s)")
}

func TestReadinessValidatorPassesWhenAllReady(t *testing.T) {
	g := graph.New()
	_, err := g.Add("ok", &fakeNode{cfg: &flownode.NodeConfig{ID: "ok"}})
	require.NoError(t, err)
	require.NoError(t, postprocess.Run(g, postprocess.ReadinessValidator{}))
}

func TestRunStopsAtFirstError(t *testing.T) {
	g := graph.New()
	_, err := g.Add("bad", &fakeNode{cfg: &flownode.NodeConfig{ID: "bad"}, ready: assert.AnError})
	require.NoError(t, err)

	calledSecond := false
	secondProcessor := processorFunc(func(g *graph.FlowGraph) error {
		calledSecond = true
		return nil
	})

	err = postprocess.Run(g, postprocess.ReadinessValidator{}, secondProcessor)
	require.Error(t, err)
	assert.False(t, calledSecond)
}

type processorFunc func(g *graph.FlowGraph) error

func (f processorFunc) Process(g *graph.FlowGraph) error { return f(g) }
