package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/graph"
)

type stubNode struct {
	id   string
	kind flownode.Kind
}

func (s *stubNode) ID() string                     { return s.id }
func (s *stubNode) Kind() flownode.Kind            { return s.kind }
func (s *stubNode) Pool() flownode.Pool            { return flownode.PoolAsync }
func (s *stubNode) Config() *flownode.NodeConfig   { return &flownode.NodeConfig{ID: s.id} }
func (s *stubNode) Init(ctx context.Context) error { return nil }
func (s *stubNode) Run(ctx context.Context, in flownode.NodeOutput) (flownode.NodeOutput, error) {
	return in, nil
}
func (s *stubNode) Cleanup(ctx context.Context) error { return nil }
func (s *stubNode) Ready(strict bool) error           { return nil }

func addNode(t *testing.T, g *graph.FlowGraph, id string, kind flownode.Kind) *graph.FlowNode {
	t.Helper()
	fn, err := g.Add(id, &stubNode{id: id, kind: kind})
	require.NoError(t, err)
	return fn
}

func TestAddDuplicateIsBuildError(t *testing.T) {
	g := graph.New()
	addNode(t, g, "a", flownode.KindProducer)
	_, err := g.Add("a", &stubNode{id: "a"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
}

func TestConnectDanglingEdge(t *testing.T) {
	g := graph.New()
	addNode(t, g, "a", flownode.KindProducer)
	err := g.Connect("a", "missing", graph.DefaultBranch)
	require.Error(t, err)
}

func TestLabelsInsertionOrder(t *testing.T) {
	g := graph.New()
	addNode(t, g, "p", flownode.KindConditional)
	addNode(t, g, "yes", flownode.KindBlocking)
	addNode(t, g, "no", flownode.KindBlocking)
	addNode(t, g, "custom", flownode.KindBlocking)

	require.NoError(t, g.Connect("p", "no", "no"))
	require.NoError(t, g.Connect("p", "yes", "yes"))
	require.NoError(t, g.Connect("p", "custom", "custom"))

	fn, ok := g.Get("p")
	require.True(t, ok)
	assert.Equal(t, []string{"no", "yes", "custom"}, fn.Labels())
}

func TestFanOutDuplicateTargetsUnderSameLabel(t *testing.T) {
	g := graph.New()
	addNode(t, g, "p", flownode.KindProducer)
	addNode(t, g, "c", flownode.KindBlocking)

	require.NoError(t, g.Connect("p", "c", graph.DefaultBranch))
	require.NoError(t, g.Connect("p", "c", graph.DefaultBranch))

	fn, _ := g.Get("p")
	assert.Len(t, fn.Branch(graph.DefaultBranch), 2)
}

// TestUpstreamDeclarationOrder: Upstream must return nodes in the order
// their edges were declared, not Go's randomized map order, or the
// dev-mode merge precedence would drift between runs.
func TestUpstreamDeclarationOrder(t *testing.T) {
	g := graph.New()
	addNode(t, g, "a", flownode.KindProducer)
	addNode(t, g, "b", flownode.KindProducer)
	addNode(t, g, "c", flownode.KindBlocking)

	require.NoError(t, g.Connect("a", "c", graph.DefaultBranch))
	require.NoError(t, g.Connect("b", "c", graph.DefaultBranch))

	up := g.Upstream("c")
	require.Len(t, up, 2)
	assert.Equal(t, "a", up[0].ID)
	assert.Equal(t, "b", up[1].ID)
}

func TestUpstreamMemoizedAcrossCalls(t *testing.T) {
	g := graph.New()
	addNode(t, g, "a", flownode.KindProducer)
	addNode(t, g, "c", flownode.KindBlocking)
	require.NoError(t, g.Connect("a", "c", graph.DefaultBranch))

	first := g.Upstream("c")
	second := g.Upstream("c")
	assert.Equal(t, first, second)
}

func TestProducersFiltersByKind(t *testing.T) {
	g := graph.New()
	addNode(t, g, "p1", flownode.KindProducer)
	addNode(t, g, "p2", flownode.KindProducer)
	addNode(t, g, "b", flownode.KindBlocking)

	ids := map[string]bool{}
	for _, p := range g.Producers() {
		ids[p.ID] = true
	}
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, ids)
}

func TestQueueLinksRoundTrip(t *testing.T) {
	g := graph.New()
	g.AddQueueLink("w", "r")
	g.AddQueueLink("w2", "r2")
	assert.Equal(t, []graph.QueueLink{{WriterID: "w", ReaderID: "r"}, {WriterID: "w2", ReaderID: "r2"}}, g.QueueLinks())
}
