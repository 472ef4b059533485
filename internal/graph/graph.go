// Package graph implements the Graph Model: FlowNode vertices with
// label-keyed branch edges, and the FlowGraph aggregate that owns them by
// id. A node's identity is its id, not a reference: the graph is keyed
// id -> FlowNode, and since Go references are cheap and the graph is
// immutable after load, FlowNode holds direct pointers to its branch targets
// rather than re-looking-up ids on every traversal step.
package graph

import (
	"fmt"
	"sync"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
)

// DefaultBranch is the label used for normal (unconditional) flow.
const DefaultBranch = "default"

// FlowNode is a graph vertex: an id, the owned node instance, and a branch
// map label -> ordered list of FlowNode.
type FlowNode struct {
	ID   string
	Node flownode.Node

	mu         sync.Mutex
	branches   map[string][]*FlowNode
	labelOrder []string // insertion order of labels; branch iteration follows it
}

func newFlowNode(id string, node flownode.Node) *FlowNode {
	return &FlowNode{ID: id, Node: node, branches: make(map[string][]*FlowNode)}
}

// connect appends target under label, recording label in labelOrder the
// first time it is used. Duplicate targets under the same label are
// permitted (fan-out).
func (n *FlowNode) connect(label string, target *FlowNode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, seen := n.branches[label]; !seen {
		n.labelOrder = append(n.labelOrder, label)
	}
	n.branches[label] = append(n.branches[label], target)
}

// Labels returns the branch labels populated on this node, in insertion
// order. Traversal iterates labels in this order, so the tie-break when
// several labels are populated is the order the description declared them.
func (n *FlowNode) Labels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.labelOrder))
	copy(out, n.labelOrder)
	return out
}

// Branch returns the ordered targets for label, or nil if the label is
// unpopulated.
func (n *FlowNode) Branch(label string) []*FlowNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*FlowNode(nil), n.branches[label]...)
}

// HasBranch reports whether label has at least one target.
func (n *FlowNode) HasBranch(label string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.branches[label]
	return ok
}

// QueueLink records a QueueWriter -> QueueReader pairing. The pairing is
// carried as description metadata rather than a traversal edge: the reader
// usually roots its own producer loop, so the link must not create a
// walkable path between the two subgraphs.
type QueueLink struct {
	WriterID string
	ReaderID string
}

// FlowGraph is the aggregate owner of every FlowNode, keyed by id.
type FlowGraph struct {
	mu        sync.RWMutex
	nodes     map[string]*FlowNode
	queueLink []QueueLink
	edgeOrder []edgeRef // declaration order of every Connect call, for deterministic Upstream

	upstreamOnce sync.Once
	upstreamIdx  map[string][]*FlowNode
}

// edgeRef records one connect() call in declaration order so Upstream can
// return results in the order the description declared them, rather than Go
// map iteration order.
type edgeRef struct {
	src, dst string
}

// New returns an empty FlowGraph.
func New() *FlowGraph {
	return &FlowGraph{nodes: make(map[string]*FlowNode)}
}

// Add registers a node instance under id, wrapping it in a FlowNode. Adding
// the same id twice is a BuildError.
func (g *FlowGraph) Add(id string, node flownode.Node) (*FlowNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[id]; exists {
		return nil, errs.Build("duplicate_node", fmt.Sprintf("node id %q already present in graph", id), nil)
	}
	fn := newFlowNode(id, node)
	g.nodes[id] = fn
	return fn, nil
}

// Get looks up a FlowNode by id.
func (g *FlowGraph) Get(id string) (*FlowNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn, ok := g.nodes[id]
	return fn, ok
}

// Connect adds a branch edge srcId -[label]-> dstId. Both ids must already
// be present in the graph.
func (g *FlowGraph) Connect(srcID, dstID, label string) error {
	g.mu.RLock()
	src, srcOK := g.nodes[srcID]
	dst, dstOK := g.nodes[dstID]
	g.mu.RUnlock()
	if !srcOK {
		return errs.Build("dangling_edge", fmt.Sprintf("edge source %q does not exist", srcID), nil)
	}
	if !dstOK {
		return errs.Build("dangling_edge", fmt.Sprintf("edge target %q does not exist", dstID), nil)
	}
	src.connect(label, dst)
	g.mu.Lock()
	g.edgeOrder = append(g.edgeOrder, edgeRef{src: srcID, dst: dstID})
	g.mu.Unlock()
	g.invalidateUpstream()
	return nil
}

// AddQueueLink records a writer/reader pairing for the QueueMapper
// post-processor to consume.
func (g *FlowGraph) AddQueueLink(writerID, readerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queueLink = append(g.queueLink, QueueLink{WriterID: writerID, ReaderID: readerID})
}

// QueueLinks returns every recorded writer/reader pairing.
func (g *FlowGraph) QueueLinks() []QueueLink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]QueueLink(nil), g.queueLink...)
}

// Nodes returns every FlowNode in the graph, unordered.
func (g *FlowGraph) Nodes() []*FlowNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*FlowNode, 0, len(g.nodes))
	for _, fn := range g.nodes {
		out = append(out, fn)
	}
	return out
}

// Producers returns every FlowNode whose node kind is KindProducer.
func (g *FlowGraph) Producers() []*FlowNode {
	var out []*FlowNode
	for _, fn := range g.Nodes() {
		if fn.Node.Kind() == flownode.KindProducer {
			out = append(out, fn)
		}
	}
	return out
}

func (g *FlowGraph) invalidateUpstream() {
	// Connect only happens during the single-threaded build phase (see
	// internal/builder), so a plain reset without taking the lock is safe; the
	// graph is immutable once load completes and Upstream is memoized via
	// sync.Once from that point on.
	g.upstreamOnce = sync.Once{}
	g.upstreamIdx = nil
}

// Upstream returns every FlowNode with an edge (any label) into id, computed
// by scanning recorded edges. Memoized once per graph; the graph is
// immutable during execution.
func (g *FlowGraph) Upstream(id string) []*FlowNode {
	g.upstreamOnce.Do(func() {
		g.mu.RLock()
		edges := append([]edgeRef(nil), g.edgeOrder...)
		nodes := g.nodes
		g.mu.RUnlock()

		// Walk edges in declaration order (not map iteration order) so
		// downstream consumers, e.g. the dev-mode input merge, see a
		// deterministic order across runs.
		idx := make(map[string][]*FlowNode)
		for _, e := range edges {
			idx[e.dst] = append(idx[e.dst], nodes[e.src])
		}
		g.mu.Lock()
		g.upstreamIdx = idx
		g.mu.Unlock()
	})
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*FlowNode(nil), g.upstreamIdx[id]...)
}
