// Package engine implements the Engine (Orchestrator): it loads workflow
// descriptions, owns the Runners, and exposes the production and
// development entry points.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lyzr/flowengine/internal/backend"
	"github.com/lyzr/flowengine/internal/builder"
	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/graph"
	"github.com/lyzr/flowengine/internal/postprocess"
	"github.com/lyzr/flowengine/internal/registry"
	"github.com/lyzr/flowengine/internal/runner"
	"github.com/lyzr/flowengine/internal/template"
	"github.com/lyzr/flowengine/internal/tracker"
)

// Dispatcher is the slice of dispatch.Dispatcher the Engine threads through
// to every Runner.
type Dispatcher interface {
	Dispatch(ctx context.Context, pool flownode.Pool, node flownode.Node, input flownode.NodeOutput) (flownode.NodeOutput, error)
}

// Engine runs the load pipeline (build, post-process, one Runner per
// producer) and exposes the production and development entry points.
type Engine struct {
	registry   *registry.Registry
	dispatcher Dispatcher
	be         backend.Backend
	renderer   *template.Renderer
	tracker    *tracker.Tracker

	dlqQueue string

	mu       sync.Mutex
	graph    *graph.FlowGraph
	runners  []*runner.Runner
	nodeInit map[string]bool // for runDevelopmentNode
}

// New constructs an Engine. workflowID namespaces the dead-letter queue
// key.
func New(reg *registry.Registry, dispatcher Dispatcher, be backend.Backend, renderer *template.Renderer, t *tracker.Tracker, workflowID string) *Engine {
	return &Engine{
		registry:   reg,
		dispatcher: dispatcher,
		be:         be,
		renderer:   renderer,
		tracker:    t,
		dlqQueue:   backend.DLQKey(workflowID),
		nodeInit:   make(map[string]bool),
	}
}

// Load parses desc via the Builder, runs the post-processors, and
// constructs one Runner per discovered producer node. No nodes are
// initialized here; init is lazy per Runner.
func (e *Engine) Load(desc builder.WorkflowDescription) error {
	e.tracker.Reset()

	g, err := builder.Build(desc, e.registry)
	if err != nil {
		return err
	}

	if err := postprocess.Run(g, postprocess.QueueMapper{}, postprocess.ReadinessValidator{}); err != nil {
		return err
	}

	e.tracker.SetTotalNodes(len(g.Nodes()))

	var runners []*runner.Runner
	for _, producer := range g.Producers() {
		runners = append(runners, runner.New(producer, e.dispatcher, e.be, e.renderer, e.tracker, e.dlqQueue))
	}

	e.mu.Lock()
	e.graph = g
	e.runners = runners
	e.nodeInit = make(map[string]bool)
	e.mu.Unlock()
	return nil
}

// RunProduction spawns every Runner concurrently and waits for all. Any
// unhandled Runner failure is reported via workflowFailed on the Tracker;
// the Engine still awaits the other Runners' orderly stop. errgroup.Group is
// used without WithContext so one Runner's failure does not cancel its
// siblings.
func (e *Engine) RunProduction(ctx context.Context) error {
	e.mu.Lock()
	runners := append([]*runner.Runner(nil), e.runners...)
	e.mu.Unlock()

	if len(runners) == 0 {
		return errs.Build("no_producers", "workflow has no producer nodes to run", nil)
	}

	e.tracker.WorkflowStarted()

	var g errgroup.Group
	var firstErr error
	var mu sync.Mutex

	for _, r := range runners {
		r := r
		g.Go(func() error {
			if err := r.Run(ctx); err != nil {
				e.tracker.WorkflowFailed(err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil // never propagate: errgroup must not cancel siblings.
		})
	}
	_ = g.Wait()
	return firstErr
}

// Stop requests every Runner to stop cooperatively.
func (e *Engine) Stop() {
	e.mu.Lock()
	runners := append([]*runner.Runner(nil), e.runners...)
	e.mu.Unlock()
	for _, r := range runners {
		r.Stop()
	}
}

// RunDevelopmentNode runs a single node in isolation: resolve upstream
// cached outputs from the Backend, merge with inputOverride taking
// precedence, init the node if needed, dispatch once, write the result back
// to cache.
func (e *Engine) RunDevelopmentNode(ctx context.Context, nodeID string, inputOverride map[string]interface{}) (flownode.NodeOutput, error) {
	e.mu.Lock()
	g := e.graph
	e.mu.Unlock()
	if g == nil {
		return flownode.NodeOutput{}, errs.Build("not_loaded", "engine has no loaded workflow", nil)
	}

	fn, ok := g.Get(nodeID)
	if !ok {
		return flownode.NodeOutput{}, errs.Build("unknown_node", fmt.Sprintf("node %q not found in loaded graph", nodeID), nil)
	}

	merged, err := e.resolveUpstreamInputs(ctx, g, nodeID)
	if err != nil {
		return flownode.NodeOutput{}, err
	}
	for k, v := range inputOverride {
		merged[k] = v // inputOverride wins over cached upstream data
	}

	if err := e.ensureInit(ctx, fn); err != nil {
		return flownode.NodeOutput{}, err
	}

	input := flownode.NodeOutput{Data: merged}
	out, err := e.dispatcher.Dispatch(ctx, fn.Node.Pool(), fn.Node, input)
	if err != nil {
		return flownode.NodeOutput{}, err
	}

	payload, merr := flownode.Marshal(nodeID, out)
	if merr == nil {
		_ = e.be.Set(ctx, backend.DevOutputKey(nodeID), payload, 0)
	}
	return out, nil
}

// resolveUpstreamInputs fetches dev:out:{upstreamId} for every upstream
// FlowNode of nodeID and merges them. Iterating in graph.Upstream's declared
// order and letting each subsequent map overwrite the previous means the
// last-declared upstream's keys win on conflict.
func (e *Engine) resolveUpstreamInputs(ctx context.Context, g *graph.FlowGraph, nodeID string) (map[string]interface{}, error) {
	merged := map[string]interface{}{}
	for _, up := range g.Upstream(nodeID) {
		payload, err := e.be.Get(ctx, backend.DevOutputKey(up.ID))
		if err != nil {
			return nil, err
		}
		if payload == nil {
			continue
		}
		_, out, err := flownode.Unmarshal(payload)
		if err != nil {
			continue
		}
		for k, v := range out.Data {
			merged[k] = v
		}
	}
	return merged, nil
}

func (e *Engine) ensureInit(ctx context.Context, fn *graph.FlowNode) error {
	e.mu.Lock()
	already := e.nodeInit[fn.ID]
	e.mu.Unlock()
	if already {
		return nil
	}
	if err := fn.Node.Init(ctx); err != nil {
		return errs.Node("init_failed", "init failed for node "+fn.ID, err)
	}
	e.mu.Lock()
	e.nodeInit[fn.ID] = true
	e.mu.Unlock()
	return nil
}

// Tracker exposes the Engine's Event/State Tracker for external
// subscription.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// ShutdownGrace is a 30-second grace period, the same value common/config
// uses as its DISPATCH_SHUTDOWN_GRACE default. The Engine itself does not
// read it.
const ShutdownGrace = 30 * time.Second
