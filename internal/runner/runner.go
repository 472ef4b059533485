// Package runner implements the Flow Runner: the per-producer loop that
// drives traversal, branch selection, node lifecycle and DLQ handling.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lyzr/flowengine/internal/backend"
	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/graph"
	"github.com/lyzr/flowengine/internal/template"
	"github.com/lyzr/flowengine/internal/tracker"
)

// State is the Runner's lifecycle state:
// idle -> initializing -> running -> stopping -> stopped, with a side exit
// to failed.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

// Dispatcher is the narrow slice of dispatch.Dispatcher the Runner needs.
// The Runner never touches a goroutine or process primitive directly; every
// node body goes through this interface, so tests can substitute a
// deterministic in-process dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, pool flownode.Pool, node flownode.Node, input flownode.NodeOutput) (flownode.NodeOutput, error)
}

// retryDelayMax bounds the sleep-then-retry after a producer invocation
// fails, keeping a crashing producer from spinning hot.
const retryDelayMax = time.Second

// Runner is the per-ProducerNode scheduler.
type Runner struct {
	producer   *graph.FlowNode
	dispatcher Dispatcher
	be         backend.Backend
	renderer   *template.Renderer
	tracker    *tracker.Tracker
	dlqQueue   string

	mu            sync.Mutex
	state         State
	stopRequested bool
	initialized   map[string]bool // node id -> init() called
}

// New constructs a Runner rooted at producer.
func New(producer *graph.FlowNode, dispatcher Dispatcher, be backend.Backend, renderer *template.Renderer, t *tracker.Tracker, dlqQueue string) *Runner {
	return &Runner{
		producer:    producer,
		dispatcher:  dispatcher,
		be:          be,
		renderer:    renderer,
		tracker:     t,
		dlqQueue:    dlqQueue,
		state:       StateIdle,
		initialized: make(map[string]bool),
	}
}

// State returns the Runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Stop requests a cooperative stop. The loop checks the flag at each
// iteration boundary; an in-flight dispatch is not interrupted.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopRequested = true
	r.mu.Unlock()
}

func (r *Runner) shouldStop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopRequested
}

// Run executes the Runner's full lifecycle: initialize, loop until
// ExecutionCompleted or stop(), then cleanup. It returns a runner-level
// error only if initialization fails, or if ctx is cancelled while the loop
// waits to retry a failed producer invocation. Node-level failures never escape this
// method as an error; they are contained, DLQ'd, and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	r.tracker.RegisterRunner(r.producer.ID)
	defer r.tracker.UnregisterRunner(r.producer.ID)

	r.setState(StateInitializing)
	if err := r.initTree(ctx); err != nil {
		r.setState(StateFailed)
		return err
	}

	r.setState(StateRunning)
	err := r.loop(ctx)

	r.setState(StateStopping)
	r.cleanupTree(ctx)
	if err != nil {
		r.setState(StateFailed)
		return err
	}
	r.setState(StateStopped)
	return nil
}

// initTree runs a DFS from the producer, calling Init() on each unique node
// instance exactly once (set-based dedup).
func (r *Runner) initTree(ctx context.Context) error {
	seen := map[string]bool{}
	var visit func(fn *graph.FlowNode) error
	visit = func(fn *graph.FlowNode) error {
		if seen[fn.ID] {
			return nil
		}
		seen[fn.ID] = true
		if err := fn.Node.Init(ctx); err != nil {
			return errs.Node("init_failed", "init failed for node "+fn.ID, err)
		}
		r.mu.Lock()
		r.initialized[fn.ID] = true
		r.mu.Unlock()

		for _, label := range fn.Labels() {
			for _, child := range fn.Branch(label) {
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return visit(r.producer)
}

// cleanupTree calls Cleanup() on every node this Runner initialized, at most
// once per node. Cleanup errors are swallowed; teardown is best-effort.
func (r *Runner) cleanupTree(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.initialized))
	for id := range r.initialized {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if fn, ok := r.lookup(id); ok {
			_ = fn.Node.Cleanup(ctx)
		}
	}
}

// lookup finds a FlowNode by id by walking the subgraph reachable from the
// producer. initTree/cleanupTree only ever reference ids discovered by that
// same walk, so this always succeeds for ids in r.initialized.
func (r *Runner) lookup(id string) (*graph.FlowNode, bool) {
	seen := map[string]bool{}
	var found *graph.FlowNode
	var visit func(fn *graph.FlowNode)
	visit = func(fn *graph.FlowNode) {
		if seen[fn.ID] || found != nil {
			return
		}
		seen[fn.ID] = true
		if fn.ID == id {
			found = fn
			return
		}
		for _, label := range fn.Labels() {
			for _, child := range fn.Branch(label) {
				visit(child)
			}
		}
	}
	visit(r.producer)
	return found, found != nil
}

// loop drives the producer until it signals completion or a stop is
// requested.
func (r *Runner) loop(ctx context.Context) error {
	for {
		if r.shouldStop() {
			return nil
		}

		r.tracker.NodeStarted(r.producer.ID, r.producer.ID)
		data, err := r.dispatcher.Dispatch(ctx, r.producer.Node.Pool(), r.producer.Node, flownode.NodeOutput{})
		if err != nil {
			// A producer invocation failure does not exit the Runner; it
			// sleeps briefly and retries.
			r.tracker.NodeFailed(r.producer.ID, r.producer.ID, err)
			select {
			case <-time.After(jitterDelay()):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if data.IsExecutionCompleted() {
			// The producer's stream is exhausted; clean it up now and drop it
			// from the initialized set so cleanupTree does not call Cleanup a
			// second time.
			_ = r.producer.Node.Cleanup(ctx)
			r.mu.Lock()
			delete(r.initialized, r.producer.ID)
			r.mu.Unlock()
			return nil
		}

		r.tracker.NodeCompleted(r.producer.ID, r.producer.ID, data.Data, data.Route)

		if err := r.traverse(ctx, r.producer, data); err != nil {
			// A node-level failure was already contained and reported inside
			// traverse; the rest of this iteration is abandoned and control
			// returns to the producer rather than propagating.
			continue
		}
	}
}

func jitterDelay() time.Duration {
	return time.Duration(rand.Int63n(int64(retryDelayMax)))
}

// errIterationAbandoned is returned up the traversal once a node-level
// failure has been contained, so every enclosing traverse stops too.
var errIterationAbandoned = errors.New("iteration abandoned after node failure")

// traverse walks the graph from fn with out as fn's just-produced output.
// Node-level failures anywhere in the walk are caught here: emit nodeFailed,
// DLQ the payload, and return errIterationAbandoned so that no further node
// (sibling of the failed node or of any of its ancestors) runs in this
// iteration and control returns to the producer.
func (r *Runner) traverse(ctx context.Context, fn *graph.FlowNode, out flownode.NodeOutput) error {
	labels, err := r.followedLabels(fn, out)
	if err != nil {
		r.handleNodeFailure(ctx, fn.ID, out, err)
		return errIterationAbandoned
	}

	for _, label := range labels {
		for _, child := range fn.Branch(label) {
			if err := r.execute(ctx, child, out); err != nil {
				if !errors.Is(err, errIterationAbandoned) {
					r.handleNodeFailure(ctx, child.ID, out, err)
				}
				return errIterationAbandoned
			}
		}
	}
	return nil
}

// followedLabels determines which branch labels to follow from fn given its
// output: a conditional node whose route is set follows only that label;
// otherwise every populated branch label is followed in insertion order. An
// unknown route label is a TraversalError.
func (r *Runner) followedLabels(fn *graph.FlowNode, out flownode.NodeOutput) ([]string, error) {
	if fn.Node.Kind() == flownode.KindConditional && out.Route != "" {
		if !fn.HasBranch(out.Route) {
			return nil, errs.Traversal("unknown_route", fmt.Sprintf("node %s emitted unknown route %q", fn.ID, out.Route), nil)
		}
		return []string{out.Route}, nil
	}
	return fn.Labels(), nil
}

// execute runs one node in the traversal (emit started, dispatch, emit
// completed) and recurses into its descendants. A non-blocking node marks
// loop-end: its descendants wait for the next iteration.
func (r *Runner) execute(ctx context.Context, fn *graph.FlowNode, input flownode.NodeOutput) error {
	restoreConfig, err := r.renderConfig(fn, input)
	if err != nil {
		return err
	}
	defer restoreConfig()

	if err := fn.Node.Ready(true); err != nil {
		return errs.Validation("strict_readiness_failed", "node "+fn.ID+" failed strict readiness after template render", err)
	}

	r.tracker.NodeStarted(r.producer.ID, fn.ID)
	out, err := r.dispatcher.Dispatch(ctx, fn.Node.Pool(), fn.Node, input)
	if err != nil {
		return errs.Node("run_failed", "node "+fn.ID+" run failed", err)
	}
	r.tracker.NodeCompleted(r.producer.ID, fn.ID, out.Data, out.Route)

	if fn.Node.Kind() == flownode.KindNonBlocking {
		return nil
	}
	return r.traverse(ctx, fn, out)
}

// renderConfig applies the Template Renderer to fn's form fields before run.
// A producer has no upstream data to template against and is excluded.
//
// The node instance is created once per workflow load and its Config() is
// shared across every iteration of the owning Runner's loop, so the rendered
// form is swapped into cfg.Form only for the duration of this call — the
// returned restore func puts the original template source back before
// renderConfig's caller returns, ready to be re-rendered against the next
// iteration's upstream data.
func (r *Runner) renderConfig(fn *graph.FlowNode, input flownode.NodeOutput) (func(), error) {
	noop := func() {}
	if fn.Node.Kind() == flownode.KindProducer || r.renderer == nil {
		return noop, nil
	}
	cfg := fn.Node.Config()
	original := cfg.Form
	rendered, err := r.renderer.RenderForm(original, input.Data)
	if err != nil {
		return noop, errs.Template("render_failed", "template rendering failed for node "+fn.ID, err)
	}
	cfg.Form = rendered
	return func() { cfg.Form = original }, nil
}

// dlqEntry is the dead-lettered payload shape: the failed node, the input
// it was given, and the error that killed the iteration.
type dlqEntry struct {
	NodeID string                 `json:"nodeId"`
	Input  map[string]interface{} `json:"input"`
	Error  string                 `json:"error"`
}

// handleNodeFailure contains a node-level failure: emit nodeFailed,
// best-effort DLQ push, then control returns to the producer.
func (r *Runner) handleNodeFailure(ctx context.Context, nodeID string, input flownode.NodeOutput, cause error) {
	r.tracker.NodeFailed(r.producer.ID, nodeID, cause)

	if r.be == nil || r.dlqQueue == "" {
		return
	}
	payload, err := json.Marshal(dlqEntry{NodeID: nodeID, Input: input.Data, Error: cause.Error()})
	if err != nil {
		return // DLQ push is best-effort
	}
	_ = r.be.Push(ctx, r.dlqQueue, payload)
}
