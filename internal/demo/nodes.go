// Package demo provides fixture node kinds: a counting producer, a
// passthrough blocking node, a terminating non-blocking node, and a
// conditional yes/no router. Real node bodies (HTTP fetchers, browser
// controllers, LLM calls) live outside the engine; these fixtures exist to
// drive tests and the cmd/engine demo workflow against real node instances.
package demo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/registry"
)

// Register wires every demo node kind into reg.
func Register(reg *registry.Registry) {
	reg.MustRegister("counter-producer", newCounterProducer)
	reg.MustRegister("passthrough-blocking", newPassthroughBlocking)
	reg.MustRegister("terminator-nonblocking", newTerminatorNonBlocking)
	reg.MustRegister("yes-no-conditional", newYesNoConditional)
}

// counterProducer emits {i:1}, {i:2}, ... up to its limit, then
// ExecutionCompleted.
type counterProducer struct {
	cfg   *flownode.NodeConfig
	limit int64
	count int64
}

func newCounterProducer(cfg *flownode.NodeConfig) (flownode.Node, error) {
	limit := int64(2)
	if v, ok := cfg.FormValue("limit"); ok {
		if f, ok := v.(float64); ok {
			limit = int64(f)
		}
	}
	return &counterProducer{cfg: cfg, limit: limit}, nil
}

func (n *counterProducer) ID() string                        { return n.cfg.ID }
func (n *counterProducer) Kind() flownode.Kind               { return flownode.KindProducer }
func (n *counterProducer) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *counterProducer) Config() *flownode.NodeConfig      { return n.cfg }
func (n *counterProducer) Init(ctx context.Context) error    { return nil }
func (n *counterProducer) Cleanup(ctx context.Context) error { return nil }
func (n *counterProducer) Ready(strict bool) error           { return nil }

func (n *counterProducer) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	next := atomic.AddInt64(&n.count, 1)
	if next > n.limit {
		return flownode.ExecutionCompleted(), nil
	}
	return flownode.NodeOutput{Data: map[string]interface{}{"i": next}}, nil
}

// passthroughBlocking copies its input data through, marking that it has
// seen the payload.
type passthroughBlocking struct {
	cfg *flownode.NodeConfig
}

func newPassthroughBlocking(cfg *flownode.NodeConfig) (flownode.Node, error) {
	return &passthroughBlocking{cfg: cfg}, nil
}

func (n *passthroughBlocking) ID() string                        { return n.cfg.ID }
func (n *passthroughBlocking) Kind() flownode.Kind               { return flownode.KindBlocking }
func (n *passthroughBlocking) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *passthroughBlocking) Config() *flownode.NodeConfig      { return n.cfg }
func (n *passthroughBlocking) Init(ctx context.Context) error    { return nil }
func (n *passthroughBlocking) Cleanup(ctx context.Context) error { return nil }
func (n *passthroughBlocking) Ready(strict bool) error           { return nil }

func (n *passthroughBlocking) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	out := map[string]interface{}{"seen": true}
	for k, v := range input.Data {
		out[k] = v
	}
	return flownode.NodeOutput{Data: out}, nil
}

// terminatorNonBlocking marks loop-end; nothing downstream of it runs in
// the same iteration.
type terminatorNonBlocking struct {
	cfg *flownode.NodeConfig
}

func newTerminatorNonBlocking(cfg *flownode.NodeConfig) (flownode.Node, error) {
	return &terminatorNonBlocking{cfg: cfg}, nil
}

func (n *terminatorNonBlocking) ID() string                        { return n.cfg.ID }
func (n *terminatorNonBlocking) Kind() flownode.Kind               { return flownode.KindNonBlocking }
func (n *terminatorNonBlocking) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *terminatorNonBlocking) Config() *flownode.NodeConfig      { return n.cfg }
func (n *terminatorNonBlocking) Init(ctx context.Context) error    { return nil }
func (n *terminatorNonBlocking) Cleanup(ctx context.Context) error { return nil }
func (n *terminatorNonBlocking) Ready(strict bool) error           { return nil }

func (n *terminatorNonBlocking) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	return input, nil
}

// yesNoConditional reads a bool field ("approved" by default) from its
// input and routes "yes"/"no" accordingly.
type yesNoConditional struct {
	cfg   *flownode.NodeConfig
	field string
}

func newYesNoConditional(cfg *flownode.NodeConfig) (flownode.Node, error) {
	field := "approved"
	if v, ok := cfg.FormValue("field"); ok {
		if s, ok := v.(string); ok && s != "" {
			field = s
		}
	}
	return &yesNoConditional{cfg: cfg, field: field}, nil
}

func (n *yesNoConditional) ID() string                        { return n.cfg.ID }
func (n *yesNoConditional) Kind() flownode.Kind               { return flownode.KindConditional }
func (n *yesNoConditional) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *yesNoConditional) Config() *flownode.NodeConfig      { return n.cfg }
func (n *yesNoConditional) Init(ctx context.Context) error    { return nil }
func (n *yesNoConditional) Cleanup(ctx context.Context) error { return nil }
func (n *yesNoConditional) Ready(strict bool) error           { return nil }

func (n *yesNoConditional) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	route := "no"
	if approved, ok := input.Data[n.field].(bool); ok && approved {
		route = "yes"
	}
	return flownode.NodeOutput{Data: input.Data, Route: route}, nil
}

// flakyBlocking fails on every Nth call; the failure-containment tests use
// it to drive the DLQ path.
type flakyBlocking struct {
	cfg    *flownode.NodeConfig
	every  int64
	mu     sync.Mutex
	calls  int64
}

// NewFlakyBlocking is exported (unlike the other fixtures) since tests for
// failure containment construct it directly with a specific `every` without
// going through the registry/form-parsing path.
func NewFlakyBlocking(cfg *flownode.NodeConfig, every int64) flownode.Node {
	return &flakyBlocking{cfg: cfg, every: every}
}

func (n *flakyBlocking) ID() string                        { return n.cfg.ID }
func (n *flakyBlocking) Kind() flownode.Kind               { return flownode.KindBlocking }
func (n *flakyBlocking) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *flakyBlocking) Config() *flownode.NodeConfig      { return n.cfg }
func (n *flakyBlocking) Init(ctx context.Context) error    { return nil }
func (n *flakyBlocking) Cleanup(ctx context.Context) error { return nil }
func (n *flakyBlocking) Ready(strict bool) error           { return nil }

func (n *flakyBlocking) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	n.mu.Lock()
	n.calls++
	calls := n.calls
	n.mu.Unlock()
	if calls%n.every == 0 {
		return flownode.NodeOutput{}, fmt.Errorf("flaky failure on call %d", calls)
	}
	return input, nil
}
