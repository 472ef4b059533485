// Package flownode defines the node contract: the per-instance
// configuration, the runtime payload shuttled between nodes, and the
// interface every node kind (producer, blocking, non-blocking, conditional)
// implements.
package flownode

import "context"

// Pool names the execution substrate a node prefers to run on.
type Pool string

const (
	PoolAsync   Pool = "async"
	PoolThread  Pool = "thread"
	PoolProcess Pool = "process"
)

// Kind discriminates the node variants. The Runner switches on this at
// traversal decision points rather than using a type switch over concrete
// Go types, so new kinds can be added without touching the Runner.
type Kind string

const (
	KindProducer    Kind = "producer"
	KindBlocking    Kind = "blocking"
	KindNonBlocking Kind = "non_blocking"
	KindConditional Kind = "conditional"
)

// NodeConfig is the per-instance configuration produced by the Builder and
// consumed by node factories. Its Form is written to after the build: the
// QueueMapper sets queue names in it, and the Runner swaps in a rendered Form
// for the duration of each node call.
type NodeConfig struct {
	ID   string
	Type string
	Form map[string]interface{}
	Data map[string]interface{}
}

// FormValue returns a form field by key.
func (c *NodeConfig) FormValue(key string) (interface{}, bool) {
	if c.Form == nil {
		return nil, false
	}
	v, ok := c.Form[key]
	return v, ok
}

// SetFormValue is used by the QueueMapper post-processor to write a
// synthesized queue name into a node's form.
func (c *NodeConfig) SetFormValue(key string, value interface{}) {
	if c.Form == nil {
		c.Form = map[string]interface{}{}
	}
	c.Form[key] = value
}

// NodeOutput is the runtime payload moving between nodes.
type NodeOutput struct {
	Data        map[string]interface{} `json:"data"`
	Source      string                 `json:"-"`
	Destination string                 `json:"-"`
	Route       string                 `json:"-"`

	// completed marks the ExecutionCompleted sentinel. Unexported so callers
	// cannot fake it by zero-valuing a struct literal; use IsExecutionCompleted/
	// ExecutionCompleted() instead.
	completed bool
}

// ExecutionCompleted is the terminal singleton signaling a producer's stream
// is exhausted.
func ExecutionCompleted() NodeOutput {
	return NodeOutput{completed: true}
}

// IsExecutionCompleted reports whether out is the ExecutionCompleted sentinel.
func (out NodeOutput) IsExecutionCompleted() bool { return out.completed }

// wireOutput is the JSON wire shape: {id, data, metadata:{source,
// destination, route?}}. Readers must tolerate unknown fields, which
// encoding/json does by default.
type wireOutput struct {
	ID       string                 `json:"id,omitempty"`
	Data     map[string]interface{} `json:"data"`
	Metadata wireMetadata           `json:"metadata"`
}

type wireMetadata struct {
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Route       string `json:"route,omitempty"`
	Completed   bool   `json:"completed,omitempty"`
}

// Node is the interface every node kind implements.
type Node interface {
	ID() string
	Kind() Kind
	Pool() Pool
	Config() *NodeConfig

	Init(ctx context.Context) error
	Run(ctx context.Context, input NodeOutput) (NodeOutput, error)
	Cleanup(ctx context.Context) error

	// Ready is the readiness predicate consulted before first execution, and
	// again in "strict" mode after template rendering.
	Ready(strict bool) error
}

// Factory builds a Node instance from its config. Registered per type
// identifier in the Node Registry.
type Factory func(cfg *NodeConfig) (Node, error)
