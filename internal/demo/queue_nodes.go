package demo

import (
	"context"
	"time"

	"github.com/lyzr/flowengine/internal/backend"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/postprocess"
)

// queueNodeFactory is the shape a Registry.Register call expects. These
// factories close over a Backend, unlike the pure-function demo nodes in
// nodes.go, so they're constructed via NewQueueWriterFactory/
// NewQueueReaderFactory rather than registered directly in Register.
type queueNodeFactory = func(cfg *flownode.NodeConfig) (flownode.Node, error)

// NewQueueWriterFactory returns a factory for a blocking node that pushes
// its input onto the queue named by the QueueMapper post-processor's
// "queueName" form field.
func NewQueueWriterFactory(be backend.Backend) queueNodeFactory {
	return func(cfg *flownode.NodeConfig) (flownode.Node, error) {
		return &queueWriter{cfg: cfg, be: be}, nil
	}
}

// NewQueueReaderFactory returns a factory for a producer node that pops
// from the queue named by the QueueMapper, blocking up to 2s per attempt.
func NewQueueReaderFactory(be backend.Backend) queueNodeFactory {
	return func(cfg *flownode.NodeConfig) (flownode.Node, error) {
		return &queueReader{cfg: cfg, be: be}, nil
	}
}

type queueWriter struct {
	cfg *flownode.NodeConfig
	be  backend.Backend
}

func (n *queueWriter) ID() string                        { return n.cfg.ID }
func (n *queueWriter) Kind() flownode.Kind               { return flownode.KindBlocking }
func (n *queueWriter) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *queueWriter) Config() *flownode.NodeConfig      { return n.cfg }
func (n *queueWriter) Init(ctx context.Context) error    { return nil }
func (n *queueWriter) Cleanup(ctx context.Context) error { return nil }
func (n *queueWriter) Ready(strict bool) error           { return nil }

func (n *queueWriter) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	queueName, _ := n.cfg.FormValue(queueNameField())
	name, _ := queueName.(string)
	if name == "" {
		return input, nil // no queue assigned: misconfigured, pass through
	}
	payload, err := flownode.Marshal(n.cfg.ID, input)
	if err != nil {
		return flownode.NodeOutput{}, err
	}
	if err := n.be.Push(ctx, name, payload); err != nil {
		return flownode.NodeOutput{}, err
	}
	return input, nil
}

type queueReader struct {
	cfg *flownode.NodeConfig
	be  backend.Backend
}

func (n *queueReader) ID() string                        { return n.cfg.ID }
func (n *queueReader) Kind() flownode.Kind               { return flownode.KindProducer }
func (n *queueReader) Pool() flownode.Pool               { return flownode.PoolAsync }
func (n *queueReader) Config() *flownode.NodeConfig      { return n.cfg }
func (n *queueReader) Init(ctx context.Context) error    { return nil }
func (n *queueReader) Cleanup(ctx context.Context) error { return nil }
func (n *queueReader) Ready(strict bool) error           { return nil }

func (n *queueReader) Run(ctx context.Context, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	queueName, _ := n.cfg.FormValue(queueNameField())
	name, _ := queueName.(string)
	if name == "" {
		return flownode.NodeOutput{}, nil
	}
	payload, err := n.be.Pop(ctx, name, 2*time.Second)
	if err != nil {
		return flownode.NodeOutput{}, err
	}
	if payload == nil {
		return flownode.NodeOutput{Data: map[string]interface{}{}}, nil
	}
	_, out, err := flownode.Unmarshal(payload)
	if err != nil {
		return flownode.NodeOutput{}, err
	}
	return out, nil
}

func queueNameField() string { return postprocess.QueueNameField }
