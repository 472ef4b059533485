package dispatch

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"net/rpc"
	"os/exec"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
)

func init() {
	// Form and output data maps cross the net/rpc boundary inside interface
	// values; gob needs the composite shapes registered up front.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// Handshake is the go-plugin handshake both sides of the process boundary
// must agree on.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FLOWENGINE_NODE_WORKER",
	MagicCookieValue: "execute-on-process-pool",
}

// PluginMap is the go-plugin plugin set this engine serves: a single
// "node" plugin implementing net/rpc execution.
var PluginMap = map[string]goplugin.Plugin{
	"node": &NodeWorkerPlugin{},
}

// ExecuteArgs is what crosses the process boundary for one dispatch call.
// Only NodeConfig and NodeOutput travel, never the live Go node instance;
// the worker reconstructs the node from its own registry via Type.
type ExecuteArgs struct {
	Config flownode.NodeConfig
	Input  flownode.NodeOutput
}

// ExecuteReply carries the node's output or an error string back.
type ExecuteReply struct {
	Output flownode.NodeOutput
	Err    string
}

// NodeWorkerServer is the RPC-callable surface a node-worker subprocess
// exposes.
type NodeWorkerServer struct {
	Registry interface {
		Create(cfg *flownode.NodeConfig) (flownode.Node, error)
	}

	mu        sync.Mutex
	instances map[string]flownode.Node
}

// Execute reconstructs (or reuses) the node instance for args.Config.ID,
// calling init exactly once per worker process per node id. External
// resources do not traverse process boundaries; the worker's own init
// reacquires them.
func (s *NodeWorkerServer) Execute(args *ExecuteArgs, reply *ExecuteReply) error {
	node, err := s.nodeFor(&args.Config)
	if err != nil {
		reply.Err = err.Error()
		return nil
	}
	out, err := node.Run(context.Background(), args.Input)
	if err != nil {
		reply.Err = err.Error()
		return nil
	}
	reply.Output = out
	return nil
}

func (s *NodeWorkerServer) nodeFor(cfg *flownode.NodeConfig) (flownode.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instances == nil {
		s.instances = make(map[string]flownode.Node)
	}
	if node, ok := s.instances[cfg.ID]; ok {
		return node, nil
	}
	node, err := s.Registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	if err := node.Init(context.Background()); err != nil {
		return nil, err
	}
	s.instances[cfg.ID] = node
	return node, nil
}

// NodeWorkerClient is the caller-side stub.
type NodeWorkerClient struct {
	client *rpc.Client
}

func (c *NodeWorkerClient) Execute(args *ExecuteArgs) (flownode.NodeOutput, error) {
	var reply ExecuteReply
	if err := c.client.Call("Plugin.Execute", args, &reply); err != nil {
		return flownode.NodeOutput{}, err
	}
	if reply.Err != "" {
		return flownode.NodeOutput{}, errs.Node("process_run_failed", reply.Err, nil)
	}
	return reply.Output, nil
}

// NodeWorkerPlugin implements go-plugin's Plugin interface over net/rpc.
type NodeWorkerPlugin struct {
	Impl *NodeWorkerServer
}

func (p *NodeWorkerPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return p.Impl, nil
}

func (p *NodeWorkerPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &NodeWorkerClient{client: c}, nil
}

// processPool launches the engine's own binary in -node-worker mode and
// dispatches calls to it over go-plugin's net/rpc transport. Every node kind
// is compiled into the same binary, so the worker is a re-exec of ourselves
// rather than a separate plugin executable.
type processPool struct {
	workerPath string
	workerArgs []string
	size       int

	mu      sync.Mutex
	client  *goplugin.Client
	stub    *NodeWorkerClient
	started bool
}

func newProcessPool(size int, workerPath string, workerArgs []string) *processPool {
	if size <= 0 {
		size = 1
	}
	return &processPool{size: size, workerPath: workerPath, workerArgs: workerArgs}
}

func (p *processPool) ensureStarted() (*NodeWorkerClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return p.stub, nil
	}
	if p.workerPath == "" {
		return nil, errs.Dispatch("no_worker_path", "process pool has no worker binary path configured", nil)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(p.workerPath, p.workerArgs...),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		return nil, errs.Dispatch("worker_start_failed", "failed to start node-worker subprocess", err)
	}
	raw, err := rpcClient.Dispense("node")
	if err != nil {
		client.Kill()
		return nil, errs.Dispatch("dispense_failed", "failed to dispense node-worker plugin", err)
	}
	stub, ok := raw.(*NodeWorkerClient)
	if !ok {
		client.Kill()
		return nil, errs.Dispatch("bad_plugin_type", "node-worker plugin did not return a NodeWorkerClient", nil)
	}

	p.client = client
	p.stub = stub
	p.started = true
	return stub, nil
}

func (p *processPool) run(ctx context.Context, node flownode.Node, input flownode.NodeOutput) (flownode.NodeOutput, error) {
	stub, err := p.ensureStarted()
	if err != nil {
		return flownode.NodeOutput{}, err
	}

	cfg := node.Config()
	if !isSerializable(cfg) {
		return flownode.NodeOutput{}, errs.Dispatch("not_serializable", "node config is not JSON-serialization-safe", nil)
	}

	out, err := stub.Execute(&ExecuteArgs{Config: *cfg, Input: input})
	if err != nil {
		return flownode.NodeOutput{}, errs.Dispatch("process_dispatch_failed", "process pool dispatch failed for node "+node.ID(), err)
	}
	return out, nil
}

func (p *processPool) shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		p.client.Kill()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Dispatch("shutdown_timeout", "process pool did not shut down within grace period", ctx.Err())
	}
}

// isSerializable reports whether cfg marshals cleanly to JSON. A config
// holding live handles cannot cross the process boundary and is rejected
// with a DispatchError before the RPC is attempted.
func isSerializable(cfg *flownode.NodeConfig) bool {
	_, err := json.Marshal(cfg)
	return err == nil
}
