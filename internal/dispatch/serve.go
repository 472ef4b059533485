package dispatch

import (
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/lyzr/flowengine/internal/flownode"
)

// nodeCreator is the narrow slice of registry.Registry the worker process
// needs; avoids an import cycle back to the registry package from dispatch.
type nodeCreator interface {
	Create(cfg *flownode.NodeConfig) (flownode.Node, error)
}

// ServeNodeWorker blocks serving node-execution RPCs over stdio, the
// -node-worker entry point the engine's own binary re-execs into for the
// process pool substrate. Mirrors go-plugin's standard plugin.Serve
// bootstrapping, with a single "node" plugin implementation.
func ServeNodeWorker(reg nodeCreator) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"node": &NodeWorkerPlugin{Impl: &NodeWorkerServer{Registry: reg}},
		},
	})
}
