// Package builder parses a workflow description into a graph.FlowGraph via
// the Node Registry: two passes, convert every node first, then wire the
// edges so dangling references fail loudly.
package builder

import (
	"fmt"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/graph"
	"github.com/lyzr/flowengine/internal/registry"
)

// QueueHandle is the reserved sourceHandle value that marks an edge as a
// queue writer/reader pairing rather than a traversal branch. The reader
// side roots its own producer loop, so the pairing must not create a
// walkable path between the two subgraphs.
const QueueHandle = "queue"

// NodeDescription is one entry of the description's "nodes" array.
type NodeDescription struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

// NodeData is the {form, config} section of a node description.
type NodeData struct {
	Form   map[string]interface{} `json:"form"`
	Config map[string]interface{} `json:"config"`
}

// EdgeDescription is one entry of the description's "edges" array.
type EdgeDescription struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourceHandle *string `json:"sourceHandle"`
}

// WorkflowDescription is the full JSON description shape.
type WorkflowDescription struct {
	Nodes []NodeDescription `json:"nodes"`
	Edges []EdgeDescription `json:"edges"`
}

// NormalizeHandle normalizes an edge's sourceHandle:
// null -> "default", "Yes" -> "yes", "No" -> "no", else verbatim.
func NormalizeHandle(handle *string) string {
	if handle == nil {
		return graph.DefaultBranch
	}
	switch *handle {
	case "Yes":
		return "yes"
	case "No":
		return "no"
	default:
		return *handle
	}
}

// Build parses desc into a graph.FlowGraph, instantiating nodes via reg.
// Fails with a BuildError on unknown types or dangling references.
func Build(desc WorkflowDescription, reg *registry.Registry) (*graph.FlowGraph, error) {
	g := graph.New()

	for _, nd := range desc.Nodes {
		cfg := &flownode.NodeConfig{
			ID:   nd.ID,
			Type: nd.Type,
			Form: nd.Data.Form,
			Data: nd.Data.Config,
		}
		node, err := reg.Create(cfg)
		if err != nil {
			return nil, errs.Build("node_creation_failed", fmt.Sprintf("node %q", nd.ID), err)
		}
		if _, err := g.Add(nd.ID, node); err != nil {
			return nil, err
		}
	}

	for _, ed := range desc.Edges {
		label := NormalizeHandle(ed.SourceHandle)
		if label == QueueHandle {
			if _, ok := g.Get(ed.Source); !ok {
				return nil, errs.Build("dangling_edge", fmt.Sprintf("queue link source %q does not exist", ed.Source), nil)
			}
			if _, ok := g.Get(ed.Target); !ok {
				return nil, errs.Build("dangling_edge", fmt.Sprintf("queue link target %q does not exist", ed.Target), nil)
			}
			g.AddQueueLink(ed.Source, ed.Target)
			continue
		}
		if err := g.Connect(ed.Source, ed.Target, label); err != nil {
			return nil, err
		}
	}

	return g, nil
}
