// Package postprocess implements the post-load passes that run after the
// Builder succeeds and before the Engine starts runners: assigning queue
// names to writer/reader pairs and validating node readiness.
package postprocess

import (
	"github.com/lyzr/flowengine/internal/backend"
	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/graph"
)

// Form field names the QueueMapper writes into both sides of a pairing.
const QueueNameField = "queueName"

// Processor mutates a graph in place after Builder succeeds. The list is
// open: further passes (e.g. cycle detection) slot in behind this same
// interface.
type Processor interface {
	Process(g *graph.FlowGraph) error
}

// Run executes every processor in order, stopping at the first error.
func Run(g *graph.FlowGraph, processors ...Processor) error {
	for _, p := range processors {
		if err := p.Process(g); err != nil {
			return err
		}
	}
	return nil
}

// QueueMapper synthesizes a queue_{writerId}_{readerId} queue name for every
// recorded writer/reader pairing and writes it into both sides' form fields.
// A node missing a counterpart has no QueueLink recorded for it (the Builder
// only records links it parsed), so its form field stays untouched and the
// engine treats the empty name as misconfigured at runtime.
type QueueMapper struct{}

func (QueueMapper) Process(g *graph.FlowGraph) error {
	for _, link := range g.QueueLinks() {
		queueName := backend.QueueName(link.WriterID, link.ReaderID)

		if writer, ok := g.Get(link.WriterID); ok {
			writer.Node.Config().SetFormValue(QueueNameField, queueName)
		}
		if reader, ok := g.Get(link.ReaderID); ok {
			reader.Node.Config().SetFormValue(QueueNameField, queueName)
		}
	}
	return nil
}

// ReadinessValidator invokes every node's non-strict readiness predicate and
// collects violations, aborting with a single ValidationError listing
// {nodeId: message} pairs if any node is not ready.
type ReadinessValidator struct{}

func (ReadinessValidator) Process(g *graph.FlowGraph) error {
	violations := errs.ValidationViolations{}
	for _, fn := range g.Nodes() {
		if err := fn.Node.Ready(false); err != nil {
			violations[fn.ID] = err.Error()
		}
	}
	if len(violations) > 0 {
		return errs.AsValidationError(violations)
	}
	return nil
}
