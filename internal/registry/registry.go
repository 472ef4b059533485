// Package registry maps node type identifiers to factories. Node kinds are
// first-class collaborators the engine never hardcodes; anything that can
// produce a flownode.Node registers itself here at program start.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
)

var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Registry maps lookup(typeIdentifier) -> factory and create(config) ->
// node instance. Identifiers are case-sensitive kebab-case strings;
// duplicate registrations fail loudly.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]flownode.Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]flownode.Factory)}
}

// Register adds a factory under typeIdentifier. Registering the same
// identifier twice is a BuildError.
func (r *Registry) Register(typeIdentifier string, factory flownode.Factory) error {
	if !kebabCase.MatchString(typeIdentifier) {
		return errs.Build("invalid_type_identifier", fmt.Sprintf("node type %q is not case-sensitive kebab-case", typeIdentifier), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeIdentifier]; exists {
		return errs.Build("duplicate_registration", fmt.Sprintf("node type %q already registered", typeIdentifier), nil)
	}
	r.factories[typeIdentifier] = factory
	return nil
}

// MustRegister panics on registration failure; for use when wiring
// demo/fixture node kinds at program start (see demo.Register).
func (r *Registry) MustRegister(typeIdentifier string, factory flownode.Factory) {
	if err := r.Register(typeIdentifier, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered for typeIdentifier.
func (r *Registry) Lookup(typeIdentifier string) (flownode.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[typeIdentifier]
	if !ok {
		return nil, errs.Build("unknown_node_type", fmt.Sprintf("no node type registered for %q", typeIdentifier), nil)
	}
	return factory, nil
}

// Create looks up cfg.Type and instantiates a node from cfg.
func (r *Registry) Create(cfg *flownode.NodeConfig) (flownode.Node, error) {
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	node, err := factory(cfg)
	if err != nil {
		return nil, errs.Build("factory_failed", fmt.Sprintf("node %q (type %q) construction failed", cfg.ID, cfg.Type), err)
	}
	return node, nil
}

// Types returns every registered type identifier, sorted, mainly for
// diagnostics and tests.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
