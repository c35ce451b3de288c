package quantizer

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/zerfoo/ztosa/pkg/graph"
)

// FilterFunc limits a rule to the nodes it returns true for. A nil filter
// admits every node.
type FilterFunc func(*graph.Node) bool

// Rule annotates the nodes of g that match its pattern and returns every
// match in graph order, including nodes that were already annotated.
type Rule func(g *graph.Graph, cfg *Config, filter FilterFunc) []*graph.Node

// Registration binds a rule to a pattern name.
type Registration struct {
	Name string
	Rule Rule
}

// Registry maps pattern names to rules. It is built once and read-only
// afterwards.
type Registry struct {
	names []string
	rules map[string]Rule
}

// NewRegistry builds a registry. Names must be unique.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{rules: make(map[string]Rule, len(regs))}
	for _, reg := range regs {
		if reg.Rule == nil {
			return nil, errors.Errorf("rule %q is nil", reg.Name)
		}
		if _, exists := r.rules[reg.Name]; exists {
			return nil, errors.Errorf("rule %q registered twice", reg.Name)
		}
		r.names = append(r.names, reg.Name)
		r.rules[reg.Name] = reg.Rule
	}
	return r, nil
}

// Default returns the built-in rule registrations.
func Default() []Registration {
	return []Registration{
		{Name: "add", Rule: annotateAdd},
		{Name: "sub", Rule: annotateSub},
		{Name: "relu", Rule: annotateReLU},
	}
}

// DefaultRegistry returns a registry of the built-in rules.
func DefaultRegistry() *Registry {
	return lo.Must(NewRegistry(Default()...))
}

// Lookup returns the rule registered under name.
func (r *Registry) Lookup(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns the rule names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
