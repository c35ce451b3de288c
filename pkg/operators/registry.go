// Package operators holds the visitors that lower call_function nodes into
// TOSA operators, and the registry a lowering session looks them up in.
package operators

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Visitor lowers every node whose target matches Target. The output tensor
// is already declared when Define runs; Define appends the operators (and any
// constant operands) that compute it.
type Visitor interface {
	Target() string
	Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error
}

// Registration describes a visitor before it is bound to a spec.
type Registration struct {
	Target string
	// Versions lists the wire major versions the visitor exists for. Empty
	// means every version.
	Versions []int32
	New      func(spec tosa.Spec) Visitor
}

func (r Registration) supports(spec tosa.Spec) bool {
	return len(r.Versions) == 0 || slices.Contains(r.Versions, spec.WireVersion().Major)
}

// Registry maps operator targets to visitors for one spec. It is built once
// and never changes, so sessions may share it.
type Registry struct {
	spec     tosa.Spec
	visitors map[string]Visitor
}

// NewRegistry instantiates every registration that supports spec.
// Registering a target twice for the same spec is an error.
func NewRegistry(spec tosa.Spec, regs ...Registration) (*Registry, error) {
	if spec == nil {
		return nil, &tosa.UnsupportedSpecError{Spec: "<nil>"}
	}
	r := &Registry{spec: spec, visitors: make(map[string]Visitor)}
	for _, reg := range regs {
		if !reg.supports(spec) {
			continue
		}
		if _, exists := r.visitors[reg.Target]; exists {
			return nil, errors.Errorf("visitor for %q registered twice for %s", reg.Target, spec)
		}
		v := reg.New(spec)
		if v.Target() != reg.Target {
			return nil, errors.Errorf("registration %q built a visitor for %q", reg.Target, v.Target())
		}
		r.visitors[reg.Target] = v
	}
	return r, nil
}

// Spec returns the spec the registry was built for.
func (r *Registry) Spec() tosa.Spec {
	return r.spec
}

// Lookup returns the visitor for target.
func (r *Registry) Lookup(target string) (Visitor, bool) {
	v, ok := r.visitors[target]
	return v, ok
}

// Targets lists the registered targets in sorted order.
func (r *Registry) Targets() []string {
	targets := lo.Keys(r.visitors)
	slices.Sort(targets)
	return targets
}
