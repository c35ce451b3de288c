// Package lowering turns an exported program into a TOSA graph.
//
// A Session walks the graph once in order. Placeholders are classified and
// declared as inputs or constants, call_function nodes are dispatched to the
// visitor registered for their target and the output node binds the graph
// outputs. Any failure aborts the session; no partial graph is returned.
package lowering

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/operators"
	"github.com/zerfoo/ztosa/pkg/serializer"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Session lowers one program under one spec. It is not safe for concurrent
// use; run independent sessions instead.
type Session struct {
	program  *graph.ExportedProgram
	spec     tosa.Spec
	backend  serializer.Backend
	visitors *operators.Registry
	log      logrus.FieldLogger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession selects the serializer for spec and binds the visitor registry,
// which must have been built for the same spec.
func NewSession(program *graph.ExportedProgram, spec tosa.Spec, visitors *operators.Registry, opts ...Option) (*Session, error) {
	if program == nil || program.Graph == nil {
		return nil, errors.New("no program to lower")
	}
	backend, err := serializer.ForSpec(spec)
	if err != nil {
		return nil, err
	}
	if visitors == nil {
		return nil, errors.New("no visitor registry")
	}
	if visitors.Spec() != spec {
		return nil, errors.Errorf("visitor registry was built for %s, session uses %s", visitors.Spec(), spec)
	}
	s := &Session{
		program:  program,
		spec:     spec,
		backend:  backend,
		visitors: visitors,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("spec", spec.String())
	return s, nil
}

// Spec returns the session's spec.
func (s *Session) Spec() tosa.Spec {
	return s.spec
}

// Backend returns the serializer selected for the session.
func (s *Session) Backend() serializer.Backend {
	return s.backend
}

// Lower builds a new target graph from the program.
func (s *Session) Lower() (*tosa.Graph, error) {
	if err := s.program.Graph.Validate(); err != nil {
		return nil, tosa.Invariantf("invalid exported graph: %v", err)
	}
	g := s.backend.NewGraph()
	for _, n := range s.program.Graph.Nodes() {
		var err error
		switch n.Op {
		case graph.OpPlaceholder:
			err = s.processPlaceholder(g, n)
		case graph.OpCallFunction:
			err = s.processCall(g, n)
		case graph.OpOutput:
			err = s.bindOutputs(g, n)
		default:
			err = tosa.Invariantf("node %q has unknown op %q", n.Name, n.Op)
		}
		if err != nil {
			s.log.WithField("node", n.Name).WithError(err).Debug("lowering failed")
			return nil, err
		}
	}
	blk := g.CurrentBlock()
	s.log.WithFields(logrus.Fields{
		"tensors":   len(blk.Tensors()),
		"operators": len(blk.Operators()),
	}).Debug("lowered program")
	return g, nil
}

// Compile lowers program under spec and serializes the result.
func Compile(program *graph.ExportedProgram, spec tosa.Spec, visitors *operators.Registry, opts ...Option) ([]byte, error) {
	s, err := NewSession(program, spec, visitors, opts...)
	if err != nil {
		return nil, err
	}
	g, err := s.Lower()
	if err != nil {
		return nil, err
	}
	return s.backend.Marshal(g)
}
