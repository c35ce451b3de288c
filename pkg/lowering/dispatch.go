package lowering

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// processCall lowers a call_function node. The visitor is looked up before
// anything is declared, so an unsupported operator leaves the accumulator
// untouched.
func (s *Session) processCall(g *tosa.Graph, n *graph.Node) error {
	inputs, err := tosa.NodeArgs(n, s.spec)
	if err != nil {
		return s.unsupported(n, err)
	}
	output, err := tosa.NewArg(n, s.spec)
	if err != nil {
		return s.unsupported(n, err)
	}

	visitor, ok := s.visitors.Lookup(n.Target)
	if !ok {
		return &UnsupportedOperatorError{Node: n.Name, Target: n.Target, Spec: s.spec}
	}

	if err := g.AddTensor(output.Name, output.PhysicalShape(), output.DType); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"node": n.Name, "target": n.Target}).Debug("dispatching to visitor")
	if err := visitor.Define(n, g, inputs, output); err != nil {
		return s.unsupported(n, err)
	}
	return nil
}

// unsupported re-raises conversion failures as UnsupportedOperatorError and
// tags anything else with the node name.
func (s *Session) unsupported(n *graph.Node, err error) error {
	var conv *tosa.ConversionError
	if errors.As(err, &conv) {
		return &UnsupportedOperatorError{Node: n.Name, Target: n.Target, Spec: s.spec, Cause: err}
	}
	var capability *tosa.CapabilityError
	if errors.As(err, &capability) {
		return err
	}
	return errors.Wrapf(err, "node %q", n.Name)
}

// bindOutputs binds the sink node's outputs, in order, to tensors declared
// earlier in the block.
func (s *Session) bindOutputs(g *tosa.Graph, n *graph.Node) error {
	if len(n.Args) != 1 {
		return tosa.Invariantf("output node %q has %d arguments, want 1", n.Name, len(n.Args))
	}
	outputs, ok := n.Args[0].([]*graph.Node)
	if !ok {
		return tosa.Invariantf("output node %q argument is %T, want a node list", n.Name, n.Args[0])
	}
	for _, out := range outputs {
		if err := g.AddOutputTensor(out.Name); err != nil {
			return err
		}
	}
	return nil
}
