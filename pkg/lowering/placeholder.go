package lowering

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// processPlaceholder declares an input slot according to its role.
func (s *Session) processPlaceholder(g *tosa.Graph, n *graph.Node) error {
	if n.Name != n.Target {
		return tosa.Invariantf("placeholder %q has target %q", n.Name, n.Target)
	}
	if len(n.Args) != 0 {
		return tosa.Invariantf("placeholder %q has %d arguments", n.Name, len(n.Args))
	}

	kind := Classify(s.program, n)
	s.log.WithField("node", n.Name).Debugf("placeholder is a %s", kind)
	switch kind {
	case KindLiftedCustomObject:
		return &NotImplementedError{Name: n.Name, What: "lifted custom object"}
	case KindUnknown:
		return &UnknownPlaceholderError{Name: n.Name}
	}

	arg, err := tosa.NewArg(n, s.spec)
	if err != nil {
		return s.unsupported(n, err)
	}
	var t *graph.Tensor
	switch kind {
	case KindUserInput:
		return s.processUserInput(g, n, arg)
	case KindParameter:
		t, err = s.program.Parameter(n)
	case KindBuffer:
		t, err = s.program.Buffer(n)
	case KindLiftedConstant:
		t, err = s.program.LiftedConstant(n)
	}
	if err != nil {
		return err
	}
	if err := s.processState(g, n, arg, t, kind); err != nil {
		return s.unsupported(n, err)
	}
	return nil
}

func (s *Session) processUserInput(g *tosa.Graph, n *graph.Node, arg tosa.Arg) error {
	if !tosa.IsContiguous(arg.DimOrder) {
		return &LayoutError{Name: n.Name, Expected: graph.Contiguous(len(arg.Shape)), Actual: arg.DimOrder}
	}
	return g.AddInputTensor(n.Name, arg.PhysicalShape(), arg.DType)
}

// processState declares a parameter, buffer or lifted constant as a constant
// tensor. The element type and layout come from the node, the values from
// the stored tensor.
func (s *Session) processState(g *tosa.Graph, n *graph.Node, arg tosa.Arg, t *graph.Tensor, kind PlaceholderKind) error {
	if kind == KindParameter && arg.DType.IsFloat() && !s.spec.SupportsFloat() {
		return &tosa.CapabilityError{Spec: s.spec, Name: n.Name, What: arg.DType.String() + " parameters"}
	}
	if !slices.Equal(arg.Shape, t.Shape) {
		return &tosa.ConversionError{Name: n.Name, Reason: fmt.Sprintf("stored shape %v does not match node shape %v", t.Shape, arg.Shape)}
	}

	values, shape := t.Data, t.Shape
	switch {
	case kind == KindLiftedConstant:
		// Lifted constants are declared as stored.
	case kind == KindBuffer && len(t.Shape) <= 1:
		// Rank 0 and rank 1 buffers (running statistics and the like) have
		// nothing to reorder.
	default:
		var err error
		values, err = tosa.Permute(t.Data, t.Shape, arg.DimOrder)
		if err != nil {
			return errors.Wrapf(err, "%s %q", kind, n.Name)
		}
		shape = arg.PhysicalShape()
	}

	data, err := tosa.EncodeValues(arg.DType, values)
	if err != nil {
		return errors.Wrapf(err, "%s %q", kind, n.Name)
	}
	return g.AddConst(n.Name, shape, arg.DType, data)
}
