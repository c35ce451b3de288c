package operators

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// permute lowers aten.permute_copy.default to TRANSPOSE.
type permute struct{}

func (permute) Target() string { return "aten.permute_copy.default" }

func (permute) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	in, dims, err := tensorAndList(node, inputs)
	if err != nil {
		return err
	}
	rank := len(in.Shape)
	perms := lo.Map(dims, func(d int64, _ int) int {
		// Negative dims count from the back.
		if d < 0 {
			return int(d) + rank
		}
		return int(d)
	})
	if !tosa.IsPermutation(perms, rank) {
		return &tosa.ConversionError{Name: node.Name, Reason: fmt.Sprintf("dims %v are not a permutation of rank %d", dims, rank)}
	}
	if err := requireContiguous(node, in, output); err != nil {
		return err
	}
	return g.AddOperator(tosa.OpTranspose, []string{in.Name}, []string{output.Name},
		tosa.IntAttr("perms", lo.Map(perms, func(p int, _ int) int64 { return int64(p) })...))
}

// reshape lowers aten.view_copy.default to RESHAPE. 0.80 carries the new
// shape as an attribute, 1.0 as a SHAPE-typed const operand.
type reshape struct {
	spec tosa.Spec
}

func (reshape) Target() string { return "aten.view_copy.default" }

func (v reshape) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	in, size, err := tensorAndList(node, inputs)
	if err != nil {
		return err
	}
	if err := requireContiguous(node, in, output); err != nil {
		return err
	}
	shape, err := inferShape(numElements(in.Shape), size)
	if err != nil {
		return &tosa.ConversionError{Name: node.Name, Reason: err.Error()}
	}

	switch v.spec.(type) {
	case tosa.SpecV0:
		return g.AddOperator(tosa.OpReshape, []string{in.Name}, []string{output.Name}, tosa.IntAttr("new_shape", shape...))
	default:
		name := output.Name + graph.NameSeparator + "shape"
		data, err := tosa.EncodeValues(tosa.DTypeShape, lo.Map(shape, func(d int64, _ int) float64 { return float64(d) }))
		if err != nil {
			return err
		}
		if err := g.AddConst(name, []int{len(shape)}, tosa.DTypeShape, data); err != nil {
			return err
		}
		return g.AddOperator(tosa.OpReshape, []string{in.Name, name}, []string{output.Name})
	}
}

// inferShape resolves a single -1 entry of size against the element count.
func inferShape(elements int, size []int64) ([]int64, error) {
	shape := append([]int64{}, size...)
	infer := -1
	known := int64(1)
	for i, d := range shape {
		switch {
		case d == -1 && infer >= 0:
			return nil, errors.Errorf("more than one inferred dimension in %v", size)
		case d == -1:
			infer = i
		case d < 0:
			return nil, errors.Errorf("invalid dimension %d in %v", d, size)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || int64(elements)%known != 0 {
			return nil, errors.Errorf("cannot infer a dimension of %v for %d elements", size, elements)
		}
		shape[infer] = int64(elements) / known
	} else if known != int64(elements) {
		return nil, errors.Errorf("shape %v does not hold %d elements", size, elements)
	}
	return shape, nil
}

func numElements(shape []int) int {
	return lo.Reduce(shape, func(acc int, d int, _ int) int { return acc * d }, 1)
}

func tensorAndList(node *graph.Node, inputs []tosa.Arg) (tosa.Arg, []int64, error) {
	if len(inputs) < 2 || inputs[0].Kind != tosa.ArgTensor || inputs[1].Kind != tosa.ArgList {
		return tosa.Arg{}, nil, &tosa.ConversionError{Name: node.Name, Reason: "expected a tensor and an int list"}
	}
	return inputs[0], inputs[1].Special, nil
}

// requireContiguous rejects layout changes mixed into shape operators; their
// axes are given in logical order.
func requireContiguous(node *graph.Node, args ...tosa.Arg) error {
	for _, a := range args {
		if !tosa.IsContiguous(a.DimOrder) {
			return &tosa.ConversionError{Name: node.Name, Reason: fmt.Sprintf("%q has non-contiguous dim order %v", a.Name, a.DimOrder)}
		}
	}
	return nil
}

// identity lowers clone and alias to IDENTITY.
type identity struct {
	target string
}

func (v identity) Target() string { return v.target }

func (v identity) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	if len(inputs) < 1 || inputs[0].Kind != tosa.ArgTensor {
		return &tosa.ConversionError{Name: node.Name, Reason: "expected a tensor operand"}
	}
	return g.AddOperator(tosa.OpIdentity, []string{inputs[0].Name}, []string{output.Name})
}
