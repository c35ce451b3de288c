package tosa

import (
	"fmt"

	"github.com/zerfoo/ztosa/pkg/graph"
)

// ArgKind tells what an Arg carries.
type ArgKind int

const (
	ArgNone ArgKind = iota
	ArgTensor
	ArgList
	ArgNumber
)

// Arg is the lowered view of one node argument. For tensors it projects the
// node's name, logical shape, dtype and dim order; it is read-only.
type Arg struct {
	Kind     ArgKind
	Name     string
	Shape    []int
	DType    DType
	DimOrder []int
	Special  []int64
	Number   float64
}

// PhysicalShape returns the shape in the order it is laid out in memory.
func (a Arg) PhysicalShape() []int {
	return PhysicalShape(a.Shape, a.DimOrder)
}

// NewArg converts a node argument. Node arguments fail with a
// *ConversionError when their metadata is missing, their dtype has no TOSA
// equivalent or their dim order is not a permutation.
func NewArg(arg any, spec Spec) (Arg, error) {
	switch a := arg.(type) {
	case nil:
		return Arg{Kind: ArgNone}, nil
	case *graph.Node:
		return tensorArg(a)
	case []int64:
		return Arg{Kind: ArgList, Special: a}, nil
	case int64:
		return Arg{Kind: ArgNumber, Number: float64(a)}, nil
	case int:
		return Arg{Kind: ArgNumber, Number: float64(a)}, nil
	case float64:
		return Arg{Kind: ArgNumber, Number: a}, nil
	case []*graph.Node:
		return Arg{}, &ConversionError{Name: fmt.Sprint(a), Reason: "tensor lists are not supported as operator arguments"}
	}
	return Arg{}, &ConversionError{Name: fmt.Sprint(arg), Reason: fmt.Sprintf("unsupported argument type %T", arg)}
}

func tensorArg(n *graph.Node) (Arg, error) {
	meta := n.Meta.Val
	if meta == nil {
		return Arg{}, &ConversionError{Name: n.Name, Reason: "node has no tensor metadata"}
	}
	dtype, ok := DTypeOf(meta.Dtype)
	if !ok {
		return Arg{}, &ConversionError{Name: n.Name, Reason: fmt.Sprintf("dtype %q has no TOSA equivalent", meta.Dtype)}
	}
	for i, d := range meta.Shape {
		if d < 0 {
			return Arg{}, &ConversionError{Name: n.Name, Reason: fmt.Sprintf("dimension %d is dynamic (%d)", i, d)}
		}
	}
	order := meta.Order()
	if !IsPermutation(order, meta.Rank()) {
		return Arg{}, &ConversionError{Name: n.Name, Reason: fmt.Sprintf("dim order %v is not a permutation of rank %d", order, meta.Rank())}
	}
	return Arg{
		Kind:     ArgTensor,
		Name:     n.Name,
		Shape:    meta.Shape,
		DType:    dtype,
		DimOrder: order,
	}, nil
}

// NodeArgs converts every argument of a node, in order.
func NodeArgs(n *graph.Node, spec Spec) ([]Arg, error) {
	args := make([]Arg, 0, len(n.Args))
	for _, a := range n.Args {
		arg, err := NewArg(a, spec)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}
