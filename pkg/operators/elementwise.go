package operators

import (
	"fmt"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// binary lowers a two-operand elementwise node to a single operator.
type binary struct {
	target string
	op     tosa.Op
	spec   tosa.Spec
}

func (v *binary) Target() string { return v.target }

func (v *binary) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	a, b, err := binaryOperands(node, inputs)
	if err != nil {
		return err
	}
	// aten.add.Tensor and aten.sub.Tensor carry an optional alpha scale.
	if len(inputs) > 2 && inputs[2].Kind == tosa.ArgNumber && inputs[2].Number != 1 {
		return &tosa.ConversionError{Name: node.Name, Reason: fmt.Sprintf("alpha %v is not supported", inputs[2].Number)}
	}
	if err := checkProfile(v.spec, node, output.DType); err != nil {
		return err
	}
	return g.AddOperator(v.op, []string{a.Name, b.Name}, []string{output.Name})
}

// mul lowers aten.mul.Tensor. TOSA MUL has a result shift for int32
// operands; 0.80 carries it as an attribute, 1.0 as an INT8 const operand.
type mul struct {
	spec tosa.Spec
}

func (v *mul) Target() string { return "aten.mul.Tensor" }

func (v *mul) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	a, b, err := binaryOperands(node, inputs)
	if err != nil {
		return err
	}
	if err := checkProfile(v.spec, node, output.DType); err != nil {
		return err
	}
	switch v.spec.(type) {
	case tosa.SpecV0:
		return g.AddOperator(tosa.OpMul, []string{a.Name, b.Name}, []string{output.Name}, tosa.IntAttr("shift", 0))
	default:
		shift := output.Name + graph.NameSeparator + "shift"
		if err := g.AddConst(shift, []int{1}, tosa.DTypeInt8, []byte{0}); err != nil {
			return err
		}
		return g.AddOperator(tosa.OpMul, []string{a.Name, b.Name, shift}, []string{output.Name})
	}
}

func binaryOperands(node *graph.Node, inputs []tosa.Arg) (tosa.Arg, tosa.Arg, error) {
	if len(inputs) < 2 || inputs[0].Kind != tosa.ArgTensor || inputs[1].Kind != tosa.ArgTensor {
		return tosa.Arg{}, tosa.Arg{}, &tosa.ConversionError{Name: node.Name, Reason: "expected two tensor operands"}
	}
	a, b := inputs[0], inputs[1]
	if a.DType != b.DType {
		return tosa.Arg{}, tosa.Arg{}, &tosa.ConversionError{
			Name:   node.Name,
			Reason: fmt.Sprintf("operands have different dtypes %s and %s", a.DType, b.DType),
		}
	}
	return a, b, nil
}

// checkProfile rejects element types the spec's profiles cannot compute.
func checkProfile(spec tosa.Spec, node *graph.Node, dtype tosa.DType) error {
	if dtype.IsFloat() && !spec.SupportsFloat() {
		return &tosa.CapabilityError{Spec: spec, Name: node.Name, What: dtype.String() + " operations"}
	}
	if !dtype.IsFloat() && !spec.SupportsInteger() {
		return &tosa.CapabilityError{Spec: spec, Name: node.Name, What: dtype.String() + " operations"}
	}
	return nil
}
