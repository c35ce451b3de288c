package operators

import (
	"math"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// relu lowers aten.relu.default to a CLAMP from zero to the type's maximum.
type relu struct {
	spec tosa.Spec
}

func (v *relu) Target() string { return "aten.relu.default" }

func (v *relu) Define(node *graph.Node, g *tosa.Graph, inputs []tosa.Arg, output tosa.Arg) error {
	if len(inputs) < 1 || inputs[0].Kind != tosa.ArgTensor {
		return &tosa.ConversionError{Name: node.Name, Reason: "expected a tensor operand"}
	}
	in := inputs[0]
	if err := checkProfile(v.spec, node, in.DType); err != nil {
		return err
	}
	maxInt, ok := intMax(in.DType)
	if !ok && !in.DType.IsFloat() {
		return &tosa.ConversionError{Name: node.Name, Reason: "relu of " + in.DType.String() + " is not defined"}
	}

	var attrs []tosa.Attribute
	switch v.spec.(type) {
	case tosa.SpecV0:
		// 0.80 CLAMP always carries both bound pairs.
		attrs = []tosa.Attribute{
			tosa.IntAttr("min_int", 0),
			tosa.IntAttr("max_int", maxInt),
			tosa.FloatAttr("min_fp", 0),
			tosa.FloatAttr("max_fp", float32(math.Inf(1))),
		}
	default:
		if in.DType.IsFloat() {
			attrs = []tosa.Attribute{
				tosa.FloatAttr("min_val", 0),
				tosa.FloatAttr("max_val", float32(math.Inf(1))),
			}
		} else {
			attrs = []tosa.Attribute{
				tosa.IntAttr("min_val", 0),
				tosa.IntAttr("max_val", maxInt),
			}
		}
	}
	return g.AddOperator(tosa.OpClamp, []string{in.Name}, []string{output.Name}, attrs...)
}

func intMax(d tosa.DType) (int64, bool) {
	switch d {
	case tosa.DTypeInt8:
		return math.MaxInt8, true
	case tosa.DTypeInt16:
		return math.MaxInt16, true
	case tosa.DTypeInt32:
		return math.MaxInt32, true
	}
	return 0, false
}
