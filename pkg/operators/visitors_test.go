package operators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

var (
	specV0BI = tosa.SpecV0{}
	specV0MI = tosa.SpecV0{MI: true}
	specV1   = tosa.SpecV1{INT: true, FP: true}
)

// define runs the registered visitor for target on tensors of the given
// shape and dtype and returns the resulting block.
func define(t *testing.T, spec tosa.Spec, target string, in []tosa.Arg, out tosa.Arg) (*tosa.BasicBlock, error) {
	t.Helper()
	r, err := DefaultRegistry(spec)
	require.NoError(t, err)
	v, ok := r.Lookup(target)
	require.True(t, ok, target)

	g := tosa.NewGraph(spec.WireVersion())
	for _, a := range in {
		if a.Kind == tosa.ArgTensor {
			require.NoError(t, g.AddInputTensor(a.Name, a.Shape, a.DType))
		}
	}
	require.NoError(t, g.AddTensor(out.Name, out.Shape, out.DType))
	return g.CurrentBlock(), v.Define(&graph.Node{Name: out.Name, Target: target}, g, in, out)
}

func tensor(name string, dtype tosa.DType, shape ...int) tosa.Arg {
	return tosa.Arg{Kind: tosa.ArgTensor, Name: name, Shape: shape, DType: dtype, DimOrder: graph.Contiguous(len(shape))}
}

func list(v ...int64) tosa.Arg {
	return tosa.Arg{Kind: tosa.ArgList, Special: v}
}

func number(v float64) tosa.Arg {
	return tosa.Arg{Kind: tosa.ArgNumber, Number: v}
}

func TestBinary(t *testing.T) {
	tests := []struct {
		target string
		op     tosa.Op
	}{
		{target: "aten.add.Tensor", op: tosa.OpAdd},
		{target: "aten.sub.Tensor", op: tosa.OpSub},
		{target: "aten.maximum.default", op: tosa.OpMaximum},
		{target: "aten.minimum.default", op: tosa.OpMinimum},
	}
	for _, tt := range tests {
		for _, spec := range []tosa.Spec{specV0BI, specV1} {
			t.Run(tt.target+"/"+spec.String(), func(t *testing.T) {
				b, err := define(t, spec, tt.target,
					[]tosa.Arg{tensor("a", tosa.DTypeInt8, 2, 2), tensor("b", tosa.DTypeInt8, 2, 2), number(1)},
					tensor("out", tosa.DTypeInt8, 2, 2))
				require.NoError(t, err)
				require.Len(t, b.Operators(), 1)
				op := b.Operators()[0]
				assert.Equal(t, tt.op, op.Op)
				assert.Equal(t, []string{"a", "b"}, op.Inputs)
				assert.Equal(t, []string{"out"}, op.Outputs)
			})
		}
	}
}

func TestBinaryRejectsAlpha(t *testing.T) {
	b, err := define(t, specV1, "aten.add.Tensor",
		[]tosa.Arg{tensor("a", tosa.DTypeFP32, 2), tensor("b", tosa.DTypeFP32, 2), number(2)},
		tensor("out", tosa.DTypeFP32, 2))
	var convErr *tosa.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Contains(t, convErr.Reason, "alpha 2")
	assert.Empty(t, b.Operators())
}

func TestBinaryRejectsMixedDTypes(t *testing.T) {
	_, err := define(t, specV1, "aten.sub.Tensor",
		[]tosa.Arg{tensor("a", tosa.DTypeFP32, 2), tensor("b", tosa.DTypeInt32, 2)},
		tensor("out", tosa.DTypeFP32, 2))
	var convErr *tosa.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Contains(t, convErr.Reason, "different dtypes FP32 and INT32")
}

func TestProfileCapability(t *testing.T) {
	tests := []struct {
		name  string
		spec  tosa.Spec
		dtype tosa.DType
	}{
		{name: "float under BI", spec: specV0BI, dtype: tosa.DTypeFP32},
		{name: "float under INT", spec: tosa.SpecV1{INT: true}, dtype: tosa.DTypeFP16},
		{name: "int under FP", spec: tosa.SpecV1{FP: true}, dtype: tosa.DTypeInt8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := define(t, tt.spec, "aten.add.Tensor",
				[]tosa.Arg{tensor("a", tt.dtype, 2), tensor("b", tt.dtype, 2)},
				tensor("out", tt.dtype, 2))
			var capErr *tosa.CapabilityError
			require.ErrorAs(t, err, &capErr)
			assert.Equal(t, "out", capErr.Name)
		})
	}
}

func TestMulShift(t *testing.T) {
	in := []tosa.Arg{tensor("a", tosa.DTypeInt32, 4), tensor("b", tosa.DTypeInt32, 4)}
	out := tensor("out", tosa.DTypeInt32, 4)

	b, err := define(t, specV0BI, "aten.mul.Tensor", in, out)
	require.NoError(t, err)
	op := b.Operators()[0]
	assert.Equal(t, []string{"a", "b"}, op.Inputs)
	shift, ok := op.Attribute("shift")
	require.True(t, ok)
	assert.Equal(t, []int64{0}, shift.Ints)

	b, err = define(t, specV1, "aten.mul.Tensor", in, out)
	require.NoError(t, err)
	op = b.Operators()[0]
	assert.Equal(t, []string{"a", "b", "out/shift"}, op.Inputs)
	assert.Empty(t, op.Attributes)
	c, ok := b.Tensor("out/shift")
	require.True(t, ok)
	assert.Equal(t, tosa.DTypeInt8, c.DType)
	assert.Equal(t, []byte{0}, c.Data)
}

func TestReLU(t *testing.T) {
	b, err := define(t, specV0MI, "aten.relu.default",
		[]tosa.Arg{tensor("x", tosa.DTypeFP32, 3)}, tensor("out", tosa.DTypeFP32, 3))
	require.NoError(t, err)
	op := b.Operators()[0]
	assert.Equal(t, tosa.OpClamp, op.Op)
	names := make([]string, 0, len(op.Attributes))
	for _, a := range op.Attributes {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"min_int", "max_int", "min_fp", "max_fp"}, names)
	maxInt, _ := op.Attribute("max_int")
	assert.Equal(t, []int64{0}, maxInt.Ints)

	b, err = define(t, specV1, "aten.relu.default",
		[]tosa.Arg{tensor("x", tosa.DTypeInt8, 3)}, tensor("out", tosa.DTypeInt8, 3))
	require.NoError(t, err)
	op = b.Operators()[0]
	lo, _ := op.Attribute("min_val")
	hi, _ := op.Attribute("max_val")
	assert.Equal(t, []int64{0}, lo.Ints)
	assert.Equal(t, []int64{math.MaxInt8}, hi.Ints)

	b, err = define(t, specV1, "aten.relu.default",
		[]tosa.Arg{tensor("x", tosa.DTypeBF16, 3)}, tensor("out", tosa.DTypeBF16, 3))
	require.NoError(t, err)
	hi, _ = b.Operators()[0].Attribute("max_val")
	assert.Equal(t, []float32{float32(math.Inf(1))}, hi.Floats)
}

func TestReLURejectsBool(t *testing.T) {
	_, err := define(t, specV1, "aten.relu.default",
		[]tosa.Arg{tensor("x", tosa.DTypeBool, 3)}, tensor("out", tosa.DTypeBool, 3))
	var convErr *tosa.ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestPermute(t *testing.T) {
	b, err := define(t, specV1, "aten.permute_copy.default",
		[]tosa.Arg{tensor("x", tosa.DTypeFP32, 1, 3, 4, 5), list(0, -2, -1, 1)},
		tensor("out", tosa.DTypeFP32, 1, 4, 5, 3))
	require.NoError(t, err)
	op := b.Operators()[0]
	assert.Equal(t, tosa.OpTranspose, op.Op)
	perms, ok := op.Attribute("perms")
	require.True(t, ok)
	assert.Equal(t, []int64{0, 2, 3, 1}, perms.Ints)

	_, err = define(t, specV1, "aten.permute_copy.default",
		[]tosa.Arg{tensor("x", tosa.DTypeFP32, 2, 2), list(0, 0)},
		tensor("out", tosa.DTypeFP32, 2, 2))
	var convErr *tosa.ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestPermuteRejectsChannelsLast(t *testing.T) {
	x := tensor("x", tosa.DTypeFP32, 1, 3, 2, 2)
	x.DimOrder = []int{0, 2, 3, 1}
	_, err := define(t, specV1, "aten.permute_copy.default",
		[]tosa.Arg{x, list(0, 1, 3, 2)}, tensor("out", tosa.DTypeFP32, 1, 3, 2, 2))
	var convErr *tosa.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Contains(t, convErr.Reason, "non-contiguous")
}

func TestReshape(t *testing.T) {
	in := []tosa.Arg{tensor("x", tosa.DTypeInt8, 2, 3, 4), list(6, -1)}
	out := tensor("out", tosa.DTypeInt8, 6, 4)

	b, err := define(t, specV0BI, "aten.view_copy.default", in, out)
	require.NoError(t, err)
	shape, ok := b.Operators()[0].Attribute("new_shape")
	require.True(t, ok)
	assert.Equal(t, []int64{6, 4}, shape.Ints)

	b, err = define(t, specV1, "aten.view_copy.default", in, out)
	require.NoError(t, err)
	op := b.Operators()[0]
	assert.Equal(t, []string{"x", "out/shape"}, op.Inputs)
	c, ok := b.Tensor("out/shape")
	require.True(t, ok)
	assert.Equal(t, tosa.DTypeShape, c.DType)
	values, err := tosa.DecodeValues(tosa.DTypeShape, c.Data)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 4}, values)
}

func TestInferShape(t *testing.T) {
	got, err := inferShape(24, []int64{-1, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 4}, got)

	for _, size := range [][]int64{{-1, -1}, {5, -1}, {2, 2}, {-2, 12}, {0, -1}} {
		_, err := inferShape(24, size)
		assert.Error(t, err, "%v", size)
	}
}

func TestIdentity(t *testing.T) {
	for _, target := range []string{"aten.clone.default", "aten.alias_copy.default"} {
		b, err := define(t, specV0BI, target,
			[]tosa.Arg{tensor("x", tosa.DTypeInt16, 2)}, tensor("out", tosa.DTypeInt16, 2))
		require.NoError(t, err)
		assert.Equal(t, tosa.OpIdentity, b.Operators()[0].Op)
	}
}
