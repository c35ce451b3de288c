package v1

import (
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/pkg/errors"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// HasIdentifier reports whether data carries the 1.0 file identifier.
func HasIdentifier(data []byte) bool {
	return len(data) >= 8 && string(data[4:8]) == FileIdentifier
}

// Unmarshal decodes a TOSA 1.0 graph.
func Unmarshal(data []byte) (g *tosa.Graph, err error) {
	if !HasIdentifier(data) {
		return nil, errors.New("missing TOSA file identifier")
	}
	// Offsets in a corrupt buffer make the flatbuffers accessors index out
	// of range.
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, errors.Errorf("malformed TOSA 1.0 graph: %v", r)
		}
	}()

	root := table{flatbuffers.Table{Bytes: data, Pos: flatbuffers.GetUOffsetT(data)}}
	g = &tosa.Graph{}
	if v, ok := root.child(graphVersion); ok {
		g.Version = tosa.WireVersion{
			Major: v.int32(versionMajor),
			Minor: v.int32(versionMinor),
			Patch: v.int32(versionPatch),
		}
	}
	if g.Version.Major != 1 {
		return nil, errors.Errorf("data is stamped %s, not a 1.x graph", g.Version)
	}
	for _, rt := range root.tables(graphRegions) {
		r := g.AddRegion(rt.string(regionName))
		for _, bt := range rt.tables(regionBlocks) {
			if err := unmarshalBlock(r, bt); err != nil {
				return nil, errors.Wrapf(err, "region %q", r.Name)
			}
		}
	}
	return g, nil
}

func unmarshalBlock(r *tosa.Region, bt table) error {
	blk := r.AddBlock(bt.string(blockName))
	for _, tt := range bt.tables(blockTensors) {
		code := tt.uint32(tensorType)
		dtype := lookupCode(dtypeCodes, code)
		if dtype == tosa.DTypeUnknown {
			return errors.Errorf("unknown 1.0 element type %d", code)
		}
		shape := make([]int, 0)
		for _, d := range tt.int32s(tensorShape) {
			shape = append(shape, int(d))
		}
		var data []byte
		if raw, ok := tt.bytes(tensorData); ok {
			data = append([]byte{}, raw...)
		}
		if err := blk.Declare(&tosa.Tensor{Name: tt.string(tensorName), Shape: shape, DType: dtype, Data: data}); err != nil {
			return err
		}
	}
	for _, name := range bt.strings(blockInputs) {
		if err := blk.MarkInput(name); err != nil {
			return err
		}
	}
	for _, ot := range bt.tables(blockOperators) {
		code := ot.uint32(operatorOp)
		op := &tosa.Operator{
			Op:      lookupCode(opCodes, code),
			Inputs:  ot.strings(operatorInputs),
			Outputs: ot.strings(operatorOutputs),
		}
		if op.Op == tosa.OpUnknown {
			return errors.Errorf("unknown 1.0 operator %d", code)
		}
		for _, at := range ot.tables(operatorAttributes) {
			op.Attributes = append(op.Attributes, tosa.Attribute{
				Name:   at.string(attrName),
				Ints:   at.int64s(attrInts),
				Floats: at.float32s(attrFloats),
				Bools:  at.bools(attrBools),
			})
		}
		if err := blk.AddOperator(op); err != nil {
			return err
		}
	}
	for _, name := range bt.strings(blockOutputs) {
		if err := blk.AddOutput(name); err != nil {
			return err
		}
	}
	return nil
}

// table reads schema-less tables by slot number.
type table struct {
	flatbuffers.Table
}

func (t table) field(slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}

func (t table) string(slot int) string {
	o := t.field(slot)
	if o == 0 {
		return ""
	}
	return string(t.ByteVector(o + t.Pos))
}

func (t table) bytes(slot int) ([]byte, bool) {
	o := t.field(slot)
	if o == 0 {
		return nil, false
	}
	return t.ByteVector(o + t.Pos), true
}

func (t table) int32(slot int) int32 {
	o := t.field(slot)
	if o == 0 {
		return 0
	}
	return t.GetInt32(o + t.Pos)
}

func (t table) uint32(slot int) uint32 {
	o := t.field(slot)
	if o == 0 {
		return 0
	}
	return t.GetUint32(o + t.Pos)
}

func (t table) child(slot int) (table, bool) {
	o := t.field(slot)
	if o == 0 {
		return table{}, false
	}
	return table{flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(o + t.Pos)}}, true
}

// vector returns the position of the first element and the length.
func (t table) vector(slot int) (flatbuffers.UOffsetT, int) {
	o := t.field(slot)
	if o == 0 {
		return 0, 0
	}
	return t.Vector(o), t.VectorLen(o)
}

func (t table) tables(slot int) []table {
	start, n := t.vector(slot)
	out := make([]table, n)
	for j := range out {
		pos := start + flatbuffers.UOffsetT(j*flatbuffers.SizeUOffsetT)
		out[j] = table{flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(pos)}}
	}
	return out
}

func (t table) strings(slot int) []string {
	start, n := t.vector(slot)
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for j := range out {
		out[j] = string(t.ByteVector(start + flatbuffers.UOffsetT(j*flatbuffers.SizeUOffsetT)))
	}
	return out
}

func (t table) int32s(slot int) []int32 {
	start, n := t.vector(slot)
	out := make([]int32, n)
	for j := range out {
		out[j] = t.GetInt32(start + flatbuffers.UOffsetT(j*flatbuffers.SizeInt32))
	}
	return out
}

func (t table) int64s(slot int) []int64 {
	start, n := t.vector(slot)
	if n == 0 {
		return nil
	}
	out := make([]int64, n)
	for j := range out {
		out[j] = t.GetInt64(start + flatbuffers.UOffsetT(j*flatbuffers.SizeInt64))
	}
	return out
}

func (t table) float32s(slot int) []float32 {
	start, n := t.vector(slot)
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for j := range out {
		out[j] = t.GetFloat32(start + flatbuffers.UOffsetT(j*flatbuffers.SizeFloat32))
	}
	return out
}

func (t table) bools(slot int) []bool {
	start, n := t.vector(slot)
	if n == 0 {
		return nil
	}
	out := make([]bool, n)
	for j := range out {
		out[j] = t.GetBool(start + flatbuffers.UOffsetT(j*flatbuffers.SizeBool))
	}
	return out
}

func lookupCode[K comparable](codes map[K]uint32, code uint32) K {
	for k, c := range codes {
		if c == code {
			return k
		}
	}
	var zero K
	return zero
}
