// Package v0 writes and reads the TOSA 0.80 dialect: a protobuf encoded
// graph with 0.80 operator and element type codes.
package v0

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Field numbers of the 0.80 wire messages.
const (
	graphVersion protowire.Number = 1
	graphRegions protowire.Number = 2

	versionMajor protowire.Number = 1
	versionMinor protowire.Number = 2
	versionPatch protowire.Number = 3

	regionName   protowire.Number = 1
	regionBlocks protowire.Number = 2

	blockName      protowire.Number = 1
	blockOperators protowire.Number = 2
	blockTensors   protowire.Number = 3
	blockInputs    protowire.Number = 4
	blockOutputs   protowire.Number = 5

	tensorName  protowire.Number = 1
	tensorShape protowire.Number = 2
	tensorType  protowire.Number = 3
	tensorData  protowire.Number = 4

	operatorOp         protowire.Number = 1
	operatorAttributes protowire.Number = 2
	operatorInputs     protowire.Number = 3
	operatorOutputs    protowire.Number = 4

	attrName   protowire.Number = 1
	attrInts   protowire.Number = 2
	attrFloats protowire.Number = 3
	attrBools  protowire.Number = 4
)

// Element type codes of TOSA 0.80.
var dtypeCodes = map[tosa.DType]uint64{
	tosa.DTypeBool:  1,
	tosa.DTypeInt8:  4,
	tosa.DTypeInt16: 5,
	tosa.DTypeInt32: 6,
	tosa.DTypeFP32:  8,
	tosa.DTypeFP16:  10,
	tosa.DTypeBF16:  11,
}

// Operator codes of TOSA 0.80.
var opCodes = map[tosa.Op]uint64{
	tosa.OpClamp:     10,
	tosa.OpAdd:       14,
	tosa.OpMaximum:   25,
	tosa.OpMinimum:   26,
	tosa.OpMul:       27,
	tosa.OpSub:       29,
	tosa.OpReshape:   56,
	tosa.OpTranspose: 62,
	tosa.OpIdentity:  70,
}

// Backend serializes graphs for a TOSA 0.80 spec.
type Backend struct {
	spec tosa.SpecV0
}

// New returns the 0.80 backend for spec.
func New(spec tosa.SpecV0) *Backend {
	return &Backend{spec: spec}
}

// Spec returns the spec the backend was selected for.
func (b *Backend) Spec() tosa.Spec { return b.spec }

// NewGraph returns an empty accumulator stamped with the 0.80 wire version.
func (b *Backend) NewGraph() *tosa.Graph { return tosa.NewGraph(b.spec.WireVersion()) }

// Marshal encodes g.
func (b *Backend) Marshal(g *tosa.Graph) ([]byte, error) { return Marshal(g) }

// Unmarshal decodes data.
func (b *Backend) Unmarshal(data []byte) (*tosa.Graph, error) { return Unmarshal(data) }

// Marshal encodes a graph built for TOSA 0.80.
func Marshal(g *tosa.Graph) ([]byte, error) {
	if g.Version.Major != 0 {
		return nil, errors.Errorf("graph is stamped %s, the 0.80 serializer only writes 0.x graphs", g.Version)
	}
	var b []byte
	b = appendMessage(b, graphVersion, func(b []byte) []byte {
		b = appendVarint(b, versionMajor, uint64(g.Version.Major))
		b = appendVarint(b, versionMinor, uint64(g.Version.Minor))
		return appendVarint(b, versionPatch, uint64(g.Version.Patch))
	})
	for _, r := range g.Regions {
		rb, err := marshalRegion(r)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, graphRegions, protowire.BytesType)
		b = protowire.AppendBytes(b, rb)
	}
	return b, nil
}

func marshalRegion(r *tosa.Region) ([]byte, error) {
	var b []byte
	b = appendString(b, regionName, r.Name)
	for _, blk := range r.Blocks {
		bb, err := marshalBlock(blk)
		if err != nil {
			return nil, errors.Wrapf(err, "region %q", r.Name)
		}
		b = protowire.AppendTag(b, regionBlocks, protowire.BytesType)
		b = protowire.AppendBytes(b, bb)
	}
	return b, nil
}

func marshalBlock(blk *tosa.BasicBlock) ([]byte, error) {
	var b []byte
	b = appendString(b, blockName, blk.Name)
	for _, op := range blk.Operators() {
		code, ok := opCodes[op.Op]
		if !ok {
			return nil, errors.Errorf("block %q: operator %s has no 0.80 encoding", blk.Name, op.Op)
		}
		b = appendMessage(b, blockOperators, func(b []byte) []byte {
			b = appendVarint(b, operatorOp, code)
			for _, a := range op.Attributes {
				b = appendMessage(b, operatorAttributes, func(b []byte) []byte {
					return appendAttribute(b, a)
				})
			}
			for _, in := range op.Inputs {
				b = appendString(b, operatorInputs, in)
			}
			for _, out := range op.Outputs {
				b = appendString(b, operatorOutputs, out)
			}
			return b
		})
	}
	for _, t := range blk.Tensors() {
		code, ok := dtypeCodes[t.DType]
		if !ok {
			return nil, errors.Errorf("block %q: tensor %q has type %s with no 0.80 encoding", blk.Name, t.Name, t.DType)
		}
		b = appendMessage(b, blockTensors, func(b []byte) []byte {
			b = appendString(b, tensorName, t.Name)
			b = appendPacked(b, tensorShape, len(t.Shape), func(b []byte, i int) []byte {
				return protowire.AppendVarint(b, uint64(t.Shape[i]))
			})
			b = appendVarint(b, tensorType, code)
			if t.Data != nil {
				b = protowire.AppendTag(b, tensorData, protowire.BytesType)
				b = protowire.AppendBytes(b, t.Data)
			}
			return b
		})
	}
	for _, name := range blk.Inputs() {
		b = appendString(b, blockInputs, name)
	}
	for _, name := range blk.Outputs() {
		b = appendString(b, blockOutputs, name)
	}
	return b, nil
}

func appendAttribute(b []byte, a tosa.Attribute) []byte {
	b = appendString(b, attrName, a.Name)
	b = appendPacked(b, attrInts, len(a.Ints), func(b []byte, i int) []byte {
		return protowire.AppendVarint(b, protowire.EncodeZigZag(a.Ints[i]))
	})
	b = appendPacked(b, attrFloats, len(a.Floats), func(b []byte, i int) []byte {
		return protowire.AppendFixed32(b, math.Float32bits(a.Floats[i]))
	})
	return appendPacked(b, attrBools, len(a.Bools), func(b []byte, i int) []byte {
		return protowire.AppendVarint(b, protowire.EncodeBool(a.Bools[i]))
	})
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, body func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body(nil))
}

func appendPacked(b []byte, num protowire.Number, n int, elem func([]byte, int) []byte) []byte {
	if n == 0 {
		return b
	}
	var packed []byte
	for i := 0; i < n; i++ {
		packed = elem(packed, i)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}
