// Package v1 writes and reads the TOSA 1.0 dialect: a flatbuffer with file
// identifier "TOSA" and 1.0 operator and element type codes.
package v1

import (
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/pkg/errors"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// FileIdentifier is stored at bytes 4..8 of every 1.0 graph.
const FileIdentifier = "TOSA"

// Table slots of the 1.0 schema.
const (
	graphVersion = 0
	graphRegions = 1

	versionMajor = 0
	versionMinor = 1
	versionPatch = 2
	versionDraft = 3

	regionName   = 0
	regionBlocks = 1

	blockName      = 0
	blockOperators = 1
	blockTensors   = 2
	blockInputs    = 3
	blockOutputs   = 4

	tensorName  = 0
	tensorShape = 1
	tensorType  = 2
	tensorData  = 3

	operatorOp         = 0
	operatorAttributes = 1
	operatorInputs     = 2
	operatorOutputs    = 3

	attrName   = 0
	attrInts   = 1
	attrFloats = 2
	attrBools  = 3
)

// Element type codes of TOSA 1.0.
var dtypeCodes = map[tosa.DType]uint32{
	tosa.DTypeBool:  1,
	tosa.DTypeInt8:  3,
	tosa.DTypeInt16: 4,
	tosa.DTypeInt32: 5,
	tosa.DTypeFP32:  7,
	tosa.DTypeFP16:  8,
	tosa.DTypeBF16:  9,
	tosa.DTypeShape: 10,
}

// Operator codes of TOSA 1.0.
var opCodes = map[tosa.Op]uint32{
	tosa.OpClamp:     11,
	tosa.OpAdd:       15,
	tosa.OpMaximum:   26,
	tosa.OpMinimum:   27,
	tosa.OpMul:       28,
	tosa.OpSub:       30,
	tosa.OpReshape:   58,
	tosa.OpTranspose: 64,
	tosa.OpIdentity:  72,
}

// Backend serializes graphs for a TOSA 1.0 spec.
type Backend struct {
	spec tosa.SpecV1
}

// New returns the 1.0 backend for spec.
func New(spec tosa.SpecV1) *Backend {
	return &Backend{spec: spec}
}

// Spec returns the spec the backend was selected for.
func (b *Backend) Spec() tosa.Spec { return b.spec }

// NewGraph returns an empty accumulator stamped with the 1.0 wire version.
func (b *Backend) NewGraph() *tosa.Graph { return tosa.NewGraph(b.spec.WireVersion()) }

// Marshal encodes g.
func (b *Backend) Marshal(g *tosa.Graph) ([]byte, error) { return Marshal(g) }

// Unmarshal decodes data.
func (b *Backend) Unmarshal(data []byte) (*tosa.Graph, error) { return Unmarshal(data) }

// Marshal encodes a graph built for TOSA 1.0.
func Marshal(g *tosa.Graph) ([]byte, error) {
	if g.Version.Major != 1 {
		return nil, errors.Errorf("graph is stamped %s, the 1.0 serializer only writes 1.x graphs", g.Version)
	}
	b := flatbuffers.NewBuilder(1024)

	regions := make([]flatbuffers.UOffsetT, len(g.Regions))
	for i, r := range g.Regions {
		off, err := buildRegion(b, r)
		if err != nil {
			return nil, err
		}
		regions[i] = off
	}
	regionsVec := offsetVector(b, regions)

	b.StartObject(4)
	b.PrependInt32Slot(versionMajor, g.Version.Major, 0)
	b.PrependInt32Slot(versionMinor, g.Version.Minor, 0)
	b.PrependInt32Slot(versionPatch, g.Version.Patch, 0)
	b.PrependBoolSlot(versionDraft, false, true)
	version := b.EndObject()

	b.StartObject(2)
	b.PrependUOffsetTSlot(graphVersion, version, 0)
	b.PrependUOffsetTSlot(graphRegions, regionsVec, 0)
	root := b.EndObject()

	b.FinishWithFileIdentifier(root, []byte(FileIdentifier))
	return b.FinishedBytes(), nil
}

func buildRegion(b *flatbuffers.Builder, r *tosa.Region) (flatbuffers.UOffsetT, error) {
	blocks := make([]flatbuffers.UOffsetT, len(r.Blocks))
	for i, blk := range r.Blocks {
		off, err := buildBlock(b, blk)
		if err != nil {
			return 0, errors.Wrapf(err, "region %q", r.Name)
		}
		blocks[i] = off
	}
	blocksVec := offsetVector(b, blocks)
	name := b.CreateString(r.Name)

	b.StartObject(2)
	b.PrependUOffsetTSlot(regionName, name, 0)
	b.PrependUOffsetTSlot(regionBlocks, blocksVec, 0)
	return b.EndObject(), nil
}

func buildBlock(b *flatbuffers.Builder, blk *tosa.BasicBlock) (flatbuffers.UOffsetT, error) {
	ops := make([]flatbuffers.UOffsetT, 0, len(blk.Operators()))
	for _, op := range blk.Operators() {
		off, err := buildOperator(b, op)
		if err != nil {
			return 0, errors.Wrapf(err, "block %q", blk.Name)
		}
		ops = append(ops, off)
	}
	tensors := make([]flatbuffers.UOffsetT, 0, len(blk.Tensors()))
	for _, t := range blk.Tensors() {
		off, err := buildTensor(b, t)
		if err != nil {
			return 0, errors.Wrapf(err, "block %q", blk.Name)
		}
		tensors = append(tensors, off)
	}
	opsVec := offsetVector(b, ops)
	tensorsVec := offsetVector(b, tensors)
	inputsVec := stringVector(b, blk.Inputs())
	outputsVec := stringVector(b, blk.Outputs())
	name := b.CreateString(blk.Name)

	b.StartObject(5)
	b.PrependUOffsetTSlot(blockName, name, 0)
	b.PrependUOffsetTSlot(blockOperators, opsVec, 0)
	b.PrependUOffsetTSlot(blockTensors, tensorsVec, 0)
	b.PrependUOffsetTSlot(blockInputs, inputsVec, 0)
	b.PrependUOffsetTSlot(blockOutputs, outputsVec, 0)
	return b.EndObject(), nil
}

func buildTensor(b *flatbuffers.Builder, t *tosa.Tensor) (flatbuffers.UOffsetT, error) {
	code, ok := dtypeCodes[t.DType]
	if !ok {
		return 0, errors.Errorf("tensor %q has type %s with no 1.0 encoding", t.Name, t.DType)
	}
	name := b.CreateString(t.Name)
	b.StartVector(4, len(t.Shape), 4)
	for i := len(t.Shape) - 1; i >= 0; i-- {
		b.PrependInt32(int32(t.Shape[i]))
	}
	shape := b.EndVector(len(t.Shape))
	var data flatbuffers.UOffsetT
	if t.Data != nil {
		data = b.CreateByteVector(t.Data)
	}

	b.StartObject(4)
	b.PrependUOffsetTSlot(tensorName, name, 0)
	b.PrependUOffsetTSlot(tensorShape, shape, 0)
	b.PrependUint32Slot(tensorType, code, 0)
	if t.Data != nil {
		b.PrependUOffsetTSlot(tensorData, data, 0)
	}
	return b.EndObject(), nil
}

func buildOperator(b *flatbuffers.Builder, op *tosa.Operator) (flatbuffers.UOffsetT, error) {
	code, ok := opCodes[op.Op]
	if !ok {
		return 0, errors.Errorf("operator %s has no 1.0 encoding", op.Op)
	}
	attrs := make([]flatbuffers.UOffsetT, len(op.Attributes))
	for i, a := range op.Attributes {
		attrs[i] = buildAttribute(b, a)
	}
	attrsVec := offsetVector(b, attrs)
	inputsVec := stringVector(b, op.Inputs)
	outputsVec := stringVector(b, op.Outputs)

	b.StartObject(4)
	b.PrependUint32Slot(operatorOp, code, 0)
	b.PrependUOffsetTSlot(operatorAttributes, attrsVec, 0)
	b.PrependUOffsetTSlot(operatorInputs, inputsVec, 0)
	b.PrependUOffsetTSlot(operatorOutputs, outputsVec, 0)
	return b.EndObject(), nil
}

func buildAttribute(b *flatbuffers.Builder, a tosa.Attribute) flatbuffers.UOffsetT {
	name := b.CreateString(a.Name)

	b.StartVector(8, len(a.Ints), 8)
	for i := len(a.Ints) - 1; i >= 0; i-- {
		b.PrependInt64(a.Ints[i])
	}
	ints := b.EndVector(len(a.Ints))

	b.StartVector(4, len(a.Floats), 4)
	for i := len(a.Floats) - 1; i >= 0; i-- {
		b.PrependFloat32(a.Floats[i])
	}
	floats := b.EndVector(len(a.Floats))

	b.StartVector(1, len(a.Bools), 1)
	for i := len(a.Bools) - 1; i >= 0; i-- {
		b.PrependBool(a.Bools[i])
	}
	bools := b.EndVector(len(a.Bools))

	b.StartObject(4)
	b.PrependUOffsetTSlot(attrName, name, 0)
	b.PrependUOffsetTSlot(attrInts, ints, 0)
	b.PrependUOffsetTSlot(attrFloats, floats, 0)
	b.PrependUOffsetTSlot(attrBools, bools, 0)
	return b.EndObject()
}

func offsetVector(b *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(4, len(offsets), 4)
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	return b.EndVector(len(offsets))
}

func stringVector(b *flatbuffers.Builder, values []string) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(values))
	for i, s := range values {
		offsets[i] = b.CreateString(s)
	}
	return offsetVector(b, offsets)
}
