// Package converter exports lowered TOSA graphs to the ZMF model format so
// they can be loaded by zerfoo tooling.
package converter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/zerfoo/zmf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// ProducerVersion is stamped into exported model metadata.
const ProducerVersion = "0.1.0"

// UnsupportedDTypeError reports a tensor whose element type has no ZMF
// encoding.
type UnsupportedDTypeError struct {
	Tensor string
	DType  tosa.DType
}

func (e *UnsupportedDTypeError) Error() string {
	return fmt.Sprintf("tensor %q: ZMF has no encoding for %s", e.Tensor, e.DType)
}

var opTypeCaser = cases.Title(language.English)

// TOSAToZMF converts the main block of a lowered graph. Constants become
// graph parameters; INT8 and INT16 constants are widened to INT32.
func TOSAToZMF(g *tosa.Graph) (*zmf.Model, error) {
	blk := g.CurrentBlock()
	if blk == nil {
		return nil, errors.New("graph has no basic block")
	}

	zmfModel := &zmf.Model{
		Graph: &zmf.Graph{
			Nodes:      make([]*zmf.Node, 0, len(blk.Operators())),
			Parameters: make(map[string]*zmf.Tensor),
			Inputs:     convertValueInfos(blk, blk.Inputs()),
			Outputs:    convertValueInfos(blk, blk.Outputs()),
		},
		Metadata: &zmf.Metadata{
			ProducerName:    "ztosa",
			ProducerVersion: ProducerVersion,
			OpsetVersion:    int64(g.Version.Major)*100 + int64(g.Version.Minor),
		},
	}

	for i, op := range blk.Operators() {
		zmfNode, err := convertNode(i, op)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert operator %d (%s)", i, op.Op)
		}
		zmfModel.Graph.Nodes = append(zmfModel.Graph.Nodes, zmfNode)
	}

	for _, t := range blk.Constants() {
		zmfTensor, err := convertTensor(t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert constant '%s'", t.Name)
		}
		zmfModel.Graph.Parameters[t.Name] = zmfTensor
	}

	return zmfModel, nil
}

// OpType renders a TOSA operator name the way ZMF spells op types, e.g.
// TRANSPOSE becomes Transpose.
func OpType(op tosa.Op) string {
	return opTypeCaser.String(strings.ToLower(op.String()))
}

func convertNode(index int, op *tosa.Operator) (*zmf.Node, error) {
	name := fmt.Sprintf("%s_%d", strings.ToLower(op.Op.String()), index)
	if len(op.Outputs) > 0 {
		name = op.Outputs[0]
	}
	zmfNode := &zmf.Node{
		Name:       name,
		OpType:     OpType(op.Op),
		Inputs:     op.Inputs,
		Outputs:    op.Outputs,
		Attributes: make(map[string]*zmf.Attribute),
	}
	for _, attr := range op.Attributes {
		zmfAttr, err := convertAttribute(attr)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert attribute '%s'", attr.Name)
		}
		zmfNode.Attributes[attr.Name] = zmfAttr
	}
	return zmfNode, nil
}

// convertAttribute maps one-element lists to scalars. Bools become 0/1 ints.
func convertAttribute(attr tosa.Attribute) (*zmf.Attribute, error) {
	zmfAttr := &zmf.Attribute{}
	switch {
	case len(attr.Ints) == 1:
		zmfAttr.Value = &zmf.Attribute_I{I: attr.Ints[0]}
	case len(attr.Ints) > 1:
		zmfAttr.Value = &zmf.Attribute_Ints{Ints: &zmf.Ints{Val: attr.Ints}}
	case len(attr.Floats) == 1:
		zmfAttr.Value = &zmf.Attribute_F{F: attr.Floats[0]}
	case len(attr.Floats) > 1:
		zmfAttr.Value = &zmf.Attribute_Floats{Floats: &zmf.Floats{Val: attr.Floats}}
	case len(attr.Bools) > 0:
		ints := make([]int64, len(attr.Bools))
		for i, b := range attr.Bools {
			if b {
				ints[i] = 1
			}
		}
		zmfAttr.Value = &zmf.Attribute_Ints{Ints: &zmf.Ints{Val: ints}}
	default:
		return nil, errors.New("attribute has no values")
	}
	return zmfAttr, nil
}

func convertTensor(t *tosa.Tensor) (*zmf.Tensor, error) {
	zmfTensor := &zmf.Tensor{
		Shape: convertShape(t.Shape),
		Data:  t.Data,
	}
	switch t.DType {
	case tosa.DTypeFP32:
		zmfTensor.Dtype = zmf.Tensor_FLOAT32
	case tosa.DTypeFP16:
		zmfTensor.Dtype = zmf.Tensor_FLOAT16
	case tosa.DTypeBF16:
		zmfTensor.Dtype = zmf.Tensor_BFLOAT16
	case tosa.DTypeInt32:
		zmfTensor.Dtype = zmf.Tensor_INT32
	case tosa.DTypeInt8, tosa.DTypeInt16:
		values, err := tosa.DecodeValues(t.DType, t.Data)
		if err != nil {
			return nil, err
		}
		data, err := tosa.EncodeValues(tosa.DTypeInt32, values)
		if err != nil {
			return nil, err
		}
		zmfTensor.Dtype = zmf.Tensor_INT32
		zmfTensor.Data = data
	case tosa.DTypeShape:
		// SHAPE values are already little-endian int64.
		zmfTensor.Dtype = zmf.Tensor_INT64
	default:
		return nil, &UnsupportedDTypeError{Tensor: t.Name, DType: t.DType}
	}
	return zmfTensor, nil
}

func convertValueInfos(blk *tosa.BasicBlock, names []string) []*zmf.ValueInfo {
	zmfInfos := make([]*zmf.ValueInfo, 0, len(names))
	for _, name := range names {
		info := &zmf.ValueInfo{Name: name}
		if t, ok := blk.Tensor(name); ok {
			info.Shape = convertShape(t.Shape)
		}
		zmfInfos = append(zmfInfos, info)
	}
	return zmfInfos
}

func convertShape(shape []int) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}
	return out
}
