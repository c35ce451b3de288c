package v0

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Unmarshal decodes a TOSA 0.80 graph.
func Unmarshal(data []byte) (*tosa.Graph, error) {
	g := &tosa.Graph{}
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case graphVersion:
			return eachField(v, func(num protowire.Number, v []byte) error {
				x, err := varint(v)
				switch num {
				case versionMajor:
					g.Version.Major = int32(x)
				case versionMinor:
					g.Version.Minor = int32(x)
				case versionPatch:
					g.Version.Patch = int32(x)
				}
				return err
			})
		case graphRegions:
			return unmarshalRegion(g, v)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode TOSA 0.80 graph")
	}
	if g.Version.Major != 0 {
		return nil, errors.Errorf("data is stamped %s, not a 0.x graph", g.Version)
	}
	return g, nil
}

func unmarshalRegion(g *tosa.Graph, data []byte) error {
	var name string
	var blocks [][]byte
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case regionName:
			name = string(v)
		case regionBlocks:
			blocks = append(blocks, v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r := g.AddRegion(name)
	for _, bb := range blocks {
		if err := unmarshalBlock(r, bb); err != nil {
			return errors.Wrapf(err, "region %q", name)
		}
	}
	return nil
}

func unmarshalBlock(r *tosa.Region, data []byte) error {
	var (
		name            string
		ops             []*tosa.Operator
		tensors         []*tosa.Tensor
		inputs, outputs []string
	)
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case blockName:
			name = string(v)
		case blockOperators:
			op, err := unmarshalOperator(v)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		case blockTensors:
			t, err := unmarshalTensor(v)
			if err != nil {
				return err
			}
			tensors = append(tensors, t)
		case blockInputs:
			inputs = append(inputs, string(v))
		case blockOutputs:
			outputs = append(outputs, string(v))
		}
		return nil
	})
	if err != nil {
		return err
	}

	blk := r.AddBlock(name)
	for _, t := range tensors {
		if err := blk.Declare(t); err != nil {
			return err
		}
	}
	for _, in := range inputs {
		if err := blk.MarkInput(in); err != nil {
			return err
		}
	}
	for _, op := range ops {
		if err := blk.AddOperator(op); err != nil {
			return err
		}
	}
	for _, out := range outputs {
		if err := blk.AddOutput(out); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalTensor(data []byte) (*tosa.Tensor, error) {
	t := &tosa.Tensor{Shape: []int{}}
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case tensorName:
			t.Name = string(v)
		case tensorShape:
			return eachPacked(v, func(x uint64) { t.Shape = append(t.Shape, int(x)) })
		case tensorType:
			code, err := varint(v)
			if err != nil {
				return err
			}
			t.DType = lookupCode(dtypeCodes, code)
			if t.DType == tosa.DTypeUnknown {
				return errors.Errorf("unknown 0.80 element type %d", code)
			}
		case tensorData:
			t.Data = append([]byte{}, v...)
		}
		return nil
	})
	return t, err
}

func unmarshalOperator(data []byte) (*tosa.Operator, error) {
	op := &tosa.Operator{}
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case operatorOp:
			code, err := varint(v)
			if err != nil {
				return err
			}
			op.Op = lookupCode(opCodes, code)
			if op.Op == tosa.OpUnknown {
				return errors.Errorf("unknown 0.80 operator %d", code)
			}
		case operatorAttributes:
			a, err := unmarshalAttribute(v)
			if err != nil {
				return err
			}
			op.Attributes = append(op.Attributes, a)
		case operatorInputs:
			op.Inputs = append(op.Inputs, string(v))
		case operatorOutputs:
			op.Outputs = append(op.Outputs, string(v))
		}
		return nil
	})
	return op, err
}

func unmarshalAttribute(data []byte) (tosa.Attribute, error) {
	var a tosa.Attribute
	err := eachField(data, func(num protowire.Number, v []byte) error {
		switch num {
		case attrName:
			a.Name = string(v)
		case attrInts:
			return eachPacked(v, func(x uint64) { a.Ints = append(a.Ints, protowire.DecodeZigZag(x)) })
		case attrFloats:
			for len(v) > 0 {
				x, n := protowire.ConsumeFixed32(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				a.Floats = append(a.Floats, math.Float32frombits(x))
				v = v[n:]
			}
		case attrBools:
			return eachPacked(v, func(x uint64) { a.Bools = append(a.Bools, protowire.DecodeBool(x)) })
		}
		return nil
	})
	return a, err
}

// eachField calls fn with the payload of every field. Varint fields are
// passed in their encoded form; length-delimited fields as their contents.
func eachField(b []byte, fn func(num protowire.Number, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v []byte
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				v = b[:n]
			}
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		if err := fn(num, v); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func varint(v []byte) (uint64, error) {
	x, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return x, nil
}

func eachPacked(v []byte, fn func(uint64)) error {
	for len(v) > 0 {
		x, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return protowire.ParseError(n)
		}
		fn(x)
		v = v[n:]
	}
	return nil
}

func lookupCode[K comparable](codes map[K]uint64, code uint64) K {
	for k, c := range codes {
		if c == code {
			return k
		}
	}
	var zero K
	return zero
}
