package tosa

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// EncodeValues packs values as little-endian elements of the given type.
// Integer types reject values that do not fit.
func EncodeValues(dtype DType, values []float64) ([]byte, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, errors.Errorf("cannot encode values of type %s", dtype)
	}
	out := make([]byte, len(values)*size)
	for i, v := range values {
		b := out[i*size : (i+1)*size]
		switch dtype {
		case DTypeBool:
			if v != 0 {
				b[0] = 1
			}
		case DTypeInt8:
			if err := checkInt(dtype, v, math.MinInt8, math.MaxInt8+1); err != nil {
				return nil, err
			}
			b[0] = byte(int8(v))
		case DTypeInt16:
			if err := checkInt(dtype, v, math.MinInt16, math.MaxInt16+1); err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		case DTypeInt32:
			if err := checkInt(dtype, v, math.MinInt32, math.MaxInt32+1); err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		case DTypeShape:
			if err := checkInt(dtype, v, math.MinInt64, math.MaxInt64+1); err != nil {
				return nil, err
			}
			binary.LittleEndian.PutUint64(b, uint64(int64(v)))
		case DTypeFP16:
			binary.LittleEndian.PutUint16(b, float16.Fromfloat32(float32(v)).Bits())
		case DTypeBF16:
			// bfloat16 is the upper half of a float32.
			binary.LittleEndian.PutUint16(b, uint16(math.Float32bits(float32(v))>>16))
		case DTypeFP32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		}
	}
	return out, nil
}

// DecodeValues is the inverse of EncodeValues.
func DecodeValues(dtype DType, data []byte) ([]float64, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, errors.Errorf("cannot decode values of type %s", dtype)
	}
	if len(data)%size != 0 {
		return nil, errors.Errorf("%d bytes is not a whole number of %s elements", len(data), dtype)
	}
	out := make([]float64, len(data)/size)
	for i := range out {
		b := data[i*size : (i+1)*size]
		switch dtype {
		case DTypeBool:
			if b[0] != 0 {
				out[i] = 1
			}
		case DTypeInt8:
			out[i] = float64(int8(b[0]))
		case DTypeInt16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(b)))
		case DTypeInt32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case DTypeShape:
			out[i] = float64(int64(binary.LittleEndian.Uint64(b)))
		case DTypeFP16:
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b)).Float32())
		case DTypeBF16:
			out[i] = float64(math.Float32frombits(uint32(binary.LittleEndian.Uint16(b)) << 16))
		case DTypeFP32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	}
	return out, nil
}

// checkInt accepts integral v in [lo, limit). The limit is exclusive because
// float64(math.MaxInt64) rounds up to 2^63.
func checkInt(dtype DType, v float64, lo, limit float64) error {
	if v != math.Trunc(v) || v < lo || v >= limit {
		return errors.Errorf("value %v does not fit %s", v, dtype)
	}
	return nil
}
