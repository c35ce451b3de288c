package tosa

import (
	"strconv"
	"strings"
)

// DType is a TOSA element type.
type DType uint32

const (
	DTypeUnknown DType = iota
	DTypeBool
	DTypeInt8
	DTypeInt16
	DTypeInt32
	DTypeFP16
	DTypeBF16
	DTypeFP32
	// DTypeShape holds shape operands. Only the 1.0 dialect has it.
	DTypeShape
)

var dtypeNames = map[DType]string{
	DTypeUnknown: "UNKNOWN",
	DTypeBool:    "BOOL",
	DTypeInt8:    "INT8",
	DTypeInt16:   "INT16",
	DTypeInt32:   "INT32",
	DTypeFP16:    "FP16",
	DTypeBF16:    "BF16",
	DTypeFP32:    "FP32",
	DTypeShape:   "SHAPE",
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return "DType(" + strconv.Itoa(int(d)) + ")"
}

// Size returns the encoded size of one element in bytes.
func (d DType) Size() int {
	switch d {
	case DTypeBool, DTypeInt8:
		return 1
	case DTypeInt16, DTypeFP16, DTypeBF16:
		return 2
	case DTypeInt32, DTypeFP32:
		return 4
	case DTypeShape:
		return 8
	}
	return 0
}

// IsFloat reports whether d is a floating point type.
func (d DType) IsFloat() bool {
	return d == DTypeFP16 || d == DTypeBF16 || d == DTypeFP32
}

// frameworkDTypes maps exporter dtype names to TOSA types. The exporter may
// or may not prefix names with "torch.".
var frameworkDTypes = map[string]DType{
	"bool":     DTypeBool,
	"int8":     DTypeInt8,
	"int16":    DTypeInt16,
	"int32":    DTypeInt32,
	"float16":  DTypeFP16,
	"half":     DTypeFP16,
	"bfloat16": DTypeBF16,
	"float32":  DTypeFP32,
	"float":    DTypeFP32,
}

// DTypeOf maps a framework dtype name to a TOSA type.
func DTypeOf(framework string) (DType, bool) {
	d, ok := frameworkDTypes[strings.TrimPrefix(framework, "torch.")]
	return d, ok
}
