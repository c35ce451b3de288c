package tosa

// Op is a TOSA operator. Wire codes differ between dialects; each serializer
// owns its own table.
type Op uint32

const (
	OpUnknown Op = iota
	OpAdd
	OpSub
	OpMul
	OpMaximum
	OpMinimum
	OpClamp
	OpTranspose
	OpReshape
	OpIdentity
)

var opNames = map[Op]string{
	OpUnknown:   "UNKNOWN",
	OpAdd:       "ADD",
	OpSub:       "SUB",
	OpMul:       "MUL",
	OpMaximum:   "MAXIMUM",
	OpMinimum:   "MINIMUM",
	OpClamp:     "CLAMP",
	OpTranspose: "TRANSPOSE",
	OpReshape:   "RESHAPE",
	OpIdentity:  "IDENTITY",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Attribute is a named operator attribute. Scalars are stored as one-element
// slices.
type Attribute struct {
	Name   string
	Ints   []int64
	Floats []float32
	Bools  []bool
}

// IntAttr builds an integer list attribute.
func IntAttr(name string, v ...int64) Attribute {
	return Attribute{Name: name, Ints: v}
}

// FloatAttr builds a float list attribute.
func FloatAttr(name string, v ...float32) Attribute {
	return Attribute{Name: name, Floats: v}
}

// BoolAttr builds a bool list attribute.
func BoolAttr(name string, v ...bool) Attribute {
	return Attribute{Name: name, Bools: v}
}

// Operator is one instruction of a basic block.
type Operator struct {
	Op         Op
	Attributes []Attribute
	Inputs     []string
	Outputs    []string
}

// Attribute returns the attribute with the given name.
func (o *Operator) Attribute(name string) (Attribute, bool) {
	for _, a := range o.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}
