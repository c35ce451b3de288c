package graph

// QSpec is either a concrete *QuantizationSpec or a *SharedQuantizationSpec.
type QSpec interface {
	qspec()
}

// QuantizationSpec describes how a tensor is encoded in fixed point.
type QuantizationSpec struct {
	Dtype     string `yaml:"dtype"`
	QuantMin  int64  `yaml:"quant_min"`
	QuantMax  int64  `yaml:"quant_max"`
	Symmetric bool   `yaml:"symmetric,omitempty"`
	Observer  string `yaml:"observer,omitempty"`
}

func (*QuantizationSpec) qspec() {}

// Edge names a producer -> consumer connection between two nodes. When From
// equals To the edge denotes the output of that node.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SharedQuantizationSpec says a tensor uses the same quantization parameters
// as the given edge.
type SharedQuantizationSpec struct {
	Edge Edge
}

func (*SharedQuantizationSpec) qspec() {}

// QuantizationAnnotation is the per-node quantization metadata. InputQSpecs
// is keyed by argument position.
type QuantizationAnnotation struct {
	InputQSpecs map[int]QSpec
	OutputQSpec QSpec
	Annotated   bool
}
