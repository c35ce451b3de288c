package graph

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// programFile is the on-disk layout of an exported program.
type programFile struct {
	Signature Signature  `yaml:"signature"`
	State     stateFile  `yaml:"state,omitempty"`
	Nodes     []nodeFile `yaml:"nodes"`
}

type stateFile struct {
	Parameters map[string]*Tensor `yaml:"parameters,omitempty"`
	Buffers    map[string]*Tensor `yaml:"buffers,omitempty"`
	Constants  map[string]*Tensor `yaml:"constants,omitempty"`
}

type nodeFile struct {
	Name       string          `yaml:"name"`
	Op         string          `yaml:"op"`
	Target     string          `yaml:"target"`
	Args       []argFile       `yaml:"args,omitempty"`
	Val        *TensorMeta     `yaml:"val,omitempty"`
	Range      *Range          `yaml:"range,omitempty,flow"`
	Annotation *annotationFile `yaml:"annotation,omitempty"`
}

// argFile holds exactly one of its fields. An entry with none set is nil.
type argFile struct {
	Node  string    `yaml:"node,omitempty"`
	Nodes *[]string `yaml:"nodes,omitempty,flow"`
	Int   *int64    `yaml:"int,omitempty"`
	Ints  *[]int64  `yaml:"ints,omitempty,flow"`
	Float *float64  `yaml:"float,omitempty"`
}

type annotationFile struct {
	Inputs    map[int]qspecFile `yaml:"inputs,omitempty"`
	Output    *qspecFile        `yaml:"output,omitempty"`
	Annotated bool              `yaml:"annotated"`
}

type qspecFile struct {
	Spec   *QuantizationSpec `yaml:"spec,omitempty,flow"`
	Shared *Edge             `yaml:"shared,omitempty,flow"`
}

// Load reads an exported program from a YAML file.
func Load(path string) (*ExportedProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read exported program")
	}
	p, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return p, nil
}

// Save writes an exported program, including any annotations, to a YAML file.
func Save(path string, p *ExportedProgram) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write exported program")
	}
	return nil
}

// Decode parses an exported program and validates its graph.
func Decode(data []byte) (*ExportedProgram, error) {
	var f programFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal exported program")
	}

	g := New()
	for _, nf := range f.Nodes {
		n := &Node{Name: nf.Name, Op: nf.Op, Target: nf.Target}
		n.Meta.Val = nf.Val
		n.Meta.Range = nf.Range
		for i, af := range nf.Args {
			arg, err := af.resolve(g)
			if err != nil {
				return nil, errors.Wrapf(err, "node %q argument %d", nf.Name, i)
			}
			n.Args = append(n.Args, arg)
		}
		if nf.Annotation != nil {
			ann, err := nf.Annotation.decode()
			if err != nil {
				return nil, errors.Wrapf(err, "node %q annotation", nf.Name)
			}
			n.Meta.Annotation = ann
		}
		g.Add(n)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	return &ExportedProgram{
		Graph:      g,
		Signature:  f.Signature,
		Parameters: f.State.Parameters,
		Buffers:    f.State.Buffers,
		Constants:  f.State.Constants,
	}, nil
}

// Encode renders an exported program as YAML.
func Encode(p *ExportedProgram) ([]byte, error) {
	f := programFile{
		Signature: p.Signature,
		State: stateFile{
			Parameters: p.Parameters,
			Buffers:    p.Buffers,
			Constants:  p.Constants,
		},
	}
	for _, n := range p.Graph.Nodes() {
		nf := nodeFile{Name: n.Name, Op: n.Op, Target: n.Target, Val: n.Meta.Val, Range: n.Meta.Range}
		for i, arg := range n.Args {
			af, err := encodeArg(arg)
			if err != nil {
				return nil, errors.Wrapf(err, "node %q argument %d", n.Name, i)
			}
			nf.Args = append(nf.Args, af)
		}
		if ann := n.Meta.Annotation; ann != nil {
			nf.Annotation = encodeAnnotation(ann)
		}
		f.Nodes = append(f.Nodes, nf)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal exported program")
	}
	return data, nil
}

func (af argFile) resolve(g *Graph) (any, error) {
	lookup := func(name string) (*Node, error) {
		n, ok := g.Node(name)
		if !ok {
			return nil, errors.Errorf("unknown node %q", name)
		}
		return n, nil
	}
	switch {
	case af.Node != "":
		return lookup(af.Node)
	case af.Nodes != nil:
		nodes := make([]*Node, 0, len(*af.Nodes))
		for _, name := range *af.Nodes {
			n, err := lookup(name)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		return nodes, nil
	case af.Int != nil:
		return *af.Int, nil
	case af.Ints != nil:
		return *af.Ints, nil
	case af.Float != nil:
		return *af.Float, nil
	}
	return nil, nil
}

func encodeArg(arg any) (argFile, error) {
	switch a := arg.(type) {
	case nil:
		return argFile{}, nil
	case *Node:
		return argFile{Node: a.Name}, nil
	case []*Node:
		names := make([]string, len(a))
		for i, n := range a {
			names[i] = n.Name
		}
		return argFile{Nodes: &names}, nil
	case int64:
		return argFile{Int: &a}, nil
	case int:
		v := int64(a)
		return argFile{Int: &v}, nil
	case []int64:
		return argFile{Ints: &a}, nil
	case float64:
		return argFile{Float: &a}, nil
	}
	return argFile{}, errors.Errorf("unsupported argument type %T", arg)
}

func (af *annotationFile) decode() (*QuantizationAnnotation, error) {
	ann := &QuantizationAnnotation{Annotated: af.Annotated, InputQSpecs: make(map[int]QSpec, len(af.Inputs))}
	for pos, qf := range af.Inputs {
		q, err := qf.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", pos)
		}
		ann.InputQSpecs[pos] = q
	}
	if af.Output != nil {
		q, err := af.Output.decode()
		if err != nil {
			return nil, errors.Wrap(err, "output")
		}
		ann.OutputQSpec = q
	}
	return ann, nil
}

func (qf qspecFile) decode() (QSpec, error) {
	switch {
	case qf.Spec != nil && qf.Shared != nil:
		return nil, errors.New("spec and shared are mutually exclusive")
	case qf.Spec != nil:
		return qf.Spec, nil
	case qf.Shared != nil:
		return &SharedQuantizationSpec{Edge: *qf.Shared}, nil
	}
	return nil, errors.New("empty quantization spec")
}

func encodeAnnotation(ann *QuantizationAnnotation) *annotationFile {
	af := &annotationFile{Annotated: ann.Annotated}
	if len(ann.InputQSpecs) > 0 {
		af.Inputs = make(map[int]qspecFile, len(ann.InputQSpecs))
		for pos, q := range ann.InputQSpecs {
			af.Inputs[pos] = encodeQSpec(q)
		}
	}
	if ann.OutputQSpec != nil {
		q := encodeQSpec(ann.OutputQSpec)
		af.Output = &q
	}
	return af
}

func encodeQSpec(q QSpec) qspecFile {
	switch s := q.(type) {
	case *QuantizationSpec:
		return qspecFile{Spec: s}
	case *SharedQuantizationSpec:
		edge := s.Edge
		return qspecFile{Shared: &edge}
	}
	return qspecFile{}
}
