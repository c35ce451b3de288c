package graph

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Signature tells apart the roles of the graph's placeholders. The maps go
// from placeholder name to the fully qualified name of the state entry.
type Signature struct {
	UserInputs                    []string          `yaml:"user_inputs,flow"`
	InputsToParameters            map[string]string `yaml:"inputs_to_parameters,omitempty"`
	InputsToBuffers               map[string]string `yaml:"inputs_to_buffers,omitempty"`
	InputsToLiftedTensorConstants map[string]string `yaml:"inputs_to_lifted_tensor_constants,omitempty"`
	InputsToLiftedCustomObjs      map[string]string `yaml:"inputs_to_lifted_custom_objs,omitempty"`
	UserOutputs                   []string          `yaml:"user_outputs,flow,omitempty"`
}

// Tensor is a concrete, row-major tensor value.
type Tensor struct {
	Dtype string    `yaml:"dtype"`
	Shape []int     `yaml:"shape,flow"`
	Data  []float64 `yaml:"data,flow"`
}

// NumElements returns the product of the shape.
func (t *Tensor) NumElements() int {
	return lo.Reduce(t.Shape, func(acc int, d int, _ int) int { return acc * d }, 1)
}

// ExportedProgram is a graph together with its signature and state.
type ExportedProgram struct {
	Graph      *Graph
	Signature  Signature
	Parameters map[string]*Tensor
	Buffers    map[string]*Tensor
	Constants  map[string]*Tensor
}

// IsUserInput reports whether the placeholder is a runtime input.
func (p *ExportedProgram) IsUserInput(n *Node) bool {
	return lo.Contains(p.Signature.UserInputs, n.Name)
}

// IsParameter reports whether the placeholder is a trainable parameter.
func (p *ExportedProgram) IsParameter(n *Node) bool {
	_, ok := p.Signature.InputsToParameters[n.Name]
	return ok
}

// IsBuffer reports whether the placeholder is a non-trainable buffer.
func (p *ExportedProgram) IsBuffer(n *Node) bool {
	_, ok := p.Signature.InputsToBuffers[n.Name]
	return ok
}

// IsLiftedConstant reports whether the placeholder is a lifted tensor constant.
func (p *ExportedProgram) IsLiftedConstant(n *Node) bool {
	_, ok := p.Signature.InputsToLiftedTensorConstants[n.Name]
	return ok
}

// IsLiftedCustomObject reports whether the placeholder is a lifted custom object.
func (p *ExportedProgram) IsLiftedCustomObject(n *Node) bool {
	_, ok := p.Signature.InputsToLiftedCustomObjs[n.Name]
	return ok
}

// Parameter returns the value of a parameter placeholder.
func (p *ExportedProgram) Parameter(n *Node) (*Tensor, error) {
	return lookupState("parameter", n, p.Signature.InputsToParameters, p.Parameters)
}

// Buffer returns the value of a buffer placeholder.
func (p *ExportedProgram) Buffer(n *Node) (*Tensor, error) {
	return lookupState("buffer", n, p.Signature.InputsToBuffers, p.Buffers)
}

// LiftedConstant returns the value of a lifted constant placeholder.
func (p *ExportedProgram) LiftedConstant(n *Node) (*Tensor, error) {
	return lookupState("lifted constant", n, p.Signature.InputsToLiftedTensorConstants, p.Constants)
}

func lookupState(kind string, n *Node, names map[string]string, state map[string]*Tensor) (*Tensor, error) {
	fqn, ok := names[n.Name]
	if !ok {
		return nil, errors.Errorf("placeholder %q is not a %s", n.Name, kind)
	}
	t, ok := state[fqn]
	if !ok || t == nil {
		return nil, errors.Errorf("%s %q for placeholder %q has no value", kind, fqn, n.Name)
	}
	if got := len(t.Data); got != t.NumElements() {
		return nil, errors.Errorf("%s %q has %d values, shape %v needs %d", kind, fqn, got, t.Shape, t.NumElements())
	}
	return t, nil
}
