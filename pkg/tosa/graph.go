// Package tosa models the lowering target: element types, spec variants,
// lowered arguments, layout legalization and the append-only target graph.
package tosa

import (
	"github.com/samber/lo"
)

// Tensor is a tensor declaration. Data is nil for inputs and intermediate
// results and holds the encoded values of constants.
type Tensor struct {
	Name  string
	Shape []int
	DType DType
	Data  []byte
}

// IsConst reports whether the tensor carries data.
func (t *Tensor) IsConst() bool {
	return t.Data != nil
}

// BasicBlock is an append-only list of tensor declarations and operators.
// Every name an operator or output binding refers to must already be
// declared.
type BasicBlock struct {
	Name      string
	tensors   []*Tensor
	index     map[string]*Tensor
	operators []*Operator
	inputs    []string
	outputs   []string
}

// NewBasicBlock creates an empty block.
func NewBasicBlock(name string) *BasicBlock {
	return &BasicBlock{Name: name, index: make(map[string]*Tensor)}
}

// Tensors returns the declarations in declaration order.
func (b *BasicBlock) Tensors() []*Tensor { return b.tensors }

// Operators returns the instruction stream.
func (b *BasicBlock) Operators() []*Operator { return b.operators }

// Inputs returns the names of the block's input tensors.
func (b *BasicBlock) Inputs() []string { return b.inputs }

// Outputs returns the names of the block's output tensors.
func (b *BasicBlock) Outputs() []string { return b.outputs }

// Tensor looks up a declaration by name.
func (b *BasicBlock) Tensor(name string) (*Tensor, bool) {
	t, ok := b.index[name]
	return t, ok
}

// Constants returns the declarations that carry data.
func (b *BasicBlock) Constants() []*Tensor {
	return lo.Filter(b.tensors, func(t *Tensor, _ int) bool { return t.IsConst() })
}

// Declare adds a tensor declaration.
func (b *BasicBlock) Declare(t *Tensor) error {
	if t.Name == "" {
		return Invariantf("block %q: tensor without a name", b.Name)
	}
	if _, exists := b.index[t.Name]; exists {
		return Invariantf("block %q: tensor %q declared twice", b.Name, t.Name)
	}
	b.tensors = append(b.tensors, t)
	b.index[t.Name] = t
	return nil
}

// MarkInput records a declared tensor as a block input.
func (b *BasicBlock) MarkInput(name string) error {
	if _, ok := b.index[name]; !ok {
		return Invariantf("block %q: input %q is not declared", b.Name, name)
	}
	b.inputs = append(b.inputs, name)
	return nil
}

// AddOperator appends an instruction whose operands are all declared.
func (b *BasicBlock) AddOperator(op *Operator) error {
	for _, name := range op.Inputs {
		if _, ok := b.index[name]; !ok {
			return Invariantf("block %q: %s reads undeclared tensor %q", b.Name, op.Op, name)
		}
	}
	for _, name := range op.Outputs {
		if _, ok := b.index[name]; !ok {
			return Invariantf("block %q: %s writes undeclared tensor %q", b.Name, op.Op, name)
		}
	}
	b.operators = append(b.operators, op)
	return nil
}

// AddOutput binds a declared tensor as a block output.
func (b *BasicBlock) AddOutput(name string) error {
	if _, ok := b.index[name]; !ok {
		return Invariantf("block %q: output %q is not declared", b.Name, name)
	}
	b.outputs = append(b.outputs, name)
	return nil
}

// Region is a named list of basic blocks.
type Region struct {
	Name   string
	Blocks []*BasicBlock
}

// AddBlock appends a new basic block and makes it current.
func (r *Region) AddBlock(name string) *BasicBlock {
	b := NewBasicBlock(name)
	r.Blocks = append(r.Blocks, b)
	return b
}

// Graph accumulates a target program during one lowering session.
type Graph struct {
	Version WireVersion
	Regions []*Region
}

// NewGraph creates a graph with a "main" region holding a "main" block.
func NewGraph(version WireVersion) *Graph {
	g := &Graph{Version: version}
	g.AddRegion("main").AddBlock("main")
	return g
}

// AddRegion appends a new region and makes it current.
func (g *Graph) AddRegion(name string) *Region {
	r := &Region{Name: name}
	g.Regions = append(g.Regions, r)
	return r
}

// CurrentBlock returns the most recently added block of the most recently
// added region.
func (g *Graph) CurrentBlock() *BasicBlock {
	if len(g.Regions) == 0 {
		return nil
	}
	r := g.Regions[len(g.Regions)-1]
	if len(r.Blocks) == 0 {
		return nil
	}
	return r.Blocks[len(r.Blocks)-1]
}

// AddInputTensor declares a placeholder tensor without data and marks it as
// an input.
func (g *Graph) AddInputTensor(name string, shape []int, dtype DType) error {
	b := g.CurrentBlock()
	if err := b.Declare(&Tensor{Name: name, Shape: shape, DType: dtype}); err != nil {
		return err
	}
	return b.MarkInput(name)
}

// AddConst declares a constant tensor holding encoded data.
func (g *Graph) AddConst(name string, shape []int, dtype DType, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	return g.CurrentBlock().Declare(&Tensor{Name: name, Shape: shape, DType: dtype, Data: data})
}

// AddTensor declares an intermediate tensor produced by an operator.
func (g *Graph) AddTensor(name string, shape []int, dtype DType) error {
	return g.CurrentBlock().Declare(&Tensor{Name: name, Shape: shape, DType: dtype})
}

// AddOperator appends an instruction to the current block.
func (g *Graph) AddOperator(op Op, inputs, outputs []string, attrs ...Attribute) error {
	return g.CurrentBlock().AddOperator(&Operator{Op: op, Inputs: inputs, Outputs: outputs, Attributes: attrs})
}

// AddOutputTensor binds a declared tensor as a graph output.
func (g *Graph) AddOutputTensor(name string) error {
	return g.CurrentBlock().AddOutput(name)
}
