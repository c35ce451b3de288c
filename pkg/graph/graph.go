// Package graph models an exported computation graph: the nodes captured
// from a training framework's export step, the graph signature that tells
// inputs apart from state, and the concrete state tensors.
package graph

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Node kinds found in an exported graph.
const (
	OpPlaceholder  = "placeholder"
	OpCallFunction = "call_function"
	OpOutput       = "output"
)

// NameSeparator never appears in a node name. Lowering uses it to name the
// auxiliary tensors it synthesizes for a node.
const NameSeparator = "/"

// TensorMeta is the resolved value metadata of a node.
type TensorMeta struct {
	Shape    []int  `yaml:"shape,flow"`
	Dtype    string `yaml:"dtype"`
	DimOrder []int  `yaml:"dim_order,flow,omitempty"`
}

// Rank returns the number of dimensions.
func (m *TensorMeta) Rank() int {
	return len(m.Shape)
}

// Order returns the dim order, defaulting to the contiguous order when the
// exporter did not record one.
func (m *TensorMeta) Order() []int {
	if m.DimOrder == nil {
		return Contiguous(m.Rank())
	}
	return m.DimOrder
}

// Contiguous returns the default dim order (0, 1, ..., rank-1).
func Contiguous(rank int) []int {
	return lo.Range(rank)
}

// Range is an observed value range recorded by calibration.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Meta is the mutable metadata bag of a node. The annotation pass writes
// Annotation; everything else is set by the exporter.
type Meta struct {
	Val        *TensorMeta
	Range      *Range
	Annotation *QuantizationAnnotation
}

// Node is a single node of an exported graph.
//
// Args holds the positional arguments. Allowed kinds are *Node, []*Node,
// int64, []int64, float64 and nil.
type Node struct {
	Name   string
	Op     string
	Target string
	Args   []any
	Meta   Meta
}

// IsAnnotated reports whether a quantization rule already claimed the node.
func (n *Node) IsAnnotated() bool {
	return n.Meta.Annotation != nil && n.Meta.Annotation.Annotated
}

// Arg returns the node argument at position i, or nil when the argument is
// missing or is not a node.
func (n *Node) Arg(i int) *Node {
	if i < 0 || i >= len(n.Args) {
		return nil
	}
	node, _ := n.Args[i].(*Node)
	return node
}

// InputNodes returns every node referenced by the arguments, in order.
func (n *Node) InputNodes() []*Node {
	var inputs []*Node
	for _, arg := range n.Args {
		switch a := arg.(type) {
		case *Node:
			inputs = append(inputs, a)
		case []*Node:
			inputs = append(inputs, a...)
		}
	}
	return inputs
}

// Graph is an ordered list of nodes.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// Add appends a node and returns it. Use Validate to check the result.
func (g *Graph) Add(n *Node) *Node {
	g.nodes = append(g.nodes, n)
	if _, exists := g.byName[n.Name]; !exists {
		g.byName[n.Name] = n
	}
	return n
}

// Placeholder appends an input slot whose target is its own name.
func (g *Graph) Placeholder(name string, val *TensorMeta) *Node {
	return g.Add(&Node{Name: name, Op: OpPlaceholder, Target: name, Meta: Meta{Val: val}})
}

// Call appends a computation node.
func (g *Graph) Call(name, target string, val *TensorMeta, args ...any) *Node {
	return g.Add(&Node{Name: name, Op: OpCallFunction, Target: target, Args: args, Meta: Meta{Val: val}})
}

// SetOutput appends the sink node whose only argument is the output list.
func (g *Graph) SetOutput(outputs ...*Node) *Node {
	return g.Add(&Node{Name: "output", Op: OpOutput, Target: "output", Args: []any{outputs}})
}

// Nodes returns the nodes in traversal order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Output returns the sink node, or nil if the graph has none.
func (g *Graph) Output() *Node {
	n, _ := lo.Find(g.nodes, func(n *Node) bool { return n.Op == OpOutput })
	return n
}

// Validate checks that node names are unique and that every argument refers
// to a node that appears earlier in the graph.
func (g *Graph) Validate() error {
	seen := make(map[*Node]bool, len(g.nodes))
	names := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		if n.Name == "" || strings.Contains(n.Name, NameSeparator) {
			return errors.Errorf("invalid node name %q", n.Name)
		}
		if names[n.Name] {
			return errors.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = true
		switch n.Op {
		case OpPlaceholder, OpCallFunction, OpOutput:
		default:
			return errors.Errorf("node %q has unknown op %q", n.Name, n.Op)
		}
		for _, in := range n.InputNodes() {
			if !seen[in] {
				return errors.Errorf("node %q references %q before it is defined", n.Name, in.Name)
			}
		}
		seen[n] = true
	}
	return nil
}
