package quantizer

import (
	"github.com/pkg/errors"

	"github.com/zerfoo/ztosa/pkg/graph"
)

// OutputPosition selects the output spec in Resolve.
const OutputPosition = -1

// Resolve follows shared references from the spec of node n at the given
// argument position (or OutputPosition) to a concrete spec.
func Resolve(g *graph.Graph, n *graph.Node, position int) (*graph.QuantizationSpec, error) {
	// Every hop moves to a different (node, position) pair, so a longer
	// chain than that must loop.
	for hops := 0; hops <= 2*len(g.Nodes()); hops++ {
		ann := n.Meta.Annotation
		if ann == nil {
			return nil, errors.Errorf("node %q is not annotated", n.Name)
		}
		var q graph.QSpec
		if position == OutputPosition {
			q = ann.OutputQSpec
		} else {
			q = ann.InputQSpecs[position]
		}

		switch spec := q.(type) {
		case *graph.QuantizationSpec:
			return spec, nil
		case *graph.SharedQuantizationSpec:
			next, pos, err := edgeTarget(g, spec.Edge)
			if err != nil {
				return nil, errors.Wrapf(err, "node %q", n.Name)
			}
			n, position = next, pos
		default:
			return nil, errors.Errorf("node %q has no spec at position %d", n.Name, position)
		}
	}
	return nil, errors.Errorf("shared quantization specs starting at %q form a cycle", n.Name)
}

// edgeTarget finds the node and position whose spec an edge denotes: the
// output of From when From equals To, else the input of To fed by From.
func edgeTarget(g *graph.Graph, e graph.Edge) (*graph.Node, int, error) {
	to, ok := g.Node(e.To)
	if !ok {
		return nil, 0, errors.Errorf("edge target %q is not in the graph", e.To)
	}
	if e.From == e.To {
		return to, OutputPosition, nil
	}
	for i := range to.Args {
		if in := to.Arg(i); in != nil && in.Name == e.From {
			return to, i, nil
		}
	}
	return nil, 0, errors.Errorf("%q is not an input of %q", e.From, e.To)
}
