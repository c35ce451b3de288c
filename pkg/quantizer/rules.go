package quantizer

import (
	"github.com/samber/lo"

	"github.com/zerfoo/ztosa/pkg/graph"
)

var (
	annotateAdd  = sharedRule("aten.add.Tensor", "aten.add_.Tensor")
	annotateSub  = sharedRule("aten.sub.Tensor", "aten.sub_.Tensor")
	annotateReLU = sharedRule("aten.relu.default", "aten.relu_.default")
)

// sharedRule builds a rule for operators whose operands and result share one
// set of quantization parameters.
func sharedRule(targets ...string) Rule {
	return func(g *graph.Graph, cfg *Config, filter FilterFunc) []*graph.Node {
		var matched []*graph.Node
		for _, n := range g.Nodes() {
			if n.Op != graph.OpCallFunction || !lo.Contains(targets, n.Target) {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			matched = append(matched, n)
			if n.IsAnnotated() {
				continue
			}
			inputs, output := SharedQSpec(n, cfg)
			if inputs == nil {
				continue
			}
			n.Meta.Annotation = &graph.QuantizationAnnotation{
				InputQSpecs: inputs,
				OutputQSpec: output,
				Annotated:   true,
			}
		}
		return matched
	}
}

// SharedQSpec computes the annotation of an operator whose operands and
// result share quantization parameters. The lead operand (argument 0) gets
// the configured input activation spec; every other node operand and the
// output share the spec of the edge from the lead operand to n. It returns
// nil when the lead argument is not a node.
func SharedQSpec(n *graph.Node, cfg *Config) (map[int]graph.QSpec, graph.QSpec) {
	lead := n.Arg(0)
	if lead == nil || cfg == nil || cfg.InputActivation == nil {
		return nil, nil
	}
	shared := &graph.SharedQuantizationSpec{Edge: graph.Edge{From: lead.Name, To: n.Name}}
	inputs := map[int]graph.QSpec{0: cfg.InputActivation}
	for i := 1; i < len(n.Args); i++ {
		if other := n.Arg(i); other != nil && other != lead {
			inputs[i] = shared
		}
	}
	return inputs, shared
}
