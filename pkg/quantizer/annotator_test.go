package quantizer

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/ztosa/pkg/graph"
)

func newAnnotator(t *testing.T, cfg *Config) *Annotator {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewAnnotator(DefaultRegistry(), cfg).WithLogger(logger)
}

func meta() *graph.TensorMeta {
	return &graph.TensorMeta{Shape: []int{4}, Dtype: "float32"}
}

// twoAdds builds x, y -> add1 -> add2(add1, y) -> relu.
func twoAdds() (*graph.Graph, *graph.Node, *graph.Node, *graph.Node) {
	g := graph.New()
	x := g.Placeholder("x", meta())
	y := g.Placeholder("y", meta())
	add1 := g.Call("add1", "aten.add.Tensor", meta(), x, y)
	add2 := g.Call("add2", "aten.add.Tensor", meta(), add1, y)
	relu := g.Call("relu", "aten.relu.default", meta(), add2)
	g.SetOutput(relu)
	return g, add1, add2, relu
}

func TestAnnotateSkipsAnnotatedNodes(t *testing.T) {
	g, add1, add2, _ := twoAdds()
	claimed := &graph.QuantizationAnnotation{OutputQSpec: AffineInt8().OutputActivation, Annotated: true}
	add1.Meta.Annotation = claimed

	cfg := SymmetricInt8()
	matches, err := newAnnotator(t, cfg).Annotate(g, "add")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "add", matches[0].Rule)
	assert.Equal(t, []*graph.Node{add1, add2}, matches[0].Nodes)

	assert.Same(t, claimed, add1.Meta.Annotation)
	assert.Nil(t, add1.Meta.Annotation.InputQSpecs)

	ann := add2.Meta.Annotation
	require.NotNil(t, ann)
	assert.True(t, ann.Annotated)
	assert.Same(t, cfg.InputActivation, ann.InputQSpecs[0])
	shared := &graph.SharedQuantizationSpec{Edge: graph.Edge{From: "add1", To: "add2"}}
	assert.Equal(t, shared, ann.InputQSpecs[1])
	assert.Equal(t, shared, ann.OutputQSpec)
}

func TestAnnotateIsIdempotent(t *testing.T) {
	g, add1, add2, relu := twoAdds()
	a := newAnnotator(t, SymmetricInt8())

	first, err := a.Annotate(g)
	require.NoError(t, err)
	before := []*graph.QuantizationAnnotation{add1.Meta.Annotation, add2.Meta.Annotation, relu.Meta.Annotation}

	second, err := a.Annotate(g)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Same(t, before[0], add1.Meta.Annotation)
	assert.Same(t, before[1], add2.Meta.Annotation)
	assert.Same(t, before[2], relu.Meta.Annotation)
}

func TestAnnotateRunsAllRulesInOrder(t *testing.T) {
	g, add1, add2, relu := twoAdds()
	matches, err := newAnnotator(t, SymmetricInt8()).Annotate(g)
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, "add", matches[0].Rule)
	assert.Equal(t, []*graph.Node{add1, add2}, matches[0].Nodes)
	assert.Equal(t, "sub", matches[1].Rule)
	assert.Empty(t, matches[1].Nodes)
	assert.Equal(t, "relu", matches[2].Rule)
	assert.Equal(t, []*graph.Node{relu}, matches[2].Nodes)

	// relu has a single operand, so only position 0 is annotated.
	assert.Len(t, relu.Meta.Annotation.InputQSpecs, 1)
}

func TestAnnotateFilter(t *testing.T) {
	g, add1, add2, _ := twoAdds()
	a := newAnnotator(t, SymmetricInt8()).WithFilter(func(n *graph.Node) bool { return n.Name != "add1" })

	matches, err := a.Annotate(g, "add")
	require.NoError(t, err)
	assert.Equal(t, []*graph.Node{add2}, matches[0].Nodes)
	assert.Nil(t, add1.Meta.Annotation)
}

func TestAnnotateUnknownRule(t *testing.T) {
	g, _, _, _ := twoAdds()
	_, err := newAnnotator(t, SymmetricInt8()).Annotate(g, "conv")
	assert.ErrorContains(t, err, `no quantization rule named "conv"`)
}

func TestAnnotateLogsMatches(t *testing.T) {
	g, _, _, _ := twoAdds()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err := NewAnnotator(DefaultRegistry(), SymmetricInt8()).WithLogger(logger).Annotate(g, "relu")
	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "relu", entry.Data["rule"])
	assert.Equal(t, "matched 1 nodes", entry.Message)
}

func TestSharedQSpecSameOperandTwice(t *testing.T) {
	g := graph.New()
	x := g.Placeholder("x", meta())
	sq := g.Call("sq", "aten.add.Tensor", meta(), x, x)

	inputs, output := SharedQSpec(sq, SymmetricInt8())
	assert.Len(t, inputs, 1)
	assert.Equal(t, &graph.SharedQuantizationSpec{Edge: graph.Edge{From: "x", To: "sq"}}, output)

	noLead := g.Call("c", "aten.add.Tensor", meta(), 1.0, x)
	inputs, output = SharedQSpec(noLead, SymmetricInt8())
	assert.Nil(t, inputs)
	assert.Nil(t, output)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"add", "sub", "relu"}, DefaultRegistry().Names())

	_, err := NewRegistry(Registration{Name: "add", Rule: annotateAdd}, Registration{Name: "add", Rule: annotateSub})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(Registration{Name: "nil"})
	assert.ErrorContains(t, err, "is nil")
}
