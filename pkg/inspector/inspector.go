// Package inspector prints human-readable summaries of the files ztosa reads
// and writes: serialized TOSA graphs, exported program files and ZMF models.
package inspector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/zerfoo/zmf"
	"google.golang.org/protobuf/proto"

	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/serializer"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Kind is a file type the inspector understands.
type Kind string

const (
	KindTOSA    Kind = "tosa"
	KindProgram Kind = "program"
	KindZMF     Kind = "zmf"
)

// DetectKind infers the file type from the extension.
func DetectKind(path string) (Kind, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tosa", ".tosa1", ".pb":
		return KindTOSA, nil
	case ".yaml", ".yml":
		return KindProgram, nil
	case ".zmf":
		return KindZMF, nil
	default:
		return "", errors.Errorf("could not infer file type from extension '%s'", ext)
	}
}

// Inspect prints a summary of inputFile, which is of the given kind.
func Inspect(w io.Writer, kind Kind, inputFile string) error {
	switch kind {
	case KindTOSA:
		return InspectTOSA(w, inputFile)
	case KindProgram:
		return InspectProgram(w, inputFile)
	case KindZMF:
		return InspectZMF(w, inputFile)
	}
	return errors.Errorf("unsupported file type '%s'", kind)
}

// InspectTOSA prints a summary of a serialized TOSA graph in either dialect.
func InspectTOSA(w io.Writer, inputFile string) error {
	fmt.Fprintf(w, "Inspecting TOSA graph from: %s\n", inputFile)

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return errors.Wrap(err, "failed to read TOSA graph")
	}
	g, dialect, err := serializer.Decode(data)
	if err != nil {
		return errors.Wrap(err, "failed to decode TOSA graph")
	}

	fmt.Fprintf(w, "Dialect: %s\n", dialect)
	fmt.Fprintf(w, "Version: %s\n", g.Version)
	for _, r := range g.Regions {
		for _, blk := range r.Blocks {
			printBlock(w, r.Name, blk)
		}
	}
	return nil
}

func printBlock(w io.Writer, region string, blk *tosa.BasicBlock) {
	fmt.Fprintf(w, "\nBlock %s/%s: %d tensors, %d constants, %d operators\n",
		region, blk.Name, len(blk.Tensors()), len(blk.Constants()), len(blk.Operators()))
	fmt.Fprintf(w, "Inputs: %v\n", blk.Inputs())
	fmt.Fprintf(w, "Outputs: %v\n", blk.Outputs())

	fmt.Fprintln(w, "Tensors:")
	for _, t := range blk.Tensors() {
		suffix := ""
		if t.IsConst() {
			suffix = fmt.Sprintf(" const (%d bytes)", len(t.Data))
		}
		fmt.Fprintf(w, "- %s: %s%v%s\n", t.Name, t.DType, t.Shape, suffix)
	}

	fmt.Fprintln(w, "Operators:")
	for _, op := range blk.Operators() {
		fmt.Fprintf(w, "- %s %v -> %v\n", op.Op, op.Inputs, op.Outputs)
		for _, a := range op.Attributes {
			fmt.Fprintf(w, "    %s: %s\n", a.Name, attributeValue(a))
		}
	}
}

func attributeValue(a tosa.Attribute) string {
	switch {
	case len(a.Ints) > 0:
		return fmt.Sprint(a.Ints)
	case len(a.Floats) > 0:
		return fmt.Sprint(a.Floats)
	case len(a.Bools) > 0:
		return fmt.Sprint(a.Bools)
	}
	return "[]"
}

// InspectProgram prints a summary of an exported program file.
func InspectProgram(w io.Writer, inputFile string) error {
	fmt.Fprintf(w, "Inspecting exported program from: %s\n", inputFile)

	p, err := graph.Load(inputFile)
	if err != nil {
		return errors.Wrap(err, "failed to load exported program")
	}

	nodes := p.Graph.Nodes()
	calls := lo.Filter(nodes, func(n *graph.Node, _ int) bool { return n.Op == graph.OpCallFunction })
	annotated := lo.CountBy(calls, (*graph.Node).IsAnnotated)
	fmt.Fprintf(w, "Graph has %d nodes.\n", len(nodes))
	fmt.Fprintf(w, "User inputs: %v\n", p.Signature.UserInputs)
	fmt.Fprintf(w, "Parameters: %d, buffers: %d, lifted constants: %d\n",
		len(p.Signature.InputsToParameters), len(p.Signature.InputsToBuffers), len(p.Signature.InputsToLiftedTensorConstants))
	fmt.Fprintf(w, "%d of %d operator nodes are annotated.\n", annotated, len(calls))

	targets := lo.CountValuesBy(calls, func(n *graph.Node) string { return n.Target })
	names := lo.Keys(targets)
	slices.Sort(names)
	fmt.Fprintln(w, "\nTargets:")
	for _, name := range names {
		fmt.Fprintf(w, "- %s: %d\n", name, targets[name])
	}
	return nil
}

// LoadZMF reads and deserializes a ZMF model from a file.
func LoadZMF(file string) (*zmf.Model, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	model := &zmf.Model{}
	if err := proto.Unmarshal(data, model); err != nil {
		return nil, err
	}

	return model, nil
}

// InspectZMF prints a summary of a ZMF model.
func InspectZMF(w io.Writer, inputFile string) error {
	fmt.Fprintf(w, "Inspecting ZMF model from: %s\n", inputFile)

	model, err := LoadZMF(inputFile)
	if err != nil {
		return errors.Wrap(err, "failed to load ZMF model")
	}

	fmt.Fprintf(w, "Producer: %s %s\n", model.GetMetadata().GetProducerName(), model.GetMetadata().GetProducerVersion())
	fmt.Fprintf(w, "Opset version: %d\n", model.GetMetadata().GetOpsetVersion())
	fmt.Fprintf(w, "Graph has %d nodes.\n", len(model.GetGraph().GetNodes()))
	fmt.Fprintf(w, "Graph has %d parameters.\n", len(model.GetGraph().GetParameters()))

	fmt.Fprintln(w, "\nNodes:")
	for _, node := range model.GetGraph().GetNodes() {
		fmt.Fprintf(w, "- Node: %s, OpType: %s\n", node.GetName(), node.GetOpType())
		fmt.Fprintf(w, "  Inputs: %v\n", node.GetInputs())
		fmt.Fprintf(w, "  Outputs: %v\n", node.GetOutputs())
		if len(node.GetAttributes()) > 0 {
			names := lo.Keys(node.GetAttributes())
			slices.Sort(names)
			fmt.Fprintln(w, "  Attributes:")
			for _, name := range names {
				fmt.Fprintf(w, "    - %s: %v\n", name, node.GetAttributes()[name].GetValue())
			}
		}
	}
	return nil
}
