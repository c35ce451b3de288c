package inspector

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zerfoo/zmf"
	"google.golang.org/protobuf/proto"

	"github.com/zerfoo/ztosa/pkg/serializer"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Helper function to create a small TOSA graph file in the dialect of spec
func createTOSAGraph(t *testing.T, dir, filename string, spec tosa.Spec) string {
	t.Helper()
	backend, err := serializer.ForSpec(spec)
	if err != nil {
		t.Fatalf("Failed to select serializer: %v", err)
	}
	g := backend.NewGraph()
	steps := []error{
		g.AddInputTensor("x", []int{2, 3}, tosa.DTypeInt8),
		g.AddTensor("y", []int{3, 2}, tosa.DTypeInt8),
		g.AddOperator(tosa.OpTranspose, []string{"x"}, []string{"y"}, tosa.IntAttr("perms", 1, 0)),
		g.AddOutputTensor("y"),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatalf("Failed to build TOSA graph: %v", err)
		}
	}
	data, err := backend.Marshal(g)
	if err != nil {
		t.Fatalf("Failed to marshal TOSA graph: %v", err)
	}
	filePath := filepath.Join(dir, filename)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		t.Fatalf("Failed to write TOSA graph: %v", err)
	}
	return filePath
}

// Helper function to create a dummy ZMF model file
func createDummyZmfModel(t *testing.T, dir, filename string) string {
	t.Helper()
	zmfModel := &zmf.Model{
		Metadata: &zmf.Metadata{
			ProducerName:    "test-producer",
			ProducerVersion: "1.0",
			OpsetVersion:    1,
		},
		Graph: &zmf.Graph{
			Nodes: []*zmf.Node{
				{Name: "zmf_node1", OpType: "Add"},
			},
			Parameters: make(map[string]*zmf.Tensor),
		},
	}
	data, err := proto.Marshal(zmfModel)
	if err != nil {
		t.Fatalf("Failed to marshal dummy ZMF model: %v", err)
	}
	filePath := filepath.Join(dir, filename)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		t.Fatalf("Failed to write dummy ZMF model: %v", err)
	}
	return filePath
}

func expectContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(output, s) {
			t.Errorf("Output missing %q:\n%s", s, output)
		}
	}
}

func TestInspectTOSA(t *testing.T) {
	tests := []struct {
		spec    tosa.Spec
		file    string
		dialect string
		version string
	}{
		{spec: tosa.SpecV0{}, file: "model.tosa", dialect: "TOSA 0.80 (protobuf)", version: "0.80.0"},
		{spec: tosa.SpecV1{INT: true}, file: "model.tosa1", dialect: "TOSA 1.0 (flatbuffer)", version: "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.spec.String(), func(t *testing.T) {
			tosaFile := createTOSAGraph(t, t.TempDir(), tt.file, tt.spec)

			var out bytes.Buffer
			if err := Inspect(&out, KindTOSA, tosaFile); err != nil {
				t.Fatalf("Inspect returned an error: %v", err)
			}
			expectContains(t, out.String(),
				"Inspecting TOSA graph from:",
				"Dialect: "+tt.dialect,
				"Version: "+tt.version,
				"Block main/main: 2 tensors, 0 constants, 1 operators",
				"Inputs: [x]",
				"- y: INT8[3 2]",
				"- TRANSPOSE [x] -> [y]",
				"perms: [1 0]",
			)
		})
	}
}

func TestInspectProgram(t *testing.T) {
	programFile := filepath.Join(t.TempDir(), "model.yaml")
	program := `
signature:
  user_inputs: [x]
  inputs_to_parameters: {p_w: w}
state:
  parameters:
    w: {dtype: float32, shape: [2], data: [1, 2]}
nodes:
  - {name: x, op: placeholder, target: x, val: {shape: [2], dtype: float32}}
  - {name: p_w, op: placeholder, target: p_w, val: {shape: [2], dtype: float32}}
  - name: add
    op: call_function
    target: aten.add.Tensor
    args: [{node: x}, {node: p_w}]
    val: {shape: [2], dtype: float32}
    annotation:
      inputs: {0: {spec: {dtype: int8, quant_min: -127, quant_max: 127}}}
      annotated: true
  - {name: r, op: call_function, target: aten.relu.default, args: [{node: add}], val: {shape: [2], dtype: float32}}
  - {name: output, op: output, target: output, args: [{nodes: [r]}]}
`
	if err := os.WriteFile(programFile, []byte(program), 0o644); err != nil {
		t.Fatalf("Failed to write program: %v", err)
	}

	var out bytes.Buffer
	if err := InspectProgram(&out, programFile); err != nil {
		t.Fatalf("InspectProgram returned an error: %v", err)
	}
	expectContains(t, out.String(),
		"Inspecting exported program from:",
		"Graph has 5 nodes.",
		"User inputs: [x]",
		"Parameters: 1, buffers: 0, lifted constants: 0",
		"1 of 2 operator nodes are annotated.",
		"- aten.add.Tensor: 1",
		"- aten.relu.default: 1",
	)
}

func TestInspectZMF(t *testing.T) {
	zmfFile := createDummyZmfModel(t, t.TempDir(), "test.zmf")

	var out bytes.Buffer
	if err := InspectZMF(&out, zmfFile); err != nil {
		t.Errorf("InspectZMF returned an error: %v", err)
	}
	expectContains(t, out.String(),
		"Inspecting ZMF model from:",
		"Producer: test-producer 1.0",
		"Opset version: 1",
		"Graph has 1 nodes.",
		"Graph has 0 parameters.",
		"- Node: zmf_node1, OpType: Add",
	)
}

func TestDetectKind(t *testing.T) {
	tests := map[string]Kind{
		"model.tosa":  KindTOSA,
		"model.TOSA1": KindTOSA,
		"graph.pb":    KindTOSA,
		"model.yaml":  KindProgram,
		"model.yml":   KindProgram,
		"model.zmf":   KindZMF,
	}
	for path, want := range tests {
		got, err := DetectKind(path)
		if err != nil {
			t.Errorf("DetectKind(%q) returned an error: %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("DetectKind(%q) = %q, want %q", path, got, want)
		}
	}
	if _, err := DetectKind("model.onnx"); err == nil {
		t.Error("DetectKind accepted an unknown extension")
	}
}

func TestInspectErrors(t *testing.T) {
	var out bytes.Buffer
	if err := Inspect(&out, "onnx", "model.onnx"); err == nil {
		t.Error("Inspect accepted an unknown kind")
	}
	err := InspectTOSA(&out, filepath.Join(t.TempDir(), "missing.tosa"))
	if err == nil {
		t.Fatal("InspectTOSA accepted a missing file")
	}
	if !strings.Contains(err.Error(), "failed to read TOSA graph") {
		t.Errorf("Unexpected error message: %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Error does not wrap fs.ErrNotExist: %v", err)
	}
}
