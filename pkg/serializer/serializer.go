// Package serializer selects the wire dialect for a TOSA spec.
package serializer

import (
	"fmt"

	"github.com/zerfoo/ztosa/pkg/serializer/v0"
	"github.com/zerfoo/ztosa/pkg/serializer/v1"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Backend writes and reads graphs in one wire dialect.
type Backend interface {
	// Spec is the spec the backend was selected for.
	Spec() tosa.Spec
	// NewGraph returns an empty accumulator stamped with the dialect's
	// wire version.
	NewGraph() *tosa.Graph
	Marshal(g *tosa.Graph) ([]byte, error)
	Unmarshal(data []byte) (*tosa.Graph, error)
}

// ForSpec returns the backend for spec.
func ForSpec(spec tosa.Spec) (Backend, error) {
	switch s := spec.(type) {
	case tosa.SpecV0:
		return v0.New(s), nil
	case tosa.SpecV1:
		return v1.New(s), nil
	case nil:
		return nil, &tosa.UnsupportedSpecError{Spec: "<nil>"}
	}
	return nil, &tosa.UnsupportedSpecError{Spec: spec.String(), Reason: fmt.Sprintf("no serializer for %T", spec)}
}

// Dialect names a wire format.
type Dialect string

const (
	DialectV0 Dialect = "TOSA 0.80 (protobuf)"
	DialectV1 Dialect = "TOSA 1.0 (flatbuffer)"
)

// Detect reports which dialect data is written in. Only 1.0 graphs carry a
// file identifier; anything else is assumed to be 0.80.
func Detect(data []byte) Dialect {
	if v1.HasIdentifier(data) {
		return DialectV1
	}
	return DialectV0
}

// Decode reads a graph in whichever dialect data uses.
func Decode(data []byte) (*tosa.Graph, Dialect, error) {
	d := Detect(data)
	var (
		g   *tosa.Graph
		err error
	)
	switch d {
	case DialectV1:
		g, err = v1.Unmarshal(data)
	default:
		g, err = v0.Unmarshal(data)
	}
	return g, d, err
}
