// Package quantizer stamps quantization annotations onto exported graphs.
//
// Rules are plain functions registered by name in an immutable Registry. An
// Annotator runs the named rules over a graph with one Config; each rule
// claims the nodes it matches at most once.
package quantizer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zerfoo/ztosa/pkg/graph"
)

// Config holds the quantization specs a rule hands out.
type Config struct {
	InputActivation  *graph.QuantizationSpec `yaml:"input_activation"`
	OutputActivation *graph.QuantizationSpec `yaml:"output_activation"`
	Weight           *graph.QuantizationSpec `yaml:"weight,omitempty"`
	Bias             *graph.QuantizationSpec `yaml:"bias,omitempty"`
}

// SymmetricInt8 quantizes activations and weights to [-127, 127] with a zero
// point of 0.
func SymmetricInt8() *Config {
	act := &graph.QuantizationSpec{Dtype: "int8", QuantMin: -127, QuantMax: 127, Symmetric: true, Observer: "minmax"}
	return &Config{
		InputActivation:  act,
		OutputActivation: act,
		Weight:           act,
	}
}

// AffineInt8 quantizes activations to [-128, 127] with a zero point derived
// from the observed range, and weights symmetrically.
func AffineInt8() *Config {
	act := &graph.QuantizationSpec{Dtype: "int8", QuantMin: -128, QuantMax: 127, Observer: "minmax"}
	return &Config{
		InputActivation:  act,
		OutputActivation: act,
		Weight:           &graph.QuantizationSpec{Dtype: "int8", QuantMin: -127, QuantMax: 127, Symmetric: true, Observer: "minmax"},
	}
}

// Preset returns a named built-in configuration.
func Preset(name string) (*Config, error) {
	switch name {
	case "symmetric-int8", "":
		return SymmetricInt8(), nil
	case "affine-int8":
		return AffineInt8(), nil
	}
	return nil, errors.Errorf("unknown quantization preset %q", name)
}

// minScale keeps degenerate ranges from producing a zero scale.
const minScale = 1.1920928955078125e-07

// Params derives the scale and zero point that map the observed range
// [lo, hi] onto the spec's integer range. The range is widened to include 0
// so that zero is exactly representable.
func Params(q *graph.QuantizationSpec, lo, hi float64) (scale float64, zeroPoint int64, err error) {
	if q.QuantMax <= q.QuantMin {
		return 0, 0, errors.Errorf("empty quantization range [%d, %d]", q.QuantMin, q.QuantMax)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return 0, 0, errors.Errorf("invalid observed range [%v, %v]", lo, hi)
	}
	lo, hi = min(lo, 0), max(hi, 0)
	levels := float64(q.QuantMax - q.QuantMin)

	if q.Symmetric {
		scale = max(max(-lo, hi)/(levels/2), minScale)
		if q.QuantMin >= 0 {
			// Unsigned symmetric ranges centre on the middle code.
			zeroPoint = (q.QuantMin + q.QuantMax + 1) / 2
		}
		return scale, zeroPoint, nil
	}

	scale = max((hi-lo)/levels, minScale)
	zeroPoint = q.QuantMin - int64(math.Round(lo/scale))
	return scale, min(max(zeroPoint, q.QuantMin), q.QuantMax), nil
}
