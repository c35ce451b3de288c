package quantizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/ztosa/pkg/graph"
)

func TestPreset(t *testing.T) {
	cfg, err := Preset("")
	require.NoError(t, err)
	assert.Equal(t, SymmetricInt8(), cfg)

	cfg, err = Preset("affine-int8")
	require.NoError(t, err)
	assert.Equal(t, int64(-128), cfg.InputActivation.QuantMin)
	assert.False(t, cfg.InputActivation.Symmetric)
	assert.True(t, cfg.Weight.Symmetric)

	_, err = Preset("int4")
	assert.ErrorContains(t, err, `unknown quantization preset "int4"`)
}

func TestParams(t *testing.T) {
	symmetric := SymmetricInt8().InputActivation
	affine := AffineInt8().InputActivation
	unsigned := &graph.QuantizationSpec{Dtype: "uint8", QuantMin: 0, QuantMax: 255, Symmetric: true}

	tests := []struct {
		name      string
		q         *graph.QuantizationSpec
		lo, hi    float64
		scale     float64
		zeroPoint int64
	}{
		{name: "symmetric", q: symmetric, lo: -2, hi: 1, scale: 2.0 / 127, zeroPoint: 0},
		{name: "symmetric positive range", q: symmetric, lo: 0.5, hi: 4, scale: 4.0 / 127, zeroPoint: 0},
		{name: "affine", q: affine, lo: -1, hi: 3, scale: 4.0 / 255, zeroPoint: -64},
		{name: "affine widened to zero", q: affine, lo: 1, hi: 2, scale: 2.0 / 255, zeroPoint: -128},
		{name: "degenerate", q: affine, lo: 0, hi: 0, scale: minScale, zeroPoint: -128},
		{name: "unsigned symmetric", q: unsigned, lo: -1, hi: 1, scale: 1.0 / 127.5, zeroPoint: 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scale, zp, err := Params(tt.q, tt.lo, tt.hi)
			require.NoError(t, err)
			assert.InDelta(t, tt.scale, scale, 1e-12)
			assert.Equal(t, tt.zeroPoint, zp)
		})
	}
}

func TestParamsRejects(t *testing.T) {
	_, _, err := Params(&graph.QuantizationSpec{QuantMin: 5, QuantMax: 5}, 0, 1)
	assert.ErrorContains(t, err, "empty quantization range")

	_, _, err = Params(SymmetricInt8().InputActivation, 2, 1)
	assert.ErrorContains(t, err, "invalid observed range")
}
