package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ztosa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	specs, err := cfg.ParseSpecs()
	require.NoError(t, err)
	assert.Equal(t, []tosa.Spec{tosa.SpecV1{INT: true, FP: true}}, specs)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
specs: [TOSA-0.80+BI, TOSA-1.0+INT]
log_level: debug
quantization: affine-int8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"TOSA-0.80+BI", "TOSA-1.0+INT"}, cfg.Specs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ztosa.log", cfg.LogFile)

	q, err := cfg.QuantizerConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(-128), q.InputActivation.QuantMin)
}

func TestLoadExplicitQuantizer(t *testing.T) {
	path := writeConfig(t, `
quantization: no-such-preset
quantizer:
  input_activation: {dtype: int16, quant_min: -32767, quant_max: 32767, symmetric: true}
  output_activation: {dtype: int16, quant_min: -32767, quant_max: 32767, symmetric: true}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	q, err := cfg.QuantizerConfig()
	require.NoError(t, err)
	assert.Equal(t, "int16", q.InputActivation.Dtype)
	assert.Nil(t, q.Weight)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "specs: [TOSA-1.0+FP]\nlog_level: warn\n")
	t.Setenv(EnvSpec, "TOSA-0.80+MI,TOSA-1.0+INT+FP")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFile, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"TOSA-0.80+MI", "TOSA-1.0+INT+FP"}, cfg.Specs)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "spec", body: "specs: [TOSA-2.0+INT]", want: "unsupported TOSA spec"},
		{name: "no specs", body: "specs: []", want: "no TOSA spec configured"},
		{name: "log level", body: "log_level: loud", want: "invalid log level"},
		{name: "preset", body: "quantization: int4", want: "unknown quantization preset"},
		{name: "syntax", body: "specs: [", want: "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
