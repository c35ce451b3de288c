// Package config loads ztosa settings from a YAML file and the environment.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/zerfoo/ztosa/pkg/quantizer"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

// Environment variables that override the file.
const (
	EnvSpec     = "ZTOSA_SPEC"
	EnvLogLevel = "ZTOSA_LOG_LEVEL"
	EnvLogFile  = "ZTOSA_LOG_FILE"
)

// Config holds the settings shared by all commands.
type Config struct {
	// Specs are the TOSA specs to lower for, e.g. "TOSA-1.0+INT+FP".
	Specs    []string `yaml:"specs,flow"`
	LogLevel string   `yaml:"log_level"`
	LogFile  string   `yaml:"log_file"`
	// Quantization selects a preset ("symmetric-int8", "affine-int8"), or
	// Quantizer spells out the specs.
	Quantization string            `yaml:"quantization"`
	Quantizer    *quantizer.Config `yaml:"quantizer,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Specs:        []string{"TOSA-1.0+INT+FP"},
		LogLevel:     "info",
		LogFile:      "ztosa.log",
		Quantization: "symmetric-int8",
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSpec); ok && v != "" {
		c.Specs = strings.Split(v, ",")
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.LogFile = v
	}
}

// Validate checks that every spec and the log level parse.
func (c *Config) Validate() error {
	if _, err := c.ParseSpecs(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if c.Quantizer == nil {
		if _, err := quantizer.Preset(c.Quantization); err != nil {
			return err
		}
	}
	return nil
}

// ParseSpecs parses the configured specs.
func (c *Config) ParseSpecs() ([]tosa.Spec, error) {
	if len(c.Specs) == 0 {
		return nil, errors.New("no TOSA spec configured")
	}
	specs := make([]tosa.Spec, 0, len(c.Specs))
	for _, s := range c.Specs {
		spec, err := tosa.ParseSpec(s)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// QuantizerConfig returns the explicit quantizer specs or the named preset.
func (c *Config) QuantizerConfig() (*quantizer.Config, error) {
	if c.Quantizer != nil {
		return c.Quantizer, nil
	}
	return quantizer.Preset(c.Quantization)
}
