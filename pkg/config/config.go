// Package config provides configuration loading and management for
// ifureduce. It handles loading configuration from YAML files and
// provides calibrated default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the pipeline configuration loaded from YAML.
type Config struct {
	// Pipeline parameters
	Pipeline struct {
		// TemplatePrefix is the path prefix of the bias template
		// calibration files; binning and detector id are appended.
		TemplatePrefix string `yaml:"templatePrefix"`

		// RegionFile optionally overrides the built-in pseudo-slit
		// footprint table with a DS9 region file.
		RegionFile string `yaml:"regionFile"`

		// FlatFile is the normalized flat product to divide by.
		// Empty disables flat fielding.
		FlatFile string `yaml:"flatFile"`

		// ShiftFlat allows sub-pixel registration of the flat.
		ShiftFlat bool `yaml:"shiftFlat"`

		// SmoothExpand blends interior slitlet rows during image
		// reconstruction instead of replicating them.
		SmoothExpand bool `yaml:"smoothExpand"`

		// Workers is the number of exposures reduced concurrently.
		Workers int `yaml:"workers"`
	} `yaml:"pipeline"`

	// Registration parameters
	Registration struct {
		// Step is the cross-correlation resampling step in pixels.
		Step float64 `yaml:"step"`

		// Detrend subtracts a sigma-clipped baseline before
		// correlating.
		Detrend bool `yaml:"detrend"`

		// FitOrder is the order of the detrending polynomial.
		FitOrder int `yaml:"fitOrder"`

		// Iterations is the sigma-clipping iteration count.
		Iterations int `yaml:"iterations"`

		// HighNsig and LowNsig bound the clipping window.
		HighNsig float64 `yaml:"highNsig"`
		LowNsig  float64 `yaml:"lowNsig"`

		// ReferenceRow is the slitlet row used for the headline
		// shift measurement.
		ReferenceRow int `yaml:"referenceRow"`

		// StabilityThreshold is the maximum row-to-row shift
		// deviation, in pixels, for the shift to be trusted.
		StabilityThreshold float64 `yaml:"stabilityThreshold"`
	} `yaml:"registration"`

	// Output parameters
	Output struct {
		// Overwrite allows replacing existing output files.
		Overwrite bool `yaml:"overwrite"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with calibrated default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Pipeline.TemplatePrefix = "bias_template"
	cfg.Pipeline.ShiftFlat = true
	cfg.Pipeline.SmoothExpand = false
	cfg.Pipeline.Workers = runtime.NumCPU()

	cfg.Registration.Step = 0.01
	cfg.Registration.Detrend = false
	cfg.Registration.FitOrder = 1
	cfg.Registration.Iterations = 3
	cfg.Registration.HighNsig = 3.0
	cfg.Registration.LowNsig = 3.0
	cfg.Registration.ReferenceRow = 9
	cfg.Registration.StabilityThreshold = 0.3

	cfg.Output.Overwrite = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
