// Package config loads and validates telemetry configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the full telemetry configuration for one bot process.
type Config struct {
	// Enabled turns the whole telemetry layer on. When false every
	// collector method is a no-op.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DataDir is the root of the on-disk schema shared with readers.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// Compress gzips newly written record files. Snapshot documents keep
	// their fixed plain names.
	Compress bool `mapstructure:"compress" yaml:"compress"`
	// GuardWriter takes an advisory lock under DataDir so a second writer
	// started by mistake fails fast.
	GuardWriter bool `mapstructure:"guard_writer" yaml:"guard_writer"`

	PersistInterval  time.Duration `mapstructure:"persist_interval" yaml:"persist_interval"`
	RotationInterval time.Duration `mapstructure:"rotation_interval" yaml:"rotation_interval"`

	Buffers   BufferConfig    `mapstructure:"buffers" yaml:"buffers"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// BufferConfig sizes the in-memory ring buffers and stats windows.
type BufferConfig struct {
	Window  int `mapstructure:"window" yaml:"window"`
	Events  int `mapstructure:"events" yaml:"events"`
	Signals int `mapstructure:"signals" yaml:"signals"`
	Cycles  int `mapstructure:"cycles" yaml:"cycles"`
	Errors  int `mapstructure:"errors" yaml:"errors"`
}

// RetentionConfig bounds on-disk record history per category.
type RetentionConfig struct {
	MaxSignals  int  `mapstructure:"max_signals" yaml:"max_signals"`
	MaxCycles   int  `mapstructure:"max_cycles" yaml:"max_cycles"`
	MaxErrors   int  `mapstructure:"max_errors" yaml:"max_errors"`
	CompressOld bool `mapstructure:"compress_old" yaml:"compress_old"`
}

// TracingConfig configures the optional OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// Default returns the stock configuration: telemetry on, spec defaults for
// every policy knob.
func Default() Config {
	return Config{
		Enabled:          true,
		DataDir:          "telemetry_data",
		PersistInterval:  5 * time.Minute,
		RotationInterval: 10 * time.Minute,
		Buffers: BufferConfig{
			Window:  1000,
			Events:  1000,
			Signals: 500,
			Cycles:  100,
			Errors:  200,
		},
		Retention: RetentionConfig{
			MaxSignals:  500,
			MaxCycles:   200,
			MaxErrors:   200,
			CompressOld: true,
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
	}
}

// Validate checks invariants and prints warnings for suspicious but legal
// settings.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.PersistInterval < 0 {
		return fmt.Errorf("persist_interval must not be negative")
	}
	for name, v := range map[string]int{
		"buffers.events":  c.Buffers.Events,
		"buffers.signals": c.Buffers.Signals,
		"buffers.cycles":  c.Buffers.Cycles,
		"buffers.errors":  c.Buffers.Errors,
		"buffers.window":  c.Buffers.Window,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate)
	}

	if c.PersistInterval > 0 && c.PersistInterval < time.Second {
		fmt.Fprintln(os.Stderr, "WARNING: persist_interval under 1s will write snapshots nearly every cycle; expect heavy disk churn.")
	}
	if c.Tracing.Enabled && c.Tracing.Insecure {
		fmt.Fprintln(os.Stderr, "WARNING: tracing exporter TLS verification is disabled (insecure: true). Use only in development environments.")
	}
	return nil
}
