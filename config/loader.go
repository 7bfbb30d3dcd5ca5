package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides: TICKERBEAT_DATA_DIR,
// TICKERBEAT_PERSIST_INTERVAL, TICKERBEAT_TRACING_ENDPOINT, and so on.
const EnvPrefix = "TICKERBEAT"

// Load reads configuration from an optional YAML file, applies environment
// overrides, and validates the result. An empty path loads defaults plus
// environment only.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command-line overrides layered on top. Flags
// are bound by viper key name ("data_dir", "tracing.endpoint"); a flag the
// user changed outranks both the file and the environment.
func LoadWithFlags(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every default so AutomaticEnv can override keys
// that never appear in a config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("enabled", cfg.Enabled)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("compress", cfg.Compress)
	v.SetDefault("guard_writer", cfg.GuardWriter)
	v.SetDefault("persist_interval", cfg.PersistInterval)
	v.SetDefault("rotation_interval", cfg.RotationInterval)
	v.SetDefault("buffers.window", cfg.Buffers.Window)
	v.SetDefault("buffers.events", cfg.Buffers.Events)
	v.SetDefault("buffers.signals", cfg.Buffers.Signals)
	v.SetDefault("buffers.cycles", cfg.Buffers.Cycles)
	v.SetDefault("buffers.errors", cfg.Buffers.Errors)
	v.SetDefault("retention.max_signals", cfg.Retention.MaxSignals)
	v.SetDefault("retention.max_cycles", cfg.Retention.MaxCycles)
	v.SetDefault("retention.max_errors", cfg.Retention.MaxErrors)
	v.SetDefault("retention.compress_old", cfg.Retention.CompressOld)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.protocol", cfg.Tracing.Protocol)
	v.SetDefault("tracing.insecure", cfg.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
}

// example is the commented YAML written by "telemetryctl init-config".
// Durations accept Go syntax ("5m", "90s").
type example struct {
	Enabled          bool            `yaml:"enabled"`
	DataDir          string          `yaml:"data_dir"`
	Compress         bool            `yaml:"compress"`
	GuardWriter      bool            `yaml:"guard_writer"`
	PersistInterval  string          `yaml:"persist_interval"`
	RotationInterval string          `yaml:"rotation_interval"`
	Buffers          BufferConfig    `yaml:"buffers"`
	Retention        RetentionConfig `yaml:"retention"`
	Tracing          TracingConfig   `yaml:"tracing"`
}

// Example renders the default configuration as YAML.
func Example() ([]byte, error) {
	cfg := Default()
	out, err := yaml.Marshal(&example{
		Enabled:          cfg.Enabled,
		DataDir:          cfg.DataDir,
		Compress:         cfg.Compress,
		GuardWriter:      cfg.GuardWriter,
		PersistInterval:  cfg.PersistInterval.String(),
		RotationInterval: cfg.RotationInterval.String(),
		Buffers:          cfg.Buffers,
		Retention:        cfg.Retention,
		Tracing:          cfg.Tracing,
	})
	if err != nil {
		return nil, err
	}
	header := "# tickerbeat telemetry configuration\n" +
		"# Environment variables prefixed " + EnvPrefix + "_ override any key\n" +
		"# (dots become underscores: " + EnvPrefix + "_TRACING_ENDPOINT).\n"
	return append([]byte(header), out...), nil
}
