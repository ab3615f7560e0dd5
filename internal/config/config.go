// Package config loads the daemon configuration from YAML and checks it
// against a CUE schema, so a typo'd key or mistyped value fails at
// startup rather than surfacing as odd runtime behavior.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// DB is the path to the SQLite eventlog store.
	DB string `yaml:"db" json:"db"`
	// MetricsAddr is the listen address for the Prometheus scrape
	// endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

const schema = `
close({
	db:           string & !=""
	metrics_addr: string | *""
	log_level:    "debug" | "info" | "warn" | "error" | *"info"
})
`

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{LogLevel: "info"}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML config bytes against the schema.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	ctx := cuecontext.New()
	sch := ctx.CompileString(schema)
	if err := sch.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}
	val := sch.Unify(ctx.Encode(raw))
	if err := val.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	var cfg Config
	if err := val.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
