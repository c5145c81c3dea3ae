package ie

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables that EnumReader, EnumConn, CatchBI, and the
// diagnostic sink consult instead of hard-coded constants, once installed
// with SetConfig.
type Config struct {
	ReadBufferSize   int `yaml:"read_buffer_size"`
	BacktrackCap     int `yaml:"backtrack_cap"`
	DiagnosticsLevel string `yaml:"diagnostics_level"`
}

// DefaultConfig matches the sizes and behavior this package used before
// Config existed: a 32KiB read buffer, no cap on CatchBI's backtrack
// buffer, and diagnostics left at the slog default.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:   32 * 1024,
		BacktrackCap:     0,
		DiagnosticsLevel: "",
	}
}

// activeConfig is the process-wide configuration EnumReader, EnumConn,
// CatchBI, and Diag's default sink consult. Tests and callers install a
// different one with SetConfig, the same way Diag's sink is swapped with
// SetDiag.
var activeConfig = DefaultConfig()

// ActiveConfig returns the configuration currently consulted by this
// package's domain builders.
func ActiveConfig() Config {
	return activeConfig
}

// SetConfig installs cfg as the active configuration, returning the
// previous one so callers can restore it. It also rebuilds the default
// diagnostic sink from cfg.DiagnosticsLevel, unless SetDiag has already
// installed an explicit override.
func SetConfig(cfg Config) (previous Config) {
	previous = activeConfig
	activeConfig = cfg
	if !diagOverridden {
		diagSink = buildDiagSink(cfg)
	}
	return
}

// readBufferSize is the buffer size EnumReader and EnumConn read into,
// falling back to DefaultConfig's size if activeConfig carries a
// non-positive one (e.g. a Config zero value installed directly).
func readBufferSize() int {
	if activeConfig.ReadBufferSize > 0 {
		return activeConfig.ReadBufferSize
	}
	return DefaultConfig().ReadBufferSize
}

// LoadConfig reads a Config from a YAML file at path, filling any field
// the file omits from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	var node yaml.Node
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&node); err != nil {
		return cfg, err
	}
	if err := node.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
