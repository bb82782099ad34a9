// Package config handles machine-dialect.toml compiler configuration:
// optimisation level, VM call-stack depth, and tracing — grounded on
// manifest/manifest.go's toml.Unmarshal-based Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/machine-dialect/compiler/optimize"
)

// Config is a project's compiler defaults.
type Config struct {
	Optimize Optimize `toml:"optimize"`
	VM       VM       `toml:"vm"`

	// Dir is the directory containing the loaded file (set at load time).
	Dir string `toml:"-"`
}

// Optimize configures the optimizer pipeline.
type Optimize struct {
	Level string `toml:"level"` // "none" | "basic" | "aggressive"
}

// VM configures the executing virtual machine.
type VM struct {
	StackDepth int  `toml:"stack_depth"`
	Trace      bool `toml:"trace"`
	CacheDir   string `toml:"cache_dir"`
}

// Default returns the compiler's built-in defaults, used when no
// machine-dialect.toml is present.
func Default() *Config {
	return &Config{
		Optimize: Optimize{Level: "basic"},
		VM:       VM{StackDepth: 1024, Trace: false, CacheDir: ".md-cache"},
	}
}

// Load parses machine-dialect.toml from dir, falling back to Default if
// the file doesn't exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "machine-dialect.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c := Default()
		c.Dir = dir
		applyEnvOverrides(c)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	applyEnvOverrides(c)
	return c, nil
}

// applyEnvOverrides lets MD_VM_STACK override vm.stack_depth without
// editing the project file, e.g. for a one-off deep-recursion debugging
// session.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("MD_VM_STACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.VM.StackDepth = n
		}
	}
}

// OptimizeLevel resolves the configured optimize.level string to an
// optimize.Level, defaulting to LevelBasic on an unrecognised value.
func (c *Config) OptimizeLevel() optimize.Level {
	switch c.Optimize.Level {
	case "none":
		return optimize.LevelNone
	case "aggressive":
		return optimize.LevelAggressive
	default:
		return optimize.LevelBasic
	}
}
