package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/machine-dialect/compiler/bytecode"
)

// ModuleCache persists compiled bytecode.Module artifacts on disk, keyed
// by their content-addressed BuildID (bytecode.Module.Serialize computes
// one via uuid.NewSHA1), so identical modules share one cache entry. The
// ID is derived from the serialized bytes, so it is known only after a
// module has been compiled and serialized.
type ModuleCache struct {
	Dir string
}

// NewModuleCache returns a cache rooted at cfg's configured vm.cache_dir,
// resolved relative to cfg.Dir.
func NewModuleCache(cfg *Config) *ModuleCache {
	dir := cfg.VM.CacheDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.Dir, dir)
	}
	return &ModuleCache{Dir: dir}
}

func (c *ModuleCache) path(id uuid.UUID) string {
	return filepath.Join(c.Dir, id.String()+".mdmod")
}

// Lookup returns the cached module for id, or ok=false if not present.
func (c *ModuleCache) Lookup(id uuid.UUID) (*bytecode.Module, bool) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		return nil, false
	}
	m, err := bytecode.Deserialize(data)
	if err != nil {
		return nil, false
	}
	return m, true
}

// Store serializes m and writes it under its own BuildID, computing the
// ID as a side effect of Serialize.
func (c *ModuleCache) Store(m *bytecode.Module) error {
	data, err := m.Serialize()
	if err != nil {
		return fmt.Errorf("config: cache store: %w", err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("config: cache store: %w", err)
	}
	return os.WriteFile(c.path(m.BuildID), data, 0o644)
}
