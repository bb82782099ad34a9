package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/machine-dialect/compiler/optimize"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[optimize]
level = "aggressive"

[vm]
stack_depth = 2048
trace = true
cache_dir = "build/cache"
`
	if err := os.WriteFile(filepath.Join(dir, "machine-dialect.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Optimize.Level != "aggressive" {
		t.Errorf("optimize level = %q, want aggressive", c.Optimize.Level)
	}
	if c.VM.StackDepth != 2048 {
		t.Errorf("vm stack_depth = %d, want 2048", c.VM.StackDepth)
	}
	if !c.VM.Trace {
		t.Error("vm trace = false, want true")
	}
	if c.OptimizeLevel() != optimize.LevelAggressive {
		t.Errorf("OptimizeLevel() = %v, want LevelAggressive", c.OptimizeLevel())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.VM.StackDepth != 1024 {
		t.Errorf("default stack_depth = %d, want 1024", c.VM.StackDepth)
	}
	if c.OptimizeLevel() != optimize.LevelBasic {
		t.Errorf("default OptimizeLevel() = %v, want LevelBasic", c.OptimizeLevel())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MD_VM_STACK", "256")
	dir := t.TempDir()
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.VM.StackDepth != 256 {
		t.Errorf("stack_depth = %d, want 256 (from MD_VM_STACK)", c.VM.StackDepth)
	}
}

// TestConfigRoundTripsWithAlternateParser cross-checks BurntSushi/toml's
// decoding against go-toml/v2's independent implementation, catching a
// struct-tag mistake that happened to parse correctly under only one of
// the two parsers.
func TestConfigRoundTripsWithAlternateParser(t *testing.T) {
	want := Default()
	want.Optimize.Level = "aggressive"
	want.VM.StackDepth = 4096

	encoded, err := gotoml.Marshal(want)
	if err != nil {
		t.Fatalf("go-toml marshal: %v", err)
	}

	var got Config
	if err := toml.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("BurntSushi/toml unmarshal: %v", err)
	}
	if got.Optimize.Level != want.Optimize.Level {
		t.Errorf("optimize level = %q, want %q", got.Optimize.Level, want.Optimize.Level)
	}
	if got.VM.StackDepth != want.VM.StackDepth {
		t.Errorf("stack_depth = %d, want %d", got.VM.StackDepth, want.VM.StackDepth)
	}
}
