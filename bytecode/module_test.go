package bytecode_test

import (
	"testing"

	"github.com/machine-dialect/compiler/bytecode"
	"github.com/machine-dialect/compiler/mdpipeline"
)

// compileFixture compiles src with no optimisation so the resulting module
// has a predictable, non-trivial shape to round-trip.
func compileFixture(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	module, diags, err := mdpipeline.Compile(src, mdpipeline.CompileOptions{ModuleName: "roundtrip"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, d := range diags {
		if d.IsError() {
			t.Fatalf("unexpected compile error: %s", d.Message)
		}
	}
	if module == nil {
		t.Fatal("compile returned nil module")
	}
	return module
}

// TestSerializeDeserializeRoundTrip checks that encoding a module and
// decoding it back produces an identical name, string table, constant
// pool, globals, and main-chunk bytecode.
func TestSerializeDeserializeRoundTrip(t *testing.T) {
	module := compileFixture(t, `Set `+"`x`"+` to _2_ + _3_ * _4_. Say `+"`x`"+`. Give back `+"`x`"+`.`)

	encoded, err := module.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	decoded, err := bytecode.Deserialize(encoded)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if decoded.Name != module.Name {
		t.Errorf("name: got %q, want %q", decoded.Name, module.Name)
	}
	if len(decoded.StringTable) != len(module.StringTable) {
		t.Fatalf("string table length: got %d, want %d", len(decoded.StringTable), len(module.StringTable))
	}
	for i := range module.StringTable {
		if decoded.StringTable[i] != module.StringTable[i] {
			t.Errorf("string table[%d]: got %q, want %q", i, decoded.StringTable[i], module.StringTable[i])
		}
	}
	if len(decoded.Constants) != len(module.Constants) {
		t.Fatalf("constants length: got %d, want %d", len(decoded.Constants), len(module.Constants))
	}
	for i := range module.Constants {
		if decoded.Constants[i] != module.Constants[i] {
			t.Errorf("constant[%d]: got %+v, want %+v", i, decoded.Constants[i], module.Constants[i])
		}
	}
	if string(decoded.Main.Code) != string(module.Main.Code) {
		t.Errorf("main chunk code mismatch: got %v, want %v", decoded.Main.Code, module.Main.Code)
	}
	if decoded.Main.Arity != module.Main.Arity || decoded.Main.Locals != module.Main.Locals {
		t.Errorf("main chunk arity/locals mismatch: got (%d,%d), want (%d,%d)",
			decoded.Main.Arity, decoded.Main.Locals, module.Main.Arity, module.Main.Locals)
	}
}

// TestBuildIDIsContentAddressed checks that serializing the same source
// twice yields the same BuildID, and that a different program yields a
// different one.
func TestBuildIDIsContentAddressed(t *testing.T) {
	a := compileFixture(t, "Give back _1_ + _1_.")
	b := compileFixture(t, "Give back _1_ + _1_.")
	c := compileFixture(t, "Give back _2_ + _2_.")

	if _, err := a.Serialize(); err != nil {
		t.Fatalf("serialize a: %v", err)
	}
	if _, err := b.Serialize(); err != nil {
		t.Fatalf("serialize b: %v", err)
	}
	if _, err := c.Serialize(); err != nil {
		t.Fatalf("serialize c: %v", err)
	}

	if a.BuildID != b.BuildID {
		t.Errorf("identical source produced different BuildIDs: %v vs %v", a.BuildID, b.BuildID)
	}
	if a.BuildID == c.BuildID {
		t.Errorf("different source produced the same BuildID: %v", a.BuildID)
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	if _, err := bytecode.Deserialize([]byte{0, 1, 2, 3}); err == nil {
		t.Error("expected an error decoding a truncated/bad-magic buffer")
	}
}
