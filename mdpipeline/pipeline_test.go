package mdpipeline

import (
	"testing"

	"github.com/machine-dialect/compiler/optimize"
	"github.com/machine-dialect/compiler/vm"
)

// runAtLevel compiles and runs src at a single optimisation level, failing
// the test on any compile or runtime error.
func runAtLevel(t *testing.T, src string, level optimize.Level) vm.Value {
	t.Helper()
	module, diags, err := Compile(src, CompileOptions{ModuleName: "test", Level: level})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, d := range diags {
		if d.IsError() {
			t.Fatalf("unexpected compile error: %s", d.Message)
		}
	}
	if module == nil {
		t.Fatal("compile returned nil module with no reported error")
	}
	res, err := Run(module, RunOptions{})
	if err != nil {
		t.Fatalf("run at level %v: %v", level, err)
	}
	return res.Value
}

// allLevels runs src at every optimisation level and asserts every run
// produces check's expected value, the opt-level-equivalence oracle
// end-to-end scenarios call for.
func allLevels(t *testing.T, src string, check func(t *testing.T, v vm.Value)) {
	t.Helper()
	for _, level := range []optimize.Level{optimize.LevelNone, optimize.LevelBasic, optimize.LevelAggressive} {
		v := runAtLevel(t, src, level)
		check(t, v)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	src := "Set `x` to _2_ + _3_ * _4_. Give back `x`."
	allLevels(t, src, func(t *testing.T, v vm.Value) {
		if v.Kind != vm.KInt || v.I != 14 {
			t.Errorf("got %v, want Int 14", v)
		}
	})
}

func TestMixedTypeEquality(t *testing.T) {
	allLevels(t, "Give back _5_ equals _5.0_ .", func(t *testing.T, v vm.Value) {
		if v.Kind != vm.KBool || v.I == 0 {
			t.Errorf("got %v, want Bool true", v)
		}
	})
	allLevels(t, "Give back _5_ is strictly equal to _5.0_ .", func(t *testing.T, v vm.Value) {
		if v.Kind != vm.KBool || v.I != 0 {
			t.Errorf("got %v, want Bool false", v)
		}
	})
}

func TestIfElseWithPhi(t *testing.T) {
	src := "Set `x` to _15_.\n" +
		"If `x` is greater than _10_ then:\n" +
		"> Set `y` to _\"big\"_.\n" +
		"else:\n" +
		"> Set `y` to _\"small\"_.\n" +
		"Give back `y`."
	allLevels(t, src, func(t *testing.T, v vm.Value) {
		if v.Kind != vm.KString || v.S != "big" {
			t.Errorf("got %v, want String \"big\"", v)
		}
	})
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	src := "Give back _false_ and ( _1_ / _0_ equals _0_ )."
	allLevels(t, src, func(t *testing.T, v vm.Value) {
		if v.Kind != vm.KBool || v.I != 0 {
			t.Errorf("got %v, want Bool false (right side must not evaluate, or the division error would surface)", v)
		}
	})
}

// TestErrorRecoveryStillReturnsValue checks that a malformed statement is
// reported as a diagnostic but does not stop the rest of the program from
// compiling and returning a value.
func TestErrorRecoveryStillReturnsValue(t *testing.T) {
	src := "Set `x` to . Set `y` to _10_. Give back `y`."
	module, diags, err := Compile(src, CompileOptions{ModuleName: "test"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	sawError := false
	for _, d := range diags {
		if d.IsError() {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected at least one diagnostic for the malformed `Set` statement")
	}
	if module == nil {
		t.Skip("compiler treats this malformed statement as fatal rather than recoverable")
	}
	res, err := Run(module, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Value.Kind != vm.KInt || res.Value.I != 10 {
		t.Errorf("got %v, want Int 10", res.Value)
	}
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	module, diags, err := Compile("Give back _1_ / _0_.", CompileOptions{ModuleName: "test"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, d := range diags {
		if d.IsError() {
			t.Fatalf("unexpected compile error: %s", d.Message)
		}
	}
	if _, err := Run(module, RunOptions{}); err == nil {
		t.Error("expected a runtime division-by-zero error")
	}
}

func TestEmptyComparisons(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"Give back _empty_ equals _0_.", false},
		{"Give back _empty_ equals _false_.", false},
		{"Give back _empty_ equals _empty_.", true},
		{"Give back _empty_ is strictly equal to _empty_.", true},
	}
	for _, c := range cases {
		allLevels(t, c.src, func(t *testing.T, v vm.Value) {
			if v.Kind != vm.KBool || (v.I != 0) != c.want {
				t.Errorf("%q: got %v, want Bool %v", c.src, v, c.want)
			}
		})
	}
}

func TestCompileAndRun(t *testing.T) {
	res, err := CompileAndRun("Give back _1_ + _1_.", CompileOptions{ModuleName: "test"}, RunOptions{})
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if res.Value.Kind != vm.KInt || res.Value.I != 2 {
		t.Errorf("got %v, want Int 2", res.Value)
	}
}
