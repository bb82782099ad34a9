// Package mdpipeline wires the full source-to-result pipeline — lexing
// through parsing, desugaring, lowering, optimisation, code generation,
// and execution — behind two calls: Compile and Run.
package mdpipeline

import (
	"fmt"

	"github.com/machine-dialect/compiler/bytecode"
	"github.com/machine-dialect/compiler/codegen"
	"github.com/machine-dialect/compiler/config"
	"github.com/machine-dialect/compiler/diagnostics"
	"github.com/machine-dialect/compiler/hir"
	"github.com/machine-dialect/compiler/lower"
	"github.com/machine-dialect/compiler/optimize"
	"github.com/machine-dialect/compiler/parser"
	"github.com/machine-dialect/compiler/vm"
)

// CompileOptions configures a single Compile call.
type CompileOptions struct {
	// ModuleName is stamped into the resulting bytecode.Module.
	ModuleName string
	// Level selects the optimisation pipeline; its zero value is
	// LevelNone. Ignored when Config is non-nil.
	Level optimize.Level
	// Config, if non-nil, supplies Level via Config.OptimizeLevel() and is
	// consulted ahead of the Level field.
	Config *config.Config
}

// RunOptions configures a single Run call.
type RunOptions struct {
	// MaxDepth overrides the VM's call-stack depth limit; 0 keeps
	// vm.DefaultMaxDepth, or config.Config.VM.StackDepth when Config is set.
	MaxDepth int
	Config   *config.Config
}

// Result is a program's output: its final expression value plus the
// compile-time diagnostics. A runtime failure is not added to Diagnostics;
// Run and CompileAndRun return it as their error.
type Result struct {
	Value       vm.Value
	Diagnostics []diagnostics.Diagnostic
}

// Compile runs source through lex/parse/desugar/lower/optimize/codegen and
// returns the resulting bytecode.Module. Compilation stops, returning a
// nil module and no error, the moment the diagnostic sink holds an error —
// callers should check diags for errors before treating a nil module as
// unexpected.
func Compile(source string, opts CompileOptions) (*bytecode.Module, []diagnostics.Diagnostic, error) {
	sink := diagnostics.NewSink("", source)
	p := parser.New(source, sink)
	prog := p.ParseProgram()
	diags := sink.All()
	if sink.HasErrors() {
		return nil, diags, nil
	}

	hirProg := hir.Desugar(prog)
	mod := lower.LowerProgram(hirProg)

	level := opts.Level
	if opts.Config != nil {
		level = opts.Config.OptimizeLevel()
	}
	mod = optimize.Module(mod, level)

	name := opts.ModuleName
	if name == "" {
		name = "main"
	}
	bcMod, err := codegen.Module(mod, name)
	if err != nil {
		return nil, diags, fmt.Errorf("mdpipeline: codegen: %w", err)
	}
	optimize.Peephole(bcMod)

	return bcMod, diags, nil
}

// Run executes a compiled module and returns its final value.
func Run(module *bytecode.Module, opts RunOptions) (Result, error) {
	machine := vm.NewVM(module)
	switch {
	case opts.MaxDepth > 0:
		machine.MaxDepth = opts.MaxDepth
	case opts.Config != nil && opts.Config.VM.StackDepth > 0:
		machine.MaxDepth = opts.Config.VM.StackDepth
	}

	val, err := machine.Run()
	if err != nil {
		return Result{}, fmt.Errorf("mdpipeline: run: %w", err)
	}
	return Result{Value: val}, nil
}

// CompileAndRun compiles source and, if compilation produced no errors,
// runs it — the single call a simple embedder needs.
func CompileAndRun(source string, compileOpts CompileOptions, runOpts RunOptions) (Result, error) {
	module, diags, err := Compile(source, compileOpts)
	if err != nil {
		return Result{Diagnostics: diags}, err
	}
	if module == nil {
		return Result{Diagnostics: diags}, nil
	}
	res, err := Run(module, runOpts)
	res.Diagnostics = diags
	return res, err
}
