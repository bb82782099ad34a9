// Package optimize implements the MIR/bytecode optimisation pipeline:
// constant folding and dead-code elimination at Basic and Aggressive,
// jump threading at Aggressive only, and a bytecode peephole pass
// (Peephole) that mdpipeline.Compile runs at every level, LevelNone
// included.
package optimize

import (
	"github.com/machine-dialect/compiler/mir"
)

// Level is the compiler's optimisation level, set via the ambient config.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelAggressive
)

// Module runs the opt-level-appropriate pass pipeline over mod's MIR in
// place and returns it for chaining.
func Module(mod *mir.Module, level Level) *mir.Module {
	if level == LevelNone {
		return mod
	}
	fns := make([]*mir.Function, 0, len(mod.Functions)+1)
	fns = append(fns, mod.Main)
	for _, fn := range mod.Functions {
		fns = append(fns, fn)
	}
	for _, fn := range fns {
		ConstantFold(fn)
		EliminateDeadCode(fn)
		if level >= LevelAggressive {
			ThreadJumps(fn)
			// A second DCE pass picks up instructions that became dead
			// only after jump threading removed their consuming block.
			EliminateDeadCode(fn)
		}
	}
	return mod
}
