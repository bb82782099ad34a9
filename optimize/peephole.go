package optimize

import "github.com/machine-dialect/compiler/bytecode"

// Peephole runs local pattern cancellation over a chunk's final
// instruction stream. Dead instructions are first marked, then a single
// compaction pass rewrites
// Code/Lines and retargets every jump so its offset still points at the
// same logical instruction after compaction.
func Peephole(m *bytecode.Module) {
	peepholeChunk(m.Main)
	for _, fn := range m.Functions {
		peepholeChunk(fn)
	}
}

func peepholeChunk(c *bytecode.Chunk) {
	changed := true
	for changed {
		changed = markCancellations(c)
	}
}

// markCancellations marks every non-overlapping cancelling adjacent pair
// (and every zero-offset jump) in one scan and compacts them away,
// returning whether anything changed so the caller can iterate to a
// fixpoint (removing one pair can expose another, e.g. `NOT DUP POP NOT`).
func markCancellations(c *bytecode.Chunk) bool {
	pcs := instructionStarts(c)
	dead := make(map[int]bool, len(pcs))

	for idx := 0; idx+1 < len(pcs); idx++ {
		pc, next := pcs[idx], pcs[idx+1]
		if dead[pc] || dead[next] {
			continue
		}
		op := bytecode.Op(c.Code[pc])
		nextOp := bytecode.Op(c.Code[next])

		switch {
		// DUP immediately discarded: push-then-pop of the same value.
		case op == bytecode.OpDup && nextOp == bytecode.OpPop:
			dead[pc], dead[next] = true, true

		// A double logical negation cancels out.
		case op == bytecode.OpNot && nextOp == bytecode.OpNot:
			dead[pc], dead[next] = true, true

		// SWAP immediately undone by a second SWAP.
		case op == bytecode.OpSwap && nextOp == bytecode.OpSwap:
			dead[pc], dead[next] = true, true
		}
	}

	// An unconditional jump whose target is the very next instruction is a
	// no-op; drop it (its own offset must be 0, i.e. jump falls through).
	for _, pc := range pcs {
		if dead[pc] {
			continue
		}
		if bytecode.Op(c.Code[pc]) == bytecode.OpJump {
			offset := int16(uint16(c.Code[pc+1]) | uint16(c.Code[pc+2])<<8)
			if int(offset) == 0 {
				dead[pc] = true
			}
		}
	}

	if len(dead) == 0 {
		return false
	}
	compact(c, pcs, dead)
	return true
}

func instructionStarts(c *bytecode.Chunk) []int {
	var pcs []int
	pc := 0
	for pc < len(c.Code) {
		pcs = append(pcs, pc)
		pc += bytecode.InstructionSize(bytecode.Op(c.Code[pc]))
	}
	return pcs
}

// compact removes every dead instruction from c.Code, remaps jump operands
// to the new pc of their (possibly shifted) target instruction, and
// rebuilds c.Lines over the new, shorter code.
func compact(c *bytecode.Chunk, pcs []int, dead map[int]bool) {
	oldToNew := make(map[int]int, len(pcs))
	newCode := make([]byte, 0, len(c.Code))
	var newLines []bytecode.LineRun

	for _, pc := range pcs {
		if dead[pc] {
			continue
		}
		op := bytecode.Op(c.Code[pc])
		size := bytecode.InstructionSize(op)
		oldToNew[pc] = len(newCode)
		line, col := c.LineFor(pc)
		newStart := len(newCode)
		newCode = append(newCode, c.Code[pc:pc+size]...)
		newLines = appendLineRun(newLines, newStart, newStart+size, line, col)
	}
	// Every live pc now has a new home; a dead pc's jump (if any jumped
	// exactly onto a removed instruction start, which cannot happen for
	// the cancellation patterns above since both halves of a pair are
	// always adjacent and internal) is not a target we need to resolve.

	for _, pc := range pcs {
		if dead[pc] {
			continue
		}
		op := bytecode.Op(c.Code[pc])
		if op != bytecode.OpJump && op != bytecode.OpJumpIfFalse {
			continue
		}
		oldOffset := int16(uint16(c.Code[pc+1]) | uint16(c.Code[pc+2])<<8)
		oldTarget := pc + bytecode.InstructionSize(op) + int(oldOffset)
		newTarget := resolveNewPC(oldTarget, pcs, oldToNew)
		newPC := oldToNew[pc]
		newOffset := int16(newTarget - (newPC + bytecode.InstructionSize(op)))
		newCode[newPC+1] = byte(uint16(newOffset))
		newCode[newPC+2] = byte(uint16(newOffset) >> 8)
	}

	c.Code = newCode
	c.Lines = newLines
}

// resolveNewPC maps an old target pc (which may itself have been a removed
// instruction, e.g. a jump-to-jump collapsed by a prior iteration) forward
// to the nearest surviving instruction's new pc.
func resolveNewPC(oldTarget int, pcs []int, oldToNew map[int]int) int {
	if newPC, ok := oldToNew[oldTarget]; ok {
		return newPC
	}
	for _, pc := range pcs {
		if pc >= oldTarget {
			if newPC, ok := oldToNew[pc]; ok {
				return newPC
			}
		}
	}
	return len(oldToNew) // fell off the end: target was the chunk's end pc
}

func appendLineRun(lines []bytecode.LineRun, startPC, endPC, line, col int) []bytecode.LineRun {
	if n := len(lines); n > 0 {
		last := &lines[n-1]
		if last.Line == line && last.Column == col && last.EndPC == startPC {
			last.EndPC = endPC
			return lines
		}
	}
	return append(lines, bytecode.LineRun{StartPC: startPC, EndPC: endPC, Line: line, Column: col})
}
