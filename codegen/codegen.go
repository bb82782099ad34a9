// Package codegen lowers mir.Module into a bytecode.Module: block
// linearisation, phi elimination via predecessor-side copies, local-slot
// assignment, and jump-offset patching, in a generate-then-patch,
// chunk-builder style.
package codegen

import (
	"fmt"
	"sort"

	"github.com/machine-dialect/compiler/bytecode"
	"github.com/machine-dialect/compiler/mir"
)

// Module compiles every function of mod into a bytecode.Module.
func Module(mod *mir.Module, name string) (*bytecode.Module, error) {
	out := bytecode.NewModule(name)

	names := make([]string, 0, len(mod.Functions))
	for n := range mod.Functions {
		names = append(names, n)
	}
	sort.Strings(names)

	calleeOf := map[string]uint16{}
	base := bytecode.FunctionCalleeBase()
	for i, n := range names {
		calleeOf[n] = base + uint16(i)
	}

	for _, n := range names {
		fn := mod.Functions[n]
		chunk, err := compileFunction(out, fn, calleeOf)
		if err != nil {
			return nil, fmt.Errorf("codegen: function %q: %w", n, err)
		}
		out.Functions = append(out.Functions, chunk)
		if mod.Public[n] {
			nameIdx := out.InternString(n)
			constIdx := out.AddConstant(bytecode.Constant{Tag: bytecode.ConstFunctionRef, FuncIdx: calleeOf[n] - base})
			out.Globals = append(out.Globals, bytecode.GlobalEntry{NameIdx: nameIdx, ConstIdx: constIdx})
		}
	}

	main, err := compileFunction(out, mod.Main, calleeOf)
	if err != nil {
		return nil, fmt.Errorf("codegen: main: %w", err)
	}
	out.Main = main

	return out, nil
}

// fnGen holds the per-function codegen state: its emerging chunk, local
// slot assignments, and pending forward-jump patches.
type fnGen struct {
	mod      *bytecode.Module
	chunk    *bytecode.Chunk
	calleeOf map[string]uint16
	slots    map[string]uint16
	pending  []pendingJump
	// trampolines holds one entry per conditional-jump edge whose direct
	// target has a Phi fed by that edge: a dedicated block compiled after
	// every ordinary block, holding just that edge's phi-resolution copies
	// followed by an unconditional jump to the real target. Needed because
	// JUMP_IF_FALSE's not-taken path must never execute the taken path's
	// copies (and vice versa) — splitting the critical edge is the only way
	// to give each branch its own copy sequence. See resolveEdgeTarget.
	trampolines []*trampolineReq
}

type pendingJump struct {
	pc     int
	target *mir.BasicBlock
}

type trampolineReq struct {
	block  *mir.BasicBlock // synthetic identity used as a pending-jump target
	pred   *mir.BasicBlock // the real predecessor, for phi-edge matching
	target *mir.BasicBlock // the real block to land on after the copies
}

func compileFunction(mod *bytecode.Module, fn *mir.Function, calleeOf map[string]uint16) (*bytecode.Chunk, error) {
	c := bytecode.NewChunk(fn.Name, uint8(len(fn.Params)), 0)
	g := &fnGen{mod: mod, chunk: c, calleeOf: calleeOf, slots: map[string]uint16{}}

	for _, p := range fn.Params {
		g.slotFor(p)
	}

	order := linearize(fn.CFG)
	blockStart := make(map[*mir.BasicBlock]int, len(order))

	for i, b := range order {
		blockStart[b] = len(c.Code)
		g.compileBlock(b, next(order, i))
	}

	for _, t := range g.trampolines {
		blockStart[t.block] = len(c.Code)
		g.emitPhiCopies(t.pred, t.target)
		pc := c.EmitI16(bytecode.OpJump, 0, 0, 0)
		g.pending = append(g.pending, pendingJump{pc: pc, target: t.target})
	}

	for _, pj := range g.pending {
		target, ok := blockStart[pj.target]
		if !ok {
			return nil, fmt.Errorf("jump to unlinearised block %s", pj.target.Label)
		}
		op := bytecode.Op(c.Code[pj.pc])
		offset := int16(target - (pj.pc + bytecode.InstructionSize(op)))
		c.PatchI16(pj.pc, offset)
	}

	c.Locals = uint16(len(g.slots))
	return c, nil
}

func next(order []*mir.BasicBlock, i int) *mir.BasicBlock {
	if i+1 < len(order) {
		return order[i+1]
	}
	return nil
}

// linearize returns fn's blocks in reverse-postorder from the entry, a
// layout that makes most structured If/ternary control flow fall through
// without an explicit jump.
func linearize(cfg *mir.CFG) []*mir.BasicBlock {
	visited := map[*mir.BasicBlock]bool{}
	var postorder []*mir.BasicBlock
	var visit func(b *mir.BasicBlock)
	visit = func(b *mir.BasicBlock) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		postorder = append(postorder, b)
	}
	visit(cfg.Entry)
	rpo := make([]*mir.BasicBlock, 0, len(cfg.Blocks))
	for i := len(postorder) - 1; i >= 0; i-- {
		rpo = append(rpo, postorder[i])
	}
	// Any block unreachable from Entry (shouldn't survive DCE, but codegen
	// must still emit something for it rather than silently drop code) is
	// appended at the end in its original registration order.
	for _, b := range cfg.Blocks {
		if visited[b] {
			continue
		}
		postorder = postorder[:0]
		visit(b)
		for i := len(postorder) - 1; i >= 0; i-- {
			rpo = append(rpo, postorder[i])
		}
	}
	return rpo
}

func (g *fnGen) slotFor(v mir.Value) uint16 {
	key := slotKey(v)
	if s, ok := g.slots[key]; ok {
		return s
	}
	s := uint16(len(g.slots))
	g.slots[key] = s
	return s
}

func slotKey(v mir.Value) string {
	switch val := v.(type) {
	case mir.Variable:
		return "var:" + val.Name
	case mir.Temp:
		return fmt.Sprintf("tmp:%d", val.ID)
	default:
		return v.String()
	}
}
