package codegen

import (
	"fmt"

	"github.com/machine-dialect/compiler/bytecode"
	"github.com/machine-dialect/compiler/mir"
	"github.com/machine-dialect/compiler/token"
)

// compileBlock emits b's phis' predecessor-side resolution (handled by the
// block that jumps into b, not here), its straight-line instructions, and
// its terminator — omitting an unconditional Jump entirely when its
// target is the next block in layout order.
func (g *fnGen) compileBlock(b *mir.BasicBlock, fallthroughTo *mir.BasicBlock) {
	for _, instr := range b.Instructions {
		switch i := instr.(type) {
		case *mir.BinaryOp:
			g.loadValue(i.Left)
			g.loadValue(i.Right)
			g.chunk.Emit(binaryOp(i.Op), 0, 0)
			g.storeSlot(i.Dest)

		case *mir.UnaryOp:
			g.loadValue(i.Operand)
			g.chunk.Emit(unaryOp(i.Op), 0, 0)
			g.storeSlot(i.Dest)

		case *mir.Compare:
			g.loadValue(i.Left)
			g.loadValue(i.Right)
			g.chunk.Emit(compareOp(i.Op), 0, 0)
			g.storeSlot(i.Dest)

		case *mir.Copy:
			g.loadValue(i.Source)
			g.storeSlot(i.Dest)

		case *mir.LoadConst:
			g.emitConst(i.Const)
			g.storeSlot(i.Dest)

		case *mir.LoadVar:
			g.loadValue(i.Var)
			g.storeSlot(i.Dest)

		case *mir.StoreVar:
			g.loadValue(i.Source)
			g.storeSlot(i.Var)

		case *mir.Call:
			g.emitCall(i)

		case *mir.Print:
			g.loadValue(i.Value)
			g.chunk.Emit(bytecode.OpPrint, 0, 0)

		case *mir.Return:
			if i.Value != nil {
				g.loadValue(i.Value)
			}
			g.chunk.Emit(bytecode.OpReturn, 0, 0)

		case *mir.Jump:
			g.emitPhiCopies(b, i.Target)
			if i.Target != fallthroughTo {
				pc := g.chunk.EmitI16(bytecode.OpJump, 0, 0, 0)
				g.pending = append(g.pending, pendingJump{pc: pc, target: i.Target})
			}

		case *mir.CondJump:
			g.loadValue(i.Cond)
			falseTarget := g.resolveEdgeTarget(b, i.FalseTarget)
			falsePC := g.chunk.EmitI16(bytecode.OpJumpIfFalse, 0, 0, 0)
			g.pending = append(g.pending, pendingJump{pc: falsePC, target: falseTarget})

			trueTarget := g.resolveEdgeTarget(b, i.TrueTarget)
			if trueTarget != fallthroughTo {
				truePC := g.chunk.EmitI16(bytecode.OpJump, 0, 0, 0)
				g.pending = append(g.pending, pendingJump{pc: truePC, target: trueTarget})
			}

		default:
			panic(fmt.Sprintf("codegen: unhandled MIR instruction %T", instr))
		}
	}
}

// emitPhiCopies resolves every Phi at target whose incoming edge is from
// pred by loading that edge's value and storing it into the Phi's dest
// slot — the standard way to compile SSA phi nodes down to a non-SSA
// register/local representation (copy insertion on each predecessor edge).
func (g *fnGen) emitPhiCopies(pred *mir.BasicBlock, target *mir.BasicBlock) {
	if target == nil {
		return
	}
	for _, phi := range target.Phis {
		for _, in := range phi.Incoming {
			if in.Pred == pred {
				g.loadValue(in.Value)
				g.storeSlot(phi.Dest)
				break
			}
		}
	}
}

// resolveEdgeTarget returns target directly if none of its Phis have an
// incoming edge from pred; otherwise it registers a trampoline for this
// specific (pred, target) edge and returns the trampoline's synthetic
// block, so the conditional jump lands on a copy sequence that runs only
// on the branch actually taken.
func (g *fnGen) resolveEdgeTarget(pred, target *mir.BasicBlock) *mir.BasicBlock {
	needsCopy := false
	for _, phi := range target.Phis {
		for _, in := range phi.Incoming {
			if in.Pred == pred {
				needsCopy = true
			}
		}
	}
	if !needsCopy {
		return target
	}
	synthetic := mir.NewBasicBlock(fmt.Sprintf("%s$edge%d", target.Label, len(g.trampolines)))
	g.trampolines = append(g.trampolines, &trampolineReq{block: synthetic, pred: pred, target: target})
	return synthetic
}

func (g *fnGen) loadValue(v mir.Value) {
	switch val := v.(type) {
	case mir.Constant:
		g.emitConst(val)
	case mir.Variable:
		g.chunk.EmitU16(bytecode.OpLoadLocal, g.slotFor(val), 0, 0)
	case mir.Temp:
		g.chunk.EmitU16(bytecode.OpLoadLocal, g.slotFor(val), 0, 0)
	default:
		panic(fmt.Sprintf("codegen: unhandled MIR value %T", v))
	}
}

func (g *fnGen) storeSlot(v mir.Value) {
	g.chunk.EmitU16(bytecode.OpStoreLocal, g.slotFor(v), 0, 0)
}

func (g *fnGen) emitConst(c mir.Constant) {
	var bc bytecode.Constant
	switch val := c.Val.(type) {
	case nil:
		bc = bytecode.Constant{Tag: bytecode.ConstEmpty}
	case bool:
		i := int64(0)
		if val {
			i = 1
		}
		bc = bytecode.Constant{Tag: bytecode.ConstBool, Int: i}
	case int64:
		bc = bytecode.Constant{Tag: bytecode.ConstInt, Int: val}
	case float64:
		bc = bytecode.Constant{Tag: bytecode.ConstFloat, Float: val}
	case string:
		idx := g.mod.InternString(val)
		tag := bytecode.ConstStringRef
		if c.IsURL {
			tag = bytecode.ConstURLRef
		}
		bc = bytecode.Constant{Tag: tag, StrIdx: idx}
	default:
		panic(fmt.Sprintf("codegen: unhandled constant payload %T", c.Val))
	}
	idx := g.mod.AddConstant(bc)
	g.chunk.EmitU16(bytecode.OpLoadConst, idx, 0, 0)
}

func (g *fnGen) emitCall(i *mir.Call) {
	for _, a := range i.Args {
		g.loadValue(a)
	}
	calleeIdx, ok := g.calleeOf[i.Func.Name]
	if !ok {
		calleeIdx, ok = bytecode.BuiltinIndex(i.Func.Name)
	}
	if !ok {
		panic(fmt.Sprintf("codegen: call to unknown function %q", i.Func.Name))
	}
	g.chunk.EmitCall(calleeIdx, uint8(len(i.Args)), 0, 0)
	if i.Dest != nil {
		g.storeSlot(i.Dest)
	} else {
		g.chunk.Emit(bytecode.OpPop, 0, 0)
	}
}

func binaryOp(op token.OperatorID) bytecode.Op {
	switch op {
	case token.OpAdd:
		return bytecode.OpAdd
	case token.OpSub:
		return bytecode.OpSub
	case token.OpMul:
		return bytecode.OpMul
	case token.OpDiv:
		return bytecode.OpDiv
	case token.OpMod:
		return bytecode.OpMod
	case token.OpPow:
		return bytecode.OpPow
	case token.OpAnd:
		return bytecode.OpAnd
	case token.OpOr:
		return bytecode.OpOr
	default:
		panic(fmt.Sprintf("codegen: unhandled binary operator %v", op))
	}
}

func unaryOp(op token.OperatorID) bytecode.Op {
	switch op {
	case token.OpNeg, token.OpSub:
		return bytecode.OpNeg
	case token.OpNot:
		return bytecode.OpNot
	default:
		panic(fmt.Sprintf("codegen: unhandled unary operator %v", op))
	}
}

func compareOp(op token.OperatorID) bytecode.Op {
	switch op {
	case token.OpEq:
		return bytecode.OpEq
	case token.OpNeq:
		return bytecode.OpNeq
	case token.OpStrictEq:
		return bytecode.OpStrictEq
	case token.OpStrictNeq:
		return bytecode.OpStrictNeq
	case token.OpLt:
		return bytecode.OpLt
	case token.OpGt:
		return bytecode.OpGt
	case token.OpLte:
		return bytecode.OpLte
	case token.OpGte:
		return bytecode.OpGte
	default:
		panic(fmt.Sprintf("codegen: unhandled comparison operator %v", op))
	}
}
