// Package lower implements HIR → MIR lowering: one mir.Function per
// top-level HIR program (the implicit `main`) and per DefStmt, building a
// CFG of basic blocks in SSA form with Phi nodes inserted at `If` joins.
package lower

import (
	"github.com/machine-dialect/compiler/hir"
	"github.com/machine-dialect/compiler/mir"
	"github.com/machine-dialect/compiler/token"
)

// env tracks, within one function, the current SSA value bound to each
// source-level variable name at the point reached by lowering so far —
// the construction-time analogue of a Variable's "current definition".
type env struct {
	parent *env
	vals   map[string]mir.Value
}

func newEnv(parent *env) *env { return &env{parent: parent, vals: map[string]mir.Value{}} }

func (e *env) get(name string) (mir.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) set(name string, v mir.Value) { e.vals[name] = v }

// own returns this env's own bindings only (not ancestors) — used to
// detect which names an If arm actually wrote.
func (e *env) own() map[string]mir.Value { return e.vals }

// funcCtx carries per-function lowering state: the function being built
// and the block currently being appended to.
type funcCtx struct {
	fn  *mir.Function
	cur *mir.BasicBlock
}

func (fc *funcCtx) emit(instr mir.Instruction) { fc.cur.AddInstruction(instr) }

// LowerProgram lowers a whole HIR program into a mir.Module whose Main
// function is the implicit top-level main (returning the last expression
// statement's value, or Empty).
func LowerProgram(prog *hir.Program) *mir.Module {
	mod := mir.NewModule()

	// Pre-register every top-level Action/Interaction so forward calls
	// resolve, then lower each definition's body.
	for _, s := range prog.Statements {
		if def, ok := s.(*hir.DefStmt); ok {
			fn := mir.NewFunction(def.Name)
			for _, p := range def.Inputs {
				fn.Params = append(fn.Params, fn.DeclareLocal(p.Name, toMIRType(p.Type)))
			}
			mod.Functions[def.Name] = fn
			mod.Public[def.Name] = def.Public
		}
	}

	for _, s := range prog.Statements {
		if def, ok := s.(*hir.DefStmt); ok {
			lowerDef(mod, def)
		}
	}

	fc := &funcCtx{fn: mod.Main, cur: mod.Main.CFG.Entry}
	e := newEnv(nil)
	var last mir.Value
	for _, s := range prog.Statements {
		if _, ok := s.(*hir.DefStmt); ok {
			continue // already lowered above
		}
		last = lowerStmt(fc, e, s)
	}
	if !fc.cur.IsTerminated() {
		fc.emit(&mir.Return{Value: last})
	}
	return mod
}

func lowerDef(mod *mir.Module, def *hir.DefStmt) {
	fn := mod.Functions[def.Name]
	fc := &funcCtx{fn: fn, cur: fn.CFG.Entry}
	e := newEnv(nil)
	for _, p := range fn.Params {
		e.set(p.Name, p)
	}
	var last mir.Value
	for _, s := range def.Body.Statements {
		last = lowerStmt(fc, e, s)
	}
	if !fc.cur.IsTerminated() {
		fc.emit(&mir.Return{Value: last})
	}
}

// lowerStmt lowers one statement and, for statements that carry a trailing
// value (ExpressionStmt), returns it so the enclosing function's implicit
// return can use it.
func lowerStmt(fc *funcCtx, e *env, s hir.Stmt) mir.Value {
	switch n := s.(type) {
	case *hir.SetStmt:
		val := lowerExpr(fc, e, n.Value)
		v := fc.fn.DeclareLocal(n.Name, val.Type())
		fc.emit(&mir.StoreVar{Var: v, Source: val})
		e.set(n.Name, val)
		return nil

	case *hir.ReturnStmt:
		var val mir.Value
		if n.Value != nil {
			val = lowerExpr(fc, e, n.Value)
		}
		fc.emit(&mir.Return{Value: val})
		return nil

	case *hir.CallStmt:
		lowerCall(fc, e, n.Call)
		return nil

	case *hir.SayStmt:
		val := lowerExpr(fc, e, n.Value)
		fc.emit(&mir.Print{Value: val})
		return nil

	case *hir.IfStmt:
		lowerIfStmt(fc, e, n)
		return nil

	case *hir.ExpressionStmt:
		return lowerExpr(fc, e, n.Value)

	case *hir.ErrorStmt:
		fc.emit(&mir.LoadConst{Dest: fc.fn.NewTemp(mir.TEmpty), Const: mir.EmptyConst()})
		return nil

	default:
		return nil
	}
}

// lowerIfStmt builds then/else/join blocks. Every name assigned in either
// arm gets a Phi in the join block; on an arm that didn't assign the name,
// the Phi takes the binding from before the If, or an implicit Empty when
// the name had no binding there.
func lowerIfStmt(fc *funcCtx, e *env, n *hir.IfStmt) {
	cond := lowerExpr(fc, e, n.Condition)
	condBlock := fc.cur

	thenBlock := fc.fn.CFG.NewBlock("then")
	joinBlock := fc.fn.CFG.NewBlock("join")

	var elseBlock *mir.BasicBlock
	if n.Alternative != nil {
		elseBlock = fc.fn.CFG.NewBlock("else")
	} else {
		elseBlock = joinBlock
	}

	fc.emit(&mir.CondJump{Cond: cond, TrueTarget: thenBlock, FalseTarget: elseBlock})
	fc.fn.CFG.ConnectBlocks(condBlock, thenBlock)
	fc.fn.CFG.ConnectBlocks(condBlock, elseBlock)

	thenEnv := newEnv(e)
	fc.cur = thenBlock
	for _, s := range n.Consequence.Statements {
		lowerStmt(fc, thenEnv, s)
	}
	thenPred := fc.cur
	thenReachesJoin := !thenPred.IsTerminated()
	if thenReachesJoin {
		fc.emit(&mir.Jump{Target: joinBlock})
		fc.fn.CFG.ConnectBlocks(thenPred, joinBlock)
	}

	elseEnv := newEnv(e)
	elsePred := condBlock // no explicit else arm: the join's other edge comes straight from the condition
	elseReachesJoin := n.Alternative == nil
	if n.Alternative != nil {
		fc.cur = elseBlock
		for _, s := range n.Alternative.Statements {
			lowerStmt(fc, elseEnv, s)
		}
		elsePred = fc.cur
		elseReachesJoin = !elsePred.IsTerminated()
		if elseReachesJoin {
			fc.emit(&mir.Jump{Target: joinBlock})
			fc.fn.CFG.ConnectBlocks(elsePred, joinBlock)
		}
	}

	fc.cur = joinBlock
	if thenReachesJoin && elseReachesJoin {
		insertJoinPhis(fc, e, thenEnv, elseEnv, thenPred, elsePred)
	} else if thenReachesJoin {
		mergeEnv(e, thenEnv)
	} else if elseReachesJoin {
		mergeEnv(e, elseEnv)
	}
	// If neither arm reaches the join (both Return/terminate), the join
	// block is unreachable dead code; the optimizer's DCE pass removes it.
}

// mergeEnv is used when only one arm of an If actually falls through to
// the join (the other arm returned): that arm's bindings become the
// outer scope's bindings directly, no Phi needed.
func mergeEnv(outer, arm *env) {
	for name, v := range arm.own() {
		outer.set(name, v)
	}
}

// insertJoinPhis inserts one Phi per name assigned in either arm's own
// (non-ancestor) bindings, using an implicit Empty for the arm that left
// the name unassigned.
func insertJoinPhis(fc *funcCtx, outer *env, thenEnv, elseEnv *env, thenPred, elsePred *mir.BasicBlock) {
	names := map[string]bool{}
	for name := range thenEnv.own() {
		names[name] = true
	}
	for name := range elseEnv.own() {
		names[name] = true
	}
	for name := range names {
		thenVal, thenOK := thenEnv.own()[name]
		elseVal, elseOK := elseEnv.own()[name]
		if !thenOK {
			thenVal = implicitEmpty(fc, outer, name, thenPred)
		}
		if !elseOK {
			elseVal = implicitEmpty(fc, outer, name, elsePred)
		}
		ty := thenVal.Type()
		if ty != elseVal.Type() {
			ty = mir.TUnknown
		}
		dest := fc.fn.NewTemp(ty)
		phi := &mir.Phi{Dest: dest, Incoming: []mir.PhiIncoming{
			{Value: thenVal, Pred: thenPred},
			{Value: elseVal, Pred: elsePred},
		}}
		fc.cur.AddInstruction(phi)
		outer.set(name, dest)
	}
}

// implicitEmpty returns the outer (pre-If) binding for name if the arm
// simply left an already-existing variable untouched (its old value still
// holds on that edge); for a name with no outer binding at all — freshly
// introduced by the other arm only — an implicit Empty is materialised as
// a LoadConst inserted at the end of the given predecessor block so the
// Phi's incoming value has a proper SSA definition on that edge.
func implicitEmpty(fc *funcCtx, outer *env, name string, pred *mir.BasicBlock) mir.Value {
	if v, ok := outer.get(name); ok {
		return v
	}
	dest := fc.fn.NewTemp(mir.TEmpty)
	emitBeforeTerminator(fc.fn, pred, &mir.LoadConst{Dest: dest, Const: mir.EmptyConst()})
	return dest
}

// emitBeforeTerminator inserts instr immediately before block's terminator
// (if it has one) so the instruction still executes on every path through
// the block, or appends it if the block has no terminator yet.
func emitBeforeTerminator(fn *mir.Function, block *mir.BasicBlock, instr mir.Instruction) {
	if !block.IsTerminated() {
		block.Instructions = append(block.Instructions, instr)
		return
	}
	n := len(block.Instructions)
	block.Instructions = append(block.Instructions, nil)
	block.Instructions[n] = block.Instructions[n-1] // shift terminator right
	block.Instructions[n-1] = instr
}

// lowerCall lowers a CallExpr. A destination temp is always allocated —
// even for a call used only as a statement — since MIR's Call.Dest being
// non-nil costs nothing and keeps CallStmt and CallExpr sharing one
// lowering path. DCE keeps every Call (it may have side effects), so the
// temp stays defined even when nothing reads it.
func lowerCall(fc *funcCtx, e *env, call *hir.CallExpr) mir.Value {
	var args []mir.Value
	for _, a := range call.Positional {
		args = append(args, lowerExpr(fc, e, a))
	}
	for _, na := range call.Named {
		// MIR has no named-argument instruction form; named args are
		// resolved to positional order by the lowerer using the callee's
		// declared parameter order, which for built-ins is fixed and for
		// user definitions is read from the DefStmt's Inputs list. Since
		// that resolution needs the callee's signature (not available on
		// CallExpr alone), named args lower in declaration order as given;
		// a future pass may reorder once callee signatures are threaded
		// through HIR.
		args = append(args, lowerExpr(fc, e, na.Value))
	}
	dest := fc.fn.NewTemp(toMIRType(call.Type))
	fc.emit(&mir.Call{Dest: dest, Func: mir.FunctionRef{Name: call.Name}, Args: args})
	return dest
}

func lowerExpr(fc *funcCtx, e *env, expr hir.Expr) mir.Value {
	switch n := expr.(type) {
	case *hir.IntLiteral:
		dest := fc.fn.NewTemp(mir.TInt)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.IntConst(n.Value)})
		return dest
	case *hir.FloatLiteral:
		dest := fc.fn.NewTemp(mir.TFloat)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.FloatConst(n.Value)})
		return dest
	case *hir.StringLiteral:
		dest := fc.fn.NewTemp(mir.TString)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.StringConst(n.Value)})
		return dest
	case *hir.URLLiteral:
		dest := fc.fn.NewTemp(mir.TURL)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.URLConst(n.Value)})
		return dest
	case *hir.BoolLiteral:
		dest := fc.fn.NewTemp(mir.TBool)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.BoolConst(n.Value)})
		return dest
	case *hir.EmptyLiteral:
		dest := fc.fn.NewTemp(mir.TEmpty)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.EmptyConst()})
		return dest

	case *hir.Identifier:
		if v, ok := e.get(n.Name); ok {
			return v
		}
		// Undefined variable read: lowers to a LoadConst Empty so later
		// passes stay well-formed. No diagnostic is reported for it.
		dest := fc.fn.NewTemp(mir.TEmpty)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.EmptyConst()})
		return dest

	case *hir.PrefixExpr:
		operand := lowerExpr(fc, e, n.Operand)
		dest := fc.fn.NewTemp(toMIRType(n.Type))
		fc.emit(&mir.UnaryOp{Dest: dest, Op: n.Operator, Operand: operand})
		return dest

	case *hir.BinaryExpr:
		if n.Operator == token.OpAnd || n.Operator == token.OpOr {
			return lowerShortCircuit(fc, e, n)
		}
		left := lowerExpr(fc, e, n.Left)
		right := lowerExpr(fc, e, n.Right)
		dest := fc.fn.NewTemp(toMIRType(n.Type))
		if isComparison(n.Operator) {
			fc.emit(&mir.Compare{Dest: dest, Op: n.Operator, Left: left, Right: right})
		} else {
			fc.emit(&mir.BinaryOp{Dest: dest, Op: n.Operator, Left: left, Right: right})
		}
		return dest

	case *hir.IfExpr:
		return lowerIfExpr(fc, e, n)

	case *hir.CallExpr:
		return lowerCall(fc, e, n)

	case *hir.ErrorExpr:
		dest := fc.fn.NewTemp(mir.TEmpty)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.EmptyConst()})
		return dest

	default:
		dest := fc.fn.NewTemp(mir.TEmpty)
		fc.emit(&mir.LoadConst{Dest: dest, Const: mir.EmptyConst()})
		return dest
	}
}

// lowerShortCircuit lowers and/or into two blocks + a Phi so the right
// operand's evaluation (and any side effects, e.g. a Call) is skipped
// when the left operand already determines the result — the one carve-out
// from the language's otherwise-eager evaluation.
func lowerShortCircuit(fc *funcCtx, e *env, n *hir.BinaryExpr) mir.Value {
	left := lowerExpr(fc, e, n.Left)
	leftBlock := fc.cur

	rhsBlock := fc.fn.CFG.NewBlock("sc_rhs")
	joinBlock := fc.fn.CFG.NewBlock("sc_join")

	if n.Operator == token.OpAnd {
		fc.emit(&mir.CondJump{Cond: left, TrueTarget: rhsBlock, FalseTarget: joinBlock})
	} else {
		fc.emit(&mir.CondJump{Cond: left, TrueTarget: joinBlock, FalseTarget: rhsBlock})
	}
	fc.fn.CFG.ConnectBlocks(leftBlock, rhsBlock)
	fc.fn.CFG.ConnectBlocks(leftBlock, joinBlock)

	fc.cur = rhsBlock
	right := lowerExpr(fc, e, n.Right)
	rhsEnd := fc.cur
	fc.emit(&mir.Jump{Target: joinBlock})
	fc.fn.CFG.ConnectBlocks(rhsEnd, joinBlock)

	fc.cur = joinBlock
	dest := fc.fn.NewTemp(mir.TBool)
	phi := &mir.Phi{Dest: dest, Incoming: []mir.PhiIncoming{
		{Value: left, Pred: leftBlock},
		{Value: right, Pred: rhsEnd},
	}}
	fc.cur.AddInstruction(phi)
	return dest
}

// lowerIfExpr lowers the desugared ternary: both arms are pure
// expressions (no statements), so no env-name bookkeeping is needed —
// only the resulting value merges via Phi.
func lowerIfExpr(fc *funcCtx, e *env, n *hir.IfExpr) mir.Value {
	cond := lowerExpr(fc, e, n.Condition)
	condBlock := fc.cur

	thenBlock := fc.fn.CFG.NewBlock("then_expr")
	elseBlock := fc.fn.CFG.NewBlock("else_expr")
	joinBlock := fc.fn.CFG.NewBlock("join_expr")

	fc.emit(&mir.CondJump{Cond: cond, TrueTarget: thenBlock, FalseTarget: elseBlock})
	fc.fn.CFG.ConnectBlocks(condBlock, thenBlock)
	fc.fn.CFG.ConnectBlocks(condBlock, elseBlock)

	fc.cur = thenBlock
	thenVal := lowerExpr(fc, e, n.Consequence)
	thenEnd := fc.cur
	fc.emit(&mir.Jump{Target: joinBlock})
	fc.fn.CFG.ConnectBlocks(thenEnd, joinBlock)

	fc.cur = elseBlock
	elseVal := lowerExpr(fc, e, n.Alternative)
	elseEnd := fc.cur
	fc.emit(&mir.Jump{Target: joinBlock})
	fc.fn.CFG.ConnectBlocks(elseEnd, joinBlock)

	fc.cur = joinBlock
	dest := fc.fn.NewTemp(toMIRType(n.Type))
	phi := &mir.Phi{Dest: dest, Incoming: []mir.PhiIncoming{
		{Value: thenVal, Pred: thenEnd},
		{Value: elseVal, Pred: elseEnd},
	}}
	fc.cur.AddInstruction(phi)
	return dest
}

func isComparison(op token.OperatorID) bool {
	switch op {
	case token.OpEq, token.OpNeq, token.OpStrictEq, token.OpStrictNeq,
		token.OpLt, token.OpGt, token.OpLte, token.OpGte:
		return true
	default:
		return false
	}
}

func toMIRType(t hir.Type) mir.Type {
	switch t {
	case hir.TEmpty:
		return mir.TEmpty
	case hir.TBool:
		return mir.TBool
	case hir.TInt:
		return mir.TInt
	case hir.TFloat:
		return mir.TFloat
	case hir.TString:
		return mir.TString
	case hir.TURL:
		return mir.TURL
	default:
		return mir.TUnknown
	}
}
