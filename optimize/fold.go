package optimize

import (
	"math"

	"github.com/machine-dialect/compiler/mir"
	"github.com/machine-dialect/compiler/token"
)

// ConstantFold rewrites BinaryOp/UnaryOp/Compare instructions whose
// operands are both LoadConst-defined constants into a single LoadConst
// of the computed result, iterating to a fixpoint so a chain of folds
// (e.g. `1 + 2 + 3`) collapses completely in one pass invocation.
func ConstantFold(fn *mir.Function) {
	for _, b := range fn.CFG.Blocks {
		changed := true
		for changed {
			changed = false
			defs := constDefs(b)
			for idx, instr := range b.Instructions {
				if folded, ok := tryFold(instr, defs); ok {
					b.Instructions[idx] = folded
					defs[valueKey(folded.Defs()[0])] = folded.(*mir.LoadConst).Const
					changed = true
				}
			}
		}
	}
}

// constDefs maps every Temp/Variable defined by a LoadConst in b to its
// constant value, for this block's local constant-propagation scan. MIR
// is in SSA form for temps, so a single forward scan per block suffices —
// cross-block constant propagation is intentionally left to a later pass
// if ever needed; this pass stays scoped to local constant folding, not
// full sparse conditional constant propagation.
func constDefs(b *mir.BasicBlock) map[string]mir.Constant {
	out := map[string]mir.Constant{}
	for _, instr := range b.Instructions {
		if lc, ok := instr.(*mir.LoadConst); ok {
			out[valueKey(lc.Dest)] = lc.Const
		}
	}
	return out
}

func valueKey(v mir.Value) string { return v.String() }

func tryFold(instr mir.Instruction, defs map[string]mir.Constant) (mir.Instruction, bool) {
	switch i := instr.(type) {
	case *mir.BinaryOp:
		l, lok := defs[valueKey(i.Left)]
		r, rok := defs[valueKey(i.Right)]
		if !lok || !rok {
			return nil, false
		}
		c, ok := foldBinary(i.Op, l, r)
		if !ok {
			return nil, false
		}
		return &mir.LoadConst{Dest: i.Dest, Const: c}, true

	case *mir.Compare:
		l, lok := defs[valueKey(i.Left)]
		r, rok := defs[valueKey(i.Right)]
		if !lok || !rok {
			return nil, false
		}
		c, ok := foldCompare(i.Op, l, r)
		if !ok {
			return nil, false
		}
		return &mir.LoadConst{Dest: i.Dest, Const: c}, true

	case *mir.UnaryOp:
		v, ok := defs[valueKey(i.Operand)]
		if !ok {
			return nil, false
		}
		c, ok := foldUnary(i.Op, v)
		if !ok {
			return nil, false
		}
		return &mir.LoadConst{Dest: i.Dest, Const: c}, true

	default:
		return nil, false
	}
}

func foldUnary(op token.OperatorID, v mir.Constant) (mir.Constant, bool) {
	switch op {
	case token.OpNeg, token.OpSub:
		switch n := v.Val.(type) {
		case int64:
			return mir.IntConst(-n), true
		case float64:
			return mir.FloatConst(-n), true
		}
	case token.OpNot:
		if b, ok := v.Val.(bool); ok {
			return mir.BoolConst(!b), true
		}
		return mir.BoolConst(!truthy(v)), true
	}
	return mir.Constant{}, false
}

func foldBinary(op token.OperatorID, l, r mir.Constant) (mir.Constant, bool) {
	if op == token.OpAdd && l.Ty == mir.TString && r.Ty == mir.TString {
		return mir.StringConst(l.Val.(string) + r.Val.(string)), true
	}
	li, lIsInt := l.Val.(int64)
	ri, rIsInt := r.Val.(int64)
	if lIsInt && rIsInt {
		switch op {
		case token.OpAdd:
			return mir.IntConst(li + ri), true
		case token.OpSub:
			return mir.IntConst(li - ri), true
		case token.OpMul:
			return mir.IntConst(li * ri), true
		}
	}
	lf, lIsFloat, lok := asNumber(l)
	rf, rIsFloat, rok := asNumber(r)
	if !lok || !rok {
		return mir.Constant{}, false
	}
	isFloat := lIsFloat || rIsFloat
	switch op {
	case token.OpAdd:
		return numResult(lf+rf, isFloat), true
	case token.OpSub:
		return numResult(lf-rf, isFloat), true
	case token.OpMul:
		return numResult(lf*rf, isFloat), true
	case token.OpDiv:
		if rf == 0 {
			return mir.Constant{}, false // division by zero: leave for the VM's runtime error
		}
		if !isFloat && math.Mod(lf, rf) == 0 {
			return numResult(lf/rf, false), true
		}
		return numResult(lf/rf, true), true
	case token.OpMod:
		if rf == 0 {
			return mir.Constant{}, false
		}
		return numResult(math.Mod(lf, rf), isFloat), true
	case token.OpPow:
		return numResult(math.Pow(lf, rf), isFloat || math.Pow(lf, rf) != math.Trunc(math.Pow(lf, rf))), true
	case token.OpAnd:
		return mir.BoolConst(truthy(l) && truthy(r)), true
	case token.OpOr:
		return mir.BoolConst(truthy(l) || truthy(r)), true
	default:
		return mir.Constant{}, false
	}
}

func foldCompare(op token.OperatorID, l, r mir.Constant) (mir.Constant, bool) {
	switch op {
	case token.OpEq:
		return mir.BoolConst(looseEqual(l, r)), true
	case token.OpNeq:
		return mir.BoolConst(!looseEqual(l, r)), true
	case token.OpStrictEq:
		return mir.BoolConst(strictEqual(l, r)), true
	case token.OpStrictNeq:
		return mir.BoolConst(!strictEqual(l, r)), true
	}
	lf, _, lok := asNumber(l)
	rf, _, rok := asNumber(r)
	if !lok || !rok {
		return mir.Constant{}, false
	}
	switch op {
	case token.OpLt:
		return mir.BoolConst(lf < rf), true
	case token.OpGt:
		return mir.BoolConst(lf > rf), true
	case token.OpLte:
		return mir.BoolConst(lf <= rf), true
	case token.OpGte:
		return mir.BoolConst(lf >= rf), true
	default:
		return mir.Constant{}, false
	}
}

func asNumber(c mir.Constant) (float64, bool, bool) {
	switch v := c.Val.(type) {
	case int64:
		return float64(v), false, true
	case float64:
		return v, true, true
	default:
		return 0, false, false
	}
}

func numResult(f float64, isFloat bool) mir.Constant {
	if isFloat {
		return mir.FloatConst(f)
	}
	return mir.IntConst(int64(f))
}

// truthy mirrors the VM's truthiness rule for constant-fold purposes:
// Empty and false are falsy; zero numbers and empty strings are falsy;
// everything else is truthy.
func truthy(c mir.Constant) bool {
	switch v := c.Val.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

func looseEqual(l, r mir.Constant) bool {
	lf, _, lok := asNumber(l)
	rf, _, rok := asNumber(r)
	if lok && rok {
		return lf == rf
	}
	return strictEqual(l, r)
}

func strictEqual(l, r mir.Constant) bool {
	if l.Ty != r.Ty {
		return false
	}
	return l.Val == r.Val
}
