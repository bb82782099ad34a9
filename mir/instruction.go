package mir

import (
	"fmt"
	"strings"

	"github.com/machine-dialect/compiler/token"
)

// Instruction is implemented by every MIR instruction (Uses/Defs/ReplaceUse
// give the optimizer a uniform way to rewrite operands without a type
// switch per pass).
type Instruction interface {
	fmt.Stringer
	Uses() []Value
	Defs() []Value
	ReplaceUse(old, new Value)
	instr()
}

// baseInstr gives every instruction a no-op ReplaceUse default for the
// (common) case of an instruction with no operand to rewrite.
type baseInstr struct{}

func (baseInstr) ReplaceUse(Value, Value) {}
func (baseInstr) instr()                  {}

// BinaryOp: Dest = Left Op Right.
type BinaryOp struct {
	baseInstr
	Dest  Value
	Op    token.OperatorID
	Left  Value
	Right Value
}

func (i *BinaryOp) String() string   { return fmt.Sprintf("%s = %s %s %s", i.Dest, i.Left, opSymbol(i.Op), i.Right) }
func (i *BinaryOp) Uses() []Value    { return []Value{i.Left, i.Right} }
func (i *BinaryOp) Defs() []Value    { return []Value{i.Dest} }
func (i *BinaryOp) ReplaceUse(old, new Value) {
	if i.Left == old {
		i.Left = new
	}
	if i.Right == old {
		i.Right = new
	}
}

// UnaryOp: Dest = Op Operand.
type UnaryOp struct {
	baseInstr
	Dest    Value
	Op      token.OperatorID
	Operand Value
}

func (i *UnaryOp) String() string { return fmt.Sprintf("%s = %s%s", i.Dest, opSymbol(i.Op), i.Operand) }
func (i *UnaryOp) Uses() []Value  { return []Value{i.Operand} }
func (i *UnaryOp) Defs() []Value  { return []Value{i.Dest} }
func (i *UnaryOp) ReplaceUse(old, new Value) {
	if i.Operand == old {
		i.Operand = new
	}
}

// Copy: Dest = Source — a plain move. The lowerer does not emit it (names
// are rebound to the source value directly); DCE removes an unused one
// like any other side-effect-free instruction.
type Copy struct {
	baseInstr
	Dest   Value
	Source Value
}

func (i *Copy) String() string { return fmt.Sprintf("%s = %s", i.Dest, i.Source) }
func (i *Copy) Uses() []Value  { return []Value{i.Source} }
func (i *Copy) Defs() []Value  { return []Value{i.Dest} }
func (i *Copy) ReplaceUse(old, new Value) {
	if i.Source == old {
		i.Source = new
	}
}

// LoadConst: Dest = Const.
type LoadConst struct {
	baseInstr
	Dest  Value
	Const Constant
}

func (i *LoadConst) String() string         { return fmt.Sprintf("%s = %s", i.Dest, i.Const) }
func (i *LoadConst) Uses() []Value          { return nil }
func (i *LoadConst) Defs() []Value          { return []Value{i.Dest} }

// LoadVar: Dest = Var.
type LoadVar struct {
	baseInstr
	Dest Value
	Var  Variable
}

func (i *LoadVar) String() string { return fmt.Sprintf("%s = %s", i.Dest, i.Var) }
func (i *LoadVar) Uses() []Value  { return []Value{i.Var} }
func (i *LoadVar) Defs() []Value  { return []Value{i.Dest} }
func (i *LoadVar) ReplaceUse(old, new Value) {
	if v, ok := new.(Variable); ok && i.Var == old {
		i.Var = v
	}
}

// StoreVar: Var = Source.
type StoreVar struct {
	baseInstr
	Var    Variable
	Source Value
}

func (i *StoreVar) String() string { return fmt.Sprintf("%s = %s", i.Var, i.Source) }
func (i *StoreVar) Uses() []Value  { return []Value{i.Source} }
func (i *StoreVar) Defs() []Value  { return []Value{i.Var} }
func (i *StoreVar) ReplaceUse(old, new Value) {
	if i.Source == old {
		i.Source = new
	}
}

// Compare: Dest = Left Op Right, a spec-only addition distinct from
// BinaryOp so the codegen pass can special-case boolean-producing
// comparisons (and the lexer's many synonym comparator phrases) without
// overloading BinaryOp's arithmetic semantics.
type Compare struct {
	baseInstr
	Dest  Value
	Op    token.OperatorID
	Left  Value
	Right Value
}

func (i *Compare) String() string { return fmt.Sprintf("%s = %s %s %s", i.Dest, i.Left, opSymbol(i.Op), i.Right) }
func (i *Compare) Uses() []Value  { return []Value{i.Left, i.Right} }
func (i *Compare) Defs() []Value  { return []Value{i.Dest} }
func (i *Compare) ReplaceUse(old, new Value) {
	if i.Left == old {
		i.Left = new
	}
	if i.Right == old {
		i.Right = new
	}
}

// Call: Dest = call Func(Args...). Dest may be nil, in which case codegen
// discards the result; the lowerer always allocates a Dest, even for a
// call used as a statement.
type Call struct {
	baseInstr
	Dest Value // nil if discarded
	Func FunctionRef
	Args []Value
}

func (i *Call) String() string {
	var args []string
	for _, a := range i.Args {
		args = append(args, a.String())
	}
	if i.Dest != nil {
		return fmt.Sprintf("%s = call %s(%s)", i.Dest, i.Func, strings.Join(args, ", "))
	}
	return fmt.Sprintf("call %s(%s)", i.Func, strings.Join(args, ", "))
}
func (i *Call) Uses() []Value { return append([]Value(nil), i.Args...) }
func (i *Call) Defs() []Value {
	if i.Dest == nil {
		return nil
	}
	return []Value{i.Dest}
}
func (i *Call) ReplaceUse(old, new Value) {
	for idx, a := range i.Args {
		if a == old {
			i.Args[idx] = new
		}
	}
}

// Print: a spec-only addition lowering `Say` — distinct from a built-in
// Call so the VM can special-case it as a single opcode rather than a
// generic call-dispatch.
type Print struct {
	baseInstr
	Value Value
}

func (i *Print) String() string { return fmt.Sprintf("print %s", i.Value) }
func (i *Print) Uses() []Value  { return []Value{i.Value} }
func (i *Print) Defs() []Value  { return nil }
func (i *Print) ReplaceUse(old, new Value) {
	if i.Value == old {
		i.Value = new
	}
}

// Return: return Value (Value is nil for a bare return).
type Return struct {
	baseInstr
	Value Value
}

func (i *Return) String() string {
	if i.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", i.Value)
}
func (i *Return) Uses() []Value {
	if i.Value == nil {
		return nil
	}
	return []Value{i.Value}
}
func (i *Return) Defs() []Value { return nil }
func (i *Return) ReplaceUse(old, new Value) {
	if i.Value == old {
		i.Value = new
	}
}

// Jump: goto Label.
type Jump struct {
	baseInstr
	Target *BasicBlock
}

func (i *Jump) String() string { return fmt.Sprintf("goto %s", i.Target.Label) }
func (i *Jump) Uses() []Value  { return nil }
func (i *Jump) Defs() []Value  { return nil }

// CondJump: if Cond goto TrueTarget else FalseTarget.
type CondJump struct {
	baseInstr
	Cond        Value
	TrueTarget  *BasicBlock
	FalseTarget *BasicBlock
}

func (i *CondJump) String() string {
	return fmt.Sprintf("if %s goto %s else %s", i.Cond, i.TrueTarget.Label, i.FalseTarget.Label)
}
func (i *CondJump) Uses() []Value { return []Value{i.Cond} }
func (i *CondJump) Defs() []Value { return nil }
func (i *CondJump) ReplaceUse(old, new Value) {
	if i.Cond == old {
		i.Cond = new
	}
}

// PhiIncoming is one (value, predecessor) pair of a Phi node.
type PhiIncoming struct {
	Value Value
	Pred  *BasicBlock
}

// Phi: Dest = φ(incoming...) — an SSA join-point merge. The lowerer
// places Phis directly in the join blocks of If statements, ternaries and
// short-circuit and/or; it does not consult mir/dominance.go.
type Phi struct {
	baseInstr
	Dest     Value
	Incoming []PhiIncoming
}

func (i *Phi) String() string {
	var parts []string
	for _, in := range i.Incoming {
		parts = append(parts, fmt.Sprintf("%s:%s", in.Value, in.Pred.Label))
	}
	return fmt.Sprintf("%s = phi(%s)", i.Dest, strings.Join(parts, ", "))
}
func (i *Phi) Uses() []Value {
	out := make([]Value, len(i.Incoming))
	for idx, in := range i.Incoming {
		out[idx] = in.Value
	}
	return out
}
func (i *Phi) Defs() []Value { return []Value{i.Dest} }
func (i *Phi) ReplaceUse(old, new Value) {
	for idx, in := range i.Incoming {
		if in.Value == old {
			i.Incoming[idx].Value = new
		}
	}
}

func (i *Phi) AddIncoming(v Value, pred *BasicBlock) {
	i.Incoming = append(i.Incoming, PhiIncoming{Value: v, Pred: pred})
}

func opSymbol(op token.OperatorID) string {
	switch op {
	case token.OpAdd:
		return "+"
	case token.OpSub:
		return "-"
	case token.OpMul:
		return "*"
	case token.OpDiv:
		return "/"
	case token.OpMod:
		return "%"
	case token.OpPow:
		return "^"
	case token.OpNeg:
		return "-"
	case token.OpNot:
		return "not "
	case token.OpEq:
		return "=="
	case token.OpNeq:
		return "!="
	case token.OpStrictEq:
		return "==="
	case token.OpStrictNeq:
		return "!=="
	case token.OpLt:
		return "<"
	case token.OpGt:
		return ">"
	case token.OpLte:
		return "<="
	case token.OpGte:
		return ">="
	case token.OpAnd:
		return "and"
	case token.OpOr:
		return "or"
	default:
		return "?"
	}
}
