package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/machine-dialect/compiler/bytecode"
)

// DefaultMaxDepth is the call-stack depth limit applied when a VM is
// constructed with NewVM's zero-value config — config.Config's
// VM.StackDepth overrides it for a configured pipeline.
const DefaultMaxDepth = 1024

// VM executes one loaded bytecode.Module.
type VM struct {
	Module   *bytecode.Module
	Stdout   io.Writer
	MaxDepth int

	globals map[string]Value
	depth   int
}

// NewVM constructs a VM ready to Run m, with output directed to Stdout and
// the call-depth limit set to DefaultMaxDepth.
func NewVM(m *bytecode.Module) *VM {
	return &VM{Module: m, Stdout: os.Stdout, MaxDepth: DefaultMaxDepth, globals: map[string]Value{}}
}

// Run executes the module's main chunk and returns its final value.
func (vm *VM) Run() (Value, error) {
	if err := vm.bindGlobals(); err != nil {
		return Empty(), err
	}
	return vm.callChunk(vm.Module.Main, nil)
}

func (vm *VM) bindGlobals() error {
	for _, g := range vm.Module.Globals {
		if int(g.NameIdx) >= len(vm.Module.StringTable) {
			return newError("globals", "name index %d out of range", g.NameIdx)
		}
		name := vm.Module.StringTable[g.NameIdx]
		if int(g.ConstIdx) >= len(vm.Module.Constants) {
			return newError("globals", "constant index %d out of range", g.ConstIdx)
		}
		v, err := vm.constantValue(vm.Module.Constants[g.ConstIdx])
		if err != nil {
			return err
		}
		vm.globals[name] = v
	}
	return nil
}

func (vm *VM) constantValue(c bytecode.Constant) (Value, error) {
	switch c.Tag {
	case bytecode.ConstEmpty:
		return Empty(), nil
	case bytecode.ConstInt:
		return Int(c.Int), nil
	case bytecode.ConstBool:
		return Bool(c.Int != 0), nil
	case bytecode.ConstFloat:
		return Float(c.Float), nil
	case bytecode.ConstStringRef:
		return Str(vm.stringAt(c.StrIdx)), nil
	case bytecode.ConstURLRef:
		return URL(vm.stringAt(c.StrIdx)), nil
	case bytecode.ConstFunctionRef:
		return Int(int64(c.FuncIdx)), nil
	default:
		return Empty(), newError("const", "unknown constant tag %d", c.Tag)
	}
}

func (vm *VM) stringAt(idx uint32) string {
	if int(idx) < len(vm.Module.StringTable) {
		return vm.Module.StringTable[idx]
	}
	return ""
}

// callChunk runs c as a fresh frame with args bound to its first len(args)
// local slots (the callee's declared parameters), enforcing MaxDepth.
func (vm *VM) callChunk(c *bytecode.Chunk, args []Value) (Value, error) {
	if vm.depth >= vm.maxDepth() {
		return Empty(), ErrStackOverflow
	}
	vm.depth++
	defer func() { vm.depth-- }()

	f := newFrame(c)
	for i, a := range args {
		if i < len(f.locals) {
			f.locals[i] = a
		}
	}
	return vm.runFrame(f)
}

func (vm *VM) maxDepth() int {
	if vm.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return vm.MaxDepth
}

// runFrame is the fetch-decode-execute loop: read one opcode, dispatch on
// it, repeat until a Return pops the frame or an error aborts it.
func (vm *VM) runFrame(f *frame) (Value, error) {
	for f.ip < len(f.chunk.Code) {
		op := bytecode.Op(f.chunk.Code[f.ip])
		f.ip++

		switch op {
		case bytecode.OpNop:

		case bytecode.OpHalt:
			return Empty(), nil

		case bytecode.OpLoadConst:
			idx := f.readU16()
			if int(idx) >= len(vm.Module.Constants) {
				return Empty(), newError("LOAD_CONST", "constant index %d out of range", idx)
			}
			v, err := vm.constantValue(vm.Module.Constants[idx])
			if err != nil {
				return Empty(), err
			}
			f.push(v)

		case bytecode.OpLoadLocal:
			idx := f.readU16()
			if int(idx) >= len(f.locals) {
				return Empty(), newError("LOAD_LOCAL", "slot %d out of range", idx)
			}
			f.push(f.locals[idx])

		case bytecode.OpStoreLocal:
			idx := f.readU16()
			v := f.pop()
			if int(idx) >= len(f.locals) {
				grown := make([]Value, idx+1)
				copy(grown, f.locals)
				f.locals = grown
			}
			f.locals[idx] = v

		case bytecode.OpLoadGlobal, bytecode.OpStoreGlobal:
			idx := f.readU16()
			if int(idx) >= len(vm.Module.Constants) {
				return Empty(), newError(op.String(), "constant index %d out of range", idx)
			}
			name := vm.stringAt(vm.Module.Constants[idx].StrIdx)
			if op == bytecode.OpLoadGlobal {
				f.push(vm.globals[name])
			} else {
				vm.globals[name] = f.pop()
			}

		case bytecode.OpLoadReg, bytecode.OpStoreReg:
			// Fast-path register addressing is reserved for a future codegen
			// path; this VM's loaded chunks always use LOAD_LOCAL/STORE_LOCAL.
			return Empty(), newError(op.String(), "register-indexed opcodes are not emitted by codegen")

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
			r := f.pop()
			l := f.pop()
			v, err := vm.arith(op, l, r)
			if err != nil {
				return Empty(), err
			}
			f.push(v)

		case bytecode.OpNeg:
			v := f.pop()
			switch v.Kind {
			case KInt:
				f.push(Int(-v.I))
			case KFloat:
				f.push(Float(-v.F))
			default:
				return Empty(), newError("NEG", "cannot negate %s", v.Kind)
			}

		case bytecode.OpNot:
			f.push(Bool(!f.pop().Truthy()))

		case bytecode.OpEq:
			r, l := f.pop(), f.pop()
			f.push(Bool(looseEqual(l, r)))
		case bytecode.OpNeq:
			r, l := f.pop(), f.pop()
			f.push(Bool(!looseEqual(l, r)))
		case bytecode.OpStrictEq:
			r, l := f.pop(), f.pop()
			f.push(Bool(strictEqual(l, r)))
		case bytecode.OpStrictNeq:
			r, l := f.pop(), f.pop()
			f.push(Bool(!strictEqual(l, r)))

		case bytecode.OpLt, bytecode.OpGt, bytecode.OpLte, bytecode.OpGte:
			r := f.pop()
			l := f.pop()
			v, err := vm.compare(op, l, r)
			if err != nil {
				return Empty(), err
			}
			f.push(v)

		case bytecode.OpAnd:
			r, l := f.pop(), f.pop()
			f.push(Bool(l.Truthy() && r.Truthy()))
		case bytecode.OpOr:
			r, l := f.pop(), f.pop()
			f.push(Bool(l.Truthy() || r.Truthy()))

		case bytecode.OpJump:
			offset := f.readI16()
			f.ip += int(offset)

		case bytecode.OpJumpIfFalse:
			offset := f.readI16()
			if !f.pop().Truthy() {
				f.ip += int(offset)
			}

		case bytecode.OpCall:
			calleeIdx := f.readU16()
			argc := f.readU8()
			args := f.popN(int(argc))
			result, err := vm.call(calleeIdx, args)
			if err != nil {
				return Empty(), err
			}
			f.push(result)

		case bytecode.OpReturn:
			if len(f.stack) > 0 {
				return f.pop(), nil
			}
			return Empty(), nil

		case bytecode.OpPop:
			f.pop()
		case bytecode.OpDup:
			v := f.pop()
			f.push(v)
			f.push(v)
		case bytecode.OpSwap:
			r, l := f.pop(), f.pop()
			f.push(r)
			f.push(l)

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Stdout, f.pop().String())

		default:
			return Empty(), newError("exec", "unknown opcode %d", op)
		}
	}
	if len(f.stack) > 0 {
		return f.pop(), nil
	}
	return Empty(), nil
}

// call dispatches CALL's callee index to either the built-in table or a
// user-defined function chunk.
func (vm *VM) call(calleeIdx uint16, args []Value) (Value, error) {
	if int(calleeIdx) < len(bytecode.BuiltinNames) {
		return vm.callBuiltin(bytecode.BuiltinNames[calleeIdx], args)
	}
	idx := int(calleeIdx) - len(bytecode.BuiltinNames)
	if idx < 0 || idx >= len(vm.Module.Functions) {
		return Empty(), newError("CALL", "callee index %d out of range", calleeIdx)
	}
	return vm.callChunk(vm.Module.Functions[idx], args)
}

func (vm *VM) arith(op bytecode.Op, l, r Value) (Value, error) {
	if op == bytecode.OpAdd && l.Kind == KString && r.Kind == KString {
		return Str(l.S + r.S), nil
	}
	if l.Kind == KInt && r.Kind == KInt {
		switch op {
		case bytecode.OpAdd:
			return Int(l.I + r.I), nil
		case bytecode.OpSub:
			return Int(l.I - r.I), nil
		case bytecode.OpMul:
			return Int(l.I * r.I), nil
		}
	}
	lf, lok := l.asFloat()
	rf, rok := r.asFloat()
	if !lok || !rok {
		return Empty(), newError(op.String(), "cannot apply %s to %s and %s", op, l.Kind, r.Kind)
	}
	isFloat := l.Kind == KFloat || r.Kind == KFloat
	switch op {
	case bytecode.OpAdd:
		return numResult(lf+rf, isFloat), nil
	case bytecode.OpSub:
		return numResult(lf-rf, isFloat), nil
	case bytecode.OpMul:
		return numResult(lf*rf, isFloat), nil
	case bytecode.OpDiv:
		if rf == 0 {
			return Empty(), newError("DIV", "division by zero")
		}
		if !isFloat && math.Mod(lf, rf) == 0 {
			return numResult(lf/rf, false), nil
		}
		return numResult(lf/rf, true), nil
	case bytecode.OpMod:
		if rf == 0 {
			return Empty(), newError("MOD", "division by zero")
		}
		return numResult(math.Mod(lf, rf), isFloat), nil
	case bytecode.OpPow:
		result := math.Pow(lf, rf)
		return numResult(result, isFloat || result != math.Trunc(result)), nil
	default:
		return Empty(), newError(op.String(), "not an arithmetic opcode")
	}
}

func (vm *VM) compare(op bytecode.Op, l, r Value) (Value, error) {
	lf, lok := l.asFloat()
	rf, rok := r.asFloat()
	if !lok || !rok {
		return Empty(), newError(op.String(), "cannot compare %s and %s", l.Kind, r.Kind)
	}
	switch op {
	case bytecode.OpLt:
		return Bool(lf < rf), nil
	case bytecode.OpGt:
		return Bool(lf > rf), nil
	case bytecode.OpLte:
		return Bool(lf <= rf), nil
	case bytecode.OpGte:
		return Bool(lf >= rf), nil
	default:
		return Empty(), newError(op.String(), "not a comparison opcode")
	}
}

func numResult(f float64, isFloat bool) Value {
	if isFloat {
		return Float(f)
	}
	return Int(int64(f))
}

func looseEqual(l, r Value) bool {
	if l.isNumeric() && r.isNumeric() {
		lf, _ := l.asFloat()
		rf, _ := r.asFloat()
		return lf == rf
	}
	return strictEqual(l, r)
}

func strictEqual(l, r Value) bool {
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case KEmpty:
		return true
	case KBool, KInt:
		return l.I == r.I
	case KFloat:
		return l.F == r.F
	case KString, KURL:
		return l.S == r.S
	default:
		return false
	}
}
