// Package bytecode implements the serialisable compiled-module format: a
// header, string table, constant pool, globals table, and a main chunk
// plus function chunks of opcode bytes.
package bytecode

// Op is one VM instruction opcode.
type Op byte

const (
	OpNop Op = iota
	OpHalt

	OpLoadConst  // operand: u16 constant-pool index; push/store to dest register
	OpLoadLocal  // operand: u16 local slot
	OpStoreLocal // operand: u16 local slot
	OpLoadGlobal // operand: u16 constant-pool index (name)
	OpStoreGlobal

	// Register-indexed forms: a superset of stack-only local access,
	// addressing one of a frame's 256 registers directly.
	OpLoadReg  // operand: u8 register index
	OpStoreReg // operand: u8 register index

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpNot

	OpEq
	OpNeq
	OpStrictEq
	OpStrictNeq
	OpLt
	OpGt
	OpLte
	OpGte

	OpAnd
	OpOr

	OpJump         // operand: i16 signed relative offset
	OpJumpIfFalse  // operand: i16 signed relative offset

	OpCall // operand: u16 callee index + u8 arg count, see OperandCall
	OpReturn

	OpPop
	OpDup
	OpSwap

	OpPrint
)

var opNames = map[Op]string{
	OpNop: "NOP", OpHalt: "HALT",
	OpLoadConst: "LOAD_CONST", OpLoadLocal: "LOAD_LOCAL", OpStoreLocal: "STORE_LOCAL",
	OpLoadGlobal: "LOAD_GLOBAL", OpStoreGlobal: "STORE_GLOBAL",
	OpLoadReg: "LOAD_REG", OpStoreReg: "STORE_REG",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpNeg: "NEG", OpNot: "NOT",
	OpEq: "EQ", OpNeq: "NEQ", OpStrictEq: "STRICT_EQ", OpStrictNeq: "STRICT_NEQ",
	OpLt: "LT", OpGt: "GT", OpLte: "LTE", OpGte: "GTE",
	OpAnd: "AND", OpOr: "OR",
	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE",
	OpCall: "CALL", OpReturn: "RETURN",
	OpPop: "POP", OpDup: "DUP", OpSwap: "SWAP",
	OpPrint: "PRINT",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "UNKNOWN_OP"
}

// OperandKind describes how many bytes of operand follow an opcode and
// how to interpret them.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandU8
	OperandU16
	OperandI16
	// OperandCall is CALL's own two-part operand: a u16 callee index into
	// the shared builtin+function call table (see BuiltinNames) followed by
	// a u8 argument count — kept out of the constant pool entirely since a
	// builtin has no chunk or constant-pool entry of its own.
	OperandCall
)

// InstructionSpec names one opcode's operand shape and net stack effect
// (positive: pushes; negative: pops).
type InstructionSpec struct {
	Operand    OperandKind
	StackDelta int
}

var Instructions = map[Op]InstructionSpec{
	OpNop:  {OperandNone, 0},
	OpHalt: {OperandNone, 0},

	OpLoadConst:   {OperandU16, 1},
	OpLoadLocal:   {OperandU16, 1},
	OpStoreLocal:  {OperandU16, -1},
	OpLoadGlobal:  {OperandU16, 1},
	OpStoreGlobal: {OperandU16, -1},
	OpLoadReg:     {OperandU8, 1},
	OpStoreReg:    {OperandU8, -1},

	OpAdd: {OperandNone, -1}, OpSub: {OperandNone, -1}, OpMul: {OperandNone, -1},
	OpDiv: {OperandNone, -1}, OpMod: {OperandNone, -1}, OpPow: {OperandNone, -1},
	OpNeg: {OperandNone, 0}, OpNot: {OperandNone, 0},

	OpEq: {OperandNone, -1}, OpNeq: {OperandNone, -1},
	OpStrictEq: {OperandNone, -1}, OpStrictNeq: {OperandNone, -1},
	OpLt: {OperandNone, -1}, OpGt: {OperandNone, -1},
	OpLte: {OperandNone, -1}, OpGte: {OperandNone, -1},

	OpAnd: {OperandNone, -1}, OpOr: {OperandNone, -1},

	OpJump:        {OperandI16, 0},
	OpJumpIfFalse: {OperandI16, -1},

	OpCall:   {OperandCall, 0}, // net effect depends on arity; codegen tracks depth separately
	OpReturn: {OperandNone, 0},

	OpPop: {OperandNone, -1}, OpDup: {OperandNone, 1}, OpSwap: {OperandNone, 0},

	OpPrint: {OperandNone, -1},
}

// InstructionSize returns the total encoded size (opcode byte + operand
// bytes) of op.
func InstructionSize(op Op) int {
	spec, ok := Instructions[op]
	if !ok {
		return 1
	}
	switch spec.Operand {
	case OperandU8:
		return 2
	case OperandU16, OperandI16:
		return 3
	case OperandCall:
		return 4
	default:
		return 1
	}
}
