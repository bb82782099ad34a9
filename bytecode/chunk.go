package bytecode

import (
	"github.com/fxamacker/cbor/v2"
)

// LineRun is one run-length entry of a chunk's line-info table: every pc
// in [StartPC, EndPC) maps to (Line, Column).
type LineRun struct {
	StartPC int
	EndPC   int
	Line    int
	Column  int
}

// Chunk is a compiled function body: its code bytes plus enough metadata
// to execute it as a call frame — arity, local-slot count, code, and a
// run-length line table.
type Chunk struct {
	Name   string
	Arity  uint8
	Locals uint16
	Code   []byte
	Lines  []LineRun
}

// NewChunk creates an empty chunk ready for codegen to append to.
func NewChunk(name string, arity uint8, locals uint16) *Chunk {
	return &Chunk{Name: name, Arity: arity, Locals: locals}
}

// Emit appends opcode byte op with no operand and records its source line,
// returning the pc it was written at.
func (c *Chunk) Emit(op Op, line, col int) int {
	pc := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.recordLine(pc, pc+1, line, col)
	return pc
}

// EmitU8 appends op plus a one-byte operand.
func (c *Chunk) EmitU8(op Op, operand uint8, line, col int) int {
	pc := len(c.Code)
	c.Code = append(c.Code, byte(op), operand)
	c.recordLine(pc, pc+2, line, col)
	return pc
}

// EmitU16 appends op plus a little-endian two-byte unsigned operand,
// consistent with the module header's flags bit0 "little-endian" marker.
func (c *Chunk) EmitU16(op Op, operand uint16, line, col int) int {
	pc := len(c.Code)
	c.Code = append(c.Code, byte(op), byte(operand), byte(operand>>8))
	c.recordLine(pc, pc+3, line, col)
	return pc
}

// EmitI16 appends op plus a signed 16-bit little-endian operand — used for
// jump targets, patched later by PatchI16 once the true offset is known.
func (c *Chunk) EmitI16(op Op, operand int16, line, col int) int {
	return c.EmitU16(op, uint16(operand), line, col)
}

// EmitCall appends OpCall with its two-part operand: callee's index into
// the built-in/function call table, then the argument count.
func (c *Chunk) EmitCall(calleeIdx uint16, argc uint8, line, col int) int {
	pc := len(c.Code)
	c.Code = append(c.Code, byte(OpCall), byte(calleeIdx), byte(calleeIdx>>8), argc)
	c.recordLine(pc, pc+4, line, col)
	return pc
}

// PatchI16 rewrites the operand bytes at the instruction starting at pc
// (pc points at the opcode byte; the operand follows immediately) — used
// by codegen's jump-patching pass once a forward jump's target block has
// been placed.
func (c *Chunk) PatchI16(pc int, operand int16) {
	u := uint16(operand)
	c.Code[pc+1] = byte(u)
	c.Code[pc+2] = byte(u >> 8)
}

func (c *Chunk) recordLine(startPC, endPC, line, col int) {
	if n := len(c.Lines); n > 0 {
		last := &c.Lines[n-1]
		if last.Line == line && last.Column == col && last.EndPC == startPC {
			last.EndPC = endPC
			return
		}
	}
	c.Lines = append(c.Lines, LineRun{StartPC: startPC, EndPC: endPC, Line: line, Column: col})
}

// LineFor returns the (line, column) recorded for pc, or (0, 0) if none.
func (c *Chunk) LineFor(pc int) (int, int) {
	for _, r := range c.Lines {
		if pc >= r.StartPC && pc < r.EndPC {
			return r.Line, r.Column
		}
	}
	return 0, 0
}

// encodeLineInfo CBOR-encodes the chunk's line-info run-length table,
// using github.com/fxamacker/cbor/v2 rather than a
// hand-rolled varint scheme, matching the domain stack's wiring.
func encodeLineInfo(lines []LineRun) ([]byte, error) {
	return cbor.Marshal(lines)
}

func decodeLineInfo(data []byte) ([]LineRun, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var lines []LineRun
	if err := cbor.Unmarshal(data, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
