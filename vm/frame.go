package vm

import "github.com/machine-dialect/compiler/bytecode"

// frame is one call's activation record: its chunk, its locals (sized to
// chunk.Locals), and its private operand stack.
type frame struct {
	chunk  *bytecode.Chunk
	locals []Value
	stack  []Value
	ip     int
}

func newFrame(c *bytecode.Chunk) *frame {
	return &frame{chunk: c, locals: make([]Value, c.Locals)}
}

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

// popN returns the top n values in push order (oldest first), for CALL's
// left-to-right argument list.
func (f *frame) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	start := len(f.stack) - n
	out := append([]Value(nil), f.stack[start:]...)
	f.stack = f.stack[:start]
	return out
}

func (f *frame) readU8() uint8 {
	v := f.chunk.Code[f.ip]
	f.ip++
	return v
}

func (f *frame) readU16() uint16 {
	v := uint16(f.chunk.Code[f.ip]) | uint16(f.chunk.Code[f.ip+1])<<8
	f.ip += 2
	return v
}

func (f *frame) readI16() int16 {
	return int16(f.readU16())
}
