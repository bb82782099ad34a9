package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the module's code.
func (m *Module) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; module %q build=%s\n", m.Name, m.BuildID)
	if len(m.StringTable) > 0 {
		sb.WriteString("; strings:\n")
		for i, s := range m.StringTable {
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			fmt.Fprintf(&sb, ";   [%3d] %q\n", i, display)
		}
	}
	if len(m.Constants) > 0 {
		sb.WriteString("; constants:\n")
		for i, c := range m.Constants {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, describeConstant(m, c))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(m.Main.disassemble("main", m))
	for _, fn := range m.Functions {
		sb.WriteString("\n")
		sb.WriteString(fn.disassemble(fn.Name, m))
	}
	return sb.String()
}

func describeConstant(m *Module, c Constant) string {
	switch c.Tag {
	case ConstEmpty:
		return "Empty"
	case ConstInt:
		return fmt.Sprintf("Int(%d)", c.Int)
	case ConstBool:
		return fmt.Sprintf("Bool(%t)", c.Int != 0)
	case ConstFloat:
		return fmt.Sprintf("Float(%g)", c.Float)
	case ConstStringRef:
		return fmt.Sprintf("StringRef(%q)", stringAt(m, c.StrIdx))
	case ConstURLRef:
		return fmt.Sprintf("UrlRef(%q)", stringAt(m, c.StrIdx))
	case ConstFunctionRef:
		return fmt.Sprintf("FunctionRef(#%d)", c.FuncIdx)
	default:
		return "???"
	}
}

func stringAt(m *Module, idx uint32) string {
	if int(idx) < len(m.StringTable) {
		return m.StringTable[idx]
	}
	return "<out-of-range>"
}

func (c *Chunk) disassemble(name string, m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; === %s === (arity=%d locals=%d)\n", name, c.Arity, c.Locals)
	pc := 0
	for pc < len(c.Code) {
		op := Op(c.Code[pc])
		spec, known := Instructions[op]
		line, col := c.LineFor(pc)
		fmt.Fprintf(&sb, "%04d  %-16s", pc, op)
		if known {
			switch spec.Operand {
			case OperandU8:
				fmt.Fprintf(&sb, " %d", c.Code[pc+1])
			case OperandU16:
				v := binary.LittleEndian.Uint16(c.Code[pc+1:])
				if op == OpLoadConst && int(v) < len(m.Constants) {
					fmt.Fprintf(&sb, " %d  ; %s", v, describeConstant(m, m.Constants[v]))
				} else {
					fmt.Fprintf(&sb, " %d", v)
				}
			case OperandI16:
				v := int16(binary.LittleEndian.Uint16(c.Code[pc+1:]))
				// Offset is relative to the pc immediately following this
				// instruction, matching the VM's jump semantics (runFrame in vm/vm.go).
				fmt.Fprintf(&sb, " %+d  ; -> %04d", v, pc+InstructionSize(op)+int(v))
			case OperandCall:
				calleeIdx := binary.LittleEndian.Uint16(c.Code[pc+1:])
				argc := c.Code[pc+3]
				if int(calleeIdx) < len(BuiltinNames) {
					fmt.Fprintf(&sb, " %s/%d", BuiltinNames[calleeIdx], argc)
				} else {
					fmt.Fprintf(&sb, " fn#%d/%d", calleeIdx-uint16(len(BuiltinNames)), argc)
				}
			}
		}
		if line > 0 {
			fmt.Fprintf(&sb, "   ; line %d:%d", line, col)
		}
		sb.WriteString("\n")
		pc += InstructionSize(op)
	}
	return sb.String()
}
