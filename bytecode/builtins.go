package bytecode

// BuiltinNames is the fixed, ordered call table every built-in occupies a
// stable low index in; CALL's callee index addresses this table before it
// addresses user-defined functions (see FunctionCalleeBase), so the VM never
// needs a chunk or constant-pool entry to dispatch a built-in.
var BuiltinNames = []string{
	"print", "say", "type", "len", "str", "int", "float", "bool",
	"abs", "min", "max", "is_empty", "round",
}

var builtinIndex = func() map[string]uint16 {
	m := make(map[string]uint16, len(BuiltinNames))
	for i, n := range BuiltinNames {
		m[n] = uint16(i)
	}
	return m
}()

// BuiltinIndex returns name's slot in BuiltinNames, if it names a built-in.
func BuiltinIndex(name string) (uint16, bool) {
	idx, ok := builtinIndex[name]
	return idx, ok
}

// FunctionCalleeBase is the first callee index available to user-defined
// functions, immediately past the built-in table.
func FunctionCalleeBase() uint16 { return uint16(len(BuiltinNames)) }
