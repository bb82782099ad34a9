package mir

// Function is one MIR function: its formal parameters, every Variable
// declared in its body, and the CFG of basic blocks implementing it.
type Function struct {
	Name    string
	Params  []Variable
	Locals  []Variable
	Outputs []Type // not filled in by LowerProgram, so always empty
	CFG     *CFG
	NextTmp int
}

// NewFunction creates an empty function with one entry block.
func NewFunction(name string) *Function {
	f := &Function{Name: name, CFG: NewCFG()}
	f.CFG.AddBlock(NewBasicBlock("entry"))
	return f
}

// NewTemp allocates a fresh SSA temporary of the given type.
func (f *Function) NewTemp(t Type) Temp {
	id := f.NextTmp
	f.NextTmp++
	return Temp{ID: id, Ty: t}
}

// DeclareLocal registers name as a function-local variable if not already
// present and returns its Variable handle.
func (f *Function) DeclareLocal(name string, t Type) Variable {
	for _, v := range f.Locals {
		if v.Name == name {
			return v
		}
	}
	v := Variable{Name: name, Ty: t}
	f.Locals = append(f.Locals, v)
	return v
}

// Module is the whole compiled program: an implicit `main` function plus
// every user-defined Action/Interaction, grounded on spec's "top-level
// program is treated as an implicit main".
type Module struct {
	Main      *Function
	Functions map[string]*Function
	// Public records which Functions are Interactions (spec's externally
	// callable definitions) rather than private Actions.
	Public map[string]bool
}

func NewModule() *Module {
	return &Module{Main: NewFunction("main"), Functions: map[string]*Function{}, Public: map[string]bool{}}
}
