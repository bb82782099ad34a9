package mir

import "fmt"

// BasicBlock is a maximal straight-line instruction sequence ending in a
// terminator (Jump/CondJump/Return).
type BasicBlock struct {
	Label        string
	Phis         []*Phi
	Instructions []Instruction
	Preds        []*BasicBlock
	Succs        []*BasicBlock
}

// NewBasicBlock creates an empty block with the given label.
func NewBasicBlock(label string) *BasicBlock {
	return &BasicBlock{Label: label}
}

// AddInstruction appends a regular instruction, or a Phi to the Phis list
// (phi nodes are always logically "first" in the block regardless of
// insertion order).
func (b *BasicBlock) AddInstruction(instr Instruction) {
	if phi, ok := instr.(*Phi); ok {
		b.Phis = append(b.Phis, phi)
		return
	}
	b.Instructions = append(b.Instructions, instr)
}

// Terminator returns the block's last instruction if it is a control-flow
// terminator, or nil.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	switch last.(type) {
	case *Jump, *CondJump, *Return:
		return last
	default:
		return nil
	}
}

func (b *BasicBlock) IsTerminated() bool { return b.Terminator() != nil }

func (b *BasicBlock) AddPredecessor(p *BasicBlock) {
	for _, existing := range b.Preds {
		if existing == p {
			return
		}
	}
	b.Preds = append(b.Preds, p)
}

func (b *BasicBlock) AddSuccessor(s *BasicBlock) {
	for _, existing := range b.Succs {
		if existing == s {
			return
		}
	}
	b.Succs = append(b.Succs, s)
}

// AllInstructions returns Phis followed by regular instructions, the order
// in which codegen must linearise them.
func (b *BasicBlock) AllInstructions() []Instruction {
	out := make([]Instruction, 0, len(b.Phis)+len(b.Instructions))
	for _, p := range b.Phis {
		out = append(out, p)
	}
	out = append(out, b.Instructions...)
	return out
}

// CFG owns every block of one function and the entry point.
type CFG struct {
	Entry       *BasicBlock
	Blocks      []*BasicBlock
	nextLabelID int
}

func NewCFG() *CFG {
	return &CFG{}
}

// GenerateLabel returns a fresh, CFG-unique block label.
func (c *CFG) GenerateLabel(prefix string) string {
	id := c.nextLabelID
	c.nextLabelID++
	return fmt.Sprintf("%s%d", prefix, id)
}

// AddBlock registers a block with the CFG. The first block added becomes
// Entry if one isn't already set.
func (c *CFG) AddBlock(b *BasicBlock) *BasicBlock {
	c.Blocks = append(c.Blocks, b)
	if c.Entry == nil {
		c.Entry = b
	}
	return b
}

// NewBlock allocates and registers a fresh block with an auto label.
func (c *CFG) NewBlock(prefix string) *BasicBlock {
	return c.AddBlock(NewBasicBlock(c.GenerateLabel(prefix)))
}

// ConnectBlocks links from→to as predecessor/successor.
func (c *CFG) ConnectBlocks(from, to *BasicBlock) {
	from.AddSuccessor(to)
	to.AddPredecessor(from)
}

// ExitBlocks returns every block whose terminator is a Return (or that has
// no successors at all — an unreachable but still-exitable block).
func (c *CFG) ExitBlocks() []*BasicBlock {
	var out []*BasicBlock
	for _, b := range c.Blocks {
		if _, ok := b.Terminator().(*Return); ok {
			out = append(out, b)
			continue
		}
		if len(b.Succs) == 0 {
			out = append(out, b)
		}
	}
	return out
}
