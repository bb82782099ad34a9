package optimize

import "github.com/machine-dialect/compiler/mir"

// hasSideEffect reports whether instr must execute even if its result is
// unused — Call (may have side effects the optimizer can't see into),
// StoreVar, Print, and every control-flow terminator.
func hasSideEffect(instr mir.Instruction) bool {
	switch instr.(type) {
	case *mir.Call, *mir.StoreVar, *mir.Print,
		*mir.Jump, *mir.CondJump, *mir.Return:
		return true
	default:
		return false
	}
}

// EliminateDeadCode removes instructions whose defined value is never used
// by a later instruction or Phi and that have no side effect, iterating to
// a fixpoint so removing one dead def can expose its operands as newly
// dead in turn.
func EliminateDeadCode(fn *mir.Function) {
	changed := true
	for changed {
		changed = false
		used := collectUses(fn)
		for _, b := range fn.CFG.Blocks {
			kept := make([]mir.Instruction, 0, len(b.Instructions))
			for _, instr := range b.Instructions {
				if hasSideEffect(instr) {
					kept = append(kept, instr)
					continue
				}
				defs := instr.Defs()
				if len(defs) == 0 {
					kept = append(kept, instr)
					continue
				}
				live := false
				for _, d := range defs {
					if used[valueKey(d)] {
						live = true
						break
					}
				}
				if live {
					kept = append(kept, instr)
				} else {
					changed = true
				}
			}
			b.Instructions = kept

			keptPhis := make([]*mir.Phi, 0, len(b.Phis))
			for _, phi := range b.Phis {
				if used[valueKey(phi.Dest)] {
					keptPhis = append(keptPhis, phi)
				} else {
					changed = true
				}
			}
			b.Phis = keptPhis
		}
	}
	removeUnreachableBlocks(fn)
}

// collectUses gathers every value read by any instruction or phi in fn.
func collectUses(fn *mir.Function) map[string]bool {
	used := map[string]bool{}
	for _, b := range fn.CFG.Blocks {
		for _, phi := range b.Phis {
			for _, v := range phi.Uses() {
				used[valueKey(v)] = true
			}
		}
		for _, instr := range b.Instructions {
			for _, v := range instr.Uses() {
				used[valueKey(v)] = true
			}
		}
	}
	return used
}

// removeUnreachableBlocks drops blocks no longer reachable from the entry
// (e.g. an If join both of whose arms returned) and repairs every
// remaining block's predecessor/successor lists and Phi incoming lists
// accordingly.
func removeUnreachableBlocks(fn *mir.Function) {
	reachable := map[*mir.BasicBlock]bool{fn.CFG.Entry: true}
	queue := []*mir.BasicBlock{fn.CFG.Entry}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range b.Succs {
			if !reachable[s] {
				reachable[s] = true
				queue = append(queue, s)
			}
		}
	}

	kept := make([]*mir.BasicBlock, 0, len(fn.CFG.Blocks))
	for _, b := range fn.CFG.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
	}
	fn.CFG.Blocks = kept

	for _, b := range kept {
		preds := make([]*mir.BasicBlock, 0, len(b.Preds))
		for _, p := range b.Preds {
			if reachable[p] {
				preds = append(preds, p)
			}
		}
		b.Preds = preds

		succs := make([]*mir.BasicBlock, 0, len(b.Succs))
		for _, s := range b.Succs {
			if reachable[s] {
				succs = append(succs, s)
			}
		}
		b.Succs = succs

		for _, phi := range b.Phis {
			incoming := make([]mir.PhiIncoming, 0, len(phi.Incoming))
			for _, in := range phi.Incoming {
				if reachable[in.Pred] {
					incoming = append(incoming, in)
				}
			}
			phi.Incoming = incoming
		}
	}
}
