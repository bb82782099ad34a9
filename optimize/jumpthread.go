package optimize

import "github.com/machine-dialect/compiler/mir"

// ThreadJumps folds a Jump/CondJump whose target block is itself nothing
// but a single unconditional Jump into a direct jump to that block's
// target, repeating until no block in the chain is a simple relay. Works
// directly on mir.BasicBlock targets rather than reconstructing a CFG
// from flat bytecode.
func ThreadJumps(fn *mir.Function) {
	for _, b := range fn.CFG.Blocks {
		if len(b.Instructions) == 0 {
			continue
		}
		last := b.Instructions[len(b.Instructions)-1]
		switch term := last.(type) {
		case *mir.Jump:
			target := resolveRelay(term.Target)
			if target != term.Target {
				rewireSuccessor(fn, b, term.Target, target)
				term.Target = target
			}
		case *mir.CondJump:
			trueTarget := resolveRelay(term.TrueTarget)
			if trueTarget != term.TrueTarget {
				rewireSuccessor(fn, b, term.TrueTarget, trueTarget)
				term.TrueTarget = trueTarget
			}
			falseTarget := resolveRelay(term.FalseTarget)
			if falseTarget != term.FalseTarget {
				rewireSuccessor(fn, b, term.FalseTarget, falseTarget)
				term.FalseTarget = falseTarget
			}
		}
	}
}

// resolveRelay follows a chain of single-instruction unconditional-Jump
// blocks (with no Phi nodes of their own — a block with Phis is not a
// pure relay since a path through it is semantically distinct) to its
// ultimate target. Bounded by the CFG's own size to guarantee termination
// even on a malformed cyclic relay chain.
func resolveRelay(target *mir.BasicBlock) *mir.BasicBlock {
	seen := map[*mir.BasicBlock]bool{}
	cur := target
	for isPureRelay(cur) {
		if seen[cur] {
			break // cyclic relay chain; stop rather than loop forever
		}
		seen[cur] = true
		cur = cur.Instructions[0].(*mir.Jump).Target
	}
	return cur
}

func isPureRelay(b *mir.BasicBlock) bool {
	if len(b.Phis) != 0 || len(b.Instructions) != 1 {
		return false
	}
	_, ok := b.Instructions[0].(*mir.Jump)
	return ok
}

// rewireSuccessor updates from's successor edge from oldTarget to
// newTarget, and oldTarget/newTarget's predecessor lists to match — the
// relay block oldTarget may become unreachable, cleaned up by a
// subsequent EliminateDeadCode pass.
func rewireSuccessor(fn *mir.Function, from, oldTarget, newTarget *mir.BasicBlock) {
	newSuccs := make([]*mir.BasicBlock, 0, len(from.Succs))
	for _, s := range from.Succs {
		if s == oldTarget {
			newSuccs = append(newSuccs, newTarget)
		} else {
			newSuccs = append(newSuccs, s)
		}
	}
	from.Succs = newSuccs

	oldPreds := make([]*mir.BasicBlock, 0, len(oldTarget.Preds))
	for _, p := range oldTarget.Preds {
		if p != from {
			oldPreds = append(oldPreds, p)
		}
	}
	oldTarget.Preds = oldPreds

	newTarget.AddPredecessor(from)
}
