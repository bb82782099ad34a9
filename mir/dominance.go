package mir

// Dominators computes, for every block in the CFG, the set of blocks that
// dominate it, via the classic iterative dataflow fixpoint (not
// Lengauer-Tarjan) — adequate at the scale of a single function's CFG.
func (c *CFG) Dominators() map[*BasicBlock]map[*BasicBlock]bool {
	dom := make(map[*BasicBlock]map[*BasicBlock]bool, len(c.Blocks))

	all := make(map[*BasicBlock]bool, len(c.Blocks))
	for _, b := range c.Blocks {
		all[b] = true
	}

	for _, b := range c.Blocks {
		if b == c.Entry {
			dom[b] = map[*BasicBlock]bool{c.Entry: true}
		} else {
			dom[b] = cloneSet(all)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range c.Blocks {
			if b == c.Entry {
				continue
			}
			var newDom map[*BasicBlock]bool
			for i, pred := range b.Preds {
				if i == 0 {
					newDom = cloneSet(dom[pred])
					continue
				}
				newDom = intersect(newDom, dom[pred])
			}
			if newDom == nil {
				newDom = map[*BasicBlock]bool{}
			}
			newDom[b] = true
			if !setEqual(newDom, dom[b]) {
				dom[b] = newDom
				changed = true
			}
		}
	}
	return dom
}

// ImmediateDominator returns b's immediate dominator (the unique strict
// dominator closest to b), or nil for the entry block.
func (c *CFG) ImmediateDominator(b *BasicBlock, dom map[*BasicBlock]map[*BasicBlock]bool) *BasicBlock {
	if b == c.Entry {
		return nil
	}
	strict := make([]*BasicBlock, 0, len(dom[b]))
	for d := range dom[b] {
		if d != b {
			strict = append(strict, d)
		}
	}
	// The immediate dominator is the one strict dominator that does not
	// strictly dominate any other strict dominator of b.
	for _, cand := range strict {
		isIdom := true
		for _, other := range strict {
			if other == cand {
				continue
			}
			if dom[other][cand] {
				isIdom = false
				break
			}
		}
		if isIdom {
			return cand
		}
	}
	return nil
}

// DominanceFrontiers computes, for every block, the set of blocks in its
// dominance frontier: walks from each predecessor of a join block up the
// idom chain, marking every block on that walk (stopping once the walk
// reaches the join's own idom) as having the join block in its frontier.
func (c *CFG) DominanceFrontiers() map[*BasicBlock]map[*BasicBlock]bool {
	dom := c.Dominators()
	idom := make(map[*BasicBlock]*BasicBlock, len(c.Blocks))
	for _, b := range c.Blocks {
		idom[b] = c.ImmediateDominator(b, dom)
	}

	df := make(map[*BasicBlock]map[*BasicBlock]bool, len(c.Blocks))
	for _, b := range c.Blocks {
		df[b] = map[*BasicBlock]bool{}
	}

	for _, b := range c.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, pred := range b.Preds {
			runner := pred
			for runner != nil && runner != idom[b] {
				df[runner][b] = true
				runner = idom[runner]
			}
		}
	}
	return df
}

func cloneSet(s map[*BasicBlock]bool) map[*BasicBlock]bool {
	out := make(map[*BasicBlock]bool, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

func intersect(a, b map[*BasicBlock]bool) map[*BasicBlock]bool {
	out := map[*BasicBlock]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func setEqual(a, b map[*BasicBlock]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
