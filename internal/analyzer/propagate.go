package analyzer

// Propagate marks every function that must become failure-reporting. The seed
// set is the functions with at least one unguarded allocation site whose
// return shape is void or pointer-like; the mark then spreads depth-first
// through the reverse edges to every transitive caller. The entry symbol is
// marked but never recursed through: its external signature must stay stable.
//
// The marked check at entry makes the walk safe against mutual recursion and
// diamond call patterns; each node is visited at most once.
func Propagate(g *CallGraph) int {
	for i, fn := range g.Funcs {
		if !fn.HasAllocs || !fn.HasUnchecked() {
			continue
		}
		if fn.Shape != ShapeVoid && fn.Shape != ShapePointerLike {
			continue
		}
		mark(g, i)
	}

	marked := 0
	for _, fn := range g.Funcs {
		if fn.Marked {
			marked++
		}
	}
	return marked
}

func mark(g *CallGraph, i int) {
	fn := g.Funcs[i]
	if fn.Marked {
		return
	}
	fn.Marked = true
	if fn.IsEntry {
		return
	}
	for _, caller := range fn.Callers {
		mark(g, caller)
	}
}
