package ops

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

func registerControl(t *wordtable.Table) {
	t.RegisterPrimitive("id", cell.OpID, 1, 0, reduce.HandlerFunc(idHandler))
	t.RegisterPrimitive("drop", cell.OpDrop, 2, 0, reduce.HandlerFunc(dropHandler))
	t.RegisterPrimitive("dup", cell.OpDup, 1, 1, reduce.HandlerFunc(dupHandler))
	t.RegisterPrimitive("swap", cell.OpSwap, 2, 1, reduce.HandlerFunc(swapHandler))
	t.RegisterPrimitive("|", cell.OpAlt, 2, 0, reduce.HandlerFunc(altHandler))
}

// spliceAlt appends extra onto the end of head's alt chain, or sets it
// directly if head has none yet.
func spliceAlt(head, extra *cell.Cell) {
	if extra == nil {
		return
	}
	if head.Alt == nil {
		head.Alt = extra
		return
	}
	tail := head
	for tail.Alt != nil {
		tail = tail.Alt
	}
	tail.Alt = extra
}

// idHandler implements `id` (spec §4.E's short-circuit): an ordinary
// (untagged) id collapses transparently into its argument, preserving the
// argument's own Alt chain and splicing the id cell's Alt onto its tail. A
// tagged id (built by `|`'s handler) instead forces its argument and ORs
// its alt-set tag into the result before installing a value (spec's
// nondeterministic choice).
func idHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)

	if c.Expr.AltField == 0 {
		arg := args[0]
		spliceAlt(arg, c.Alt)
		old := c
		*cp = arg
		r.Arena.Collapse(old)
		return reduce.RETRY
	}

	resp := r.Reduce(&args[0], req)
	if resp != reduce.SUCCESS {
		return resp
	}
	v := r.Arena.Steal(args[0])
	r.Arena.Drop(args[0])
	args[0] = nil
	tagged := altset.WithBranch(v.AltSet, c.Expr.AltField-1, c.Expr.AltBranch)
	v.AltSet = tagged
	r.Arena.StoreReduced(cp, v, tagged)
	return reduce.SUCCESS
}

// dropHandler implements `drop`: discard the second argument, replace *cp
// with the first (spec's 2-in-1-out `drop`, documented informally as
// "drop the top, keep underneath").
func dropHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	keep, discard := args[0], args[1]
	r.Arena.Drop(discard)
	spliceAlt(keep, c.Alt)
	old := c
	*cp = keep
	r.Arena.Collapse(old)
	return reduce.RETRY
}

// dupHandler implements `dup`: forces its argument once and installs two
// independent copies of the resulting value, one as the primary result and
// one as the dep this closure was built with (spec's `dup`). This is an
// eager simplification of the fully lazy dup the original shares an
// unreduced cell for.
func dupHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	resp := r.Reduce(&args[0], reduce.Any())
	if resp != reduce.SUCCESS {
		return resp
	}
	v := r.Arena.Steal(args[0])
	r.Arena.Drop(args[0])
	args[0] = nil

	// Primary first: installing a dep releases its hold on this cell, so
	// this cell must already be a value by then.
	deps := c.Expr.Deps
	r.Arena.StoreReduced(cp, v, v.AltSet)
	if len(deps) > 0 && deps[0] != nil {
		dep := deps[0]
		depVal := r.Arena.CopyValue(v)
		r.Arena.StoreReduced(&dep, depVal, depVal.AltSet)
	}
	return reduce.SUCCESS
}

// swapHandler implements `swap`: forces both arguments, installing the
// first into this closure's dep and the second as the primary result
// (spec's `swap`; the reduce.Reducer.forceDep/StoreReduced contract this
// relies on is exercised directly by internal/reduce's
// TestForceDepReducesParentAndSeesInstalledValue).
func swapHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	resp := r.Reduce(&args[0], reduce.Any())
	if resp != reduce.SUCCESS {
		return resp
	}
	resp = r.Reduce(&args[1], reduce.Any())
	if resp != reduce.SUCCESS {
		return resp
	}
	v1 := r.Arena.Steal(args[0])
	v2 := r.Arena.Steal(args[1])
	r.Arena.Drop(args[0])
	r.Arena.Drop(args[1])
	args[0], args[1] = nil, nil

	// Primary first, for the same install-order reason dupHandler gives.
	deps := c.Expr.Deps
	r.Arena.StoreReduced(cp, v2, v2.AltSet)
	if len(deps) > 0 && deps[0] != nil {
		dep := deps[0]
		r.Arena.StoreReduced(&dep, v1, v1.AltSet)
	} else {
		r.Arena.ReleaseValue(v1)
	}
	return reduce.SUCCESS
}

// altHandler implements `|`, the nondeterministic choice operator (spec
// §4.B, §8's `1 2 | 3 +` -> `[4, 5]`): it allocates a fresh alt-set field,
// wraps each of its two operands in a tagging id carrying that field's
// branch 0/1, links them into an Alt chain, and collapses itself into the
// head (spec §4.E's `id` short-circuit, reused here for the installation).
func altHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	left, right := args[0], args[1]

	field, err := r.IDs.Alloc(1)
	if err != nil {
		return reduce.FAIL
	}

	leftTagged := r.Arena.IdTagged(left, field, 0)
	rightTagged := r.Arena.IdTagged(right, field, 1)
	leftTagged.Alt = rightTagged
	spliceAlt(rightTagged, c.Alt)

	old := c
	*cp = leftTagged
	r.Arena.Collapse(old)
	return reduce.RETRY
}
