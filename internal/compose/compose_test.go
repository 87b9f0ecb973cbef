package compose

import (
	"testing"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/ops"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

func newTestReducer() (*reduce.Reducer, *cellmem.Arena) {
	a := cellmem.New(0)
	t := wordtable.New()
	ops.Register(t)
	Register(t)
	return reduce.New(a, altset.NewIDCounter(), t, nil), a
}

// quote1Plus builds the one-stage quotation `[1 +]`: a single `+` closure
// with its first argument already bound to 1 and one hole open.
func quote1Plus(a *cellmem.Arena) *cell.Cell {
	add := a.Func(cell.OpAdd, 2, 0)
	add.Expr.Fill(a.Val(1))
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{add}, QuoteIn: 1, QuoteOut: 1}
	return q
}

func quote2Times(a *cellmem.Arena) *cell.Cell {
	mul := a.Func(cell.OpMul, 2, 0)
	mul.Expr.Fill(a.Val(2))
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{mul}, QuoteIn: 1, QuoteOut: 1}
	return q
}

// TestApAppliesQuotation reproduces spec §8's `[1 +] 10 swap ap` -> `[11]`
// (the swap is a parser-level stack-order detail this test bypasses by
// building the ap closure with its arguments already in the right slots).
func TestApAppliesQuotation(t *testing.T) {
	r, a := newTestReducer()
	quote := quote1Plus(a)

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(quote)
	apCell.Expr.Fill(a.Val(10))

	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if apCell.Val.Kind != cell.VInt || apCell.Val.I != 11 {
		t.Fatalf("expected 11, got %+v", apCell.Val)
	}
}

// TestComposeThenApply reproduces spec §8's
// `[1 +] [2 *] . 3 swap ap` -> `[8]`: composing splices the two
// single-stage quotations so that applying 3 feeds `+` first, then `*`.
func TestComposeThenApply(t *testing.T) {
	r, a := newTestReducer()
	left := quote1Plus(a)
	right := quote2Times(a)

	composed := a.Func(cell.OpCompose, 2, 0)
	composed.Expr.Fill(left)
	composed.Expr.Fill(right)
	if resp := r.Reduce(&composed, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS composing, got %v", resp)
	}

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(composed)
	apCell.Expr.Fill(a.Val(3))
	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS applying, got %v", resp)
	}
	if apCell.Val.Kind != cell.VInt || apCell.Val.I != 8 {
		t.Fatalf("expected 8, got %+v", apCell.Val)
	}
}

// TestApDeliversSecondaryOutputOfFinalStage applies `[dup]` to 10 through
// an ap cell built with one dep slot: the final stage's extra output must
// come back through the dep, not be dropped (spec §4.F step 6's
// dep-pulling).
func TestApDeliversSecondaryOutputOfFinalStage(t *testing.T) {
	r, a := newTestReducer()
	dupStage := a.Func(cell.OpDup, 1, 1)
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{dupStage}, QuoteIn: 1, QuoteOut: 2}

	apCell := a.Func(cell.OpAp, 2, 1)
	apCell.Expr.Fill(q)
	apCell.Expr.Fill(a.Val(10))
	dep := a.Dep(apCell, 0)

	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if apCell.Val.I != 10 {
		t.Fatalf("expected primary 10, got %+v", apCell.Val)
	}
	if resp := r.Reduce(&dep, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS forcing the dep, got %v", resp)
	}
	if dep.Val.I != 10 {
		t.Fatalf("expected dep 10, got %+v", dep.Val)
	}
}

// TestApExtendsUndersuppliedStageWithPlaceholders applies `[+]` (both
// holes open) to a single value: the second hole is filled with a row
// placeholder, and forcing the stage reports DELAY rather than computing
// on an unknown (spec §4.F step 4's placeholder extension).
func TestApExtendsUndersuppliedStageWithPlaceholders(t *testing.T) {
	r, a := newTestReducer()
	addStage := a.Func(cell.OpAdd, 2, 0)
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{addStage}, QuoteIn: 2, QuoteOut: 1}

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(q)
	apCell.Expr.Fill(a.Val(3))

	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.DELAY {
		t.Fatalf("expected DELAY applying an under-supplied stage, got %v", resp)
	}
}

// TestApRowListAbsorbsUnusedValue applies a row list whose stages never
// consume the input: the first-slot placeholder stands for the residual
// stack, so the value is absorbed rather than failing.
func TestApRowListAbsorbsUnusedValue(t *testing.T) {
	r, a := newTestReducer()
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{
		Kind:    cell.VList,
		Flags:   cell.FlagRow,
		List:    []*cell.Cell{a.RowPlaceholder(), a.Val(5)},
		QuoteIn: 1, QuoteOut: 1,
	}

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(q)
	apCell.Expr.Fill(a.Val(10))

	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if apCell.Val.I != 5 {
		t.Fatalf("expected 5, got %+v", apCell.Val)
	}
}

// TestApPlainZeroInputQuoteRejectsValue: without a row placeholder, a
// quotation that consumes nothing cannot be applied to a value.
func TestApPlainZeroInputQuoteRejectsValue(t *testing.T) {
	r, a := newTestReducer()
	q := a.Alloc()
	q.Op = cell.OpValue
	q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{a.Val(5)}, QuoteIn: 0, QuoteOut: 1}

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(q)
	apCell.Expr.Fill(a.Val(10))

	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.FAIL {
		t.Fatalf("expected FAIL, got %v", resp)
	}
}

// TestComposeExtendsToRequestedInputsAsRowList reduces a `.` cell under a
// request expecting more inputs than the composed list declares: the
// result must be a row list whose first slot carries the residual (spec
// §4.F step 4 at the list level).
func TestComposeExtendsToRequestedInputsAsRowList(t *testing.T) {
	r, a := newTestReducer()
	mk := func(i int64) *cell.Cell {
		q := a.Alloc()
		q.Op = cell.OpValue
		q.Val = &cell.Value{Kind: cell.VList, List: []*cell.Cell{a.Val(i)}, QuoteIn: 0, QuoteOut: 1}
		return q
	}

	composed := a.Func(cell.OpCompose, 2, 0)
	composed.Expr.Fill(mk(5))
	composed.Expr.Fill(mk(6))

	if resp := r.Reduce(&composed, reduce.Request{Type: reduce.TList, ExpectedIn: 3}); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if !cell.IsRowList(composed) {
		t.Fatalf("expected a row list, got %+v", composed.Val)
	}
	if composed.Val.QuoteIn != 3 {
		t.Fatalf("expected QuoteIn 3 after extension, got %d", composed.Val.QuoteIn)
	}
}

// TestPushrAppendsStage builds `[1 +]` then pushr's a `*2` stage onto its
// right end directly (without going through `.`), and confirms applying 3
// still threads through both stages.
func TestPushrAppendsStage(t *testing.T) {
	r, a := newTestReducer()
	quote := quote1Plus(a)
	mul := a.Func(cell.OpMul, 2, 0)
	mul.Expr.Fill(a.Val(2))

	pushr := a.Func(cell.OpPushr, 2, 0)
	pushr.Expr.Fill(quote)
	pushr.Expr.Fill(mul)
	if resp := r.Reduce(&pushr, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if cell.ListSize(pushr) != 2 {
		t.Fatalf("expected a 2-stage quotation, got %d elements", cell.ListSize(pushr))
	}

	apCell := a.Func(cell.OpAp, 2, 0)
	apCell.Expr.Fill(pushr)
	apCell.Expr.Fill(a.Val(3))
	if resp := r.Reduce(&apCell, reduce.Any()); resp != reduce.SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if apCell.Val.I != 8 {
		t.Fatalf("expected 8, got %+v", apCell.Val)
	}
}
