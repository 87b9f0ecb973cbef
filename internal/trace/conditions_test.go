package trace

import (
	"testing"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/ops"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

func newTestReducer() (*reduce.Reducer, *cellmem.Arena, *wordtable.Table) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	return reduce.New(a, altset.NewIDCounter(), tbl, nil), a, tbl
}

// buildAssert constructs assert(value, predicate) directly, the way
// compose_test.go builds closures by hand rather than through the parser.
func buildAssert(a *cellmem.Arena, tbl *wordtable.Table, value, predicate *cell.Cell) *cell.Cell {
	Register(tbl, &Journal{})
	c := a.Func(cell.OpAssert, 2, 0)
	c.Expr.Fill(value)
	c.Expr.Fill(predicate)
	return c
}

func TestAssertSucceedsOnTruePredicate(t *testing.T) {
	r, a, tbl := newTestReducer()
	c := buildAssert(a, tbl, a.Val(42), a.Symbol(cell.SymTrue))
	resp := r.Reduce(&c, reduce.Any())
	if resp != reduce.SUCCESS {
		t.Fatalf("reduce = %v, want SUCCESS", resp)
	}
	if c.Val.I != 42 {
		t.Fatalf("assert(42, True) = %d, want 42", c.Val.I)
	}
}

func TestAssertFailsOnFalsePredicate(t *testing.T) {
	r, a, tbl := newTestReducer()
	c := buildAssert(a, tbl, a.Val(42), a.Symbol(cell.SymFalse))
	resp := r.Reduce(&c, reduce.Any())
	if resp != reduce.FAIL {
		t.Fatalf("reduce = %v, want FAIL", resp)
	}
}

func TestSeqIgnoresFalsePredicateAndReturnsA(t *testing.T) {
	r, a, tbl := newTestReducer()
	Register(tbl, &Journal{})
	c := a.Func(cell.OpSeq, 2, 0)
	c.Expr.Fill(a.Val(7))
	c.Expr.Fill(a.Symbol(cell.SymFalse))
	resp := r.Reduce(&c, reduce.Any())
	if resp != reduce.SUCCESS {
		t.Fatalf("reduce = %v, want SUCCESS", resp)
	}
	if c.Val.I != 7 {
		t.Fatalf("seq(7, False) = %d, want 7", c.Val.I)
	}
}

func TestOtherwiseFallsThroughOnFailingA(t *testing.T) {
	r, a, tbl := newTestReducer()
	j := &Journal{}
	Register(tbl, j)

	failing := a.Func(cell.OpDiv, 2, 0)
	failing.Expr.Fill(a.Val(1))
	failing.Expr.Fill(a.Val(0))

	c := a.Func(cell.OpOtherwise, 2, 0)
	c.Expr.Fill(failing)
	c.Expr.Fill(a.Val(99))

	resp := r.Reduce(&c, reduce.Any())
	if resp != reduce.SUCCESS {
		t.Fatalf("reduce = %v, want SUCCESS", resp)
	}
	if c.Val.I != 99 {
		t.Fatalf("otherwise(1/0, 99) = %d, want 99", c.Val.I)
	}
	if len(j.Entries()) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(j.Entries()))
	}
}

func TestOtherwiseFailsOnSucceedingA(t *testing.T) {
	r, a, tbl := newTestReducer()
	Register(tbl, &Journal{})
	c := a.Func(cell.OpOtherwise, 2, 0)
	c.Expr.Fill(a.Val(5))
	c.Expr.Fill(a.Val(99))
	resp := r.Reduce(&c, reduce.Any())
	if resp != reduce.FAIL {
		t.Fatalf("reduce = %v, want FAIL", resp)
	}
}
