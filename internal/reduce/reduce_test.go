package reduce

import (
	"testing"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
)

// fakeTable is a minimal Table for exercising the reducer loop in
// isolation from the real operator implementations in package ops.
type fakeTable struct {
	handlers map[cell.OpTag]Handler
	funcs    map[string]*cell.Entry
}

func newFakeTable() *fakeTable {
	return &fakeTable{handlers: map[cell.OpTag]Handler{}, funcs: map[string]*cell.Entry{}}
}

func (t *fakeTable) Lookup(op cell.OpTag) (Handler, bool) {
	h, ok := t.handlers[op]
	return h, ok
}

func (t *fakeTable) LookupFunc(name string) (*cell.Entry, bool) {
	e, ok := t.funcs[name]
	return e, ok
}

func newTestReducer(t *fakeTable) (*Reducer, *cellmem.Arena) {
	a := cellmem.New(0)
	return New(a, altset.NewIDCounter(), t, nil), a
}

// alwaysSucceedsWithInt installs a fixed int result, dropping args.
func alwaysSucceedsWithInt(n int64) HandlerFunc {
	return func(r *Reducer, cp **cell.Cell, req Request) Response {
		c := *cp
		for _, a := range cell.ClosureArgs(c) {
			r.Arena.Drop(a)
		}
		r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VInt, I: n}, 0)
		return SUCCESS
	}
}

func alwaysFails() HandlerFunc {
	return func(r *Reducer, cp **cell.Cell, req Request) Response {
		return FAIL
	}
}

func TestReduceSuccessOnAlreadyReducedValue(t *testing.T) {
	tbl := newFakeTable()
	r, a := newTestReducer(tbl)
	v := a.Val(7)
	resp := r.Reduce(&v, Any())
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS reducing an already-reduced value, got %v", resp)
	}
}

func TestReduceTypeMismatchOnValueFails(t *testing.T) {
	tbl := newFakeTable()
	r, a := newTestReducer(tbl)
	v := a.Val(7)
	resp := r.Reduce(&v, Request{Type: TFloat})
	if resp != FAIL {
		t.Fatalf("expected FAIL on type mismatch, got %v", resp)
	}
	if !cell.IsFail(v) {
		t.Fatalf("expected the cell to become the fail sentinel once no alternate remains")
	}
}

func TestReduceDispatchesToHandler(t *testing.T) {
	tbl := newFakeTable()
	tbl.handlers[cell.OpAdd] = alwaysSucceedsWithInt(3)
	r, a := newTestReducer(tbl)

	c := a.Func(cell.OpAdd, 2, 0)
	c.Expr.Fill(a.Val(1))
	c.Expr.Fill(a.Val(2))

	resp := r.Reduce(&c, Any())
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if c.Val == nil || c.Val.I != 3 {
		t.Fatalf("expected installed result 3, got %+v", c.Val)
	}
}

func TestReduceUnknownOpFailsGracefully(t *testing.T) {
	tbl := newFakeTable()
	r, a := newTestReducer(tbl)
	c := a.Func(cell.OpAdd, 0, 0)
	resp := r.Reduce(&c, Any())
	if resp != FAIL {
		t.Fatalf("expected FAIL for an unregistered op, got %v", resp)
	}
}

func TestReduceRetryLoopsBackToDispatch(t *testing.T) {
	tbl := newFakeTable()
	retried := false
	tbl.handlers[cell.OpID] = HandlerFunc(func(r *Reducer, cp **cell.Cell, req Request) Response {
		if !retried {
			retried = true
			// rewrite into a successful op and retry.
			(*cp).Op = cell.OpAdd
			return RETRY
		}
		return SUCCESS
	})
	tbl.handlers[cell.OpAdd] = HandlerFunc(func(r *Reducer, cp **cell.Cell, req Request) Response {
		r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VInt, I: 9}, 0)
		return SUCCESS
	})

	r, a := newTestReducer(tbl)
	c := a.Func(cell.OpID, 0, 0)
	resp := r.Reduce(&c, Any())
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS after RETRY rewrite, got %v", resp)
	}
	if c.Val.I != 9 {
		t.Fatalf("expected retried handler's result, got %+v", c.Val)
	}
}

func TestReduceDelayPropagates(t *testing.T) {
	tbl := newFakeTable()
	tbl.handlers[cell.OpPrint] = HandlerFunc(func(r *Reducer, cp **cell.Cell, req Request) Response {
		return DELAY
	})
	r, a := newTestReducer(tbl)
	c := a.Func(cell.OpPrint, 0, 0)
	if resp := r.Reduce(&c, Any()); resp != DELAY {
		t.Fatalf("expected DELAY, got %v", resp)
	}
}

func TestReduceFallsBackToAlternateOnFail(t *testing.T) {
	tbl := newFakeTable()
	tbl.handlers[cell.OpAdd] = alwaysFails()
	r, a := newTestReducer(tbl)

	primary := a.Func(cell.OpAdd, 0, 0)
	alt := a.Val(42)
	primary.Alt = alt // a fresh assignment is a transfer, like Fill: no extra Ref

	resp := r.Reduce(&primary, Any())
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS via fallback alternate, got %v", resp)
	}
	if primary.Val == nil || primary.Val.I != 42 {
		t.Fatalf("expected *cp to become the surviving alternate, got %+v", primary)
	}
}

func TestReduceExhaustedAltChainInstallsFailSentinel(t *testing.T) {
	tbl := newFakeTable()
	tbl.handlers[cell.OpAdd] = alwaysFails()
	r, a := newTestReducer(tbl)

	c := a.Func(cell.OpAdd, 0, 0)
	resp := r.Reduce(&c, Any())
	if resp != FAIL {
		t.Fatalf("expected FAIL, got %v", resp)
	}
	if !cell.IsFail(c) {
		t.Fatalf("expected the cell to become the fail sentinel")
	}
}

func TestReduceArgAccumulatesAltSetAndDetectsConflict(t *testing.T) {
	tbl := newFakeTable()
	r, a := newTestReducer(tbl)

	var acc altset.Set
	v1 := a.Val(1)
	v1.Val.AltSet = altset.WithBranch(0, 0, 0)
	if resp := r.ReduceArg(&v1, Any(), &acc); resp != SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if acc.IsZero() {
		t.Fatalf("expected accumulated alt-set to record branch 0")
	}

	v2 := a.Val(2)
	v2.Val.AltSet = altset.WithBranch(0, 0, 1) // field 0, branch 1: conflicts with acc's field 0 branch 0
	if resp := r.ReduceArg(&v2, Any(), &acc); resp != FAIL {
		t.Fatalf("expected FAIL on conflicting alt-sets, got %v", resp)
	}
}

func TestForceDepReducesParentAndSeesInstalledValue(t *testing.T) {
	tbl := newFakeTable()
	tbl.handlers[cell.OpSwap] = HandlerFunc(func(r *Reducer, cp **cell.Cell, req Request) Response {
		c := *cp
		first := cell.ClosureArgs(c)[0]
		second := cell.ClosureArgs(c)[1]
		if len(c.Expr.Deps) > 0 && c.Expr.Deps[0] != nil {
			dep := c.Expr.Deps[0]
			r.Arena.StoreReduced(&dep, first.Val, 0)
			c.Expr.Deps[0] = dep
		}
		r.Arena.StoreReduced(cp, second.Val, 0)
		return SUCCESS
	})
	r, a := newTestReducer(tbl)

	parent := a.Func(cell.OpSwap, 2, 1)
	parent.Expr.Fill(a.Val(10))
	parent.Expr.Fill(a.Val(20))
	dep := a.Dep(parent, 0)

	resp := r.Reduce(&dep, Any())
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS forcing the dep, got %v", resp)
	}
	if dep.Val == nil || dep.Val.I != 10 {
		t.Fatalf("expected dep to carry the first argument's value (10), got %+v", dep)
	}
}

func TestReduceAltPrunesDeadAlternates(t *testing.T) {
	tbl := newFakeTable()
	r, a := newTestReducer(tbl)

	live := a.Val(1)
	dead := a.Symbol(cell.SymFail)
	live.Alt = dead // a fresh assignment is a transfer, like Fill: no extra Ref

	resp := r.ReduceAlt(&live)
	if resp != SUCCESS {
		t.Fatalf("expected SUCCESS, got %v", resp)
	}
	if live.Val == nil || live.Val.I != 1 {
		t.Fatalf("expected head to remain the live value")
	}
	if live.Alt != nil {
		t.Fatalf("expected the dead alternate to be unlinked from the chain, got %+v", live.Alt)
	}
}
