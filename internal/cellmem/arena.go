// Package cellmem implements the cell arena: a slab allocator with a
// free list and the reference-counting contract the spec's reducer relies
// on for rollback-safe failure handling (spec §4.A).
//
// The original C allocator packs every cell into one contiguous array so
// that "free" and "in use" are both just states of the same fixed-size
// slot. This port instead grows by slabs of []cell.Cell (each slab's
// backing array is never resized, so pointers into it stay valid for the
// arena's lifetime) and threads a free list as a plain stack of pointers
// rather than an intrusive linked list — Go has no use for the latter's
// memory-layout trick (see DESIGN.md).
package cellmem

import (
	"fmt"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
)

// DefaultSlabSize is the number of cells allocated per slab growth.
const DefaultSlabSize = 1024

// Arena owns every cell in a running interpreter.
type Arena struct {
	slabSize int
	slabs    [][]cell.Cell
	free     []*cell.Cell
	roots    map[**cell.Cell]struct{}

	allocCount int
	freeCount  int
}

// New creates an arena. slabSize <= 0 selects DefaultSlabSize.
func New(slabSize int) *Arena {
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	return &Arena{slabSize: slabSize, roots: make(map[**cell.Cell]struct{})}
}

func (a *Arena) growSlab() {
	slab := make([]cell.Cell, a.slabSize)
	a.slabs = append(a.slabs, slab)
	for i := range slab {
		slab[i].Op = cell.OpFree
		a.free = append(a.free, &slab[i])
	}
}

// Alloc removes one free cell from the free list, growing the arena by a
// new slab first if none remain. The returned cell has N == 0 (exactly
// one implicit holder: whoever called Alloc) and Op == OpFree; the caller
// must set Op and the appropriate payload before the cell is reachable
// from anything else.
func (a *Arena) Alloc() *cell.Cell {
	if len(a.free) == 0 {
		a.growSlab()
	}
	n := len(a.free) - 1
	c := a.free[n]
	a.free = a.free[:n]
	c.Size = 1
	a.allocCount++
	return c
}

// Ref increments c's reference count unless c is nil or persistent, and
// returns c (spec §4.A: "ref(c)").
func (a *Arena) Ref(c *cell.Cell) *cell.Cell {
	if c == nil || c.Persistent {
		return c
	}
	c.N++
	return c
}

// Refn adds k to c's reference count (spec §4.A: "refn(c, k)").
func (a *Arena) Refn(c *cell.Cell, k int) *cell.Cell {
	if c == nil || c.Persistent || k == 0 {
		return c
	}
	c.N += int32(k)
	return c
}

// Drop releases one holder's reference to c. If c's count falls below
// zero (spec §4.A), its outgoing references (alt, args, deps, list
// elements) are dropped in turn and c is returned to the free list. Drop
// on a nil or persistent cell is a no-op.
func (a *Arena) Drop(c *cell.Cell) {
	if c == nil || c.Persistent {
		return
	}
	pending := []*cell.Cell{c}
	for len(pending) > 0 {
		n := len(pending) - 1
		cur := pending[n]
		pending = pending[:n]
		if cur == nil || cur.Persistent || cur.Op == cell.OpFree {
			continue
		}
		cur.N--
		if cur.N >= 0 {
			continue
		}
		var children []*cell.Cell
		cell.Traverse(cur, cell.TraverseAll, func(ch *cell.Cell) {
			if ch != nil && !ch.Persistent {
				children = append(children, ch)
			}
		})
		a.release(cur)
		pending = append(pending, children...)
	}
}

// release resets c to the free-list sentinel state and pushes it back
// onto the free list.
func (a *Arena) release(c *cell.Cell) {
	*c = cell.Cell{Op: cell.OpFree}
	a.free = append(a.free, c)
	a.freeCount++
}

// Unique ensures *cp is safe to mutate in place: if it has other holders
// (N > 0), it is replaced with a one-level-deep copy whose own references
// are each Ref'd, and the original loses the holder that *cp represented
// (spec §4.A: "unique(&c)").
func (a *Arena) Unique(cp **cell.Cell) *cell.Cell {
	c := *cp
	if c == nil || c.Persistent || c.N == 0 {
		return c
	}

	nc := a.Alloc()
	nc.Op = c.Op
	nc.Size = c.Size
	nc.Pos = c.Pos
	nc.Alt = c.Alt
	a.Ref(nc.Alt)

	switch {
	case c.Expr != nil:
		ne := *c.Expr
		ne.Args = append([]*cell.Cell(nil), c.Expr.Args...)
		ne.Deps = append([]*cell.Cell(nil), c.Expr.Deps...)
		nc.Expr = &ne
		for _, arg := range ne.Args {
			a.Ref(arg)
		}
		for _, d := range ne.Deps {
			a.Ref(d)
		}
	case c.Val != nil:
		nv := *c.Val
		if nv.Kind == cell.VList {
			nv.List = append([]*cell.Cell(nil), c.Val.List...)
			for _, e := range nv.List {
				a.Ref(e)
			}
		}
		nc.Val = &nv
	case c.Dep != nil:
		nd := *c.Dep
		a.Ref(nd.Parent)
		nc.Dep = &nd
	}

	a.Drop(c)
	*cp = nc
	return nc
}

// InsertRoot registers cp as an external root, adopting the caller's hold
// on *cp for a region where the cell must survive outside the normal graph
// (spec §5's scoped acquisition). Each InsertRoot must be paired with a
// RemoveRoot on the same slot; an unpaired InsertRoot is a leak that
// CheckFree reports like any other live cell.
func (a *Arena) InsertRoot(cp **cell.Cell) {
	if cp == nil || *cp == nil {
		return
	}
	a.roots[cp] = struct{}{}
}

// RemoveRoot releases a root registered with InsertRoot: the cell graph
// rooted at *cp is dropped and the slot is cleared. RemoveRoot on a slot
// that is not currently a root is a no-op.
func (a *Arena) RemoveRoot(cp **cell.Cell) {
	if cp == nil {
		return
	}
	if _, ok := a.roots[cp]; !ok {
		return
	}
	delete(a.roots, cp)
	a.Drop(*cp)
	*cp = nil
}

// Roots reports how many external roots are currently registered.
func (a *Arena) Roots() int { return len(a.roots) }

// CheckFree scans every slab and reports every non-persistent cell still
// marked live — a leak (spec §7, §8 property 1: "Conservation").
func (a *Arena) CheckFree() []*cell.Cell {
	var leaked []*cell.Cell
	for _, slab := range a.slabs {
		for i := range slab {
			c := &slab[i]
			if !c.Persistent && c.Op != cell.OpFree {
				leaked = append(leaked, c)
			}
		}
	}
	return leaked
}

// Stats reports lifetime allocation/free counts and the number of cells
// presently outstanding (allocated minus freed).
func (a *Arena) Stats() (allocCount, freeCount, live int) {
	return a.allocCount, a.freeCount, a.allocCount - a.freeCount
}

// --- cell construction helpers (spec §6 external interface) ---

// Val allocates a persistent-free reduced integer value cell.
func (a *Arena) Val(i int64) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VInt, I: i}
	return c
}

// FloatVal allocates a reduced float value cell.
func (a *Arena) FloatVal(f float64) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VFloat, F: f}
	return c
}

// Symbol allocates a reduced symbol value cell (e.g. True/False/fail/IO).
func (a *Arena) Symbol(sym string) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VSymbol, Sym: sym}
	if sym == cell.SymFail {
		c.Val.Flags |= cell.FlagFail
	}
	return c
}

// Var allocates a partial-evaluation placeholder value: an unknown input
// traceIdx of owner (spec's is_var).
func (a *Arena) Var(kind cell.ValKind, traceIdx int, owner *cell.Entry) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: kind, Flags: cell.FlagVar, TraceIdx: traceIdx, OwnerEntry: owner}
	return c
}

// RowPlaceholder allocates a row placeholder: the distinguished marker
// standing for an unknown residual input, either as a row list's first
// element or filling an under-supplied stage's hole (spec §9 "Row
// polymorphism"). It carries FlagVar so a reducer that reaches it treats
// it as an unknown rather than a concrete payload.
func (a *Arena) RowPlaceholder() *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VPlaceholder, Flags: cell.FlagVar}
	return c
}

// EmptyList allocates a reduced value cell wrapping a zero-length list.
func (a *Arena) EmptyList() *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VList}
	return c
}

// Id wraps arg in an `id` closure; reducing it forces arg directly (spec
// §4.E's `id` short-circuit).
func (a *Arena) Id(arg *cell.Cell) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpID
	c.Expr = &cell.Expression{Args: []*cell.Cell{arg}, Filled: 1}
	return c
}

// Func allocates an unreduced closure for primitive op with the given
// in-arity and out-arity (Out additional deps beyond the primary).
func (a *Arena) Func(op cell.OpTag, in, out int) *cell.Cell {
	c := a.Alloc()
	c.Op = op
	flags := cell.ExprFlags(0)
	if in > 0 {
		flags |= cell.FlagNeedsArg
	}
	c.Expr = &cell.Expression{Args: make([]*cell.Cell, in), Out: out, Flags: flags}
	return c
}

// IdTagged wraps arg in an id closure that, once arg reduces, ORs
// (field, branch) into the resulting value's alt-set instead of passing it
// through untouched (spec's nondeterministic `|`, see package ops).
func (a *Arena) IdTagged(arg *cell.Cell, field, branch int) *cell.Cell {
	c := a.Alloc()
	c.Op = cell.OpID
	c.Expr = &cell.Expression{Args: []*cell.Cell{arg}, Filled: 1, AltField: field + 1, AltBranch: branch}
	return c
}

// Dep allocates a pending secondary-output placeholder for parent's
// index'th dep, and registers it on parent.Expr.Deps.
func (a *Arena) Dep(parent *cell.Cell, index int) *cell.Cell {
	d := a.Alloc()
	d.Op = cell.OpDep
	d.Dep = &cell.DepInfo{Parent: parent, Index: index}
	a.Ref(parent)
	if parent.Expr != nil {
		for len(parent.Expr.Deps) <= index {
			parent.Expr.Deps = append(parent.Expr.Deps, nil)
		}
		parent.Expr.Deps[index] = d
	}
	return d
}

// StoreReduced rewrites *cp in place from an unreduced closure to value v
// (spec §4.E step 5: "store_reduced"), inheriting *cp's original Alt
// chain. v's alt-set is set to altSet. Callers are responsible for
// dropping any of the closure's Args that the result does not retain
// before calling StoreReduced — operators like `id`/`dup` that hand an
// argument cell straight through must not drop it first.
func (a *Arena) StoreReduced(cp **cell.Cell, v *cell.Value, altSet altset.Set) {
	old := *cp
	v.AltSet = altSet
	if old.Op == cell.OpDep && old.Dep != nil {
		// The dep no longer needs its parent once it carries a value of
		// its own; holding on would strand the parent's count forever,
		// since a value cell's teardown never walks a DepInfo.
		a.Drop(old.Dep.Parent)
		old.Dep = nil
	}
	old.Op = cell.OpValue
	old.Expr = nil
	old.Val = v
	*cp = old
}

// Steal extracts c's Value pointer for reuse elsewhere and detaches c from
// it (c.Val = nil), dropping any alt chain c still carries. The caller
// takes over c's single unit of ownership over the returned Value's
// sub-references (e.g. list elements); c itself becomes an empty shell
// safe to Drop without a second, double-counting cascade into that same
// payload (used by control operators like `swap` that relocate a forced
// argument's value into a different cell — see DESIGN.md).
func (a *Arena) Steal(c *cell.Cell) *cell.Value {
	v := c.Val
	c.Val = nil
	if c.Alt != nil {
		a.Drop(c.Alt)
		c.Alt = nil
	}
	return v
}

// ReleaseValue drops the sub-references a stolen Value owns (its list
// elements), for a result slot nothing requested.
func (a *Arena) ReleaseValue(v *cell.Value) {
	if v == nil || v.Kind != cell.VList {
		return
	}
	for _, e := range v.List {
		a.Drop(e)
	}
}

// CopyValue returns a shallow copy of v that independently owns its own
// list elements (each Ref'd once more), for operators like `dup` that must
// install the same logical value into two places at once.
func (a *Arena) CopyValue(v *cell.Value) *cell.Value {
	nv := *v
	if nv.Kind == cell.VList {
		nv.List = append([]*cell.Cell(nil), v.List...)
		for _, e := range nv.List {
			a.Ref(e)
		}
	}
	return &nv
}

// Collapse returns old's shell directly to the free list without cascading
// into its former children. Callers use this only once they have manually
// transferred ownership of every edge old held (its sole argument become
// the new cell in *cp, its Alt chain spliced onto the replacement's tail)
// — the indirection-collapse idiom `id`, `drop`, and `|` use to replace
// themselves with one of their own operands (spec §4.E's `id` short-
// circuit).
func (a *Arena) Collapse(old *cell.Cell) {
	if old == nil || old.Persistent {
		return
	}
	a.release(old)
}

// PersistentSymbol allocates a never-freed symbol cell, for constants
// installed once at startup (e.g. the shared True/False/fail singletons).
func (a *Arena) PersistentSymbol(sym string) *cell.Cell {
	c := a.Symbol(sym)
	c.Persistent = true
	return c
}

func (a *Arena) String() string {
	allocN, freeN, live := a.Stats()
	return fmt.Sprintf("cellmem.Arena{slabs=%d alloc=%d free=%d live=%d}", len(a.slabs), allocN, freeN, live)
}
