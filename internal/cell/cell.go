// Package cell implements the spec's universal cell: a single tagged
// representation shared by every node in the reduction graph — pending
// closure, reduced value, lazily-installed dep, and function-table entry
// (spec §3, §4.C).
//
// Unlike the original C implementation, which packs every variant into one
// fixed-size slab slot for allocator simplicity, this port keeps one Go
// struct per logical cell and lets the variant payload be a (nil-able)
// pointer; the arena (package cellmem) still enforces the slab/free-list/
// refcount discipline the spec requires, it just no longer needs the
// union's bit-packing trick to do it (see SPEC_FULL.md, "rt_types.h cell
// field layout").
package cell

import "github.com/b0nefish/poprc/internal/altset"

// ValKind is the exclusive kind of a reduced value's payload.
type ValKind uint8

const (
	VInt ValKind = iota
	VFloat
	VSymbol
	VString
	VList
	VHandle
	VMap
	// VPlaceholder marks a row-polymorphic placeholder: either the
	// distinguished first element of a row list standing for an unknown
	// tail, or (when combined with FlagVar) an unknown residual stack
	// produced during partial evaluation.
	VPlaceholder
)

func (k ValKind) String() string {
	switch k {
	case VInt:
		return "int"
	case VFloat:
		return "float"
	case VSymbol:
		return "symbol"
	case VString:
		return "string"
	case VList:
		return "list"
	case VHandle:
		return "handle"
	case VMap:
		return "map"
	case VPlaceholder:
		return "placeholder"
	default:
		return "kind?"
	}
}

// ValFlags are the non-exclusive bits that ride alongside a Value's Kind
// (spec §3: "type (exclusive kind + flags: var, dep, row, fail)").
type ValFlags uint8

const (
	// FlagVar marks the value as a partial-evaluation placeholder: its
	// TraceIdx/OwnerEntry fields name an unknown input rather than a
	// concrete payload (spec's is_var).
	FlagVar ValFlags = 1 << iota
	// FlagRow marks a VList whose first element is a row placeholder.
	// Mirrors IsRowList but is cached here to avoid re-walking List[0]
	// on every check once it is known.
	FlagRow
	// FlagFail marks the sentinel fail value.
	FlagFail
)

// Well-known symbol payloads.
const (
	SymTrue  = "True"
	SymFalse = "False"
	SymIO    = "IO"
	SymFail  = "fail"
)

// Value is the payload of a reduced cell (Op == OpValue).
type Value struct {
	Kind   ValKind
	Flags  ValFlags
	AltSet altset.Set

	I    int64
	F    float64
	Sym  string // VSymbol
	Str  string // VString
	List []*Cell
	// Handle is an opaque resource handle, as owned by package ioport.
	Handle uint64

	// TraceIdx/OwnerEntry are valid when Flags&FlagVar != 0: the value
	// represents unknown input TraceIdx of the function entry
	// OwnerEntry, used to build partial-evaluation trace nodes (spec
	// §4.H, package trace).
	TraceIdx   int
	OwnerEntry *Entry

	// QuoteIn/QuoteOut give the static input/output arity of a VList used
	// as a quotation (a closure-in-waiting built by the parser, or by
	// package compose's `.`/`pushr`), consumed by compose's row-
	// polymorphic arity algebra (spec §4.F). Zero for an ordinary
	// (non-quotation) list.
	QuoteIn  int
	QuoteOut int
}

// ExprFlags are the non-arity bits of an unreduced closure.
type ExprFlags uint8

const (
	// FlagNeedsArg is set while the argument vector still has holes;
	// cleared by Expression.Fill once every slot is bound (spec §3).
	FlagNeedsArg ExprFlags = 1 << iota
	FlagRecursive
	FlagTraced
	FlagNoUnify
)

// Expression is the payload of an unreduced closure (Op is a primitive or
// OpExec).
type Expression struct {
	// Out is the number of result deps beyond the primary result (spec
	// §3). ClosureOut reports Out+1.
	Out    int
	Flags  ExprFlags
	Args   []*Cell // fixed length = declared in-arity; nil = hole
	Filled int     // count of non-hole slots, left to right

	// Deps holds the OpDep placeholder cells (if any) standing in for
	// this closure's secondary outputs; populated by the parser/compose
	// package when more than one output is requested, and mutated in
	// place by the operator handler on SUCCESS (spec §4.F step 6,
	// §4.H step 4).
	Deps []*Cell

	// FuncName names the callee entry when Op == OpExec.
	FuncName string

	// AltField/AltBranch mark an OpID closure built by the `|` operator's
	// handler: AltField is 1 + the alt-set field id this branch claims
	// (0 means "not a tagging id", an ordinary transparent identity), and
	// AltBranch is the branch (0 or 1) this alternate represents. On
	// SUCCESS the id handler ORs (AltField-1, AltBranch) into the forced
	// result's alt-set before installing it (spec §4.E, the nondeterministic
	// choice operator).
	AltField  int
	AltBranch int
}

// Fill binds the next hole in e's argument vector to c, in left-to-right
// order, and clears FlagNeedsArg once the vector is full. It reports
// whether a hole was available.
func (e *Expression) Fill(c *Cell) bool {
	if e.Filled >= len(e.Args) {
		return false
	}
	e.Args[e.Filled] = c
	e.Filled++
	if e.Filled == len(e.Args) {
		e.Flags &^= FlagNeedsArg
	} else {
		e.Flags |= FlagNeedsArg
	}
	return true
}

// DepInfo is the payload of an OpDep placeholder cell: a pointer back to
// the parent closure that will install this dep's value, and which output
// slot it represents (spec glossary: "Dep ... linked back to its parent
// via the first argument").
type DepInfo struct {
	Parent *Cell
	Index  int
}

// Entry is a compiled user function: header plus a body of trace cells
// ending in one or more return cells linked via Alt (spec §3, §4.H).
type Entry struct {
	Name      string
	In, Out   int
	Recursive bool
	Body      []*Cell
	Parent    *Entry
	// InitialWord roots the outermost recursive call site, used for
	// unification during tail-call expansion (spec §4.H step 2).
	InitialWord *Cell
	// Params are the In parameter placeholder cells referenced by
	// pointer identity from within Body; expansion substitutes each one
	// for the matching call argument while deep-copying the body (spec
	// §4.H step 3's "binding input parameters to the call's arguments").
	Params []*Cell
}

// Cell is the universal reduction-graph node.
type Cell struct {
	Op OpTag

	// N is the reference count. Persistent cells are never counted and
	// never freed (spec §3's "sentinel value"); this port tracks that
	// with an explicit bool rather than overloading N; see DESIGN.md.
	N          int32
	Persistent bool

	Alt  *Cell // next alternate in a choice chain
	Size int   // diagnostic only; always 1, see DESIGN.md
	Pos  int   // positional hint for tracing/printing

	Expr *Expression // valid for unreduced closures (Op primitive/OpExec)
	Val  *Value      // valid when Op == OpValue
	Dep  *DepInfo    // valid when Op == OpDep
}

// --- predicates (spec §4.C) ---

func IsFree(c *Cell) bool  { return c == nil || c.Op == OpFree }
func IsValue(c *Cell) bool { return c != nil && c.Op == OpValue }
func IsExpr(c *Cell) bool {
	return c != nil && c.Op != OpFree && c.Op != OpValue && c.Op != OpDep
}
func IsDep(c *Cell) bool      { return c != nil && c.Op == OpDep }
func IsUserFunc(c *Cell) bool { return c != nil && c.Op == OpExec }

func IsVar(c *Cell) bool {
	return IsValue(c) && c.Val.Flags&FlagVar != 0
}

func IsList(c *Cell) bool {
	return IsValue(c) && c.Val.Kind == VList
}

func IsPlaceholder(c *Cell) bool {
	return IsValue(c) && c.Val.Kind == VPlaceholder
}

// IsRowList reports whether c is a list whose first element is a row
// placeholder, standing for an unknown tail (spec §4.F, §9 "Row
// polymorphism").
func IsRowList(c *Cell) bool {
	if !IsList(c) {
		return false
	}
	if c.Val.Flags&FlagRow != 0 {
		return true
	}
	return len(c.Val.List) > 0 && IsPlaceholder(c.Val.List[0])
}

func IsFail(c *Cell) bool {
	return IsValue(c) && c.Val.Flags&FlagFail != 0
}

// NeedsArg reports whether c is an unreduced closure with unfilled
// argument slots; reduction is only attempted on cells for which this is
// false (spec §3 invariant).
func NeedsArg(c *Cell) bool {
	return c != nil && c.Expr != nil && c.Expr.Filled < len(c.Expr.Args)
}

// --- arity queries (spec §4.C) ---

func ClosureIn(c *Cell) int {
	if c == nil || c.Expr == nil {
		return 0
	}
	return len(c.Expr.Args)
}

// ClosureOut returns the closure's total output count: the primary result
// plus Expr.Out secondary deps.
func ClosureOut(c *Cell) int {
	if c == nil || c.Expr == nil {
		return 1
	}
	return c.Expr.Out + 1
}

func ClosureArgs(c *Cell) []*Cell {
	if c == nil || c.Expr == nil {
		return nil
	}
	return c.Expr.Args
}

func ListSize(c *Cell) int {
	if c == nil || c.Val == nil {
		return 0
	}
	return len(c.Val.List)
}

func FunctionIn(e *Entry) int  { return e.In }
func FunctionOut(e *Entry) int { return e.Out }

// --- traversal (spec §4.C) ---

// TraverseMask selects which outgoing references Traverse visits.
type TraverseMask uint8

const (
	TraverseAlt TraverseMask = 1 << iota
	TraverseArgs
	TraverseDeps
	TraverseList
	TraverseAll = TraverseAlt | TraverseArgs | TraverseDeps | TraverseList
)

// MarkPersistent marks c and every cell reachable from it as persistent:
// never counted, never freed, surviving teardown (spec §3's sentinel
// refcount). Used when a compiled function body is installed into the
// word table, since the table holds it for the life of the process.
func MarkPersistent(c *Cell) {
	seen := make(map[*Cell]bool)
	var walk func(*Cell)
	walk = func(c *Cell) {
		if c == nil || seen[c] {
			return
		}
		seen[c] = true
		c.Persistent = true
		Traverse(c, TraverseAll, walk)
	}
	walk(c)
}

// Traverse calls visit once for every non-nil outgoing reference from c
// selected by mask. Used by package cellmem to recursively drop a cell's
// children.
func Traverse(c *Cell, mask TraverseMask, visit func(*Cell)) {
	if c == nil {
		return
	}
	if mask&TraverseAlt != 0 && c.Alt != nil {
		visit(c.Alt)
	}
	if c.Expr != nil {
		if mask&TraverseArgs != 0 {
			for _, a := range c.Expr.Args {
				if a != nil {
					visit(a)
				}
			}
		}
		if mask&TraverseDeps != 0 {
			for _, d := range c.Expr.Deps {
				if d != nil {
					visit(d)
				}
			}
		}
	}
	if mask&TraverseList != 0 && c.Val != nil && c.Val.Kind == VList {
		for _, e := range c.Val.List {
			if e != nil {
				visit(e)
			}
		}
	}
	if mask&TraverseDeps != 0 && c.Op == OpDep && c.Dep != nil && c.Dep.Parent != nil {
		visit(c.Dep.Parent)
	}
}
