// Package reduce implements the demand-driven reducer core (spec §4.D):
// reduce(cp, request), the retry/delay/fail protocol, and argument
// forcing. It depends only on package cell (the data model), package
// cellmem (the arena) and package altset (alt-set algebra); it knows
// nothing about any specific primitive
// operator — those are registered into a Table by package ops (and
// package compose, trace, funcexpand) so that the dependency runs in one
// direction only and the operator packages can each depend on reduce
// without a cycle.
package reduce

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
)

// Handler implements the primitive operator protocol for one Op tag
// (spec §4.E). Reduce is called with *cp pointing at a ready (not
// NeedsArg) closure whose Op matches the handler's registration.
type Handler interface {
	Reduce(r *Reducer, cp **cell.Cell, req Request) Response
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(r *Reducer, cp **cell.Cell, req Request) Response

func (f HandlerFunc) Reduce(r *Reducer, cp **cell.Cell, req Request) Response {
	return f(r, cp, req)
}

// Table resolves an Op tag to its Handler, and a user-function name to
// its compiled Entry (spec §6's "static array of {name, handler, in, out}
// tuples").
type Table interface {
	Lookup(op cell.OpTag) (Handler, bool)
	LookupFunc(name string) (*cell.Entry, bool)
}

// Logger receives structured 4-character-tagged diagnostic events (spec
// §6). Defined here, rather than depending on package diag, so reduce has
// no ambient-stack dependency; package diag's logger satisfies this.
type Logger interface {
	Event(tag string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Event(string, ...any) {}

// Reducer holds the process-wide state the reducer mutates: the arena,
// the alt-id counter, the word table, and diagnostics (spec §5's "Shared
// resources").
type Reducer struct {
	Arena *cellmem.Arena
	IDs   *altset.IDCounter
	Table Table
	Log   Logger
}

// New constructs a Reducer. log may be nil, in which case events are
// discarded.
func New(a *cellmem.Arena, ids *altset.IDCounter, t Table, log Logger) *Reducer {
	if log == nil {
		log = nopLogger{}
	}
	return &Reducer{Arena: a, IDs: ids, Table: t, Log: log}
}

// Reduce forces *cp to a value satisfying req, following RETRY rewrites
// and alt-chain fallback on FAIL (spec §4.D).
func (r *Reducer) Reduce(cp **cell.Cell, req Request) Response {
	for {
		c := *cp
		if c == nil {
			return FAIL
		}

		if cell.IsDep(c) {
			resp := r.forceDep(cp, req)
			if resp == RETRY {
				continue
			}
			return resp
		}

		if cell.IsValue(c) {
			if c.Val.Flags&cell.FlagFail != 0 {
				return r.tryAlt(cp, req)
			}
			// A variable satisfies any request: it is an unknown whose
			// type the consuming operator refines (spec §4.E's variable
			// dispatch), not a concrete value to type-check.
			if c.Val.Flags&cell.FlagVar != 0 || CheckType(req.Type, c.Val.Kind) {
				return SUCCESS
			}
			return r.tryAlt(cp, req)
		}

		if cell.NeedsArg(c) {
			return FAIL
		}

		h, ok := r.Table.Lookup(c.Op)
		if !ok {
			return r.tryAlt(cp, req)
		}

		r.Log.Event("step", "op", c.Op.String(), "pos", c.Pos)
		resp := h.Reduce(r, cp, req)
		switch resp {
		case SUCCESS:
			return SUCCESS
		case RETRY:
			continue
		case DELAY:
			return DELAY
		case FAIL:
			return r.tryAlt(cp, req)
		default:
			return FAIL
		}
	}
}

// forceDep reduces a pending dep placeholder by forcing its parent
// closure; the parent's handler is responsible for overwriting this very
// cell in place once it installs the dep's value (spec glossary "Dep").
func (r *Reducer) forceDep(cp **cell.Cell, req Request) Response {
	d := (*cp).Dep
	if d == nil || d.Parent == nil {
		return FAIL
	}
	resp := r.Reduce(&d.Parent, Any())
	if resp == DELAY {
		return DELAY
	}
	if resp == FAIL {
		// The parent failed outright (no alternate survived); this dep
		// cell was never overwritten, so fail it explicitly.
		return r.tryAlt(cp, req)
	}
	// On SUCCESS the parent's handler has overwritten *cp in place
	// (same pointer identity) via Arena.StoreReduced on the Deps[i]
	// slot, so re-entering the loop will see a reduced value now. A
	// parent that reduced without installing this dep has no output to
	// give it; fail rather than retry forever.
	if cell.IsDep(*cp) {
		return r.tryAlt(cp, req)
	}
	return RETRY
}

// tryAlt is reached whenever a handler (or a value with an incompatible
// type) reports FAIL. It walks to the next alternate, or installs the
// fail sentinel if the chain is exhausted (spec §7).
func (r *Reducer) tryAlt(cp **cell.Cell, req Request) Response {
	c := *cp
	if c == nil {
		return FAIL
	}
	alt := c.Alt
	if alt == nil {
		if !cell.IsFail(c) {
			r.installFail(cp)
		}
		return FAIL
	}
	r.Arena.Ref(alt)
	r.Arena.Drop(c)
	*cp = alt
	return r.Reduce(cp, req)
}

// installFail completes the rollback contract (spec §4.E): whatever
// argument holds the failed closure still owns are released here, so every
// FAIL outcome leaves refcounts balanced whether the handler consumed its
// arguments before failing (those slots are nil by then) or not.
func (r *Reducer) installFail(cp **cell.Cell) {
	c := *cp
	if c.Expr != nil {
		for i, a := range c.Expr.Args {
			if a != nil {
				r.Arena.Drop(a)
				c.Expr.Args[i] = nil
			}
		}
	}
	v := &cell.Value{Kind: cell.VSymbol, Sym: cell.SymFail, Flags: cell.FlagFail}
	r.Arena.StoreReduced(cp, v, 0)
}

// ReduceArg forces the cell at argp under req, as the i-th argument of an
// operator handler's own reduction: on SUCCESS it unions the result's
// alt-set into *altOut, failing with a rolled-back FAIL if the union
// would conflict (spec §4.D's reduce_arg, §4.E step 2-3).
func (r *Reducer) ReduceArg(argp **cell.Cell, req Request, altOut *altset.Set) Response {
	resp := r.Reduce(argp, req)
	if resp != SUCCESS {
		return resp
	}
	v := (*argp).Val
	if altset.Conflict(*altOut, v.AltSet) {
		return FAIL
	}
	*altOut = altset.Union(*altOut, v.AltSet)
	return SUCCESS
}

// ReduceAlt fully reduces *cp and every alternate reachable through its
// Alt chain under TAny, pruning dead (failed) alternates out of the
// chain. It reports SUCCESS if at least one alternate survives (spec
// §4.D's reduce_alt).
func (r *Reducer) ReduceAlt(cp **cell.Cell) Response {
	resp := r.Reduce(cp, Any())
	if resp == DELAY {
		return DELAY
	}
	c := *cp
	if c == nil {
		return FAIL
	}
	if c.Alt != nil {
		next := c.Alt
		r.ReduceAlt(&next)
		// The recursion swaps a failed head for its own live alternate;
		// next is still a fail cell only when its whole chain is dead, in
		// which case it is unlinked here so a live head never carries a
		// dead tail.
		if cell.IsFail(next) && next.Alt == nil {
			r.Arena.Drop(next)
			next = nil
		}
		c.Alt = next
	}
	if cell.IsFail(c) {
		if c.Alt == nil {
			return FAIL
		}
		alive := c.Alt
		r.Arena.Ref(alive)
		r.Arena.Drop(c)
		*cp = alive
		return SUCCESS
	}
	return SUCCESS
}
