// Conditions implements `assert`, `seq`, and `otherwise` (spec §4.G): the
// operators that track compile-time-deferred predicates on reduced values
// and record them in the Journal for an external backend to consume later
// (SPEC_FULL.md's "vlgen.c" supplement).
//
// Grounded on _examples/original_source/user_func.c's trace-node
// construction (one node per deferred condition) for the journal-recording
// shape, and on package ops's operator-protocol skeleton (argument
// reduction, alt-set accumulation, result installation) for the handlers
// themselves.
package trace

import (
	"fmt"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Register installs `!` (assert), `seq`, and `otherwise` into t, closing
// over j so every deferred condition they record lands in the same
// Journal (see package runtime for how j is threaded to the CLI/REPL).
func Register(t *wordtable.Table, j *Journal) {
	t.RegisterPrimitive("!", cell.OpAssert, 2, 0, reduce.HandlerFunc(assertHandler(j)))
	t.RegisterPrimitive("seq", cell.OpSeq, 2, 0, reduce.HandlerFunc(seqHandler(j)))
	t.RegisterPrimitive("otherwise", cell.OpOtherwise, 2, 0, reduce.HandlerFunc(otherwiseHandler(j)))
}

// assertHandler implements spec §4.G's `assert(value, predicate)`: force
// the predicate under REQ(symbol, True); FAIL on a concrete False, record
// a deferred trace node on an unresolved (variable) predicate, otherwise
// force and return the value.
func assertHandler(j *Journal) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)

		var altOut altset.Set
		resp := r.ReduceArg(&args[1], reduce.Request{Type: reduce.TSymbol}, &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}

		if args[1].Val.Flags&cell.FlagVar != 0 {
			j.Record("assert", "deferred assertion on a partial-evaluation variable")
		} else if args[1].Val.Sym != cell.SymTrue {
			r.Arena.Drop(args[1])
			args[1] = nil
			return reduce.FAIL
		}
		r.Arena.Drop(args[1])
		args[1] = nil

		resp = r.ReduceArg(&args[0], req, &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		v := r.Arena.Steal(args[0])
		r.Arena.Drop(args[0])
		args[0] = nil
		r.Arena.StoreReduced(cp, v, altOut)
		return reduce.SUCCESS
	}
}

// seqHandler implements `seq(a, b)`: structurally identical to assert but
// never FAILs on a concrete non-True predicate — b is forced purely for
// its side conditions and then discarded (spec §4.G).
func seqHandler(j *Journal) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)

		var altOut altset.Set
		resp := r.ReduceArg(&args[1], reduce.Any(), &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		if args[1].Val.Flags&cell.FlagVar != 0 {
			j.Record("seq", "sequenced a partial-evaluation variable for its side conditions")
		}
		r.Arena.Drop(args[1])
		args[1] = nil

		resp = r.ReduceArg(&args[0], req, &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		v := r.Arena.Steal(args[0])
		r.Arena.Drop(args[0])
		args[0] = nil
		r.Arena.StoreReduced(cp, v, altOut)
		return reduce.SUCCESS
	}
}

// otherwiseHandler implements `otherwise(a, b)`: the inverted-polarity
// fallback. It forces a; if a fails or resolves to an unresolved variable,
// b is returned (with a deferred trace node linking the two); if a
// succeeds concretely, otherwise itself FAILs (spec §4.G).
func otherwiseHandler(j *Journal) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)

		resp := r.Reduce(&args[0], req)
		switch resp {
		case reduce.SUCCESS:
			if args[0].Val.Flags&cell.FlagVar == 0 {
				r.Arena.Drop(args[0])
				args[0] = nil
				return reduce.FAIL
			}
		case reduce.DELAY:
			return reduce.DELAY
		case reduce.FAIL:
			// a failed outright; fall through to b below.
		}
		r.Arena.Drop(args[0])
		args[0] = nil

		var altOut altset.Set
		resp = r.ReduceArg(&args[1], req, &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		j.Record("otherwise", fmt.Sprintf("fell through to alternative at pos %d", c.Pos))
		v := r.Arena.Steal(args[1])
		r.Arena.Drop(args[1])
		args[1] = nil
		r.Arena.StoreReduced(cp, v, altOut)
		return reduce.SUCCESS
	}
}
