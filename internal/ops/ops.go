// Package ops implements the primitive operator protocol (spec §4.E): the
// 2-in-1-out arithmetic/bitwise family, float arithmetic and transcendental
// functions, comparisons, and the stack-shuffling control operators `id`,
// `drop`, `dup`, `swap`, and `|`. Each is a reduce.Handler registered into a
// *wordtable.Table by Register, so package reduce never imports package
// ops (see internal/reduce's package doc for the dependency-inversion
// rationale).
//
// Grounded on the teacher's internal/compiler/compiler.go VisitBinaryExpr
// operator-name switch (naming) and its vm.go opcode table (which
// operators exist); the conflict/union bookkeeping follows
// internal/reduce.ReduceArg exactly as package reduce documents it.
package ops

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Register installs every primitive operator this package implements into
// t, under both its OpTag (for reducer dispatch) and its surface-syntax
// name (for the parser).
func Register(t *wordtable.Table) {
	registerArith(t)
	registerFloat(t)
	registerCompare(t)
	registerControl(t)
}

// forceInt reduces *argp to an int, accumulating its alt-set into altOut.
// DELAY is returned as-is when the operand resolves to a partial-
// evaluation variable: package ops does not itself build trace nodes for
// variable operands (that remains package trace's job at function
// boundaries).
func forceInt(r *reduce.Reducer, argp **cell.Cell, altOut *altset.Set) (int64, reduce.Response) {
	resp := r.ReduceArg(argp, reduce.Request{Type: reduce.TInt}, altOut)
	if resp != reduce.SUCCESS {
		return 0, resp
	}
	v := (*argp).Val
	if v.Flags&cell.FlagVar != 0 {
		return 0, reduce.DELAY
	}
	return v.I, reduce.SUCCESS
}

func forceFloat(r *reduce.Reducer, argp **cell.Cell, altOut *altset.Set) (float64, reduce.Response) {
	resp := r.ReduceArg(argp, reduce.Request{Type: reduce.TFloat}, altOut)
	if resp != reduce.SUCCESS {
		return 0, resp
	}
	v := (*argp).Val
	if v.Flags&cell.FlagVar != 0 {
		return 0, reduce.DELAY
	}
	return v.F, reduce.SUCCESS
}

// reduceBinaryInt builds a 2-in-1-out integer handler from resultOf, which
// computes the result Value for concrete operands a, b (ok=false triggers
// FAIL, e.g. division by zero). If either argument survives reduction with
// its own residual Alt chain (another nondeterministic alternative not yet
// tried, as `|` installs — spec §4.B, §8's `1 2 | 3 +` -> `[4, 5]`), a
// sibling closure is built with that argument's alternate substituted in,
// reduced eagerly, and linked onto the installed result's Alt chain; a
// sibling whose own reduction does not succeed is left off the chain. If
// the primary operands' result fails (ok=false), the whole op FAILs and
// both retained alternates are dropped untried.
func reduceBinaryInt(op cell.OpTag, resultOf func(a, b int64) (*cell.Value, bool)) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)
		var altOut altset.Set
		a, resp := forceInt(r, &args[0], &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		aAlt := args[0].Alt
		args[0].Alt = nil

		b, resp := forceInt(r, &args[1], &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		bAlt := args[1].Alt
		args[1].Alt = nil

		result, ok := resultOf(a, b)
		r.Arena.Drop(args[0])
		args[0] = nil
		r.Arena.Drop(args[1])
		args[1] = nil
		if !ok {
			r.Arena.Drop(aAlt)
			r.Arena.Drop(bAlt)
			return reduce.FAIL
		}

		r.Arena.StoreReduced(cp, result, altOut)
		attachIntAltSiblings(r, cp, op, aAlt, bAlt, a, b, resultOf)
		return reduce.SUCCESS
	}
}

// attachIntAltSiblings builds "op(aAlt, b)" and "op(a, bAlt)" sibling
// closures for whichever argument retained an alternate, reduces each now,
// and splices the survivors onto (*cp)'s Alt chain.
func attachIntAltSiblings(r *reduce.Reducer, cp **cell.Cell, op cell.OpTag, aAlt, bAlt *cell.Cell, a, b int64, resultOf func(a, b int64) (*cell.Value, bool)) {
	head := *cp
	if aAlt != nil {
		sib := r.Arena.Func(op, 2, 0)
		sib.Expr.Fill(aAlt)
		sib.Expr.Fill(r.Arena.Val(b))
		if resp := r.Reduce(&sib, reduce.Any()); resp == reduce.SUCCESS {
			spliceAlt(head, sib)
		}
	}
	if bAlt != nil {
		sib := r.Arena.Func(op, 2, 0)
		sib.Expr.Fill(r.Arena.Val(a))
		sib.Expr.Fill(bAlt)
		if resp := r.Reduce(&sib, reduce.Any()); resp == reduce.SUCCESS {
			spliceAlt(head, sib)
		}
	}
}

func intResult(fn func(a, b int64) (int64, bool)) func(a, b int64) (*cell.Value, bool) {
	return func(a, b int64) (*cell.Value, bool) {
		res, ok := fn(a, b)
		if !ok {
			return nil, false
		}
		return &cell.Value{Kind: cell.VInt, I: res}, true
	}
}

func registerArith(t *wordtable.Table) {
	t.RegisterPrimitive("+", cell.OpAdd, 2, 0, reduceBinaryInt(cell.OpAdd, intResult(func(a, b int64) (int64, bool) { return a + b, true })))
	t.RegisterPrimitive("-", cell.OpSub, 2, 0, reduceBinaryInt(cell.OpSub, intResult(func(a, b int64) (int64, bool) { return a - b, true })))
	t.RegisterPrimitive("*", cell.OpMul, 2, 0, reduceBinaryInt(cell.OpMul, intResult(func(a, b int64) (int64, bool) { return a * b, true })))
	t.RegisterPrimitive("/", cell.OpDiv, 2, 0, reduceBinaryInt(cell.OpDiv, intResult(func(a, b int64) (int64, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	})))
	t.RegisterPrimitive("%", cell.OpMod, 2, 0, reduceBinaryInt(cell.OpMod, intResult(func(a, b int64) (int64, bool) {
		if b == 0 {
			return 0, false
		}
		return a % b, true
	})))
	t.RegisterPrimitive("&", cell.OpBitAnd, 2, 0, reduceBinaryInt(cell.OpBitAnd, intResult(func(a, b int64) (int64, bool) { return a & b, true })))
	t.RegisterPrimitive("|b", cell.OpBitOr, 2, 0, reduceBinaryInt(cell.OpBitOr, intResult(func(a, b int64) (int64, bool) { return a | b, true })))
	t.RegisterPrimitive("^", cell.OpBitXor, 2, 0, reduceBinaryInt(cell.OpBitXor, intResult(func(a, b int64) (int64, bool) { return a ^ b, true })))
	t.RegisterPrimitive("<<", cell.OpShl, 2, 0, reduceBinaryInt(cell.OpShl, intResult(func(a, b int64) (int64, bool) {
		if b < 0 || b >= 64 {
			return 0, false
		}
		return a << uint(b), true
	})))
	t.RegisterPrimitive(">>", cell.OpShr, 2, 0, reduceBinaryInt(cell.OpShr, intResult(func(a, b int64) (int64, bool) {
		if b < 0 || b >= 64 {
			return 0, false
		}
		return a >> uint(b), true
	})))
}
