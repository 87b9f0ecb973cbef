package ops

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// boolValue returns the True/False symbol value for cond.
func boolValue(cond bool) *cell.Value {
	if cond {
		return &cell.Value{Kind: cell.VSymbol, Sym: cell.SymTrue}
	}
	return &cell.Value{Kind: cell.VSymbol, Sym: cell.SymFalse}
}

// compareResult adapts an int comparison into the shared
// reduceBinaryInt's resultOf shape.
func compareResult(fn func(a, b int64) bool) func(a, b int64) (*cell.Value, bool) {
	return func(a, b int64) (*cell.Value, bool) { return boolValue(fn(a, b)), true }
}

func registerCompare(t *wordtable.Table) {
	t.RegisterPrimitive("=", cell.OpEq, 2, 0, reduceBinaryInt(cell.OpEq, compareResult(func(a, b int64) bool { return a == b })))
	t.RegisterPrimitive("!=", cell.OpNeq, 2, 0, reduceBinaryInt(cell.OpNeq, compareResult(func(a, b int64) bool { return a != b })))
	t.RegisterPrimitive("<", cell.OpLt, 2, 0, reduceBinaryInt(cell.OpLt, compareResult(func(a, b int64) bool { return a < b })))
	t.RegisterPrimitive("<=", cell.OpLte, 2, 0, reduceBinaryInt(cell.OpLte, compareResult(func(a, b int64) bool { return a <= b })))
	t.RegisterPrimitive(">", cell.OpGt, 2, 0, reduceBinaryInt(cell.OpGt, compareResult(func(a, b int64) bool { return a > b })))
	t.RegisterPrimitive(">=", cell.OpGte, 2, 0, reduceBinaryInt(cell.OpGte, compareResult(func(a, b int64) bool { return a >= b })))

	t.RegisterPrimitive("not", cell.OpNot, 1, 0, reduce.HandlerFunc(notHandler))
	t.RegisterPrimitive("->f", cell.OpToFloat, 1, 0, reduce.HandlerFunc(toFloatHandler))
	t.RegisterPrimitive("trunc", cell.OpTrunc, 1, 0, reduce.HandlerFunc(truncHandler))
}

func notHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	var altOut altset.Set
	resp := r.ReduceArg(&args[0], reduce.Request{Type: reduce.TSymbol}, &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}
	v := args[0].Val
	var out *cell.Value
	switch v.Sym {
	case cell.SymTrue:
		out = &cell.Value{Kind: cell.VSymbol, Sym: cell.SymFalse}
	case cell.SymFalse:
		out = &cell.Value{Kind: cell.VSymbol, Sym: cell.SymTrue}
	default:
		return reduce.FAIL
	}
	r.Arena.Drop(args[0])
	r.Arena.StoreReduced(cp, out, altOut)
	return reduce.SUCCESS
}

func toFloatHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	var altOut altset.Set
	n, resp := forceInt(r, &args[0], &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}
	r.Arena.Drop(args[0])
	r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VFloat, F: float64(n)}, altOut)
	return reduce.SUCCESS
}

func truncHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)
	var altOut altset.Set
	f, resp := forceFloat(r, &args[0], &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}
	r.Arena.Drop(args[0])
	r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VInt, I: int64(f)}, altOut)
	return reduce.SUCCESS
}
