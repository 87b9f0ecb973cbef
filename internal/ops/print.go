package ops

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Printer performs the `print` operator's IO effect. Defined here, rather
// than depending on package ioport directly, so ops stays a leaf package;
// package runtime wires a concrete ioport.Port in as the Printer (same
// dependency-inversion shape as reduce.Logger).
type Printer interface {
	Print(v *cell.Value) error
}

// RegisterPrint installs the `print` handler against p. Split out from
// Register so callers without an IO backend (e.g. unit tests exercising
// pure arithmetic) need not supply one.
func RegisterPrint(t *wordtable.Table, p Printer) {
	t.RegisterPrimitive("print", cell.OpPrint, 2, 0, reduce.HandlerFunc(printHandler(p)))
}

// printHandler implements `print`: forces its value argument, performs the
// IO effect, and passes its IO-token argument through unchanged (spec's
// threading of a single linear IO handle through every effectful op).
func printHandler(p Printer) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)

		var altOut altset.Set
		resp := r.ReduceArg(&args[1], reduce.Any(), &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		resp = r.ReduceArg(&args[0], reduce.Request{Type: reduce.TSymbol}, &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		// The effect needs the IO token as witness; any other symbol FAILs
		// (an unresolved variable is allowed through for partial evaluation).
		if args[0].Val.Flags&cell.FlagVar == 0 && args[0].Val.Sym != cell.SymIO {
			return reduce.FAIL
		}
		if err := p.Print(args[1].Val); err != nil {
			return reduce.FAIL
		}
		r.Arena.Drop(args[1])
		r.Arena.Drop(args[0])
		args[0], args[1] = nil, nil
		r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VSymbol, Sym: cell.SymIO}, altOut)
		return reduce.SUCCESS
	}
}
