package ops

import (
	"math"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// floatBinOp builds a 2-in-1-out float handler from fn.
func floatBinOp(fn func(a, b float64) (float64, bool)) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)
		var altOut altset.Set
		a, resp := forceFloat(r, &args[0], &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		b, resp := forceFloat(r, &args[1], &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		res, ok := fn(a, b)
		if !ok {
			return reduce.FAIL
		}
		r.Arena.Drop(args[0])
		r.Arena.Drop(args[1])
		r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VFloat, F: res}, altOut)
		return reduce.SUCCESS
	}
}

// floatUnaryOp builds a 1-in-1-out float handler from fn.
func floatUnaryOp(fn func(a float64) (float64, bool)) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		args := cell.ClosureArgs(c)
		var altOut altset.Set
		a, resp := forceFloat(r, &args[0], &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
		res, ok := fn(a)
		if !ok {
			return reduce.FAIL
		}
		r.Arena.Drop(args[0])
		r.Arena.StoreReduced(cp, &cell.Value{Kind: cell.VFloat, F: res}, altOut)
		return reduce.SUCCESS
	}
}

func registerFloat(t *wordtable.Table) {
	t.RegisterPrimitive("+f", cell.OpAddF, 2, 0, floatBinOp(func(a, b float64) (float64, bool) { return a + b, true }))
	t.RegisterPrimitive("-f", cell.OpSubF, 2, 0, floatBinOp(func(a, b float64) (float64, bool) { return a - b, true }))
	t.RegisterPrimitive("*f", cell.OpMulF, 2, 0, floatBinOp(func(a, b float64) (float64, bool) { return a * b, true }))
	t.RegisterPrimitive("/f", cell.OpDivF, 2, 0, floatBinOp(func(a, b float64) (float64, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}))
	t.RegisterPrimitive("atan2", cell.OpAtan2, 2, 0, floatBinOp(func(a, b float64) (float64, bool) { return math.Atan2(a, b), true }))

	t.RegisterPrimitive("log", cell.OpLog, 1, 0, floatUnaryOp(func(a float64) (float64, bool) {
		if a <= 0 {
			return 0, false
		}
		return math.Log(a), true
	}))
	t.RegisterPrimitive("exp", cell.OpExp, 1, 0, floatUnaryOp(func(a float64) (float64, bool) { return math.Exp(a), true }))
	t.RegisterPrimitive("sin", cell.OpSin, 1, 0, floatUnaryOp(func(a float64) (float64, bool) { return math.Sin(a), true }))
	t.RegisterPrimitive("cos", cell.OpCos, 1, 0, floatUnaryOp(func(a float64) (float64, bool) { return math.Cos(a), true }))
	t.RegisterPrimitive("tan", cell.OpTan, 1, 0, floatUnaryOp(func(a float64) (float64, bool) { return math.Tan(a), true }))
}
