// Package compose implements the row-polymorphic quotation operators `ap`,
// `.` (compose), and `pushr` (spec §4.F) — the algorithmically dense piece
// singled out by the spec's overview. Like package ops, it registers
// reduce.Handlers into a *wordtable.Table without package reduce ever
// importing it (see internal/reduce's package doc).
//
// Grounded on the teacher's internal/compiler hoisting passes for "build a
// closure lazily and let forcing drive it" and on _examples/original_source/
// primitive.c's func_compose/func_pushl for the arity algebra this package
// ports (compose_in/compose_out, placeholder_extend, list splice).
package compose

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Register installs `ap`, `.`, and `pushr`.
func Register(t *wordtable.Table) {
	t.RegisterPrimitive("ap", cell.OpAp, 2, 0, reduce.HandlerFunc(apHandler))
	t.RegisterPrimitive(".", cell.OpCompose, 2, 0, reduce.HandlerFunc(composeHandler))
	t.RegisterPrimitive("pushr", cell.OpPushr, 2, 0, reduce.HandlerFunc(pushrHandler))
}

// composeIn/composeOut implement the spec's arity formulas exactly:
//
//	compose_in(req_in)    = max(0, req_in - b_in) + b_out + a_in
//	compose_out(a_in,out) = b_in + max(0, out - b_out) - a_in
func composeIn(reqIn, bIn, bOut, aIn int) int {
	d := reqIn - bIn
	if d < 0 {
		d = 0
	}
	return d + bOut + aIn
}

func composeOut(aIn, out, bIn, bOut int) int {
	d := out - bOut
	if d < 0 {
		d = 0
	}
	return bIn + d - aIn
}

// spliceList concatenates left and right into one list, each element
// retaining the reference its source list held (the "concrete list-splice
// operator" of spec §4.F step 5); ownership of left/right's slices
// themselves is the caller's.
func spliceList(left, right []*cell.Cell) []*cell.Cell {
	out := make([]*cell.Cell, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

// placeholderExtend gives v a row placeholder standing for the unknown
// residual inputs when a request asks for more than v declares (spec §4.F
// step 4). A single first-slot marker carries the whole residual, per the
// spec's row convention; an already-row list is left alone.
func placeholderExtend(a *cellmem.Arena, v *cell.Value, needIn int) {
	if needIn <= v.QuoteIn {
		return
	}
	if len(v.List) > 0 && cell.IsPlaceholder(v.List[0]) {
		v.QuoteIn = needIn
		return
	}
	v.List = append([]*cell.Cell{a.RowPlaceholder()}, v.List...)
	v.QuoteIn = needIn
	v.Flags |= cell.FlagRow
}

// applyQuotation threads arg into the first open hole of quote's program
// and wires each subsequent element's result into the next hole, lazily:
// each Fill binds a still-unreduced argument cell, so the whole pipeline
// is only actually forced once the caller reduces the returned cell. A
// leading row placeholder (a row list's first slot) is skipped; a stage
// with more holes than the pipeline supplies has the rest filled with row
// placeholders, surfacing as DELAY when forced (see DESIGN.md "Quotation
// literal construction").
func applyQuotation(r *reduce.Reducer, list []*cell.Cell, arg *cell.Cell) (result *cell.Cell, consumed, ok bool) {
	cur := arg
	var last *cell.Cell
	for _, elem := range list {
		if cell.IsPlaceholder(elem) {
			continue
		}
		ec := elem
		r.Arena.Ref(ec)
		r.Arena.Unique(&ec)
		if cell.NeedsArg(ec) {
			if cur == arg {
				consumed = true
			}
			ec.Expr.Fill(cur)
			// Per-stage placeholder extension (spec §4.F step 4): a stage
			// wanting more inputs than the pipeline supplies gets row
			// placeholders in its remaining holes; forcing it then reports
			// DELAY rather than computing on an unknown.
			for cell.NeedsArg(ec) {
				ec.Expr.Fill(r.Arena.RowPlaceholder())
			}
		}
		cur = ec
		last = ec
	}
	if last == nil {
		return nil, consumed, false
	}
	return last, consumed, true
}

func apHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)

	var altOut altset.Set
	resp := r.ReduceArg(&args[0], reduce.Request{Type: reduce.TList, ExpectedIn: 1}, &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}
	resp = r.ReduceArg(&args[1], reduce.Any(), &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}

	row := cell.IsRowList(args[0])
	result, consumed, ok := applyQuotation(r, args[0].Val.List, args[1])
	r.Arena.Drop(args[0])
	args[0] = nil
	if consumed {
		// The value's hold moved into the pipeline's first stage.
		args[1] = nil
	}
	if !ok {
		return reduce.FAIL
	}
	if args[1] != nil {
		// Only a row placeholder may absorb an input the stages never
		// consume; a plain zero-input quotation handed a value is an
		// arity violation.
		if !row {
			r.Arena.Drop(result)
			return reduce.FAIL
		}
		r.Arena.Drop(args[1])
		args[1] = nil
	}

	// Secondary outputs (spec §4.F step 6): each dep this cell was built
	// with pulls one output of the final stage, through a fresh dep cell
	// attached before the stage reduces.
	deps := c.Expr.Deps
	var pulls []*cell.Cell
	if len(deps) > 0 {
		if result.Expr == nil || result.Expr.Out < len(deps) {
			r.Arena.Drop(result)
			return reduce.FAIL
		}
		pulls = make([]*cell.Cell, len(deps))
		for i := range deps {
			pulls[i] = r.Arena.Dep(result, i)
		}
	}

	resp = r.Reduce(&result, req)
	if resp != reduce.SUCCESS {
		for _, p := range pulls {
			r.Arena.Drop(p)
		}
		r.Arena.Drop(result)
		return resp
	}
	for i, d := range deps {
		if d == nil || !cell.IsValue(pulls[i]) {
			r.Arena.Drop(pulls[i])
			continue
		}
		dv := r.Arena.Steal(pulls[i])
		r.Arena.Drop(pulls[i])
		r.Arena.StoreReduced(&d, dv, altset.Union(altOut, dv.AltSet))
		deps[i] = d
	}
	v := r.Arena.Steal(result)
	r.Arena.Drop(result)
	r.Arena.StoreReduced(cp, v, altset.Union(altOut, v.AltSet))
	return reduce.SUCCESS
}

// composeHandler implements `.`: concatenates two quotations into one,
// left-to-right (the right-hand quotation's stages run after the left's),
// and sums their static arities via composeIn/composeOut.
func composeHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)

	var altOut altset.Set
	resp := r.ReduceArg(&args[0], reduce.Request{Type: reduce.TList}, &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}
	resp = r.ReduceArg(&args[1], reduce.Request{Type: reduce.TList}, &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}

	lv, rv := args[0].Val, args[1].Val
	for _, e := range lv.List {
		r.Arena.Ref(e)
	}
	for _, e := range rv.List {
		r.Arena.Ref(e)
	}
	combined := spliceList(lv.List, rv.List)
	inArity := composeIn(rv.QuoteIn, lv.QuoteIn, lv.QuoteOut, rv.QuoteIn)
	outArity := composeOut(rv.QuoteIn, rv.QuoteOut, lv.QuoteIn, lv.QuoteOut)

	r.Arena.Drop(args[0])
	r.Arena.Drop(args[1])
	args[0], args[1] = nil, nil

	out := &cell.Value{Kind: cell.VList, List: combined, QuoteIn: inArity, QuoteOut: outArity}
	// Step 4: a request expecting more inputs than the composed list
	// declares gets the residual carried by a row placeholder.
	placeholderExtend(r.Arena, out, req.ExpectedIn)
	r.Arena.StoreReduced(cp, out, altOut)
	return reduce.SUCCESS
}

// pushrHandler implements `pushr`: appends a value onto the right end of a
// quotation's list (spec §4.F note: "pushr lowers to compose" — here it
// builds the equivalent single-element right-hand list directly rather
// than constructing and reducing a literal `.` cell).
func pushrHandler(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
	c := *cp
	args := cell.ClosureArgs(c)

	var altOut altset.Set
	resp := r.ReduceArg(&args[0], reduce.Request{Type: reduce.TList}, &altOut)
	if resp != reduce.SUCCESS {
		return resp
	}

	lv := args[0].Val
	for _, e := range lv.List {
		r.Arena.Ref(e)
	}
	combined := append(append([]*cell.Cell(nil), lv.List...), args[1])
	r.Arena.Drop(args[0])
	args[0], args[1] = nil, nil // args[1]'s hold moved into combined

	out := &cell.Value{Kind: cell.VList, List: combined, QuoteIn: lv.QuoteIn, QuoteOut: lv.QuoteOut + 1}
	r.Arena.StoreReduced(cp, out, altOut)
	return reduce.SUCCESS
}
