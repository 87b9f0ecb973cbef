package parser

import (
	"testing"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/compose"
	"github.com/b0nefish/poprc/internal/lexer"
	"github.com/b0nefish/poprc/internal/ops"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/trace"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// newTestPipeline wires the same collaborators package reduce's own tests
// use (cellmem.New(0), altset.NewIDCounter(), a nil logger) but through the
// real word table and operator registrations, so these tests exercise the
// lexer, parser, and reducer together end to end.
func newTestPipeline() (*cellmem.Arena, *reduce.Reducer, *wordtable.Table) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	compose.Register(tbl)
	trace.Register(tbl, &trace.Journal{})
	r := reduce.New(a, altset.NewIDCounter(), tbl, nil)
	return a, r, tbl
}

func parseSource(t *testing.T, tbl *wordtable.Table, a *cellmem.Arena, src string) *cell.Cell {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	p := New(toks, tbl, a)
	root := p.ParseProgram()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Errors)
	}
	return root
}

// reduceOneInt parses src as a single top-level expression and reduces it
// to an int, failing the test on any non-SUCCESS response.
func reduceOneInt(t *testing.T, src string) int64 {
	t.Helper()
	a, r, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, src)
	if len(root.Val.List) != 1 {
		t.Fatalf("expected a single top-level expression, got %d", len(root.Val.List))
	}
	e := root.Val.List[0]
	resp := r.Reduce(&e, reduce.Request{Type: reduce.TInt})
	if resp != reduce.SUCCESS {
		t.Fatalf("reduce(%q) = %v, want SUCCESS", src, resp)
	}
	return e.Val.I
}

func TestParseAndReduceAddition(t *testing.T) {
	if got := reduceOneInt(t, "1 2 +"); got != 3 {
		t.Fatalf("1 2 + = %d, want 3", got)
	}
}

// TestParseAndReduceAltBranches reproduces the nondeterministic-choice
// scenario `1 2 | 3 +` -> [4, 5]: both alternates are reduced to int and
// collected by walking the surviving Alt chain in order.
func TestParseAndReduceAltBranches(t *testing.T) {
	a, r, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, "1 2 | 3 +")
	if len(root.Val.List) != 1 {
		t.Fatalf("expected a single top-level expression, got %d", len(root.Val.List))
	}
	e := root.Val.List[0]
	resp := r.ReduceAlt(&e)
	if resp != reduce.SUCCESS {
		t.Fatalf("ReduceAlt = %v, want SUCCESS", resp)
	}

	var got []int64
	for cur := e; cur != nil; cur = cur.Alt {
		if cell.IsFail(cur) {
			continue
		}
		got = append(got, cur.Val.I)
	}
	want := []int64{4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v alternates, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestParseAndReduceDivisionByZero reproduces `5 0 /` -> [fail]: the
// reducer reports FAIL and installs the shared fail sentinel in place.
func TestParseAndReduceDivisionByZero(t *testing.T) {
	a, r, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, "5 0 /")
	e := root.Val.List[0]
	resp := r.Reduce(&e, reduce.Any())
	if resp != reduce.FAIL {
		t.Fatalf("reduce(5 0 /) = %v, want FAIL", resp)
	}
	if !cell.IsFail(e) {
		t.Fatalf("expected *cp to hold the fail sentinel after FAIL")
	}
}

// TestParseAndReduceAssertFalse reproduces `assert` failing on a concrete
// non-True predicate: `42 1 2 = !` pushes 42, then pushes the comparison's
// False, then asserts (value=42, predicate=False), which must FAIL.
func TestParseAndReduceAssertFalse(t *testing.T) {
	a, r, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, "42 1 2 = !")
	e := root.Val.List[0]
	resp := r.Reduce(&e, reduce.Any())
	if resp != reduce.FAIL {
		t.Fatalf("reduce(42 1 2 = !) = %v, want FAIL", resp)
	}
}

// TestParseAndReduceQuoteApply reproduces `[1 +] 10 swap ap` -> [11]: the
// quotation literal's under-supplied `+` becomes a single-hole stage
// (frame.stages), `swap` relocates the reduced quote into the dep slot `ap`
// requires as its list argument, and applyQuotation threads 10 into the
// hole.
func TestParseAndReduceQuoteApply(t *testing.T) {
	if got := reduceOneInt(t, "[1 +] 10 swap ap"); got != 11 {
		t.Fatalf("[1 +] 10 swap ap = %d, want 11", got)
	}
}

// TestParseAndReduceComposeThenApply reproduces `[1 +] [2 *] . 3 swap ap`
// -> [8]: `.` concatenates the two single-hole quotations into one
// two-stage quotation, and applying 3 threads through both stages in
// order: (1 + 3) then (2 * 4).
func TestParseAndReduceComposeThenApply(t *testing.T) {
	if got := reduceOneInt(t, "[1 +] [2 *] . 3 swap ap"); got != 8 {
		t.Fatalf("[1 +] [2 *] . 3 swap ap = %d, want 8", got)
	}
}

// TestParseAndReduceQuoteDupDeliversBothOutputs applies a quotation whose
// final (and only) stage is the multi-output `dup`: the parser traces the
// quote through swap's dep slot and builds `ap` with a dep slot of its
// own, and both of dup's outputs come back onto the stack, where `*`
// consumes them.
func TestParseAndReduceQuoteDupDeliversBothOutputs(t *testing.T) {
	if got := reduceOneInt(t, "[dup] 10 swap ap *"); got != 100 {
		t.Fatalf("[dup] 10 swap ap * = %d, want 100", got)
	}
}

// TestGetArityOnMultiOutputQuote: a quotation ending in a multi-output
// primitive reports the extra output in its static arity.
func TestGetArityOnMultiOutputQuote(t *testing.T) {
	a, _, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, "[dup]")
	in, out, ok := GetArity(root.Val.List[0])
	if !ok || in != 1 || out != 2 {
		t.Fatalf("GetArity([dup]) = (%d, %d, %v), want (1, 2, true)", in, out, ok)
	}
}

// TestGetArityOnParsedQuote exercises GetArity directly against a parsed
// (not yet reduced) quotation literal.
func TestGetArityOnParsedQuote(t *testing.T) {
	a, _, tbl := newTestPipeline()
	root := parseSource(t, tbl, a, "[1 +]")
	q := root.Val.List[0]
	in, out, ok := GetArity(q)
	if !ok {
		t.Fatalf("GetArity reported ok=false for a quotation literal")
	}
	if in != 1 || out != 1 {
		t.Fatalf("GetArity = (%d, %d), want (1, 1)", in, out)
	}
}

func TestParseUnknownWordRecordsError(t *testing.T) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	toks := lexer.NewScanner("1 frobnicate").ScanTokens()
	p := New(toks, tbl, a)
	p.ParseProgram()
	if len(p.Errors) == 0 {
		t.Fatalf("expected a ParseError for an unknown word")
	}
}

// TestParseFuncBodySynthesizesOneParamForDup exercises a one-argument
// function body, "dup *": `dup` alone underflows against an empty stack
// (it needs the one input the function declares), so ParseFuncBody must
// report exactly one param, consumed by `dup`'s own Args[0] — `*` then
// consumes dup's two outputs (its dep and its primary cell), never the
// param cell directly, since dup is what duplicates it.
func TestParseFuncBodySynthesizesOneParamForDup(t *testing.T) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	toks := lexer.NewScanner("dup *").ScanTokens()
	p := New(toks, tbl, a)
	body, params := p.ParseFuncBody()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	if len(params) != 1 {
		t.Fatalf("got %d params, want 1", len(params))
	}
	if len(body) != 1 {
		t.Fatalf("got %d body cells, want 1", len(body))
	}
	mul := body[0]
	if len(mul.Expr.Args) != 2 {
		t.Fatalf("got %d args for *, want 2", len(mul.Expr.Args))
	}
	dupDep, dupCell := mul.Expr.Args[0], mul.Expr.Args[1]
	if !cell.IsDep(dupDep) || dupDep.Dep.Parent != dupCell {
		t.Fatalf("expected *'s first arg to be dup's dep output and its second to be dup itself")
	}
	if len(dupCell.Expr.Args) != 1 || dupCell.Expr.Args[0] != params[0] {
		t.Fatalf("expected dup's own arg to be the synthesized param")
	}
}

// TestParseFuncBodyTwoParamsInDeclOrder checks that "+" on an empty stack
// synthesizes its two missing operands left to right.
func TestParseFuncBodyTwoParamsInDeclOrder(t *testing.T) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	toks := lexer.NewScanner("+").ScanTokens()
	p := New(toks, tbl, a)
	body, params := p.ParseFuncBody()
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	if len(params) != 2 {
		t.Fatalf("got %d params, want 2", len(params))
	}
	if len(body) != 1 {
		t.Fatalf("got %d body cells, want 1", len(body))
	}
	add := body[0]
	if add.Expr.Args[0] != params[0] || add.Expr.Args[1] != params[1] {
		t.Fatalf("expected +'s args to be the params in declared order")
	}
}

func TestParseTopLevelArityDeficitRecordsError(t *testing.T) {
	a := cellmem.New(0)
	tbl := wordtable.New()
	ops.Register(tbl)
	toks := lexer.NewScanner("1 +").ScanTokens()
	p := New(toks, tbl, a)
	p.ParseProgram()
	if len(p.Errors) == 0 {
		t.Fatalf("expected an error for a top-level word with too few operands")
	}
}
