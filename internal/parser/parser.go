// Package parser turns a scanned token stream into a DAG of unreduced
// closures rooted in a list cell (spec §3, §6's "a parser turning tokens
// into a DAG of unreduced closures"). It is an external collaborator per
// spec §1 — the core (package reduce) never imports it — but is included
// here so the repository runs end to end (SPEC_FULL.md's "lex.c" / `test.c`
// supplement).
//
// Grounded on the teacher's internal/parser/parser.go for overall shape
// (a cursor over a token slice, an accumulated Errors slice, recursive
// descent) but the AST itself is rewritten: there is no expression tree,
// only a left-to-right stack-building walk that fills each word's argument
// vector directly from the cells already built for the words before it,
// exactly the way a concatenative, point-free language is parsed.
package parser

import (
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/errors"
	"github.com/b0nefish/poprc/internal/lexer"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Parser holds the cursor over a token stream plus the collaborators it
// needs to allocate cells and resolve word names: the arena (spec §4.A)
// and the word table (spec §6).
type Parser struct {
	tokens []lexer.Token
	pos    int
	file   string
	table  *wordtable.Table
	arena  *cellmem.Arena
	Errors []*errors.Error
}

// New constructs a Parser over tokens, resolving words against table and
// allocating cells from arena.
func New(tokens []lexer.Token, table *wordtable.Table, arena *cellmem.Arena) *Parser {
	return &Parser{tokens: tokens, table: table, arena: arena}
}

// NewWithFile is New, additionally naming the source file for diagnostics.
func NewWithFile(tokens []lexer.Token, file string, table *wordtable.Table, arena *cellmem.Arena) *Parser {
	p := New(tokens, table, arena)
	p.file = file
	return p
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if t.Type != lexer.TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	p.Errors = append(p.Errors, errors.At(errors.ParseError, errors.SourceLocation{File: p.file, Line: tok.Line, Column: tok.Col}, format, args...))
}

// frame is the mutable state of one stack-building pass, shared between
// the top-level program and every nested quotation body (spec §4.F/§9's
// "row polymorphism"): a concrete operand stack plus, once a word under-
// supplies its inputs, a chain of single-hole pipeline stages threading an
// implicit external accumulator (see DESIGN.md's "quotation literal
// construction" entry for why this models exactly the single-hole-per-
// stage shape package compose's ap/compose handlers expect).
type frame struct {
	concrete []*cell.Cell
	stages   []*cell.Cell
	haveHole bool
	quoteIn  int
	nested   bool // true inside a `[...]`: underflow builds a hole instead of erroring

	// autoParams is set for a named function body (ParseFuncBody):
	// underflow synthesizes a fresh identity-marker placeholder cell per
	// missing input instead of erroring or opening a row-polymorphic
	// hole, and records it in params in declared-argument order — the
	// cells package funcexpand's expandCall later substitutes a call
	// site's actual arguments for.
	autoParams bool
	params     []*cell.Cell
}

// ParseProgram parses the entire token stream as the top-level program and
// returns the root list cell holding the final stack, left-to-right in
// push order (spec §6's eval(root_list_cell)). A top-level arity deficit
// (a word consuming more than is on the stack) is recorded as an
// errors.ParseError, since there is no outer accumulator to draw from.
func (p *Parser) ParseProgram() *cell.Cell {
	fr := &frame{}
	p.parseBody(fr)
	if p.peek().Type != lexer.TokEOF {
		p.errorf(p.peek(), "unexpected %q", p.peek().Text)
	}
	root := p.arena.Alloc()
	root.Op = cell.OpValue
	root.Val = &cell.Value{Kind: cell.VList, List: fr.concrete}
	return root
}

// parseBody consumes tokens into fr until EOF or a matching `]`, building
// fr.concrete/fr.stages in place.
func (p *Parser) parseBody(fr *frame) {
	for {
		tok := p.peek()
		switch tok.Type {
		case lexer.TokEOF, lexer.TokRBrack:
			return
		case lexer.TokInt:
			p.advance()
			p.push(fr, p.arena.Val(tok.I))
		case lexer.TokFloat:
			p.advance()
			p.push(fr, p.arena.FloatVal(tok.F))
		case lexer.TokString:
			p.advance()
			c := p.arena.Alloc()
			c.Op = cell.OpValue
			c.Val = &cell.Value{Kind: cell.VString, Str: tok.Text}
			p.push(fr, c)
		case lexer.TokLBrack:
			p.advance()
			p.push(fr, p.parseQuote())
		case lexer.TokWord:
			p.advance()
			p.parseWord(fr, tok)
		default:
			p.advance()
			p.errorf(tok, "unexpected token %q", tok.Text)
		}
	}
}

// parseQuote parses a bracketed `[ ... ]` quotation body (already past the
// opening `[`) into a row-polymorphic VList value (spec §4.F/§9), and
// consumes the closing `]`.
func (p *Parser) parseQuote() *cell.Cell {
	open := p.peek()
	fr := &frame{nested: true}
	p.parseBody(fr)
	if p.peek().Type != lexer.TokRBrack {
		p.errorf(open, "unterminated quotation")
	} else {
		p.advance()
	}
	list := append(append([]*cell.Cell(nil), fr.stages...), fr.concrete...)
	// Net output count: the stage pipeline threads to one primary, plus
	// each stage's declared extra deps; concrete cells count one apiece.
	out := len(fr.concrete)
	if len(fr.stages) > 0 {
		out++
		for _, st := range fr.stages {
			out += st.Expr.Out
		}
	}
	c := p.arena.Alloc()
	c.Op = cell.OpValue
	c.Val = &cell.Value{Kind: cell.VList, List: list, QuoteIn: fr.quoteIn, QuoteOut: out}
	return c
}

// push appends a fully-built cell onto fr's concrete operand stack (used
// for literals, quotations, and words whose outputs needed no hole).
func (p *Parser) push(fr *frame, c *cell.Cell) {
	fr.concrete = append(fr.concrete, c)
}

// parseWord resolves tok as a primitive or user-function word and builds
// its closure, consuming operands off fr (spec §4.E/§4.H).
func (p *Parser) parseWord(fr *frame, tok lexer.Token) {
	w, ok := p.table.LookupWord(tok.Text)
	if !ok {
		p.errorf(tok, "unknown word %q", tok.Text)
		return
	}

	in, out := w.In, w.Out
	if fr.autoParams && len(fr.concrete) < in {
		deficit := in - len(fr.concrete)
		fresh := make([]*cell.Cell, deficit)
		for i := range fresh {
			ph := &cell.Cell{} // pure identity marker, substituted away before ever being reduced
			fresh[i] = ph
			fr.params = append(fr.params, ph)
		}
		fr.concrete = append(fresh, fr.concrete...)
	}
	have := len(fr.concrete)
	if have > in {
		have = in
	}
	popped := fr.concrete[len(fr.concrete)-have:]
	fr.concrete = fr.concrete[:len(fr.concrete)-have]

	if w.Op == cell.OpAp && len(popped) > 0 {
		// ap's output arity is the applied quotation's, not the word
		// table's static 0: trace the quote operand and build dep slots
		// for its extra outputs (spec §4.F step 6).
		out += quoteExtraOuts(popped[0])
	}

	var c *cell.Cell
	if w.Op == cell.OpExec {
		c = p.arena.Func(cell.OpExec, in, out)
		c.Expr.FuncName = w.Name
	} else {
		c = p.arena.Func(w.Op, in, out)
	}
	for _, v := range popped {
		c.Expr.Fill(v)
	}

	remaining := in - have
	if remaining == 0 {
		p.pushResults(fr, c, out)
		return
	}

	if !fr.nested {
		p.errorf(tok, "word %q needs %d inputs, only %d available", tok.Text, in, have)
		return
	}

	satisfied := 0
	if remaining > 0 {
		satisfied = 1
		if !fr.haveHole {
			fr.quoteIn++
			fr.haveHole = true
		}
	}
	fr.quoteIn += remaining - satisfied
	fr.stages = append(fr.stages, c)
}

// pushResults installs a fully-resolved word's primary result and any
// secondary dep outputs back onto fr.concrete, deps first (so they occupy
// the deeper stack slots) and the primary last/on top — the push order
// that makes `swap`'s Deps[0]/primary installation (package ops) actually
// exchange the two operands' positions (see DESIGN.md's "parser argument
// and result ordering").
func (p *Parser) pushResults(fr *frame, c *cell.Cell, out int) {
	for i := 0; i < out; i++ {
		fr.concrete = append(fr.concrete, p.arena.Dep(c, i))
	}
	fr.concrete = append(fr.concrete, c)
}

// quoteExtraOuts statically traces ap's quotation operand — a literal
// list, or a literal reaching ap through swap's dep slot, the two shapes
// this surface syntax produces — and reports how many outputs beyond the
// primary applying it yields. A quote arriving any other way (through a
// user function, say) reports 0 and delivers only its primary.
func quoteExtraOuts(c *cell.Cell) int {
	if cell.IsDep(c) && c.Dep.Parent != nil && c.Dep.Parent.Op == cell.OpSwap {
		if pargs := cell.ClosureArgs(c.Dep.Parent); len(pargs) > 0 {
			c = pargs[0]
		}
	}
	if cell.IsList(c) && c.Val.QuoteOut > 1 {
		return c.Val.QuoteOut - 1
	}
	return 0
}

// GetArity reports the static input/output arity of an already-parsed
// quotation value without forcing it (spec §6's get_arity).
func GetArity(v *cell.Cell) (in, out int, ok bool) {
	if !cell.IsList(v) {
		return 0, 0, false
	}
	return v.Val.QuoteIn, v.Val.QuoteOut, true
}

// ParseFuncBody parses the whole token stream as a named function's body
// (spec §4.H's compiled cell.Entry) rather than a top-level program or a
// bracketed quotation: every stack underflow synthesizes a declared
// parameter instead of erroring, so "dup *" compiles directly to a body
// plus the one parameter cell its two word-closures share, with no
// caller-supplied arity needed up front.
func (p *Parser) ParseFuncBody() (body []*cell.Cell, params []*cell.Cell) {
	fr := &frame{autoParams: true}
	p.parseBody(fr)
	if p.peek().Type != lexer.TokEOF {
		p.errorf(p.peek(), "unexpected %q", p.peek().Text)
	}
	return fr.concrete, fr.params
}
