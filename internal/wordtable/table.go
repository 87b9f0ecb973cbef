// Package wordtable assembles the reduce.Table the reducer dispatches
// through: a name -> {primitive handler | user entry} registry (spec §6's
// "module table mapping names to entry cells", "word table is a static
// array of {name, handler, in_arity, out_arity} tuples").
//
// It sits below every operator package (ops, compose, trace, funcexpand)
// rather than above them, so each can Register into a *Table without
// wordtable ever importing them back; only the composition root (package
// runtime) imports all of them together.
package wordtable

import (
	"sort"

	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
)

// WordInfo describes one surface-syntax word: either a primitive operator
// (Op is its OpTag, whose handler is registered in byOp) or a user function (Op == cell.OpExec,
// looked up by name through LookupFunc instead).
type WordInfo struct {
	Name    string
	Op      cell.OpTag
	In, Out int
}

// Table implements reduce.Table and doubles as the parser's name registry.
type Table struct {
	byOp   map[cell.OpTag]reduce.Handler
	byName map[string]*WordInfo
	funcs  map[string]*cell.Entry
}

// New returns an empty Table ready for Register calls.
func New() *Table {
	return &Table{
		byOp:   make(map[cell.OpTag]reduce.Handler),
		byName: make(map[string]*WordInfo),
		funcs:  make(map[string]*cell.Entry),
	}
}

// RegisterPrimitive adds a primitive operator under both its Op tag (for
// the reducer's dispatch) and its surface name (for the parser).
func (t *Table) RegisterPrimitive(name string, op cell.OpTag, in, out int, h reduce.Handler) {
	t.byOp[op] = h
	t.byName[name] = &WordInfo{Name: name, Op: op, In: in, Out: out}
}

// RegisterFunc adds a compiled user function entry under its name.
func (t *Table) RegisterFunc(name string, e *cell.Entry) {
	t.funcs[name] = e
	t.byName[name] = &WordInfo{Name: name, Op: cell.OpExec, In: e.In, Out: e.Out - 1}
}

// RegisterExecHandler installs the single handler dispatched for every
// OpExec cell (package funcexpand's call-site expander). It does not
// touch byName: each user function is still looked up by its own name
// via RegisterFunc, with LookupFunc resolving the callee entry once the
// handler runs.
func (t *Table) RegisterExecHandler(h reduce.Handler) {
	t.byOp[cell.OpExec] = h
}

// Lookup implements reduce.Table.
func (t *Table) Lookup(op cell.OpTag) (reduce.Handler, bool) {
	h, ok := t.byOp[op]
	return h, ok
}

// LookupFunc implements reduce.Table.
func (t *Table) LookupFunc(name string) (*cell.Entry, bool) {
	e, ok := t.funcs[name]
	return e, ok
}

// LookupWord resolves a surface-syntax name for the parser: which OpTag (or
// OpExec) and arity it names.
func (t *Table) LookupWord(name string) (*WordInfo, bool) {
	w, ok := t.byName[name]
	return w, ok
}

// Words returns every registered word, sorted by name, for diagnostics and
// the REPL's :words listing.
func (t *Table) Words() []*WordInfo {
	out := make([]*WordInfo, 0, len(t.byName))
	for _, w := range t.byName {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
