// Package runtime is the composition root: it owns the arena, the alt-id
// counter, the word table, the trace journal, the entry store, and
// diagnostics, and exposes the spec §6 external entry points (eval,
// reduce, get_arity, check_free, and the cell construction helpers) as
// methods of one Engine. No teacher file has this shape directly; it
// mirrors how the teacher's cmd/sentra/main.go constructs and threads its
// own subsystems (lexer, compiler, VM, module loader, debugger) together
// in one place, generalized from "build a chunk and a VM" to "build a
// word table and a reducer".
package runtime

import (
	"fmt"
	"io"

	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/compose"
	"github.com/b0nefish/poprc/internal/config"
	"github.com/b0nefish/poprc/internal/diag"
	"github.com/b0nefish/poprc/internal/entrystore"
	"github.com/b0nefish/poprc/internal/errors"
	"github.com/b0nefish/poprc/internal/funcexpand"
	"github.com/b0nefish/poprc/internal/ioport"
	"github.com/b0nefish/poprc/internal/lexer"
	"github.com/b0nefish/poprc/internal/ops"
	"github.com/b0nefish/poprc/internal/parser"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/trace"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Engine is the process-wide state spec §5 calls out as "shared
// resources" (the arena, the alt-id counter, the word table, a trace-
// builder side table), bundled with the ambient collaborators (logging,
// IO, persistence) SPEC_FULL.md adds around the core.
type Engine struct {
	Arena   *cellmem.Arena
	IDs     *altset.IDCounter
	Table   *wordtable.Table
	Journal *trace.Journal
	Log     *diag.Logger
	IO      ioport.Port
	Store   *entrystore.Store // nil when config.EntryStoreDSN == ""

	reducer *reduce.Reducer
}

// New constructs an Engine from cfg, registering every primitive operator
// package (ops, compose, trace, funcexpand) into a fresh word table and
// opening the entry store if cfg.EntryStoreDSN is non-empty. logWriter may
// be nil to log to the process's standard log writer.
func New(cfg config.Config, logWriter io.Writer) (*Engine, error) {
	log := diag.New(logWriter, parseLevel(cfg.LogLevel))

	arena := cellmem.New(cfg.ArenaSlabSize)
	ids := altset.NewIDCounter()
	table := wordtable.New()
	journal := &trace.Journal{}
	port := ioport.NewLocalFile()

	ops.Register(table)
	ops.RegisterPrint(table, ioport.Printer{Port: port})
	compose.Register(table)
	trace.Register(table, journal)
	funcexpand.Register(table, journal)

	e := &Engine{
		Arena:   arena,
		IDs:     ids,
		Table:   table,
		Journal: journal,
		Log:     log,
		IO:      port,
	}
	e.reducer = reduce.New(arena, ids, table, reducerLogger{log})

	if cfg.EntryStoreDSN != "" {
		store, err := entrystore.Open(cfg.EntryStoreDSN)
		if err != nil {
			log.Warnf("entry store unavailable, starting cold: %v", err)
		} else {
			e.Store = store
			if err := e.warmStart(); err != nil {
				log.Warnf("entry store warm start: %v", err)
			}
		}
	}

	e.Log.Event("init", "slab", cfg.ArenaSlabSize, "dsn", cfg.EntryStoreDSN)
	return e, nil
}

// reducerLogger adapts *diag.Logger to reduce.Logger without package
// reduce importing package diag (the same inversion reduce.Logger's own
// doc comment describes).
type reducerLogger struct{ l *diag.Logger }

func (r reducerLogger) Event(tag string, kv ...any) { r.l.Event(tag, kv...) }

func parseLevel(s string) diag.Level {
	switch s {
	case "debug":
		return diag.LevelDebug
	case "warn":
		return diag.LevelWarn
	case "error":
		return diag.LevelError
	default:
		return diag.LevelInfo
	}
}

// warmStart reparses every cached entry's source against the current word
// table, so a REPL session recovers user functions defined in a prior one
// (DESIGN.md's "entrystore" supplemented feature).
func (e *Engine) warmStart() error {
	recs, err := e.Store.All()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := e.DefineFunc(rec.Name, rec.Source); err != nil {
			e.Log.Warnf("warm start: %s: %v", rec.Name, err)
			continue
		}
	}
	return nil
}

// --- spec §6 external interface ---

// Reduce is the reducer entry point (spec §4.D).
func (e *Engine) Reduce(cp **cell.Cell, req reduce.Request) reduce.Response {
	return e.reducer.Reduce(cp, req)
}

// Eval reduces every top-level expression in root (a VList cell) under
// TAny and invokes the IO printer collaborator on each reduced element in
// order, per spec §6's "eval(root_list_cell): reduces a list of
// expressions and invokes the printer collaborator on each reduced
// element." A nondeterministic element is enumerated in full: every
// surviving alternate on its chain is printed, head first (spec §8's
// `1 2 | 3 +` -> `[4, 5]`); an element with no surviving alternate prints
// as the fail symbol. It returns the reduced values for a caller (the
// CLI, the REPL, a test) that wants them directly instead of just their
// printed form.
func (e *Engine) Eval(root *cell.Cell) ([]*cell.Value, error) {
	if !cell.IsList(root) {
		return nil, errors.New(errors.Incomplete, "eval: root is not a list")
	}
	out := make([]*cell.Value, 0, len(root.Val.List))
	printer := ioport.Printer{Port: e.IO}
	for i := range root.Val.List {
		cp := root.Val.List[i]
		resp := e.reducer.ReduceAlt(&cp)
		// Reduction may have replaced the element cell (alt fallback, id
		// collapse); the list must keep holding whatever cp points at now
		// so teardown releases the right graph.
		root.Val.List[i] = cp
		if resp == reduce.DELAY {
			return out, errors.New(errors.Incomplete, "eval: element %d stalled on DELAY with no higher-priority pass", i)
		}
		for alt := cp; alt != nil; alt = alt.Alt {
			if alt.Val == nil {
				continue
			}
			out = append(out, alt.Val)
			if err := printer.Print(alt.Val); err != nil {
				e.Log.Warnf("eval: print element %d: %v", i, err)
			}
		}
	}
	return out, nil
}

// GetArity computes a quotation's static arity without reducing it (spec
// §6's get_arity), delegating to package parser's implementation since
// the quote-literal arity bookkeeping (Value.QuoteIn/QuoteOut) is
// populated there at parse time.
func (e *Engine) GetArity(parsed *cell.Cell) (in, out int, ok bool) {
	return parser.GetArity(parsed)
}

// CheckFree verifies the conservation invariant (spec §8 property 1):
// zero live non-persistent cells outstanding.
func (e *Engine) CheckFree() []*cell.Cell {
	return e.Arena.CheckFree()
}

// --- cell construction helpers (spec §6), delegated straight to the
// arena; kept here too so callers depending only on *Engine need not also
// import package cellmem. ---

func (e *Engine) Val(i int64) *cell.Cell        { return e.Arena.Val(i) }
func (e *Engine) FloatVal(f float64) *cell.Cell { return e.Arena.FloatVal(f) }
func (e *Engine) Var(kind cell.ValKind, idx int, owner *cell.Entry) *cell.Cell {
	return e.Arena.Var(kind, idx, owner)
}
func (e *Engine) EmptyList() *cell.Cell                      { return e.Arena.EmptyList() }
func (e *Engine) Id(arg *cell.Cell) *cell.Cell               { return e.Arena.Id(arg) }
func (e *Engine) Func(op cell.OpTag, in, out int) *cell.Cell { return e.Arena.Func(op, in, out) }

// --- parsing ---

// Parse lexes and parses source into a root list cell ready for Eval,
// against this Engine's current word table (spec §6's "parser turning
// tokens into a DAG of unreduced closures").
func (e *Engine) Parse(source string) (*cell.Cell, []*errors.Error) {
	lex := lexer.NewScanner(source)
	tokens := lex.ScanTokens()
	p := parser.New(tokens, e.Table, e.Arena)
	root := p.ParseProgram()
	return root, p.Errors
}

// DefineFunc compiles source (a function body, e.g. "dup *") as a new or
// redefined user function name, registering it into the word table and,
// if a Store is attached, persisting it for the next session (spec §4.H's
// compiled entry; DESIGN.md's entrystore supplement). Arity is inferred
// entirely from source: package parser's ParseFuncBody synthesizes one
// declared parameter per stack underflow instead of requiring the caller
// to state an input count up front.
func (e *Engine) DefineFunc(name, source string) error {
	lex := lexer.NewScanner(source)
	tokens := lex.ScanTokens()
	p := parser.New(tokens, e.Table, e.Arena)
	body, params := p.ParseFuncBody()
	if len(p.Errors) > 0 {
		return fmt.Errorf("runtime: define %s: %w", name, p.Errors[0])
	}
	entry := &cell.Entry{Name: name, In: len(params), Out: len(body), Body: body, Params: params}
	// The table holds the body for the life of the process; its cells are
	// persistent so a teardown leak check only sees per-program garbage.
	for _, b := range body {
		cell.MarkPersistent(b)
	}
	e.Table.RegisterFunc(name, entry)

	if e.Store != nil {
		if err := e.Store.Put(entrystore.Record{Name: name, In: entry.In, Out: entry.Out, Source: source}); err != nil {
			e.Log.Warnf("define %s: persist: %v", name, err)
		}
	}
	return nil
}

// Close releases the entry store connection, if any.
func (e *Engine) Close() error {
	if e.Store != nil {
		return e.Store.Close()
	}
	return nil
}
