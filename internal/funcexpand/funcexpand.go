// Package funcexpand implements user-function call-site expansion (spec
// §4.H): the handler registered for every OpExec cell, which either
// partially evaluates an opaque or still-compiling callee into a fresh
// trace variable, or expands the call by deep-copying the callee's
// compiled body with its parameters bound to the call's own arguments.
//
// It is the direct generalization of the teacher's internal/compiler
// package: where that package walked a tree-shaped AST into a flat
// bytecode.Chunk one opcode at a time, this package walks a compiled
// cell.Entry's body graph one cell at a time into a fresh copy rooted at
// the call site — a structurally identical "translate a front-end
// representation into cells the backend can run" shape, repointed at
// graph reduction instead of a bytecode VM.
package funcexpand

import (
	"github.com/b0nefish/poprc/internal/altset"
	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/cellmem"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/trace"
	"github.com/b0nefish/poprc/internal/wordtable"
)

// Register installs the OpExec dispatch handler into t, recording each
// partially evaluated (deferred-expansion) call site into j.
func Register(t *wordtable.Table, j *trace.Journal) {
	t.RegisterExecHandler(reduce.HandlerFunc(execHandler(j)))
}

func execHandler(j *trace.Journal) reduce.HandlerFunc {
	return func(r *reduce.Reducer, cp **cell.Cell, req reduce.Request) reduce.Response {
		c := *cp
		entry, ok := r.Table.LookupFunc(c.Expr.FuncName)
		if !ok {
			return reduce.FAIL
		}
		args := cell.ClosureArgs(c)

		// Step 1: an empty body (still compiling) or a call site marked
		// recursive never expands; fall back to partial evaluation.
		if len(entry.Body) == 0 || c.Expr.Flags&cell.FlagRecursive != 0 {
			return partialEval(r, cp, req, entry, args, j)
		}

		return expandCall(r, cp, req, entry, args, j)
	}
}

// partialEval implements spec §4.H step 1: reduce every argument for its
// side effects and alt-set contribution, then install a fresh
// partial-evaluation variable (and one per requested dep) whose trace
// records this call site, instead of expanding the body.
func partialEval(r *reduce.Reducer, cp **cell.Cell, req reduce.Request, entry *cell.Entry, args []*cell.Cell, j *trace.Journal) reduce.Response {
	c := *cp
	var altOut altset.Set
	for i := range args {
		resp := r.ReduceArg(&args[i], reduce.Any(), &altOut)
		if resp != reduce.SUCCESS {
			return resp
		}
	}
	for _, a := range args {
		r.Arena.Drop(a)
	}

	rec := j.Record("call", "deferred expansion of "+entry.Name)
	traceIdx := len(j.Entries()) - 1
	_ = rec

	deps := c.Expr.Deps
	for i, d := range deps {
		if d == nil {
			continue
		}
		v := r.Arena.Var(varKind(reduce.TAny), traceIdx+1+i, entry)
		val := r.Arena.Steal(v)
		r.Arena.Drop(v)
		r.Arena.StoreReduced(&d, val, altOut)
		deps[i] = d
	}

	v := r.Arena.Var(varKind(req.Type), traceIdx, entry)
	val := r.Arena.Steal(v)
	r.Arena.Drop(v)
	r.Arena.StoreReduced(cp, val, altOut)
	return reduce.SUCCESS
}

func varKind(t reduce.ReqType) cell.ValKind {
	switch t {
	case reduce.TFloat:
		return cell.VFloat
	case reduce.TSymbol:
		return cell.VSymbol
	case reduce.TString:
		return cell.VString
	case reduce.TList:
		return cell.VList
	case reduce.THandle:
		return cell.VHandle
	default:
		return cell.VInt
	}
}

// expandCall implements spec §4.H steps 3-5: copy the body's primary
// result into fresh cells, binding the entry's declared parameters to
// the call's arguments, and install the expansion at the call site.
//
// entry.Body is package parser's ParseFuncBody mirroring its own
// pushResults: every element before the last is one of the primary
// result's own Dep placeholders (pushed deeper on the stack, ahead of
// the primary it depends on), never a set of alternate returns — a
// body's alternates only ever arise at reduction time, through a single
// rooted closure's own Alt chain (see package ops's altHandler), never
// as distinct ParseFuncBody roots. Only entry.Body's last element is
// ever copied; the leading Dep elements are artifacts of how the body
// was parsed and carry nothing deepCopyBody needs.
//
// A call with its own dep outputs (entry.Out > 1, installed by whoever
// invoked this function as a word) cannot be expanded by replacing *cp
// and discarding the old cell outright: that old cell is held by more
// than one reference at once — the slot *cp itself points at, plus each
// of its Deps[i].Dep.Parent, since package cellmem's arena.Dep Refs its
// parent when it creates one. Swapping *cp's identity out from under
// the call only updates the reference *cp represents; every Dep whose
// Parent still points at the old cell would then dereference a
// collapsed shell. Instead the expansion is transplanted into the call
// cell's own storage, preserving its identity (and so every existing
// reference to it) the same way Arena.StoreReduced mutates a cell into
// its reduced value in place rather than replacing it.
func expandCall(r *reduce.Reducer, cp **cell.Cell, req reduce.Request, entry *cell.Entry, args []*cell.Cell, j *trace.Journal) reduce.Response {
	c := *cp
	subst := make(map[*cell.Cell]*cell.Cell, len(entry.Params))
	for i, p := range entry.Params {
		if i < len(args) {
			subst[p] = args[i]
		}
	}

	root := entry.Body[len(entry.Body)-1]
	seen := make(map[*cell.Cell]*cell.Cell)
	expanded := deepCopyBody(r.Arena, root, subst, seen)

	// Each substitution hit inside deepCopyBody Refs the argument cell it
	// reuses. The call cell held exactly one reference per argument
	// (transplanted or collapsed below, neither of which touches that
	// hold), so releasing it here balances the original reference
	// against however many occurrences the copy ended up sharing it
	// with.
	for _, arg := range args {
		r.Arena.Drop(arg)
	}

	if len(entry.Body) == 1 {
		if len(c.Expr.Deps) > 0 && expanded.Expr != nil {
			expanded.Expr.Deps = c.Expr.Deps
			for _, d := range expanded.Expr.Deps {
				if d != nil {
					// Each dep's hold on the old call cell dies with the
					// Collapse below; the relink takes a fresh one.
					d.Dep.Parent = expanded
					r.Arena.Ref(expanded)
				}
			}
		}
		spliceAlt(expanded, c.Alt)
		old := c
		*cp = expanded
		r.Arena.Collapse(old)
		return reduce.RETRY
	}

	origDeps := c.Expr.Deps
	origAlt := c.Alt
	origN := c.N
	*c = *expanded
	c.N = origN
	spliceAlt(c, origAlt)
	if len(origDeps) > 0 && c.Expr != nil {
		c.Expr.Deps = origDeps
		for _, d := range origDeps {
			if d != nil {
				d.Dep.Parent = c
			}
		}
	}
	r.Arena.Collapse(expanded)
	return reduce.RETRY
}

// deepCopyBody copies one body cell and everything it reaches, except
// for cells with a substitution (the entry's declared parameters, bound
// to the call's actual arguments) and constant value leaves, which are
// shared by reference (spec §4.H step 3's "binding input parameters...
// then rewriting internal trace indices into cell pointers").
func deepCopyBody(a *cellmem.Arena, c *cell.Cell, subst map[*cell.Cell]*cell.Cell, seen map[*cell.Cell]*cell.Cell) *cell.Cell {
	if c == nil {
		return nil
	}
	if rep, ok := subst[c]; ok {
		a.Ref(rep)
		return rep
	}
	if cp, ok := seen[c]; ok {
		a.Ref(cp)
		return cp
	}
	switch {
	case cell.IsValue(c):
		a.Ref(c)
		return c
	case cell.IsDep(c):
		parent := deepCopyBody(a, c.Dep.Parent, subst, seen)
		d := a.Dep(parent, c.Dep.Index)
		// a.Dep takes its own hold on parent; release the one the copy
		// above returned, which nothing else takes over.
		a.Drop(parent)
		return d
	default:
		nc := a.Func(c.Op, len(c.Expr.Args), len(c.Expr.Deps))
		nc.Expr.FuncName = c.Expr.FuncName
		nc.Expr.AltField = c.Expr.AltField
		nc.Expr.AltBranch = c.Expr.AltBranch
		seen[c] = nc
		for _, arg := range c.Expr.Args {
			nc.Expr.Fill(deepCopyBody(a, arg, subst, seen))
		}
		return nc
	}
}

// spliceAlt appends extra onto the end of head's alt chain, or sets it
// directly if head has none yet (same contract as package ops's private
// helper of the same name, duplicated here since funcexpand must not
// import ops — only wordtable/runtime may see every operator package at
// once).
func spliceAlt(head, extra *cell.Cell) {
	if extra == nil {
		return
	}
	if head.Alt == nil {
		head.Alt = extra
		return
	}
	tail := head
	for tail.Alt != nil {
		tail = tail.Alt
	}
	tail.Alt = extra
}
