// Package trace implements the partial-evaluation trace journal and the
// assertion/condition operators `assert`, `seq`, and `otherwise`
// (spec §4.G). A trace Entry records a deferred condition — an assertion
// whose predicate could not be resolved concretely, or an `otherwise`
// fallback taken — so an external collaborator (a Verilog/C backend, spec
// §1) can later correlate these against the reduced result.
//
// Grounded on _examples/original_source/user_func.c's trace-node
// construction (one node per call site, linked by index) and on the
// teacher's internal/debugger.DebugHook interface, repurposed here as a
// journal listener rather than a step/breakpoint observer.
package trace

import "github.com/google/uuid"

// Entry is one recorded deferred condition.
type Entry struct {
	ID   uuid.UUID
	Kind string // "assert", "seq", "otherwise", or funcexpand's "call"
	Note string
}

// Journal accumulates Entries across a run. The zero value is ready to use.
type Journal struct {
	entries []Entry
}

// Record appends a new Entry tagged with a fresh id and returns it.
func (j *Journal) Record(kind, note string) Entry {
	e := Entry{ID: uuid.New(), Kind: kind, Note: note}
	j.entries = append(j.entries, e)
	return e
}

// Entries returns every recorded Entry in recording order, for an external
// collaborator to iterate (spec §1's trace-consuming backends;
// SPEC_FULL.md's "vlgen.c" supplement).
func (j *Journal) Entries() []Entry {
	return j.entries
}
