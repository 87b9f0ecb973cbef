// Package tracer provides step/breakpoint control over reduction, in
// place of the bytecode instruction pointer the teacher's debugger
// stepped through. Grounded on the teacher's internal/debugger/debugger.go
// (Breakpoint, DebugState, the step-into/step-over/step-out enum, and the
// interactive command loop's shape) with vm.EnhancedVM replaced by a
// *reduce.Reducer and line breakpoints replaced by operator-name
// breakpoints, since a reduction graph has no source line pointer — only
// the name of whichever operator is about to be dispatched (spec §4.D's
// dispatch point, instrumented by package reduce's "step" Logger event).
package tracer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/reduce"
	"github.com/b0nefish/poprc/internal/runtime"
)

// DebugState is the teacher's DebugState enum, unchanged in shape.
type DebugState int

const (
	Running DebugState = iota
	Paused
	StepInto
	Terminated
)

// Breakpoint fires whenever the reducer is about to dispatch to the named
// operator (e.g. "ap", "+", "exec"), in place of the teacher's file:line.
type Breakpoint struct {
	ID       int
	Op       string
	Enabled  bool
	HitCount int
}

// Tracer is the teacher's Debugger, repointed at a reduce.Reducer.
type Tracer struct {
	engine      *runtime.Engine
	breakpoints map[int]*Breakpoint
	nextBpID    int
	state       DebugState
	reader      *bufio.Reader
	steps       int
}

// New constructs a Tracer paused before its first step, as the teacher's
// NewDebugger does.
func New(e *runtime.Engine) *Tracer {
	return &Tracer{
		engine:      e,
		breakpoints: make(map[int]*Breakpoint),
		nextBpID:    1,
		state:       Paused,
		reader:      bufio.NewReader(os.Stdin),
	}
}

// AddBreakpoint registers a break on every dispatch to op.
func (t *Tracer) AddBreakpoint(op string) int {
	bp := &Breakpoint{ID: t.nextBpID, Op: op, Enabled: true}
	t.breakpoints[t.nextBpID] = bp
	fmt.Printf("breakpoint %d set on %q\n", bp.ID, op)
	t.nextBpID++
	return bp.ID
}

// RemoveBreakpoint deletes a breakpoint by id.
func (t *Tracer) RemoveBreakpoint(id int) bool {
	if bp, ok := t.breakpoints[id]; ok {
		delete(t.breakpoints, id)
		fmt.Printf("breakpoint %d removed (%s)\n", bp.ID, bp.Op)
		return true
	}
	fmt.Printf("breakpoint %d not found\n", id)
	return false
}

// ListBreakpoints prints every registered breakpoint.
func (t *Tracer) ListBreakpoints() {
	if len(t.breakpoints) == 0 {
		fmt.Println("no breakpoints set")
		return
	}
	for _, bp := range t.breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		fmt.Printf("  %d: %s (%s) hits: %d\n", bp.ID, bp.Op, status, bp.HitCount)
	}
}

// Event implements reduce.Logger: package reduce calls this immediately
// before dispatching to an operator's handler (spec §4.D step "dispatch
// to the cell's operator handler"). It checks breakpoints, counts steps,
// and — when paused or single-stepping — drops into the interactive
// command loop before letting the dispatch proceed.
func (t *Tracer) Event(tag string, kv ...any) {
	if tag != "step" {
		return
	}
	t.steps++
	op, _ := kv[1].(string)

	hit := false
	for _, bp := range t.breakpoints {
		if bp.Enabled && bp.Op == op {
			bp.HitCount++
			hit = true
		}
	}

	switch {
	case hit:
		fmt.Printf("\nbreak: %s (step %d)\n", op, t.steps)
		t.state = Paused
		t.runLoop()
	case t.state == StepInto:
		fmt.Printf("\nstep: %s (step %d)\n", op, t.steps)
		t.state = Paused
		t.runLoop()
	}
}

// Run evaluates root's top-level elements under this Tracer's control,
// printing each element's index, response and reduced value. Unlike
// Engine.Eval it reduces only the head of each element's alt chain and
// does not print through the IO port.
func (t *Tracer) Run(root *cell.Cell) {
	if !cell.IsList(root) {
		fmt.Fprintln(os.Stderr, "tracer: root is not a list")
		return
	}
	r := &reduce.Reducer{Arena: t.engine.Arena, IDs: t.engine.IDs, Table: t.engine.Table, Log: t}
	fmt.Println("tracer ready; type 'help' for commands")
	t.runLoop()
	t.engine.Arena.InsertRoot(&root)
	for i := range root.Val.List {
		if t.state == Terminated {
			fmt.Println("session terminated")
			break
		}
		cp := root.Val.List[i]
		resp := r.Reduce(&cp, reduce.Any())
		root.Val.List[i] = cp
		fmt.Printf("[%d] %s -> %v\n", i, resp, describe(cp))
	}
	t.engine.Arena.RemoveRoot(&root)
}

func describe(c *cell.Cell) string {
	if !cell.IsValue(c) {
		return "<unreduced>"
	}
	v := c.Val
	switch v.Kind {
	case cell.VInt:
		return fmt.Sprintf("%d", v.I)
	case cell.VFloat:
		return fmt.Sprintf("%g", v.F)
	case cell.VSymbol:
		return v.Sym
	case cell.VString:
		return v.Str
	case cell.VList:
		return fmt.Sprintf("<list len=%d>", len(v.List))
	default:
		return v.Kind.String()
	}
}

func (t *Tracer) runLoop() {
	for t.state == Paused {
		fmt.Print("(poprc-debug) ")
		line, err := t.reader.ReadString('\n')
		if err != nil {
			t.state = Terminated
			return
		}
		t.execute(strings.TrimSpace(line))
	}
}

func (t *Tracer) execute(command string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help", "h":
		t.showHelp()
	case "break", "b":
		if len(args) >= 1 {
			t.AddBreakpoint(args[0])
		} else {
			fmt.Println("usage: break <op>")
		}
	case "delete", "d":
		if len(args) >= 1 {
			if id, err := strconv.Atoi(args[0]); err == nil {
				t.RemoveBreakpoint(id)
			} else {
				fmt.Printf("invalid breakpoint id: %s\n", args[0])
			}
		} else {
			fmt.Println("usage: delete <id>")
		}
	case "list", "l":
		t.ListBreakpoints()
	case "continue", "c":
		t.state = Running
		fmt.Println("continuing...")
	case "step", "s":
		t.state = StepInto
		fmt.Println("stepping...")
	case "quit", "q":
		t.state = Terminated
		fmt.Println("debugging session terminated")
	default:
		fmt.Printf("unknown command %q (type 'help')\n", cmd)
	}
}

func (t *Tracer) showHelp() {
	fmt.Println(`available commands:
  help, h        show this help
  break <op>     break before every dispatch to operator <op>
  delete <id>    remove breakpoint by id
  list, l        list breakpoints
  continue, c    resume running to the next breakpoint
  step, s        single-step to the next operator dispatch
  quit, q        terminate the session`)
}
