package tracer

import (
	"io"
	"testing"

	"github.com/b0nefish/poprc/internal/config"
	"github.com/b0nefish/poprc/internal/runtime"
)

func newTestTracer(t *testing.T) *Tracer {
	t.Helper()
	e, err := runtime.New(config.Default(), io.Discard)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return New(e)
}

func TestAddAndRemoveBreakpoint(t *testing.T) {
	tr := newTestTracer(t)
	id := tr.AddBreakpoint("+")
	if _, ok := tr.breakpoints[id]; !ok {
		t.Fatalf("expected breakpoint %d to be registered", id)
	}
	if !tr.RemoveBreakpoint(id) {
		t.Fatalf("RemoveBreakpoint(%d) = false, want true", id)
	}
	if _, ok := tr.breakpoints[id]; ok {
		t.Fatalf("expected breakpoint %d to be gone", id)
	}
}

func TestRemoveUnknownBreakpointReportsFalse(t *testing.T) {
	tr := newTestTracer(t)
	if tr.RemoveBreakpoint(999) {
		t.Fatalf("RemoveBreakpoint of an unregistered id should report false")
	}
}

// TestEventIgnoresNonStepTags checks the reduce.Logger adapter only reacts
// to "step" events; any other tag (here "init", the event runtime.New
// logs through package diag) is ignored.
func TestEventIgnoresNonStepTags(t *testing.T) {
	tr := newTestTracer(t)
	before := tr.steps
	tr.Event("init", "slab", 0)
	if tr.steps != before {
		t.Fatalf("a non-step event should not advance the step counter")
	}
}

// TestEventCountsStepsWithNoBreakpointsOrStepping checks a plain "step"
// event (no matching breakpoint, state set from New's Paused to Running)
// just counts without entering the interactive loop.
func TestEventCountsStepsWithNoBreakpointsOrStepping(t *testing.T) {
	tr := newTestTracer(t)
	tr.state = Running
	tr.Event("step", "op", "+", "pos", 0)
	if tr.steps != 1 {
		t.Fatalf("steps = %d, want 1", tr.steps)
	}
}
