// cmd/poprc/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/b0nefish/poprc/internal/cell"
	"github.com/b0nefish/poprc/internal/config"
	"github.com/b0nefish/poprc/internal/errors"
	"github.com/b0nefish/poprc/internal/replshell"
	"github.com/b0nefish/poprc/internal/runtime"
	"github.com/b0nefish/poprc/internal/tracer"
)

const VERSION = "0.1.0"

// Build variables, settable with -ldflags, matching the teacher's
// cmd/sentra/main.go BuildDate/GitCommit pattern.
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

// commandAliases mirrors the teacher's alias table, trimmed to the
// commands this evaluator core actually exposes (spec §1's explicit
// out-of-scope list drops fmt/lint/doc/watch/build, which belonged to the
// teacher's bytecode toolchain, not the reducer).
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"c": "check",
	"d": "debug",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("poprc %s (build %s, commit %s)\n", VERSION, BuildDate, GitCommit)
	case "repl":
		runRepl()
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: poprc run <file>")
			os.Exit(1)
		}
		runFile(args[1])
	case "debug":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: poprc debug <file>")
			os.Exit(1)
		}
		runDebug(args[1])
	case "check":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: poprc check <file>")
			os.Exit(1)
		}
		checkSyntax(args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`poprc - a concatenative graph-reduction evaluator

Usage:
  poprc run <file>     evaluate a program and print its reduced stack
  poprc repl           start the interactive evaluator
  poprc debug <file>   evaluate under step/breakpoint control
  poprc check <file>   parse only, reporting syntax errors
  poprc version        print build information`)
}

func newEngine() *runtime.Engine {
	cfg, err := config.Load("", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	e, err := runtime.New(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime: %v\n", err)
		os.Exit(1)
	}
	return e
}

func runFile(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		os.Exit(1)
	}

	e := newEngine()
	defer e.Close()

	root, perrs := e.Parse(string(source))
	if len(perrs) > 0 {
		for _, pe := range perrs {
			fmt.Fprintln(os.Stderr, pe.Error())
		}
		os.Exit(1)
	}

	e.Arena.InsertRoot(&root)
	if _, err := e.Eval(root); err != nil {
		if ee, ok := err.(*errors.Error); ok && !ee.Kind.Local() {
			fmt.Fprintln(os.Stderr, ee.Error())
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	e.Arena.RemoveRoot(&root)

	if leaked := e.CheckFree(); len(leaked) > 0 {
		fmt.Fprintf(os.Stderr, "leak: %d cell(s) still live at teardown\n", len(leaked))
		os.Exit(1)
	}
}

func runRepl() {
	e := newEngine()
	defer e.Close()
	replshell.Start(e)
}

func runDebug(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		os.Exit(1)
	}

	e := newEngine()
	defer e.Close()

	root, perrs := e.Parse(string(source))
	if len(perrs) > 0 {
		for _, pe := range perrs {
			fmt.Fprintln(os.Stderr, pe.Error())
		}
		os.Exit(1)
	}

	t := tracer.New(e)
	t.Run(root)
}

func checkSyntax(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		os.Exit(1)
	}

	e := newEngine()
	defer e.Close()

	root, perrs := e.Parse(string(source))
	if len(perrs) > 0 {
		for _, pe := range perrs {
			fmt.Fprintln(os.Stderr, pe.Error())
		}
		os.Exit(1)
	}
	in, out, ok := e.GetArity(rootAsQuote(root))
	if ok {
		fmt.Printf("ok: %d input(s), %d output(s)\n", in, out)
	} else {
		fmt.Println("ok")
	}
}

// rootAsQuote lets `check` report a top-level program's net stack effect
// through the same get_arity path a quotation literal uses (spec §6).
func rootAsQuote(root *cell.Cell) *cell.Cell {
	if cell.IsList(root) {
		root.Val.QuoteOut = len(root.Val.List)
	}
	return root
}
