// Package replshell implements the interactive scan-eval-print loop
// (spec §1's read-eval-print shell, an external collaborator consuming
// the core's eval entry point). Grounded on the teacher's
// internal/repl/repl.go scan-eval-print structure, rewired to this
// language's lexer/parser/runtime.Engine instead of the teacher's
// lexer/compiler/vm, with github.com/mattn/go-isatty added so the prompt
// only prints when stdin is an interactive terminal — the
// teacher's own CLI never distinguished a pipe from a tty for its
// prompt, so this dependency had no home until now (see DESIGN.md).
package replshell

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/b0nefish/poprc/internal/runtime"
)

const banner = "poprc evaluator | :q to quit, :help for commands"

// Start runs the loop until EOF or :quit, reading lines from os.Stdin and
// evaluating each against e.
func Start(e *runtime.Engine) {
	fmt.Println(banner)
	scanner := bufio.NewScanner(os.Stdin)
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	for {
		if interactive {
			fmt.Print(">>> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if handled := runCommand(e, line); handled {
			continue
		}
		evalLine(e, line)
	}
}

// runCommand handles shell directives (prefixed with ':', distinct from
// surface-syntax words so there is no ambiguity with a user-defined word
// named e.g. "quit"). Reports whether line was a directive.
func runCommand(e *runtime.Engine, line string) bool {
	if !strings.HasPrefix(line, ":") {
		return false
	}
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case ":q", ":quit", ":exit":
		os.Exit(0)
	case ":help", ":h":
		fmt.Println(`commands:
  :def <name> <body>   compile body (e.g. "dup *") as a new word <name>
  :words                list every registered word
  :check                run the conservation (leak) check
  :q                    quit`)
	case ":words":
		for _, w := range e.Table.Words() {
			fmt.Printf("  %-12s in=%d out=%d\n", w.Name, w.In, w.Out)
		}
	case ":check":
		if leaked := e.CheckFree(); len(leaked) > 0 {
			fmt.Printf("leak: %d cell(s) still live\n", len(leaked))
		} else {
			fmt.Println("ok: no leaks")
		}
	case ":def":
		if len(fields) < 3 {
			fmt.Println("usage: :def <name> <body>")
			return true
		}
		name := fields[1]
		body := strings.Join(fields[2:], " ")
		if err := e.DefineFunc(name, body); err != nil {
			fmt.Println(err)
			return true
		}
		fmt.Printf("defined %s\n", name)
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return true
}

func evalLine(e *runtime.Engine, line string) {
	root, perrs := e.Parse(line)
	e.Arena.InsertRoot(&root)
	defer e.Arena.RemoveRoot(&root)
	if len(perrs) > 0 {
		for _, pe := range perrs {
			fmt.Println(pe.Error())
		}
		return
	}
	if _, err := e.Eval(root); err != nil {
		fmt.Println(err)
	}
}
