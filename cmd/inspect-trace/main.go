package main

import (
	"fmt"
	"os"
	"time"

	timefmt "github.com/itchyny/timefmt-go"
	"github.com/mattn/go-isatty"

	"github.com/symflow/symflow/mapvar"
	"github.com/symflow/symflow/pkg/disasm"
	"github.com/symflow/symflow/pkg/fixture"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd())

func heading(s string) string {
	if useColor {
		return "\x1b[1;36m" + s + "\x1b[0m"
	}
	return s
}

func main() {
	fx := fixture.Sample()
	if len(os.Args) > 1 {
		loaded, err := fixture.Load(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fx = loaded
	}

	fmt.Printf("inspect-trace  %s\n", timefmt.Format(time.Now(), "%Y-%m-%d %H:%M:%S"))

	for _, name := range fx.Names() {
		live, _ := fx.Value(name)
		inspect(name, live)
	}
}

// inspect wraps one root value in a fresh session, runs the short script,
// and prints the rebuild listing plus the accumulated guard ledger.
func inspect(name string, live any) {
	fmt.Printf("\n=== %s ===\n", heading(name))

	v, tx, err := mapvar.WrapValue(name, live, mapvar.Options{LogLevel: "error"})
	if err != nil {
		fmt.Printf("wrap: %v\n", err)
		return
	}
	fmt.Printf("wrapped: %s\n", mapvar.Summarize(v))

	script(tx, name)

	cur, _ := tx.Var(name)
	prog, globals, err := mapvar.ReconstructProgram(cur)
	if err != nil {
		fmt.Printf("reconstruct: %v\n", err)
	} else {
		fmt.Printf("\n%s\n%s", heading("reconstruction"), disasm.Render(prog))
		if len(globals) > 0 {
			fmt.Printf("declares: %v\n", globals)
		}
	}

	guards := tx.SessionGuards()
	fmt.Printf("\n%s (%d)\n", heading("guards"), guards.Len())
	for _, g := range guards.All() {
		fmt.Printf("  %s\n", g)
	}
}

// script runs a membership read and one write against a tracked mapping so
// the session has guards and a copy-on-write successor to show. Other value
// shapes are shown as captured.
func script(tx *mapvar.Trace, name string) {
	cur, _ := tx.Var(name)
	m, ok := cur.(*mapvar.ConstMapVariable)
	if !ok || m.Len() == 0 {
		return
	}

	k := m.Entries()[0].Key
	if !k.GlobalRefEligible() {
		if _, err := tx.Dispatch(m, "__contains__", []mapvar.Variable{mapvar.NewConstant(k.Value())}, nil); err != nil {
			fmt.Printf("script __contains__: %v\n", err)
			return
		}
		fmt.Printf("script:  %s in %s\n", k.Summary(), name)
	}

	if _, err := tx.Dispatch(m, "__setitem__", []mapvar.Variable{mapvar.NewConstant("traced"), mapvar.NewConstant(true)}, nil); err != nil {
		fmt.Printf("script __setitem__: %v\n", err)
		return
	}
	fmt.Printf("script:  %s[traced] = True\n", name)
	if succ, ok := tx.Var(name); ok {
		fmt.Printf("now:     %s\n", mapvar.Summarize(succ))
	}
}
