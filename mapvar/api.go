// Package mapvar implements symbolic mapping values for a tracing session.
// A live guest mapping is captured once into an immutable variable; reads
// dispatch against the captured items, writes build a successor and swap it
// in through the tracer, and every captured fact is backed by a guard that
// must hold for the recorded trace to stay valid. Reconstruction emits the
// instruction sequence that rebuilds (or reloads) the value in the guest.
package mapvar

import (
	"github.com/symflow/symflow"
)

// WrapValue wraps one live guest value in a fresh trace session rooted at
// name. It is the one-call entry point for embedding a single value.
//
// Example:
//
//	d := hostrt.NewDict(nil)
//	d.Set("alpha", int64(1))
//	v, tx, err := mapvar.WrapValue("m", d)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := tx.Dispatch(v, "__getitem__", []mapvar.Variable{mapvar.NewConstant("alpha")}, nil)
func WrapValue(name string, live any, opts ...Options) (Variable, *Trace, error) {
	tx := NewTrace(opts...)
	v, err := tx.WrapRoot(name, live)
	if err != nil {
		return nil, tx, err
	}
	return v, tx, nil
}

// ReconstructProgram assembles the rebuild sequence of a variable and
// returns the program with the globals it declared along the way.
func ReconstructProgram(v Variable) (symflow.Program, []string, error) {
	asm := symflow.NewAssembler()
	if err := v.Reconstruct(asm); err != nil {
		return nil, nil, err
	}
	return asm.Program(), asm.Globals(), nil
}
