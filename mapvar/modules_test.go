package mapvar

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// moduleRegistry builds an isolated registry holding one live component per
// name.
func moduleRegistry(names ...string) *hostrt.Registry {
	reg := hostrt.NewRegistry()
	cls := &hostrt.Class{Name: "module", Kind: hostrt.KindOpaque}
	for _, n := range names {
		reg.Register(n, hostrt.NewObject(cls))
	}
	return reg
}

// tableTrace pairs an isolated registry with a session reading through it.
func tableTrace(opts ...Options) (*Trace, *hostrt.Registry, *ModuleTableVariable) {
	reg := moduleRegistry("alpha")
	tx := newTestTrace(opts...)
	tx.UseRegistry(reg)
	mt := NewModuleTable(reg, nil)
	tx.Bind("mods", mt)
	return tx, reg, mt
}

// TestModuleTableMembership tests that presence and absence queries fold to
// booleans and leave exactly their two membership guards on the session
// ledger, the absence one inverted.
func TestModuleTableMembership(t *testing.T) {
	tx, _, mt := tableTrace()

	out, err := mt.CallMethod(tx, "__contains__", []Variable{NewConstant("alpha")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := constValue(t, out); v != true {
		t.Errorf("Expected alpha present, got %v", v)
	}
	presentGuard := MembershipGuard("sys.modules", fieldKey("alpha"), true)
	if !out.Guards().Contains(presentGuard) {
		t.Error("Expected the answer to carry its membership guard")
	}

	out, err = mt.CallMethod(tx, "__contains__", []Variable{NewConstant("beta")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := constValue(t, out); v != false {
		t.Errorf("Expected beta absent, got %v", v)
	}

	ledger := tx.SessionGuards()
	if ledger.Len() != 2 {
		t.Fatalf("Expected exactly 2 guards on the ledger, got %s", ledger)
	}
	if !ledger.Contains(presentGuard) {
		t.Error("Expected the presence guard on the ledger")
	}
	absentGuard := MembershipGuard("sys.modules", fieldKey("beta"), false)
	if !ledger.Contains(absentGuard) {
		t.Error("Expected the inverted absence guard on the ledger")
	}
}

// TestModuleTableGetItem tests subscript reads: hits wrap the live module
// under a subscript source, misses are key errors that still record their
// negative guard.
func TestModuleTableGetItem(t *testing.T) {
	tx, reg, mt := tableTrace()

	t.Run("Hit_WrapsLiveModule", func(t *testing.T) {
		out, err := mt.CallMethod(tx, "__getitem__", []Variable{NewConstant("alpha")}, nil)
		if err != nil {
			t.Fatal(err)
		}
		mod, ok := out.(*ModuleVariable)
		if !ok {
			t.Fatalf("Expected a module variable, got %T", out)
		}
		if mod.RegName != "alpha" {
			t.Errorf("Expected registration name alpha, got %s", mod.RegName)
		}
		if live, _ := reg.Lookup("alpha"); mod.Live() != live {
			t.Error("Expected the wrap to hold the registered instance")
		}
		if mod.Source() == nil || mod.Source().String() != "sys.modules[alpha]" {
			t.Errorf("Expected a subscript source off the table, got %v", mod.Source())
		}
		if !out.Guards().Contains(MembershipGuard("sys.modules", fieldKey("alpha"), true)) {
			t.Error("Expected the membership guard on the wrapped module")
		}
	})

	t.Run("Miss_RecordsNegativeGuard", func(t *testing.T) {
		_, err := mt.CallMethod(tx, "__getitem__", []Variable{NewConstant("ghost")}, nil)
		if !errors.Is(err, ErrKeyMissing) {
			t.Fatalf("Expected ErrKeyMissing, got %v", err)
		}
		if !tx.SessionGuards().Contains(MembershipGuard("sys.modules", fieldKey("ghost"), false)) {
			t.Error("Expected the negative guard to stay recorded")
		}
	})
}

// TestModuleTableGet tests the defaulted read on the live table.
func TestModuleTableGet(t *testing.T) {
	tx, _, mt := tableTrace()

	t.Run("Hit", func(t *testing.T) {
		out, err := mt.CallMethod(tx, "get", []Variable{NewConstant("alpha")}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := out.(*ModuleVariable); !ok {
			t.Fatalf("Expected a module variable, got %T", out)
		}
	})

	t.Run("MissWithDefault", func(t *testing.T) {
		def := NewConstant("fallback")
		out, err := mt.CallMethod(tx, "get", []Variable{NewConstant("ghost"), def}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if out != Variable(def) {
			t.Error("Expected the default back")
		}
		if !out.Guards().Contains(MembershipGuard("sys.modules", fieldKey("ghost"), false)) {
			t.Error("Expected the absence guard attached to the default")
		}
	})

	t.Run("MissWithoutDefault_IsNone", func(t *testing.T) {
		out, err := mt.CallMethod(tx, "get", []Variable{NewConstant("ghost")}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if v := constValue(t, out); v != nil {
			t.Errorf("Expected none, got %v", v)
		}
	})
}

// TestModuleTableKeyShapes tests that non-string and non-normalizable keys
// refuse.
func TestModuleTableKeyShapes(t *testing.T) {
	tx, _, mt := tableTrace()

	if _, err := mt.CallMethod(tx, "__contains__", []Variable{NewConstant(int64(1))}, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for an integer key, got %v", err)
	}
	if _, err := mt.CallMethod(tx, "__getitem__", []Variable{NewProxy("h")}, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for a proxy key, got %v", err)
	}
}

// TestModuleTableFallback tests the snapshot path for operations the live
// view does not answer, and that strict mode forbids it.
func TestModuleTableFallback(t *testing.T) {
	t.Run("KeysViaSnapshot", func(t *testing.T) {
		tx, _, mt := tableTrace()
		out, err := mt.CallMethod(tx, "keys", nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		set, ok := out.(*SetVariable)
		if !ok {
			t.Fatalf("Expected a key view, got %T", out)
		}
		if len(set.Items()) != 1 {
			t.Fatalf("Expected 1 key, got %d", len(set.Items()))
		}
		if v := constValue(t, set.Items()[0]); v != "alpha" {
			t.Errorf("Expected alpha, got %v", v)
		}
	})

	t.Run("LenViaSnapshot", func(t *testing.T) {
		tx, _, mt := tableTrace()
		out, err := mt.CallMethod(tx, "__len__", nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if v := constValue(t, out); v != int64(1) {
			t.Errorf("Expected 1, got %v", v)
		}
	})

	t.Run("StrictMode_Refuses", func(t *testing.T) {
		tx, _, mt := tableTrace(Options{StrictMode: true})
		_, err := mt.CallMethod(tx, "keys", nil, nil)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Expected ErrUnsupported in strict mode, got %v", err)
		}
	})
}

// TestModuleTableReconstruct tests that the table reloads instead of
// rebuilding.
func TestModuleTableReconstruct(t *testing.T) {
	_, _, mt := tableTrace()
	p, _, err := ReconstructProgram(mt)
	if err != nil {
		t.Fatal(err)
	}
	want := symflow.Program{
		{Op: symflow.OpLoadModule, Arg: "sys"},
		{Op: symflow.OpLoadAttr, Arg: "modules"},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Program mismatch (-want +got):\n%s", diff)
	}
}
