package mapvar

import (
	"errors"
	"testing"

	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// TestLiteralKeyCanonicals tests the canonical encoding literals key on:
// integer widths collapse, bools and numbers stay distinct, none is a key.
func TestLiteralKeyCanonicals(t *testing.T) {
	same := func(a, b any) bool {
		ka, err := LiteralKey(a)
		if err != nil {
			t.Fatalf("LiteralKey(%v): %v", a, err)
		}
		kb, err := LiteralKey(b)
		if err != nil {
			t.Fatalf("LiteralKey(%v): %v", b, err)
		}
		return ka.Canonical() == kb.Canonical()
	}

	if !same(1, int64(1)) {
		t.Error("Expected int and int64 forms of 1 to canonicalize identically")
	}
	if same(true, int64(1)) {
		t.Error("Expected bool true and integer 1 to stay distinct keys")
	}
	if same(int64(1), float64(1)) {
		t.Error("Expected integer 1 and float 1.0 to stay distinct keys")
	}
	if same("1", int64(1)) {
		t.Error("Expected string and integer keys to stay distinct")
	}
	if !same(nil, nil) {
		t.Error("Expected none to be a stable key")
	}

	if _, err := LiteralKey(struct{}{}); !errors.Is(err, ErrKeyRejected) {
		t.Errorf("Expected ErrKeyRejected for a non-literal, got %v", err)
	}
}

// TestIdentityKeys tests that identity keys compare by object, not by
// shape, and that identity-free values are rejected.
func TestIdentityKeys(t *testing.T) {
	cls := &hostrt.Class{Name: "Box", Kind: hostrt.KindOpaque}
	a := hostrt.NewObject(cls)
	b := hostrt.NewObject(cls)

	ka, err := IdentityKey(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := IdentityKey(b)
	if err != nil {
		t.Fatal(err)
	}
	if ka.Canonical() == kb.Canonical() {
		t.Error("Expected distinct objects to produce distinct keys")
	}

	ka2, _ := IdentityKey(a)
	if ka.Canonical() != ka2.Canonical() {
		t.Error("Expected the same object to produce the same key")
	}

	if !ka.GlobalRefEligible() {
		t.Error("Expected identity keys to reconstruct through a weak ref")
	}

	if _, err := IdentityKey(42); !errors.Is(err, ErrKeyRejected) {
		t.Errorf("Expected ErrKeyRejected for an identity-free value, got %v", err)
	}
}

// TestTupleKeysCompareStructurally tests that two live tuples with equal
// literal elements are the same key even though their identities differ.
func TestTupleKeysCompareStructurally(t *testing.T) {
	a := hostrt.NewTuple(int64(1), "x")
	b := hostrt.NewTuple(int64(1), "x")
	c := hostrt.NewTuple(int64(2), "x")

	ka := TupleKey(a)
	kb := TupleKey(b)
	kc := TupleKey(c)

	if ka.Canonical() != kb.Canonical() {
		t.Error("Expected structurally equal tuples to canonicalize identically")
	}
	if ka.Canonical() == kc.Canonical() {
		t.Error("Expected different tuples to produce different keys")
	}
	if ka.GlobalRefName() == kb.GlobalRefName() {
		t.Error("Expected weak-ref names to follow tuple identity, not shape")
	}
}

// TestNormalizeKeyAgreesWithIsValidKey tests that the boolean probe and the
// normalizer accept and reject exactly the same variables.
func TestNormalizeKeyAgreesWithIsValidKey(t *testing.T) {
	tx := newTestTrace()
	box := hostrt.NewObject(&hostrt.Class{Name: "Box", Kind: hostrt.KindOpaque})

	cases := []struct {
		name  string
		v     Variable
		valid bool
	}{
		{"StringConstant", NewConstant("k"), true},
		{"IntConstant", NewConstant(int64(3)), true},
		{"NoneConstant", NewConstant(nil), true},
		{"SpecializedProxy", NewSpecializedProxy("h", box), true},
		{"BareProxy", NewProxy("h"), false},
		{"ModuleWithLive", NewModuleVariable("net", box), true},
		{"ModuleWithoutLive", NewModuleVariable("net", nil), false},
		{"LiteralTuple", NewTuple(NewConstant(int64(1)), NewConstant("x")), true},
		{"TupleWithSpecializedProxy", NewTuple(NewConstant(int64(1)), NewSpecializedProxy("h", box)), true},
		{"TupleWithBareProxy", NewTuple(NewConstant(int64(1)), NewProxy("h")), false},
		{"Mapping", NewConstMap(nil, nil), false},
		{"List", NewList(NewConstant(int64(1))), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeKey(tx, tc.v)
			if (err == nil) != tc.valid {
				t.Fatalf("NormalizeKey valid=%v, want %v (err=%v)", err == nil, tc.valid, err)
			}
			if got := IsValidKey(tx, tc.v); got != tc.valid {
				t.Errorf("IsValidKey=%v disagrees with NormalizeKey=%v", got, tc.valid)
			}
			if err != nil && !errors.Is(err, ErrKeyRejected) {
				t.Errorf("Expected rejection to wrap ErrKeyRejected, got %v", err)
			}
		})
	}
}

// TestKeyEmit tests the load sequences keys produce: literals load as
// constants, identity-bearing keys dereference their weak-ref global.
func TestKeyEmit(t *testing.T) {
	t.Run("Literal_LoadsConst", func(t *testing.T) {
		k, _ := LiteralKey("alpha")
		asm := symflow.NewAssembler()
		if err := k.emit(asm); err != nil {
			t.Fatal(err)
		}
		p := asm.Program()
		if len(p) != 1 || p[0].Op != symflow.OpLoadConst || p[0].Arg != "alpha" {
			t.Errorf("Expected a single constant load, got\n%s", p)
		}
	})

	t.Run("Identity_DereferencesWeakRef", func(t *testing.T) {
		obj := hostrt.NewObject(&hostrt.Class{Name: "Box", Kind: hostrt.KindOpaque})
		k, err := IdentityKey(obj)
		if err != nil {
			t.Fatal(err)
		}
		asm := symflow.NewAssembler()
		if err := k.emit(asm); err != nil {
			t.Fatal(err)
		}
		p := asm.Program()
		if len(p) != 2 || p[0].Op != symflow.OpLoadGlobal || p[1].Op != symflow.OpCallFunction {
			t.Fatalf("Expected load_global + call, got\n%s", p)
		}
		if p[0].Arg != k.GlobalRefName() {
			t.Errorf("Expected the weak-ref global %s, got %v", k.GlobalRefName(), p[0].Arg)
		}
		globals := asm.Globals()
		if len(globals) != 1 || globals[0] != k.GlobalRefName() {
			t.Errorf("Expected the weak-ref global to be declared, got %v", globals)
		}
	})
}
