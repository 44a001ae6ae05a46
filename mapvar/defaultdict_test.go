package mapvar

import (
	"errors"
	"testing"

	"github.com/symflow/symflow/hostrt"
)

// listFactory wraps the list constructor builtin.
func listFactory() Variable {
	return NewBuiltinVariable(hostrt.NewBuiltin(hostrt.BuiltinList))
}

// TestIsSupportedFactory tests the factory allow-list: absent, constructor
// builtins, and user functions pass; everything else is rejected.
func TestIsSupportedFactory(t *testing.T) {
	cases := []struct {
		name string
		v    Variable
		ok   bool
	}{
		{"Absent", nil, true},
		{"ListBuiltin", NewBuiltinVariable(hostrt.NewBuiltin(hostrt.BuiltinList)), true},
		{"TupleBuiltin", NewBuiltinVariable(hostrt.NewBuiltin(hostrt.BuiltinTuple)), true},
		{"DictBuiltin", NewBuiltinVariable(hostrt.NewBuiltin(hostrt.BuiltinDict)), true},
		{"UserFunction", NewUserFunction(hostrt.NewFunc("make_box")), true},
		{"Constant", NewConstant(int64(0)), false},
		{"Mapping", NewConstMap(nil, nil), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSupportedFactory(tc.v); got != tc.ok {
				t.Errorf("IsSupportedFactory=%v, want %v", got, tc.ok)
			}
		})
	}
}

// TestDefaultMapSynthesis tests the miss path: the factory's zero-argument
// result is inserted through the successor machinery and returned, and a
// second lookup of the same key hits the stored value instead of
// synthesizing again.
func TestDefaultMapSynthesis(t *testing.T) {
	tx := newTestTrace()
	dm := NewDefaultMap(listFactory(), nil, nil)
	tx.Bind("d", dm)

	first, err := dm.CallMethod(tx, "__getitem__", []Variable{NewConstant("bucket")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	lst, ok := first.(*ListVariable)
	if !ok {
		t.Fatalf("Expected a synthesized list, got %T", first)
	}
	if lst.MutableToken() == nil {
		t.Error("Expected the synthesized list to be mutable")
	}

	cur, _ := tx.Var("d")
	succ, ok := cur.(*DefaultMapVariable)
	if !ok {
		t.Fatalf("Expected the successor to stay a default map, got %T", cur)
	}
	if succ.Len() != 1 {
		t.Fatalf("Expected the default to be inserted, got %d items", succ.Len())
	}

	// Second lookup hits the stored value; no further replacement happens.
	second, err := succ.CallMethod(tx, "__getitem__", []Variable{NewConstant("bucket")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("Expected the second lookup to return the stored default")
	}
	after, _ := tx.Var("d")
	if after != cur {
		t.Error("Expected no successor for a hit")
	}
}

// TestDefaultMapWithoutFactory tests that a miss with no factory behaves
// like a plain mapping miss.
func TestDefaultMapWithoutFactory(t *testing.T) {
	tx := newTestTrace()
	dm := NewDefaultMap(nil, nil, nil)

	_, err := dm.CallMethod(tx, "__getitem__", []Variable{NewConstant("missing")}, nil)
	if !errors.Is(err, ErrKeyMissing) {
		t.Errorf("Expected ErrKeyMissing, got %v", err)
	}
}

// TestDefaultMapUserFunctionFactory tests that a guest-function factory
// synthesizes through the inline executor, exactly once per missing key.
func TestDefaultMapUserFunctionFactory(t *testing.T) {
	calls := 0
	opts := Options{
		InlineFunc: func(tx Tracer, fn Variable, args []Variable, kwargs map[string]Variable) (Variable, error) {
			calls++
			return NewConstant(int64(0)), nil
		},
	}
	tx := newTestTrace(opts)
	dm := NewDefaultMap(NewUserFunction(hostrt.NewFunc("zero")), nil, nil)
	tx.Bind("d", dm)

	first, err := dm.CallMethod(tx, "__getitem__", []Variable{NewConstant("n")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := constValue(t, first); v != int64(0) {
		t.Errorf("Expected the synthesized 0, got %v", v)
	}

	cur, _ := tx.Var("d")
	if _, err := cur.CallMethod(tx, "__getitem__", []Variable{NewConstant("n")}, nil); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Expected the factory to run once, ran %d times", calls)
	}
}

// TestDefaultMapUserFunctionFactoryWithoutExecutor tests that the
// guest-function path refuses when no inline executor is configured.
func TestDefaultMapUserFunctionFactoryWithoutExecutor(t *testing.T) {
	tx := newTestTrace()
	dm := NewDefaultMap(NewUserFunction(hostrt.NewFunc("zero")), nil, nil)

	_, err := dm.CallMethod(tx, "__getitem__", []Variable{NewConstant("n")}, nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

// TestDefaultMapFolding tests that a guest-function factory poisons
// constant folding even when every item is a literal.
func TestDefaultMapFolding(t *testing.T) {
	k, _ := LiteralKey("a")
	entries := []Entry{{Key: k, Value: NewConstant(int64(1))}}

	builtin := NewDefaultMap(listFactory(), nil, entries)
	if !builtin.IsConstantFoldable() {
		t.Error("Expected a builtin-factory map with literal items to fold")
	}

	user := NewDefaultMap(NewUserFunction(hostrt.NewFunc("zero")), nil, entries)
	if user.IsConstantFoldable() {
		t.Error("Expected a guest-function factory to poison folding")
	}

	absent := NewDefaultMap(nil, nil, entries)
	if !absent.IsConstantFoldable() {
		t.Error("Expected a factory-less map with literal items to fold")
	}
}

// TestDefaultMapMutationKeepsKind tests that every successor-building
// operation preserves the default-map variant and its factory.
func TestDefaultMapMutationKeepsKind(t *testing.T) {
	factory := listFactory()

	build := func(t *testing.T, tx *Trace) *DefaultMapVariable {
		t.Helper()
		k, _ := LiteralKey("a")
		dm := NewDefaultMap(factory, nil, []Entry{{Key: k, Value: NewConstant(int64(1))}})
		dm.mutable = NewMutable()
		tx.Bind("d", dm)
		return dm
	}
	successor := func(t *testing.T, tx *Trace) *DefaultMapVariable {
		t.Helper()
		cur, _ := tx.Var("d")
		succ, ok := cur.(*DefaultMapVariable)
		if !ok {
			t.Fatalf("Expected a default-map successor, got %T", cur)
		}
		if succ.Kind() != KindDefaultMap {
			t.Errorf("Expected kind default_map, got %s", succ.Kind())
		}
		if succ.Factory() != factory {
			t.Error("Expected the successor to keep the factory")
		}
		return succ
	}

	t.Run("SetItem", func(t *testing.T) {
		tx := newTestTrace()
		dm := build(t, tx)
		if _, err := dm.CallMethod(tx, "__setitem__", []Variable{NewConstant("b"), NewConstant(int64(2))}, nil); err != nil {
			t.Fatal(err)
		}
		if succ := successor(t, tx); succ.Len() != 2 {
			t.Errorf("Expected 2 items, got %d", succ.Len())
		}
	})

	t.Run("Pop", func(t *testing.T) {
		tx := newTestTrace()
		dm := build(t, tx)
		if _, err := dm.CallMethod(tx, "pop", []Variable{NewConstant("a")}, nil); err != nil {
			t.Fatal(err)
		}
		if succ := successor(t, tx); succ.Len() != 0 {
			t.Errorf("Expected 0 items, got %d", succ.Len())
		}
	})

	t.Run("Update", func(t *testing.T) {
		tx := newTestTrace()
		dm := build(t, tx)
		if _, err := dm.CallMethod(tx, "update", []Variable{mapOf(t, "b", int64(2))}, nil); err != nil {
			t.Fatal(err)
		}
		if succ := successor(t, tx); succ.Len() != 2 {
			t.Errorf("Expected 2 items, got %d", succ.Len())
		}
	})
}

// TestDefaultMapDelegatesReads tests that the read surface is the base
// mapping surface.
func TestDefaultMapDelegatesReads(t *testing.T) {
	tx := newTestTrace()
	k, _ := LiteralKey("a")
	dm := NewDefaultMap(listFactory(), nil, []Entry{{Key: k, Value: NewConstant(int64(1))}})

	out, err := dm.CallMethod(tx, "__len__", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := constValue(t, out); v != int64(1) {
		t.Errorf("Expected 1, got %v", v)
	}

	out, err = dm.CallMethod(tx, "get", []Variable{NewConstant("zzz"), NewConstant("fallback")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := constValue(t, out); v != "fallback" {
		t.Errorf("Expected get to use the explicit default, got %v", v)
	}
}
