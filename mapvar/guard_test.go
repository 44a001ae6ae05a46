package mapvar

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/symflow/symflow/hostrt"
)

// guardIDs projects a guard set onto its canonical identities, in order.
func guardIDs(s *GuardSet) []string {
	out := make([]string, 0, s.Len())
	for _, g := range s.All() {
		out = append(out, g.ID())
	}
	return out
}

// TestGuardSetAccumulates tests the ledger basics: insertion order, identity
// dedupe, and union.
func TestGuardSetAccumulates(t *testing.T) {
	a := Guard{Kind: GuardTypeMatch, Ref: "local[x]"}
	b := Guard{Kind: GuardMapKeys, Ref: "local[x]"}
	c := Guard{Kind: GuardTypeMatch, Ref: "local[y]"}

	s := NewGuardSet(a, b)
	s.Add(a) // duplicate
	if s.Len() != 2 {
		t.Fatalf("Expected 2 guards after dedupe, got %d", s.Len())
	}

	other := NewGuardSet(b, c)
	s.Union(other)
	want := []string{a.ID(), b.ID(), c.ID()}
	if diff := cmp.Diff(want, guardIDs(s)); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}

	if !s.Contains(c) {
		t.Error("Expected the union to contain the merged guard")
	}
	s.Union(nil) // tolerated
	if s.Len() != 3 {
		t.Errorf("Expected a nil union to change nothing, got %d guards", s.Len())
	}
}

// TestMembershipGuardIdentity tests that presence and absence of the same
// key are distinct predicates.
func TestMembershipGuardIdentity(t *testing.T) {
	k, _ := LiteralKey("torch")
	present := MembershipGuard("sys.modules", k, true)
	absent := MembershipGuard("sys.modules", k, false)

	if present.Invert {
		t.Error("Expected the presence guard to assert membership")
	}
	if !absent.Invert {
		t.Error("Expected the absence guard to be inverted")
	}
	if present.ID() == absent.ID() {
		t.Error("Expected presence and absence to dedupe separately")
	}
}

// TestGuardMonotonicity tests that guard sets only ever grow along the
// derivation chain: reads carry the receiver's guards onto results, writes
// carry them onto successors, and the session ledger covers them all.
func TestGuardMonotonicity(t *testing.T) {
	tx := newTestTrace()

	d := hostrt.NewDict(nil)
	d.Set("alpha", int64(1))
	d.Set("beta", int64(2))
	root, err := tx.WrapRoot("m", d)
	if err != nil {
		t.Fatal(err)
	}
	m := root.(*ConstMapVariable)
	baseline := m.Guards().All()
	if len(baseline) == 0 {
		t.Fatal("Expected the wrap to install baseline guards")
	}

	t.Run("ReadsCarryReceiverGuards", func(t *testing.T) {
		got, err := m.CallMethod(tx, "__getitem__", []Variable{NewConstant("alpha")}, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, g := range baseline {
			if !got.Guards().Contains(g) {
				t.Errorf("Expected the result to carry %s", g)
			}
		}
	})

	t.Run("SuccessorsNeverShrink", func(t *testing.T) {
		extra := NewConstant(int64(3))
		extra.Guards().Add(Guard{Kind: GuardConstMatch, Ref: "local[v]"})
		if _, err := m.CallMethod(tx, "__setitem__", []Variable{NewConstant("gamma"), extra}, nil); err != nil {
			t.Fatal(err)
		}
		cur, _ := tx.Var("m")
		for _, g := range baseline {
			if !cur.Guards().Contains(g) {
				t.Errorf("Expected the successor to keep %s", g)
			}
		}
		if !cur.Guards().Contains(Guard{Kind: GuardConstMatch, Ref: "local[v]"}) {
			t.Error("Expected the successor to absorb the inserted value's guard")
		}
	})

	t.Run("SessionLedgerCoversVariables", func(t *testing.T) {
		ledger := tx.SessionGuards()
		cur, _ := tx.Var("m")
		for _, g := range cur.Guards().All() {
			if !ledger.Contains(g) {
				t.Errorf("Expected the session ledger to contain %s", g)
			}
		}
	})
}
