package mapvar

import (
	"strings"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// GuardKind is the closed set of validity-predicate shapes the ledger
// records. Guard evaluation against live objects happens outside this
// package; here a guard is pure provenance data.
type GuardKind int

const (
	// GuardConstMatch asserts the source still holds the captured literal.
	GuardConstMatch GuardKind = iota
	// GuardTypeMatch asserts the source still holds a value of the
	// captured class.
	GuardTypeMatch
	// GuardIdentity asserts the source still holds the same object.
	GuardIdentity
	// GuardMapKeys asserts the source mapping still has the captured key
	// sequence.
	GuardMapKeys
	// GuardTableContains asserts presence (or absence, when inverted) of
	// one key in a live host table.
	GuardTableContains
)

func (k GuardKind) String() string {
	switch k {
	case GuardConstMatch:
		return "const_match"
	case GuardTypeMatch:
		return "type_match"
	case GuardIdentity:
		return "identity"
	case GuardMapKeys:
		return "map_keys"
	case GuardTableContains:
		return "table_contains"
	default:
		panic(k)
	}
}

// Guard is one validity predicate: if it fails against the live process at
// execution time, the trace that recorded it must not run.
type Guard struct {
	Kind   GuardKind
	Ref    string // the source or table the predicate applies to
	Key    Key    // set for membership guards
	Invert bool   // membership only: assert absence instead of presence
}

// MembershipGuard builds the per-key predicate host-table queries install.
func MembershipGuard(table string, key Key, expectPresent bool) Guard {
	return Guard{
		Kind:   GuardTableContains,
		Ref:    table,
		Key:    key,
		Invert: !expectPresent,
	}
}

// ID returns the canonical identity the ledger dedupes on.
func (g Guard) ID() string {
	var b strings.Builder
	b.WriteString(g.Kind.String())
	b.WriteByte('|')
	b.WriteString(g.Ref)
	b.WriteByte('|')
	b.WriteString(g.Key.Canonical())
	if g.Invert {
		b.WriteString("|!")
	}
	return b.String()
}

func (g Guard) String() string {
	var b strings.Builder
	if g.Invert {
		b.WriteByte('!')
	}
	b.WriteString(g.Kind.String())
	b.WriteByte('(')
	b.WriteString(g.Ref)
	if g.Kind == GuardTableContains {
		b.WriteString(", ")
		b.WriteString(g.Key.Summary())
	}
	b.WriteByte(')')
	return b.String()
}

// GuardSet is an insertion-ordered set of guards. The ledger only grows;
// there is no removal operation.
type GuardSet struct {
	guards *sequencedmap.Map[string, Guard]
}

// NewGuardSet creates an empty ledger.
func NewGuardSet(guards ...Guard) *GuardSet {
	s := &GuardSet{guards: sequencedmap.New[string, Guard]()}
	for _, g := range guards {
		s.Add(g)
	}
	return s
}

// Add records one guard. Re-adding an equal guard is a no-op.
func (s *GuardSet) Add(g Guard) *GuardSet {
	id := g.ID()
	if _, ok := s.guards.Get(id); !ok {
		s.guards.Set(id, g)
	}
	return s
}

// Union merges every guard of other into the set.
func (s *GuardSet) Union(other *GuardSet) *GuardSet {
	if other == nil {
		return s
	}
	for _, g := range other.guards.All() {
		s.Add(g)
	}
	return s
}

// Contains reports whether an equal guard was recorded.
func (s *GuardSet) Contains(g Guard) bool {
	_, ok := s.guards.Get(g.ID())
	return ok
}

// Len returns the number of recorded guards.
func (s *GuardSet) Len() int {
	return s.guards.Len()
}

// All returns the guards in first-recorded order.
func (s *GuardSet) All() []Guard {
	out := make([]Guard, 0, s.guards.Len())
	for _, g := range s.guards.All() {
		out = append(out, g)
	}
	return out
}

func (s *GuardSet) String() string {
	parts := make([]string, 0, s.guards.Len())
	for _, g := range s.guards.All() {
		parts = append(parts, g.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
