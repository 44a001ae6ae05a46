package mapvar

import (
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// Kind is the closed set of symbolic variable variants this package models.
type Kind int

const (
	KindInvalid Kind = iota
	KindConstant
	KindTuple
	KindList
	KindSet
	KindProxy
	KindModule
	KindFunction
	KindBuiltin
	KindConstMap
	KindDefaultMap
	KindRecord
	KindCustomRecord
	KindConfig
	KindModuleTable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindConstant:
		return "constant"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindProxy:
		return "proxy"
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindBuiltin:
		return "builtin"
	case KindConstMap:
		return "const_map"
	case KindDefaultMap:
		return "default_map"
	case KindRecord:
		return "record"
	case KindCustomRecord:
		return "custom_record"
	case KindConfig:
		return "config"
	case KindModuleTable:
		return "module_table"
	default:
		panic(k)
	}
}

// Proxy is an opaque handle into the numeric graph builder. The mapping
// layer routes proxies without interpreting them.
type Proxy any

// Variable is a symbolic guest value captured during tracing. Variables are
// immutable once constructed; mutation produces a successor that the tracer
// substitutes for the old identity via ReplaceAll. Guard sets are the one
// exception: they accumulate, never shrink.
type Variable interface {
	Kind() Kind

	// Guards returns the accumulated validity predicates of this value.
	Guards() *GuardSet

	// Source returns how this value was reached from a trace root, or nil
	// for synthesized values.
	Source() Source

	// MutableToken returns the identity of the mutable host slot this value
	// aliases, or nil for immutable snapshots.
	MutableToken() *Mutable

	// AggregateContains returns the mutable identities transitively
	// reachable through this value.
	AggregateContains() TokenSet

	// IsConstantFoldable reports whether AsConstant would succeed.
	IsConstantFoldable() bool

	// AsConstant materializes the value as live host data.
	AsConstant() (any, error)

	// AsProxy projects the value into the numeric graph domain.
	AsProxy() (Proxy, error)

	// Reconstruct emits instructions that rebuild an equivalent guest value.
	Reconstruct(cg symflow.Codegen) error

	// CallMethod dispatches a guest method call on this value.
	CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error)

	// VarGetattr resolves guest attribute access.
	VarGetattr(tx Tracer, name string) (Variable, error)

	// HasAttr resolves a guest hasattr probe.
	HasAttr(tx Tracer, name string) (Variable, error)

	// UnpackSequence yields the element variables of iteration.
	UnpackSequence(tx Tracer) ([]Variable, error)
}

// Mutable is the identity token of a mutable host slot. Tokens compare by
// pointer; the id exists for diagnostics only.
type Mutable struct {
	id hostrt.ObjectID
}

// NewMutable allocates a fresh mutability token.
func NewMutable() *Mutable {
	return &Mutable{id: hostrt.NextID()}
}

func (m *Mutable) String() string {
	if m == nil {
		return "immutable"
	}
	return "mutable#" + m.id.String()
}

// TokenSet is a set of mutability tokens.
type TokenSet map[*Mutable]struct{}

// NewTokenSet builds a set from the given tokens, skipping nils.
func NewTokenSet(tokens ...*Mutable) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		if t != nil {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports membership.
func (s TokenSet) Has(t *Mutable) bool {
	_, ok := s[t]
	return ok
}

// union returns a new set holding both operands' tokens.
func (s TokenSet) union(others ...TokenSet) TokenSet {
	out := make(TokenSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	for _, o := range others {
		for t := range o {
			out[t] = struct{}{}
		}
	}
	return out
}

// withToken returns a new set with one extra token, skipping nil.
func (s TokenSet) withToken(t *Mutable) TokenSet {
	if t == nil {
		return s
	}
	out := s.union()
	out[t] = struct{}{}
	return out
}

// base carries the bookkeeping every variable shares. It also provides the
// refuse-everything defaults; concrete variables override the operations
// they model.
type base struct {
	kind     Kind
	guards   *GuardSet
	source   Source
	mutable  *Mutable
	contains TokenSet
}

// newBase builds variable bookkeeping, unioning the guard sets and
// aggregate-containment of the given children into the fresh variable.
func newBase(kind Kind, children ...Variable) base {
	guards := NewGuardSet()
	contains := make(TokenSet)
	for _, c := range children {
		if c == nil {
			continue
		}
		guards.Union(c.Guards())
		for t := range c.AggregateContains() {
			contains[t] = struct{}{}
		}
		if t := c.MutableToken(); t != nil {
			contains[t] = struct{}{}
		}
	}
	return base{
		kind:     kind,
		guards:   guards,
		contains: contains,
	}
}

func (b *base) Kind() Kind                  { return b.kind }
func (b *base) Guards() *GuardSet           { return b.guards }
func (b *base) Source() Source              { return b.source }
func (b *base) MutableToken() *Mutable      { return b.mutable }
func (b *base) AggregateContains() TokenSet { return b.contains }

func (b *base) IsConstantFoldable() bool {
	return false
}

func (b *base) AsConstant() (any, error) {
	return nil, unsupportedf("%s is not constant-foldable", b.kind)
}

func (b *base) AsProxy() (Proxy, error) {
	return nil, unsupportedf("%s has no graph projection", b.kind)
}

func (b *base) Reconstruct(cg symflow.Codegen) error {
	if b.source != nil {
		return b.source.Reconstruct(cg)
	}
	return unsupportedf("cannot rebuild %s without provenance", b.kind)
}

func (b *base) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	return nil, unsupportedf("%s.%s", b.kind, method)
}

func (b *base) VarGetattr(tx Tracer, name string) (Variable, error) {
	return nil, unsupportedf("getattr on %s: %s", b.kind, name)
}

func (b *base) HasAttr(tx Tracer, name string) (Variable, error) {
	return nil, unsupportedf("hasattr on %s: %s", b.kind, name)
}

func (b *base) UnpackSequence(tx Tracer) ([]Variable, error) {
	return nil, unsupportedf("%s is not iterable here", b.kind)
}
