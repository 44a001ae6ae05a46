package mapvar

import (
	"fmt"
	"strings"

	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// KeyKind classifies normalized keys.
type KeyKind int

const (
	KeyInvalid KeyKind = iota
	// KeyLiteral is a comparable host literal, reproducible by a constant
	// load.
	KeyLiteral
	// KeyIdentity is an identity-sensitive live object whose identity was
	// captured during specialization.
	KeyIdentity
	// KeyTuple is a fixed-arity tuple of acceptable keys. Lookup compares
	// structurally; reconstruction dereferences the registered weak ref to
	// re-obtain the identical guest object.
	KeyTuple
)

func (k KeyKind) String() string {
	switch k {
	case KeyInvalid:
		return "invalid"
	case KeyLiteral:
		return "literal"
	case KeyIdentity:
		return "identity"
	case KeyTuple:
		return "tuple"
	default:
		panic(k)
	}
}

// Key is a mapping key in normalized form. The zero value is invalid.
type Key struct {
	kind KeyKind
	lit  any             // KeyLiteral payload, canonical literal domain
	live any             // KeyIdentity and KeyTuple live guest value
	id   hostrt.ObjectID // identity token of live
}

// LiteralKey normalizes a host literal into a key.
func LiteralKey(v any) (Key, error) {
	lit, ok := hostrt.NormalizeLiteral(v)
	if !ok {
		return Key{}, keyRejectedf("%T is not a literal", v)
	}
	return Key{kind: KeyLiteral, lit: lit}, nil
}

// IdentityKey builds a key from a live identity-bearing object.
func IdentityKey(live any) (Key, error) {
	id, ok := hostrt.IdentityOf(live)
	if !ok {
		return Key{}, keyRejectedf("%T has no stable identity", live)
	}
	return Key{kind: KeyIdentity, live: live, id: id}, nil
}

// TupleKey builds a key from a live literal tuple.
func TupleKey(live *hostrt.Tuple) Key {
	return Key{kind: KeyTuple, live: live, id: live.ID}
}

// Kind returns the key classification.
func (k Key) Kind() KeyKind {
	return k.kind
}

// Valid reports whether the key was produced by normalization.
func (k Key) Valid() bool {
	return k.kind != KeyInvalid
}

// Value returns the underlying host payload: the literal for literal keys,
// the live object otherwise.
func (k Key) Value() any {
	if k.kind == KeyLiteral {
		return k.lit
	}
	return k.live
}

// AsString returns the key's string payload, for tables keyed by name.
func (k Key) AsString() (string, bool) {
	s, ok := k.lit.(string)
	return s, ok && k.kind == KeyLiteral
}

// Canonical returns the deterministic encoding item tables key on. Literal
// and tuple keys encode structurally; identity keys encode by identity.
func (k Key) Canonical() string {
	switch k.kind {
	case KeyInvalid:
		return ""
	case KeyLiteral:
		return hostrt.CanonicalKey(k.lit)
	default:
		return hostrt.CanonicalKey(k.live)
	}
}

// Summary renders the key compactly for diagnostics.
func (k Key) Summary() string {
	switch k.kind {
	case KeyInvalid:
		return "<invalid>"
	case KeyLiteral:
		return safeSprint(k.lit)
	case KeyIdentity:
		return fmt.Sprintf("obj#%s", k.id)
	case KeyTuple:
		t := k.live.(*hostrt.Tuple)
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = elementSummary(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		panic(k.kind)
	}
}

// elementSummary renders one live tuple element: literals as themselves,
// nested tuples recursively, identity-bearing values by their token.
func elementSummary(e any) string {
	if nested, ok := e.(*hostrt.Tuple); ok {
		return TupleKey(nested).Summary()
	}
	if hostrt.IsLiteral(e) {
		return safeSprint(e)
	}
	if id, ok := hostrt.IdentityOf(e); ok {
		return "obj#" + id.String()
	}
	return safeSprint(e)
}

// GlobalRefEligible reports whether reconstruction must reach this key
// through a registered weak reference rather than a constant load. Identity
// keys and tuple keys are eligible; plain literals are not.
func (k Key) GlobalRefEligible() bool {
	return k.kind == KeyIdentity || k.kind == KeyTuple
}

// GlobalRefName returns the deterministic produced-global name an eligible
// key is registered under.
func (k Key) GlobalRefName() string {
	return "__dict_key_" + k.id.String()
}

// emit writes the load sequence that puts this key on the stack.
func (k Key) emit(cg symflow.Codegen) error {
	switch {
	case k.kind == KeyInvalid:
		return keyRejectedf("cannot emit invalid key")
	case k.GlobalRefEligible():
		cg.LoadGlobal(k.GlobalRefName(), true)
		cg.Call(0)
		return nil
	default:
		cg.LoadConst(k.lit)
		return nil
	}
}

// NormalizeKey canonicalizes a symbolic value into a mapping key, or rejects
// it. Acceptable shapes: literal constants, proxies specialized to a
// concrete live value, registered host components, and fixed-arity tuples
// whose elements are themselves acceptable. Rejection is explicit; there is
// no coercion.
func NormalizeKey(tx Tracer, v Variable) (Key, error) {
	switch t := v.(type) {
	case *ConstantVariable:
		return LiteralKey(t.Value)
	case *ProxyVariable:
		if t.specialized == nil {
			return Key{}, keyRejectedf("proxy without specialized value")
		}
		return IdentityKey(t.specialized)
	case *ModuleVariable:
		if t.live == nil {
			return Key{}, keyRejectedf("component %q has no live instance", t.RegName)
		}
		return IdentityKey(t.live)
	case *TupleVariable:
		elems := make([]any, len(t.items))
		for i, it := range t.items {
			k, err := NormalizeKey(tx, it)
			if err != nil {
				return Key{}, keyRejectedf("tuple element %d: %v", i, err)
			}
			elems[i] = k.Value()
		}
		return TupleKey(hostrt.NewTuple(elems...)), nil
	default:
		return Key{}, keyRejectedf("%s is not a valid key shape", v.Kind())
	}
}

// IsValidKey is the boolean projection of NormalizeKey. The two agree
// exactly.
func IsValidKey(tx Tracer, v Variable) bool {
	_, err := NormalizeKey(tx, v)
	return err == nil
}

// keyVariable projects a normalized key back into a symbolic variable:
// literals become constants, eligible keys re-wrap their live value under
// the weak-ref source that reconstruction resolves.
func keyVariable(tx Tracer, k Key) (Variable, error) {
	if k.GlobalRefEligible() {
		return tx.Wrap(k.live, GlobalWeakRefSource{Name: k.GlobalRefName()})
	}
	return NewConstant(k.lit), nil
}
