package mapvar

import (
	"fmt"

	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// The variables in this file are the minimal collaborators the mapping
// family needs: method arguments, item values, and dispatch results. They
// model only the contracts mapping operations rely on.

// ConstantVariable is a literal guest value.
type ConstantVariable struct {
	base
	// Value is the canonical literal payload. Treat as read-only.
	Value any
}

// NewConstant creates a constant from a host literal. Non-literal input is a
// programming error and panics.
func NewConstant(v any) *ConstantVariable {
	lit, ok := hostrt.NormalizeLiteral(v)
	if !ok {
		panic(fmt.Sprintf("mapvar: NewConstant on non-literal %T", v))
	}
	return &ConstantVariable{base: newBase(KindConstant), Value: lit}
}

func (c *ConstantVariable) IsConstantFoldable() bool {
	return true
}

func (c *ConstantVariable) AsConstant() (any, error) {
	return c.Value, nil
}

func (c *ConstantVariable) AsProxy() (Proxy, error) {
	return c.Value, nil
}

func (c *ConstantVariable) Reconstruct(cg symflow.Codegen) error {
	cg.LoadConst(c.Value)
	return nil
}

// isNone reports whether v is the constant none literal.
func isNone(v Variable) bool {
	c, ok := v.(*ConstantVariable)
	return ok && c.Value == nil
}

// TupleVariable is a fixed guest tuple of variables.
type TupleVariable struct {
	base
	items []Variable
}

// NewTuple creates a tuple variable over the given items.
func NewTuple(items ...Variable) *TupleVariable {
	return &TupleVariable{base: newBase(KindTuple, items...), items: items}
}

// Items returns the element variables in order. Treat as read-only.
func (t *TupleVariable) Items() []Variable {
	return t.items
}

func (t *TupleVariable) IsConstantFoldable() bool {
	for _, it := range t.items {
		if !it.IsConstantFoldable() {
			return false
		}
	}
	return true
}

func (t *TupleVariable) AsConstant() (any, error) {
	elems := make([]any, len(t.items))
	for i, it := range t.items {
		v, err := it.AsConstant()
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return hostrt.NewTuple(elems...), nil
}

func (t *TupleVariable) AsProxy() (Proxy, error) {
	proxies := make([]Proxy, len(t.items))
	for i, it := range t.items {
		p, err := it.AsProxy()
		if err != nil {
			return nil, err
		}
		proxies[i] = p
	}
	return proxies, nil
}

func (t *TupleVariable) Reconstruct(cg symflow.Codegen) error {
	for _, it := range t.items {
		if err := it.Reconstruct(cg); err != nil {
			return err
		}
	}
	cg.BuildTuple(len(t.items))
	return nil
}

func (t *TupleVariable) UnpackSequence(tx Tracer) ([]Variable, error) {
	return t.items, nil
}

func (t *TupleVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("tuple.%s", method)
	}
	switch op {
	case DictLen:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("tuple.__len__ takes no arguments")
		}
		return NewConstant(int64(len(t.items))), nil
	case DictGetItem:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("tuple.__getitem__ arity")
		}
		c, ok := args[0].(*ConstantVariable)
		if !ok {
			return nil, unsupportedf("tuple index must be a constant")
		}
		i, ok := c.Value.(int64)
		if !ok {
			return nil, unsupportedf("tuple index must be an integer, got %T", c.Value)
		}
		if i < 0 {
			i += int64(len(t.items))
		}
		if i < 0 || i >= int64(len(t.items)) {
			return nil, keyMissingf("tuple index %d out of range", i)
		}
		return t.items[i], nil
	default:
		return nil, unsupportedf("tuple.%s", method)
	}
}

// ListVariable is a guest list. Lists synthesized during tracing (factory
// defaults) carry a fresh mutability token.
type ListVariable struct {
	base
	items []Variable
}

// NewList creates an immutable list snapshot over the given items.
func NewList(items ...Variable) *ListVariable {
	return &ListVariable{base: newBase(KindList, items...), items: items}
}

// Items returns the element variables in order. Treat as read-only.
func (l *ListVariable) Items() []Variable {
	return l.items
}

func (l *ListVariable) IsConstantFoldable() bool {
	for _, it := range l.items {
		if !it.IsConstantFoldable() {
			return false
		}
	}
	return true
}

func (l *ListVariable) Reconstruct(cg symflow.Codegen) error {
	for _, it := range l.items {
		if err := it.Reconstruct(cg); err != nil {
			return err
		}
	}
	cg.BuildList(len(l.items))
	return nil
}

func (l *ListVariable) UnpackSequence(tx Tracer) ([]Variable, error) {
	return l.items, nil
}

// SetVariable is a guest set. The keys() view of a mapping produces one.
type SetVariable struct {
	base
	items []Variable
}

// NewSet creates a set variable over the given items.
func NewSet(items ...Variable) *SetVariable {
	return &SetVariable{base: newBase(KindSet, items...), items: items}
}

// Items returns the element variables in insertion order. Treat as
// read-only.
func (s *SetVariable) Items() []Variable {
	return s.items
}

func (s *SetVariable) Reconstruct(cg symflow.Codegen) error {
	for _, it := range s.items {
		if err := it.Reconstruct(cg); err != nil {
			return err
		}
	}
	cg.BuildSet(len(s.items))
	return nil
}

func (s *SetVariable) UnpackSequence(tx Tracer) ([]Variable, error) {
	return s.items, nil
}

func (s *SetVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("set.%s", method)
	}
	switch op {
	case DictLen:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("set.__len__ takes no arguments")
		}
		return NewConstant(int64(len(s.items))), nil
	case DictContains:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("set.__contains__ arity")
		}
		probe, err := NormalizeKey(tx, args[0])
		if err != nil {
			return nil, unsupportedf("set.__contains__ with %s", args[0].Kind())
		}
		for _, it := range s.items {
			k, err := NormalizeKey(tx, it)
			if err != nil {
				continue
			}
			if k.Canonical() == probe.Canonical() {
				return NewConstant(true), nil
			}
		}
		return NewConstant(false), nil
	default:
		return nil, unsupportedf("set.%s", method)
	}
}

// Callable is implemented by variables that can be invoked during tracing.
type Callable interface {
	Variable
	CallFunction(tx Tracer, args []Variable, kwargs map[string]Variable) (Variable, error)
}

// BuiltinVariable is one of the recognized builtin callables.
type BuiltinVariable struct {
	base
	fn *hostrt.Func
}

// NewBuiltinVariable wraps a builtin callable descriptor.
func NewBuiltinVariable(fn *hostrt.Func) *BuiltinVariable {
	return &BuiltinVariable{base: newBase(KindBuiltin), fn: fn}
}

// Builtin returns which builtin this is.
func (b *BuiltinVariable) Builtin() hostrt.BuiltinKind {
	return b.fn.Builtin
}

// CallFunction invokes the builtin. Only the zero-argument constructor forms
// are modeled; they synthesize empty aggregates.
func (b *BuiltinVariable) CallFunction(tx Tracer, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if len(args) != 0 || len(kwargs) != 0 {
		return nil, unsupportedf("builtin %s with arguments", b.fn.Name)
	}
	switch b.fn.Builtin {
	case hostrt.BuiltinList:
		l := NewList()
		l.mutable = NewMutable()
		return l, nil
	case hostrt.BuiltinTuple:
		return NewTuple(), nil
	case hostrt.BuiltinDict:
		m := NewConstMap(hostrt.PlainDictClass, nil)
		m.mutable = NewMutable()
		return m, nil
	default:
		return nil, unsupportedf("builtin %s is not a constructor", b.fn.Name)
	}
}

// UserFunctionVariable is a guest-defined callable; its body is executed
// only through the tracer's inline executor.
type UserFunctionVariable struct {
	base
	fn *hostrt.Func
}

// NewUserFunction wraps a guest function descriptor.
func NewUserFunction(fn *hostrt.Func) *UserFunctionVariable {
	return &UserFunctionVariable{base: newBase(KindFunction), fn: fn}
}

// Fn returns the wrapped descriptor.
func (u *UserFunctionVariable) Fn() *hostrt.Func {
	return u.fn
}

// CallFunction inlines the guest function through the tracer.
func (u *UserFunctionVariable) CallFunction(tx Tracer, args []Variable, kwargs map[string]Variable) (Variable, error) {
	return tx.InlineUserFunction(u, args, kwargs)
}

// ProxyVariable stands for a value living in the numeric graph. When the
// tracer has specialized it to one concrete live object, that object can
// serve as an identity key.
type ProxyVariable struct {
	base
	proxy       Proxy
	specialized any
}

// NewProxy wraps a graph handle.
func NewProxy(p Proxy) *ProxyVariable {
	return &ProxyVariable{base: newBase(KindProxy), proxy: p}
}

// NewSpecializedProxy wraps a graph handle pinned to a concrete live value.
func NewSpecializedProxy(p Proxy, live any) *ProxyVariable {
	return &ProxyVariable{base: newBase(KindProxy), proxy: p, specialized: live}
}

func (p *ProxyVariable) AsProxy() (Proxy, error) {
	return p.proxy, nil
}

// ModuleVariable is a live host component registered under a stable name:
// an imported module or a registered model component. Its identity is
// capturable, so it is a valid mapping key.
type ModuleVariable struct {
	base
	RegName string
	live    *hostrt.Object
}

// NewModuleVariable wraps a registered live component.
func NewModuleVariable(regName string, live *hostrt.Object) *ModuleVariable {
	return &ModuleVariable{base: newBase(KindModule), RegName: regName, live: live}
}

// Live returns the live component instance.
func (m *ModuleVariable) Live() *hostrt.Object {
	return m.live
}
