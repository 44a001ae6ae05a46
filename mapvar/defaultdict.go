package mapvar

import (
	"fmt"

	"github.com/symflow/symflow/hostrt"
)

// DefaultMapVariable is a const-map with a default factory: a lookup miss
// synthesizes the factory's zero-argument result, inserts it through the
// usual successor path, and returns it. All other behavior is the base
// mapping behavior, except that mutations keep the default-map kind and
// factory on the successor.
type DefaultMapVariable struct {
	ConstMapVariable
	factory Variable
}

// IsSupportedFactory reports whether a variable can serve as a default
// factory: absent, one of the list/tuple/dict constructor builtins, or a
// user function routed through the inline executor.
func IsSupportedFactory(v Variable) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *BuiltinVariable:
		switch t.Builtin() {
		case hostrt.BuiltinList, hostrt.BuiltinTuple, hostrt.BuiltinDict:
			return true
		}
		return false
	case *UserFunctionVariable:
		return true
	default:
		return false
	}
}

// factoryAllowListed reports whether the factory is absent or one of the
// constructor builtins. User functions are callable but not allow-listed
// for constant folding.
func factoryAllowListed(v Variable) bool {
	if v == nil {
		return true
	}
	b, ok := v.(*BuiltinVariable)
	if !ok {
		return false
	}
	switch b.Builtin() {
	case hostrt.BuiltinList, hostrt.BuiltinTuple, hostrt.BuiltinDict:
		return true
	}
	return false
}

// NewDefaultMap builds a default-factory mapping. The factory must satisfy
// IsSupportedFactory; classification checks this before construction, so a
// violation here panics.
func NewDefaultMap(factory Variable, class *hostrt.Class, entries []Entry) *DefaultMapVariable {
	if !IsSupportedFactory(factory) {
		panic(fmt.Sprintf("mapvar: unsupported default factory %T", factory))
	}
	if class == nil {
		class = hostrt.DefaultDictClass
	}
	d := &DefaultMapVariable{
		ConstMapVariable: *NewConstMap(class, entries),
		factory:          factory,
	}
	d.kind = KindDefaultMap
	if factory != nil {
		d.guards.Union(factory.Guards())
	}
	return d
}

// Factory returns the default factory, nil when absent.
func (d *DefaultMapVariable) Factory() Variable {
	return d.factory
}

// IsConstantFoldable is false whenever the factory is a user function; the
// synthesized defaults of such a mapping are not derivable from captured
// state. Allow-listed and absent factories defer to the base rules.
func (d *DefaultMapVariable) IsConstantFoldable() bool {
	if !factoryAllowListed(d.factory) {
		return false
	}
	return d.ConstMapVariable.IsConstantFoldable()
}

func (d *DefaultMapVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("%s.%s", d.kind, method)
	}
	switch op {
	case DictGetItem:
		return d.getOrSynthesize(tx, args, kwargs)
	case DictSetItem:
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__setitem__ arity", d.kind)
		}
		k, err := d.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		succ := d.derive(tx, upsertEntries(d.Entries(), k, args[1]), d.demotedToken())
		tx.ReplaceAll(d, succ)
		return NewConstant(nil), nil

	case DictPop:
		if len(args) < 1 || len(args) > 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.pop arity", d.kind)
		}
		k, err := d.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		if _, present := d.Find(k); !present {
			if len(args) == 2 {
				// missing item, return the default value
				return propagateGuards(args[1], d), nil
			}
			if d.mutable == nil {
				return nil, unsupportedf("pop on immutable %s", d.kind)
			}
			return nil, keyMissingf("%s.pop(%s)", d.kind, k.Summary())
		}
		if d.mutable == nil {
			return nil, unsupportedf("pop on immutable %s", d.kind)
		}
		remaining, removed, _ := removeEntry(d.Entries(), k)
		succ := d.derive(tx, remaining, d.mutable)
		tx.ReplaceAll(d, succ)
		return propagateGuards(removed, d), nil

	case DictUpdate:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.update arity", d.kind)
		}
		other, ok := asConstMap(args[0])
		if !ok {
			return nil, unsupportedf("%s.update with %s", d.kind, args[0].Kind())
		}
		if d.mutable == nil {
			return nil, unsupportedf("update on immutable %s", d.kind)
		}
		succ := d.derive(tx, mergeEntries(d.Entries(), other.Entries()), d.mutable, other)
		tx.ReplaceAll(d, succ)
		return NewConstant(nil), nil

	default:
		return d.dispatch(tx, op, args, kwargs)
	}
}

// getOrSynthesize is the __getitem__ path: a hit behaves like the base
// mapping, a miss with a factory synthesizes and inserts the default so a
// second lookup of the same key hits the successor.
func (d *DefaultMapVariable) getOrSynthesize(tx Tracer, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if len(args) != 1 || len(kwargs) != 0 {
		return nil, unsupportedf("%s.__getitem__ arity", d.kind)
	}
	k, err := d.normalizeKey(tx, DictGetItem, args[0])
	if err != nil {
		return nil, err
	}
	if v, ok := d.Find(k); ok {
		return propagateGuards(v, d, args[0]), nil
	}
	if d.factory == nil {
		return nil, keyMissingf("%s[%s] with no default factory", d.kind, k.Summary())
	}
	fn, ok := d.factory.(Callable)
	if !ok {
		return nil, unsupportedf("%s default factory of kind %s", d.kind, d.factory.Kind())
	}
	defaultVar, err := fn.CallFunction(tx, nil, nil)
	if err != nil {
		return nil, err
	}
	tx.Logger().Debugf("synthesized default %s for %s", summarizeVariable(defaultVar), k.Summary())
	succ := d.derive(tx, upsertEntries(d.Entries(), k, defaultVar), d.demotedToken())
	tx.ReplaceAll(d, succ)
	return propagateGuards(defaultVar, d, args[0]), nil
}

// derive builds the default-map successor for a mutation. The const-map
// successor machinery does the heavy lifting; the factory and kind carry
// over.
func (d *DefaultMapVariable) derive(tx Tracer, entries []Entry, token *Mutable, extra ...Variable) *DefaultMapVariable {
	core := d.ConstMapVariable.withEntries(tx, entries, token, extra...)
	succ := &DefaultMapVariable{ConstMapVariable: *core, factory: d.factory}
	succ.kind = KindDefaultMap
	return succ
}
