package mapvar

import (
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// CustomRecordVariable handles guest classes that subclass the mapping
// types and override behavior. Methods the class does not override keep the
// base mapping semantics; overridden methods on the small allow-list run by
// inlining the guest function. Reconstruction is the record keyword-call
// form, so items must stay string-keyed.
type CustomRecordVariable struct {
	ConstMapVariable
}

// customOverrides are the only guest-overridable methods we trace through.
var customOverrides = map[string]struct{}{
	"__getitem__": {},
	"to_tuple":    {},
	"__setitem__": {},
	"__setattr__": {},
}

// IsCustomRecordClass reports whether a guest class takes the customizable
// record path: an ordered-mapping subclass still on the default constructor
// with no post-init hook, or a record-convention class with a custom
// constructor.
func IsCustomRecordClass(class *hostrt.Class) bool {
	if class == nil {
		return false
	}
	switch class.Kind {
	case hostrt.KindOrderedDict:
		return !class.HasCustomInit && !class.HasPostInit
	case hostrt.KindRecord, hostrt.KindRecordKeepNone:
		return class.HasCustomInit
	}
	return false
}

func newCustomRecord(class *hostrt.Class, entries []Entry) *CustomRecordVariable {
	c := &CustomRecordVariable{ConstMapVariable: *NewConstMap(class, entries)}
	c.kind = KindCustomRecord
	return c
}

// NewCustomRecordFromCall builds a customizable record from a traced
// constructor call. Accepted shapes: no arguments (empty), a schema class
// binding its fields with defaults, or adopting the items of a single
// mapping argument. The class is latched before any item is touched so its
// overrides run natively rather than being traced during construction.
func NewCustomRecordFromCall(tx Tracer, class *hostrt.Class, args []Variable, kwargs map[string]Variable) (*CustomRecordVariable, error) {
	if !IsCustomRecordClass(class) {
		return nil, unsupportedf("%s does not follow a customizable mapping convention", class.Name)
	}
	if hostrt.EnsurePatched(class) {
		tx.Logger().Debugf("latched custom record class %s", class.Name)
	}
	var entries []Entry
	switch {
	case len(args) == 0 && len(kwargs) == 0:
		entries = nil
	case len(class.Fields) > 0:
		bound, err := bindSchemaFields(class, args, kwargs)
		if err != nil {
			return nil, err
		}
		entries = bound
	case len(args) == 1 && len(kwargs) == 0:
		src, ok := asConstMap(args[0])
		if !ok {
			return nil, unsupportedf("%s(...) with a %s argument", class.Name, args[0].Kind())
		}
		entries = src.Entries()
	default:
		return nil, unsupportedf("%s constructor arguments", class.Name)
	}
	return newCustomRecord(class, entries), nil
}

func (c *CustomRecordVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	fn, overridden := c.class.Override(method)
	if !overridden {
		return c.baseMethod(tx, method, args, kwargs)
	}
	if _, allowed := customOverrides[method]; !allowed {
		return nil, unsupportedf("%s overrides %s", c.class.Name, method)
	}
	fnVar := NewUserFunction(fn)
	if c.source != nil {
		fnVar.source = AttrSource{
			Base: AttrSource{Base: c.source, Attr: "__class__"},
			Attr: method,
		}
	}
	tx.Logger().Debugf("inlining %s.%s override", c.class.Name, method)
	return tx.InlineUserFunction(fnVar, append([]Variable{c}, args...), kwargs)
}

// baseMethod is the non-overridden path: base mapping semantics, with
// mutations deriving custom-record successors so the class identity and its
// overrides survive replace-all.
func (c *CustomRecordVariable) baseMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("%s.%s", c.kind, method)
	}
	switch op {
	case DictSetItem:
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__setitem__ arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		succ := c.derive(tx, upsertEntries(c.Entries(), k, args[1]), c.demotedToken())
		tx.ReplaceAll(c, succ)
		return NewConstant(nil), nil

	case DictPop:
		if len(args) < 1 || len(args) > 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.pop arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		if _, present := c.Find(k); !present {
			if len(args) == 2 {
				// missing item, return the default value
				return propagateGuards(args[1], c), nil
			}
			if c.mutable == nil {
				return nil, unsupportedf("pop on immutable %s", c.kind)
			}
			return nil, keyMissingf("%s.pop(%s)", c.kind, k.Summary())
		}
		if c.mutable == nil {
			return nil, unsupportedf("pop on immutable %s", c.kind)
		}
		remaining, removed, _ := removeEntry(c.Entries(), k)
		succ := c.derive(tx, remaining, c.mutable)
		tx.ReplaceAll(c, succ)
		return propagateGuards(removed, c), nil

	case DictUpdate:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.update arity", c.kind)
		}
		other, ok := asConstMap(args[0])
		if !ok {
			return nil, unsupportedf("%s.update with %s", c.kind, args[0].Kind())
		}
		if c.mutable == nil {
			return nil, unsupportedf("update on immutable %s", c.kind)
		}
		succ := c.derive(tx, mergeEntries(c.Entries(), other.Entries()), c.mutable, other)
		tx.ReplaceAll(c, succ)
		return NewConstant(nil), nil

	default:
		return c.dispatch(tx, op, args, kwargs)
	}
}

// Reconstruct emits the keyword-style constructor call of the guest class.
// Adopted mapping items may carry non-string keys; those cannot be spelled
// as keywords.
func (c *CustomRecordVariable) Reconstruct(cg symflow.Codegen) error {
	cg.LoadConst(c.class)
	names := make([]string, 0, c.Len())
	for _, e := range c.Entries() {
		name, isStr := e.Key.AsString()
		if !isStr {
			return unsupportedf("%s reconstruction with non-string key %s", c.class.Name, e.Key.Summary())
		}
		if err := e.Value.Reconstruct(cg); err != nil {
			return err
		}
		names = append(names, name)
	}
	cg.CallKw(len(names), names)
	return nil
}

func (c *CustomRecordVariable) derive(tx Tracer, entries []Entry, token *Mutable, extra ...Variable) *CustomRecordVariable {
	core := c.ConstMapVariable.withEntries(tx, entries, token, extra...)
	succ := &CustomRecordVariable{ConstMapVariable: *core}
	succ.kind = KindCustomRecord
	return succ
}
