package mapvar

import (
	"github.com/speakeasy-api/openapi/sequencedmap"
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// Entry is one mapping slot: a normalized key and its value variable.
type Entry struct {
	Key   Key
	Value Variable
}

// ConstMapVariable is the symbolic form of a guest mapping whose keys were
// all captured. Item order is guest insertion order and is reproduced
// verbatim at reconstruction. Instances are immutable; mutating methods
// build a successor and swap it in through the tracer.
type ConstMapVariable struct {
	base
	class *hostrt.Class
	items *sequencedmap.Map[string, Entry]
}

// NewConstMap builds a mapping variable over normalized entries. The guard
// sets and aggregate-containment of the entry values are unioned into the
// new variable. A nil class means the plain builtin mapping class.
func NewConstMap(class *hostrt.Class, entries []Entry) *ConstMapVariable {
	if class == nil {
		class = hostrt.PlainDictClass
	}
	values := make([]Variable, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Value)
	}
	items := sequencedmap.New[string, Entry]()
	for _, e := range entries {
		items.Set(e.Key.Canonical(), e)
	}
	return &ConstMapVariable{
		base:  newBase(KindConstMap, values...),
		class: class,
		items: items,
	}
}

// Class returns the guest class this mapping stands for.
func (c *ConstMapVariable) Class() *hostrt.Class {
	return c.class
}

// Len returns the number of items.
func (c *ConstMapVariable) Len() int {
	return c.items.Len()
}

// Entries returns the items in insertion order. Treat as read-only.
func (c *ConstMapVariable) Entries() []Entry {
	out := make([]Entry, 0, c.items.Len())
	for _, e := range c.items.All() {
		out = append(out, e)
	}
	return out
}

// Find looks up a normalized key.
func (c *ConstMapVariable) Find(k Key) (Variable, bool) {
	e, ok := c.items.Get(k.Canonical())
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (c *ConstMapVariable) IsConstantFoldable() bool {
	for _, e := range c.items.All() {
		if !e.Value.IsConstantFoldable() {
			return false
		}
	}
	return true
}

func (c *ConstMapVariable) AsConstant() (any, error) {
	out := hostrt.NewDict(c.class)
	for _, e := range c.items.All() {
		v, err := e.Value.AsConstant()
		if err != nil {
			return nil, err
		}
		out.Set(e.Key.Value(), v)
	}
	return out, nil
}

func (c *ConstMapVariable) AsProxy() (Proxy, error) {
	out := sequencedmap.New[string, Proxy]()
	for key, e := range c.items.All() {
		p, err := e.Value.AsProxy()
		if err != nil {
			return nil, err
		}
		out.Set(key, p)
	}
	return out, nil
}

// UnpackSequence yields the keys as variables, matching guest mapping
// iteration order.
func (c *ConstMapVariable) UnpackSequence(tx Tracer) ([]Variable, error) {
	out := make([]Variable, 0, c.items.Len())
	for _, e := range c.items.All() {
		kv, err := keyVariable(tx, e.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, propagateGuards(kv, c))
	}
	return out, nil
}

// Reconstruct emits the build sequence for this mapping: keys and values in
// item order, one BuildMap, and the ordered-class constructor call when the
// guest class requires it. Weak-ref-eligible keys load through their
// registered globals.
func (c *ConstMapVariable) Reconstruct(cg symflow.Codegen) error {
	ordered := c.class.Kind == hostrt.KindOrderedDict
	if ordered {
		cg.LoadImportedModule("collections", "OrderedDict")
	}
	for _, e := range c.items.All() {
		if err := e.Key.emit(cg); err != nil {
			return err
		}
		if err := e.Value.Reconstruct(cg); err != nil {
			return err
		}
	}
	cg.BuildMap(c.items.Len())
	if ordered {
		cg.Call(1)
	}
	return nil
}

func (c *ConstMapVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("%s.%s", c.kind, method)
	}
	return c.dispatch(tx, op, args, kwargs)
}

func (c *ConstMapVariable) dispatch(tx Tracer, op DictOp, args []Variable, kwargs map[string]Variable) (Variable, error) {
	tx.Logger().Debugf("dispatch %s on %s", op, summarizeVariable(c))

	switch op {
	case DictGetItem:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__getitem__ arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		v, ok := c.Find(k)
		if !ok {
			return nil, keyMissingf("%s[%s]", c.kind, k.Summary())
		}
		return propagateGuards(v, c, args[0]), nil

	case DictItems:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.items takes no arguments", c.kind)
		}
		pairs := make([]Variable, 0, c.items.Len())
		for _, e := range c.items.All() {
			kv, err := keyVariable(tx, e.Key)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, NewTuple(kv, e.Value))
		}
		return propagateGuards(NewTuple(pairs...), c), nil

	case DictKeys:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.keys takes no arguments", c.kind)
		}
		keys := make([]Variable, 0, c.items.Len())
		for _, e := range c.items.All() {
			kv, err := keyVariable(tx, e.Key)
			if err != nil {
				return nil, err
			}
			keys = append(keys, kv)
		}
		view := NewSet(keys...)
		view.mutable = NewMutable()
		return propagateGuards(view, c), nil

	case DictValues:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.values takes no arguments", c.kind)
		}
		values := make([]Variable, 0, c.items.Len())
		for _, e := range c.items.All() {
			values = append(values, e.Value)
		}
		return propagateGuards(NewTuple(values...), c), nil

	case DictLen:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__len__ takes no arguments", c.kind)
		}
		return propagateGuards(NewConstant(int64(c.items.Len())), c), nil

	case DictSetItem:
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__setitem__ arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		succ := c.withEntries(tx, upsertEntries(c.Entries(), k, args[1]), c.demotedToken())
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
		succ := c.withEntries(tx, remaining, c.mutable)
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
		succ := c.withEntries(tx, mergeEntries(c.Entries(), other.Entries()), c.mutable, other)
		tx.ReplaceAll(c, succ)
		return NewConstant(nil), nil

	case DictGet:
		if len(args) < 1 || len(args) > 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.get arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		if v, ok := c.Find(k); ok {
			return propagateGuards(v, c, args[0]), nil
		}
		if len(args) == 2 {
			// missing item, return the default value
			return propagateGuards(args[1], c), nil
		}
		return nil, keyMissingf("%s.get(%s)", c.kind, k.Summary())

	case DictGetAttr:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__getattr__ arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		v, ok := c.Find(k)
		if !ok {
			return nil, unsupportedf("%s.__getattr__(%s)", c.kind, k.Summary())
		}
		return propagateGuards(v, c, args[0]), nil

	case DictContains:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__contains__ arity", c.kind)
		}
		k, err := c.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		_, present := c.Find(k)
		return propagateGuards(NewConstant(present), c, args[0]), nil

	default:
		return nil, unsupportedf("%s.%s", c.kind, op)
	}
}

// normalizeKey canonicalizes an argument key for one operation. Rejection
// escalates to the unsupported class: mapping operations have no defined
// behavior for non-normalizable keys.
func (c *ConstMapVariable) normalizeKey(tx Tracer, op DictOp, arg Variable) (Key, error) {
	k, err := NormalizeKey(tx, arg)
	if err != nil {
		return Key{}, unsupportedf("%s.%s key: %v", c.kind, op, err)
	}
	return k, nil
}

// demotedToken returns the mutability token for a write: the existing one,
// or a fresh token when a first write demotes an immutable snapshot.
func (c *ConstMapVariable) demotedToken() *Mutable {
	if c.mutable != nil {
		return c.mutable
	}
	return NewMutable()
}

// withEntries builds the same-class successor for a mutation: new entries,
// inherited guards and provenance, and aggregate-containment re-derived
// from the surviving values plus any extra operands.
func (c *ConstMapVariable) withEntries(tx Tracer, entries []Entry, token *Mutable, extra ...Variable) *ConstMapVariable {
	registerWeakRefs(tx, entries)
	succ := NewConstMap(c.class, entries)
	succ.guards.Union(c.guards)
	succ.source = c.source
	succ.mutable = token
	for _, ex := range extra {
		if ex == nil {
			continue
		}
		succ.guards.Union(ex.Guards())
		succ.contains = succ.contains.union(ex.AggregateContains()).withToken(ex.MutableToken())
	}
	return succ
}

// registerWeakRefs records produced weak-ref globals for every eligible key
// so reconstruction can load them. Registration is idempotent.
func registerWeakRefs(tx Tracer, entries []Entry) {
	for _, e := range entries {
		if e.Key.GlobalRefEligible() {
			tx.StoreGlobalWeakRef(e.Key.GlobalRefName(), e.Key.Value())
		}
	}
}

// upsertEntries replaces the value at k, preserving its position, or
// appends a new slot.
func upsertEntries(entries []Entry, k Key, v Variable) []Entry {
	canon := k.Canonical()
	out := make([]Entry, len(entries), len(entries)+1)
	copy(out, entries)
	for i := range out {
		if out[i].Key.Canonical() == canon {
			out[i] = Entry{Key: k, Value: v}
			return out
		}
	}
	return append(out, Entry{Key: k, Value: v})
}

// removeEntry drops the slot at k, returning the removed value.
func removeEntry(entries []Entry, k Key) ([]Entry, Variable, bool) {
	canon := k.Canonical()
	out := make([]Entry, 0, len(entries))
	var removed Variable
	found := false
	for _, e := range entries {
		if !found && e.Key.Canonical() == canon {
			removed = e.Value
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, removed, found
}

// mergeEntries applies update semantics: existing keys keep their position
// and take the right-hand value, new keys append in right-hand order.
func mergeEntries(dst, src []Entry) []Entry {
	out := make([]Entry, len(dst), len(dst)+len(src))
	copy(out, dst)
	for _, e := range src {
		out = upsertEntries(out, e.Key, e.Value)
	}
	return out
}

// asConstMap extracts the plain-mapping view of an update operand.
func asConstMap(v Variable) (*ConstMapVariable, bool) {
	switch t := v.(type) {
	case *ConstMapVariable:
		return t, true
	case *DefaultMapVariable:
		return &t.ConstMapVariable, true
	case *RecordVariable:
		return &t.ConstMapVariable, true
	case *CustomRecordVariable:
		return &t.ConstMapVariable, true
	default:
		return nil, false
	}
}

// propagateGuards unions the guard sets of the given operands into the
// result variable.
func propagateGuards(result Variable, operands ...Variable) Variable {
	for _, op := range operands {
		if op != nil {
			result.Guards().Union(op.Guards())
		}
	}
	return result
}
