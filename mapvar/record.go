package mapvar

import (
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// RecordVariable is the mapping-like view of a schema-bearing guest class
// instance. Items are schema fields in schema order; reconstruction is a
// keyword-style constructor call rather than a mapping build. Two field
// policies exist, chosen by the class kind: exclude-absent classes drop
// none-valued fields from the item view and let the constructor defaults
// restore them, include-none classes keep the none literal as an item.
type RecordVariable struct {
	ConstMapVariable
}

func newRecord(class *hostrt.Class, entries []Entry) *RecordVariable {
	r := &RecordVariable{ConstMapVariable: *NewConstMap(class, entries)}
	r.kind = KindRecord
	return r
}

// fieldKey wraps a schema field name. Field names are always plain strings.
func fieldKey(name string) Key {
	k, err := LiteralKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

func (r *RecordVariable) includeNone() bool {
	return r.class.Kind == hostrt.KindRecordKeepNone
}

// NewRecordFromCall builds a record from a traced constructor call. The
// arguments bind against the class schema left to right, keywords by field
// name, declared defaults filling the rest. Every schema field must end up
// bound. A single-field binding is accepted only when the value is
// proxy-backed.
func NewRecordFromCall(tx Tracer, class *hostrt.Class, args []Variable, kwargs map[string]Variable) (*RecordVariable, error) {
	if hostrt.EnsurePatched(class) {
		tx.Logger().Debugf("latched record class %s", class.Name)
	}
	bound, err := bindSchemaFields(class, args, kwargs)
	if err != nil {
		return nil, err
	}
	keepNone := class.Kind == hostrt.KindRecordKeepNone
	entries := make([]Entry, 0, len(bound))
	dropped := make([]Variable, 0)
	for _, e := range bound {
		if !keepNone && isNone(e.Value) {
			dropped = append(dropped, e.Value)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 1 {
		if _, ok := entries[0].Value.(*ProxyVariable); !ok {
			return nil, unsupportedf("%s constructor over a single non-proxy field", class.Name)
		}
	}
	rec := newRecord(class, entries)
	for _, d := range dropped {
		rec.guards.Union(d.Guards())
	}
	return rec, nil
}

// bindSchemaFields binds a call against a class schema and returns one
// entry per schema field, in schema order, defaults applied. Binding
// failures are schema mismatches; a non-literal default is unsupported.
func bindSchemaFields(class *hostrt.Class, args []Variable, kwargs map[string]Variable) ([]Entry, error) {
	if len(args) > len(class.Fields) {
		return nil, schemaMismatchf("%s takes at most %d arguments, got %d",
			class.Name, len(class.Fields), len(args))
	}
	bound := make(map[string]Variable, len(class.Fields))
	for i, a := range args {
		bound[class.Fields[i].Name] = a
	}
	for name, v := range kwargs {
		if _, ok := class.FieldByName(name); !ok {
			return nil, schemaMismatchf("%s has no field %q", class.Name, name)
		}
		if _, dup := bound[name]; dup {
			return nil, schemaMismatchf("%s got field %q twice", class.Name, name)
		}
		bound[name] = v
	}
	entries := make([]Entry, 0, len(class.Fields))
	for _, f := range class.Fields {
		v, ok := bound[f.Name]
		if !ok {
			if !f.HasDefault {
				return nil, schemaMismatchf("%s missing required field %q", class.Name, f.Name)
			}
			if !hostrt.IsLiteral(f.Default) {
				return nil, unsupportedf("%s.%s default is not a literal", class.Name, f.Name)
			}
			v = NewConstant(f.Default)
		}
		entries = append(entries, Entry{Key: fieldKey(f.Name), Value: v})
	}
	return entries, nil
}

// WrapRecord builds a record over a live instance by probing the schema
// fields in order. Present fields wrap under an attribute source; absent
// fields are skipped. Fields dropped by the exclude-absent policy still
// contribute their guards.
func WrapRecord(tx Tracer, class *hostrt.Class, obj *hostrt.Object, source Source) (*RecordVariable, error) {
	if hostrt.EnsurePatched(class) {
		tx.Logger().Debugf("latched record class %s", class.Name)
	}
	keepNone := class.Kind == hostrt.KindRecordKeepNone
	entries := make([]Entry, 0, len(class.Fields))
	dropped := make([]Variable, 0)
	for _, f := range class.Fields {
		live, ok := obj.Attr(f.Name)
		if !ok {
			continue
		}
		v, err := tx.Wrap(live, AttrSource{Base: source, Attr: f.Name})
		if err != nil {
			return nil, err
		}
		if !keepNone && isNone(v) {
			dropped = append(dropped, v)
			continue
		}
		entries = append(entries, Entry{Key: fieldKey(f.Name), Value: v})
	}
	rec := newRecord(class, entries)
	rec.source = source
	for _, d := range dropped {
		rec.guards.Union(d.Guards())
	}
	return rec, nil
}

func (r *RecordVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("%s.%s", r.kind, method)
	}
	switch op {
	case DictGetItem:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__getitem__ arity", r.kind)
		}
		k, err := r.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		if name, isStr := k.AsString(); isStr {
			v, found := r.Find(k)
			if !found {
				return nil, keyMissingf("%s has no field %q", r.class.Name, name)
			}
			return propagateGuards(v, r, args[0]), nil
		}
		// positional access goes through the tuple view
		return r.toTuple().CallMethod(tx, "__getitem__", args, kwargs)

	case DictToTuple:
		if len(args) != 0 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.to_tuple takes no arguments", r.kind)
		}
		return r.toTuple(), nil

	case DictSetItem, DictSetAttr:
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.%s arity", r.kind, op)
		}
		k, err := r.normalizeKey(tx, op, args[0])
		if err != nil {
			return nil, err
		}
		if _, isStr := k.AsString(); !isStr {
			return nil, unsupportedf("%s field name must be a string, got %s", r.kind, k.Summary())
		}
		succ := r.derive(tx, upsertEntries(r.Entries(), k, args[1]), r.demotedToken())
		tx.ReplaceAll(r, succ)
		return NewConstant(nil), nil

	case DictContains, DictKeys, DictValues, DictItems, DictLen:
		return r.dispatch(tx, op, args, kwargs)

	default:
		return nil, unsupportedf("%s.%s", r.kind, op)
	}
}

func (r *RecordVariable) toTuple() Variable {
	values := make([]Variable, 0, r.Len())
	for _, e := range r.Entries() {
		values = append(values, e.Value)
	}
	return propagateGuards(NewTuple(values...), r)
}

// VarGetattr resolves a field read. On exclude-absent classes an absent
// field with a declared literal default reads as that constant; the live
// instance would produce the same value through the constructor.
func (r *RecordVariable) VarGetattr(tx Tracer, name string) (Variable, error) {
	if v, ok := r.Find(fieldKey(name)); ok {
		return propagateGuards(v, r), nil
	}
	if !r.includeNone() {
		if f, ok := r.class.FieldByName(name); ok && f.HasDefault && hostrt.IsLiteral(f.Default) {
			return propagateGuards(NewConstant(f.Default), r), nil
		}
	}
	return nil, unsupportedf("getattr on %s: %s", r.kind, name)
}

// Reconstruct emits the keyword-style constructor call: the class constant,
// the present values in schema order, then one keyword call naming the
// present fields. Absent fields are restored by the constructor itself.
func (r *RecordVariable) Reconstruct(cg symflow.Codegen) error {
	cg.LoadConst(r.class)
	names := make([]string, 0, r.Len())
	for _, e := range r.Entries() {
		name, _ := e.Key.AsString()
		if err := e.Value.Reconstruct(cg); err != nil {
			return err
		}
		names = append(names, name)
	}
	cg.CallKw(len(names), names)
	return nil
}

func (r *RecordVariable) derive(tx Tracer, entries []Entry, token *Mutable, extra ...Variable) *RecordVariable {
	core := r.ConstMapVariable.withEntries(tx, entries, token, extra...)
	succ := &RecordVariable{ConstMapVariable: *core}
	succ.kind = KindRecord
	return succ
}
