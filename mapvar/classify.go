package mapvar

import (
	"github.com/symflow/symflow/hostrt"
)

// Classify maps a guest class descriptor to the variable kind its instances
// wrap to. This is the single routing decision; nothing else inspects class
// shapes. KindInvalid means the class is outside this package's scope.
func Classify(class *hostrt.Class) Kind {
	switch {
	case class == nil:
		return KindInvalid
	case class == hostrt.PlainDictClass || class == hostrt.OrderedDictClass:
		return KindConstMap
	case class == hostrt.DefaultDictClass:
		return KindDefaultMap
	case IsCustomRecordClass(class):
		return KindCustomRecord
	case class.Kind == hostrt.KindRecord || class.Kind == hostrt.KindRecordKeepNone:
		return KindRecord
	case class.Kind == hostrt.KindConfig:
		return KindConfig
	default:
		// mapping subclasses outside the customizable convention and
		// opaque classes stay out of scope
		return KindInvalid
	}
}

// Wrap is the builder entry point: it turns one live guest value into its
// symbolic variable, recursing through containers. Children of containers
// wrap under subscript sources off src. Source-backed wraps carry a
// baseline guard tying the capture to its provenance.
func Wrap(tx Tracer, live any, src Source) (Variable, error) {
	if lit, ok := hostrt.NormalizeLiteral(live); ok {
		v := NewConstant(lit)
		v.source = src
		addBaseline(v, GuardConstMatch, src)
		return v, nil
	}
	switch t := live.(type) {
	case *hostrt.Tuple:
		return wrapTuple(tx, t, src)
	case *hostrt.Dict:
		return wrapDict(tx, t, src)
	case *hostrt.Object:
		return wrapObject(tx, t, src)
	case *hostrt.Func:
		return wrapFunc(t, src)
	case *hostrt.Registry:
		return NewModuleTable(t, src), nil
	default:
		return nil, unsupportedf("cannot wrap %T", live)
	}
}

func addBaseline(v Variable, kind GuardKind, src Source) {
	if src == nil {
		return
	}
	v.Guards().Add(Guard{Kind: kind, Ref: src.String()})
}

func wrapTuple(tx Tracer, t *hostrt.Tuple, src Source) (Variable, error) {
	items := make([]Variable, 0, len(t.Elems))
	for i, el := range t.Elems {
		var childSrc Source
		if src != nil {
			idx, err := LiteralKey(int64(i))
			if err != nil {
				return nil, err
			}
			childSrc = GetItemSource{Base: src, Key: idx}
		}
		ev, err := Wrap(tx, el, childSrc)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	v := NewTuple(items...)
	v.source = src
	addBaseline(v, GuardTypeMatch, src)
	return v, nil
}

// wrapDict captures a live mapping. Plain mappings come out mutable from
// the start; ordered and default mappings stay immutable snapshots until a
// write demotes them. Keys outside the normalizable shapes reject the whole
// wrap.
func wrapDict(tx Tracer, d *hostrt.Dict, src Source) (Variable, error) {
	opts := tx.Options()
	if opts.MaxItems > 0 && d.Len() > opts.MaxItems {
		return nil, unsupportedf("mapping with %d items exceeds MaxItems=%d", d.Len(), opts.MaxItems)
	}
	kind := Classify(d.Class)
	if kind != KindConstMap && kind != KindDefaultMap {
		return nil, unsupportedf("mapping class %s is out of scope", d.Class.Name)
	}
	entries := make([]Entry, 0, d.Len())
	for _, item := range d.Items() {
		k, err := liveKey(item.Key)
		if err != nil {
			return nil, err
		}
		var childSrc Source
		if src != nil {
			childSrc = GetItemSource{Base: src, Key: k}
		}
		v, err := Wrap(tx, item.Value, childSrc)
		if err != nil {
			return nil, err
		}
		if k.GlobalRefEligible() {
			tx.StoreGlobalWeakRef(k.GlobalRefName(), k.Value())
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	if kind == KindDefaultMap {
		var factory Variable
		if d.Factory != nil {
			fv, err := wrapFunc(d.Factory, nil)
			if err != nil {
				return nil, err
			}
			factory = fv
		}
		if !IsSupportedFactory(factory) {
			return nil, unsupportedf("default factory %s is not supported", d.Factory.Name)
		}
		dm := NewDefaultMap(factory, d.Class, entries)
		dm.source = src
		addBaseline(dm, GuardMapKeys, src)
		tx.Logger().Debugf("wrapped %s", summarizeVariable(dm))
		return dm, nil
	}
	cm := NewConstMap(d.Class, entries)
	cm.source = src
	if d.Class == hostrt.PlainDictClass {
		cm.mutable = NewMutable()
	}
	addBaseline(cm, GuardMapKeys, src)
	tx.Logger().Debugf("wrapped %s", summarizeVariable(cm))
	return cm, nil
}

// liveKey normalizes a raw guest key the way NormalizeKey treats symbolic
// ones: literals structurally, tuples structurally, everything else by
// identity.
func liveKey(raw any) (Key, error) {
	if hostrt.IsLiteral(raw) {
		return LiteralKey(raw)
	}
	if t, ok := raw.(*hostrt.Tuple); ok {
		return TupleKey(t), nil
	}
	return IdentityKey(raw)
}

// wrapObject routes a live instance: registered host components become
// module variables regardless of class, then the class decides between the
// config, record, and opaque paths. Record-convention instances wrap as
// plain records even when their class customizes construction; the
// customizable path only exists for traced constructor calls.
func wrapObject(tx Tracer, obj *hostrt.Object, src Source) (Variable, error) {
	if name, ok := registryNameOf(tx.Registry(), obj); ok {
		v := NewModuleVariable(name, obj)
		v.source = src
		addBaseline(v, GuardIdentity, src)
		return v, nil
	}
	switch Classify(obj.Class) {
	case KindConfig:
		v, err := NewConfigVariable(obj, src)
		if err != nil {
			return nil, err
		}
		addBaseline(v, GuardTypeMatch, src)
		return v, nil
	case KindRecord:
		v, err := WrapRecord(tx, obj.Class, obj, src)
		if err != nil {
			return nil, err
		}
		addBaseline(v, GuardTypeMatch, src)
		return v, nil
	case KindCustomRecord:
		if obj.Class.Kind == hostrt.KindRecord || obj.Class.Kind == hostrt.KindRecordKeepNone {
			v, err := WrapRecord(tx, obj.Class, obj, src)
			if err != nil {
				return nil, err
			}
			addBaseline(v, GuardTypeMatch, src)
			return v, nil
		}
		return nil, unsupportedf("cannot wrap live %s instance", obj.Class.Name)
	default:
		if src == nil {
			return nil, unsupportedf("opaque %s without provenance", obj.Class.Name)
		}
		// pinned to the live value it was captured from
		v := NewSpecializedProxy(obj, obj)
		v.source = src
		addBaseline(v, GuardTypeMatch, src)
		return v, nil
	}
}

func wrapFunc(fn *hostrt.Func, src Source) (Variable, error) {
	var v Variable
	if fn.Builtin != hostrt.BuiltinNone {
		b := NewBuiltinVariable(fn)
		b.source = src
		v = b
	} else {
		u := NewUserFunction(fn)
		u.source = src
		v = u
	}
	addBaseline(v, GuardIdentity, src)
	return v, nil
}

// registryNameOf finds the registration name of a live component, if any.
func registryNameOf(reg *hostrt.Registry, obj *hostrt.Object) (string, bool) {
	if reg == nil {
		return "", false
	}
	for _, name := range reg.Names() {
		if m, ok := reg.Lookup(name); ok && m == obj {
			return name, true
		}
	}
	return "", false
}
