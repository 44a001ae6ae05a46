package mapvar

import (
	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// ModuleTableVariable is the symbolic face of the live component registry,
// the one mapping the trace reads through instead of capturing. Lookups hit
// the live table and install per-key membership guards; the table itself is
// never rebuilt, reconstruction reloads it.
type ModuleTableVariable struct {
	base
	registry *hostrt.Registry
}

// NewModuleTable wraps a registry. A nil registry means the process-global
// one; a nil source defaults to the canonical table location.
func NewModuleTable(reg *hostrt.Registry, source Source) *ModuleTableVariable {
	if reg == nil {
		reg = hostrt.Modules()
	}
	if source == nil {
		source = TableSource{Module: "sys", Attr: "modules"}
	}
	v := &ModuleTableVariable{base: newBase(KindModuleTable), registry: reg}
	v.source = source
	return v
}

// Registry returns the live table this variable reads through.
func (m *ModuleTableVariable) Registry() *hostrt.Registry {
	return m.registry
}

// Reconstruct reloads the live table through its source. The table is
// shared process state; a rebuilt copy would be a different object.
func (m *ModuleTableVariable) Reconstruct(cg symflow.Codegen) error {
	return m.source.Reconstruct(cg)
}

// containsHelper normalizes the queried key to its string form, asks the
// live registry once, and installs the membership guard (inverted when
// absent) on the session ledger.
func (m *ModuleTableVariable) containsHelper(tx Tracer, arg Variable) (string, bool, Guard, error) {
	k, err := NormalizeKey(tx, arg)
	if err != nil {
		return "", false, Guard{}, unsupportedf("module table key: %v", err)
	}
	name, isStr := k.AsString()
	if !isStr {
		return "", false, Guard{}, unsupportedf("module table key %s is not a string", k.Summary())
	}
	present := m.registry.Contains(name)
	g := MembershipGuard(m.source.String(), fieldKey(name), present)
	tx.InstallGuard(g)
	tx.Logger().Debugf("module table %s: %q present=%v", m.source, name, present)
	return name, present, g, nil
}

// wrapModule wraps one live module under a subscript source off the table.
func (m *ModuleTableVariable) wrapModule(tx Tracer, name string, g Guard) (Variable, error) {
	mod, ok := m.registry.Lookup(name)
	if !ok {
		return nil, keyMissingf("module table has no %q", name)
	}
	v, err := tx.Wrap(mod, GetItemSource{Base: m.source, Key: fieldKey(name)})
	if err != nil {
		return nil, err
	}
	v.Guards().Add(g)
	return propagateGuards(v, m), nil
}

func (m *ModuleTableVariable) CallMethod(tx Tracer, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	op, ok := ParseDictOp(method)
	if !ok {
		return nil, unsupportedf("%s.%s", m.kind, method)
	}
	switch op {
	case DictContains:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__contains__ arity", m.kind)
		}
		_, present, g, err := m.containsHelper(tx, args[0])
		if err != nil {
			return nil, err
		}
		out := NewConstant(present)
		out.Guards().Add(g)
		return propagateGuards(out, m), nil

	case DictGetItem:
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.__getitem__ arity", m.kind)
		}
		name, present, g, err := m.containsHelper(tx, args[0])
		if err != nil {
			return nil, err
		}
		if !present {
			// the negative guard stays recorded on the session
			return nil, keyMissingf("%s[%q]", m.kind, name)
		}
		return m.wrapModule(tx, name, g)

	case DictGet:
		if len(args) < 1 || len(args) > 2 || len(kwargs) != 0 {
			return nil, unsupportedf("%s.get arity", m.kind)
		}
		name, present, g, err := m.containsHelper(tx, args[0])
		if err != nil {
			return nil, err
		}
		if present {
			return m.wrapModule(tx, name, g)
		}
		if len(args) == 2 {
			args[1].Guards().Add(g)
			return propagateGuards(args[1], m), nil
		}
		out := NewConstant(nil)
		out.Guards().Add(g)
		return propagateGuards(out, m), nil

	default:
		if tx.Options().StrictMode {
			return nil, unsupportedf("%s.%s in strict mode", m.kind, op)
		}
		tx.Logger().Debugf("module table snapshot fallback for %s", op)
		snap, err := m.snapshot(tx)
		if err != nil {
			return nil, err
		}
		return snap.CallMethod(tx, method, args, kwargs)
	}
}

// snapshot captures the whole live table as a plain const-map, each module
// wrapped under its subscript source. The fallback for operations the live
// view does not answer directly.
func (m *ModuleTableVariable) snapshot(tx Tracer) (*ConstMapVariable, error) {
	entries := make([]Entry, 0, m.registry.Len())
	for _, name := range m.registry.Names() {
		mod, ok := m.registry.Lookup(name)
		if !ok {
			continue
		}
		k := fieldKey(name)
		v, err := tx.Wrap(mod, GetItemSource{Base: m.source, Key: k})
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	snap := NewConstMap(hostrt.PlainDictClass, entries)
	snap.source = m.source
	snap.guards.Union(m.guards)
	return snap, nil
}
