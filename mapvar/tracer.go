package mapvar

import (
	"github.com/google/uuid"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"github.com/symflow/symflow/hostrt"
)

// Tracer is the protocol variables call back into during dispatch. It is
// the seam between the variable family and the session that owns them.
type Tracer interface {
	// ReplaceAll substitutes old for new across every tracked variable,
	// rebuilding containers that reference old. It returns new.
	ReplaceAll(old, new Variable) Variable

	// StoreGlobalWeakRef records a produced weak-ref global so emitted
	// programs can dereference it. Idempotent per name.
	StoreGlobalWeakRef(name string, live any)

	// InstallGuard records a validity predicate on the session ledger.
	InstallGuard(g Guard)

	// InlineUserFunction symbolically executes a guest callable.
	InlineUserFunction(fn Variable, args []Variable, kwargs map[string]Variable) (Variable, error)

	// Wrap builds the symbolic variable for one live guest value.
	Wrap(live any, src Source) (Variable, error)

	// Registry exposes the live component table.
	Registry() *hostrt.Registry

	Logger() Logger
	Options() Options
}

// Trace is a concrete trace session: the variable table, the produced
// weak-ref registry, and the session guard ledger. Sessions are
// single-goroutine; callers serialize access.
type Trace struct {
	// ID identifies the session in logs and dumps.
	ID string

	opts      Options
	log       Logger
	vars      *sequencedmap.Map[string, Variable]
	weakRefs  *sequencedmap.Map[string, any]
	installed *GuardSet
	registry  *hostrt.Registry
	failure   error
}

var _ Tracer = (*Trace)(nil)

// NewTrace starts a session against the process-global component registry.
func NewTrace(opts ...Options) *Trace {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	id := uuid.NewString()
	return &Trace{
		ID:        id,
		opts:      opt,
		log:       opt.logger().With(map[string]any{"trace": id[:8]}),
		vars:      sequencedmap.New[string, Variable](),
		weakRefs:  sequencedmap.New[string, any](),
		installed: NewGuardSet(),
		registry:  hostrt.Modules(),
	}
}

// UseRegistry points the session at a different component registry.
func (t *Trace) UseRegistry(reg *hostrt.Registry) {
	if reg != nil {
		t.registry = reg
	}
}

func (t *Trace) Logger() Logger             { return t.log }
func (t *Trace) Options() Options           { return t.opts }
func (t *Trace) Registry() *hostrt.Registry { return t.registry }

// Abandoned returns the first fatal error the session hit, nil while live.
func (t *Trace) Abandoned() error {
	return t.failure
}

func (t *Trace) abandon(err error) error {
	if t.failure == nil {
		t.failure = err
		t.log.Warnf("abandoning trace: %v", err)
	}
	return t.failure
}

// WrapRoot wraps a live value rooted at a guest frame slot and tracks it
// under that name.
func (t *Trace) WrapRoot(name string, live any) (Variable, error) {
	if t.failure != nil {
		return nil, t.failure
	}
	v, err := Wrap(t, live, LocalSource{Name: name})
	if err != nil {
		return nil, t.abandon(err)
	}
	t.vars.Set(name, v)
	t.log.Debugf("root %s = %s", name, summarizeVariable(v))
	return v, nil
}

// Bind tracks an already-built variable under a name.
func (t *Trace) Bind(name string, v Variable) {
	t.vars.Set(name, v)
}

// Var returns the variable currently tracked under name.
func (t *Trace) Var(name string) (Variable, bool) {
	return t.vars.Get(name)
}

// VarNames returns the tracked names in binding order.
func (t *Trace) VarNames() []string {
	names := make([]string, 0, t.vars.Len())
	for name := range t.vars.All() {
		names = append(names, name)
	}
	return names
}

// Dispatch runs one guest method call through the session. An abandoned
// session refuses with its recorded cause; a fatal error from the variable
// abandons the session.
func (t *Trace) Dispatch(v Variable, method string, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if t.failure != nil {
		return nil, t.failure
	}
	out, err := v.CallMethod(t, method, args, kwargs)
	if err != nil {
		return nil, t.abandon(err)
	}
	return out, nil
}

// ReplaceAll is the single mutation channel: the successor takes the old
// variable's place everywhere, and containers referencing the old identity
// are rebuilt around the substitution.
func (t *Trace) ReplaceAll(old, new Variable) Variable {
	t.log.Debugf("replace %s -> %s", summarizeVariable(old), summarizeVariable(new))
	type rebind struct {
		name string
		v    Variable
	}
	var updates []rebind
	for name, v := range t.vars.All() {
		if rebuilt, changed := substitute(v, old, new); changed {
			updates = append(updates, rebind{name: name, v: rebuilt})
		}
	}
	for _, u := range updates {
		t.vars.Set(u.name, u.v)
	}
	return new
}

// StoreGlobalWeakRef records one produced weak-ref global.
func (t *Trace) StoreGlobalWeakRef(name string, live any) {
	if _, ok := t.weakRefs.Get(name); ok {
		return
	}
	t.weakRefs.Set(name, live)
	t.log.Debugf("weak ref %s", name)
}

// WeakRef resolves a produced weak-ref global to its live value.
func (t *Trace) WeakRef(name string) (any, bool) {
	return t.weakRefs.Get(name)
}

// WeakRefNames returns the produced weak-ref names in creation order.
func (t *Trace) WeakRefNames() []string {
	names := make([]string, 0, t.weakRefs.Len())
	for name := range t.weakRefs.All() {
		names = append(names, name)
	}
	return names
}

// InstallGuard records a predicate on the session ledger.
func (t *Trace) InstallGuard(g Guard) {
	t.installed.Add(g)
	t.log.Debugf("guard %s", g)
}

// SessionGuards returns the full ledger: directly installed guards plus the
// accumulated guards of every tracked variable, in first-recorded order.
func (t *Trace) SessionGuards() *GuardSet {
	out := NewGuardSet()
	out.Union(t.installed)
	for _, v := range t.vars.All() {
		out.Union(v.Guards())
	}
	return out
}

// InlineUserFunction delegates to the configured inline executor.
func (t *Trace) InlineUserFunction(fn Variable, args []Variable, kwargs map[string]Variable) (Variable, error) {
	if t.opts.InlineFunc == nil {
		return nil, unsupportedf("no inline executor configured")
	}
	return t.opts.InlineFunc(t, fn, args, kwargs)
}

// Wrap builds the symbolic variable for one live value.
func (t *Trace) Wrap(live any, src Source) (Variable, error) {
	return Wrap(t, live, src)
}

// inherit copies the non-child bookkeeping of a replaced container onto its
// rebuilt successor: accumulated guards, provenance, mutability token, and
// the containment tokens the fresh construction could not see.
func (b *base) inherit(from *base) {
	b.guards.Union(from.guards)
	b.source = from.source
	b.mutable = from.mutable
	b.contains = b.contains.union(from.contains)
}

// substitute rebuilds v with old replaced by new wherever it appears,
// reporting whether anything changed.
func substitute(v, old, new Variable) (Variable, bool) {
	if v == old {
		return new, true
	}
	switch c := v.(type) {
	case *TupleVariable:
		items, changed := substituteAll(c.items, old, new)
		if !changed {
			return v, false
		}
		out := NewTuple(items...)
		out.inherit(&c.base)
		return out, true
	case *ListVariable:
		items, changed := substituteAll(c.items, old, new)
		if !changed {
			return v, false
		}
		out := NewList(items...)
		out.inherit(&c.base)
		return out, true
	case *SetVariable:
		items, changed := substituteAll(c.items, old, new)
		if !changed {
			return v, false
		}
		out := NewSet(items...)
		out.inherit(&c.base)
		return out, true
	case *ConstMapVariable:
		entries, changed := substituteEntries(c.Entries(), old, new)
		if !changed {
			return v, false
		}
		out := NewConstMap(c.class, entries)
		out.inherit(&c.base)
		return out, true
	case *DefaultMapVariable:
		factory, fchanged := c.factory, false
		if c.factory != nil {
			factory, fchanged = substitute(c.factory, old, new)
		}
		entries, echanged := substituteEntries(c.Entries(), old, new)
		if !fchanged && !echanged {
			return v, false
		}
		out := NewDefaultMap(factory, c.class, entries)
		out.inherit(&c.base)
		return out, true
	case *RecordVariable:
		entries, changed := substituteEntries(c.Entries(), old, new)
		if !changed {
			return v, false
		}
		out := newRecord(c.class, entries)
		out.inherit(&c.base)
		return out, true
	case *CustomRecordVariable:
		entries, changed := substituteEntries(c.Entries(), old, new)
		if !changed {
			return v, false
		}
		out := newCustomRecord(c.class, entries)
		out.inherit(&c.base)
		return out, true
	default:
		return v, false
	}
}

func substituteAll(items []Variable, old, new Variable) ([]Variable, bool) {
	changed := false
	out := make([]Variable, len(items))
	for i, it := range items {
		nv, c := substitute(it, old, new)
		out[i] = nv
		changed = changed || c
	}
	if !changed {
		return items, false
	}
	return out, true
}

func substituteEntries(entries []Entry, old, new Variable) ([]Entry, bool) {
	changed := false
	out := make([]Entry, len(entries))
	for i, e := range entries {
		nv, c := substitute(e.Value, old, new)
		out[i] = Entry{Key: e.Key, Value: nv}
		changed = changed || c
	}
	if !changed {
		return entries, false
	}
	return out, true
}
