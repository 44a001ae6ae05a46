// Package hostrt models the host-process side of a trace: live guest values,
// their classes, callable descriptors, and the process-global module registry.
// The symbolic layer in mapvar wraps these values; nothing here is symbolic.
package hostrt

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// ObjectID is the identity token of a live guest value. Two values alias iff
// their IDs are equal.
type ObjectID uint64

var idCounter atomic.Uint64

// NextID returns a process-unique identity token.
func NextID() ObjectID {
	return ObjectID(idCounter.Add(1))
}

func (id ObjectID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Symbol is an interned host token, such as a dtype or device tag. Symbols
// compare by name and are valid mapping keys.
type Symbol struct {
	Name string
}

func (s Symbol) String() string {
	return s.Name
}

// NormalizeLiteral maps a Go value onto the canonical literal domain
// (nil, bool, int64, float64, string, Symbol). The second result reports
// whether the value is a literal at all.
func NormalizeLiteral(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case bool, int64, float64, string, Symbol:
		return t, true
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float32:
		return float64(t), true
	default:
		return nil, false
	}
}

// IsLiteral reports whether v belongs to the literal domain.
func IsLiteral(v any) bool {
	_, ok := NormalizeLiteral(v)
	return ok
}

// CanonicalKey renders a guest value as a deterministic type-tagged string.
// Literals and tuples encode structurally, so equal values collide; identity
// values (objects, dicts, funcs) encode by ID. The encoding is what ordered
// item tables key on.
func CanonicalKey(v any) string {
	if lit, ok := NormalizeLiteral(v); ok {
		switch t := lit.(type) {
		case nil:
			return "n:"
		case bool:
			return "b:" + strconv.FormatBool(t)
		case int64:
			return "i:" + strconv.FormatInt(t, 10)
		case float64:
			return "f:" + strconv.FormatFloat(t, 'g', -1, 64)
		case string:
			return "s:" + strconv.Quote(t)
		case Symbol:
			return "y:" + strconv.Quote(t.Name)
		}
	}
	switch t := v.(type) {
	case *Tuple:
		elems := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = CanonicalKey(e)
		}
		return "t:(" + strings.Join(elems, ",") + ")"
	case *Object:
		return "o:" + t.ID.String()
	case *Dict:
		return "d:" + t.ID.String()
	case *Func:
		return "c:" + t.ID.String()
	default:
		return fmt.Sprintf("x:%T:%v", v, v)
	}
}

// IdentityOf returns the identity token of a live value, if it carries one.
func IdentityOf(v any) (ObjectID, bool) {
	switch t := v.(type) {
	case *Tuple:
		return t.ID, true
	case *Dict:
		return t.ID, true
	case *Object:
		return t.ID, true
	case *Func:
		return t.ID, true
	default:
		return 0, false
	}
}

// Tuple is a live guest tuple. Element order is guest order.
type Tuple struct {
	ID    ObjectID
	Elems []any
}

// NewTuple creates a live tuple with a fresh identity.
func NewTuple(elems ...any) *Tuple {
	return &Tuple{ID: NextID(), Elems: elems}
}

// DictEntry is one mapping slot: the original guest key and its value.
type DictEntry struct {
	Key   any
	Value any
}

// Dict is a live guest mapping instance with insertion-ordered entries.
// Factory is set only on default-factory mapping instances.
type Dict struct {
	ID      ObjectID
	Class   *Class
	Factory *Func
	entries *sequencedmap.Map[string, DictEntry]
}

// NewDict creates a live mapping of the given class. A nil class means the
// plain builtin mapping class.
func NewDict(class *Class) *Dict {
	if class == nil {
		class = PlainDictClass
	}
	return &Dict{
		ID:      NextID(),
		Class:   class,
		entries: sequencedmap.New[string, DictEntry](),
	}
}

// Set upserts an entry, appending on first insert.
func (d *Dict) Set(key, value any) {
	d.entries.Set(CanonicalKey(key), DictEntry{Key: key, Value: value})
}

// Get looks an entry up by key value.
func (d *Dict) Get(key any) (any, bool) {
	e, ok := d.entries.Get(CanonicalKey(key))
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.entries.Len()
}

// Items returns the entries in insertion order.
func (d *Dict) Items() []DictEntry {
	items := make([]DictEntry, 0, d.entries.Len())
	for _, e := range d.entries.All() {
		items = append(items, e)
	}
	return items
}

// Object is a live opaque guest instance: attributes plus class identity.
type Object struct {
	ID    ObjectID
	Class *Class
	attrs map[string]any
	order []string
}

// NewObject creates an instance of class with a fresh identity.
func NewObject(class *Class) *Object {
	return &Object{
		ID:    NextID(),
		Class: class,
		attrs: make(map[string]any),
	}
}

// SetAttr sets an attribute, recording first-set order.
func (o *Object) SetAttr(name string, v any) {
	if _, ok := o.attrs[name]; !ok {
		o.order = append(o.order, name)
	}
	o.attrs[name] = v
}

// Attr returns an attribute value and whether it is present.
func (o *Object) Attr(name string) (any, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

// HasAttr reports attribute presence.
func (o *Object) HasAttr(name string) bool {
	_, ok := o.attrs[name]
	return ok
}

// AttrNames returns attribute names in first-set order.
func (o *Object) AttrNames() []string {
	return o.order
}

// BuiltinKind distinguishes the allow-listed pure constructor builtins from
// user-defined callables.
type BuiltinKind int

const (
	BuiltinNone BuiltinKind = iota
	BuiltinList
	BuiltinTuple
	BuiltinDict
)

func (k BuiltinKind) String() string {
	switch k {
	case BuiltinNone:
		return "none"
	case BuiltinList:
		return "list"
	case BuiltinTuple:
		return "tuple"
	case BuiltinDict:
		return "dict"
	default:
		panic(k)
	}
}

// Func is a live guest callable descriptor. Builtin is BuiltinNone for user
// functions; user function bodies are opaque to this package and run through
// the tracer's inline executor.
type Func struct {
	ID      ObjectID
	Name    string
	Builtin BuiltinKind
}

// NewFunc creates a user function descriptor.
func NewFunc(name string) *Func {
	return &Func{ID: NextID(), Name: name}
}

// NewBuiltin creates one of the constructor builtins.
func NewBuiltin(kind BuiltinKind) *Func {
	return &Func{ID: NextID(), Name: kind.String(), Builtin: kind}
}

// ClassKind is the closed classification of guest classes the symbolic layer
// recognizes. Wrap-time classification maps descriptors to variable variants
// through this enum, never through ad-hoc subclass checks.
type ClassKind int

const (
	// KindOpaque is any class the mapping layer does not model.
	KindOpaque ClassKind = iota
	// KindPlainDict is the builtin mapping class.
	KindPlainDict
	// KindOrderedDict is the explicitly-ordered mapping class; it
	// reconstructs through the collections constructor.
	KindOrderedDict
	// KindRecord is a schema-bearing record class that drops fields whose
	// value is the none literal (absent and none are indistinguishable
	// after reconstruction).
	KindRecord
	// KindRecordKeepNone is a schema-bearing record class that keeps
	// explicit none fields.
	KindRecordKeepNone
	// KindConfig is a live attribute-bag class read through the host, never
	// rebuilt.
	KindConfig
)

func (k ClassKind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindPlainDict:
		return "dict"
	case KindOrderedDict:
		return "ordered_dict"
	case KindRecord:
		return "record"
	case KindRecordKeepNone:
		return "record_keep_none"
	case KindConfig:
		return "config"
	default:
		panic(k)
	}
}

// Field is one schema slot of a record class. Slice order in Class.Fields is
// schema order.
type Field struct {
	Name       string
	HasDefault bool
	Default    any
}

// Class describes a guest class: its mapping classification, record schema,
// and method overrides. Overrides lists only methods the class itself
// defines; methods inherited from the base mapping classes are absent.
type Class struct {
	Name      string
	Kind      ClassKind
	Fields    []Field
	Overrides map[string]*Func

	// HasCustomInit and HasPostInit gate customizable-record eligibility.
	HasCustomInit bool
	HasPostInit   bool

	patched atomic.Bool
}

// PlainDictClass is the builtin mapping class.
var PlainDictClass = &Class{Name: "dict", Kind: KindPlainDict}

// OrderedDictClass is the collections ordered mapping class.
var OrderedDictClass = &Class{Name: "OrderedDict", Kind: KindOrderedDict}

// DefaultDictClass is the collections default-factory mapping class. It
// rebuilds as a plain mapping; the factory is a capture-time detail.
var DefaultDictClass = &Class{Name: "defaultdict", Kind: KindPlainDict}

// FieldNames returns the schema field names in schema order.
func (c *Class) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldByName finds a schema field.
func (c *Class) FieldByName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Override returns the class's own definition of a method, if any.
func (c *Class) Override(name string) (*Func, bool) {
	if c.Overrides == nil {
		return nil, false
	}
	fn, ok := c.Overrides[name]
	return fn, ok
}

// EnsurePatched marks the class's construction helpers as exempt from
// tracing. The mark latches: the first call per class does the work and
// returns true, every later call returns false.
func EnsurePatched(c *Class) bool {
	return c.patched.CompareAndSwap(false, true)
}
