// Package fixture loads guest-value descriptions from YAML. A fixture
// declares guest classes and a named set of live values built against
// them; the inspection tools wrap these values to drive trace sessions
// without a real guest frame.
package fixture

import (
	"fmt"
	"os"
	"strings"

	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"

	"github.com/symflow/symflow/hostrt"
)

// Fixture is one decoded fixture document.
type Fixture struct {
	// Classes holds the declared guest classes by name.
	Classes map[string]*hostrt.Class
	// Values holds the root values in document order.
	Values *sequencedmap.Map[string, any]
}

// Names returns the root value names in document order.
func (f *Fixture) Names() []string {
	names := make([]string, 0, f.Values.Len())
	for name := range f.Values.All() {
		names = append(names, name)
	}
	return names
}

// Value returns one root value by name.
func (f *Fixture) Value(name string) (any, bool) {
	return f.Values.Get(name)
}

// sampleDoc is the built-in demonstration fixture: one value of each
// common guest shape.
const sampleDoc = `
classes:
  ModelOutput:
    kind: record
    fields:
      - logits
      - name: loss
        default: null
values:
  state:
    lr: 0.01
    steps: 100
  schedule: !ordered
    warmup: 10
    decay: 90
  out: !record:ModelOutput
    logits: 7
  shape: [2, 3]
`

// Sample returns the built-in demonstration fixture.
func Sample() *Fixture {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		panic(err)
	}
	return f
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture document. The document is a mapping with an
// optional "classes" section and a "values" section. Values are walked as
// raw nodes rather than decoded into Go maps so that mapping order
// survives.
func Parse(data []byte) (*Fixture, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty fixture document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fixture root must be a mapping, got %s", kindName(root.Kind))
	}

	f := &Fixture{
		Classes: make(map[string]*hostrt.Class),
		Values:  sequencedmap.New[string, any](),
	}

	var valuesNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "classes":
			if err := f.parseClasses(val); err != nil {
				return nil, err
			}
		case "values":
			// Classes may be declared below the values that use them,
			// so defer value decoding until the whole root is walked.
			valuesNode = val
		default:
			return nil, fmt.Errorf("unknown fixture section %q", key.Value)
		}
	}
	if valuesNode == nil {
		return nil, fmt.Errorf("fixture has no values section")
	}
	if err := f.parseValues(valuesNode); err != nil {
		return nil, err
	}
	return f, nil
}

// classSpec is the declared shape of one guest class.
type classSpec struct {
	Kind     string      `yaml:"kind"`
	Init     bool        `yaml:"init"`
	PostInit bool        `yaml:"post_init"`
	Fields   []yaml.Node `yaml:"fields"`
}

var classKinds = map[string]hostrt.ClassKind{
	"opaque":           hostrt.KindOpaque,
	"dict":             hostrt.KindPlainDict,
	"ordered":          hostrt.KindOrderedDict,
	"record":           hostrt.KindRecord,
	"record_keep_none": hostrt.KindRecordKeepNone,
	"config":           hostrt.KindConfig,
}

func (f *Fixture) parseClasses(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("classes must be a mapping, got %s", kindName(node.Kind))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var spec classSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
		kind, ok := classKinds[spec.Kind]
		if !ok {
			return fmt.Errorf("class %s: unknown kind %q", name, spec.Kind)
		}
		cls := &hostrt.Class{
			Name:          name,
			Kind:          kind,
			HasCustomInit: spec.Init,
			HasPostInit:   spec.PostInit,
		}
		for _, fn := range spec.Fields {
			field, err := parseField(&fn)
			if err != nil {
				return fmt.Errorf("class %s: %w", name, err)
			}
			cls.Fields = append(cls.Fields, field)
		}
		f.Classes[name] = cls
	}
	return nil
}

// parseField accepts either a bare field name or a mapping with a name and
// an optional default. A present default key marks the field defaulted even
// when the default is null.
func parseField(node *yaml.Node) (hostrt.Field, error) {
	if node.Kind == yaml.ScalarNode {
		return hostrt.Field{Name: node.Value}, nil
	}
	if node.Kind != yaml.MappingNode {
		return hostrt.Field{}, fmt.Errorf("field must be a name or a mapping, got %s", kindName(node.Kind))
	}
	var field hostrt.Field
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			field.Name = val.Value
		case "default":
			def, err := decodeValue(val, nil)
			if err != nil {
				return hostrt.Field{}, err
			}
			field.HasDefault = true
			field.Default = def
		default:
			return hostrt.Field{}, fmt.Errorf("unknown field key %q", key.Value)
		}
	}
	if field.Name == "" {
		return hostrt.Field{}, fmt.Errorf("field has no name")
	}
	return field, nil
}

func (f *Fixture) parseValues(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("values must be a mapping, got %s", kindName(node.Kind))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		v, err := decodeValue(node.Content[i+1], f.Classes)
		if err != nil {
			return fmt.Errorf("value %s: %w", name, err)
		}
		f.Values.Set(name, v)
	}
	return nil
}

// decodeValue builds the live guest value a node describes. Decoding is
// tag-directed: plain mappings become guest dicts, sequences become tuples,
// scalars become literals, and the local tags pick the remaining shapes
// (!ordered, !record:<class>, !symbol).
func decodeValue(node *yaml.Node, classes map[string]*hostrt.Class) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeValue(node.Alias, classes)
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.SequenceNode:
		elems := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			e, err := decodeValue(c, classes)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return hostrt.NewTuple(elems...), nil
	case yaml.MappingNode:
		switch {
		case node.Tag == "!!map":
			return decodeDict(node, classes, nil)
		case node.Tag == "!ordered":
			return decodeDict(node, classes, hostrt.OrderedDictClass)
		case strings.HasPrefix(node.Tag, "!record:"):
			return decodeObject(node, classes, strings.TrimPrefix(node.Tag, "!record:"))
		default:
			return nil, fmt.Errorf("unknown mapping tag %q", node.Tag)
		}
	default:
		return nil, fmt.Errorf("cannot decode %s node", kindName(node.Kind))
	}
}

func decodeScalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, err
		}
		return i, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!str":
		return node.Value, nil
	case "!symbol":
		return hostrt.Symbol{Name: node.Value}, nil
	default:
		return nil, fmt.Errorf("unknown scalar tag %q", node.Tag)
	}
}

// decodeDict builds a guest mapping. Keys decode through the same walker,
// so tuple and symbol keys work; entry order is node order.
func decodeDict(node *yaml.Node, classes map[string]*hostrt.Class, class *hostrt.Class) (*hostrt.Dict, error) {
	d := hostrt.NewDict(class)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, err := decodeValue(node.Content[i], classes)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(node.Content[i+1], classes)
		if err != nil {
			return nil, err
		}
		d.Set(k, v)
	}
	return d, nil
}

// decodeObject builds an instance of a declared class with the mapping
// pairs as attributes. Config and record instances share this shape.
func decodeObject(node *yaml.Node, classes map[string]*hostrt.Class, className string) (*hostrt.Object, error) {
	cls, ok := classes[className]
	if !ok {
		return nil, fmt.Errorf("record tag names undeclared class %q", className)
	}
	obj := hostrt.NewObject(cls)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode || key.Tag != "!!str" {
			return nil, fmt.Errorf("record %s: attribute names must be strings", className)
		}
		v, err := decodeValue(node.Content[i+1], classes)
		if err != nil {
			return nil, err
		}
		obj.SetAttr(key.Value, v)
	}
	return obj, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
