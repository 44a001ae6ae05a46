package mapvar

import (
	"github.com/symflow/symflow/hostrt"
)

// ConfigVariable wraps a live configuration object: an attribute bag whose
// values are all literals and never change during a trace. Reads come
// straight from the live object as constants; there is no mapping surface
// and no rebuild (a source-backed reload is the only reconstruction).
type ConfigVariable struct {
	base
	obj *hostrt.Object
}

// IsConfigClass reports whether a guest class takes the config path.
func IsConfigClass(class *hostrt.Class) bool {
	return class != nil && class.Kind == hostrt.KindConfig
}

// NewConfigVariable wraps a live config object.
func NewConfigVariable(obj *hostrt.Object, source Source) (*ConfigVariable, error) {
	if obj == nil {
		return nil, unsupportedf("nil config object")
	}
	if !IsConfigClass(obj.Class) {
		return nil, unsupportedf("%s is not a config class", obj.Class.Name)
	}
	v := &ConfigVariable{base: newBase(KindConfig), obj: obj}
	v.source = source
	return v, nil
}

// Live returns the wrapped config object.
func (c *ConfigVariable) Live() *hostrt.Object {
	return c.obj
}

// VarGetattr reads an attribute off the live object. Config attributes are
// literal-only; a non-literal value breaks the class contract.
func (c *ConfigVariable) VarGetattr(tx Tracer, name string) (Variable, error) {
	live, ok := c.obj.Attr(name)
	if !ok {
		return nil, unsupportedf("config %s has no attribute %s", c.obj.Class.Name, name)
	}
	if !hostrt.IsLiteral(live) {
		return nil, unsupportedf("config %s.%s is not a literal", c.obj.Class.Name, name)
	}
	return propagateGuards(NewConstant(live), c), nil
}

// HasAttr answers the probe from the live object.
func (c *ConfigVariable) HasAttr(tx Tracer, name string) (Variable, error) {
	return propagateGuards(NewConstant(c.obj.HasAttr(name)), c), nil
}
