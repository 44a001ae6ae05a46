package mapvar

import (
	"github.com/symflow/symflow"
)

// Source describes how a wrapped value was reached from a trace root. A
// source both renders for diagnostics and re-emits the load sequence that
// fetches its value again at rebuild time.
type Source interface {
	String() string
	Reconstruct(cg symflow.Codegen) error
}

// LocalSource roots a chain at a guest frame slot.
type LocalSource struct {
	Name string
}

func (s LocalSource) String() string {
	return "local[" + s.Name + "]"
}

func (s LocalSource) Reconstruct(cg symflow.Codegen) error {
	cg.LoadLocal(s.Name)
	return nil
}

// AttrSource is attribute access off a base source.
type AttrSource struct {
	Base Source
	Attr string
}

func (s AttrSource) String() string {
	return s.Base.String() + "." + s.Attr
}

func (s AttrSource) Reconstruct(cg symflow.Codegen) error {
	if err := s.Base.Reconstruct(cg); err != nil {
		return err
	}
	cg.LoadAttr(s.Attr)
	return nil
}

// GetItemSource is subscript access off a base source with a normalized key.
type GetItemSource struct {
	Base Source
	Key  Key
}

func (s GetItemSource) String() string {
	return s.Base.String() + "[" + s.Key.Summary() + "]"
}

func (s GetItemSource) Reconstruct(cg symflow.Codegen) error {
	if err := s.Base.Reconstruct(cg); err != nil {
		return err
	}
	if err := s.Key.emit(cg); err != nil {
		return err
	}
	cg.Subscr()
	return nil
}

// GlobalWeakRefSource roots a chain at a weak reference the trace itself
// registered under a produced global binding. Loading dereferences it.
type GlobalWeakRefSource struct {
	Name string
}

func (s GlobalWeakRefSource) String() string {
	return "globalref[" + s.Name + "]"
}

func (s GlobalWeakRefSource) Reconstruct(cg symflow.Codegen) error {
	cg.LoadGlobal(s.Name, true)
	cg.Call(0)
	return nil
}

// TableSource roots a chain at a distinguished live host table reached as a
// module attribute.
type TableSource struct {
	Module string
	Attr   string
}

func (s TableSource) String() string {
	return s.Module + "." + s.Attr
}

func (s TableSource) Reconstruct(cg symflow.Codegen) error {
	cg.LoadImportedModule(s.Module, s.Attr)
	return nil
}
