// Package symflow provides the host-side instruction model used when traced
// guest values are re-materialized by compiled code. Reconstruction emits a
// small stack-oriented instruction set through the Codegen interface; the
// mapvar package builds symbolic variables that know how to emit themselves.
package symflow

import "fmt"

// Instruction is a single emitted cell: an opcode plus its argument payload.
// Arg is nil for opcodes that take no argument.
type Instruction struct {
	Op  Opcode
	Arg any
}

func (c Instruction) String() string {
	if c.Arg == nil {
		return c.Op.String()
	}
	return fmt.Sprintf("%s %v", c.Op, c.Arg)
}

// KwCall is the argument payload of OpCallFunctionKW. Argc counts every
// argument on the stack, positional and keyword; Names labels the trailing
// len(Names) of them.
type KwCall struct {
	Argc  int
	Names []string
}

func (k KwCall) String() string {
	return fmt.Sprintf("%d %v", k.Argc, k.Names)
}

// Program is an emitted instruction listing.
type Program []Instruction

func (p Program) String() string {
	s := ""
	for i, c := range p {
		s += fmt.Sprintf("%3d  %s\n", i, c)
	}
	return s
}

type Opcode int

const (
	OpNop Opcode = iota
	OpLoadConst
	OpLoadLocal
	OpLoadGlobal
	OpLoadModule
	OpLoadAttr
	OpSubscr
	OpCallFunction
	OpCallFunctionKW
	OpBuildMap
	OpBuildTuple
	OpBuildList
	OpBuildSet
)

func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpLoadConst:
		return "load_const"
	case OpLoadLocal:
		return "load_local"
	case OpLoadGlobal:
		return "load_global"
	case OpLoadModule:
		return "load_module"
	case OpLoadAttr:
		return "load_attr"
	case OpSubscr:
		return "subscr"
	case OpCallFunction:
		return "call"
	case OpCallFunctionKW:
		return "call_kw"
	case OpBuildMap:
		return "build_map"
	case OpBuildTuple:
		return "build_tuple"
	case OpBuildList:
		return "build_list"
	case OpBuildSet:
		return "build_set"
	default:
		panic(op)
	}
}
