package symflow

// Codegen receives the instructions a symbolic variable emits to rebuild its
// guest value. Implementations append in order; nothing is executed here.
type Codegen interface {
	// LoadConst pushes a host literal.
	LoadConst(v any)

	// LoadLocal pushes the value of a guest frame slot.
	LoadLocal(name string)

	// LoadGlobal pushes the value of a process-global binding. When declare
	// is set the binding is also registered for the rebuild preamble, for
	// globals the trace itself produces.
	LoadGlobal(name string, declare bool)

	// LoadAttr pops an object and pushes its named attribute.
	LoadAttr(name string)

	// Subscr pops a key and a container and pushes container[key].
	Subscr()

	// LoadImportedModule pushes attr of an imported host module.
	LoadImportedModule(module, attr string)

	// Call pops argc arguments plus the callee and pushes the result.
	Call(argc int)

	// CallKw is Call with the trailing arguments passed by keyword.
	CallKw(argc int, names []string)

	BuildMap(count int)
	BuildTuple(count int)
	BuildList(count int)
	BuildSet(count int)

	// Append emits a raw instruction. Stack effects are still accounted.
	Append(inst Instruction)
}

// Assembler collects emitted instructions into a Program and tracks stack
// depth so callers can size frames. The zero value is ready to use.
type Assembler struct {
	insts   Program
	globals []string

	depth    int
	maxDepth int
}

// NewAssembler creates an assembler with preallocated instruction space.
func NewAssembler() *Assembler {
	return &Assembler{
		insts: make(Program, 0, 64),
	}
}

// Program returns the instructions emitted so far.
func (a *Assembler) Program() Program {
	return a.insts
}

// Globals returns the declared global bindings in declaration order.
func (a *Assembler) Globals() []string {
	return a.globals
}

// MaxDepth returns the highest stack depth any emitted prefix reaches.
func (a *Assembler) MaxDepth() int {
	return a.maxDepth
}

// Depth returns the stack depth after the emitted instructions run.
func (a *Assembler) Depth() int {
	return a.depth
}

func (a *Assembler) LoadConst(v any) {
	a.Append(Instruction{Op: OpLoadConst, Arg: v})
}

func (a *Assembler) LoadGlobal(name string, declare bool) {
	if declare {
		a.declareGlobal(name)
	}
	a.Append(Instruction{Op: OpLoadGlobal, Arg: name})
}

func (a *Assembler) LoadLocal(name string) {
	a.Append(Instruction{Op: OpLoadLocal, Arg: name})
}

func (a *Assembler) LoadAttr(name string) {
	a.Append(Instruction{Op: OpLoadAttr, Arg: name})
}

func (a *Assembler) Subscr() {
	a.Append(Instruction{Op: OpSubscr})
}

func (a *Assembler) LoadImportedModule(module, attr string) {
	a.Append(Instruction{Op: OpLoadModule, Arg: module})
	a.Append(Instruction{Op: OpLoadAttr, Arg: attr})
}

func (a *Assembler) Call(argc int) {
	a.Append(Instruction{Op: OpCallFunction, Arg: argc})
}

func (a *Assembler) CallKw(argc int, names []string) {
	a.Append(Instruction{Op: OpCallFunctionKW, Arg: KwCall{Argc: argc, Names: names}})
}

func (a *Assembler) BuildMap(count int) {
	a.Append(Instruction{Op: OpBuildMap, Arg: count})
}

func (a *Assembler) BuildTuple(count int) {
	a.Append(Instruction{Op: OpBuildTuple, Arg: count})
}

func (a *Assembler) BuildList(count int) {
	a.Append(Instruction{Op: OpBuildList, Arg: count})
}

func (a *Assembler) BuildSet(count int) {
	a.Append(Instruction{Op: OpBuildSet, Arg: count})
}

func (a *Assembler) Append(inst Instruction) {
	a.insts = append(a.insts, inst)
	a.depth += stackEffect(inst)
	if a.depth < 0 {
		panic("assembler stack underflow")
	}
	if a.depth > a.maxDepth {
		a.maxDepth = a.depth
	}
}

func (a *Assembler) declareGlobal(name string) {
	for _, g := range a.globals {
		if g == name {
			return
		}
	}
	a.globals = append(a.globals, name)
}

// stackEffect returns the net stack delta of one instruction.
func stackEffect(inst Instruction) int {
	switch inst.Op {
	case OpNop:
		return 0
	case OpLoadConst, OpLoadLocal, OpLoadGlobal, OpLoadModule:
		return 1
	case OpLoadAttr:
		return 0
	case OpSubscr:
		return -1
	case OpCallFunction:
		return -inst.Arg.(int)
	case OpCallFunctionKW:
		return -inst.Arg.(KwCall).Argc
	case OpBuildMap:
		return 1 - 2*inst.Arg.(int)
	case OpBuildTuple, OpBuildList, OpBuildSet:
		return 1 - inst.Arg.(int)
	default:
		panic(inst.Op)
	}
}
