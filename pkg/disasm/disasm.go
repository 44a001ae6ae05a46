// Package disasm renders emitted instruction listings for humans. The
// opcode column is padded to the widest mnemonic in the listing so
// arguments line up.
package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

// Render formats a program as an indexed, column-aligned listing, one
// instruction per line.
func Render(p symflow.Program) string {
	width := 0
	for _, c := range p {
		if w := runewidth.StringWidth(c.Op.String()); w > width {
			width = w
		}
	}
	var b strings.Builder
	for i, c := range p {
		arg := argString(c)
		if arg == "" {
			fmt.Fprintf(&b, "%3d  %s\n", i, c.Op)
			continue
		}
		fmt.Fprintf(&b, "%3d  %s  %s\n", i, runewidth.FillRight(c.Op.String(), width), arg)
	}
	return b.String()
}

// argString renders one instruction argument. Constant operands render as
// guest literals, so string constants stay distinguishable from the bare
// name operands of the load opcodes.
func argString(c symflow.Instruction) string {
	if c.Op == symflow.OpLoadConst {
		return literal(c.Arg)
	}
	switch t := c.Arg.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(t)
	case *hostrt.Class:
		return t.Name
	default:
		return fmt.Sprint(t)
	}
}
