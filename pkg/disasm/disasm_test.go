package disasm

import (
	"strings"
	"testing"

	"github.com/symflow/symflow"
	"github.com/symflow/symflow/hostrt"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		prog symflow.Program
		want []string
	}{
		{
			name: "aligned_columns",
			prog: symflow.Program{
				{Op: symflow.OpLoadConst, Arg: "a"},
				{Op: symflow.OpLoadConst, Arg: int64(1)},
				{Op: symflow.OpBuildMap, Arg: 2},
			},
			want: []string{
				`  0  load_const  "a"`,
				`  1  load_const  1`,
				`  2  build_map   2`,
			},
		},
		{
			name: "guest_literals",
			prog: symflow.Program{
				{Op: symflow.OpLoadConst, Arg: nil},
				{Op: symflow.OpLoadConst, Arg: true},
			},
			want: []string{
				`  0  load_const  None`,
				`  1  load_const  True`,
			},
		},
		{
			name: "name_operands_stay_bare",
			prog: symflow.Program{
				{Op: symflow.OpLoadLocal, Arg: "frame"},
				{Op: symflow.OpLoadAttr, Arg: "state"},
				{Op: symflow.OpSubscr},
			},
			want: []string{
				`  0  load_local  frame`,
				`  1  load_attr   state`,
				`  2  subscr`,
			},
		},
		{
			name: "keyword_call",
			prog: symflow.Program{
				{Op: symflow.OpLoadConst, Arg: &hostrt.Class{Name: "ModelOutput"}},
				{Op: symflow.OpCallFunctionKW, Arg: symflow.KwCall{Argc: 1, Names: []string{"a"}}},
			},
			want: []string{
				`  0  load_const  ModelOutput`,
				`  1  call_kw     1 [a]`,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Render(tc.prog)
			lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
			if len(lines) != len(tc.want) {
				t.Fatalf("Expected %d lines, got %d:\n%s", len(tc.want), len(lines), got)
			}
			for i, want := range tc.want {
				if lines[i] != want {
					t.Errorf("line %d:\nExpected %q\nGot      %q", i, want, lines[i])
				}
			}
		})
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("Expected empty output, got %q", got)
	}
}
