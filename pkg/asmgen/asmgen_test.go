package asmgen

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/lexer"
	"github.com/minic-lang/minic/pkg/parser"
	"github.com/minic-lang/minic/pkg/tac"
	"github.com/minic-lang/minic/pkg/tacgen"
)

// compile lowers source to TAC (without optimization) and runs code
// generation, returning the assembly text and the builder for symbol
// inspection.
func compile(t *testing.T, src string) (string, *tacgen.Generator) {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	g := tacgen.New(io.Discard)
	tacgen.NewTranslator(g).Translate(prog)

	var buf bytes.Buffer
	ag := New(&buf, io.Discard, g.First(), g.Globals())
	if err := ag.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return buf.String(), g
}

func findVar(g *tacgen.Generator, name string) *tac.Sym {
	for cur := g.First(); cur != nil; cur = cur.Next {
		if (cur.Op == tac.Var || cur.Op == tac.Formal) && cur.A.Name == name {
			return cur.A
		}
	}
	return nil
}

func mustIndex(t *testing.T, text, sub string) int {
	t.Helper()
	i := strings.Index(text, sub)
	if i < 0 {
		t.Fatalf("missing %q in:\n%s", sub, text)
	}
	return i
}

func TestSimpleProgram(t *testing.T) {
	text, _ := compile(t, `int main() { int a; a = 7; output a; }`)

	for _, want := range []string{
		"\tLOD R2,STACK\n",
		"main:\n",
		"\tLOD R5,7\n",
		"\tSTO (R2+8),R5\n",
		"\tLOD R15,R5\n",
		"\tOTI\n",
		"EXIT:\n",
		"\tEND\n",
		"STATIC:\n",
		"\tDBN 0,0\n",
		"STACK:\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestNoJumpToMainWhenFirst(t *testing.T) {
	text, _ := compile(t, `int main() { output 1; }`)
	if strings.Contains(text, "JMP main") {
		t.Error("should not jump to main when main is the first function")
	}
}

func TestJumpToMainWhenNotFirst(t *testing.T) {
	text, _ := compile(t, `int f(void) { return 1; }
		int main() { output f(); }`)
	if !strings.Contains(text, "\tJMP main\n") {
		t.Errorf("missing jump to main in:\n%s", text)
	}
}

func TestFrameOffsets(t *testing.T) {
	_, g := compile(t, `int add(int a, int b) { int c; c = a + b; return c; }
		int main() { output add(2, 3); }`)

	a := findVar(g, "a")
	b := findVar(g, "b")
	c := findVar(g, "c")
	if a == nil || b == nil || c == nil {
		t.Fatal("missing symbols")
	}

	if a.Offset != -4 {
		t.Errorf("first formal offset = %d, want -4", a.Offset)
	}
	if b.Offset != -8 {
		t.Errorf("second formal offset = %d, want -8", b.Offset)
	}
	if a.Scope != tac.Local || b.Scope != tac.Local {
		t.Error("formals should be local")
	}
	if c.Offset != 8 {
		t.Errorf("first local offset = %d, want 8", c.Offset)
	}
}

func TestGlobalOffsets(t *testing.T) {
	_, g := compile(t, `int x;
		int y;
		int main() { x = 1; y = 2; output x; }`)

	x := findVar(g, "x")
	y := findVar(g, "y")
	if x.Offset != 0 || y.Offset != 4 {
		t.Errorf("global offsets = %d, %d, want 0, 4", x.Offset, y.Offset)
	}

	text, _ := compile(t, `int x;
		int main() { x = 1; output x; }`)
	// Globals are addressed off the STATIC base through the temporary
	// pointer register.
	if !strings.Contains(text, "\tLOD R4,STATIC\n") {
		t.Errorf("missing static addressing in:\n%s", text)
	}
}

func TestArraySizing(t *testing.T) {
	_, g := compile(t, `int main() { int arr[10]; int after; after = 1; }`)

	arr := findVar(g, "arr")
	after := findVar(g, "after")
	if arr.Offset != 8 {
		t.Errorf("array offset = %d, want 8", arr.Offset)
	}
	if after.Offset != 48 {
		t.Errorf("offset after array = %d, want 48", after.Offset)
	}
}

func TestWriteBackBeforeBranch(t *testing.T) {
	text, _ := compile(t, `int main() { int a; a = 1; if (a) output a; }`)

	store := mustIndex(t, text, "STO (R2+8)")
	jump := mustIndex(t, text, "JEZ L1")
	if store > jump {
		t.Error("modified register must be written back before the branch")
	}
}

func TestWriteBackBeforeLabel(t *testing.T) {
	text, _ := compile(t, `int main() { int a; a = 0;
		while (a < 3) { a = a + 1; } }`)

	// The loop body's update to a must reach memory before the back edge.
	back := mustIndex(t, text, "JMP L1")
	prefix := text[:back]
	if !strings.Contains(prefix, "STO (R2+8)") {
		t.Errorf("missing write-back before back edge in:\n%s", text)
	}
}

func TestComparisonSequence(t *testing.T) {
	text, _ := compile(t, `int main() { int a; int b; a = 1; b = 2; output a == b; }`)

	sub := mustIndex(t, text, "\tSUB R")
	tst := mustIndex(t, text, "\tTST R")
	seq := mustIndex(t, text, "\tLOD R3,R1+40\n")
	if !(sub < tst && tst < seq) {
		t.Error("comparison should SUB, TST, then branch on flags")
	}
	if !strings.Contains(text, "\tLOD R3,R1+24\n") {
		t.Errorf("missing IP-relative skip in:\n%s", text)
	}
	if !strings.Contains(text, "\tJEZ R3\n") {
		t.Errorf("missing JEZ for equality in:\n%s", text)
	}
}

func TestCallSequence(t *testing.T) {
	text, _ := compile(t, `int add(int a, int b) { return a + b; }
		int main() { output add(2, 3); }`)

	// Arguments land in the outgoing area, then old BP, return address,
	// BP rebase, and the jump.
	retAddr := mustIndex(t, text, "\tLOD R4,R1+32\n")
	jmp := mustIndex(t, text, "\tJMP add\n")
	if retAddr > jmp {
		t.Error("return address must be planted before the jump")
	}
	// The return value comes back in R4.
	after := text[jmp:]
	if !strings.Contains(after, ",R4\n") {
		t.Errorf("missing return value fetch after call in:\n%s", after)
	}
}

func TestReturnSequence(t *testing.T) {
	text, _ := compile(t, `int f(void) { return 3; }
		int main() { output f(); }`)

	for _, want := range []string{
		"\tLOD R4,3\n",      // return value into the temporary pointer register
		"\tLOD R3,(R2+4)\n", // return address
		"\tLOD R2,(R2)\n",   // restore BP
		"\tJMP R3\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestInputOutput(t *testing.T) {
	text, _ := compile(t, `int main() { int x; char c; input x; input c; output x; output c; }`)

	for _, want := range []string{"\tITI\n", "\tITC\n", "\tOTI\n", "\tOTC\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestStringOutput(t *testing.T) {
	text, _ := compile(t, `int main() { output "hi"; }`)

	if !strings.Contains(text, "\tOTS\n") {
		t.Errorf("missing OTS in:\n%s", text)
	}
	if !strings.Contains(text, "L1:\n\tDBS 104,105,0\n") {
		t.Errorf("missing string bytes in:\n%s", text)
	}
	// The literal's address loads by label.
	if !strings.Contains(text, ",L1\n") {
		t.Errorf("missing label load in:\n%s", text)
	}
}

func TestStringEscapes(t *testing.T) {
	text, _ := compile(t, `int main() { output "a\n"; }`)
	if !strings.Contains(text, "\tDBS 97,10,0\n") {
		t.Errorf("missing escaped bytes in:\n%s", text)
	}
}

func TestPointerCodegen(t *testing.T) {
	text, _ := compile(t, `int main() { int x; int p; x = 1; p = &x; output *p; *p = 2; }`)

	// Address computation off BP, load through the pointer, store through
	// the pointer, and the post-store flush.
	if !strings.Contains(text, "\tLOD R5,R2\n") && !strings.Contains(text, "\tLOD R6,R2\n") {
		t.Errorf("missing BP-relative address computation in:\n%s", text)
	}
	if !strings.Contains(text, ",(R") {
		t.Errorf("missing indirect load in:\n%s", text)
	}
	stoIdx := strings.LastIndex(text, "\tSTO (R")
	if stoIdx < 0 {
		t.Errorf("missing indirect store in:\n%s", text)
	}
}

func TestBinopSameVariable(t *testing.T) {
	text, _ := compile(t, `int main() { int a; a = 2; output a + a; }`)

	// a + a reuses one register; the right operand is copied aside first.
	if !strings.Contains(text, "\tADD R") {
		t.Errorf("missing addition in:\n%s", text)
	}
	if !strings.Contains(text, "\tLOD R4,R") {
		t.Errorf("missing temporary copy for aliased operand in:\n%s", text)
	}
}

func TestImmediateOperand(t *testing.T) {
	text, _ := compile(t, `int main() { int a; input a; output a + 7; }`)

	if !strings.Contains(text, "\tADD R5,7\n") {
		t.Errorf("missing immediate addition in:\n%s", text)
	}
}

func TestRegFileFillEvicts(t *testing.T) {
	var rf regFile
	s := tac.NewSym()
	s.Kind = tac.SymVar
	s.Type = ctypes.Int
	s.Name = "x"

	rf.fill(RGen, s, Unmodified)
	rf.fill(RGen+1, s, Modified)

	if rf.desc[RGen].v != nil {
		t.Error("fill should evict the symbol from its previous register")
	}
	if rf.holds(s) != RGen+1 {
		t.Errorf("holds = %d, want %d", rf.holds(s), RGen+1)
	}
}

func TestRegFileClearAll(t *testing.T) {
	var rf regFile
	s := tac.NewSym()
	s.Kind = tac.SymVar
	s.Name = "x"
	rf.fill(RGen, s, Modified)

	rf.clearAll()
	if rf.holds(s) != -1 {
		t.Error("clearAll should empty every descriptor")
	}
	if rf.free() != RGen {
		t.Errorf("free = %d, want %d", rf.free(), RGen)
	}
}

func TestDescriptorsCleanAtBoundaries(t *testing.T) {
	// After generating a program with every boundary kind, no general
	// register may be left holding a modified variable.
	src := `int f(int n) { if (n < 1) return 0; return n; }
		int main() { int i; for (i = 0; i < 2; i = i + 1) output f(i); }`

	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	g := tacgen.New(io.Discard)
	tacgen.NewTranslator(g).Translate(prog)

	var buf bytes.Buffer
	ag := New(&buf, io.Discard, g.First(), g.Globals())
	if err := ag.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for r := RGen; r < RIO; r++ {
		if ag.regs.desc[r].state == Modified && ag.regs.desc[r].v != nil {
			t.Errorf("register R%d left modified after generation", r)
		}
	}
}
