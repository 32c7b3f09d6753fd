package tac

import (
	"bytes"
	"strings"
	"testing"

	"github.com/minic-lang/minic/pkg/ctypes"
)

func mkVar(name string) *Sym {
	s := NewSym()
	s.Kind = SymVar
	s.Type = ctypes.Int
	s.Name = name
	return s
}

func mkConst(v int) *Sym {
	s := NewSym()
	s.Kind = SymConstInt
	s.Type = ctypes.Int
	s.IntVal = v
	return s
}

func TestInstrString(t *testing.T) {
	a, b, c := mkVar("a"), mkVar("b"), mkVar("c")
	label := NewSym()
	label.Kind = SymLabel
	label.Name = "L1"

	tests := []struct {
		instr *Instr
		want  string
	}{
		{NewInstr(Add, a, b, c), "a = b + c"},
		{NewInstr(Sub, a, b, c), "a = b - c"},
		{NewInstr(Eq, a, b, c), "a = (b == c)"},
		{NewInstr(Neg, a, b, nil), "a = -b"},
		{NewInstr(Copy, a, b, nil), "a = b"},
		{NewInstr(Goto, label, nil, nil), "goto L1"},
		{NewInstr(Ifz, label, b, nil), "ifz b goto L1"},
		{NewInstr(Label, label, nil, nil), "label L1"},
		{NewInstr(Var, a, nil, nil), "var a : int"},
		{NewInstr(Formal, a, nil, nil), "formal a"},
		{NewInstr(Actual, a, nil, nil), "actual a"},
		{NewInstr(Return, a, nil, nil), "return a"},
		{NewInstr(Return, nil, nil, nil), "return"},
		{NewInstr(Input, a, nil, nil), "input a"},
		{NewInstr(Output, a, nil, nil), "output a"},
		{NewInstr(BeginFunc, nil, nil, nil), "begin"},
		{NewInstr(EndFunc, nil, nil, nil), "end"},
		{NewInstr(Addr, a, b, nil), "a = &b"},
		{NewInstr(LoadPtr, a, b, nil), "a = *b"},
		{NewInstr(StorePtr, a, b, nil), "*a = b"},
	}

	for _, tt := range tests {
		if got := tt.instr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCallString(t *testing.T) {
	fn := NewSym()
	fn.Kind = SymFunc
	fn.Name = "f"
	ret := mkVar("t0")

	if got := NewInstr(Call, ret, fn, nil).String(); got != "t0 = call f" {
		t.Errorf("String() = %q, want %q", got, "t0 = call f")
	}
	if got := NewInstr(Call, nil, fn, nil).String(); got != "call f" {
		t.Errorf("String() = %q, want %q", got, "call f")
	}
}

func TestDef(t *testing.T) {
	a, b, c := mkVar("a"), mkVar("b"), mkVar("c")

	defOps := []Op{Add, Sub, Mul, Div, Eq, Ne, Lt, Le, Gt, Ge, Neg, Copy, LoadPtr, Addr, Input, Call}
	for _, op := range defOps {
		instr := NewInstr(op, a, b, c)
		if instr.Def() != a {
			t.Errorf("op %v: Def() should be a", op)
		}
	}

	noDefOps := []Op{Goto, Ifz, Label, Return, Output, Actual, StorePtr, Var, Formal}
	for _, op := range noDefOps {
		instr := NewInstr(op, a, b, nil)
		if instr.Def() != nil {
			t.Errorf("op %v: Def() should be nil", op)
		}
	}
}

func TestUses(t *testing.T) {
	a, b, c := mkVar("a"), mkVar("b"), mkVar("c")

	uses := NewInstr(Add, a, b, c).Uses()
	if len(uses) != 2 || uses[0] != b || uses[1] != c {
		t.Errorf("Add uses = %v, want [b c]", uses)
	}

	// Constants are not uses
	uses = NewInstr(Add, a, mkConst(1), mkConst(2)).Uses()
	if len(uses) != 0 {
		t.Errorf("Add with const operands: uses = %v, want none", uses)
	}

	// The a operand is a use for these opcodes
	for _, op := range []Op{Return, Output, Ifz, Actual, StorePtr} {
		uses = NewInstr(op, a, nil, nil).Uses()
		if len(uses) != 1 || uses[0] != a {
			t.Errorf("op %v: uses = %v, want [a]", op, uses)
		}
	}
}

func TestRemove(t *testing.T) {
	i1 := NewInstr(Var, mkVar("a"), nil, nil)
	i2 := NewInstr(Copy, mkVar("b"), mkConst(1), nil)
	i3 := NewInstr(Output, mkVar("c"), nil, nil)
	i1.Next, i2.Prev = i2, i1
	i2.Next, i3.Prev = i3, i2

	i2.Remove()

	if i1.Next != i3 || i3.Prev != i1 {
		t.Error("Remove should rewire neighbors")
	}
}

func TestPrintRoundTrip(t *testing.T) {
	a := mkVar("a")
	i1 := NewInstr(Var, a, nil, nil)
	i2 := NewInstr(Copy, a, mkConst(7), nil)
	i3 := NewInstr(Output, a, nil, nil)
	i1.Next, i2.Prev = i2, i1
	i2.Next, i3.Prev = i3, i2

	var buf1, buf2 bytes.Buffer
	Print(&buf1, i1)
	Print(&buf2, i1)

	if buf1.String() != buf2.String() {
		t.Error("printing twice should produce identical text")
	}
	want := "var a : int\na = 7\noutput a\n"
	if buf1.String() != want {
		t.Errorf("printed = %q, want %q", buf1.String(), want)
	}
}

func TestSymSize(t *testing.T) {
	v := mkVar("x")
	if got := v.Size(); got != 4 {
		t.Errorf("scalar size = %d, want 4", got)
	}

	arr := mkVar("a")
	arr.IsArray = true
	arr.Array = NewArrayMeta("a", []int{5, 10}, ctypes.Char, 4)
	if got := arr.Size(); got != 200 {
		t.Errorf("array size = %d, want 200", got)
	}

	st := mkVar("s")
	st.Type = ctypes.Struct
	st.Struct = &StructMeta{
		Name: "point",
		Fields: []StructField{
			{Name: "x", Type: ctypes.Tbasic{Kind: ctypes.Int}},
			{Name: "y", Type: ctypes.Tbasic{Kind: ctypes.Int}},
		},
	}
	st.Struct.ComputeSize()
	if got := st.Size(); got != 8 {
		t.Errorf("struct size = %d, want 8", got)
	}
}

func TestStructMetaLayout(t *testing.T) {
	m := &StructMeta{
		Name: "rec",
		Fields: []StructField{
			{Name: "a", Type: ctypes.Tbasic{Kind: ctypes.Int}},
			{Name: "b", Type: ctypes.Tarray{Elem: ctypes.Tbasic{Kind: ctypes.Char}, Len: 3}},
			{Name: "c", Type: ctypes.Tbasic{Kind: ctypes.Char}},
		},
	}
	m.ComputeSize()

	wantOffsets := []int{0, 4, 16}
	for i, want := range wantOffsets {
		if m.Fields[i].Offset != want {
			t.Errorf("field %d offset = %d, want %d", i, m.Fields[i].Offset, want)
		}
	}
	if m.TotalSize != 20 {
		t.Errorf("total size = %d, want 20", m.TotalSize)
	}

	f, ok := m.Field("b")
	if !ok || f.Offset != 4 {
		t.Errorf("Field(b) = %v, %v", f, ok)
	}
	if m.HasField("d") {
		t.Error("HasField(d) should be false")
	}
}

func TestArrayMetaStride(t *testing.T) {
	m := NewArrayMeta("a", []int{5, 10}, ctypes.Char, 4)
	if got := m.TotalElems(); got != 50 {
		t.Errorf("TotalElems = %d, want 50", got)
	}
	if got := m.Stride(0); got != 10 {
		t.Errorf("Stride(0) = %d, want 10", got)
	}
	if got := m.Stride(1); got != 1 {
		t.Errorf("Stride(1) = %d, want 1", got)
	}
	if got := m.String(); !strings.Contains(got, "a[5][10]") {
		t.Errorf("String() = %q", got)
	}
}

func TestConstValue(t *testing.T) {
	if v, ok := mkConst(42).ConstValue(); !ok || v != 42 {
		t.Errorf("ConstValue = %d, %v", v, ok)
	}

	ch := NewSym()
	ch.Kind = SymConstChar
	ch.Type = ctypes.Char
	ch.CharVal = 'A'
	if v, ok := ch.ConstValue(); !ok || v != 65 {
		t.Errorf("char ConstValue = %d, %v", v, ok)
	}

	if _, ok := mkVar("x").ConstValue(); ok {
		t.Error("variable should not have a constant value")
	}
}
