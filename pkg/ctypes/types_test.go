package ctypes

import "testing"

func TestSizes(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{Tbasic{Kind: Int}, 4},
		{Tbasic{Kind: Char}, 4},
		{Tpointer{Elem: Tbasic{Kind: Int}}, 4},
		{Tarray{Elem: Tbasic{Kind: Int}, Len: 10}, 40},
		{Tarray{Elem: Tarray{Elem: Tbasic{Kind: Char}, Len: 10}, Len: 5}, 200},
	}
	for _, tt := range tests {
		if got := tt.typ.Size(); got != tt.want {
			t.Errorf("%s size = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestStructLayout(t *testing.T) {
	s := Tstruct{Name: "rec", Fields: []Field{
		{Name: "a", Type: Tbasic{Kind: Int}},
		{Name: "b", Type: Tarray{Elem: Tbasic{Kind: Int}, Len: 2}},
		{Name: "c", Type: Tbasic{Kind: Char}},
	}}
	total := s.Layout()

	if total != 16 {
		t.Errorf("total = %d, want 16", total)
	}
	wantOffsets := []int{0, 4, 12}
	for i, want := range wantOffsets {
		if s.Fields[i].Offset != want {
			t.Errorf("field %d offset = %d, want %d", i, s.Fields[i].Offset, want)
		}
	}
	if s.Size() != 16 {
		t.Errorf("Size = %d, want 16", s.Size())
	}
}

func TestDataTypeOf(t *testing.T) {
	tests := []struct {
		typ  Type
		want DataType
	}{
		{Tbasic{Kind: Int}, Int},
		{Tbasic{Kind: Void}, Void},
		{Tpointer{Elem: Tbasic{Kind: Char}}, Char},
		{Tarray{Elem: Tbasic{Kind: Int}, Len: 3}, Int},
		{Tstruct{Name: "s"}, Struct},
		{Tfunction{Return: Tbasic{Kind: Int}}, Int},
	}
	for _, tt := range tests {
		if got := DataTypeOf(tt.typ); got != tt.want {
			t.Errorf("DataTypeOf(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestDataTypeString(t *testing.T) {
	tests := []struct {
		dt   DataType
		want string
	}{
		{Void, "void"}, {Int, "int"}, {Char, "char"}, {Undef, "undefined"},
	}
	for _, tt := range tests {
		if got := tt.dt.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
