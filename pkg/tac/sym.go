// Package tac defines the three-address intermediate representation:
// symbols, instructions forming a doubly-linked list, and expression
// fragments produced by the IR builder.
package tac

import (
	"fmt"
	"strconv"

	"github.com/minic-lang/minic/pkg/ctypes"
)

// SymKind classifies symbol table entries.
type SymKind int

const (
	SymUndef SymKind = iota
	SymVar
	SymFunc
	SymText
	SymLabel
	SymConstInt
	SymConstChar
	SymStructType
)

// Scope distinguishes global from function-local symbols.
type Scope int

const (
	Global Scope = iota
	Local
)

// Sym is a symbol table entry. The same structure serves variables,
// functions, labels, text literals, constants, and struct type definitions;
// Kind selects which fields are meaningful.
type Sym struct {
	Kind  SymKind
	Type  ctypes.DataType
	Scope Scope
	Name  string

	IntVal  int    // SymConstInt value
	CharVal byte   // SymConstChar value
	Text    string // SymText literal, quotes included

	// Offset is the frame or static offset, assigned once during code
	// generation when the declaring VAR/FORMAL instruction is visited.
	Offset int
	// Label is the numeric id for text literals.
	Label int

	// For functions
	ParamTypes []ctypes.DataType
	ReturnType ctypes.DataType

	// For struct-typed variables and struct type definitions
	StructName string
	Struct     *StructMeta

	// For arrays
	IsArray bool
	Array   *ArrayMeta

	// For pointers
	IsPointer bool
	BaseType  ctypes.DataType
}

// NewSym returns a symbol with every classification field set to undefined.
func NewSym() *Sym {
	return &Sym{
		Kind:       SymUndef,
		Type:       ctypes.Undef,
		Scope:      Global,
		Offset:     -1,
		Label:      -1,
		ReturnType: ctypes.Undef,
		BaseType:   ctypes.Undef,
	}
}

// Size returns the storage size of the symbol in bytes.
func (s *Sym) Size() int {
	if s.IsArray && s.Array != nil {
		return s.Array.TotalElems() * s.Array.ElemSize
	}
	if s.Type == ctypes.Struct && s.Struct != nil {
		return s.Struct.TotalSize
	}
	return ctypes.WordSize
}

// ConstValue returns the integer value of a constant symbol.
// Character constants widen to their code point.
func (s *Sym) ConstValue() (int, bool) {
	switch s.Kind {
	case SymConstInt:
		return s.IntVal, true
	case SymConstChar:
		return int(s.CharVal), true
	default:
		return 0, false
	}
}

// IsConst reports whether the symbol is an integer or character constant.
func (s *Sym) IsConst() bool {
	return s.Kind == SymConstInt || s.Kind == SymConstChar
}

func (s *Sym) String() string {
	switch s.Kind {
	case SymVar, SymFunc, SymLabel, SymStructType:
		return s.Name
	case SymText:
		return fmt.Sprintf("L%d", s.Label)
	case SymConstInt:
		return strconv.Itoa(s.IntVal)
	case SymConstChar:
		return "'" + string(s.CharVal) + "'"
	default:
		return "?"
	}
}
