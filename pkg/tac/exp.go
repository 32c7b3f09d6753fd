package tac

import "github.com/minic-lang/minic/pkg/ctypes"

// Exp is an expression-compilation fragment: Code is the tail of the
// instruction chain that computes the value, Place the symbol holding the
// result, and Next links expressions into argument lists.
type Exp struct {
	Code  *Instr
	Place *Sym
	Type  ctypes.DataType
	Next  *Exp
}

// NewExp returns a fragment with the given result symbol and code tail.
func NewExp(place *Sym, code *Instr) *Exp {
	return &Exp{Code: code, Place: place, Type: ctypes.Undef}
}
