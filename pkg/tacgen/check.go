// Type compatibility checks. Mismatches warn; compilation continues.

package tacgen

import (
	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// typeCompatible reports whether t1 and t2 may be mixed. Int and Char are
// mutually compatible; Undef is compatible with anything.
func typeCompatible(t1, t2 ctypes.DataType) bool {
	if t1 == ctypes.Undef || t2 == ctypes.Undef {
		return true
	}
	if (t1 == ctypes.Int || t1 == ctypes.Char) &&
		(t2 == ctypes.Int || t2 == ctypes.Char) {
		return true
	}
	return t1 == t2
}

// inferBinaryType returns Int if either side is Int, Char when both are Char.
func inferBinaryType(t1, t2 ctypes.DataType) ctypes.DataType {
	if t1 == ctypes.Undef || t2 == ctypes.Undef {
		return ctypes.Int
	}
	if t1 == ctypes.Int || t2 == ctypes.Int {
		return ctypes.Int
	}
	if t1 == ctypes.Char && t2 == ctypes.Char {
		return ctypes.Char
	}
	return ctypes.Int
}

func (g *Generator) checkAssignmentType(v *tac.Sym, exp *tac.Exp) {
	if !typeCompatible(v.Type, exp.Type) {
		g.Warning("Type mismatch in assignment: " + v.Type.String() + " = " + exp.Type.String())
	}
}

func (g *Generator) checkReturnType(exp *tac.Exp) {
	if g.currentFunc == nil {
		return
	}
	if !typeCompatible(g.currentFunc.ReturnType, exp.Type) {
		g.Warning("Return type mismatch: expected " + g.currentFunc.ReturnType.String() +
			", got " + exp.Type.String())
	}
}
