// Expression combinators returning EXP fragments.

package tacgen

import (
	"strconv"

	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// MkExp builds an expression fragment.
func (g *Generator) MkExp(place *tac.Sym, code *tac.Instr) *tac.Exp {
	return tac.NewExp(place, code)
}

// DoBin emits a VAR for a fresh temporary followed by the binary operation.
func (g *Generator) DoBin(op tac.Op, exp1, exp2 *tac.Exp) *tac.Exp {
	resultType := inferBinaryType(exp1.Type, exp2.Type)

	temp := g.MkTmp(resultType)
	tempDecl := g.MkInstr(tac.Var, temp, nil, nil)
	tempDecl.Prev = g.Join(exp1.Code, exp2.Code)

	ret := g.MkInstr(op, temp, exp1.Place, exp2.Place)
	ret.Prev = tempDecl

	exp := g.MkExp(temp, ret)
	exp.Type = resultType
	return exp
}

// DoUn emits a VAR for a fresh temporary followed by the unary operation.
func (g *Generator) DoUn(op tac.Op, operand *tac.Exp) *tac.Exp {
	resultType := operand.Type

	temp := g.MkTmp(resultType)
	tempDecl := g.MkInstr(tac.Var, temp, nil, nil)
	tempDecl.Prev = operand.Code

	ret := g.MkInstr(op, temp, operand.Place, nil)
	ret.Prev = tempDecl

	exp := g.MkExp(temp, ret)
	exp.Type = resultType
	return exp
}

// DoAddr lowers &v into a fresh pointer temporary.
func (g *Generator) DoAddr(v *tac.Sym) *tac.Exp {
	if v == nil || v.Kind != tac.SymVar {
		g.Error("Cannot take the address of a non-variable")
		return nil
	}
	temp := g.MkTmp(v.Type)
	temp.IsPointer = true
	temp.BaseType = v.Type
	tempDecl := g.MkInstr(tac.Var, temp, nil, nil)

	ret := g.MkInstr(tac.Addr, temp, v, nil)
	ret.Prev = tempDecl

	exp := g.MkExp(temp, ret)
	exp.Type = temp.Type
	return exp
}

// DoDeref lowers *p as an rvalue into LOAD_PTR through a fresh temporary.
func (g *Generator) DoDeref(ptr *tac.Exp) *tac.Exp {
	if ptr == nil || ptr.Place == nil {
		g.Error("Invalid dereference")
		return nil
	}
	base := ptr.Place.BaseType
	if base == ctypes.Undef {
		base = ptr.Type
	}
	temp := g.MkTmp(base)
	tempDecl := g.MkInstr(tac.Var, temp, nil, nil)
	tempDecl.Prev = ptr.Code

	ret := g.MkInstr(tac.LoadPtr, temp, ptr.Place, nil)
	ret.Prev = tempDecl

	exp := g.MkExp(temp, ret)
	exp.Type = base
	return exp
}

// DoStorePtr lowers *p = e into STORE_PTR after both operand chains.
func (g *Generator) DoStorePtr(ptr, value *tac.Exp) *tac.Instr {
	if ptr == nil || ptr.Place == nil || value == nil {
		g.Error("Invalid pointer store")
		return nil
	}
	code := g.Join(ptr.Code, value.Code)
	st := g.MkInstr(tac.StorePtr, ptr.Place, value.Place, nil)
	st.Prev = code
	return st
}

// DoCall emits argument code, ACTUAL instructions in list order, and a
// CALL discarding the result.
func (g *Generator) DoCall(name string, arglist *tac.Exp) *tac.Instr {
	var code *tac.Instr

	for arg := arglist; arg != nil; arg = arg.Next {
		code = g.Join(code, arg.Code)
	}
	for arg := arglist; arg != nil; arg = arg.Next {
		t := g.MkInstr(tac.Actual, arg.Place, nil, nil)
		t.Prev = code
		code = t
	}

	fn := tac.NewSym()
	fn.Kind = tac.SymFunc
	fn.Name = name

	t := g.MkInstr(tac.Call, nil, fn, nil)
	t.Prev = code
	return t
}

// DoCallRet emits argument code, ACTUAL instructions in list order, and a
// CALL whose result lands in a fresh temporary. The list order reflects the
// reversed link order built by the translator so that evaluation order is
// preserved on the stack.
func (g *Generator) DoCallRet(name string, arglist *tac.Exp) *tac.Exp {
	fnSym := g.lookup(name)
	returnType := ctypes.Int

	if fnSym != nil && fnSym.Kind == tac.SymFunc {
		returnType = fnSym.ReturnType

		paramCount := 0
		for arg := arglist; arg != nil; arg = arg.Next {
			// The list is linked last-argument-first; count from the end.
			idx := len(fnSym.ParamTypes) - 1 - paramCount
			if idx >= 0 && idx < len(fnSym.ParamTypes) {
				if !typeCompatible(arg.Type, fnSym.ParamTypes[idx]) {
					g.Warning("Type mismatch in function call argument " + strconv.Itoa(idx+1))
				}
			}
			paramCount++
		}
		if paramCount != len(fnSym.ParamTypes) {
			g.Warning("Argument count mismatch in function call to " + name)
		}
	} else {
		g.Warning("Function not declared: " + name)
	}

	ret := g.MkTmp(returnType)
	code := g.MkInstr(tac.Var, ret, nil, nil)

	for arg := arglist; arg != nil; arg = arg.Next {
		code = g.Join(code, arg.Code)
	}
	for arg := arglist; arg != nil; arg = arg.Next {
		t := g.MkInstr(tac.Actual, arg.Place, nil, nil)
		t.Prev = code
		code = t
	}

	fn := tac.NewSym()
	fn.Kind = tac.SymFunc
	fn.Name = name

	t := g.MkInstr(tac.Call, ret, fn, nil)
	t.Prev = code

	exp := g.MkExp(ret, t)
	exp.Type = returnType
	return exp
}
