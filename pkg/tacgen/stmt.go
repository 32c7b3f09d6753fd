// Statement combinators. Each returns the tail of the chain it produced,
// with prev pointers set and next pointers still nil.

package tacgen

import (
	"strconv"

	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// DeclareVar emits the VAR declaration for a new variable.
func (g *Generator) DeclareVar(name string, dtype ctypes.DataType) *tac.Instr {
	return g.MkInstr(tac.Var, g.MkVar(name, dtype), nil, nil)
}

// DeclarePara emits the FORMAL declaration for a parameter and records its
// type on the current function.
func (g *Generator) DeclarePara(name string, dtype ctypes.DataType) *tac.Instr {
	s := g.MkVar(name, dtype)
	if g.currentFunc != nil {
		g.currentFunc.ParamTypes = append(g.currentFunc.ParamTypes, dtype)
	}
	return g.MkInstr(tac.Formal, s, nil, nil)
}

// DoFunc wraps parameter and body code in LABEL/BEGINFUNC/ENDFUNC and
// appends the function to the program chain.
func (g *Generator) DoFunc(fn *tac.Sym, args, code *tac.Instr) *tac.Instr {
	tlab := g.MkInstr(tac.Label, g.MkLabel(fn.Name), nil, nil)
	tbegin := g.MkInstr(tac.BeginFunc, nil, nil, nil)
	tend := g.MkInstr(tac.EndFunc, nil, nil, nil)

	tbegin.Prev = tlab
	code = g.Join(args, code)
	tend.Prev = g.Join(tbegin, code)

	g.tacLast = g.Join(g.tacLast, tend)
	return tend
}

// DoAssign emits the expression code followed by COPY var = place.
func (g *Generator) DoAssign(v *tac.Sym, exp *tac.Exp) *tac.Instr {
	if v == nil || exp == nil {
		g.Error("Invalid assignment")
		return nil
	}
	if v.Kind != tac.SymVar {
		g.Error("Assignment to non-variable")
		return nil
	}
	g.checkAssignmentType(v, exp)

	code := g.MkInstr(tac.Copy, v, exp.Place, nil)
	code.Prev = exp.Code
	return code
}

// DoInput emits INPUT for a variable.
func (g *Generator) DoInput(v *tac.Sym) *tac.Instr {
	if v == nil {
		g.Error("Invalid input")
		return nil
	}
	if v.Kind != tac.SymVar {
		g.Error("Input to non-variable")
		return nil
	}
	return g.MkInstr(tac.Input, v, nil, nil)
}

// DoOutput emits OUTPUT for a symbol.
func (g *Generator) DoOutput(s *tac.Sym) *tac.Instr {
	if s == nil {
		g.Error("Invalid output")
		return nil
	}
	return g.MkInstr(tac.Output, s, nil, nil)
}

// DoReturn emits the value code (if any) followed by RETURN.
func (g *Generator) DoReturn(exp *tac.Exp) *tac.Instr {
	if exp == nil {
		if g.currentFunc != nil && g.currentFunc.ReturnType != ctypes.Void {
			g.Warning("Non-void function should return a value")
		}
		return g.MkInstr(tac.Return, nil, nil, nil)
	}
	g.checkReturnType(exp)

	t := g.MkInstr(tac.Return, exp.Place, nil, nil)
	t.Prev = exp.Code
	return t
}

// DoIf lowers: cond-code; IFZ Lend, cond.place; then; LABEL Lend.
func (g *Generator) DoIf(exp *tac.Exp, stmt *tac.Instr) *tac.Instr {
	label := g.MkInstr(tac.Label, g.freshLabel(), nil, nil)
	code := g.MkInstr(tac.Ifz, label.A, exp.Place, nil)

	code.Prev = exp.Code
	code = g.Join(code, stmt)
	label.Prev = code
	return label
}

// DoIfElse lowers: cond-code; IFZ Lelse; then; GOTO Lend; LABEL Lelse;
// else; LABEL Lend.
func (g *Generator) DoIfElse(exp *tac.Exp, stmt1, stmt2 *tac.Instr) *tac.Instr {
	label1 := g.MkInstr(tac.Label, g.freshLabel(), nil, nil)
	label2 := g.MkInstr(tac.Label, g.freshLabel(), nil, nil)

	code1 := g.MkInstr(tac.Ifz, label1.A, exp.Place, nil)
	code2 := g.MkInstr(tac.Goto, label2.A, nil, nil)

	code1.Prev = exp.Code
	joined := g.Join(code1, stmt1)
	code2.Prev = joined
	label1.Prev = code2
	afterElse := g.Join(label1, stmt2)
	label2.Prev = afterElse
	return label2
}

// BeginWhileLoop allocates the loop labels and pushes the loop context so
// break and continue inside the body resolve correctly.
func (g *Generator) BeginWhileLoop() {
	continueLabel := g.freshLabel()
	breakLabel := g.freshLabel()
	g.enterLoop(breakLabel, continueLabel, nil)
}

// EndWhileLoop lowers the loop and pops its context:
// LABEL Lcont; cond-code; IFZ Lbrk; body; GOTO Lcont; LABEL Lbrk.
func (g *Generator) EndWhileLoop(exp *tac.Exp, stmt *tac.Instr) *tac.Instr {
	loop := g.loopStack[len(g.loopStack)-1]

	continueLabel := g.MkInstr(tac.Label, loop.continueLabel, nil, nil)
	breakLabel := g.MkInstr(tac.Label, loop.breakLabel, nil, nil)

	ifz := g.MkInstr(tac.Ifz, breakLabel.A, exp.Place, nil)
	gotoContinue := g.MkInstr(tac.Goto, continueLabel.A, nil, nil)

	result := g.Join(continueLabel, exp.Code)
	ifz.Prev = result
	result = g.Join(ifz, stmt)
	gotoContinue.Prev = result
	breakLabel.Prev = gotoContinue

	g.leaveLoop()
	return breakLabel
}

// BeginForLoop allocates the loop-start, continue, and break labels and
// pushes the loop context.
func (g *Generator) BeginForLoop() {
	loopStart := g.freshLabel()
	continueLabel := g.freshLabel()
	breakLabel := g.freshLabel()
	g.enterLoop(breakLabel, continueLabel, loopStart)
}

// EndForLoop lowers: init; LABEL Lstart; cond-code; IFZ Lbrk; body;
// LABEL Lcont; update; GOTO Lstart; LABEL Lbrk. Continue targets the update.
func (g *Generator) EndForLoop(init *tac.Instr, cond *tac.Exp, update, body *tac.Instr) *tac.Instr {
	loop := g.loopStack[len(g.loopStack)-1]

	loopStart := g.MkInstr(tac.Label, loop.loopStart, nil, nil)
	continueLabel := g.MkInstr(tac.Label, loop.continueLabel, nil, nil)
	breakLabel := g.MkInstr(tac.Label, loop.breakLabel, nil, nil)

	ifz := g.MkInstr(tac.Ifz, loop.breakLabel, cond.Place, nil)
	gotoLoop := g.MkInstr(tac.Goto, loop.loopStart, nil, nil)

	result := g.Join(init, loopStart)
	result = g.Join(result, cond.Code)
	ifz.Prev = result
	result = g.Join(ifz, body)
	continueLabel.Prev = result
	result = g.Join(continueLabel, update)
	gotoLoop.Prev = result
	breakLabel.Prev = gotoLoop

	g.leaveLoop()
	return breakLabel
}

// BeginSwitch allocates the break and default labels and pushes the switch
// context.
func (g *Generator) BeginSwitch() {
	breakLabel := g.freshLabel()
	defaultLabel := g.freshLabel()
	g.enterSwitch(breakLabel, defaultLabel)
}

// DoCase emits the label for a case and registers it in the active switch.
func (g *Generator) DoCase(value int) *tac.Instr {
	if !g.inSwitch() {
		g.Error("case statement outside of switch")
		return nil
	}
	ctx := g.switchStack[len(g.switchStack)-1]
	caseLabel := g.freshLabel()
	if _, dup := ctx.caseLabels[value]; dup {
		g.Error("duplicate case value: " + strconv.Itoa(value))
	} else {
		ctx.caseValues = append(ctx.caseValues, value)
	}
	ctx.caseLabels[value] = caseLabel
	return g.MkInstr(tac.Label, caseLabel, nil, nil)
}

// DoDefault emits the default label of the active switch.
func (g *Generator) DoDefault() *tac.Instr {
	if !g.inSwitch() {
		g.Error("default statement outside of switch")
		return nil
	}
	ctx := g.switchStack[len(g.switchStack)-1]
	return g.MkInstr(tac.Label, ctx.defaultLabel, nil, nil)
}

// EndSwitch synthesizes the dispatch prologue ahead of the recorded body:
// for each case, tmp = cond - value; IFZ Lcase, tmp; then GOTO Ldefault;
// body; LABEL Lbrk.
func (g *Generator) EndSwitch(exp *tac.Exp, body *tac.Instr) *tac.Instr {
	if !g.inSwitch() {
		g.Error("Not in a switch context")
		return nil
	}
	ctx := g.switchStack[len(g.switchStack)-1]

	switchEnd := g.MkInstr(tac.Label, ctx.breakLabel, nil, nil)

	var caseJumps *tac.Instr
	for _, value := range ctx.caseValues {
		caseLabel := ctx.caseLabels[value]
		constSym := g.MkConst(value)
		temp := g.MkTmp(exp.Type)
		tempDecl := g.MkInstr(tac.Var, temp, nil, nil)
		sub := g.MkInstr(tac.Sub, temp, exp.Place, constSym)
		caseJump := g.MkInstr(tac.Ifz, caseLabel, temp, nil)

		tempDecl.Prev = caseJumps
		sub.Prev = tempDecl
		caseJump.Prev = sub
		caseJumps = caseJump
	}

	gotoDefault := g.MkInstr(tac.Goto, ctx.defaultLabel, nil, nil)
	gotoDefault.Prev = caseJumps
	caseJumps = gotoDefault

	result := g.Join(exp.Code, caseJumps)
	result = g.Join(result, body)
	switchEnd.Prev = result

	g.leaveSwitch()
	return switchEnd
}

// DoBreak jumps to the break label of the innermost loop or switch. Loops
// and switches allocate their break label on entry, so of the two stack
// tops the innermost construct holds the higher label number.
func (g *Generator) DoBreak() *tac.Instr {
	if g.inSwitch() {
		ctx := g.switchStack[len(g.switchStack)-1]
		sw, _ := strconv.Atoi(ctx.breakLabel.Name[1:])
		lp := -1
		if g.inLoop() {
			lp, _ = strconv.Atoi(g.loopStack[len(g.loopStack)-1].breakLabel.Name[1:])
		}
		if sw > lp {
			return g.MkInstr(tac.Goto, ctx.breakLabel, nil, nil)
		}
	}
	if g.inLoop() {
		ctx := g.loopStack[len(g.loopStack)-1]
		return g.MkInstr(tac.Goto, ctx.breakLabel, nil, nil)
	}
	g.Error("break statement outside of loop or switch")
	return nil
}

// DoContinue jumps to the continue label of the innermost loop.
func (g *Generator) DoContinue() *tac.Instr {
	if !g.inLoop() {
		g.Error("continue statement outside of loop")
		return nil
	}
	ctx := g.loopStack[len(g.loopStack)-1]
	return g.MkInstr(tac.Goto, ctx.continueLabel, nil, nil)
}
