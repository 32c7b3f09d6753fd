// AST walking: lowers the parsed program through the statement and
// expression combinators.

package tacgen

import (
	"github.com/minic-lang/minic/pkg/ast"
	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// Translator drives the Generator over an AST.
type Translator struct {
	gen     *Generator
	structs map[string]*tac.StructMeta
	defined map[string]bool // functions whose body has been emitted
}

// NewTranslator wraps a Generator for AST translation.
func NewTranslator(g *Generator) *Translator {
	return &Translator{
		gen:     g,
		structs: make(map[string]*tac.StructMeta),
		defined: make(map[string]bool),
	}
}

// Gen returns the underlying generator.
func (t *Translator) Gen() *Generator { return t.gen }

// Translate lowers a whole program and completes the instruction list.
func (t *Translator) Translate(prog *ast.Program) {
	if prog == nil {
		t.gen.Error("Null program node")
		return
	}
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.VarDecl:
			code := t.declareVar(d)
			t.gen.Link(code)
		case *ast.FuncDecl:
			t.translateFunc(d)
		case *ast.StructDecl:
			t.registerStruct(d)
		}
	}
	t.gen.Complete()
}

// registerStruct records a struct type definition with computed field
// offsets in the global symbol table.
func (t *Translator) registerStruct(d *ast.StructDecl) {
	meta := &tac.StructMeta{Name: d.Name}
	for _, f := range d.Fields {
		meta.Fields = append(meta.Fields, tac.StructField{
			Name: f.Name,
			Type: t.resolveType(f.Type),
		})
	}
	meta.ComputeSize()
	t.structs[d.Name] = meta

	s := tac.NewSym()
	s.Kind = tac.SymStructType
	s.Type = ctypes.Struct
	s.Name = d.Name
	s.StructName = d.Name
	s.Struct = meta
	t.gen.Globals()[d.Name] = s
}

// resolveType substitutes tag-only struct references with the registered
// definition so sizes come out right.
func (t *Translator) resolveType(typ ctypes.Type) ctypes.Type {
	switch v := typ.(type) {
	case ctypes.Tstruct:
		if len(v.Fields) == 0 {
			if meta, ok := t.structs[v.Name]; ok {
				full := ctypes.Tstruct{Name: v.Name}
				for _, f := range meta.Fields {
					full.Fields = append(full.Fields, ctypes.Field{
						Name: f.Name, Type: f.Type, Offset: f.Offset,
					})
				}
				return full
			}
			t.gen.Warning("Unknown struct type: " + v.Name)
		}
		return v
	case ctypes.Tarray:
		return ctypes.Tarray{Elem: t.resolveType(v.Elem), Len: v.Len}
	case ctypes.Tpointer:
		return ctypes.Tpointer{Elem: t.resolveType(v.Elem)}
	default:
		return typ
	}
}

// declareVar emits the VAR declaration and decorates the symbol with
// pointer, array, or struct shape from the declared type.
func (t *Translator) declareVar(d *ast.VarDecl) *tac.Instr {
	typ := t.resolveType(d.Type)
	instr := t.gen.DeclareVar(d.Name, ctypes.DataTypeOf(typ))
	t.decorate(instr.A, d.Name, typ)

	if d.Init != nil {
		initExp := t.translateExpr(d.Init)
		if initExp != nil {
			assign := t.gen.DoAssign(t.gen.GetVar(d.Name), initExp)
			return t.gen.Join(instr, assign)
		}
	}
	return instr
}

func (t *Translator) decorate(s *tac.Sym, name string, typ ctypes.Type) {
	if s == nil {
		return
	}
	switch v := typ.(type) {
	case ctypes.Tpointer:
		s.IsPointer = true
		s.BaseType = ctypes.DataTypeOf(v.Elem)
	case ctypes.Tarray:
		var dims []int
		elem := typ
		for {
			arr, ok := elem.(ctypes.Tarray)
			if !ok {
				break
			}
			dims = append(dims, arr.Len)
			elem = arr.Elem
		}
		base := ctypes.DataTypeOf(elem)
		s.IsArray = true
		s.Array = tac.NewArrayMeta(name, dims, base, elem.Size())
		if st, ok := elem.(ctypes.Tstruct); ok {
			s.Array.StructName = st.Name
		}
	case ctypes.Tstruct:
		s.StructName = v.Name
		if meta, ok := t.structs[v.Name]; ok {
			s.Struct = meta
		}
	}
}

func (t *Translator) translateFunc(d *ast.FuncDecl) {
	returnType := ctypes.DataTypeOf(d.Return)

	fnSym := t.gen.Lookup(d.Name)
	switch {
	case fnSym != nil && fnSym.Kind == tac.SymFunc:
		// Already declared. A repeated prototype adds nothing; a definition
		// following a prototype reuses the symbol, re-deriving the
		// parameter list from the definition.
		if d.Body == nil {
			return
		}
		if t.defined[d.Name] {
			t.gen.Error("Function already declared: " + d.Name)
			return
		}
		fnSym.ParamTypes = nil
		t.gen.currentFunc = fnSym
	case fnSym != nil:
		t.gen.Error("Name already used: " + d.Name)
		return
	default:
		fnSym = t.gen.DeclareFunc(d.Name, returnType)
		if fnSym == nil {
			return
		}
	}

	t.gen.EnterScope()

	var paramCode *tac.Instr
	for _, param := range d.Params {
		ptyp := t.resolveType(param.Type)
		instr := t.gen.DeclarePara(param.Name, ctypes.DataTypeOf(ptyp))
		t.decorate(instr.A, param.Name, ptyp)
		paramCode = t.gen.Join(paramCode, instr)
	}

	// A prototype only records the signature; code is emitted for
	// definitions.
	if d.Body != nil {
		bodyCode := t.translateStmt(d.Body)
		t.gen.DoFunc(fnSym, paramCode, bodyCode)
		t.defined[d.Name] = true
	}

	t.gen.LeaveScope()
	t.gen.currentFunc = nil
}

func (t *Translator) translateStmt(s ast.Stmt) *tac.Instr {
	if s == nil {
		return nil
	}
	switch s := s.(type) {
	case *ast.VarDecl:
		return t.declareVar(s)
	case *ast.StructDecl:
		t.registerStruct(s)
		return nil
	case *ast.ExprStmt:
		if call, ok := s.X.(*ast.Call); ok {
			if fn := t.gen.Lookup(call.Name); fn != nil && fn.Kind == tac.SymFunc &&
				fn.ReturnType == ctypes.Void {
				return t.gen.DoCall(call.Name, t.exprList(call.Args))
			}
		}
		exp := t.translateExpr(s.X)
		if exp == nil {
			return nil
		}
		return exp.Code
	case *ast.Block:
		var result *tac.Instr
		for _, inner := range s.Stmts {
			result = t.gen.Join(result, t.translateStmt(inner))
		}
		return result
	case *ast.If:
		cond := t.translateExpr(s.Cond)
		if cond == nil {
			return nil
		}
		then := t.translateStmt(s.Then)
		if s.Else != nil {
			return t.gen.DoIfElse(cond, then, t.translateStmt(s.Else))
		}
		return t.gen.DoIf(cond, then)
	case *ast.While:
		t.gen.BeginWhileLoop()
		cond := t.translateExpr(s.Cond)
		body := t.translateStmt(s.Body)
		if cond == nil {
			t.gen.leaveLoop()
			return body
		}
		return t.gen.EndWhileLoop(cond, body)
	case *ast.For:
		t.gen.BeginForLoop()
		init := t.translateStmt(s.Init)
		cond := t.translateExpr(s.Cond)
		if cond == nil {
			// An empty condition never terminates the loop.
			cond = t.gen.MkExp(t.gen.MkConst(1), nil)
			cond.Type = ctypes.Int
		}
		var update *tac.Instr
		if upd := t.translateExpr(s.Update); upd != nil {
			update = upd.Code
		}
		body := t.translateStmt(s.Body)
		return t.gen.EndForLoop(init, cond, update, body)
	case *ast.Return:
		if s.Value != nil {
			return t.gen.DoReturn(t.translateExpr(s.Value))
		}
		return t.gen.DoReturn(nil)
	case *ast.Break:
		return t.gen.DoBreak()
	case *ast.Continue:
		return t.gen.DoContinue()
	case *ast.InputStmt:
		return t.gen.DoInput(t.gen.GetVar(s.Name))
	case *ast.OutputStmt:
		exp := t.translateExpr(s.X)
		if exp == nil {
			return nil
		}
		out := t.gen.DoOutput(exp.Place)
		return t.gen.Join(exp.Code, out)
	case *ast.Switch:
		t.gen.BeginSwitch()
		cond := t.translateExpr(s.Cond)
		body := t.translateStmt(s.Body)
		if cond == nil {
			t.gen.leaveSwitch()
			return body
		}
		return t.gen.EndSwitch(cond, body)
	case *ast.Case:
		return t.gen.DoCase(s.Value)
	case *ast.Default:
		return t.gen.DoDefault()
	case *ast.FuncDecl:
		t.gen.Error("Nested function declarations are not supported")
		return nil
	default:
		t.gen.Error("Unknown statement type")
		return nil
	}
}

func (t *Translator) translateExpr(e ast.Expr) *tac.Exp {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *ast.ConstInt:
		exp := t.gen.MkExp(t.gen.MkConst(e.Value), nil)
		exp.Type = ctypes.Int
		return exp
	case *ast.ConstChar:
		exp := t.gen.MkExp(t.gen.MkConstChar(e.Value), nil)
		exp.Type = ctypes.Char
		return exp
	case *ast.StringLit:
		exp := t.gen.MkExp(t.gen.MkText(e.Value), nil)
		exp.Type = ctypes.Char
		return exp
	case *ast.Ident:
		v := t.gen.GetVar(e.Name)
		exp := t.gen.MkExp(v, nil)
		if v != nil {
			exp.Type = v.Type
		}
		return exp
	case *ast.Binary:
		left := t.translateExpr(e.Left)
		right := t.translateExpr(e.Right)
		if left == nil || right == nil {
			return nil
		}
		return t.gen.DoBin(binOpTable[e.Op], left, right)
	case *ast.Unary:
		switch e.Op {
		case ast.OpNeg:
			operand := t.translateExpr(e.X)
			if operand == nil {
				return nil
			}
			return t.gen.DoUn(tac.Neg, operand)
		case ast.OpAddrOf:
			id, ok := e.X.(*ast.Ident)
			if !ok {
				t.gen.Warning("Address-of is only supported on variables")
				return nil
			}
			return t.gen.DoAddr(t.gen.GetVar(id.Name))
		case ast.OpDeref:
			ptr := t.translateExpr(e.X)
			if ptr == nil {
				return nil
			}
			return t.gen.DoDeref(ptr)
		}
		return nil
	case *ast.Assign:
		return t.translateAssign(e)
	case *ast.Call:
		return t.gen.DoCallRet(e.Name, t.exprList(e.Args))
	case *ast.ArrayAccess:
		t.gen.Warning("Array access not yet fully supported in TAC generation")
		return nil
	case *ast.MemberAccess:
		t.gen.Warning("Member access not yet fully supported in TAC generation")
		return nil
	default:
		t.gen.Error("Unknown expression type")
		return nil
	}
}

func (t *Translator) translateAssign(e *ast.Assign) *tac.Exp {
	switch target := e.Target.(type) {
	case *ast.Ident:
		v := t.gen.GetVar(target.Name)
		value := t.translateExpr(e.Value)
		if value == nil {
			return nil
		}
		code := t.gen.DoAssign(v, value)
		return t.gen.MkExp(v, code)
	case *ast.Unary:
		if target.Op == ast.OpDeref {
			ptr := t.translateExpr(target.X)
			value := t.translateExpr(e.Value)
			if ptr == nil || value == nil {
				return nil
			}
			code := t.gen.DoStorePtr(ptr, value)
			return t.gen.MkExp(value.Place, code)
		}
	}
	t.gen.Warning("Complex assignment targets not yet fully supported")
	return nil
}

// exprList links argument fragments last-argument-first, so the combinator
// emits ACTUAL instructions in the order the calling convention expects.
func (t *Translator) exprList(exprs []ast.Expr) *tac.Exp {
	var result *tac.Exp
	for _, e := range exprs {
		exp := t.translateExpr(e)
		if exp != nil {
			exp.Next = result
			result = exp
		}
	}
	return result
}

var binOpTable = map[ast.BinaryOp]tac.Op{
	ast.OpAdd: tac.Add,
	ast.OpSub: tac.Sub,
	ast.OpMul: tac.Mul,
	ast.OpDiv: tac.Div,
	ast.OpEq:  tac.Eq,
	ast.OpNe:  tac.Ne,
	ast.OpLt:  tac.Lt,
	ast.OpLe:  tac.Le,
	ast.OpGt:  tac.Gt,
	ast.OpGe:  tac.Ge,
}
