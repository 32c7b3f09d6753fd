// Package parser implements a recursive descent parser for the C subset.
package parser

import (
	"fmt"
	"strconv"

	"github.com/minic-lang/minic/pkg/ast"
	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/lexer"
)

// Precedence levels for Pratt parsing (lowest to highest)
const (
	precLowest     = 0
	precAssign     = 1 // =
	precEquality   = 2 // ==, !=
	precRelational = 3 // <, <=, >, >=
	precAdditive   = 4 // +, -
	precMulti      = 5 // *, /
	precUnary      = 6 // -x, &x, *x
	precPostfix    = 7 // call, subscript, member access
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenAssign:   precAssign,
	lexer.TokenEq:       precEquality,
	lexer.TokenNe:       precEquality,
	lexer.TokenLt:       precRelational,
	lexer.TokenLe:       precRelational,
	lexer.TokenGt:       precRelational,
	lexer.TokenGe:       precRelational,
	lexer.TokenPlus:     precAdditive,
	lexer.TokenMinus:    precAdditive,
	lexer.TokenStar:     precMulti,
	lexer.TokenSlash:    precMulti,
	lexer.TokenLParen:   precPostfix,
	lexer.TokenLBracket: precPostfix,
	lexer.TokenDot:      precPostfix,
	lexer.TokenArrow:    precPostfix,
}

var binaryOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.TokenPlus:  ast.OpAdd,
	lexer.TokenMinus: ast.OpSub,
	lexer.TokenStar:  ast.OpMul,
	lexer.TokenSlash: ast.OpDiv,
	lexer.TokenEq:    ast.OpEq,
	lexer.TokenNe:    ast.OpNe,
	lexer.TokenLt:    ast.OpLt,
	lexer.TokenLe:    ast.OpLe,
	lexer.TokenGt:    ast.OpGt,
	lexer.TokenGe:    ast.OpGe,
}

// Parser parses source code into an AST
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// syncToStmtEnd synchronizes to the end of a statement for panic-mode recovery
func (p *Parser) syncToStmtEnd() {
	for !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenSemicolon) {
			p.nextToken()
			return
		}
		if p.curTokenIs(lexer.TokenRBrace) || p.curTokenIs(lexer.TokenLBrace) {
			return
		}
		p.nextToken()
	}
}

// syncTopLevel skips past the current top-level declaration, consuming
// through the next ';' or '}' so recovery always makes progress.
func (p *Parser) syncTopLevel() {
	for !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenSemicolon) || p.curTokenIs(lexer.TokenRBrace) {
			p.nextToken()
			return
		}
		p.nextToken()
	}
}

// ParseProgram parses a complete translation unit
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	for !p.curTokenIs(lexer.TokenEOF) {
		decl := p.parseTopDecl()
		if decl != nil {
			prog.Decls = append(prog.Decls, decl)
		} else {
			p.syncTopLevel()
		}
	}
	return prog
}

func (p *Parser) parseTopDecl() ast.Decl {
	var typ ctypes.Type
	if p.curTokenIs(lexer.TokenStruct) && p.peekTokenIs(lexer.TokenIdent) {
		// A struct definition has '{' after the tag; anything else is a
		// struct-typed declarator.
		p.nextToken() // struct
		tag := p.curToken.Literal
		p.nextToken() // tag
		if p.curTokenIs(lexer.TokenLBrace) {
			return p.parseStructDeclBody(tag)
		}
		typ = ctypes.Tstruct{Name: tag}
		for p.curTokenIs(lexer.TokenStar) {
			typ = ctypes.Tpointer{Elem: typ}
			p.nextToken()
		}
	} else {
		var ok bool
		typ, ok = p.parseType()
		if !ok {
			p.addError(fmt.Sprintf("expected declaration, got %s", p.curToken.Type))
			return nil
		}
	}
	if !p.curTokenIs(lexer.TokenIdent) {
		p.addError(fmt.Sprintf("expected identifier, got %s", p.curToken.Type))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(lexer.TokenLParen) {
		return p.parseFuncDecl(typ, name)
	}
	return p.parseVarDeclTail(typ, name)
}

func (p *Parser) parseStructDeclBody(name string) ast.Decl {
	p.nextToken() // {
	var fields []ctypes.Field
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		ftyp, ok := p.parseType()
		if !ok {
			p.addError(fmt.Sprintf("expected field type, got %s", p.curToken.Type))
			p.syncToStmtEnd()
			continue
		}
		if !p.curTokenIs(lexer.TokenIdent) {
			p.addError(fmt.Sprintf("expected field name, got %s", p.curToken.Type))
			p.syncToStmtEnd()
			continue
		}
		fname := p.curToken.Literal
		p.nextToken()
		ftyp = p.parseArraySuffix(ftyp)
		fields = append(fields, ctypes.Field{Name: fname, Type: ftyp})
		p.expect(lexer.TokenSemicolon)
	}
	p.expect(lexer.TokenRBrace)
	p.expect(lexer.TokenSemicolon)
	return &ast.StructDecl{Name: name, Fields: fields}
}

// parseType parses a type specifier with any pointer suffix. It reports
// false without consuming tokens when the current token does not start a type.
func (p *Parser) parseType() (ctypes.Type, bool) {
	var typ ctypes.Type
	switch p.curToken.Type {
	case lexer.TokenInt_:
		typ = ctypes.Tbasic{Kind: ctypes.Int}
		p.nextToken()
	case lexer.TokenChar:
		typ = ctypes.Tbasic{Kind: ctypes.Char}
		p.nextToken()
	case lexer.TokenVoid:
		typ = ctypes.Tbasic{Kind: ctypes.Void}
		p.nextToken()
	case lexer.TokenStruct:
		if !p.peekTokenIs(lexer.TokenIdent) {
			return nil, false
		}
		p.nextToken()
		typ = ctypes.Tstruct{Name: p.curToken.Literal}
		p.nextToken()
	default:
		return nil, false
	}
	for p.curTokenIs(lexer.TokenStar) {
		typ = ctypes.Tpointer{Elem: typ}
		p.nextToken()
	}
	return typ, true
}

// parseArraySuffix wraps the type in array layers for each "[n]" suffix.
func (p *Parser) parseArraySuffix(typ ctypes.Type) ctypes.Type {
	var dims []int
	for p.curTokenIs(lexer.TokenLBracket) {
		p.nextToken()
		n, err := strconv.Atoi(p.curToken.Literal)
		if !p.curTokenIs(lexer.TokenInt) || err != nil {
			p.addError(fmt.Sprintf("expected array size, got %s", p.curToken.Type))
			n = 0
		}
		p.nextToken()
		p.expect(lexer.TokenRBracket)
		dims = append(dims, n)
	}
	// Innermost dimension binds tightest
	for i := len(dims) - 1; i >= 0; i-- {
		typ = ctypes.Tarray{Elem: typ, Len: dims[i]}
	}
	return typ
}

func (p *Parser) parseFuncDecl(ret ctypes.Type, name string) ast.Decl {
	p.nextToken() // (
	var params []ast.Param
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		ptyp, ok := p.parseType()
		if !ok {
			p.addError(fmt.Sprintf("expected parameter type, got %s", p.curToken.Type))
			return nil
		}
		if b, isBasic := ptyp.(ctypes.Tbasic); isBasic && b.Kind == ctypes.Void && !p.curTokenIs(lexer.TokenIdent) {
			// void parameter list: f(void)
			break
		}
		if !p.curTokenIs(lexer.TokenIdent) {
			p.addError(fmt.Sprintf("expected parameter name, got %s", p.curToken.Type))
			return nil
		}
		params = append(params, ast.Param{Type: ptyp, Name: p.curToken.Literal})
		p.nextToken()
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}

	decl := &ast.FuncDecl{Return: ret, Name: name, Params: params}
	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return decl
	}
	decl.Body = p.parseBlock()
	return decl
}

func (p *Parser) parseVarDeclTail(typ ctypes.Type, name string) ast.Decl {
	typ = p.parseArraySuffix(typ)
	decl := &ast.VarDecl{Type: typ, Name: name}
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		decl.Init = p.parseExpr(precLowest)
	}
	p.expect(lexer.TokenSemicolon)
	return decl
}

func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{}
	if !p.expect(lexer.TokenLBrace) {
		return block
	}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStmt()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		} else {
			p.syncToStmtEnd()
		}
	}
	p.expect(lexer.TokenRBrace)
	return block
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenBreak:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return &ast.Break{}
	case lexer.TokenContinue:
		p.nextToken()
		p.expect(lexer.TokenSemicolon)
		return &ast.Continue{}
	case lexer.TokenInput:
		return p.parseInput()
	case lexer.TokenOutput:
		return p.parseOutput()
	case lexer.TokenSwitch:
		return p.parseSwitch()
	case lexer.TokenCase:
		return p.parseCase()
	case lexer.TokenDefault:
		p.nextToken()
		p.expect(lexer.TokenColon)
		return &ast.Default{}
	case lexer.TokenInt_, lexer.TokenChar, lexer.TokenVoid:
		return p.parseLocalDecl()
	case lexer.TokenStruct:
		if p.peekTokenIs(lexer.TokenIdent) {
			return p.parseLocalDecl()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLocalDecl() ast.Stmt {
	typ, ok := p.parseType()
	if !ok {
		p.addError(fmt.Sprintf("expected type, got %s", p.curToken.Type))
		return nil
	}
	if !p.curTokenIs(lexer.TokenIdent) {
		p.addError(fmt.Sprintf("expected identifier, got %s", p.curToken.Type))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	return p.parseVarDeclTail(typ, name)
}

func (p *Parser) parseIf() ast.Stmt {
	p.nextToken() // if
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	then := p.parseStmt()
	stmt := &ast.If{Cond: cond, Then: then}
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		stmt.Else = p.parseStmt()
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Stmt {
	p.nextToken() // while
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	return &ast.While{Cond: cond, Body: p.parseStmt()}
}

func (p *Parser) parseFor() ast.Stmt {
	p.nextToken() // for
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	stmt := &ast.For{}
	if !p.curTokenIs(lexer.TokenSemicolon) {
		stmt.Init = &ast.ExprStmt{X: p.parseExpr(precLowest)}
	}
	p.expect(lexer.TokenSemicolon)
	if !p.curTokenIs(lexer.TokenSemicolon) {
		stmt.Cond = p.parseExpr(precLowest)
	}
	p.expect(lexer.TokenSemicolon)
	if !p.curTokenIs(lexer.TokenRParen) {
		stmt.Update = p.parseExpr(precLowest)
	}
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	stmt.Body = p.parseStmt()
	return stmt
}

func (p *Parser) parseReturn() ast.Stmt {
	p.nextToken() // return
	stmt := &ast.Return{}
	if !p.curTokenIs(lexer.TokenSemicolon) {
		stmt.Value = p.parseExpr(precLowest)
	}
	p.expect(lexer.TokenSemicolon)
	return stmt
}

func (p *Parser) parseInput() ast.Stmt {
	p.nextToken() // input
	if !p.curTokenIs(lexer.TokenIdent) {
		p.addError(fmt.Sprintf("expected variable name after input, got %s", p.curToken.Type))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	p.expect(lexer.TokenSemicolon)
	return &ast.InputStmt{Name: name}
}

func (p *Parser) parseOutput() ast.Stmt {
	p.nextToken() // output
	x := p.parseExpr(precLowest)
	p.expect(lexer.TokenSemicolon)
	return &ast.OutputStmt{X: x}
}

func (p *Parser) parseSwitch() ast.Stmt {
	p.nextToken() // switch
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpr(precLowest)
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	return &ast.Switch{Cond: cond, Body: p.parseBlock()}
}

func (p *Parser) parseCase() ast.Stmt {
	p.nextToken() // case
	neg := false
	if p.curTokenIs(lexer.TokenMinus) {
		neg = true
		p.nextToken()
	}
	if !p.curTokenIs(lexer.TokenInt) {
		p.addError(fmt.Sprintf("expected case value, got %s", p.curToken.Type))
		return nil
	}
	n, _ := strconv.Atoi(p.curToken.Literal)
	if neg {
		n = -n
	}
	p.nextToken()
	p.expect(lexer.TokenColon)
	return &ast.Case{Value: n}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	x := p.parseExpr(precLowest)
	if x == nil {
		return nil
	}
	p.expect(lexer.TokenSemicolon)
	return &ast.ExprStmt{X: x}
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// parseExpr is the Pratt-parsing core
func (p *Parser) parseExpr(prec int) ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for prec < p.curPrecedence() {
		switch p.curToken.Type {
		case lexer.TokenAssign:
			p.nextToken()
			// Right-associative
			value := p.parseExpr(precAssign - 1)
			left = &ast.Assign{Target: left, Value: value}
		case lexer.TokenLBracket:
			p.nextToken()
			idx := p.parseExpr(precLowest)
			p.expect(lexer.TokenRBracket)
			left = &ast.ArrayAccess{Array: left, Index: idx}
		case lexer.TokenDot, lexer.TokenArrow:
			isPtr := p.curTokenIs(lexer.TokenArrow)
			p.nextToken()
			if !p.curTokenIs(lexer.TokenIdent) {
				p.addError(fmt.Sprintf("expected member name, got %s", p.curToken.Type))
				return left
			}
			left = &ast.MemberAccess{Object: left, Field: p.curToken.Literal, IsPtr: isPtr}
			p.nextToken()
		default:
			op, ok := binaryOps[p.curToken.Type]
			if !ok {
				return left
			}
			opPrec := p.curPrecedence()
			p.nextToken()
			right := p.parseExpr(opPrec)
			left = &ast.Binary{Op: op, Left: left, Right: right}
		}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenMinus:
		p.nextToken()
		return &ast.Unary{Op: ast.OpNeg, X: p.parseExpr(precUnary)}
	case lexer.TokenAmpersand:
		p.nextToken()
		return &ast.Unary{Op: ast.OpAddrOf, X: p.parseExpr(precUnary)}
	case lexer.TokenStar:
		p.nextToken()
		return &ast.Unary{Op: ast.OpDeref, X: p.parseExpr(precUnary)}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		n, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer literal %q", p.curToken.Literal))
		}
		p.nextToken()
		return &ast.ConstInt{Value: n}
	case lexer.TokenCharLit:
		var c byte
		if len(p.curToken.Literal) > 0 {
			c = p.curToken.Literal[0]
		}
		p.nextToken()
		return &ast.ConstChar{Value: c}
	case lexer.TokenStringLit:
		lit := p.curToken.Literal
		p.nextToken()
		return &ast.StringLit{Value: lit}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.TokenLParen) {
			return p.parseCallArgs(name)
		}
		return &ast.Ident{Name: name}
	case lexer.TokenLParen:
		p.nextToken()
		x := p.parseExpr(precLowest)
		p.expect(lexer.TokenRParen)
		return x
	default:
		p.addError(fmt.Sprintf("unexpected token %s in expression", p.curToken.Type))
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseCallArgs(name string) ast.Expr {
	p.nextToken() // (
	call := &ast.Call{Name: name}
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		arg := p.parseExpr(precLowest)
		if arg != nil {
			call.Args = append(call.Args, arg)
		}
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRParen)
	return call
}
