// Package tacgen lowers the AST into the linearized three-address
// instruction list. The builder composes code fragments bottom-up through
// prev pointers only; Complete walks the finished chain once to assign the
// forward next pointers.
package tacgen

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// loopContext tracks the labels of the innermost enclosing loop.
type loopContext struct {
	breakLabel    *tac.Sym
	continueLabel *tac.Sym
	loopStart     *tac.Sym
}

// switchContext tracks the dispatch labels of the innermost enclosing switch.
// Cases are kept in declaration order so the dispatch cascade is deterministic.
type switchContext struct {
	breakLabel   *tac.Sym
	defaultLabel *tac.Sym
	caseValues   []int
	caseLabels   map[int]*tac.Sym
}

// Generator is the stateful TAC builder. It owns the symbol tables, the
// label and temporary counters, and the lexical loop/switch context stacks.
type Generator struct {
	scope     tac.Scope
	nextTmp   int
	nextLabel int

	symGlobal map[string]*tac.Sym
	symLocal  map[string]*tac.Sym

	currentFunc *tac.Sym

	tacFirst *tac.Instr
	tacLast  *tac.Instr

	loopStack   []loopContext
	switchStack []*switchContext

	errw io.Writer
}

// New creates a Generator whose diagnostics go to errw.
func New(errw io.Writer) *Generator {
	return &Generator{
		scope:     tac.Global,
		nextLabel: 1,
		symGlobal: make(map[string]*tac.Sym),
		symLocal:  make(map[string]*tac.Sym),
		errw:      errw,
	}
}

// First returns the head of the completed instruction list.
func (g *Generator) First() *tac.Instr { return g.tacFirst }

// Last returns the tail of the instruction chain built so far.
func (g *Generator) Last() *tac.Instr { return g.tacLast }

// SetFirst replaces the list head after in-place optimization removed it.
func (g *Generator) SetFirst(first *tac.Instr) { g.tacFirst = first }

// Globals returns the global symbol table.
func (g *Generator) Globals() map[string]*tac.Sym { return g.symGlobal }

// Complete walks the tail chain backwards once, assigning next pointers to
// produce the final forward-linked list.
func (g *Generator) Complete() {
	var cur *tac.Instr
	prev := g.tacLast
	for prev != nil {
		prev.Next = cur
		cur = prev
		prev = prev.Prev
	}
	g.tacFirst = cur
}

// Join appends chain c2 after chain c1 by linking the head of c2 to c1.
// Either argument may be nil. It returns the tail of the joined chain.
func (g *Generator) Join(c1, c2 *tac.Instr) *tac.Instr {
	if c1 == nil {
		return c2
	}
	if c2 == nil {
		return c1
	}
	t := c2
	for t.Prev != nil {
		t = t.Prev
	}
	t.Prev = c1
	return c2
}

// Link appends a finished top-level chain to the program.
func (g *Generator) Link(code *tac.Instr) {
	g.tacLast = g.Join(g.tacLast, code)
}

// MkInstr creates an unlinked instruction.
func (g *Generator) MkInstr(op tac.Op, a, b, c *tac.Sym) *tac.Instr {
	return tac.NewInstr(op, a, b, c)
}

// lookup finds a name, checking the local table first when in local scope.
func (g *Generator) lookup(name string) *tac.Sym {
	if g.scope == tac.Local {
		if s, ok := g.symLocal[name]; ok {
			return s
		}
	}
	if s, ok := g.symGlobal[name]; ok {
		return s
	}
	return nil
}

// Lookup finds a declared name in the current scope chain.
func (g *Generator) Lookup(name string) *tac.Sym { return g.lookup(name) }

func (g *Generator) insert(s *tac.Sym) {
	if g.scope == tac.Local {
		g.symLocal[s.Name] = s
	} else {
		g.symGlobal[s.Name] = s
	}
}

// MkVar declares a new variable in the current scope. A duplicate
// declaration within the same scope is reported and the existing symbol
// returned; a local may shadow a global of the same name.
func (g *Generator) MkVar(name string, dtype ctypes.DataType) *tac.Sym {
	table := g.symGlobal
	if g.scope == tac.Local {
		table = g.symLocal
	}
	if s, ok := table[name]; ok {
		g.Error("Variable already declared: " + name)
		return s
	}
	s := tac.NewSym()
	s.Kind = tac.SymVar
	s.Type = dtype
	s.Name = name
	s.Scope = g.scope
	g.insert(s)
	return s
}

// MkTmp yields a fresh temporary named t<N> in the current scope.
func (g *Generator) MkTmp(dtype ctypes.DataType) *tac.Sym {
	s := tac.NewSym()
	s.Kind = tac.SymVar
	s.Type = dtype
	s.Name = "t" + strconv.Itoa(g.nextTmp)
	s.Scope = g.scope
	g.nextTmp++
	g.insert(s)
	return s
}

// MkConst returns the interned symbol for an integer literal.
func (g *Generator) MkConst(value int) *tac.Sym {
	name := strconv.Itoa(value)
	if s, ok := g.symGlobal[name]; ok {
		return s
	}
	s := tac.NewSym()
	s.Kind = tac.SymConstInt
	s.Type = ctypes.Int
	s.Name = name
	s.IntVal = value
	s.Scope = tac.Global
	g.symGlobal[name] = s
	return s
}

// MkConstChar returns the interned symbol for a character literal.
func (g *Generator) MkConstChar(value byte) *tac.Sym {
	name := "'" + string(value) + "'"
	if s, ok := g.symGlobal[name]; ok {
		return s
	}
	s := tac.NewSym()
	s.Kind = tac.SymConstChar
	s.Type = ctypes.Char
	s.Name = name
	s.CharVal = value
	s.Scope = tac.Global
	g.symGlobal[name] = s
	return s
}

// MkText returns the interned symbol for a string literal, assigning a
// numeric label on first use. The literal keeps its surrounding quotes.
func (g *Generator) MkText(text string) *tac.Sym {
	if s, ok := g.symGlobal[text]; ok {
		return s
	}
	s := tac.NewSym()
	s.Kind = tac.SymText
	s.Name = text
	s.Text = text
	s.Label = g.nextLabel
	s.Scope = tac.Global
	g.nextLabel++
	g.symGlobal[text] = s
	return s
}

// MkLabel yields a label symbol with the given name.
func (g *Generator) MkLabel(name string) *tac.Sym {
	s := tac.NewSym()
	s.Kind = tac.SymLabel
	s.Name = name
	s.Scope = g.scope
	return s
}

// freshLabel yields a label symbol named L<N>.
func (g *Generator) freshLabel() *tac.Sym {
	name := "L" + strconv.Itoa(g.nextLabel)
	g.nextLabel++
	return g.MkLabel(name)
}

// GetVar looks up a declared variable; use of an undeclared name or of a
// non-variable is reported.
func (g *Generator) GetVar(name string) *tac.Sym {
	s := g.lookup(name)
	if s == nil {
		g.Error("Variable not declared: " + name)
		return nil
	}
	if s.Kind != tac.SymVar {
		g.Error("Not a variable: " + name)
		return nil
	}
	return s
}

// DeclareFunc registers a function in the global table and makes it current.
func (g *Generator) DeclareFunc(name string, returnType ctypes.DataType) *tac.Sym {
	if s, ok := g.symGlobal[name]; ok {
		if s.Kind == tac.SymFunc {
			g.Error("Function already declared: " + name)
			return s
		}
		g.Error("Name already used: " + name)
		return nil
	}
	s := tac.NewSym()
	s.Kind = tac.SymFunc
	s.Type = returnType
	s.ReturnType = returnType
	s.Name = name
	s.Scope = tac.Global
	g.symGlobal[name] = s
	g.currentFunc = s
	return s
}

// EnterScope switches to local scope with a fresh local table.
func (g *Generator) EnterScope() {
	g.scope = tac.Local
	g.symLocal = make(map[string]*tac.Sym)
}

// LeaveScope returns to global scope, discarding local symbols.
func (g *Generator) LeaveScope() {
	g.scope = tac.Global
	g.symLocal = make(map[string]*tac.Sym)
}

func (g *Generator) enterLoop(breakLabel, continueLabel, loopStart *tac.Sym) {
	g.loopStack = append(g.loopStack, loopContext{
		breakLabel:    breakLabel,
		continueLabel: continueLabel,
		loopStart:     loopStart,
	})
}

func (g *Generator) leaveLoop() {
	if len(g.loopStack) > 0 {
		g.loopStack = g.loopStack[:len(g.loopStack)-1]
	}
}

func (g *Generator) inLoop() bool { return len(g.loopStack) > 0 }

func (g *Generator) enterSwitch(breakLabel, defaultLabel *tac.Sym) {
	g.switchStack = append(g.switchStack, &switchContext{
		breakLabel:   breakLabel,
		defaultLabel: defaultLabel,
		caseLabels:   make(map[int]*tac.Sym),
	})
}

func (g *Generator) leaveSwitch() {
	if g.inSwitch() {
		g.switchStack = g.switchStack[:len(g.switchStack)-1]
	} else {
		g.Error("Not in a switch context")
	}
}

func (g *Generator) inSwitch() bool { return len(g.switchStack) > 0 }

// Error reports a recoverable error; compilation continues.
func (g *Generator) Error(msg string) {
	fmt.Fprintf(g.errw, "TAC Error: %s\n", msg)
}

// Warning reports a non-fatal diagnostic.
func (g *Generator) Warning(msg string) {
	fmt.Fprintf(g.errw, "TAC Warning: %s\n", msg)
}

// Print writes the completed instruction list to w, one instruction per line.
func (g *Generator) Print(w io.Writer) {
	tac.Print(w, g.tacFirst)
}

// PrintSymbols dumps the global symbol table.
func (g *Generator) PrintSymbols(w io.Writer) {
	fmt.Fprintln(w, "\n=== Global Symbol Table ===")
	for _, name := range sortedKeys(g.symGlobal) {
		s := g.symGlobal[name]
		fmt.Fprintf(w, "%6s : ", s.Name)
		switch s.Kind {
		case tac.SymVar:
			fmt.Fprintf(w, "VAR[%s]", s.Type)
			if s.Offset >= 0 {
				fmt.Fprintf(w, " @%d", s.Offset)
			}
		case tac.SymFunc:
			fmt.Fprintf(w, "FUNC[%s](", s.ReturnType)
			for i, pt := range s.ParamTypes {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprint(w, pt)
			}
			fmt.Fprint(w, ")")
		case tac.SymConstInt:
			fmt.Fprintf(w, "CONST_INT = %d", s.IntVal)
		case tac.SymConstChar:
			fmt.Fprintf(w, "CONST_CHAR = '%c'", s.CharVal)
		case tac.SymText:
			fmt.Fprintf(w, "TEXT @L%d", s.Label)
		case tac.SymStructType:
			fmt.Fprintf(w, "STRUCT size=%d", s.Struct.TotalSize)
		default:
			fmt.Fprint(w, "UNKNOWN")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]*tac.Sym) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
