package asmgen

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// Generator emits assembly for a completed instruction list. It is
// rebuilt fresh for every code-generation run.
type Generator struct {
	w       io.Writer
	errw    io.Writer
	first   *tac.Instr
	globals map[string]*tac.Sym

	regs regFile
	rng  *rand.Rand

	tos int // top of static (global variables)
	tof int // top of frame (local variables)
	oof int // offset of next formal parameter
	oon int // offset into the outgoing-argument area
}

// New creates a Generator writing assembly to w and diagnostics to errw.
// The globals table supplies the text literals for the static section.
func New(w, errw io.Writer, first *tac.Instr, globals map[string]*tac.Sym) *Generator {
	return &Generator{
		w:       w,
		errw:    errw,
		first:   first,
		globals: globals,
		// Fixed seed: eviction order must be reproducible across runs.
		rng: rand.New(rand.NewSource(1)),
	}
}

// fatal reports an unrecoverable code-generation error and returns it.
func (g *Generator) fatal(msg string) error {
	fmt.Fprintf(g.errw, "Assembly Generation Error: %s\n", msg)
	return errors.New(msg)
}

// Generate walks the instruction list once in order and emits the
// complete program: prologue, code, epilogue, and static section.
func (g *Generator) Generate() error {
	g.tof = LocalOff
	g.oof = FormalOff
	g.oon = 0
	for r := 0; r < RNum; r++ {
		g.regs.clear(r)
	}

	g.emitHead()
	g.emitJumpToMain()

	for cur := g.first; cur != nil; cur = cur.Next {
		fmt.Fprintf(g.w, "\n\t# %s\n", cur)
		if err := g.emitInstr(cur); err != nil {
			return errors.Wrap(err, "code generation aborted")
		}
	}

	g.emitTail()
	g.emitStatic()
	return nil
}

// emitHead initializes BP to the stack base and plants EXIT as the
// outermost return address.
func (g *Generator) emitHead() {
	fmt.Fprintf(g.w, "\tLOD R%d,STACK\n", RBP)
	fmt.Fprintf(g.w, "\tSTO (R%d),0\n", RBP)
	fmt.Fprintf(g.w, "\tLOD R%d,EXIT\n", RTP)
	fmt.Fprintf(g.w, "\tSTO (R%d+4),R%d\n", RBP, RTP)
}

// emitJumpToMain emits JMP main unless the first function label is main.
func (g *Generator) emitJumpToMain() {
	for cur := g.first; cur != nil; cur = cur.Next {
		if cur.Op == tac.Label {
			if cur.A.Name == "main" {
				return
			}
			break
		}
	}
	fmt.Fprint(g.w, "\n\t# Jump to main\n")
	fmt.Fprint(g.w, "\tJMP main\n")
}

func (g *Generator) emitTail() {
	fmt.Fprint(g.w, "EXIT:\n")
	fmt.Fprint(g.w, "\tEND\n")
}

func (g *Generator) emitInstr(t *tac.Instr) error {
	switch t.Op {
	case tac.Undef:
		return g.fatal("Cannot translate undefined instruction")

	case tac.Add:
		_, err := g.emitBin("ADD", t.A, t.B, t.C)
		return err
	case tac.Sub:
		_, err := g.emitBin("SUB", t.A, t.B, t.C)
		return err
	case tac.Mul:
		_, err := g.emitBin("MUL", t.A, t.B, t.C)
		return err
	case tac.Div:
		_, err := g.emitBin("DIV", t.A, t.B, t.C)
		return err

	case tac.Neg:
		zero := tac.NewSym()
		zero.Kind = tac.SymConstInt
		zero.Type = ctypes.Int
		_, err := g.emitBin("SUB", t.A, zero, t.B)
		return err

	case tac.Eq, tac.Ne, tac.Lt, tac.Le, tac.Gt, tac.Ge:
		return g.emitCmp(t.Op, t.A, t.B, t.C)

	case tac.Copy:
		r, err := g.regAlloc(t.B)
		if err != nil {
			return err
		}
		g.regs.fill(r, t.A, Modified)
		return nil

	case tac.Input:
		r, err := g.regAlloc(t.A)
		if err != nil {
			return err
		}
		switch t.A.Type {
		case ctypes.Char:
			fmt.Fprint(g.w, "\tITC\n")
		case ctypes.Int:
			fmt.Fprint(g.w, "\tITI\n")
		default:
			return g.fatal("Unsupported data type for INPUT")
		}
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", r, RIO)
		g.regs.desc[r].state = Modified
		return nil

	case tac.Output:
		r, err := g.regAlloc(t.A)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", RIO, r)
		switch {
		case t.A.Kind == tac.SymConstInt ||
			(t.A.Kind == tac.SymVar && t.A.Type == ctypes.Int):
			fmt.Fprint(g.w, "\tOTI\n")
		case t.A.Kind == tac.SymConstChar ||
			(t.A.Kind == tac.SymVar && t.A.Type == ctypes.Char):
			fmt.Fprint(g.w, "\tOTC\n")
		case t.A.Kind == tac.SymText:
			fmt.Fprint(g.w, "\tOTS\n")
		}
		return nil

	case tac.Goto:
		return g.emitCond("JMP", nil, t.A.Name)

	case tac.Ifz:
		return g.emitCond("JEZ", t.B, t.A.Name)

	case tac.Label:
		g.writeBackAll()
		g.regs.clearAll()
		fmt.Fprintf(g.w, "%s:\n", t.A.Name)
		return nil

	case tac.Actual:
		r, err := g.regAlloc(t.A)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.w, "\tSTO (R%d+%d),R%d\n", RBP, g.tof+g.oon, r)
		g.oon += 4
		return nil

	case tac.Call:
		return g.emitCall(t.A, t.B)

	case tac.BeginFunc:
		g.tof = LocalOff
		g.oof = FormalOff
		g.oon = 0
		return nil

	case tac.Formal:
		t.A.Scope = tac.Local
		t.A.Offset = g.oof
		g.oof -= 4
		return nil

	case tac.Var:
		size := t.A.Size()
		if t.A.Scope == tac.Local {
			t.A.Offset = g.tof
			g.tof += size
		} else {
			t.A.Offset = g.tos
			g.tos += size
		}
		return nil

	case tac.Return:
		return g.emitReturn(t.A)

	case tac.EndFunc:
		return g.emitReturn(nil)

	case tac.Addr:
		return g.emitAddr(t.A, t.B)

	case tac.LoadPtr:
		return g.emitLoadPtr(t.A, t.B)

	case tac.StorePtr:
		return g.emitStorePtr(t.A, t.B)

	default:
		return g.fatal(fmt.Sprintf("Unknown TAC opcode: %d", t.Op))
	}
}

// emitBin computes a = b OP c into b's register. The b register is marked
// Modified while c is allocated so the allocator cannot evict it.
func (g *Generator) emitBin(op string, a, b, c *tac.Sym) (int, error) {
	regB, err := g.regAlloc(b)
	if err != nil {
		return -1, err
	}

	originalState := g.regs.desc[regB].state
	g.regs.desc[regB].state = Modified

	if val, ok := c.ConstValue(); ok {
		fmt.Fprintf(g.w, "\t%s R%d,%d\n", op, regB, val)
		g.regs.fill(regB, a, Modified)
		return regB, nil
	}

	regC, err := g.regAlloc(c)
	if err != nil {
		return -1, err
	}
	g.regs.desc[regB].state = originalState

	if regB == regC {
		// Same variable on both sides: copy c aside first.
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", RTP, regC)
		regC = RTP
	}

	fmt.Fprintf(g.w, "\t%s R%d,R%d\n", op, regB, regC)
	g.regs.fill(regB, a, Modified)
	return regB, nil
}

// emitCmp computes b - c, tests it, and runs a fixed IP-relative branch
// sequence leaving 0 or 1 in the result register.
func (g *Generator) emitCmp(op tac.Op, a, b, c *tac.Sym) error {
	regB, err := g.emitBin("SUB", a, b, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.w, "\tTST R%d\n", regB)

	// Each comparison branches over a two-instruction arm: the jump lands
	// 40 bytes ahead (the far arm), the fall-through reloads IP+24.
	emitSeq := func(jump string, farVal, nearVal int) {
		fmt.Fprintf(g.w, "\tLOD R%d,R%d+40\n", RJP, RIP)
		fmt.Fprintf(g.w, "\t%s R%d\n", jump, RJP)
		fmt.Fprintf(g.w, "\tLOD R%d,%d\n", regB, nearVal)
		fmt.Fprintf(g.w, "\tLOD R%d,R%d+24\n", RJP, RIP)
		fmt.Fprintf(g.w, "\tJMP R%d\n", RJP)
		fmt.Fprintf(g.w, "\tLOD R%d,%d\n", regB, farVal)
	}

	switch op {
	case tac.Eq:
		emitSeq("JEZ", 1, 0)
	case tac.Ne:
		emitSeq("JEZ", 0, 1)
	case tac.Lt:
		emitSeq("JLZ", 1, 0)
	case tac.Le:
		emitSeq("JGZ", 0, 1)
	case tac.Gt:
		emitSeq("JGZ", 1, 0)
	case tac.Ge:
		emitSeq("JLZ", 0, 1)
	default:
		return g.fatal("Unknown comparison operator")
	}

	g.regs.clear(regB)
	g.regs.fill(regB, a, Modified)
	return nil
}

// emitCond writes back every register, tests the condition symbol when
// present, emits the branch, and clears the descriptors: control-flow
// points force consistency with memory.
func (g *Generator) emitCond(op string, a *tac.Sym, label string) error {
	g.writeBackAll()

	if a != nil {
		r := g.regs.holds(a)
		if r < 0 {
			var err error
			r, err = g.regAlloc(a)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(g.w, "\tTST R%d\n", r)
	}

	fmt.Fprintf(g.w, "\t%s %s\n", op, label)
	g.regs.clearAll()
	return nil
}

// emitCall lays down the dynamic chain and return address in the outgoing
// area, rebases BP, and jumps. The return value comes back in the
// temporary pointer register.
func (g *Generator) emitCall(ret, fn *tac.Sym) error {
	g.writeBackAll()
	g.regs.clearAll()

	// Store old BP
	fmt.Fprintf(g.w, "\tSTO (R%d+%d),R%d\n", RBP, g.tof+g.oon, RBP)
	g.oon += 4

	// Store return address: IP plus the length of the four instructions
	// remaining in this sequence.
	fmt.Fprintf(g.w, "\tLOD R%d,R%d+32\n", RTP, RIP)
	fmt.Fprintf(g.w, "\tSTO (R%d+%d),R%d\n", RBP, g.tof+g.oon, RTP)
	g.oon += 4

	// Load new BP
	fmt.Fprintf(g.w, "\tLOD R%d,R%d+%d\n", RBP, RBP, g.tof+g.oon-8)

	fmt.Fprintf(g.w, "\tJMP %s\n", fn.Name)

	if ret != nil {
		r, err := g.regAlloc(ret)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", r, RTP)
		g.regs.desc[r].state = Modified
	}

	g.oon = 0
	return nil
}

// emitReturn restores the caller's frame and jumps to the return address.
// A return value travels in the temporary pointer register.
func (g *Generator) emitReturn(retVal *tac.Sym) error {
	g.writeBackAll()
	g.regs.clearAll()

	if retVal != nil {
		if err := g.load(RTP, retVal); err != nil {
			return err
		}
	}

	fmt.Fprintf(g.w, "\tLOD R%d,(R%d+4)\n", RJP, RBP)
	fmt.Fprintf(g.w, "\tLOD R%d,(R%d)\n", RBP, RBP)
	fmt.Fprintf(g.w, "\tJMP R%d\n", RJP)
	return nil
}

// emitAddr computes the effective address of b into a free register.
func (g *Generator) emitAddr(a, b *tac.Sym) error {
	if r := g.regs.holds(b); r >= 0 && g.regs.desc[r].state == Modified {
		g.writeBack(r)
	}

	r := g.regs.free()
	if r < 0 {
		r = g.regs.unmodified(-1)
	}
	if r < 0 {
		r = RGen
		g.writeBack(r)
	}

	if b.Scope == tac.Local {
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", r, RBP)
		if b.Offset >= 0 {
			fmt.Fprintf(g.w, "\tADD R%d,%d\n", r, b.Offset)
		} else {
			fmt.Fprintf(g.w, "\tSUB R%d,%d\n", r, -b.Offset)
		}
	} else {
		fmt.Fprintf(g.w, "\tLOD R%d,STATIC\n", r)
		fmt.Fprintf(g.w, "\tADD R%d,%d\n", r, b.Offset)
	}

	g.regs.fill(r, a, Modified)
	return nil
}

// emitLoadPtr loads through the pointer in b into a register distinct
// from the pointer's register.
func (g *Generator) emitLoadPtr(a, b *tac.Sym) error {
	regPtr, err := g.regAlloc(b)
	if err != nil {
		return err
	}

	regVal := g.regs.free()
	if regVal < 0 {
		regVal = g.regs.unmodified(regPtr)
		if regVal >= 0 {
			g.regs.clear(regVal)
		}
	}
	if regVal < 0 {
		for i := RGen; i < RIO; i++ {
			if i != regPtr {
				regVal = i
				g.writeBack(regVal)
				g.regs.clear(regVal)
				break
			}
		}
	}

	if a.Type == ctypes.Char {
		fmt.Fprintf(g.w, "\tLDC R%d,(R%d)\n", regVal, regPtr)
	} else {
		fmt.Fprintf(g.w, "\tLOD R%d,(R%d)\n", regVal, regPtr)
	}
	g.regs.fill(regVal, a, Modified)
	return nil
}

// emitStorePtr stores b through the pointer in a, then flushes and clears
// every descriptor: an arbitrary memory cell may have been overwritten.
func (g *Generator) emitStorePtr(a, b *tac.Sym) error {
	regPtr, err := g.regAlloc(a)
	if err != nil {
		return err
	}
	regVal, err := g.regAlloc(b)
	if err != nil {
		return err
	}

	if regPtr == regVal {
		// The second allocation displaced the pointer; reload it from its
		// home location into the temporary pointer register.
		regPtr = RTP
		if a.Scope == tac.Local {
			fmt.Fprintf(g.w, "\tLOD R%d,(R%d%s)\n", regPtr, RBP, offsetSuffix(a.Offset))
		} else {
			fmt.Fprintf(g.w, "\tLOD R%d,STATIC\n", RTP)
			fmt.Fprintf(g.w, "\tLOD R%d,(R%d+%d)\n", regPtr, RTP, a.Offset)
		}
	}

	if b.Type == ctypes.Char {
		fmt.Fprintf(g.w, "\tSTC (R%d),R%d\n", regPtr, regVal)
	} else {
		fmt.Fprintf(g.w, "\tSTO (R%d),R%d\n", regPtr, regVal)
	}

	for i := RGen; i < RIO; i++ {
		if g.regs.desc[i].v != nil && g.regs.desc[i].v.Kind == tac.SymVar &&
			g.regs.desc[i].state == Modified {
			g.writeBack(i)
		}
	}
	g.regs.clearAll()
	return nil
}
