// Package asmgen walks the linearized instruction list once in order,
// maintaining register descriptors and frame offsets, and emits textual
// assembly for the 16-register target machine.
package asmgen

import (
	"fmt"

	"github.com/minic-lang/minic/pkg/tac"
)

// Register assignments. R0-R4 are reserved, R5-R14 are general purpose,
// R15 is the I/O port.
const (
	RFlag = 0  // flag register
	RIP   = 1  // instruction pointer
	RBP   = 2  // base pointer
	RJP   = 3  // jump scratch
	RTP   = 4  // temporary pointer
	RGen  = 5  // first general purpose register
	RIO   = 15 // I/O register
	RNum  = 16 // total register count
)

// Frame layout offsets relative to BP.
const (
	FormalOff = -4 // first formal parameter
	OldBPOff  = 0  // dynamic chain (old BP)
	RetOff    = 4  // return address
	LocalOff  = 8  // local variables start
)

// RegState records whether a register's value differs from memory.
type RegState int

const (
	Unmodified RegState = iota
	Modified
)

// regDesc is one register descriptor entry.
type regDesc struct {
	v     *tac.Sym
	state RegState
}

// regFile owns the sixteen descriptors and their invariants. All access
// to the general registers goes through this small API.
type regFile struct {
	desc [RNum]regDesc
}

// clear empties a single descriptor.
func (rf *regFile) clear(r int) {
	rf.desc[r].v = nil
	rf.desc[r].state = Unmodified
}

// clearAll empties every general-purpose descriptor.
func (rf *regFile) clearAll() {
	for r := RGen; r < RIO; r++ {
		rf.clear(r)
	}
}

// fill binds a symbol to a register, evicting the symbol from any other
// register that held it.
func (rf *regFile) fill(r int, s *tac.Sym, state RegState) {
	for i := RGen; i < RIO; i++ {
		if rf.desc[i].v == s {
			rf.clear(i)
		}
	}
	rf.desc[r].v = s
	rf.desc[r].state = state
}

// holds returns the general register currently holding s, or -1.
func (rf *regFile) holds(s *tac.Sym) int {
	for r := RGen; r < RIO; r++ {
		if rf.desc[r].v == s {
			return r
		}
	}
	return -1
}

// free returns an empty general register, or -1.
func (rf *regFile) free() int {
	for r := RGen; r < RIO; r++ {
		if rf.desc[r].v == nil {
			return r
		}
	}
	return -1
}

// unmodified returns a clean general register other than avoid, or -1.
func (rf *regFile) unmodified(avoid int) int {
	for r := RGen; r < RIO; r++ {
		if r != avoid && rf.desc[r].state == Unmodified {
			return r
		}
	}
	return -1
}

// writeBack stores a modified register's value to the symbol's home
// location and marks the register clean.
func (g *Generator) writeBack(r int) {
	d := &g.regs.desc[r]
	if d.v == nil || d.state != Modified {
		return
	}
	v := d.v
	if v.Scope == tac.Local {
		fmt.Fprintf(g.w, "\tSTO (R%d%s),R%d\n", RBP, offsetSuffix(v.Offset), r)
	} else {
		fmt.Fprintf(g.w, "\tLOD R%d,STATIC\n", RTP)
		fmt.Fprintf(g.w, "\tSTO (R%d+%d),R%d\n", RTP, v.Offset, r)
	}
	d.state = Unmodified
}

// writeBackAll flushes every modified general register.
func (g *Generator) writeBackAll() {
	for r := RGen; r < RIO; r++ {
		g.writeBack(r)
	}
}

// offsetSuffix renders a frame offset as "+n" or "-n".
func offsetSuffix(off int) string {
	if off >= 0 {
		return fmt.Sprintf("+%d", off)
	}
	return fmt.Sprintf("%d", off)
}

// load emits code placing the symbol's value into register r. Immediate
// constants load directly; variables load from their home location; text
// literals load their label address.
func (g *Generator) load(r int, s *tac.Sym) error {
	if held := g.regs.holds(s); held >= 0 {
		fmt.Fprintf(g.w, "\tLOD R%d,R%d\n", r, held)
		return nil
	}

	switch s.Kind {
	case tac.SymConstInt:
		fmt.Fprintf(g.w, "\tLOD R%d,%d\n", r, s.IntVal)
	case tac.SymConstChar:
		fmt.Fprintf(g.w, "\tLOD R%d,%d\n", r, int(s.CharVal))
	case tac.SymVar:
		if s.Scope == tac.Local {
			fmt.Fprintf(g.w, "\tLOD R%d,(R%d%s)\n", r, RBP, offsetSuffix(s.Offset))
		} else {
			fmt.Fprintf(g.w, "\tLOD R%d,STATIC\n", RTP)
			fmt.Fprintf(g.w, "\tLOD R%d,(R%d+%d)\n", r, RTP, s.Offset)
		}
	case tac.SymText:
		fmt.Fprintf(g.w, "\tLOD R%d,L%d\n", r, s.Label)
	default:
		return g.fatal("Cannot load symbol type: " + s.String())
	}
	return nil
}

// regAlloc places the symbol in a general register and returns it.
// Preference order: already resident (written back first if dirty), any
// empty register, any unmodified register, else a pseudo-random register
// after write-back.
func (g *Generator) regAlloc(s *tac.Sym) (int, error) {
	if r := g.regs.holds(s); r >= 0 {
		if g.regs.desc[r].state == Modified {
			g.writeBack(r)
		}
		return r, nil
	}

	r := g.regs.free()
	if r < 0 {
		r = g.regs.unmodified(-1)
	}
	if r < 0 {
		r = RGen + g.rng.Intn(RIO-RGen)
		g.writeBack(r)
	}
	if err := g.load(r, s); err != nil {
		return -1, err
	}
	g.regs.fill(r, s, Unmodified)
	return r, nil
}
