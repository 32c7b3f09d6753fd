// Package opt runs per-block fixed-point optimization over the linked
// instruction list: constant folding, constant propagation, copy
// propagation, and dead-code elimination.
package opt

import (
	"fmt"
	"io"

	"github.com/minic-lang/minic/pkg/cfg"
	"github.com/minic-lang/minic/pkg/ctypes"
	"github.com/minic-lang/minic/pkg/tac"
)

// maxRounds bounds the per-block pass iteration.
const maxRounds = 10

// Optimizer mutates the instruction list in place.
type Optimizer struct {
	first *tac.Instr
	errw  io.Writer
}

// New creates an Optimizer over the list starting at first. Warnings go
// to errw.
func New(first *tac.Instr, errw io.Writer) *Optimizer {
	return &Optimizer{first: first, errw: errw}
}

// First returns the (possibly updated) list head after optimization.
func (o *Optimizer) First() *tac.Instr { return o.first }

func (o *Optimizer) warning(pass, msg string) {
	fmt.Fprintf(o.errw, "Opt[%s] Warning: %s\n", pass, msg)
}

// makeConst creates an ephemeral integer constant symbol. These never
// enter the symbol table.
func makeConst(value int) *tac.Sym {
	s := tac.NewSym()
	s.Kind = tac.SymConstInt
	s.Type = ctypes.Int
	s.IntVal = value
	return s
}

// Optimize builds the CFG and iterates each block to a fixed point.
// It returns the list head, which may change when dead code is removed.
func (o *Optimizer) Optimize() *tac.Instr {
	builder := cfg.NewBuilder(o.first)
	builder.Build()
	blocks := builder.Blocks()

	for _, b := range blocks {
		o.optimizeBlock(b, blocks)
	}
	return o.first
}

func (o *Optimizer) optimizeBlock(b *cfg.Block, blocks []*cfg.Block) {
	for round := 0; round < maxRounds; round++ {
		changed := false
		if o.foldConstants(b) {
			changed = true
		}
		if o.propagateConstants(b) {
			changed = true
		}
		if o.propagateCopies(b) {
			changed = true
		}
		if o.eliminateDeadCode(b, blocks) {
			changed = true
		}
		if !changed {
			break
		}
	}
}

// each visits the block's instructions in order.
func each(b *cfg.Block, f func(*tac.Instr)) {
	for cur := b.Start; cur != nil; cur = cur.Next {
		f(cur)
		if cur == b.End {
			break
		}
	}
}

// foldConstants rewrites arithmetic, comparison, and negation instructions
// with all-constant operands into COPY of the computed constant. Division
// by zero is left unfolded with a warning.
func (o *Optimizer) foldConstants(b *cfg.Block) bool {
	changed := false
	each(b, func(cur *tac.Instr) {
		switch {
		case cur.Op.IsArith():
			valB, okB := constOf(cur.B)
			valC, okC := constOf(cur.C)
			if !okB || !okC {
				return
			}
			var result int
			switch cur.Op {
			case tac.Add:
				result = valB + valC
			case tac.Sub:
				result = valB - valC
			case tac.Mul:
				result = valB * valC
			case tac.Div:
				if valC == 0 {
					o.warning("Constant Folding", "Division by zero!!!")
					return
				}
				result = valB / valC
			}
			cur.Op = tac.Copy
			cur.B = makeConst(result)
			cur.C = nil
			changed = true

		case cur.Op.IsCompare():
			valB, okB := constOf(cur.B)
			valC, okC := constOf(cur.C)
			if !okB || !okC {
				return
			}
			var truth bool
			switch cur.Op {
			case tac.Eq:
				truth = valB == valC
			case tac.Ne:
				truth = valB != valC
			case tac.Lt:
				truth = valB < valC
			case tac.Le:
				truth = valB <= valC
			case tac.Gt:
				truth = valB > valC
			case tac.Ge:
				truth = valB >= valC
			}
			result := 0
			if truth {
				result = 1
			}
			cur.Op = tac.Copy
			cur.B = makeConst(result)
			cur.C = nil
			changed = true

		case cur.Op == tac.Neg:
			valB, ok := constOf(cur.B)
			if !ok {
				return
			}
			cur.Op = tac.Copy
			cur.B = makeConst(-valB)
			cur.C = nil
			changed = true
		}
	})
	return changed
}

func constOf(s *tac.Sym) (int, bool) {
	if s == nil {
		return 0, false
	}
	return s.ConstValue()
}

// isPointerOp reports whether operand substitution must be suppressed:
// pointer instructions need the variable identity, not its value.
func isPointerOp(op tac.Op) bool {
	return op == tac.Addr || op == tac.LoadPtr || op == tac.StorePtr
}

// propagateConstants performs a single forward pass, replacing uses of
// variables with known constant values.
func (o *Optimizer) propagateConstants(b *cfg.Block) bool {
	changed := false
	consts := make(map[*tac.Sym]int)

	each(b, func(cur *tac.Instr) {
		pointerOp := isPointerOp(cur.Op)

		if cur.B != nil && cur.B.Kind == tac.SymVar && !pointerOp {
			if val, ok := consts[cur.B]; ok {
				cur.B = makeConst(val)
				changed = true
			}
		}
		if cur.C != nil && cur.C.Kind == tac.SymVar && !pointerOp {
			if val, ok := consts[cur.C]; ok {
				cur.C = makeConst(val)
				changed = true
			}
		}
		switch cur.Op {
		case tac.Return, tac.Output, tac.Ifz, tac.Actual:
			if cur.A != nil && cur.A.Kind == tac.SymVar {
				if val, ok := consts[cur.A]; ok {
					cur.A = makeConst(val)
					changed = true
				}
			}
		}

		switch {
		case cur.Op == tac.Copy && cur.A != nil && cur.B != nil:
			if val, ok := constOf(cur.B); ok {
				if cur.A.Kind == tac.SymVar {
					consts[cur.A] = val
				}
			} else {
				delete(consts, cur.A)
			}
		case cur.A != nil && redefines(cur.Op):
			delete(consts, cur.A)
		case cur.Op == tac.Addr && cur.A != nil && cur.B != nil:
			// The variable may be written through the pointer from now on.
			delete(consts, cur.B)
		}
	})
	return changed
}

// redefines reports whether the opcode invalidates constant knowledge of
// its a operand.
func redefines(op tac.Op) bool {
	if op.IsArith() || op.IsCompare() {
		return true
	}
	switch op {
	case tac.Neg, tac.Call, tac.Input, tac.StorePtr, tac.LoadPtr:
		return true
	}
	return false
}

// propagateCopies performs a single forward pass, replacing uses of copy
// targets with their sources.
func (o *Optimizer) propagateCopies(b *cfg.Block) bool {
	changed := false
	copies := make(map[*tac.Sym]*tac.Sym)

	each(b, func(cur *tac.Instr) {
		if cur.Op == tac.Copy && cur.A != nil && cur.B != nil && cur.B.Kind == tac.SymVar {
			copies[cur.A] = cur.B
		} else if cur.A != nil {
			delete(copies, cur.A)
		}

		pointerOp := isPointerOp(cur.Op)
		if cur.B != nil && cur.B.Kind == tac.SymVar && !pointerOp {
			if src, ok := copies[cur.B]; ok {
				cur.B = src
				changed = true
			}
		}
		if cur.C != nil && cur.C.Kind == tac.SymVar && !pointerOp {
			if src, ok := copies[cur.C]; ok {
				cur.C = src
				changed = true
			}
		}
	})
	return changed
}

// eliminateDeadCode removes computational instructions, and VAR
// declarations, whose defined symbol is neither used in the block nor live
// on block exit. Global-scope symbols are exempt: their uses span function
// bodies the block-local liveness cannot see, and removing a global VAR
// would leave it without a static-area slot.
func (o *Optimizer) eliminateDeadCode(b *cfg.Block, blocks []*cfg.Block) bool {
	if b.Start == nil {
		return false
	}
	df := cfg.NewDataflow(blocks)

	changed := false
	cur := b.Start
	for cur != nil {
		next := cur.Next
		atEnd := cur == b.End

		if removable(cur.Op) && cur.A != nil && cur.A.Kind == tac.SymVar &&
			cur.A.Scope != tac.Global &&
			!df.Used(b, cur.A) && !df.LiveOut(b, cur.A) {
			o.unlink(b, cur)
			changed = true
		}

		if atEnd {
			break
		}
		cur = next
	}
	return changed
}

// removable reports whether the instruction kind is a candidate for
// dead-code elimination.
func removable(op tac.Op) bool {
	if op.IsArith() || op.IsCompare() {
		return true
	}
	return op == tac.Copy || op == tac.Neg || op == tac.Var
}

// unlink removes the instruction, maintaining the block bounds and the
// list head.
func (o *Optimizer) unlink(b *cfg.Block, cur *tac.Instr) {
	if b.Start == cur && b.End == cur {
		b.Start, b.End = nil, nil
	} else if b.Start == cur {
		b.Start = cur.Next
	} else if b.End == cur {
		b.End = cur.Prev
	}
	if o.first == cur {
		o.first = cur.Next
	}
	cur.Remove()
}
