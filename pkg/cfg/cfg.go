// Package cfg partitions the linearized instruction list into basic blocks
// and wires the control-flow edges between them.
package cfg

import (
	"github.com/minic-lang/minic/pkg/tac"
)

// Block is a maximal straight-line instruction sequence. The Start..End
// range is inclusive along the Next chain.
type Block struct {
	ID    int
	Start *tac.Instr
	End   *tac.Instr
	Preds []*Block
	Succs []*Block
}

// Builder constructs basic blocks and the CFG from a completed list.
type Builder struct {
	first  *tac.Instr
	blocks []*Block
}

// NewBuilder creates a Builder over the list starting at first.
func NewBuilder(first *tac.Instr) *Builder {
	return &Builder{first: first}
}

// Blocks returns the blocks in list order.
func (b *Builder) Blocks() []*Block { return b.blocks }

// Build partitions the list and wires the edges.
func (b *Builder) Build() {
	b.buildBlocks()
	b.buildEdges()
}

// isLeader reports whether the instruction starts a new basic block:
// the first instruction, any LABEL, and any instruction immediately
// following IFZ, GOTO, RETURN, or ENDFUNC. ENDFUNC itself never leads.
func (b *Builder) isLeader(cur, prev *tac.Instr) bool {
	if cur == nil {
		return false
	}
	if cur.Op == tac.EndFunc {
		return false
	}
	if cur == b.first {
		return true
	}
	if cur.Op == tac.Label {
		return true
	}
	if prev != nil {
		switch prev.Op {
		case tac.Ifz, tac.Goto, tac.Return, tac.EndFunc:
			return true
		}
	}
	return false
}

func (b *Builder) buildBlocks() {
	b.blocks = nil
	if b.first == nil {
		return
	}

	leaders := make(map[*tac.Instr]bool)
	var prev *tac.Instr
	for cur := b.first; cur != nil; cur = cur.Next {
		if b.isLeader(cur, prev) {
			leaders[cur] = true
		}
		prev = cur
	}

	var current *Block
	prev = nil
	id := 0
	for cur := b.first; cur != nil; cur = cur.Next {
		if leaders[cur] {
			if current != nil && prev != nil {
				current.End = prev
			}
			current = &Block{ID: id, Start: cur}
			id++
			b.blocks = append(b.blocks, current)
		}
		prev = cur
	}
	if current != nil && prev != nil {
		current.End = prev
	}
}

// FindBlockByLabel returns the block starting with LABEL label.
func (b *Builder) FindBlockByLabel(label *tac.Sym) *Block {
	if label == nil {
		return nil
	}
	for _, blk := range b.blocks {
		if blk.Start != nil && blk.Start.Op == tac.Label &&
			blk.Start.A != nil && blk.Start.A.Name == label.Name {
			return blk
		}
	}
	return nil
}

func link(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// crossesEndFunc reports whether an ENDFUNC lies strictly between end and
// start in list order. Such a fall-through would link two functions.
func crossesEndFunc(end, start *tac.Instr) bool {
	for check := end.Next; check != nil && check != start; check = check.Next {
		if check.Op == tac.EndFunc {
			return true
		}
	}
	return false
}

func (b *Builder) buildEdges() {
	for _, blk := range b.blocks {
		blk.Preds = nil
		blk.Succs = nil
	}

	for i, blk := range b.blocks {
		end := blk.End
		if end == nil {
			continue
		}

		switch end.Op {
		case tac.Goto:
			if target := b.FindBlockByLabel(end.A); target != nil {
				link(blk, target)
			}
		case tac.Ifz:
			if target := b.FindBlockByLabel(end.A); target != nil {
				link(blk, target)
			}
			if i+1 < len(b.blocks) {
				link(blk, b.blocks[i+1])
			}
		case tac.Return, tac.EndFunc:
			// Function exit: no successors.
		default:
			if i+1 < len(b.blocks) {
				next := b.blocks[i+1]
				if !crossesEndFunc(end, next.Start) {
					link(blk, next)
				}
			}
		}
	}
}
