// Dataflow analyses over a constructed CFG. Symbols are interned into a
// dense index so per-block sets are bitsets.

package cfg

import (
	"github.com/willf/bitset"

	"github.com/minic-lang/minic/pkg/tac"
)

// Dataflow holds per-block USE/DEF bitsets and the live-variable solution.
//
// Use is every variable read anywhere in the block; Def is every variable
// the block defines. In and Out are the live-in/live-out fixed point of
// In[b] = Use[b] ∪ (Out[b] − Def[b]), Out[b] = ∪ In[succ].
type Dataflow struct {
	syms  []*tac.Sym
	index map[*tac.Sym]uint

	Use map[*Block]*bitset.BitSet
	Def map[*Block]*bitset.BitSet
	In  map[*Block]*bitset.BitSet
	Out map[*Block]*bitset.BitSet
}

// NewDataflow builds USE/DEF sets for the blocks and solves liveness.
func NewDataflow(blocks []*Block) *Dataflow {
	df := &Dataflow{
		index: make(map[*tac.Sym]uint),
		Use:   make(map[*Block]*bitset.BitSet),
		Def:   make(map[*Block]*bitset.BitSet),
		In:    make(map[*Block]*bitset.BitSet),
		Out:   make(map[*Block]*bitset.BitSet),
	}
	df.buildUseDef(blocks)
	df.solveLiveness(blocks)
	return df
}

// Index interns a symbol, returning its dense index.
func (df *Dataflow) Index(s *tac.Sym) uint {
	if i, ok := df.index[s]; ok {
		return i
	}
	i := uint(len(df.syms))
	df.index[s] = i
	df.syms = append(df.syms, s)
	return i
}

// Sym returns the symbol at a dense index.
func (df *Dataflow) Sym(i uint) *tac.Sym { return df.syms[i] }

// Used reports whether the block reads the symbol anywhere.
func (df *Dataflow) Used(b *Block, s *tac.Sym) bool {
	i, ok := df.index[s]
	if !ok {
		return false
	}
	return df.Use[b].Test(i)
}

// LiveOut reports whether the symbol is live on exit from the block.
func (df *Dataflow) LiveOut(b *Block, s *tac.Sym) bool {
	i, ok := df.index[s]
	if !ok {
		return false
	}
	return df.Out[b].Test(i)
}

func (df *Dataflow) buildUseDef(blocks []*Block) {
	for _, b := range blocks {
		use := bitset.New(8)
		def := bitset.New(8)
		for cur := b.Start; cur != nil; cur = cur.Next {
			for _, u := range cur.Uses() {
				use.Set(df.Index(u))
			}
			if d := cur.Def(); d != nil {
				def.Set(df.Index(d))
			}
			if cur == b.End {
				break
			}
		}
		df.Use[b] = use
		df.Def[b] = def
	}
}

func (df *Dataflow) solveLiveness(blocks []*Block) {
	for _, b := range blocks {
		df.In[b] = bitset.New(8)
		df.Out[b] = bitset.New(8)
	}
	changed := true
	for changed {
		changed = false
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			out := bitset.New(8)
			for _, succ := range b.Succs {
				out.InPlaceUnion(df.In[succ])
			}
			in := df.Use[b].Union(out.Difference(df.Def[b]))
			if !in.Equal(df.In[b]) || !out.Equal(df.Out[b]) {
				df.In[b] = in
				df.Out[b] = out
				changed = true
			}
		}
	}
}
