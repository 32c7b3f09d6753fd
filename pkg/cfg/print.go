package cfg

import (
	"fmt"
	"io"
)

// Print writes the blocks, their edges, and their instructions to w.
func (b *Builder) Print(w io.Writer) {
	fmt.Fprintln(w, "\n========== Basic Blocks ==========")
	fmt.Fprintf(w, "Total blocks: %d\n\n", len(b.blocks))

	for _, blk := range b.blocks {
		fmt.Fprintf(w, "Block %d:\n", blk.ID)

		fmt.Fprint(w, "  Predecessors: ")
		printIDs(w, blk.Preds)
		fmt.Fprint(w, "  Successors: ")
		printIDs(w, blk.Succs)

		fmt.Fprintln(w, "  Instructions:")
		for cur := blk.Start; cur != nil; cur = cur.Next {
			fmt.Fprintf(w, "    %s\n", cur)
			if cur == blk.End {
				break
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "==================================")
}

func printIDs(w io.Writer, blocks []*Block) {
	if len(blocks) == 0 {
		fmt.Fprintln(w, "none")
		return
	}
	for i, blk := range blocks {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprint(w, blk.ID)
	}
	fmt.Fprintln(w)
}
