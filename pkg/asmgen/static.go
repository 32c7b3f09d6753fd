// Static section emission: text literals followed by the zero-filled
// global area and the stack anchor.

package asmgen

import (
	"fmt"
	"sort"

	"github.com/minic-lang/minic/pkg/tac"
)

// emitStatic enumerates the text literals in label order, reserves the
// global area, and places the STACK anchor.
func (g *Generator) emitStatic() {
	var texts []*tac.Sym
	for _, s := range g.globals {
		if s.Kind == tac.SymText {
			texts = append(texts, s)
		}
	}
	sort.Slice(texts, func(i, j int) bool { return texts[i].Label < texts[j].Label })

	for _, s := range texts {
		g.emitStr(s)
	}

	fmt.Fprint(g.w, "STATIC:\n")
	fmt.Fprintf(g.w, "\tDBN 0,%d\n", g.tos)
	fmt.Fprint(g.w, "STACK:\n")
}

// emitStr writes one string literal as a DBS byte list with a trailing
// NUL. The stored literal carries its surrounding quotes; they are
// stripped here, and the common escapes are decoded.
func (g *Generator) emitStr(s *tac.Sym) {
	text := s.Text
	fmt.Fprintf(g.w, "L%d:\n", s.Label)
	fmt.Fprint(g.w, "\tDBS ")

	start, end := 0, len(text)
	if len(text) >= 2 && text[0] == '"' {
		start = 1
		end = len(text) - 1
	}

	first := true
	for i := start; i < end; i++ {
		if !first {
			fmt.Fprint(g.w, ",")
		}
		first = false

		ch := text[i]
		if ch == '\\' && i+1 < end {
			i++
			switch text[i] {
			case 'n':
				ch = '\n'
			case 't':
				ch = '\t'
			case 'r':
				ch = '\r'
			case '\\':
				ch = '\\'
			case '"':
				ch = '"'
			case '0':
				ch = 0
			default:
				ch = text[i]
			}
		}
		fmt.Fprintf(g.w, "%d", int(ch))
	}

	if first {
		fmt.Fprint(g.w, "0\n")
	} else {
		fmt.Fprint(g.w, ",0\n")
	}
}
