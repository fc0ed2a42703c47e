package runtime

import (
	"go/scanner"
	"go/token"
)

// chunk is a maximal run of top-level declarations or of top-level
// statements. line is 1-based within the unit the chunk was cut from.
type chunk struct {
	src  string
	line int
	stmt bool
}

// splitUnit cuts a source unit into declaration and statement chunks. The
// interpreter accepts a declaration list or a statement list per eval, never
// both, so mixed units are fed to it chunk by chunk in document order.
func splitUnit(src string) []chunk {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	type tk struct {
		off  int
		line int
		tok  token.Token
	}
	var toks []tk
	for {
		pos, t, _ := s.Scan()
		if t == token.EOF {
			break
		}
		p := file.Position(pos)
		toks = append(toks, tk{off: p.Offset, line: p.Line, tok: t})
	}
	if len(toks) == 0 {
		return nil
	}

	declAt := func(i int) bool {
		switch toks[i].tok {
		case token.IMPORT, token.TYPE, token.CONST, token.VAR:
			return true
		case token.FUNC:
			if i+1 >= len(toks) {
				return true
			}
			switch toks[i+1].tok {
			case token.IDENT:
				return true
			case token.LPAREN:
				// A parenthesized receiver followed by a name is a method
				// declaration; a parameter list is a function literal, which
				// opens a statement.
				depth := 0
				for j := i + 1; j < len(toks); j++ {
					switch toks[j].tok {
					case token.LPAREN:
						depth++
					case token.RPAREN:
						depth--
						if depth == 0 {
							return j+1 < len(toks) && toks[j+1].tok == token.IDENT
						}
					}
				}
			}
		}
		return false
	}

	// Units begin at the first token and after every top-level semicolon;
	// consecutive units of the same class merge into one chunk.
	type mark struct {
		off  int
		line int
		stmt bool
	}
	var marks []mark
	depth := 0
	unitStart := true
	for i, t := range toks {
		if unitStart && depth == 0 {
			stmt := !declAt(i)
			if len(marks) == 0 || marks[len(marks)-1].stmt != stmt {
				marks = append(marks, mark{off: t.off, line: t.line, stmt: stmt})
			}
			unitStart = false
		}
		switch t.tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
		case token.SEMICOLON:
			if depth == 0 {
				unitStart = true
			}
		}
	}

	chunks := make([]chunk, len(marks))
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].off
		}
		chunks[i] = chunk{src: src[m.off:end], line: m.line, stmt: m.stmt}
	}
	return chunks
}
