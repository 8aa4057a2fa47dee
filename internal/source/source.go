// Package source wraps a character provider (file or in-memory string)
// with line/column tracking and a LIFO pushback stack, per spec.md §4.1.
//
// Pushback is how the expander reinjects macro expansions: a control's
// replacement tokens are pushed back onto the source so the next pull
// sees them before any more of the underlying input.
package source

import (
	"unicode/utf8"

	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/token"
)

// Item is anything that can sit on the pushback stack: a single rune or
// a single already-built Token. The tokeniser pushes runes (e.g. when
// caret notation needs to reprocess a substituted character); the
// expander pushes Tokens (macro expansions, \expandafter reordering).
type Item struct {
	IsToken bool
	Ch      rune
	Tok     token.Token
}

func RuneItem(r rune) Item       { return Item{Ch: r} }
func TokenItem(t token.Token) Item { return Item{IsToken: true, Tok: t} }

// Source is a pull-based character provider with pushback and location
// tracking. It is the leaf of the dependency chain in spec.md §2.
type Source struct {
	name string
	// stack holds the LIFO pushback queue; input is read from runes once
	// the stack is empty. The stack is drained back-to-front: Push
	// appends, next() pops from the end, so the most recently pushed
	// item is read first.
	stack []Item

	runes []rune
	pos   int

	line int
	col  int
}

// New wraps input (the complete contents of one source file, or an
// in-memory snippet) under the given name for diagnostics.
func New(name, input string) *Source {
	return &Source{
		name:  name,
		runes: []rune(input),
		line:  1,
		col:   1,
	}
}

// Location returns the position that the next character will be read
// from, for attaching to the token about to be produced.
func (s *Source) Location() mexerr.Location {
	return mexerr.Location{Filename: s.name, Line: s.line, Column: s.col}
}

// TokLocation is Location in the shape token.Token wants.
func (s *Source) TokLocation() token.Location {
	loc := s.Location()
	return token.Location{Filename: loc.Filename, Line: loc.Line, Column: loc.Column}
}

// Push reinjects an item (or several) ahead of the rest of the input.
// Items are pushed in call order and popped in reverse, so
// Push(a); Push(b) yields b then a - matching the common idiom of
// pushing a whole already-ordered slice with PushAll instead.
func (s *Source) Push(items ...Item) {
	s.stack = append(s.stack, items...)
}

// PushAll pushes a sequence so that it is read back in its original
// order: the first element of seq is read first.
func (s *Source) PushAll(seq []Item) {
	for i := len(seq) - 1; i >= 0; i-- {
		s.stack = append(s.stack, seq[i])
	}
}

// PushRune is a convenience for pushing back a single character, as the
// tokeniser does when caret notation produces a character that must be
// re-dispatched through the catcode table.
func (s *Source) PushRune(r rune) {
	s.Push(RuneItem(r))
}

// PushTokens reinjects a macro's expansion (or any token list) so the
// next pulls see it, in order, before the rest of the underlying input.
func (s *Source) PushTokens(toks []token.Token) {
	items := make([]Item, len(toks))
	for i, t := range toks {
		items[i] = TokenItem(t)
	}
	s.PushAll(items)
}

// EOF is returned by NextRune when input (including pushback) is
// exhausted.
const EOF rune = -1

// NextRune pops a pushed-back character or reads the next rune from the
// underlying input, advancing line/column bookkeeping. It is an error to
// call NextRune when the top of the pushback stack is a Token rather
// than a rune - callers (the tokeniser) must check PeekIsToken first.
func (s *Source) NextRune() rune {
	if n := len(s.stack); n > 0 {
		top := s.stack[n-1]
		if top.IsToken {
			panic("source: NextRune called with a token on top of the pushback stack")
		}
		s.stack = s.stack[:n-1]
		s.advance(top.Ch)
		return top.Ch
	}
	if s.pos >= len(s.runes) {
		return EOF
	}
	r := s.runes[s.pos]
	s.pos++
	s.advance(r)
	return r
}

func (s *Source) advance(r rune) {
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

// PeekIsToken reports whether the next item to be read is an
// already-built Token (rather than a raw character) - i.e. whether the
// tokeniser should step aside and let the expander consume it directly.
func (s *Source) PeekIsToken() (token.Token, bool) {
	if n := len(s.stack); n > 0 && s.stack[n-1].IsToken {
		return s.stack[n-1].Tok, true
	}
	return token.Token{}, false
}

// NextToken pops a pushed-back Token. Panics if the top of the stack is
// not a token; callers must check PeekIsToken first.
func (s *Source) NextToken() token.Token {
	n := len(s.stack)
	if n == 0 || !s.stack[n-1].IsToken {
		panic("source: NextToken called with no token on top of the pushback stack")
	}
	t := s.stack[n-1].Tok
	s.stack = s.stack[:n-1]
	return t
}

// PeekRune returns the next rune without consuming it, or EOF. It does
// not look past a pushed-back Token.
func (s *Source) PeekRune() rune {
	if n := len(s.stack); n > 0 {
		if s.stack[n-1].IsToken {
			return EOF
		}
		return s.stack[n-1].Ch
	}
	if s.pos >= len(s.runes) {
		return EOF
	}
	return s.runes[s.pos]
}

// AtEOF reports whether there is nothing left to read at all (no
// pushback, no more input).
func (s *Source) AtEOF() bool {
	return len(s.stack) == 0 && s.pos >= len(s.runes)
}

// Name returns the source's filename, for diagnostics.
func (s *Source) Name() string { return s.name }

// validRune reports whether r is not utf8.RuneError. Nothing calls it;
// the tokeniser's caret-notation hex-pair case does not use it.
func validRune(r rune) bool {
	return r != utf8.RuneError
}
