// Package lex implements the category-code tokeniser: the status-driven
// lexer described in spec.md §4.2, following the algorithm on p46 of the
// TeXbook.
//
// Grounded on pongo2's lexer.go: a cursor over a rune buffer with
// next/backup/peek and a lexerStateFn-style state machine, generalized
// from pongo2's fixed {{ }}/{% %} delimiter recognition to TeX's
// per-character catcode dispatch (the state here is N/M/S line status
// rather than "inside a tag or not").
package lex

import (
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/token"
)

// LineStatus is the tokeniser's per-line state (spec.md §4.2).
type LineStatus int

const (
	// StatusN: beginning of line.
	StatusN LineStatus = iota
	// StatusM: middle of line.
	StatusM
	// StatusS: skipping blanks.
	StatusS
)

// Tokeniser converts a character stream into a token stream, consulting
// a mutable catcode table on every character so runtime \catcode
// mutation takes effect immediately (spec.md §4.2).
type Tokeniser struct {
	src    *source.Source
	cats   *catcode.Table
	status LineStatus
	strict bool
}

// New builds a Tokeniser reading from src, consulting cats for category
// codes. strict controls whether an Invalid-category character raises a
// ParseError (true) or is silently skipped after diagnosis (false).
func New(src *source.Source, cats *catcode.Table, strict bool) *Tokeniser {
	return &Tokeniser{src: src, cats: cats, status: StatusN, strict: strict}
}

func (t *Tokeniser) loc() mexerr.Location {
	l := t.src.Location()
	return mexerr.Location{Filename: l.Filename, Line: l.Line, Column: l.Column}
}

func (t *Tokeniser) tokLoc() token.Location {
	return t.src.TokLocation()
}

// Next produces the next token per spec.md §4.2's table, or (zero,
// false, nil) at EOF, or an error under strict mode on an Invalid
// character.
func (t *Tokeniser) Next() (token.Token, bool, error) {
	for {
		if tok, ok := t.src.PeekIsToken(); ok {
			t.src.NextToken()
			return tok, true, nil
		}
		if t.src.AtEOF() {
			return token.Token{}, false, nil
		}

		loc := t.tokLoc()
		r := t.src.NextRune()
		cat := t.cats.Of(r)

		switch cat {
		case catcode.Escape:
			return t.readControlSequence(loc)

		case catcode.BeginGroup, catcode.EndGroup, catcode.MathShift,
			catcode.AlignmentTab, catcode.Parameter, catcode.Superscript,
			catcode.Subscript, catcode.Letter, catcode.Other:
			if resolved, ok := t.maybeCaret(r, cat); ok {
				if t.cats.Of(resolved) == catcode.Superscript {
					// The resolved character is itself category-7: push it
					// back as an already-tokenised SUPERSCRIPT token (spec.md
					// §4.2) so it's read back as the literal character it is,
					// not re-matched as the start of a new caret pair.
					t.src.PushTokens([]token.Token{token.NewChar(resolved, catcode.Superscript, loc)})
					continue
				}
				// Otherwise re-dispatch through the catcode table rather
				// than keeping the superscript's own category, so e.g.
				// ^^6f (an 'o') is tokenised as a letter, not as another
				// superscript.
				t.src.PushRune(resolved)
				continue
			}
			t.status = StatusM
			return token.NewChar(r, cat, loc), true, nil

		case catcode.Active:
			t.status = StatusM
			return token.NewActive(r, loc), true, nil

		case catcode.EndOfLine:
			switch t.status {
			case StatusN:
				t.status = StatusN
				return token.NewControl("par", loc), true, nil
			case StatusM:
				t.status = StatusN
				return token.NewChar(' ', catcode.Space, loc), true, nil
			default: // StatusS
				t.status = StatusN
				continue
			}

		case catcode.Ignored:
			continue

		case catcode.Space:
			if t.status == StatusM {
				t.status = StatusS
				return token.NewChar(' ', catcode.Space, loc), true, nil
			}
			continue

		case catcode.Comment:
			t.skipComment()
			t.status = StatusN
			continue

		case catcode.Invalid:
			if t.strict {
				return token.Token{}, false, mexerr.Parse(t.loc(), "invalid character %q", r)
			}
			continue

		default:
			return token.Token{}, false, mexerr.Parse(t.loc(), "implementation error: unknown category code %d", cat)
		}
	}
}

// readControlSequence reads the control-sequence name following an
// escape character, per spec.md §4.2: a single non-letter, or a run of
// letters with trailing spaces absorbed.
func (t *Tokeniser) readControlSequence(loc token.Location) (token.Token, bool, error) {
	if t.atRuneEOF() {
		t.status = StatusM
		return token.NewControl("", loc), true, nil
	}
	first := t.src.NextRune()
	firstCat := t.cats.Of(first)
	if firstCat != catcode.Letter {
		t.status = StatusM
		return token.NewControl(string(first), loc), true, nil
	}

	name := []rune{first}
	for !t.atRuneEOF() {
		r := t.src.PeekRune()
		if t.cats.Of(r) != catcode.Letter {
			break
		}
		name = append(name, t.src.NextRune())
	}

	for !t.atRuneEOF() {
		r := t.src.PeekRune()
		if t.cats.Of(r) != catcode.Space {
			break
		}
		t.src.NextRune()
	}

	t.status = StatusM
	return token.NewControl(string(name), loc), true, nil
}

// skipComment consumes through the next end-of-line, per spec.md §4.2.
func (t *Tokeniser) skipComment() {
	for !t.atRuneEOF() {
		r := t.src.NextRune()
		if t.cats.Of(r) == catcode.EndOfLine {
			return
		}
	}
}

// atRuneEOF reports whether there is no more plain-rune input to read:
// either the source is genuinely exhausted, or the next item on the
// pushback stack is an already-built token rather than a rune (which
// NextRune/PeekRune cannot see past).
func (t *Tokeniser) atRuneEOF() bool {
	if _, isTok := t.src.PeekIsToken(); isTok {
		return true
	}
	return t.src.AtEOF()
}

// maybeCaret implements caret notation (spec.md §4.2): two consecutive
// category-7 characters with equal codepoint introduce either a
// ^^xy hex pair or a ^^c control-character shorthand. The resolved rune
// is reported with ok=true so the caller re-dispatches it through the
// catcode table instead of keeping the triggering superscript's own
// category - caret notation describes a character, not a
// character-with-catcode-7, so e.g. ^^6f (an 'o') must tokenise as a
// letter. If that re-dispatch would itself land on catcode Superscript,
// the caller pushes the resolved character back as an already-built
// token rather than a raw rune (spec.md §4.2's recursion guard), so it
// is read back as the literal character it is instead of being matched
// as the start of another caret pair.
func (t *Tokeniser) maybeCaret(r rune, cat catcode.Code) (rune, bool) {
	if cat != catcode.Superscript {
		return r, false
	}
	if t.atRuneEOF() {
		return r, false
	}
	next := t.src.PeekRune()
	if next != r || t.cats.Of(next) != catcode.Superscript {
		return r, false
	}
	// Consume the second superscript.
	t.src.NextRune()

	if t.atRuneEOF() {
		// Nothing follows; push the second superscript back verbatim so
		// it is read as an ordinary token on the next call.
		t.src.PushRune(next)
		return r, false
	}

	c := t.src.PeekRune()
	if isHexDigit(c) {
		// Try ^^xy: two hex digits.
		t.src.NextRune()
		if !t.atRuneEOF() && isHexDigit(t.src.PeekRune()) {
			c2 := t.src.NextRune()
			return fromHexPair(c, c2), true
		}
		// Only one hex digit available: fall back to the ^^c rule using
		// that single digit as c.
		return fromCaretChar(c), true
	}
	t.src.NextRune()
	return fromCaretChar(c), true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

func hexVal(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	return int(r-'a') + 10
}

func fromHexPair(a, b rune) rune {
	return rune(hexVal(a)*16 + hexVal(b))
}

// fromCaretChar implements chr(ord(c) ± 64): +64 if ord(c) < 64, else
// -64, per spec.md §4.2.
func fromCaretChar(c rune) rune {
	if c < 64 {
		return c + 64
	}
	return c - 64
}
