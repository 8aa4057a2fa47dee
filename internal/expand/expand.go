// Package expand implements the Expander (spec.md §4.3): a pull iterator
// over a Tokeniser that performs macro expansion and primitive execution
// per spec.md's per-token algorithm, and implements state.Machine so
// internal/control's primitives can drive it without an import cycle.
//
// Grounded on pongo2's parser.go: a cursor over a flat token slice with
// Match/MatchType/PeekType helpers, generalized from "match one grammar
// production" to "pull one semantically-resolved token, expanding
// controls along the way".
package expand

import (
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/lex"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// Level is the expansion depth at which a pull operates (spec.md §4.3).
type Level int

const (
	// Deep performs no expansion at all; controls are yielded raw.
	Deep Level = iota
	// Reading expands macros and expandable primitives but never
	// executes a primitive with side effects.
	Reading
	// Expanding is Reading under another name, used for the common case
	// of pulling the main input stream (macro bodies, argument text).
	Expanding
	// Executing expands macros and runs every primitive, side effects
	// included - the level the main document-processing loop pulls at.
	Executing
	// Querying expands for the purpose of reading a value (e.g. inside
	// \ifnum's operands); behaves like Expanding.
	Querying
)

// Bounded constrains how many tokens a single Pull call consumes
// (spec.md §4.3).
type Bounded int

const (
	// None reads until the caller stops asking (used by Next/NextUnexpanded).
	None Bounded = iota
	// Single reads one token, or - if that token begins a group - one
	// whole `{...}` group with its braces included.
	Single
	// Balanced reads exactly one `{...}` group, with the outer braces
	// stripped from the result.
	Balanced
)

// OnEOF governs what happens when input is exhausted mid-pull
// (spec.md §4.3).
type OnEOF int

const (
	// Exhaust stops cleanly, returning whatever was collected.
	Exhaust OnEOF = iota
	// Raise reports a ParseError.
	Raise
	// ReturnNone reports ok=false forever once reached (Next's policy).
	ReturnNone
)

// Expander wraps a Tokeniser and a Document, implementing state.Machine.
type Expander struct {
	src *source.Source
	tok *lex.Tokeniser
	doc *state.Document
}

// New builds an Expander reading from src over cats, against doc.
func New(src *source.Source, cats *catcode.Table, doc *state.Document) *Expander {
	return &Expander{src: src, tok: lex.New(src, cats, false), doc: doc}
}

// Doc implements state.Machine.
func (e *Expander) Doc() *state.Document { return e.doc }

// Loc implements state.Machine.
func (e *Expander) Loc() token.Location { return e.src.TokLocation() }

// Push implements state.Machine.
func (e *Expander) Push(tok token.Token) { e.src.PushTokens([]token.Token{tok}) }

// PushAll implements state.Machine.
func (e *Expander) PushAll(seq []token.Token) { e.src.PushTokens(seq) }

// Next implements state.Machine: pulls the next token at level=Executing
// (macros expand, primitives run), on_eof=return-none.
func (e *Expander) Next() (token.Token, bool, error) {
	return e.pullOne(Executing, false, false)
}

// NextUnexpanded implements state.Machine: pulls the next raw token with
// no expansion, though group-scoping and the no_par/no_outer guards (both
// false here, since NextUnexpanded's callers pass their own via pullOne
// through other entry points) still apply via the universal steps 1-3.
func (e *Expander) NextUnexpanded() (token.Token, bool, error) {
	return e.pullOne(Deep, false, false)
}

// NextExpanding implements state.Machine: pulls the next token, expanding
// macros and expandable primitives but never running one with side
// effects - the level \edef/\xdef capture at.
func (e *Expander) NextExpanding() (token.Token, bool, error) {
	return e.pullOne(Expanding, false, false)
}

// ExpandOnce implements state.Machine, for \expandafter: expands tok by
// exactly one level if it names a macro or expandable primitive.
func (e *Expander) ExpandOnce(tok token.Token) ([]token.Token, error) {
	if tok.NoExpand {
		return []token.Token{tok}, nil
	}
	if tok.Kind != token.Control && tok.Kind != token.ActiveChar {
		return []token.Token{tok}, nil
	}
	ctrl := e.doc.Lookup(tok.Identifier())
	if ctrl == nil {
		return []token.Token{tok}, nil
	}
	resolved := ctrl.Resolve()
	if resolved.Kind == state.KindLetAlias && resolved.AliasTok != nil {
		return []token.Token{*resolved.AliasTok}, nil
	}
	switch resolved.Kind {
	case state.KindUserMacro:
		return e.InvokeMacro(resolved.Macro, tok.Loc)
	case state.KindPrimitive:
		if !resolved.Expandable {
			return []token.Token{tok}, nil
		}
		return resolved.Run(e, resolved, tok.Loc)
	default:
		return []token.Token{tok}, nil
	}
}

// BeginGroup implements state.Machine.
func (e *Expander) BeginGroup(flavor state.GroupFlavor) { e.doc.BeginGroup(flavor) }

// EndGroup implements state.Machine.
func (e *Expander) EndGroup() error { return e.doc.EndGroup() }

// pullOne implements spec.md §4.3's per-token algorithm for a single
// yielded token, looping internally over controls that expand/execute
// to nothing yieldable (steps 4-5) until it finds something to yield
// (steps 2, 3, 6) or runs out of input.
func (e *Expander) pullOne(level Level, noOuter, noPar bool) (token.Token, bool, error) {
	for {
		tok, ok, err := e.tok.Next()
		if err != nil {
			return token.Token{}, false, err
		}
		if !ok {
			return token.Token{}, false, nil
		}

		switch {
		case tok.IsBeginGroup():
			e.doc.BeginGroup(state.Ordinary)
			return tok, true, nil

		case tok.IsEndGroup():
			if err := e.doc.EndGroup(); err != nil {
				return token.Token{}, false, err
			}
			return tok, true, nil

		case tok.Kind == token.Internal:
			if tok.Call != nil {
				if err := tok.Call(); err != nil {
					return token.Token{}, false, err
				}
			}
			continue

		case tok.Kind == token.Control || tok.Kind == token.ActiveChar:
			yielded, yield, err := e.stepControl(tok, level, noOuter, noPar)
			if err != nil {
				return token.Token{}, false, err
			}
			if yield {
				return yielded, true, nil
			}
			continue

		default:
			return tok, true, nil
		}
	}
}

// stepControl implements step 4 of spec.md §4.3's algorithm for a single
// Control or ActiveChar token: look up its meaning, enforce no_par/
// no_outer, and either invoke it (pushing its output back and reporting
// yield=false so the caller's loop continues) or yield it unchanged.
func (e *Expander) stepControl(tok token.Token, level Level, noOuter, noPar bool) (token.Token, bool, error) {
	if noPar && tok.Kind == token.Control && tok.Name == "par" {
		return token.Token{}, false, mexerr.Macro(loc(tok), "paragraph ended before argument was complete")
	}
	if tok.NoExpand {
		return tok, true, nil
	}

	name := tok.Identifier()
	ctrl := e.doc.Lookup(name)

	if ctrl == nil {
		if level == Deep {
			return tok, true, nil
		}
		if singleCharName(tok) {
			return fallbackChar(tok), true, nil
		}
		return token.Token{}, false, mexerr.Macro(loc(tok), "undefined control sequence %s", name)
	}

	resolved := ctrl.Resolve()
	if resolved.Outer && noOuter {
		return token.Token{}, false, mexerr.Macro(loc(tok), "use of %s doesn't match its definition (outer macro)", name)
	}

	if level == Deep {
		return tok, true, nil
	}

	if resolved.Kind == state.KindLetAlias && resolved.AliasTok != nil {
		e.src.PushTokens([]token.Token{*resolved.AliasTok})
		return token.Token{}, false, nil
	}

	invoke := false
	switch resolved.Kind {
	case state.KindUserMacro:
		invoke = true
	case state.KindPrimitive:
		invoke = resolved.Expandable || level == Executing
	}
	if !invoke {
		return tok, true, nil
	}

	var out []token.Token
	var err error
	switch resolved.Kind {
	case state.KindUserMacro:
		out, err = e.InvokeMacro(resolved.Macro, tok.Loc)
	case state.KindPrimitive:
		out, err = resolved.Run(e, resolved, tok.Loc)
	}
	if err != nil {
		return token.Token{}, false, err
	}
	if len(out) > 0 {
		e.src.PushTokens(out)
	}
	return token.Token{}, false, nil
}

// singleCharName reports whether an undefined name is exactly one
// character, the TeXbook's grandfathered fallback for e.g. an unbound
// active character or a lone control symbol (spec.md §4.3 step 4).
func singleCharName(tok token.Token) bool {
	if tok.Kind == token.ActiveChar {
		return true
	}
	return len([]rune(tok.Name)) == 1
}

func fallbackChar(tok token.Token) token.Token {
	var r rune
	if tok.Kind == token.ActiveChar {
		r = tok.Ch
	} else {
		r = []rune(tok.Name)[0]
	}
	return token.NewChar(r, catcode.Other, tok.Loc)
}

func loc(tok token.Token) mexerr.Location {
	return mexerr.Location{Filename: tok.Loc.Filename, Line: tok.Loc.Line, Column: tok.Loc.Column}
}
