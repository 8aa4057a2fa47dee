// Package token defines the discriminated Token value that flows from
// the tokeniser through the expander into control dispatch (spec.md §3).
package token

import (
	"fmt"

	"github.com/marnanel/mex/internal/catcode"
)

// Location records where a token came from, for diagnostics. Tokens hold
// a plain value (not a pointer into the source), since the source that
// produced them may be long gone by the time an error is reported.
type Location struct {
	Filename string
	Line     int
	Column   int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

// Kind discriminates the Token variants from spec.md §3.
type Kind int

const (
	// Char is an ordinary character token: a rune plus a category code.
	Char Kind = iota
	// Control is a control-sequence token: a name, looked up in the
	// document state at expansion time.
	Control
	// ActiveChar is a character of catcode Active; it resolves like a
	// control named by the character itself.
	ActiveChar
	// Paragraph is synthetic, emitted at paragraph breaks (from a blank
	// line or explicit \par).
	Paragraph
	// Internal carries a callback invoked when the expander pops it;
	// used for teardown hooks that need to run inline in the token
	// stream (e.g. closing a group opened by a primitive).
	Internal
)

// Token is an immutable value produced by the tokeniser and consumed by
// the expander. Only the fields relevant to Kind are meaningful; the
// others are zero.
type Token struct {
	Kind Kind
	Loc  Location

	// Ch and Cat are set for Char and ActiveChar tokens.
	Ch  rune
	Cat catcode.Code

	// Name is set for Control tokens: the control-sequence name with the
	// escape character stripped (e.g. "def" for \def).
	Name string

	// Call is set for Internal tokens: invoked with no arguments when the
	// expander pops this token off the pushback stack.
	Call func() error

	// NoExpand marks a Control or ActiveChar token as protected from
	// expansion for the next time it is pulled, per \noexpand (spec.md
	// §4.4). The expander clears the protection by simply not
	// re-examining it once yielded; a caller that pushes the token back
	// a second time gets ordinary expansion again.
	NoExpand bool
}

// NewChar builds a character token.
func NewChar(ch rune, cat catcode.Code, loc Location) Token {
	return Token{Kind: Char, Ch: ch, Cat: cat, Loc: loc}
}

// NewActive builds an active-character token.
func NewActive(ch rune, loc Location) Token {
	return Token{Kind: ActiveChar, Ch: ch, Cat: catcode.Active, Loc: loc}
}

// NewControl builds a control-sequence token.
func NewControl(name string, loc Location) Token {
	return Token{Kind: Control, Name: name, Loc: loc}
}

// NewParagraph builds a synthetic paragraph-break token.
func NewParagraph(loc Location) Token {
	return Token{Kind: Paragraph, Loc: loc}
}

// NewInternal builds a teardown-hook token.
func NewInternal(call func() error) Token {
	return Token{Kind: Internal, Call: call}
}

// IsSpace reports whether this is a <space token> (catcode 10).
func (t Token) IsSpace() bool {
	return t.Kind == Char && t.Cat == catcode.Space
}

// IsBeginGroup reports whether this is a catcode-1 character token.
func (t Token) IsBeginGroup() bool {
	return t.Kind == Char && t.Cat == catcode.BeginGroup
}

// IsEndGroup reports whether this is a catcode-2 character token.
func (t Token) IsEndGroup() bool {
	return t.Kind == Char && t.Cat == catcode.EndGroup
}

// Identifier returns the key by which this token's meaning is looked up
// in the document state: "\name" for controls, the character itself for
// active characters. Panics for other kinds, which have no meaning to
// look up.
func (t Token) Identifier() string {
	switch t.Kind {
	case Control:
		return "\\" + t.Name
	case ActiveChar:
		return string(t.Ch)
	default:
		panic(fmt.Sprintf("token: Identifier() called on non-control token %v", t))
	}
}

// String renders the token roughly as TeX would for diagnostics and for
// \showbox / \showlists output.
func (t Token) String() string {
	switch t.Kind {
	case Char, ActiveChar:
		if t.Ch < 32 {
			return fmt.Sprintf("^^%02x", t.Ch)
		}
		return string(t.Ch)
	case Control:
		return "\\" + t.Name
	case Paragraph:
		return "\\par"
	case Internal:
		return "[internal]"
	default:
		return "[?]"
	}
}

// Equal implements the TeXbook's \ifx-style token equality: same
// category and same character, or same control name. Used by \ifx for
// character tokens and when comparing macro templates.
func (t Token) Equal(other Token) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Char, ActiveChar:
		return t.Ch == other.Ch && t.Cat == other.Cat
	case Control:
		return t.Name == other.Name
	default:
		return true
	}
}
