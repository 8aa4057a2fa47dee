package control

import (
	"fmt"
	"strings"

	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// installCsnamePrimitives wires the name-construction and token-rendering
// primitives spec.md §4.4 groups together: \csname/\endcsname,
// \expandafter, \noexpand, \string, \uppercase/\lowercase, \message/
// \errmessage, \inputlineno.
func installCsnamePrimitives(doc *state.Document) {
	defineExpandable(doc, "csname", csnameRun)
	define(doc, "endcsname", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		return nil, mexerr.Control(loc(callLoc), "extra \\endcsname")
	})
	defineExpandable(doc, "expandafter", expandafterRun)
	defineExpandable(doc, "noexpand", noexpandRun)
	defineExpandable(doc, "string", stringRun)
	define(doc, "uppercase", caseRun(func(d *state.Document) [256]rune { return d.Uccode }))
	define(doc, "lowercase", caseRun(func(d *state.Document) [256]rune { return d.Lccode }))
	define(doc, "message", messageRun(false))
	define(doc, "errmessage", messageRun(true))
	defineExpandable(doc, "inputlineno", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		return textToTokens(fmt.Sprintf("%d", callLoc.Line), callLoc), nil
	})
}

// csnameRun implements \csname...\endcsname: expand tokens (so macros in
// the name text run) until \endcsname, accumulating character codes into
// a name. If no control of that name exists yet, it's bound to \relax,
// matching the TeXbook's "csname sometimes creates a new control
// sequence" rule.
func csnameRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	var name strings.Builder
	for {
		tok, ok, err := m.NextExpanding()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mexerr.Parse(loc(callLoc), "file ended inside \\csname")
		}
		if tok.Kind == token.Control && tok.Name == "endcsname" {
			break
		}
		if tok.Kind != token.Char {
			return nil, mexerr.Parse(loc(tok.Loc), "\\csname requires character tokens, found %q", tok.String())
		}
		name.WriteRune(tok.Ch)
	}
	full := `\` + name.String()
	if m.Doc().Lookup(full) == nil {
		relax := m.Doc().Lookup(`\relax`)
		m.Doc().Define(full, relax, false)
	}
	return []token.Token{token.NewControl(name.String(), callLoc)}, nil
}

// expandafterRun implements \expandafter<tok1><tok2>: expand tok2 by one
// level, then reinsert tok1 followed by that expansion.
func expandafterRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	tok1, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\expandafter")
	}
	tok2, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\expandafter")
	}
	expansion, err := m.ExpandOnce(tok2)
	if err != nil {
		return nil, err
	}
	out := make([]token.Token, 0, len(expansion)+1)
	out = append(out, tok1)
	out = append(out, expansion...)
	return out, nil
}

// noexpandRun implements \noexpand<tok>: reads the next raw token and
// marks it protected from expansion the next time it's pulled.
func noexpandRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	tok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\noexpand")
	}
	tok.NoExpand = true
	return []token.Token{tok}, nil
}

// stringRun implements \string<tok>: renders the very next token (not
// expanded) the way it would need to be typed, as a run of catcode-Other
// (and, for a literal space, catcode-Space) character tokens.
func stringRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	tok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\string")
	}
	return textToTokens(tok.String(), callLoc), nil
}

// caseRun builds \uppercase/\lowercase's Run: read a `{...}` group
// without expanding it, remap each character token's code through the
// given table (0 means "no change"), and reinsert the result for the
// input to read next.
func caseRun(table func(d *state.Document) [256]rune) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		toks, err := readBalancedGroup(m, false)
		if err != nil {
			return nil, err
		}
		tbl := table(m.Doc())
		out := make([]token.Token, len(toks))
		for i, t := range toks {
			if t.Kind == token.Char && t.Ch >= 0 && t.Ch < 256 && tbl[t.Ch] != 0 {
				t.Ch = tbl[t.Ch]
			}
			out[i] = t
		}
		return out, nil
	}
}

// messageRun builds \message/\errmessage's Run: read a `{...}` group,
// expanding it like \edef's body, render it to a string, and either log
// it (\message) or raise it as an error (\errmessage).
func messageRun(isError bool) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		toks, err := readBalancedGroup(m, true)
		if err != nil {
			return nil, err
		}
		text := renderTokens(toks)
		if isError {
			return nil, mexerr.Control(loc(callLoc), "%s", text)
		}
		state.Logger().Infof("%s", text)
		return nil, nil
	}
}

// renderTokens turns a token list into readable text, for \message and
// diagnostics: characters print as themselves, remaining (unexpanded)
// controls print as \name.
func renderTokens(toks []token.Token) string {
	var b strings.Builder
	for _, t := range toks {
		switch t.Kind {
		case token.Char, token.ActiveChar:
			b.WriteRune(t.Ch)
		case token.Control:
			b.WriteString(`\` + t.Name + " ")
		case token.Paragraph:
			b.WriteString(" ")
		}
	}
	return strings.TrimRight(b.String(), " ")
}
