package control

import (
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// installDefPrimitives wires \def/\edef/\gdef/\xdef, \let/\futurelet,
// \chardef/\mathchardef, and the register-def family (spec.md §4.4).
func installDefPrimitives(doc *state.Document) {
	define(doc, "def", defRun(false, false))
	define(doc, "edef", defRun(true, false))
	define(doc, "gdef", defRun(false, true))
	define(doc, "xdef", defRun(true, true))

	define(doc, "let", letRun)
	define(doc, "futurelet", futureletRun)

	define(doc, "chardef", registerDefRun(func(m state.Machine, name string, n int64, global bool) {
		m.Doc().Define(name, &state.Control{Kind: state.KindChardef, Name: name[1:], CharValue: rune(n)}, global)
	}))
	define(doc, "mathchardef", registerDefRun(func(m state.Machine, name string, n int64, global bool) {
		m.Doc().Define(name, &state.Control{Kind: state.KindChardef, Name: name[1:], CharValue: rune(n), IsMathChar: true}, global)
	}))

	define(doc, "countdef", registerRefDefRun(state.BlockCount))
	define(doc, "dimendef", registerRefDefRun(state.BlockDimen))
	define(doc, "skipdef", registerRefDefRun(state.BlockSkip))
	define(doc, "muskipdef", registerRefDefRun(state.BlockMuskip))
	define(doc, "toksdef", registerRefDefRun(state.BlockToks))
}

// defRun builds the Run function shared by \def/\edef/\gdef/\xdef.
// expand is true for \edef/\xdef (the replacement is expanded once at
// capture time); forceGlobal is true for \gdef/\xdef.
func defRun(expand, forceGlobal bool) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()
		global := forceGlobal || prefixes.Global

		nameTok, ok, err := m.NextUnexpanded()
		if err != nil {
			return nil, err
		}
		if !ok || (nameTok.Kind != token.Control && nameTok.Kind != token.ActiveChar) {
			return nil, mexerr.Parse(loc(callLoc), "expected a control sequence after \\def")
		}
		name := nameTok.Identifier()

		params, err := readParamTemplate(m)
		if err != nil {
			return nil, err
		}

		var replacement []token.Token
		if expand {
			replacement, err = readBalancedGroup(m, true)
		} else {
			replacement, err = readBalancedGroup(m, false)
		}
		if err != nil {
			return nil, err
		}
		replacement, err = scanReplacementParams(replacement)
		if err != nil {
			return nil, err
		}

		macro := &state.UserMacro{
			Params:            params,
			Replacement:       toTemplate(replacement),
			Long:              prefixes.Long,
			Outer:             prefixes.Outer,
			ExpandedAtDefTime: expand,
		}
		m.Doc().Define(name, &state.Control{
			Kind:  state.KindUserMacro,
			Name:  name[1:],
			Macro: macro,
			Capabilities: state.Capabilities{
				Outer: prefixes.Outer,
				Long:  prefixes.Long,
			},
		}, global)
		return nil, nil
	}
}

// readParamTemplate reads a \def-style parameter template: literal
// tokens interleaved with #1..#9 markers, up to (not including) the
// opening brace of the replacement text. Validates spec.md §4.4's rule
// that markers appear in ascending numeric order.
func readParamTemplate(m state.Machine) ([]token.Token, error) {
	var out []token.Token
	next := 1
	for {
		tok, ok, err := m.NextUnexpanded()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mexerr.Parse(mexerr.Location{}, "file ended while reading a macro's parameter text")
		}
		if tok.IsBeginGroup() {
			m.Push(tok)
			return out, nil
		}
		if tok.Kind == token.Char && tok.Cat == catcode.Parameter {
			digitTok, ok, err := m.NextUnexpanded()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, mexerr.Parse(mexerr.Location{}, "file ended reading a parameter marker")
			}
			if digitTok.Kind == token.Char && digitTok.Cat == catcode.Parameter {
				// "##" - a literal parameter character.
				out = append(out, digitTok)
				continue
			}
			n := paramDigit(digitTok)
			if n == 0 {
				return nil, mexerr.Parse(loc(digitTok.Loc), "parameter marker must be a digit 1-9")
			}
			if n != next {
				return nil, mexerr.Parse(loc(digitTok.Loc), "parameters must appear in ascending order; expected #%d", next)
			}
			out = append(out, paramMarker(n, digitTok.Loc))
			next++
			continue
		}
		out = append(out, tok)
	}
}

// paramDigit reports which digit 1-9 tok spells, or 0 if it isn't one.
func paramDigit(tok token.Token) int {
	if tok.Kind != token.Char || tok.Ch < '1' || tok.Ch > '9' {
		return 0
	}
	return int(tok.Ch - '0')
}

// paramMarker builds a sentinel token.Token recording a parameter
// marker's position within a raw []token.Token template - toTemplate
// later recognises it via isParamMarker and converts it to a
// state.TemplateToken with IsParam set.
func paramMarker(n int, l token.Location) token.Token {
	return token.Token{Kind: token.Internal, Name: "#param#", Ch: rune('0' + n), Loc: l}
}

func isParamMarker(tok token.Token) (int, bool) {
	if tok.Kind == token.Internal && tok.Name == "#param#" {
		return int(tok.Ch - '0'), true
	}
	return 0, false
}

// scanReplacementParams walks a macro body's raw tokens looking for the
// same #1..#9 markers readParamTemplate recognises in the parameter
// text, converting each to a paramMarker sentinel and collapsing "##"
// to a literal "#" (spec.md §4.4 step 6). Runs on both \def/\gdef's raw
// capture and \edef/\xdef's expanded one, so #k substitution happens
// regardless of expansion mode.
func scanReplacementParams(toks []token.Token) ([]token.Token, error) {
	out := make([]token.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != token.Char || t.Cat != catcode.Parameter {
			out = append(out, t)
			continue
		}
		i++
		if i >= len(toks) {
			return nil, mexerr.Parse(loc(t.Loc), "file ended reading a parameter marker in a macro body")
		}
		next := toks[i]
		if next.Kind == token.Char && next.Cat == catcode.Parameter {
			out = append(out, next) // "##" -> literal "#"
			continue
		}
		n := paramDigit(next)
		if n == 0 {
			return nil, mexerr.Parse(loc(next.Loc), "parameter marker in macro body must be a digit 1-9")
		}
		out = append(out, paramMarker(n, next.Loc))
	}
	return out, nil
}

// toTemplate converts a raw token sequence (literals plus paramMarker
// sentinels) into a state.TemplateToken sequence.
func toTemplate(toks []token.Token) []state.TemplateToken {
	out := make([]state.TemplateToken, 0, len(toks))
	for _, t := range toks {
		if n, ok := isParamMarker(t); ok {
			out = append(out, state.TemplateToken{IsParam: true, Param: n})
			continue
		}
		out = append(out, state.TemplateToken{Lit: t})
	}
	return out
}

// readBalancedGroup reads a `{...}` group with its outer braces
// stripped, either raw (expand=false, \def) or with macro expansion
// applied as it's captured (expand=true, \edef/\xdef). Nested groups'
// braces are kept as literal tokens in the result.
func readBalancedGroup(m state.Machine, expand bool) ([]token.Token, error) {
	pull := m.NextUnexpanded
	if expand {
		pull = m.NextExpanding
	}

	first, ok, err := pull()
	if err != nil {
		return nil, err
	}
	if !ok || !first.IsBeginGroup() {
		return nil, mexerr.Parse(mexerr.Location{}, "expected a { ... } group")
	}

	var out []token.Token
	depth := 1
	for depth > 0 {
		tok, ok, err := pull()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mexerr.Parse(mexerr.Location{}, "file ended inside a group")
		}
		switch {
		case tok.IsBeginGroup():
			depth++
			out = append(out, tok)
		case tok.IsEndGroup():
			depth--
			if depth > 0 {
				out = append(out, tok)
			}
		default:
			out = append(out, tok)
		}
	}
	return out, nil
}

// letRun implements \let<control>=<token>: the lhs becomes an alias for
// the rhs's current meaning (if rhs is a control) or the literal rhs
// token itself.
func letRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()

	nameTok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok || (nameTok.Kind != token.Control && nameTok.Kind != token.ActiveChar) {
		return nil, mexerr.Parse(loc(callLoc), "expected a control sequence after \\let")
	}
	name := nameTok.Identifier()

	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}

	rhs, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\let's right-hand side")
	}

	var alias *state.Control
	if rhs.Kind == token.Control || rhs.Kind == token.ActiveChar {
		target := m.Doc().Lookup(rhs.Identifier())
		alias = &state.Control{Kind: state.KindLetAlias, AliasTarget: target}
	} else {
		rhsCopy := rhs
		alias = &state.Control{Kind: state.KindLetAlias, AliasTok: &rhsCopy}
	}
	m.Doc().Define(name, alias, prefixes.Global)
	return nil, nil
}

// skipOptionalEquals consumes spaces then a single catcode-Other '='
// token if present, per TeX's lenient \let/assignment syntax.
func skipOptionalEquals(m state.Machine) error {
	for {
		tok, ok, err := m.NextUnexpanded()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if tok.IsSpace() {
			continue
		}
		if tok.Kind == token.Char && tok.Cat == catcode.Other && tok.Ch == '=' {
			return nil
		}
		m.Push(tok)
		return nil
	}
}

// futureletRun implements \futurelet<control><tok1><tok2>: lets control
// mean the current meaning of tok2 (as \let would), then pushes tok1 and
// tok2 back so they're read normally next.
func futureletRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()

	nameTok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok || (nameTok.Kind != token.Control && nameTok.Kind != token.ActiveChar) {
		return nil, mexerr.Parse(loc(callLoc), "expected a control sequence after \\futurelet")
	}
	name := nameTok.Identifier()

	tok1, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\futurelet")
	}
	tok2, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mexerr.Parse(loc(callLoc), "file ended reading \\futurelet")
	}

	var alias *state.Control
	if tok2.Kind == token.Control || tok2.Kind == token.ActiveChar {
		target := m.Doc().Lookup(tok2.Identifier())
		alias = &state.Control{Kind: state.KindLetAlias, AliasTarget: target}
	} else {
		tok2Copy := tok2
		alias = &state.Control{Kind: state.KindLetAlias, AliasTok: &tok2Copy}
	}
	m.Doc().Define(name, alias, prefixes.Global)

	return []token.Token{tok1, tok2}, nil
}

// registerDefRun builds \chardef/\mathchardef's Run: read the target
// control name, an optional '=', and an unsigned integer, then install.
func registerDefRun(install func(m state.Machine, name string, n int64, global bool)) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()
		nameTok, ok, err := m.NextUnexpanded()
		if err != nil {
			return nil, err
		}
		if !ok || (nameTok.Kind != token.Control && nameTok.Kind != token.ActiveChar) {
			return nil, mexerr.Parse(loc(callLoc), "expected a control sequence after \\%s", self.Name)
		}
		if err := skipOptionalEquals(m); err != nil {
			return nil, err
		}
		n, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		install(m, nameTok.Identifier(), n, prefixes.Global)
		return nil, nil
	}
}

// registerRefDefRun builds \countdef/\dimendef/.../\toksdef's Run: read
// the target control name, an optional '=', and a register index,
// binding the control to (block, index).
func registerRefDefRun(block state.RegisterBlock) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()
		nameTok, ok, err := m.NextUnexpanded()
		if err != nil {
			return nil, err
		}
		if !ok || (nameTok.Kind != token.Control && nameTok.Kind != token.ActiveChar) {
			return nil, mexerr.Parse(loc(callLoc), "expected a control sequence after \\%s", self.Name)
		}
		if err := skipOptionalEquals(m); err != nil {
			return nil, err
		}
		n, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		name := nameTok.Identifier()
		m.Doc().Define(name, &state.Control{
			Kind:  state.KindRegisterRef,
			Name:  name[1:],
			Block: block,
			Index: int(n),
		}, prefixes.Global)
		return nil, nil
	}
}
