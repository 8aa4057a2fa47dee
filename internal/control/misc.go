package control

import (
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// installMiscPrimitives wires the remaining primitives this module gives
// a full implementation to: \parshape, \font, \shipout, \showlists.
func installMiscPrimitives(doc *state.Document) {
	define(doc, "parshape", parshapeRun)
	define(doc, "font", fontRun)
	define(doc, "shipout", shipoutRun)
	define(doc, "showlists", showlistsRun)
}

// parshapeRun implements \parshape=<n>{(indent,length) * n} read as n
// pairs of dimens immediately following the count, per spec.md §4.6's
// "Parshape" type: \parshape3 1pt 2in 0pt 3in 0pt 2in.
func parshapeRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	lines := make([]state.ParshapeLine, 0, n)
	for i := int64(0); i < n; i++ {
		indent, err := parseDimen(m, callLoc)
		if err != nil {
			return nil, err
		}
		length, err := parseDimen(m, callLoc)
		if err != nil {
			return nil, err
		}
		lines = append(lines, state.ParshapeLine{Indent: indent, Length: length})
	}
	m.Doc().Parshape = lines
	return nil, nil
}

// fontRun implements \font\name=<filename> [at <dimen> | scaled <n>]: it
// defines \name as a primitive that, when invoked, selects filename as
// the current font (spec.md §4.6 "CurrentFont"). The "at"/"scaled"
// clause only affects the font's design size, which this module's
// layout core does not model per-instance, so it is parsed and
// discarded.
func fontRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()

	tok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok || tok.Kind != token.Control {
		return nil, mexerr.Parse(loc(callLoc), "\\font must be followed by a control sequence")
	}
	name := tok.Identifier()

	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}
	filename, err := readFileName(m)
	if err != nil {
		return nil, err
	}

	switch ok, err := matchWord(m, "at"); {
	case err != nil:
		return nil, err
	case ok:
		if _, err := parseDimen(m, callLoc); err != nil {
			return nil, err
		}
	default:
		if ok, err := matchWord(m, "scaled"); err != nil {
			return nil, err
		} else if ok {
			if _, err := parseUnsigned(m, callLoc); err != nil {
				return nil, err
			}
		}
	}

	m.Doc().Define(name, &state.Control{
		Kind: state.KindPrimitive,
		Name: name[1:],
		Run:  fontSelectRun(filename),
	}, prefixes.Global)
	return nil, nil
}

func fontSelectRun(filename string) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		m.Doc().CurrentFont = filename
		return nil, nil
	}
}

// readFileName collects catcode {letter,other} characters up to the
// first space or non-character token, per TeX's rule that a filename
// argument is delimited by whitespace rather than braces.
func readFileName(m state.Machine) (string, error) {
	var name []rune
	for {
		tok, ok, err := m.Next()
		if err != nil {
			return "", err
		}
		if !ok || tok.Kind != token.Char || tok.IsSpace() {
			if ok && !tok.IsSpace() {
				m.Push(tok)
			}
			break
		}
		name = append(name, tok.Ch)
	}
	return string(name), nil
}

// shipoutRun implements \shipout<box value>: reads exactly one box-valued
// construct (the same grammar \setbox's right-hand side uses) and hands
// it straight to the output-driver hook, bypassing the current list.
func shipoutRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	b, err := readBoxValue(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout.ShipOut(b)
	return nil, nil
}

// showlistsRun implements \showlists: a diagnostic dump of the current
// mode, logged rather than typeset (spec.md §4.6 treats \showlists as a
// debugging aid, not a document-producing primitive).
func showlistsRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	state.Logger().Infof("current mode: %s", layout.CurrentMode())
	return nil, nil
}
