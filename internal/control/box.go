package control

import (
	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
	"github.com/marnanel/mex/internal/value"
)

// installBoxPrimitives wires box construction and list-insertion
// (spec.md §4.6): \hbox/\vbox, \char, \kern, \penalty, \discretionary,
// \hskip/\vskip, \setbox/\box/\copy, \hrule/\vrule, \indent/\noindent.
func installBoxPrimitives(doc *state.Document) {
	define(doc, "hbox", boxConstructRun(state.Horizontal, box.NewHBox))
	define(doc, "vbox", boxConstructRun(state.InternalVertical, box.NewVBox))

	define(doc, "char", charRun)

	define(doc, "kern", kernRun)
	define(doc, "penalty", penaltyRun)
	define(doc, "discretionary", discretionaryRun)

	defineCap(doc, "hskip", state.Capabilities{ModeAffinity: state.AffinityHorizontal}, skipRun(box.AxisHorizontal))
	defineCap(doc, "vskip", state.Capabilities{ModeAffinity: state.AffinityVertical}, skipRun(box.AxisVertical))

	define(doc, "setbox", setboxRun)
	define(doc, "box", boxRegisterRun(true))
	define(doc, "copy", boxRegisterRun(false))

	defineCap(doc, "hrule", state.Capabilities{ModeAffinity: state.AffinityVertical}, ruleRun)
	defineCap(doc, "vrule", state.Capabilities{ModeAffinity: state.AffinityHorizontal}, ruleRun)

	defineCap(doc, "indent", state.Capabilities{ModeAffinity: state.AffinityHorizontal}, noop)
	defineCap(doc, "noindent", state.Capabilities{ModeAffinity: state.AffinityHorizontal}, noop)
}

func noop(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	return nil, nil
}

func layoutOf(m state.Machine, callLoc token.Location) (state.LayoutHandler, error) {
	l := m.Doc().Layout
	if l == nil {
		return nil, mexerr.Control(loc(callLoc), "no layout core attached to this document")
	}
	return l, nil
}

// enforceAffinity applies self's ModeAffinity (spec.md §4.6): if the
// current mode already matches, the caller proceeds; if a mode switch is
// needed, this resubmits self's own control token so it runs again once
// the switch has happened, and tells the caller not to proceed now.
func enforceAffinity(m state.Machine, self *state.Control, callLoc token.Location) (proceed bool, err error) {
	if self.ModeAffinity == state.AffinityAny {
		return true, nil
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return false, err
	}
	switched, err := layout.HandleControl(self)
	if err != nil {
		return false, err
	}
	if switched {
		m.Push(token.NewControl(self.Name, callLoc))
		return false, nil
	}
	return true, nil
}

// buildBox reads a `{...}` group as a fresh nested list in newMode,
// dispatching each token it contains (characters, spaces, paragraph
// breaks, and any control with its own side effects - controls are
// already fully executed by the time m.Next() yields past them) into
// that list, and returns the finished box once the matching closing
// brace is reached. Grounded on pongo2's parser loop that walks tokens
// until a terminator, generalized from "collect AST nodes" to "append
// gismos to the box being built".
func buildBox(m state.Machine, layout state.LayoutHandler, newMode state.Mode, empty func() *box.Box, callLoc token.Location) (*box.Box, error) {
	open, ok, err := m.Next()
	if err != nil {
		return nil, err
	}
	if !ok || !open.IsBeginGroup() {
		return nil, mexerr.Parse(loc(callLoc), "expected a { ... } group")
	}
	layout.PushList(newMode, empty())
	depth := 1
	for {
		tok, ok, err := m.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mexerr.Parse(loc(callLoc), "file ended inside a box")
		}
		if tok.IsBeginGroup() {
			depth++
			continue
		}
		if tok.IsEndGroup() {
			depth--
			if depth == 0 {
				break
			}
			continue
		}
		if err := dispatchContentToken(m, layout, tok); err != nil {
			return nil, err
		}
	}
	return layout.PopList(), nil
}

// dispatchContentToken routes a token already pulled at executing level
// into the current list: plain characters and spaces go through the
// layout core; anything else (a control) has already taken full effect
// by the time it reached here, so there's nothing left to do.
func dispatchContentToken(m state.Machine, layout state.LayoutHandler, tok token.Token) error {
	switch tok.Kind {
	case token.Paragraph:
		layout.EndParagraph()
	case token.Char:
		switch tok.Cat {
		case catcode.Space:
			layout.HandleSpace(m.Doc().CurrentFont)
		case catcode.Superscript, catcode.Subscript:
			return layout.HandleSubOrSuperscript(tok.Loc)
		default:
			return layout.HandleChar(tok.Ch, tok.Loc)
		}
	}
	return nil
}

func boxConstructRun(newMode state.Mode, empty func() *box.Box) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		layout, err := layoutOf(m, callLoc)
		if err != nil {
			return nil, err
		}
		b, err := buildBox(m, layout, newMode, empty, callLoc)
		if err != nil {
			return nil, err
		}
		layout.HandleBox(b)
		return nil, nil
	}
}

func charRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	proceed, err := enforceAffinity(m, self, callLoc)
	if err != nil || !proceed {
		return nil, err
	}
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	return nil, layout.HandleChar(rune(n), callLoc)
}

func kernRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	d, err := parseDimen(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	axis := box.AxisHorizontal
	if layout.CurrentMode() == state.Vertical || layout.CurrentMode() == state.InternalVertical {
		axis = box.AxisVertical
	}
	layout.HandleGismo(box.Kern{Width: d, Axis: axis})
	return nil, nil
}

func penaltyRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	n, err := parseSigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout.HandleGismo(box.Penalty{Demerits: int(n)})
	return nil, nil
}

// discretionaryRun implements \discretionary{pre}{post}{no}: each of the
// three groups is read without expansion, since their content is
// typeset only if that break variant is actually chosen later.
func discretionaryRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	pre, err := readBalancedGroup(m, false)
	if err != nil {
		return nil, err
	}
	post, err := readBalancedGroup(m, false)
	if err != nil {
		return nil, err
	}
	no, err := readBalancedGroup(m, false)
	if err != nil {
		return nil, err
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	penalty := 50
	if len(pre) == 0 {
		penalty = 100
	}
	layout.HandleGismo(box.DiscretionaryBreak{
		Prebreak:  toGismos(pre),
		Postbreak: toGismos(post),
		Nobreak:   toGismos(no),
		Penalty:   penalty,
	})
	return nil, nil
}

// toGismos wraps raw (untypeset) tokens as single-character placeholder
// boxes, since \discretionary's branches are stored for the line breaker
// to choose among later rather than typeset immediately.
func toGismos(toks []token.Token) []box.Gismo {
	out := make([]box.Gismo, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.Char {
			out = append(out, box.BoxGismo{Box: box.NewCharBox("", t.Ch, value.Zero, value.Zero, value.Zero)})
		}
	}
	return out
}

func skipRun(axis box.Axis) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		proceed, err := enforceAffinity(m, self, callLoc)
		if err != nil || !proceed {
			return nil, err
		}
		g, err := parseGlue(m, callLoc)
		if err != nil {
			return nil, err
		}
		layout, err := layoutOf(m, callLoc)
		if err != nil {
			return nil, err
		}
		layout.HandleGismo(box.Leader{Glue: g, Axis: axis})
		return nil, nil
	}
}

// setboxRun implements \setbox<n>=<box value>, where <box value> is
// \hbox{...}, \vbox{...}, \box<n> or \copy<n> - read directly here
// (rather than through the ordinary expanding pull) so reading stops
// exactly at the end of the box value instead of continuing to pull
// tokens until something else becomes yieldable.
func setboxRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}
	b, err := readBoxValue(m, callLoc)
	if err != nil {
		return nil, err
	}
	m.Doc().SetBox(int(n), b, prefixes.Global)
	return nil, nil
}

// readBoxValue reads exactly one box-valued construct: \hbox{...},
// \vbox{...}, \box<n>, or \copy<n>.
func readBoxValue(m state.Machine, callLoc token.Location) (*box.Box, error) {
	tok, ok, err := m.NextUnexpanded()
	if err != nil {
		return nil, err
	}
	if !ok || tok.Kind != token.Control {
		return nil, mexerr.Parse(loc(callLoc), "expected \\hbox, \\vbox, \\box or \\copy")
	}
	ctrl := m.Doc().Lookup(tok.Identifier())
	if ctrl == nil {
		return nil, mexerr.Macro(loc(callLoc), "undefined control sequence %s", tok.Identifier())
	}
	resolved := ctrl.Resolve()
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	switch resolved.Name {
	case "hbox":
		return buildBox(m, layout, state.Horizontal, box.NewHBox, callLoc)
	case "vbox":
		return buildBox(m, layout, state.InternalVertical, box.NewVBox, callLoc)
	case "box":
		idx, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		return m.Doc().TakeBox(int(idx)), nil
	case "copy":
		idx, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		return m.Doc().Registers.Box[idx], nil
	}
	return nil, mexerr.Parse(loc(callLoc), "expected \\hbox, \\vbox, \\box or \\copy, found \\%s", resolved.Name)
}

// boxRegisterRun implements a standalone \box<n>/\copy<n> appearing
// directly in the document flow (not as a \setbox operand): the
// register's box, if any, is inserted into the current list.
func boxRegisterRun(consume bool) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		n, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		var b *box.Box
		if consume {
			b = m.Doc().TakeBox(int(n))
		} else {
			b = m.Doc().Registers.Box[n]
		}
		if b == nil {
			return nil, nil
		}
		layout, err := layoutOf(m, callLoc)
		if err != nil {
			return nil, err
		}
		layout.HandleBox(b)
		return nil, nil
	}
}

func ruleRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	proceed, err := enforceAffinity(m, self, callLoc)
	if err != nil || !proceed {
		return nil, err
	}
	var w, h, d *value.Dimen
	for {
		kw, ok, err := matchRuleKeyword(m)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		dim, err := parseDimen(m, callLoc)
		if err != nil {
			return nil, err
		}
		switch kw {
		case "width":
			w = &dim
		case "height":
			h = &dim
		case "depth":
			d = &dim
		}
	}
	layout, err := layoutOf(m, callLoc)
	if err != nil {
		return nil, err
	}
	layout.HandleGismo(box.BoxGismo{Box: box.NewRule(w, h, d)})
	return nil, nil
}

// matchRuleKeyword recognises one of \hrule/\vrule's "width"/"height"/
// "depth" keywords, reporting which one (if any) matched.
func matchRuleKeyword(m state.Machine) (string, bool, error) {
	for _, kw := range []string{"width", "height", "depth"} {
		ok, err := matchWord(m, kw)
		if err != nil {
			return "", false, err
		}
		if ok {
			return kw, true, nil
		}
	}
	return "", false, nil
}

// matchWord reads tokens to see if they literally spell word
// (case-insensitively), pushing back on a non-match.
func matchWord(m state.Machine, word string) (bool, error) {
	var consumed []token.Token
	for i := 0; i < len(word); i++ {
		tok, ok, err := m.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			pushBack(m, consumed)
			return false, nil
		}
		consumed = append(consumed, tok)
		if tok.Kind != token.Char || (tok.Ch|0x20) != rune(word[i]|0x20) {
			pushBack(m, consumed)
			return false, nil
		}
	}
	return true, nil
}

func pushBack(m state.Machine, toks []token.Token) {
	for i := len(toks) - 1; i >= 0; i-- {
		m.Push(toks[i])
	}
}
