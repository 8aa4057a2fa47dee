package control

import (
	"reflect"
	"strings"

	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// installConditionals wires every \if* variant plus \else/\or/\fi
// (spec.md §4.4 "Conditionals"). All of them are expandable: TeX
// evaluates conditionals during expansion, not execution, so they work
// correctly inside macro arguments and \edef bodies.
func installConditionals(doc *state.Document) {
	defineExpandable(doc, "iftrue", condRun("iftrue", func(m state.Machine, callLoc token.Location) (bool, error) { return true, nil }))
	defineExpandable(doc, "iffalse", condRun("iffalse", func(m state.Machine, callLoc token.Location) (bool, error) { return false, nil }))
	defineExpandable(doc, "ifnum", condRun("ifnum", ifnumEval))
	defineExpandable(doc, "ifdim", condRun("ifdim", ifdimEval))
	defineExpandable(doc, "ifodd", condRun("ifodd", ifoddEval))
	defineExpandable(doc, "ifvmode", condRun("ifvmode", modeEval(func(m state.Mode) bool { return m == state.Vertical || m == state.InternalVertical })))
	defineExpandable(doc, "ifhmode", condRun("ifhmode", modeEval(func(m state.Mode) bool { return m == state.Horizontal || m == state.RestrictedHorizontal })))
	defineExpandable(doc, "ifmmode", condRun("ifmmode", modeEval(func(m state.Mode) bool { return m == state.Math || m == state.DisplayMath })))
	defineExpandable(doc, "ifinner", condRun("ifinner", modeEval(func(m state.Mode) bool {
		return m == state.InternalVertical || m == state.RestrictedHorizontal || m == state.Math
	})))
	defineExpandable(doc, "ifcat", condRun("ifcat", ifcatEval))
	defineExpandable(doc, "if", condRun("if", ifEval))
	defineExpandable(doc, "ifx", condRun("ifx", ifxEval))
	defineExpandable(doc, "ifeof", condRun("ifeof", ifeofEval))
	defineExpandable(doc, "ifhbox", condRun("ifhbox", boxKindEval(box.KindHBox)))
	defineExpandable(doc, "ifvbox", condRun("ifvbox", boxKindEval(box.KindVBox)))
	defineExpandable(doc, "ifvoid", condRun("ifvoid", ifvoidEval))

	defineExpandable(doc, "ifcase", ifcaseRun)
	defineExpandable(doc, "else", elseRun)
	defineExpandable(doc, "or", orRun)
	defineExpandable(doc, "fi", fiRun)
}

// condRun builds a boolean \if*'s Run function: evaluate, push a
// Conditional, and either fall into the true branch or skip to \else/\fi.
func condRun(name string, eval func(m state.Machine, callLoc token.Location) (bool, error)) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		ok, err := eval(m, callLoc)
		if err != nil {
			return nil, err
		}
		cond := &state.Conditional{Name: name, Taken: ok}
		m.Doc().Conditionals = append(m.Doc().Conditionals, cond)
		if ok {
			return nil, nil
		}
		stop, err := skipToElseOrFi(m, false)
		if err != nil {
			return nil, err
		}
		if stop == "else" {
			cond.SawElse = true
			cond.Taken = true
		} else {
			m.Doc().Conditionals = m.Doc().Conditionals[:len(m.Doc().Conditionals)-1]
		}
		return nil, nil
	}
}

func ifnumEval(m state.Machine, callLoc token.Location) (bool, error) {
	a, err := parseSigned(m, callLoc)
	if err != nil {
		return false, err
	}
	rel, err := readRelation(m, callLoc)
	if err != nil {
		return false, err
	}
	b, err := parseSigned(m, callLoc)
	if err != nil {
		return false, err
	}
	return compareInt(a, rel, b), nil
}

func ifdimEval(m state.Machine, callLoc token.Location) (bool, error) {
	a, err := parseDimen(m, callLoc)
	if err != nil {
		return false, err
	}
	rel, err := readRelation(m, callLoc)
	if err != nil {
		return false, err
	}
	b, err := parseDimen(m, callLoc)
	if err != nil {
		return false, err
	}
	return compareInt(a.Sp, rel, b.Sp), nil
}

func ifoddEval(m state.Machine, callLoc token.Location) (bool, error) {
	n, err := parseSigned(m, callLoc)
	if err != nil {
		return false, err
	}
	return n%2 != 0, nil
}

func modeEval(want func(state.Mode) bool) func(state.Machine, token.Location) (bool, error) {
	return func(m state.Machine, callLoc token.Location) (bool, error) {
		return want(m.Doc().Mode), nil
	}
}

// readRelation reads one of '<', '=', '>' (optionally surrounded by
// spaces), per the TeXbook's \ifnum/\ifdim syntax.
func readRelation(m state.Machine, callLoc token.Location) (byte, error) {
	for {
		tok, ok, err := m.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, mexerr.Parse(loc(callLoc), "expected a relation (<, =, >)")
		}
		if tok.IsSpace() {
			continue
		}
		if tok.Kind == token.Char && (tok.Ch == '<' || tok.Ch == '=' || tok.Ch == '>') {
			return byte(tok.Ch), nil
		}
		return 0, mexerr.Parse(loc(callLoc), "expected a relation (<, =, >), found %q", tok.String())
	}
}

func compareInt(a int64, rel byte, b int64) bool {
	switch rel {
	case '<':
		return a < b
	case '>':
		return a > b
	default:
		return a == b
	}
}

func charCodeAndCat(tok token.Token) (rune, catcode.Code) {
	if tok.Kind == token.Char || tok.Kind == token.ActiveChar {
		return tok.Ch, tok.Cat
	}
	return 256, 16
}

func ifcatEval(m state.Machine, callLoc token.Location) (bool, error) {
	t1, ok1, err := m.NextExpanding()
	if err != nil {
		return false, err
	}
	t2, ok2, err := m.NextExpanding()
	if err != nil {
		return false, err
	}
	if !ok1 || !ok2 {
		return false, mexerr.Parse(loc(callLoc), "\\ifcat needs two tokens")
	}
	_, c1 := charCodeAndCat(t1)
	_, c2 := charCodeAndCat(t2)
	return c1 == c2, nil
}

func ifEval(m state.Machine, callLoc token.Location) (bool, error) {
	t1, ok1, err := m.NextExpanding()
	if err != nil {
		return false, err
	}
	t2, ok2, err := m.NextExpanding()
	if err != nil {
		return false, err
	}
	if !ok1 || !ok2 {
		return false, mexerr.Parse(loc(callLoc), "\\if needs two tokens")
	}
	r1, _ := charCodeAndCat(t1)
	r2, _ := charCodeAndCat(t2)
	return r1 == r2, nil
}

func ifxEval(m state.Machine, callLoc token.Location) (bool, error) {
	t1, ok1, err := m.NextUnexpanded()
	if err != nil {
		return false, err
	}
	t2, ok2, err := m.NextUnexpanded()
	if err != nil {
		return false, err
	}
	if !ok1 || !ok2 {
		return false, mexerr.Parse(loc(callLoc), "\\ifx needs two tokens")
	}
	if t1.Kind != t2.Kind {
		return false, nil
	}
	if t1.Kind == token.Char || t1.Kind == token.ActiveChar {
		return t1.Equal(t2), nil
	}
	c1 := m.Doc().Lookup(t1.Identifier())
	c2 := m.Doc().Lookup(t2.Identifier())
	return controlsEqual(c1, c2), nil
}

func controlsEqual(a, b *state.Control) bool {
	if a == nil || b == nil {
		return a == b
	}
	a, b = a.Resolve(), b.Resolve()
	if a == b {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case state.KindPrimitive:
		return reflect.ValueOf(a.Run).Pointer() == reflect.ValueOf(b.Run).Pointer()
	case state.KindUserMacro:
		return macrosEqual(a.Macro, b.Macro)
	case state.KindChardef:
		return a.CharValue == b.CharValue && a.IsMathChar == b.IsMathChar
	case state.KindRegisterRef:
		return a.Block == b.Block && a.Index == b.Index
	default:
		return false
	}
}

func macrosEqual(a, b *state.UserMacro) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Long != b.Long || a.Outer != b.Outer || len(a.Params) != len(b.Params) || len(a.Replacement) != len(b.Replacement) {
		return false
	}
	for i := range a.Params {
		if !templateTokenEqual(a.Params[i], b.Params[i]) {
			return false
		}
	}
	for i := range a.Replacement {
		if !templateTokenEqual(a.Replacement[i], b.Replacement[i]) {
			return false
		}
	}
	return true
}

// templateTokenEqual compares two TemplateTokens field-by-field: Token
// itself holds a func field (Call), so it isn't comparable with == and
// neither is anything embedding it.
func templateTokenEqual(a, b state.TemplateToken) bool {
	if a.IsParam != b.IsParam {
		return false
	}
	if a.IsParam {
		return a.Param == b.Param
	}
	return a.Lit.Equal(b.Lit)
}

// ifeofEval always reports true (no input stream is ever open, since
// \openin/\read are out of this module's scope), matching TeX's own
// rule that an unopened stream tests as "at eof".
func ifeofEval(m state.Machine, callLoc token.Location) (bool, error) {
	_, err := parseSigned(m, callLoc)
	return true, err
}

func boxKindEval(want box.Kind) func(state.Machine, token.Location) (bool, error) {
	return func(m state.Machine, callLoc token.Location) (bool, error) {
		n, err := parseUnsigned(m, callLoc)
		if err != nil {
			return false, err
		}
		b := m.Doc().Registers.Box[n]
		return b != nil && b.Kind == want, nil
	}
}

func ifvoidEval(m state.Machine, callLoc token.Location) (bool, error) {
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return false, err
	}
	return m.Doc().Registers.Box[n] == nil, nil
}

// ifcaseRun implements \ifcase<n>: case0\or case1\or ... \or casedefault
// \fi, selecting the n'th \or-delimited branch (0-indexed), falling
// through to a trailing \else if n exceeds the number of \or branches.
func ifcaseRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	n, err := parseSigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	cond := &state.Conditional{Name: "ifcase"}
	m.Doc().Conditionals = append(m.Doc().Conditionals, cond)

	for i := int64(0); i < n; i++ {
		stop, err := skipToElseOrFi(m, true)
		if err != nil {
			return nil, err
		}
		switch stop {
		case "fi":
			m.Doc().Conditionals = m.Doc().Conditionals[:len(m.Doc().Conditionals)-1]
			return nil, nil
		case "else":
			cond.SawElse = true
			cond.Taken = true
			return nil, nil
		}
		// stop == "or": keep counting.
	}
	cond.Taken = true
	return nil, nil
}

func elseRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	conds := m.Doc().Conditionals
	if len(conds) == 0 {
		return nil, mexerr.Control(loc(callLoc), "extra \\else")
	}
	cond := conds[len(conds)-1]
	if cond.SawElse {
		return nil, mexerr.Control(loc(callLoc), "extra \\else")
	}
	cond.SawElse = true
	if cond.Taken {
		// The true (or selected \ifcase) branch already ran; skip the
		// \else branch entirely.
		stop, err := skipToElseOrFi(m, false)
		if err == nil && stop == "fi" {
			m.Doc().Conditionals = m.Doc().Conditionals[:len(m.Doc().Conditionals)-1]
		}
		return nil, err
	}
	cond.Taken = true
	return nil, nil
}

func orRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	// A bare \or outside \ifcase's own scanning (skipToElseOrFi consumes
	// the ones that matter) means an already-selected \ifcase branch is
	// finishing; treat it exactly like \fi for a non-\ifcase context by
	// skipping to \fi, matching TeX's "too many \or" tolerance when a
	// branch falls through into it.
	conds := m.Doc().Conditionals
	if len(conds) == 0 || conds[len(conds)-1].Name != "ifcase" {
		return nil, mexerr.Control(loc(callLoc), "extra \\or")
	}
	for {
		stop, err := skipToElseOrFi(m, false)
		if err != nil {
			return nil, err
		}
		if stop == "fi" {
			break
		}
	}
	m.Doc().Conditionals = m.Doc().Conditionals[:len(m.Doc().Conditionals)-1]
	return nil, nil
}

func fiRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	conds := m.Doc().Conditionals
	if len(conds) == 0 {
		return nil, mexerr.Control(loc(callLoc), "extra \\fi")
	}
	m.Doc().Conditionals = conds[:len(conds)-1]
	return nil, nil
}

// skipToElseOrFi scans raw (unexpanded) tokens until a \fi or \else at
// the current nesting depth, or (if acceptOr) an \or, tracking nested
// \if*/\fi pairs so an inner conditional's \else/\fi doesn't terminate
// the scan early. Tokens are never executed or expanded while skipped,
// per spec.md §4.4's "consumes tokens without executing them ... even if
// they include \outer macros".
func skipToElseOrFi(m state.Machine, acceptOr bool) (string, error) {
	depth := 0
	for {
		tok, ok, err := m.NextUnexpanded()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", mexerr.Parse(mexerr.Location{}, "file ended inside a conditional")
		}
		if tok.Kind != token.Control {
			continue
		}
		switch {
		case strings.HasPrefix(tok.Name, "if"):
			depth++
		case tok.Name == "fi":
			if depth == 0 {
				return "fi", nil
			}
			depth--
		case tok.Name == "else":
			if depth == 0 {
				return "else", nil
			}
		case tok.Name == "or":
			if depth == 0 && acceptOr {
				return "or", nil
			}
		}
	}
}
