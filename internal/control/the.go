package control

import (
	"fmt"

	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
	"github.com/marnanel/mex/internal/value"
)

// installTheAndArithmetic wires \the, the register primitives it (and
// \advance/\multiply/\divide) operate on, and the arithmetic family
// itself (spec.md §4.4 "Arithmetic").
func installTheAndArithmetic(doc *state.Document) {
	installRegisterPrimitives(doc)

	defineExpandable(doc, "the", theRun)

	define(doc, "advance", arithRun(func(a, b opValue) (opValue, error) { return a.add(b) }, true))
	define(doc, "multiply", arithRun(func(a, b opValue) (opValue, error) { return a.scale(b.asInt) }, false))
	define(doc, "divide", arithRun(func(a, b opValue) (opValue, error) { return a.divide(b.asInt) }, false))
}

// parseUnsigned reads an <unsigned number> against m's own expansion
// policy and the document as the control resolver.
func parseUnsigned(m state.Machine, callLoc token.Location) (int64, error) {
	return value.ParseUnsignedInteger(m, m.Doc(), loc(callLoc))
}

func parseSigned(m state.Machine, callLoc token.Location) (int64, error) {
	return value.ParseSignedInteger(m, m.Doc(), loc(callLoc))
}

func parseDimen(m state.Machine, callLoc token.Location) (value.Dimen, error) {
	return value.ParseDimen(m, m.Doc(), loc(callLoc), nil, nil)
}

func parseGlue(m state.Machine, callLoc token.Location) (value.Glue, error) {
	return value.ParseGlue(m, m.Doc(), loc(callLoc), nil, nil)
}

// registerTarget names one (block, index) a control names - either
// directly (a bare \count followed by an index) or via a \countdef-style
// reference.
type registerTarget struct {
	Block state.RegisterBlock
	Index int
}

// resolveRegisterTarget reads the index following a bare register
// primitive (\count, \dimen, \skip, \muskip, \toks), or returns the
// (block, index) a register-ref control already carries.
func resolveRegisterTarget(m state.Machine, c *state.Control, callLoc token.Location) (registerTarget, error) {
	if c.Kind == state.KindRegisterRef {
		return registerTarget{c.Block, c.Index}, nil
	}
	block, ok := blockFor(c.Name)
	if !ok {
		return registerTarget{}, mexerr.Control(loc(callLoc), "\\%s is not a register", c.Name)
	}
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return registerTarget{}, err
	}
	return registerTarget{block, int(n)}, nil
}

func blockFor(name string) (state.RegisterBlock, bool) {
	switch name {
	case "count":
		return state.BlockCount, true
	case "dimen":
		return state.BlockDimen, true
	case "skip":
		return state.BlockSkip, true
	case "muskip":
		return state.BlockMuskip, true
	case "toks":
		return state.BlockToks, true
	case "box":
		return state.BlockBox, true
	}
	return 0, false
}

// installRegisterPrimitives wires the bare \count/\dimen/\skip/\muskip/
// \toks primitives (both as assignments, "\count3=5", and as numeric
// operands elsewhere via ResolveControlAsNumber) plus \catcode/\lccode/
// \uccode table assignments.
func installRegisterPrimitives(doc *state.Document) {
	define(doc, "count", registerAssignRun(state.BlockCount))
	define(doc, "dimen", registerAssignRun(state.BlockDimen))
	define(doc, "skip", registerAssignRun(state.BlockSkip))
	define(doc, "muskip", registerAssignRun(state.BlockMuskip))
	define(doc, "toks", toksAssignRun)

	define(doc, "catcode", catcodeAssignRun)
	define(doc, "lccode", lcUcAssignRun((*state.Document).SetLccode))
	define(doc, "uccode", lcUcAssignRun((*state.Document).SetUccode))
}

func registerAssignRun(block state.RegisterBlock) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()
		idx, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		if err := skipOptionalEquals(m); err != nil {
			return nil, err
		}
		switch block {
		case state.BlockCount:
			v, err := parseSigned(m, callLoc)
			if err != nil {
				return nil, err
			}
			m.Doc().SetCount(int(idx), v, prefixes.Global)
		case state.BlockDimen:
			v, err := parseDimen(m, callLoc)
			if err != nil {
				return nil, err
			}
			m.Doc().SetDimen(int(idx), v, prefixes.Global)
		case state.BlockSkip:
			v, err := parseGlue(m, callLoc)
			if err != nil {
				return nil, err
			}
			m.Doc().SetSkip(int(idx), v, prefixes.Global)
		case state.BlockMuskip:
			v, err := parseGlue(m, callLoc)
			if err != nil {
				return nil, err
			}
			m.Doc().SetMuskip(int(idx), v, prefixes.Global)
		}
		return nil, nil
	}
}

func toksAssignRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()
	idx, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}
	toks, err := readBalancedGroup(m, false)
	if err != nil {
		return nil, err
	}
	m.Doc().SetToks(int(idx), toks, prefixes.Global)
	return nil, nil
}

func catcodeAssignRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	prefixes := m.Doc().TakePrefixes()
	r, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	if err := skipOptionalEquals(m); err != nil {
		return nil, err
	}
	n, err := parseUnsigned(m, callLoc)
	if err != nil {
		return nil, err
	}
	m.Doc().SetCatcode(rune(r), catcode.Code(n), prefixes.Global)
	return nil, nil
}

func lcUcAssignRun(set func(d *state.Document, r, v rune, global bool)) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()
		r, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		if err := skipOptionalEquals(m); err != nil {
			return nil, err
		}
		n, err := parseUnsigned(m, callLoc)
		if err != nil {
			return nil, err
		}
		set(m.Doc(), rune(r), rune(n), prefixes.Global)
		return nil, nil
	}
}

// theRun implements \the: reads a following control or register
// reference, returns its textual representation as OTHER/SPACE
// character tokens (spec.md §4.4).
func theRun(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
	tok, ok, err := m.NextExpanding()
	if err != nil {
		return nil, err
	}
	if !ok || tok.Kind != token.Control {
		return nil, mexerr.Parse(loc(callLoc), "\\the must be followed by a control sequence")
	}
	name := tok.Identifier()
	c := m.Doc().Lookup(name)
	if c == nil {
		return nil, mexerr.Macro(loc(callLoc), "\\the: undefined control %s", name)
	}
	resolved := c.Resolve()

	var target registerTarget
	switch resolved.Kind {
	case state.KindChardef:
		return textToTokens(fmt.Sprintf("%d", resolved.CharValue), callLoc), nil
	case state.KindRegisterRef:
		target = registerTarget{resolved.Block, resolved.Index}
	default:
		var err error
		target, err = resolveRegisterTarget(m, resolved, callLoc)
		if err != nil {
			return nil, err
		}
	}

	if target.Block == state.BlockToks {
		// \the\toks<n> pushes the stored token list itself, not a textual
		// rendering of it - a \toks register holds tokens, not a number.
		stored := m.Doc().Registers.Toks[target.Index]
		out := make([]token.Token, len(stored))
		copy(out, stored)
		return out, nil
	}
	if target.Block == state.BlockBox {
		return nil, mexerr.Control(loc(callLoc), "you can't use \\the on a box register")
	}
	return textToTokens(registerText(m.Doc(), target.Block, target.Index), callLoc), nil
}

func registerText(doc *state.Document, block state.RegisterBlock, index int) string {
	switch block {
	case state.BlockCount:
		return fmt.Sprintf("%d", doc.Registers.Count[index])
	case state.BlockDimen:
		return doc.Registers.Dimen[index].String()
	case state.BlockSkip:
		return doc.Registers.Skip[index].String()
	case state.BlockMuskip:
		return doc.Registers.Muskip[index].String()
	default:
		return ""
	}
}

// textToTokens turns a plain-ASCII string into the OTHER-catcode token
// sequence \the pushes back, per spec.md §4.4 (spaces get catcode Space
// so they behave as real interword space on re-tokenisation).
func textToTokens(s string, callLoc token.Location) []token.Token {
	loc := token.Location{Filename: callLoc.Filename, Line: callLoc.Line, Column: callLoc.Column}
	out := make([]token.Token, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			out = append(out, token.NewChar(' ', catcode.Space, loc))
		} else {
			out = append(out, token.NewChar(r, catcode.Other, loc))
		}
	}
	return out
}

// opValue is a dynamically-typed arithmetic operand for \advance/
// \multiply/\divide: exactly one of the three register kinds it can
// apply to.
type opValue struct {
	block    state.RegisterBlock
	asInt    int64
	asDimen  value.Dimen
	asGlue   value.Glue
}

func (a opValue) add(b opValue) (opValue, error) {
	switch a.block {
	case state.BlockCount:
		return opValue{block: a.block, asInt: a.asInt + b.asInt}, nil
	case state.BlockDimen:
		return opValue{block: a.block, asDimen: a.asDimen.Add(b.asDimen)}, nil
	case state.BlockSkip, state.BlockMuskip:
		return opValue{block: a.block, asGlue: a.asGlue.Add(b.asGlue)}, nil
	}
	return opValue{}, mexerr.Control(mexerr.Location{}, "cannot advance this register")
}

func (a opValue) scale(n int64) (opValue, error) {
	switch a.block {
	case state.BlockCount:
		return opValue{block: a.block, asInt: a.asInt * n}, nil
	case state.BlockDimen:
		return opValue{block: a.block, asDimen: a.asDimen.Scale(n)}, nil
	case state.BlockSkip, state.BlockMuskip:
		return opValue{block: a.block, asGlue: a.asGlue.Scale(n)}, nil
	}
	return opValue{}, mexerr.Control(mexerr.Location{}, "cannot multiply this register")
}

func (a opValue) divide(n int64) (opValue, error) {
	switch a.block {
	case state.BlockCount:
		if n == 0 {
			return opValue{}, mexerr.Value(mexerr.Location{}, "divide by zero")
		}
		return opValue{block: a.block, asInt: a.asInt / n}, nil
	case state.BlockDimen:
		d, err := a.asDimen.Divide(mexerr.Location{}, n)
		return opValue{block: a.block, asDimen: d}, err
	case state.BlockSkip, state.BlockMuskip:
		g, err := a.asGlue.Divide(mexerr.Location{}, n)
		return opValue{block: a.block, asGlue: g}, err
	}
	return opValue{}, mexerr.Control(mexerr.Location{}, "cannot divide this register")
}

// arithRun builds \advance/\multiply/\divide's Run function: read the
// target register, an optional "by", the operand, apply combine, and
// write back.
func arithRun(combine func(current, operand opValue) (opValue, error), operandIsSameKind bool) state.PrimitiveFunc {
	return func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		prefixes := m.Doc().TakePrefixes()

		tok, ok, err := m.NextExpanding()
		if err != nil {
			return nil, err
		}
		if !ok || tok.Kind != token.Control {
			return nil, mexerr.Parse(loc(callLoc), "\\%s must be followed by a register", self.Name)
		}
		c := m.Doc().Lookup(tok.Identifier())
		if c == nil {
			return nil, mexerr.Macro(loc(callLoc), "\\%s: undefined control %s", self.Name, tok.Identifier())
		}
		target, err := resolveRegisterTarget(m, c.Resolve(), callLoc)
		if err != nil {
			return nil, err
		}

		if err := skipOptionalKeywordBy(m); err != nil {
			return nil, err
		}

		current, err := readRegisterOpValue(m.Doc(), target)
		if err != nil {
			return nil, err
		}

		var operand opValue
		if operandIsSameKind {
			operand, err = parseOpValueLike(m, target.Block, callLoc)
		} else {
			n, e := parseSigned(m, callLoc)
			err = e
			operand = opValue{asInt: n}
		}
		if err != nil {
			return nil, err
		}

		result, err := combine(current, operand)
		if err != nil {
			return nil, err
		}
		writeRegisterOpValue(m.Doc(), target, result, prefixes.Global)
		return nil, nil
	}
}

func readRegisterOpValue(doc *state.Document, t registerTarget) (opValue, error) {
	switch t.Block {
	case state.BlockCount:
		return opValue{block: t.Block, asInt: doc.Registers.Count[t.Index]}, nil
	case state.BlockDimen:
		return opValue{block: t.Block, asDimen: doc.Registers.Dimen[t.Index]}, nil
	case state.BlockSkip:
		return opValue{block: t.Block, asGlue: doc.Registers.Skip[t.Index]}, nil
	case state.BlockMuskip:
		return opValue{block: t.Block, asGlue: doc.Registers.Muskip[t.Index]}, nil
	}
	return opValue{}, mexerr.Control(mexerr.Location{}, "register block %v has no arithmetic", t.Block)
}

func writeRegisterOpValue(doc *state.Document, t registerTarget, v opValue, global bool) {
	switch t.Block {
	case state.BlockCount:
		doc.SetCount(t.Index, v.asInt, global)
	case state.BlockDimen:
		doc.SetDimen(t.Index, v.asDimen, global)
	case state.BlockSkip:
		doc.SetSkip(t.Index, v.asGlue, global)
	case state.BlockMuskip:
		doc.SetMuskip(t.Index, v.asGlue, global)
	}
}

func parseOpValueLike(m state.Machine, block state.RegisterBlock, callLoc token.Location) (opValue, error) {
	switch block {
	case state.BlockCount:
		n, err := parseSigned(m, callLoc)
		return opValue{asInt: n}, err
	case state.BlockDimen:
		d, err := parseDimen(m, callLoc)
		return opValue{asDimen: d}, err
	case state.BlockSkip, state.BlockMuskip:
		g, err := parseGlue(m, callLoc)
		return opValue{asGlue: g}, err
	}
	return opValue{}, mexerr.Control(loc(callLoc), "register block %v has no arithmetic", block)
}

// skipOptionalKeywordBy consumes the optional "by" keyword \advance
// etc. accept between the register and its operand.
func skipOptionalKeywordBy(m state.Machine) error {
	tok, ok, err := m.Next()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if tok.IsSpace() {
		tok, ok, err = m.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	if tok.Kind == token.Char && (tok.Ch == 'b' || tok.Ch == 'B') {
		tok2, ok2, err := m.Next()
		if err != nil {
			return err
		}
		if ok2 && tok2.Kind == token.Char && (tok2.Ch == 'y' || tok2.Ch == 'Y') {
			return nil
		}
		if ok2 {
			m.Push(tok2)
		}
	}
	m.Push(tok)
	return nil
}
