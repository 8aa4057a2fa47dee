package value

import (
	"strconv"
	"strings"

	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/token"
)

// Reader is the minimal token-stream interface the numeric parser needs.
// internal/expand.Expander satisfies it; keeping the dependency this
// narrow avoids an import cycle (expand already depends on value for
// register types).
type Reader interface {
	// Next returns the next token, expanding as the reader's own policy
	// dictates. ok is false at EOF.
	Next() (tok token.Token, ok bool, err error)
	// Push reinjects a token ahead of the rest of the stream.
	Push(tok token.Token)
}

// Resolver looks up whether a control name currently means a register or
// a chardef that can stand in for a number, per spec.md's "a control
// evaluating to a number substitutes its value". Implemented by
// internal/state.Document.
type Resolver interface {
	ResolveControlAsNumber(name string) (int64, bool, error)
}

// optionalSigns consumes a run of '+', '-' and spaces, per
// mex/value/value.py's optional_negative_signs, and reports whether the
// net sign is negative.
func optionalSigns(r Reader) (negative bool, err error) {
	for {
		tok, ok, err := r.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return negative, nil
		}
		if tok.IsSpace() {
			continue
		}
		if tok.Kind == token.Char && tok.Cat == catcode.Other {
			switch tok.Ch {
			case '+':
				continue
			case '-':
				negative = !negative
				continue
			}
		}
		r.Push(tok)
		return negative, nil
	}
}

// ParseSignedInteger reads a <number> per the TeXbook p265: optional
// signs, then an unsigned integer (possibly a backtick/hex/octal literal
// or a control that resolves to one).
func ParseSignedInteger(r Reader, res Resolver, loc mexerr.Location) (int64, error) {
	neg, err := optionalSigns(r)
	if err != nil {
		return 0, err
	}
	n, err := ParseUnsignedInteger(r, res, loc)
	if err != nil {
		return 0, err
	}
	if neg {
		return -n, nil
	}
	return n, nil
}

// ParseUnsignedInteger reads an <unsigned number>: a backtick character
// code, a "-prefixed hex literal, a '-prefixed octal literal, a plain
// decimal run, or a control name that resolves to a number (a register
// or a \chardef), per spec.md §4.4.
func ParseUnsignedInteger(r Reader, res Resolver, loc mexerr.Location) (int64, error) {
	tok, ok, err := r.Next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, mexerr.Parse(loc, "expected a number but found end of input")
	}

	if tok.Kind == token.Char && tok.Cat == catcode.Other {
		switch tok.Ch {
		case '`':
			return parseBacktickChar(r, loc)
		case '"':
			return parseDigitsInBase(r, loc, 16, isHexDigit)
		case '\'':
			return parseDigitsInBase(r, loc, 8, isOctDigit)
		}
	}

	if tok.Kind == token.Control {
		if res == nil {
			return 0, mexerr.Macro(loc, "no macro called \\%s", tok.Name)
		}
		n, isNum, err := res.ResolveControlAsNumber(tok.Name)
		if err != nil {
			return 0, err
		}
		if !isNum {
			return 0, mexerr.Control(loc, "\\%s does not represent a number", tok.Name)
		}
		return n, nil
	}

	r.Push(tok)
	digits, err := readDigitRun(r, isDecDigit)
	if err != nil {
		return 0, err
	}
	if digits == "" {
		return 0, mexerr.Parse(loc, "expected a number")
	}
	return strconv.ParseInt(digits, 10, 64)
}

// ParseDecimal reads an <unsigned number> that may also be a decimal
// constant (TeXbook p266): a run of digits optionally containing one
// '.' or ','. Used for \parshape-style and dimen-coefficient parsing.
func ParseDecimal(r Reader, res Resolver, loc mexerr.Location) (float64, error) {
	tok, ok, err := r.Next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, mexerr.Parse(loc, "expected a number but found end of input")
	}

	if tok.Kind == token.Control {
		if res == nil {
			return 0, mexerr.Macro(loc, "no macro called \\%s", tok.Name)
		}
		n, isNum, err := res.ResolveControlAsNumber(tok.Name)
		if err != nil {
			return 0, err
		}
		if !isNum {
			return 0, mexerr.Control(loc, "\\%s does not represent a number", tok.Name)
		}
		return float64(n), nil
	}

	r.Push(tok)
	digits, err := readDecimalDigitRun(r)
	if err != nil {
		return 0, err
	}
	if digits == "" || digits == "." {
		return 0, nil
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, mexerr.Parse(loc, "malformed decimal constant %q", digits)
	}
	return f, nil
}

func parseBacktickChar(r Reader, loc mexerr.Location) (int64, error) {
	tok, ok, err := r.Next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, mexerr.Parse(loc, "expected a character after `")
	}
	if tok.Kind == token.Control {
		if len(tok.Name) != 1 {
			return 0, mexerr.Parse(loc, "literal control sequences must have names of one character: \\%s", tok.Name)
		}
		return int64(tok.Name[0]), nil
	}
	return int64(tok.Ch), nil
}

func isDecDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool {
	return isDecDigit(b) || (b >= 'A' && b <= 'F') || (b >= 'a' && b <= 'f')
}
func isOctDigit(b byte) bool { return b >= '0' && b <= '7' }

func parseDigitsInBase(r Reader, loc mexerr.Location, base int, accept func(byte) bool) (int64, error) {
	digits, err := readDigitRun(r, accept)
	if err != nil {
		return 0, err
	}
	if digits == "" {
		return 0, mexerr.Parse(loc, "expected digits in base %d", base)
	}
	return strconv.ParseInt(digits, base, 64)
}

// readDigitRun accumulates catcode Other/Letter characters accepted by
// the predicate, consuming (and discarding) a single trailing space, and
// pushing back the first rejected token - mirroring mex/value/value.py's
// loop, which treats a non-digit, non-space token as "someone else's
// problem" and pushes it back rather than erroring.
func readDigitRun(r Reader, accept func(byte) bool) (string, error) {
	var sb strings.Builder
	for {
		tok, ok, err := r.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if tok.Kind == token.Char && (tok.Cat == catcode.Other || tok.Cat == catcode.Letter) {
			b := byte(tok.Ch)
			if accept(b) {
				sb.WriteByte(b)
				continue
			}
			r.Push(tok)
			break
		}
		if tok.IsSpace() {
			break // one optional trailing space is absorbed
		}
		r.Push(tok)
		break
	}
	return sb.String(), nil
}

func readDecimalDigitRun(r Reader) (string, error) {
	var sb strings.Builder
	seenDot := false
	for {
		tok, ok, err := r.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if tok.Kind == token.Char && (tok.Cat == catcode.Other || tok.Cat == catcode.Letter) {
			switch {
			case isDecDigit(byte(tok.Ch)):
				sb.WriteByte(byte(tok.Ch))
				continue
			case tok.Ch == '.' || tok.Ch == ',':
				if !seenDot {
					sb.WriteByte('.')
					seenDot = true
				}
				continue
			}
			r.Push(tok)
			break
		}
		if tok.IsSpace() {
			break
		}
		r.Push(tok)
		break
	}
	return sb.String(), nil
}

// ParseUnit reads a required unit suffix for a Dimen literal: two
// letters naming a fixed-ratio unit, "em"/"ex" (font-relative, resolved
// by the caller against quad/x-height), or fil/fill/filll for glue
// stretch/shrink components. Returns the matched unit name.
func ParseUnit(r Reader, loc mexerr.Location) (string, error) {
	var sb strings.Builder
	for i := 0; i < 5; i++ {
		tok, ok, err := r.Next()
		if err != nil {
			return "", err
		}
		if !ok || tok.Kind != token.Char || tok.Cat != catcode.Letter {
			if ok {
				r.Push(tok)
			}
			break
		}
		sb.WriteRune(tok.Ch)
		name := strings.ToLower(sb.String())
		if name == "fil" {
			// keep reading: might be fill/filll
			tok2, ok2, err2 := r.Next()
			if err2 != nil {
				return "", err2
			}
			if ok2 && tok2.Kind == token.Char && tok2.Cat == catcode.Letter && tok2.Ch == 'l' {
				sb.WriteRune('l')
				tok3, ok3, err3 := r.Next()
				if err3 != nil {
					return "", err3
				}
				if ok3 && tok3.Kind == token.Char && tok3.Cat == catcode.Letter && tok3.Ch == 'l' {
					sb.WriteRune('l')
				} else if ok3 {
					r.Push(tok3)
				}
			} else if ok2 {
				r.Push(tok2)
			}
			return consumeOptionalSpace(r, strings.ToLower(sb.String())), nil
		}
		if _, ok := LookupUnit(name); ok {
			return consumeOptionalSpace(r, name), nil
		}
		if FontRelativeUnits[name] {
			return consumeOptionalSpace(r, name), nil
		}
	}
	return "", mexerr.Parse(loc, "illegal unit of measure")
}

func consumeOptionalSpace(r Reader, name string) string {
	tok, ok, err := r.Next()
	if err == nil && ok && !tok.IsSpace() {
		r.Push(tok)
	}
	return name
}

// ParseDimen reads a <dimen>: an optional sign, a decimal coefficient (an
// integer or a decimal constant), and a required unit (spec.md §4.4
// "Lengths require a unit suffix"). em/ex are resolved against quadFn/
// xHeightFn, the current font's design parameters - callers with no
// notion of a current font may pass nil, and get a ParseError if the
// input actually asks for one.
func ParseDimen(r Reader, res Resolver, loc mexerr.Location, quadFn, xHeightFn func() Dimen) (Dimen, error) {
	neg, err := optionalSigns(r)
	if err != nil {
		return Dimen{}, err
	}
	coeff, err := ParseDecimal(r, res, loc)
	if err != nil {
		return Dimen{}, err
	}
	unit, err := ParseUnit(r, loc)
	if err != nil {
		return Dimen{}, err
	}
	var base Dimen
	switch unit {
	case "em":
		if quadFn == nil {
			return Dimen{}, mexerr.Value(loc, "no current font to resolve em unit")
		}
		base = quadFn()
	case "ex":
		if xHeightFn == nil {
			return Dimen{}, mexerr.Value(loc, "no current font to resolve ex unit")
		}
		base = xHeightFn()
	default:
		if order, ok := InfUnit(unit); ok {
			d := FromPt(coeff)
			_ = order
			if neg {
				d = d.Neg()
			}
			return d, nil
		}
		u, ok := LookupUnit(unit)
		if !ok {
			return Dimen{}, mexerr.Parse(loc, "illegal unit of measure %q", unit)
		}
		base = FromPt(u.PtPerUnit)
	}
	d := Dimen{Sp: int64(coeff * float64(base.Sp))}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmount reads a <dimen> tagged with its infinity order, for a
// Glue's stretch/shrink component: fil/fill/filll units set Order, any
// other unit (including em/ex) is Finite.
func ParseAmount(r Reader, res Resolver, loc mexerr.Location, quadFn, xHeightFn func() Dimen) (Amount, error) {
	neg, err := optionalSigns(r)
	if err != nil {
		return Amount{}, err
	}
	coeff, err := ParseDecimal(r, res, loc)
	if err != nil {
		return Amount{}, err
	}
	unit, err := ParseUnit(r, loc)
	if err != nil {
		return Amount{}, err
	}
	if order, ok := InfUnit(unit); ok {
		d := FromPt(coeff)
		if neg {
			d = d.Neg()
		}
		return Amount{Dimen: d, Order: order}, nil
	}
	var base Dimen
	switch unit {
	case "em":
		if quadFn == nil {
			return Amount{}, mexerr.Value(loc, "no current font to resolve em unit")
		}
		base = quadFn()
	case "ex":
		if xHeightFn == nil {
			return Amount{}, mexerr.Value(loc, "no current font to resolve ex unit")
		}
		base = xHeightFn()
	default:
		u, ok := LookupUnit(unit)
		if !ok {
			return Amount{}, mexerr.Parse(loc, "illegal unit of measure %q", unit)
		}
		base = FromPt(u.PtPerUnit)
	}
	d := Dimen{Sp: int64(coeff * float64(base.Sp))}
	if neg {
		d = d.Neg()
	}
	return Amount{Dimen: d}, nil
}

// ParseGlue reads a <glue>: a dimen, optionally followed by "plus
// <amount>" and/or "minus <amount>" (spec.md §4.4).
func ParseGlue(r Reader, res Resolver, loc mexerr.Location, quadFn, xHeightFn func() Dimen) (Glue, error) {
	natural, err := ParseDimen(r, res, loc, quadFn, xHeightFn)
	if err != nil {
		return Glue{}, err
	}
	g := Glue{Natural: natural}
	if kw, ok, err := matchKeyword(r, "plus"); err != nil {
		return Glue{}, err
	} else if ok {
		_ = kw
		g.Stretch, err = ParseAmount(r, res, loc, quadFn, xHeightFn)
		if err != nil {
			return Glue{}, err
		}
	}
	if kw, ok, err := matchKeyword(r, "minus"); err != nil {
		return Glue{}, err
	} else if ok {
		_ = kw
		g.Shrink, err = ParseAmount(r, res, loc, quadFn, xHeightFn)
		if err != nil {
			return Glue{}, err
		}
	}
	return g, nil
}

// matchKeyword reads tokens to see if the upcoming input spells word
// (case-insensitively, skipping no intervening characters - TeX keywords
// are matched letter-for-letter), pushing everything back if it doesn't.
func matchKeyword(r Reader, word string) (string, bool, error) {
	var consumed []token.Token
	for i := 0; i < len(word); i++ {
		tok, ok, err := r.Next()
		if err != nil {
			return "", false, err
		}
		if !ok {
			for j := len(consumed) - 1; j >= 0; j-- {
				r.Push(consumed[j])
			}
			return "", false, nil
		}
		consumed = append(consumed, tok)
		if tok.Kind != token.Char || (tok.Ch|0x20) != rune(word[i]|0x20) {
			for j := len(consumed) - 1; j >= 0; j-- {
				r.Push(consumed[j])
			}
			return "", false, nil
		}
	}
	return word, true, nil
}
