package value

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/token"
)

// fakeReader is a minimal Reader over a slice of chars, enough to exercise
// the parser without pulling in internal/lex or internal/expand.
type fakeReader struct {
	toks []token.Token
}

func chars(s string, cat catcode.Code) []token.Token {
	var out []token.Token
	for _, r := range s {
		out = append(out, token.NewChar(r, cat, token.Location{}))
	}
	return out
}

func newFakeReader(toks ...token.Token) *fakeReader {
	return &fakeReader{toks: toks}
}

func (f *fakeReader) Next() (token.Token, bool, error) {
	if len(f.toks) == 0 {
		return token.Token{}, false, nil
	}
	t := f.toks[0]
	f.toks = f.toks[1:]
	return t, true, nil
}

func (f *fakeReader) Push(t token.Token) {
	f.toks = append([]token.Token{t}, f.toks...)
}

func otherChars(s string) []token.Token { return chars(s, catcode.Other) }

func TestParseSignedIntegerPlainDecimal(t *testing.T) {
	r := newFakeReader(otherChars("123")...)
	n, err := ParseSignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 123, n)
}

func TestParseSignedIntegerDoubleNegative(t *testing.T) {
	toks := append(otherChars("--"), otherChars("7")...)
	r := newFakeReader(toks...)
	n, err := ParseSignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
}

func TestParseSignedIntegerSingleNegative(t *testing.T) {
	toks := append(otherChars("-"), otherChars("7")...)
	r := newFakeReader(toks...)
	n, err := ParseSignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, -7, n)
}

func TestParseUnsignedIntegerBacktickChar(t *testing.T) {
	toks := append(otherChars("`"), token.NewChar('A', catcode.Letter, token.Location{}))
	r := newFakeReader(toks...)
	n, err := ParseUnsignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 'A', n)
}

func TestParseUnsignedIntegerHex(t *testing.T) {
	toks := append(otherChars(`"`), otherChars("2A")...)
	r := newFakeReader(toks...)
	n, err := ParseUnsignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 0x2A, n)
}

func TestParseUnsignedIntegerOctal(t *testing.T) {
	toks := append(otherChars("'"), otherChars("17")...)
	r := newFakeReader(toks...)
	n, err := ParseUnsignedInteger(r, nil, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 017, n)
}

type fakeResolver struct {
	values map[string]int64
}

func (f fakeResolver) ResolveControlAsNumber(name string) (int64, bool, error) {
	n, ok := f.values[name]
	return n, ok, nil
}

func TestParseUnsignedIntegerFromControl(t *testing.T) {
	r := newFakeReader(token.NewControl("tolerance", token.Location{}))
	res := fakeResolver{values: map[string]int64{"tolerance": 200}}
	n, err := ParseUnsignedInteger(r, res, mexerr.Location{})
	require.NoError(t, err)
	require.EqualValues(t, 200, n)
}

func TestParseDimenPoints(t *testing.T) {
	toks := append(otherChars("12.5"), chars("pt", catcode.Letter)...)
	r := newFakeReader(toks...)
	d, err := ParseDimen(r, nil, mexerr.Location{}, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 12.5, d.Pt(), 1e-6)
}

func TestParseDimenNegativeInches(t *testing.T) {
	toks := append(otherChars("-2"), chars("in", catcode.Letter)...)
	r := newFakeReader(toks...)
	d, err := ParseDimen(r, nil, mexerr.Location{}, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, -2*72.27, d.Pt(), 1e-6)
}

func TestParseDimenRejectsUnknownUnit(t *testing.T) {
	toks := append(otherChars("1"), chars("xy", catcode.Letter)...)
	r := newFakeReader(toks...)
	_, err := ParseDimen(r, nil, mexerr.Location{}, nil, nil)
	require.Error(t, err)
}

func TestParseDimenEmUsesQuad(t *testing.T) {
	toks := append(otherChars("2"), chars("em", catcode.Letter)...)
	r := newFakeReader(toks...)
	quad := func() Dimen { return FromPt(10) }
	d, err := ParseDimen(r, nil, mexerr.Location{}, quad, nil)
	require.NoError(t, err)
	require.InDelta(t, 20, d.Pt(), 1e-6)
}

func TestParseGlueWithStretchAndShrink(t *testing.T) {
	var toks []token.Token
	toks = append(toks, otherChars("1")...)
	toks = append(toks, chars("pt", catcode.Letter)...)
	toks = append(toks, chars(" ", catcode.Space)...)
	toks = append(toks, chars("plus", catcode.Letter)...)
	toks = append(toks, chars(" ", catcode.Space)...)
	toks = append(toks, otherChars("2")...)
	toks = append(toks, chars("pt", catcode.Letter)...)
	toks = append(toks, chars(" ", catcode.Space)...)
	toks = append(toks, chars("minus", catcode.Letter)...)
	toks = append(toks, chars(" ", catcode.Space)...)
	toks = append(toks, otherChars("1")...)
	toks = append(toks, chars("fil", catcode.Letter)...)

	r := newFakeReader(toks...)
	g, err := ParseGlue(r, nil, mexerr.Location{}, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 1, g.Natural.Pt(), 1e-6)
	require.InDelta(t, 2, g.Stretch.Dimen.Pt(), 1e-6)
	require.Equal(t, Finite, g.Stretch.Order)
	require.InDelta(t, 1, g.Shrink.Dimen.Pt(), 1e-6)
	require.Equal(t, Fil, g.Shrink.Order)
}

func TestDimenDivideByZero(t *testing.T) {
	d := FromPt(10)
	_, err := d.Divide(mexerr.Location{}, 0)
	require.Error(t, err)
}

func TestGlueAddDominatesHigherInfOrder(t *testing.T) {
	a := Glue{Stretch: Amount{FromPt(1), Fil}}
	b := Glue{Stretch: Amount{FromPt(2), Fill}}
	sum := a.Add(b)
	require.Equal(t, Fill, sum.Stretch.Order)
	require.InDelta(t, 2, sum.Stretch.Dimen.Pt(), 1e-6)
}
