package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/expand"
	"github.com/marnanel/mex/internal/mode"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/state"
)

// newEngine builds a fresh document with every primitive installed, wired
// to a layout core, ready to drive input through RunDocument - the same
// assembly cmd/mex performs, used here so each primitive test exercises
// the real expander rather than a hand-rolled stand-in.
func newEngine(t *testing.T, input string) (*expand.Expander, *state.Document, *mode.Handler) {
	t.Helper()
	doc := state.New()
	InstallPrimitives(doc)
	h := mode.New(doc)
	doc.Layout = h
	src := source.New("test", input)
	m := expand.New(src, doc.Catcode, doc)
	return m, doc, h
}

// trailingWordBox finds the trailing WordBox child of b, mirroring
// internal/mode's own lookup (unexported there) so tests can check what a
// run of characters produced without reaching into package internals.
func trailingWordBox(b *box.Box) (*box.Box, bool) {
	if len(b.Children) == 0 {
		return nil, false
	}
	bg, ok := b.Children[len(b.Children)-1].(box.BoxGismo)
	if !ok || bg.Box.Kind != box.KindWordBox {
		return nil, false
	}
	return bg.Box, true
}

func TestRelaxIsANoop(t *testing.T) {
	m, _, _ := newEngine(t, `\relax a`)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
}

func TestDefAndInvokeSimpleMacro(t *testing.T) {
	m, _, h := newEngine(t, `\def\greet{hi}\greet`)
	require.NoError(t, RunDocument(m, h))

	wb, ok := trailingWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 2)
}

func TestDefWithParameter(t *testing.T) {
	m, _, h := newEngine(t, `\def\dup#1{#1#1}\dup x`)
	require.NoError(t, RunDocument(m, h))

	wb, ok := trailingWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 2)
}

func TestLetAliasesControl(t *testing.T) {
	m, doc, _ := newEngine(t, `\def\a{}\let\b=\a`)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	a := doc.Lookup(`\a`)
	b := doc.Lookup(`\b`)
	require.Equal(t, state.KindLetAlias, b.Kind)
	require.Same(t, a, b.AliasTarget)
}

func TestCountAssignAndAdvance(t *testing.T) {
	m, doc, _ := newEngine(t, `\count0=5 \advance\count0 by 3 `)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	require.EqualValues(t, 8, doc.Registers.Count[0])
}

func TestMultiplyAndDivide(t *testing.T) {
	m, doc, _ := newEngine(t, `\count0=6 \multiply\count0 by 7 \divide\count0 by 2 `)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	require.EqualValues(t, 21, doc.Registers.Count[0])
}

func TestDimenAssignAndThe(t *testing.T) {
	m, doc, h := newEngine(t, `\dimen0=2pt \edef\x{\the\dimen0}`)
	require.NoError(t, RunDocument(m, h))
	x := doc.Lookup(`\x`)
	require.Equal(t, state.KindUserMacro, x.Kind)
	require.Equal(t, 0, len(x.Macro.Params))
	require.Equal(t, "2pt", renderTemplate(x.Macro.Replacement))
}

func renderTemplate(toks []state.TemplateToken) string {
	var out []rune
	for _, t := range toks {
		if !t.IsParam {
			out = append(out, t.Lit.Ch)
		}
	}
	return string(out)
}

func TestIfTrueTakesBranch(t *testing.T) {
	m, _, h := newEngine(t, `\iftrue a\else b\fi`)
	require.NoError(t, RunDocument(m, h))
	wb, ok := trailingWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 1)
}

func TestIfNumComparison(t *testing.T) {
	m, _, h := newEngine(t, `\count0=5 \ifnum\count0>3 a\fi`)
	require.NoError(t, RunDocument(m, h))
	wb, ok := trailingWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 1)
}

func TestIfCaseSelectsBranch(t *testing.T) {
	m, _, h := newEngine(t, `\ifcase2 a\or b\or c\or d\fi`)
	require.NoError(t, RunDocument(m, h))
	wb, ok := trailingWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 1)
	require.Equal(t, 'c', wb.Children[0].(box.BoxGismo).Box.Char)
}

func TestCsnameCreatesRelaxForUndefinedName(t *testing.T) {
	m, doc, _ := newEngine(t, `\csname foo\endcsname`)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	c := doc.Lookup(`\foo`)
	require.NotNil(t, c)
	require.Equal(t, "relax", c.Name)
}

func TestHboxProducesABoxInTheOuterList(t *testing.T) {
	m, _, h := newEngine(t, `\hbox{ab}`)
	require.NoError(t, RunDocument(m, h))
	require.Len(t, h.Current().Box.Children, 1)
	bg, ok := h.Current().Box.Children[0].(box.BoxGismo)
	require.True(t, ok)
	require.Equal(t, box.KindHBox, bg.Box.Kind)
}

func TestSetboxAndBoxRegister(t *testing.T) {
	m, doc, h := newEngine(t, `\setbox0=\hbox{ab}\box0 `)
	require.NoError(t, RunDocument(m, h))
	require.Nil(t, doc.Registers.Box[0]) // \box consumes (clears) the register
	require.Len(t, h.Current().Box.Children, 1)
}

func TestShipoutCallsPageBuilderNotTheList(t *testing.T) {
	m, _, h := newEngine(t, `\shipout\hbox{a}`)
	var got *box.Box
	h.PageBuilder = func(b *box.Box) { got = b }
	require.NoError(t, RunDocument(m, h))
	require.NotNil(t, got)
	require.Empty(t, h.Current().Box.Children)
}

func TestFontDefinesASelectionControl(t *testing.T) {
	m, doc, _ := newEngine(t, `\font\cmr=cmr10 \cmr`)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	require.Equal(t, "cmr10", doc.CurrentFont)
}

func TestParshapeStoresLines(t *testing.T) {
	m, doc, _ := newEngine(t, `\parshape2 1pt 2in 0pt 3in `)
	require.NoError(t, RunDocument(m, m.Doc().Layout))
	require.Len(t, doc.Parshape, 2)
	require.InDelta(t, 1, doc.Parshape[0].Indent.Pt(), 1e-6)
	require.InDelta(t, 2*72.27, doc.Parshape[0].Length.Pt(), 1e-6)
}
