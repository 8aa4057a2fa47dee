package box

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marnanel/mex/internal/value"
)

func TestNewHBoxAndVBoxAreEmpty(t *testing.T) {
	h := NewHBox()
	require.Equal(t, KindHBox, h.Kind)
	require.Empty(t, h.Children)

	v := NewVBox()
	require.Equal(t, KindVBox, v.Kind)
}

func TestNewRuleRunningDimensionsAreNil(t *testing.T) {
	w := value.FromPt(10)
	r := NewRule(&w, nil, nil)
	require.Equal(t, KindRule, r.Kind)
	require.InDelta(t, 10, r.Width.Pt(), 1e-6)
	require.Nil(t, r.RuleHeight)
	require.Nil(t, r.RuleDepth)
}

func TestHBoxRecomputeSumsWidthMaxesHeightAndDepth(t *testing.T) {
	h := NewHBox()
	h.Append(BoxGismo{Box: NewCharBox("cmr10", 'a', value.FromPt(5), value.FromPt(6), value.FromPt(1))})
	h.Append(BoxGismo{Box: NewCharBox("cmr10", 'b', value.FromPt(3), value.FromPt(4), value.FromPt(2))})

	require.InDelta(t, 8, h.Width.Pt(), 1e-6)
	require.InDelta(t, 6, h.Height.Pt(), 1e-6)
	require.InDelta(t, 2, h.Depth.Pt(), 1e-6)
}

func TestVBoxRecomputeHeightExcludesLastDepth(t *testing.T) {
	v := NewVBox()
	v.Append(BoxGismo{Box: NewCharBox("cmr10", 'a', value.FromPt(5), value.FromPt(6), value.FromPt(1))})
	v.Append(BoxGismo{Box: NewCharBox("cmr10", 'b', value.FromPt(3), value.FromPt(4), value.FromPt(2))})

	require.InDelta(t, 5, v.Width.Pt(), 1e-6)
	require.InDelta(t, 6+1+4, v.Height.Pt(), 1e-6)
	require.InDelta(t, 2, v.Depth.Pt(), 1e-6)
}

func TestContentsHidesBreakpointsButWithBreakpointsShowsThem(t *testing.T) {
	h := NewHBox()
	h.Children = append(h.Children, Breakpoint{Penalty: 0})
	h.Children = append(h.Children, BoxGismo{Box: NewCharBox("cmr10", 'a', value.Zero, value.Zero, value.Zero)})

	require.Len(t, h.Contents(), 1)
	require.Len(t, h.WithBreakpoints(), 2)
}

type fakeMetrics struct {
	kerns map[[2]rune]value.Dimen
	ligs  map[[2]rune]rune
	dims  map[rune][3]value.Dimen
}

func (f fakeMetrics) KernFor(prev, next rune) (value.Dimen, bool) {
	d, ok := f.kerns[[2]rune{prev, next}]
	return d, ok
}

func (f fakeMetrics) LigatureFor(prev, next rune) (rune, bool) {
	r, ok := f.ligs[[2]rune{prev, next}]
	return r, ok
}

func (f fakeMetrics) CharDims(ch rune) (value.Dimen, value.Dimen, value.Dimen) {
	d, ok := f.dims[ch]
	if !ok {
		return value.Zero, value.Zero, value.Zero
	}
	return d[0], d[1], d[2]
}

func TestAppendCharPlainFallsBackToCharBox(t *testing.T) {
	wb := NewWordBox("cmr10", fakeMetrics{dims: map[rune][3]value.Dimen{
		'a': {value.FromPt(5), value.FromPt(6), value.Zero},
	}})
	wb.AppendChar('a')

	require.Len(t, wb.Children, 1)
	bg := wb.Children[0].(BoxGismo)
	require.Equal(t, 'a', bg.Box.Char)
}

func TestAppendCharInsertsKern(t *testing.T) {
	metrics := fakeMetrics{
		dims: map[rune][3]value.Dimen{
			'A': {value.FromPt(5), value.FromPt(6), value.Zero},
			'V': {value.FromPt(5), value.FromPt(6), value.Zero},
		},
		kerns: map[[2]rune]value.Dimen{
			{'A', 'V'}: value.FromPt(1),
		},
	}
	wb := NewWordBox("cmr10", metrics)
	wb.AppendChar('A')
	wb.AppendChar('V')

	require.Len(t, wb.Children, 3)
	k, ok := wb.Children[1].(Kern)
	require.True(t, ok)
	require.InDelta(t, -1, k.Width.Pt(), 1e-6)
}

func TestAppendCharAppliesLigature(t *testing.T) {
	metrics := fakeMetrics{
		dims: map[rune][3]value.Dimen{
			'f': {value.FromPt(3), value.FromPt(6), value.Zero},
			'i': {value.FromPt(2), value.FromPt(6), value.Zero},
			0xFB01: {value.FromPt(4), value.FromPt(6), value.Zero},
		},
		ligs: map[[2]rune]rune{
			{'f', 'i'}: 0xFB01,
		},
	}
	wb := NewWordBox("cmr10", metrics)
	wb.AppendChar('f')
	wb.AppendChar('i')

	require.Len(t, wb.Children, 1)
	bg := wb.Children[0].(BoxGismo)
	require.Equal(t, rune(0xFB01), bg.Box.Char)
	require.Equal(t, []rune{'i'}, bg.Box.LigatureSource)
}

func TestAppendItemInsertsBreakpointBeforeGlueAfterBox(t *testing.T) {
	h := NewHBox()
	h.AppendItem(BoxGismo{Box: NewCharBox("cmr10", 'a', value.Zero, value.Zero, value.Zero)})
	h.AppendItem(Leader{Glue: value.Glue{Natural: value.FromPt(3)}})

	require.Len(t, h.Children, 3)
	_, ok := h.Children[1].(Breakpoint)
	require.True(t, ok)
}

func TestAppendItemNoBreakpointAtStartOfList(t *testing.T) {
	h := NewHBox()
	h.AppendItem(Leader{Glue: value.Glue{Natural: value.FromPt(3)}})

	require.Len(t, h.Children, 1)
	_, ok := h.Children[0].(Leader)
	require.True(t, ok)
}

func TestAppendItemPenaltyBecomesBreakpoint(t *testing.T) {
	h := NewHBox()
	h.AppendItem(Penalty{Demerits: 50})

	require.Len(t, h.Children, 1)
	bp, ok := h.Children[0].(Breakpoint)
	require.True(t, ok)
	require.Equal(t, 50, bp.Penalty)
}

func TestFitToStretchesExactlyToSize(t *testing.T) {
	h := NewHBox()
	h.AppendItem(BoxGismo{Box: NewCharBox("cmr10", 'a', value.FromPt(5), value.Zero, value.Zero)})
	h.AppendItem(Leader{Glue: value.Glue{
		Natural: value.FromPt(2),
		Stretch: value.Amount{Dimen: value.FromPt(4), Order: value.Finite},
	}})

	h.FitTo(value.FromPt(10))
	require.InDelta(t, 10, h.Width.Pt(), 1e-6)
	require.Equal(t, 42, h.Badness())
}

func TestFitToOverfullWhenShrinkExhausted(t *testing.T) {
	h := NewHBox()
	h.AppendItem(BoxGismo{Box: NewCharBox("cmr10", 'a', value.FromPt(5), value.Zero, value.Zero)})
	h.AppendItem(Leader{Glue: value.Glue{
		Natural: value.FromPt(10),
		Shrink:  value.Amount{Dimen: value.FromPt(1), Order: value.Finite},
	}})

	h.FitTo(value.FromPt(5))
	require.Equal(t, 1000000, h.Badness())
}
