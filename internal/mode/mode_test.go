package mode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

func TestNewStartsInOuterVertical(t *testing.T) {
	h := New(state.New())
	require.Equal(t, state.Vertical, h.CurrentMode())
	require.Equal(t, 1, h.Depth())
}

func TestHandleCharSwitchesVerticalToHorizontal(t *testing.T) {
	h := New(state.New())
	err := h.HandleChar('a', token.Location{})
	require.NoError(t, err)
	require.Equal(t, state.Horizontal, h.CurrentMode())
	require.Equal(t, 2, h.Depth())

	wb, ok := lastWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 1)
}

func TestHandleCharAppendsToSameWordBox(t *testing.T) {
	h := New(state.New())
	require.NoError(t, h.HandleChar('a', token.Location{}))
	require.NoError(t, h.HandleChar('b', token.Location{}))

	wb, ok := lastWordBox(h.Current().Box)
	require.True(t, ok)
	require.Len(t, wb.Children, 2)
}

func TestHandleCharInMathQueuesCharBoxDirectly(t *testing.T) {
	h := New(state.New())
	h.PushList(state.Math, box.NewHBox())
	require.NoError(t, h.HandleChar('x', token.Location{}))
	require.Len(t, h.Current().Box.Children, 1)
	bg, ok := h.Current().Box.Children[0].(box.BoxGismo)
	require.True(t, ok)
	require.Equal(t, box.KindCharBox, bg.Box.Kind)
}

func TestHandleSpaceIgnoredInVertical(t *testing.T) {
	h := New(state.New())
	h.HandleSpace("")
	require.Empty(t, h.Current().Box.Children)
}

func TestHandleSpaceAppendsLeaderInHorizontal(t *testing.T) {
	h := New(state.New())
	h.PushList(state.Horizontal, box.NewHBox())
	h.HandleSpace("")
	require.Len(t, h.Current().Box.Children, 1)
	_, ok := h.Current().Box.Children[0].(box.Leader)
	require.True(t, ok)
}

func TestHandleSubOrSuperscriptErrorsOutsideMath(t *testing.T) {
	h := New(state.New())
	err := h.HandleSubOrSuperscript(token.Location{})
	require.Error(t, err)
}

func TestHandleSubOrSuperscriptOKInMath(t *testing.T) {
	h := New(state.New())
	h.PushList(state.Math, box.NewHBox())
	err := h.HandleSubOrSuperscript(token.Location{})
	require.NoError(t, err)
}

func TestHandleBoxInvokesPageBuilderInOuterVertical(t *testing.T) {
	h := New(state.New())
	var got *box.Box
	h.PageBuilder = func(b *box.Box) { got = b }

	b := box.NewHBox()
	h.HandleBox(b)
	require.Same(t, b, got)
	require.Len(t, h.Current().Box.Children, 1)
}

func TestHandleBoxDoesNotInvokePageBuilderWhenNested(t *testing.T) {
	h := New(state.New())
	called := false
	h.PageBuilder = func(b *box.Box) { called = true }

	h.PushList(state.InternalVertical, box.NewVBox())
	h.HandleBox(box.NewHBox())
	require.False(t, called)
}

func TestShipOutBypassesCurrentList(t *testing.T) {
	h := New(state.New())
	var got *box.Box
	h.PageBuilder = func(b *box.Box) { got = b }

	b := box.NewHBox()
	h.ShipOut(b)
	require.Same(t, b, got)
	require.Empty(t, h.Current().Box.Children)
}

func TestEndParagraphClosesHorizontalList(t *testing.T) {
	h := New(state.New())
	require.NoError(t, h.HandleChar('a', token.Location{}))
	require.Equal(t, state.Horizontal, h.CurrentMode())

	h.EndParagraph()
	require.Equal(t, state.Vertical, h.CurrentMode())
	require.Len(t, h.Current().Box.Children, 1)
}

func TestHandleControlForbiddenErrors(t *testing.T) {
	h := New(state.New())
	c := &state.Control{Name: "foo", Capabilities: state.Capabilities{ModeAffinity: state.AffinityForbidden}}
	_, err := h.HandleControl(c)
	require.Error(t, err)
}

func TestHandleControlVerticalAffinitySwitchesFromHorizontal(t *testing.T) {
	h := New(state.New())
	h.PushList(state.Horizontal, box.NewHBox())
	c := &state.Control{Name: "par", Capabilities: state.Capabilities{ModeAffinity: state.AffinityVertical}}
	switched, err := h.HandleControl(c)
	require.NoError(t, err)
	require.True(t, switched)
	require.Equal(t, state.Vertical, h.CurrentMode())
}

func TestHandleControlHorizontalAffinityPushesFromVertical(t *testing.T) {
	h := New(state.New())
	c := &state.Control{Name: "char", Capabilities: state.Capabilities{ModeAffinity: state.AffinityHorizontal}}
	switched, err := h.HandleControl(c)
	require.NoError(t, err)
	require.True(t, switched)
	require.Equal(t, state.Horizontal, h.CurrentMode())
}

func TestHandleControlAnyNeverSwitches(t *testing.T) {
	h := New(state.New())
	c := &state.Control{Name: "relax", Capabilities: state.Capabilities{ModeAffinity: state.AffinityAny}}
	switched, err := h.HandleControl(c)
	require.NoError(t, err)
	require.False(t, switched)
	require.Equal(t, state.Vertical, h.CurrentMode())
}
