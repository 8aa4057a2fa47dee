// Package mode implements the mode-switched layout core (spec.md §4.6): a
// stack of "current lists" (one per open Vertical/Horizontal/Math scope)
// that characters, glue, boxes and unexpandable controls get routed into.
//
// Grounded on pongo2's NodeWrapper (nodes_wrapper.go), generalized from
// "append a rendered node to a flat slice" to "append a gismo to whichever
// list is current, switching lists first if the incoming item doesn't fit
// the one that's open".
package mode

import (
	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
	"github.com/marnanel/mex/internal/value"
)

// Frame is one entry on the list stack: a mode and the box accumulating
// its contents.
type Frame struct {
	Mode state.Mode
	Box  *box.Box
}

// Handler owns the list stack and routes incoming items per spec.md
// §4.6's handle(item) algorithm.
type Handler struct {
	doc *state.Document

	stack []*Frame

	// MetricsFor resolves a font name to the metrics WordBox needs for
	// kerning/ligatures; set by the caller once a font has been loaded
	// (internal/font/tfm.Font implements box.FontMetrics).
	MetricsFor func(font string) box.FontMetrics

	// InterwordGlue resolves the glue a space token produces in
	// horizontal mode, from the current font's space/stretch/shrink
	// parameters. Zero glue is used until this is set.
	InterwordGlue func(font string) value.Glue

	// PageBuilder is invoked whenever a box lands in the outermost
	// vertical list (spec.md §4.6 "Page builder ... out of scope; its
	// internals belong to the output driver" - we still invoke the hook
	// so a caller can plug one in).
	PageBuilder func(b *box.Box)
}

// New builds a Handler with a single outermost vertical list.
func New(doc *state.Document) *Handler {
	h := &Handler{doc: doc}
	h.stack = []*Frame{{Mode: state.Vertical, Box: box.NewVBox()}}
	return h
}

// Current returns the innermost open list.
func (h *Handler) Current() *Frame { return h.stack[len(h.stack)-1] }

// Depth reports how many lists are nested (1 for just the outer vertical
// list).
func (h *Handler) Depth() int { return len(h.stack) }

// CurrentMode implements state.LayoutHandler.
func (h *Handler) CurrentMode() state.Mode { return h.Current().Mode }

// PushList opens a new current list of the given mode, e.g. for
// \hbox/\vbox or entering math.
func (h *Handler) PushList(m state.Mode, b *box.Box) {
	h.stack = append(h.stack, &Frame{Mode: m, Box: b})
	h.doc.SetMode(m, false)
}

// PopList closes the innermost list and returns its box, restoring the
// enclosing mode.
func (h *Handler) PopList() *box.Box {
	n := len(h.stack)
	top := h.stack[n-1]
	h.stack = h.stack[:n-1]
	if n > 1 {
		h.doc.SetMode(h.stack[len(h.stack)-1].Mode, false)
	}
	return top.Box
}

func fontMetrics(h *Handler, font string) box.FontMetrics {
	if h.MetricsFor == nil {
		return nil
	}
	return h.MetricsFor(font)
}

// HandleChar implements spec.md §4.6's routing for a catcode
// {letter,other} character: vertical modes switch to horizontal and
// resubmit; horizontal modes append to a WordBox (creating one if the
// previous item isn't one); math modes queue a CharBox directly.
func (h *Handler) HandleChar(ch rune, loc token.Location) error {
	frame := h.Current()
	switch frame.Mode {
	case state.Vertical:
		h.PushList(state.Horizontal, box.NewHBox())
		return h.HandleChar(ch, loc)
	case state.InternalVertical:
		h.PushList(state.RestrictedHorizontal, box.NewHBox())
		return h.HandleChar(ch, loc)
	case state.Horizontal, state.RestrictedHorizontal:
		wb, ok := lastWordBox(frame.Box)
		if !ok {
			wb = box.NewWordBox(h.doc.CurrentFont, fontMetrics(h, h.doc.CurrentFont))
			frame.Box.AppendItem(box.BoxGismo{Box: wb})
		}
		wb.AppendChar(ch)
		return nil
	case state.Math, state.DisplayMath:
		var w, hh, d value.Dimen
		if m := fontMetrics(h, h.doc.CurrentFont); m != nil {
			w, hh, d = m.CharDims(ch)
		}
		frame.Box.AppendItem(box.BoxGismo{Box: box.NewCharBox(h.doc.CurrentFont, ch, w, hh, d)})
		return nil
	default:
		return mexerr.Control(toMexLoc(loc), "no current list to append a character to")
	}
}

// lastWordBox finds a trailing WordBox child to continue appending into,
// matching spec.md's "append a CharBox to the current WordBox (creating
// one if the previous item isn't a WordBox)".
func lastWordBox(b *box.Box) (*box.Box, bool) {
	if len(b.Children) == 0 {
		return nil, false
	}
	bg, ok := b.Children[len(b.Children)-1].(box.BoxGismo)
	if !ok || bg.Box.Kind != box.KindWordBox {
		return nil, false
	}
	return bg.Box, true
}

// HandleSpace implements spec.md §4.6: a space token in horizontal mode
// appends a Leader(interword-glue); elsewhere it is ignored (vertical
// mode has no notion of interword space).
func (h *Handler) HandleSpace(font string) {
	frame := h.Current()
	if frame.Mode != state.Horizontal && frame.Mode != state.RestrictedHorizontal {
		return
	}
	var glue value.Glue
	if h.InterwordGlue != nil {
		glue = h.InterwordGlue(font)
	}
	frame.Box.AppendItem(box.Leader{Glue: glue, Axis: box.AxisHorizontal})
}

// HandleSubOrSuperscript implements spec.md §4.6: "Sub/superscript
// outside math -> ParseError".
func (h *Handler) HandleSubOrSuperscript(loc token.Location) error {
	frame := h.Current()
	if frame.Mode == state.Math || frame.Mode == state.DisplayMath {
		return nil
	}
	return mexerr.Parse(toMexLoc(loc), "misplaced sub/superscript character outside math mode")
}

// HandleBox implements spec.md §4.6: append a finished box to the current
// list; if it lands in the outermost vertical list, invoke the page
// builder.
func (h *Handler) HandleBox(b *box.Box) {
	frame := h.Current()
	frame.Box.AppendItem(box.BoxGismo{Box: b})
	if frame.Mode == state.Vertical && len(h.stack) == 1 && h.PageBuilder != nil {
		h.PageBuilder(b)
	}
}

// HandleGismo appends any other gismo (Kern, Penalty, DiscretionaryBreak,
// Whatsit) to the current list unchanged.
func (h *Handler) HandleGismo(g box.Gismo) {
	h.Current().Box.AppendItem(g)
}

// HandleControl implements spec.md §4.6's "Unexpandable control"
// dispatch: consult the control's per-mode affinity and either allow it,
// switch modes, or error. It does not run the control itself.
//
// switched=false with a nil error means the control may run in the
// current mode; switched=true means a mode switch happened and the
// caller should look at the control token again.
func (h *Handler) HandleControl(c *state.Control) (switched bool, err error) {
	frame := h.Current()
	affinityOK := func(want state.Affinity) bool {
		switch frame.Mode {
		case state.Vertical, state.InternalVertical:
			return want == state.AffinityVertical
		case state.Horizontal, state.RestrictedHorizontal:
			return want == state.AffinityHorizontal
		default:
			return false
		}
	}
	switch c.ModeAffinity {
	case state.AffinityAny:
		return false, nil
	case state.AffinityForbidden:
		return false, mexerr.Control(mexerr.Location{}, "\\%s is not allowed in %s mode", c.Name, frame.Mode)
	case state.AffinityVertical:
		if affinityOK(state.AffinityVertical) {
			return false, nil
		}
		h.endParagraphIfAny()
		return true, nil
	case state.AffinityHorizontal:
		if affinityOK(state.AffinityHorizontal) {
			return false, nil
		}
		h.PushList(state.Horizontal, box.NewHBox())
		return true, nil
	default:
		return false, nil
	}
}

// endParagraphIfAny closes an open horizontal list, appending its box to
// the enclosing vertical list - the mechanics behind \par and any
// vertical-affinity control encountered mid-paragraph.
func (h *Handler) endParagraphIfAny() {
	if h.Current().Mode != state.Horizontal {
		return
	}
	hb := h.PopList()
	h.HandleBox(hb)
}

// EndParagraph is \par's primitive behaviour: exposed so
// internal/control can call it without reaching into Handler internals.
func (h *Handler) EndParagraph() { h.endParagraphIfAny() }

// ShipOut is \shipout's primitive behaviour: hands b straight to the
// output-driver hook, bypassing the current list entirely (spec.md §4.6
// treats \shipout as "send this box to the page builder/output driver
// right now", not "append it to whatever list is open").
func (h *Handler) ShipOut(b *box.Box) {
	if h.PageBuilder != nil {
		h.PageBuilder(b)
	}
}

func toMexLoc(l token.Location) mexerr.Location {
	return mexerr.Location{Filename: l.Filename, Line: l.Line, Column: l.Column}
}
