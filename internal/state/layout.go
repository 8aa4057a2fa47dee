package state

import (
	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/token"
)

// LayoutHandler is the mode-switched layout core's surface towards the
// control registry (spec.md §4.6). internal/mode implements it;
// internal/control calls it through Document.Layout rather than
// importing internal/mode directly, since internal/mode itself depends
// on state.Document - keeping the dependency one-directional.
type LayoutHandler interface {
	// HandleChar appends a character to the current list, switching from
	// vertical to horizontal mode first (starting a paragraph) if needed.
	HandleChar(ch rune, loc token.Location) error
	// HandleSpace appends interword glue in horizontal mode; a no-op
	// outside it.
	HandleSpace(font string)
	// HandleSubOrSuperscript validates a ^/_ character is only used in
	// math mode.
	HandleSubOrSuperscript(loc token.Location) error
	// HandleBox appends a finished box to the current list.
	HandleBox(b *box.Box)
	// HandleGismo appends an arbitrary list item (glue, kern, penalty...)
	// to the current list.
	HandleGismo(g box.Gismo)
	// HandleControl applies a control's mode affinity: switches mode and
	// reports switched=true if the control must be resubmitted, or
	// returns an error if the control is forbidden in the current mode.
	HandleControl(c *Control) (switched bool, err error)
	// PushList opens a new nested list (e.g. \hbox{...}) in the given
	// mode.
	PushList(mode Mode, b *box.Box)
	// PopList closes the innermost list and returns its finished box.
	PopList() *box.Box
	// CurrentMode reports the mode of the innermost open list.
	CurrentMode() Mode
	// EndParagraph closes an in-progress paragraph, if any, pushing its
	// horizontal list as a box onto the enclosing vertical list.
	EndParagraph()
	// ShipOut hands a finished box to the output driver hook (\shipout),
	// independent of the automatic page-builder trigger HandleBox applies
	// to boxes that land in the outermost vertical list.
	ShipOut(b *box.Box)
}
