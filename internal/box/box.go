// Package box implements the box/gismo tree that the layout core builds
// and hands off to the (external) output driver: HBox, VBox, Rule,
// CharBox, WordBox, and their children (spec.md §3 "Box", "Gismo").
//
// Grounded on pongo2's node tree (nodes.go/nodes_wrapper.go: a document
// is a slice of executable nodes) generalized from "nodes that render
// text" to "gismos that measure and position" - the append-time
// breakpoint insertion in Box.AppendItem is the direct analogue of
// pongo2's NodeWrapper walking its wrapped nodes in order.
package box

import "github.com/marnanel/mex/internal/value"

// Kind discriminates the Box variants from spec.md §3 "Box".
type Kind int

const (
	KindHBox Kind = iota
	KindVBox
	KindRule
	KindCharBox
	KindWordBox
)

// Box is a rectangle with a list of gismo children (spec.md §3).
type Box struct {
	Kind Kind

	Width, Height, Depth value.Dimen
	// Shift is the box's shift amount off its natural baseline/axis
	// (spec.md §3 "an optional shift amount").
	Shift value.Dimen

	Children []Gismo

	// Rule-only: nil means "running" (fills to the enclosing box's
	// extent along that axis), per SPEC_FULL.md §3.
	RuleWidth, RuleHeight, RuleDepth *value.Dimen

	// CharBox-only.
	Font string
	Char rune
	// LigatureSource records the characters that ligature substitutions
	// appended to this CharBox (not the character it started as), so
	// \showbox can print provenance.
	LigatureSource []rune

	// badness/fit_to bookkeeping, set by FitTo.
	badness int
	factor  float64

	// metrics is set on WordBoxes for kerning/ligature lookups.
	metrics FontMetrics
}

// NewHBox builds an empty horizontal box.
func NewHBox() *Box { return &Box{Kind: KindHBox} }

// NewVBox builds an empty vertical box.
func NewVBox() *Box { return &Box{Kind: KindVBox} }

// NewRule builds a solid rectangle. A nil dimension is "running".
func NewRule(w, h, d *value.Dimen) *Box {
	b := &Box{Kind: KindRule, RuleWidth: w, RuleHeight: h, RuleDepth: d}
	if w != nil {
		b.Width = *w
	}
	if h != nil {
		b.Height = *h
	}
	if d != nil {
		b.Depth = *d
	}
	return b
}

// NewCharBox builds a single-glyph box.
func NewCharBox(font string, ch rune, w, h, d value.Dimen) *Box {
	return &Box{Kind: KindCharBox, Font: font, Char: ch, Width: w, Height: h, Depth: d}
}

// Badness returns the badness computed by the most recent FitTo call, or
// zero if FitTo has never run.
func (b *Box) Badness() int { return b.badness }

// Contents returns the children view that hides Breakpoints, per
// spec.md §4.6 "The .contents view hides breakpoints".
func (b *Box) Contents() []Gismo {
	out := make([]Gismo, 0, len(b.Children))
	for _, g := range b.Children {
		if _, ok := g.(Breakpoint); ok {
			continue
		}
		out = append(out, g)
	}
	return out
}

// WithBreakpoints returns every child including Breakpoints, per
// spec.md §4.6 "`.with_breakpoints` exposes them".
func (b *Box) WithBreakpoints() []Gismo {
	return b.Children
}

// recomputeHBox recalculates Width/Height/Depth from the current
// children, per spec.md §3's HBox rules: width is the sum, height and
// depth the maxima. Called by Append (for non-VBox kinds), AppendItem
// and AppendChar.
func (b *Box) recomputeHBox() {
	var w, h, d value.Dimen
	for _, g := range b.Contents() {
		gw, gh, gd := g.Dims()
		w = w.Add(gw)
		if gh.Sub(gShift(g)).Sp > h.Sp {
			h = gh.Sub(gShift(g))
		}
		if gd.Sp > d.Sp {
			d = gd
		}
	}
	b.Width, b.Height, b.Depth = w, h, d
}

func gShift(g Gismo) value.Dimen {
	if b, ok := g.(BoxGismo); ok {
		return b.Box.Shift
	}
	return value.Zero
}

func (b *Box) recomputeVBox() {
	var w, h, d value.Dimen
	items := b.Contents()
	for i, g := range items {
		gw, gh, gd := g.Dims()
		if gw.Sp > w.Sp {
			w = gw
		}
		h = h.Add(gh).Add(gd)
		if i == len(items)-1 {
			d = gd
			h = h.Sub(gd)
		}
	}
	b.Width, b.Height, b.Depth = w, h, d
}

// Append adds a gismo to a VBox, stacking children and recomputing
// dimensions per spec.md §3: "height is sum minus last depth; width is
// max".
func (b *Box) Append(g Gismo) {
	b.Children = append(b.Children, g)
	if b.Kind == KindVBox {
		b.recomputeVBox()
	} else {
		b.recomputeHBox()
	}
}
