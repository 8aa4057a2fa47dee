package box

import "github.com/marnanel/mex/internal/value"

// Gismo is any direct child of a box (spec.md §3 "Gismo").
type Gismo interface {
	// Dims reports the (width, height, depth) this gismo contributes
	// along the box's dominant axis, for dimension recomputation and for
	// fit_to's natural-length sum.
	Dims() (width, height, depth value.Dimen)
	// Discardable reports whether a line break may discard this gismo
	// (glue, kern, penalty are; boxes and rules are not), per the
	// TeXbook's line-breaking rules and spec.md §4.6's breakpoint
	// insertion algorithm.
	Discardable() bool
}

// BoxGismo wraps a *Box so it satisfies Gismo.
type BoxGismo struct{ Box *Box }

func (g BoxGismo) Dims() (value.Dimen, value.Dimen, value.Dimen) {
	return g.Box.Width, g.Box.Height, g.Box.Depth
}
func (g BoxGismo) Discardable() bool { return false }

// Axis distinguishes a Leader's direction.
type Axis int

const (
	AxisHorizontal Axis = iota
	AxisVertical
)

// Leader wraps a Glue as a box child (spec.md §3 "Leader (wraps Glue,
// directional)").
type Leader struct {
	Glue value.Glue
	Axis Axis
	// fitted is set by fit_to when this leader's natural length has been
	// adjusted to help fill a target size; zero until then.
	fitted     value.Dimen
	wasFitted  bool
}

func (g Leader) Dims() (value.Dimen, value.Dimen, value.Dimen) {
	length := g.Glue.Natural
	if g.wasFitted {
		length = g.fitted
	}
	if g.Axis == AxisHorizontal {
		return length, value.Zero, value.Zero
	}
	return value.Zero, length, value.Zero
}
func (g Leader) Discardable() bool { return true }

// Kern is a fixed-width gismo (spec.md §3 "Kern (fixed width)").
type Kern struct {
	Width value.Dimen
	Axis  Axis
}

func (k Kern) Dims() (value.Dimen, value.Dimen, value.Dimen) {
	if k.Axis == AxisHorizontal {
		return k.Width, value.Zero, value.Zero
	}
	return value.Zero, k.Width, value.Zero
}
func (k Kern) Discardable() bool { return true }

// Penalty carries integer demerits (spec.md §3 "Penalty (integer
// demerits, discardable)").
type Penalty struct {
	Demerits int
}

func (p Penalty) Dims() (value.Dimen, value.Dimen, value.Dimen) { return value.Zero, value.Zero, value.Zero }
func (p Penalty) Discardable() bool                              { return true }

// DiscretionaryBreak carries the three token-list variants of a
// TeXbook \discretionary (spec.md §3), each already typeset into a list
// of gismos. Dims reports the no-break list's extent.
type DiscretionaryBreak struct {
	Prebreak, Postbreak, Nobreak []Gismo
	// Penalty is hyphenpenalty (non-empty prebreak) or exhyphenpenalty
	// (empty prebreak), per spec.md §4.6.
	Penalty int
}

func (d DiscretionaryBreak) Dims() (value.Dimen, value.Dimen, value.Dimen) {
	var w, h, dp value.Dimen
	for _, g := range d.Nobreak {
		gw, gh, gd := g.Dims()
		w = w.Add(gw)
		if gh.Sp > h.Sp {
			h = gh
		}
		if gd.Sp > dp.Sp {
			dp = gd
		}
	}
	return w, h, dp
}
func (d DiscretionaryBreak) Discardable() bool { return true }

// MathSwitch marks entry/exit of math mode within a horizontal list
// (spec.md §3 "MathSwitch").
type MathSwitch struct{ Entering bool }

func (m MathSwitch) Dims() (value.Dimen, value.Dimen, value.Dimen) { return value.Zero, value.Zero, value.Zero }
func (m MathSwitch) Discardable() bool                              { return true }

// Whatsit is a deferred callback invoked when the box containing it is
// shipped out (spec.md §3 "Whatsit (callback)", glossary).
type Whatsit struct {
	Run func() error
}

func (w Whatsit) Dims() (value.Dimen, value.Dimen, value.Dimen) { return value.Zero, value.Zero, value.Zero }
func (w Whatsit) Discardable() bool                              { return false }

// Breakpoint is inserted by Box.AppendItem before/after certain items, per
// spec.md §4.6; it carries the penalty a line break there would cost.
type Breakpoint struct {
	Penalty int
}

func (b Breakpoint) Dims() (value.Dimen, value.Dimen, value.Dimen) { return value.Zero, value.Zero, value.Zero }
func (b Breakpoint) Discardable() bool                              { return true }
