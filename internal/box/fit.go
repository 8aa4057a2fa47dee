package box

import "github.com/marnanel/mex/internal/value"

// axisLength reads the dimension of g along this box's dominant axis:
// width for an HBox/WordBox, height for a VBox.
func (b *Box) axisLength(g Gismo) value.Dimen {
	w, h, _ := g.Dims()
	if b.Kind == KindVBox {
		return h
	}
	return w
}

// FitTo implements spec.md §4.6 "fit_to(size)": distributes stretch or
// shrink across this box's leaders so its natural length along the
// dominant axis becomes exactly size, and records the resulting
// badness.
func (b *Box) FitTo(size value.Dimen) {
	var sBox, sGlue value.Dimen
	type leaderRef = struct {
		idx int
		l   Leader
	}
	var leaders []leaderRef
	// Walk b.Children so indices line up for in-place mutation, but
	// skip Breakpoints exactly as Contents() does.
	for i, g := range b.Children {
		if _, isBP := g.(Breakpoint); isBP {
			continue
		}
		if l, ok := g.(Leader); ok {
			sGlue = sGlue.Add(l.Glue.Natural)
			leaders = append(leaders, leaderRef{i, l})
		} else {
			sBox = sBox.Add(b.axisLength(g))
		}
	}
	natural := sBox.Add(sGlue)

	switch {
	case natural.Sp == size.Sp:
		b.factor = 0
		b.badness = 0
		b.setDimAlongAxis(size)
		return

	case natural.Sp < size.Sp:
		delta := size.Sub(natural)
		order, total := maxStretchOrder(leaders)
		b.distribute(leaders, delta, order, total, true)
		if total.Sp == 0 {
			b.badness = 1000000
		} else {
			ratio := float64(delta.Sp) / float64(total.Sp)
			b.factor = ratio
			if order > value.Finite {
				b.badness = 0
			} else {
				b.badness = clampBadness(round(100 * cube(ratio)))
			}
		}

	default: // natural > size: shrink
		delta := natural.Sub(size)
		order, total := maxShrinkOrder(leaders)
		if order == value.Finite && delta.Sp > total.Sp {
			// Cannot shrink enough: overfull.
			b.distribute(leaders, total, order, total, false)
			b.badness = 1000000
			b.setDimAlongAxis(size)
			return
		}
		b.distribute(leaders, delta, order, total, false)
		if total.Sp == 0 {
			b.badness = 1000000
		} else {
			ratio := float64(delta.Sp) / float64(total.Sp)
			b.factor = ratio
			if order > value.Finite {
				b.badness = 0
			} else {
				b.badness = clampBadness(round(100 * cube(ratio)))
			}
		}
	}

	b.setDimAlongAxis(size)
}

func (b *Box) setDimAlongAxis(size value.Dimen) {
	if b.Kind == KindVBox {
		b.Height = size
	} else {
		b.Width = size
	}
}

func maxStretchOrder(leaders []struct {
	idx int
	l   Leader
}) (value.InfOrder, value.Dimen) {
	var order value.InfOrder
	for _, lr := range leaders {
		if lr.l.Glue.Stretch.Order > order {
			order = lr.l.Glue.Stretch.Order
		}
	}
	var total value.Dimen
	for _, lr := range leaders {
		if lr.l.Glue.Stretch.Order == order {
			total = total.Add(lr.l.Glue.Stretch.Dimen)
		}
	}
	return order, total
}

func maxShrinkOrder(leaders []struct {
	idx int
	l   Leader
}) (value.InfOrder, value.Dimen) {
	var order value.InfOrder
	for _, lr := range leaders {
		if lr.l.Glue.Shrink.Order > order {
			order = lr.l.Glue.Shrink.Order
		}
	}
	var total value.Dimen
	for _, lr := range leaders {
		if lr.l.Glue.Shrink.Order == order {
			total = total.Add(lr.l.Glue.Shrink.Dimen)
		}
	}
	return order, total
}

// distribute spreads delta across the leaders at the selected order,
// proportionally to each one's own stretch/shrink component, carrying
// any rounding remainder (in sp) into the last such leader - spec.md
// §4.6 step 4's "accumulate rounding error ... and add it into the
// final leader".
func (b *Box) distribute(leaders []struct {
	idx int
	l   Leader
}, delta value.Dimen, order value.InfOrder, total value.Dimen, stretching bool) {
	if total.Sp == 0 {
		return
	}
	var assigned int64
	var lastEligible = -1
	for _, lr := range leaders {
		amount := lr.l.Glue.Stretch
		if !stretching {
			amount = lr.l.Glue.Shrink
		}
		if amount.Order == order {
			lastEligible = lr.idx
		}
	}
	for _, lr := range leaders {
		amount := lr.l.Glue.Stretch
		if !stretching {
			amount = lr.l.Glue.Shrink
		}
		if amount.Order != order {
			continue
		}
		share := value.Dimen{Sp: delta.Sp * amount.Dimen.Sp / total.Sp}
		if lr.idx == lastEligible {
			share = value.Dimen{Sp: delta.Sp - assigned}
		} else {
			assigned += share.Sp
		}
		l := lr.l
		var newLen value.Dimen
		if stretching {
			newLen = l.Glue.Natural.Add(share)
		} else {
			newLen = l.Glue.Natural.Sub(share)
		}
		l.fitted = newLen
		l.wasFitted = true
		b.Children[lr.idx] = l
	}
}

func round(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return -int(-f + 0.5)
}

func cube(f float64) float64 { return f * f * f }

func clampBadness(n int) int {
	if n < 0 {
		n = -n
	}
	if n > 10000 {
		return 10000
	}
	return n
}
