// Package value implements mex's scaled fixed-point arithmetic: Dimen
// (scaled points), Glue (stretch/shrink with infinity orders), and the
// numeric-literal parser shared by \count, \dimen, \advance and friends
// (spec.md §3, §4.4 "Numeric parsing").
package value

import (
	"fmt"

	"github.com/marnanel/mex/internal/mexerr"
)

// Sp is one scaled point: 2^-16 pt, the atomic unit every Dimen is
// measured in (spec.md §3 "Dimen (length)").
const Sp = 1

// unitsPerPt is the fixed-point scale: a Dimen's Sp count is the value
// in points times 2^16.
const unitsPerPt = 1 << 16

// Dimen is a fixed-point length: an integer count of scaled points.
type Dimen struct {
	Sp int64
}

// Zero is the zero length.
var Zero = Dimen{}

// FromPt builds a Dimen from a floating-point point count, rounding to
// the nearest scaled point - used when converting parsed "123.456pt"
// literals.
func FromPt(pt float64) Dimen {
	return Dimen{Sp: int64(pt*unitsPerPt + sign(pt)*0.5)}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// Pt returns the length in points.
func (d Dimen) Pt() float64 {
	return float64(d.Sp) / unitsPerPt
}

func (d Dimen) Add(o Dimen) Dimen { return Dimen{d.Sp + o.Sp} }
func (d Dimen) Sub(o Dimen) Dimen { return Dimen{d.Sp - o.Sp} }
func (d Dimen) Neg() Dimen        { return Dimen{-d.Sp} }

// Scale multiplies by an integer (the plain-integer multiplier that
// \multiply and \divide use).
func (d Dimen) Scale(n int64) Dimen { return Dimen{d.Sp * n} }

// Divide divides by an integer, truncating toward zero as TeX does.
func (d Dimen) Divide(loc mexerr.Location, n int64) (Dimen, error) {
	if n == 0 {
		return Dimen{}, mexerr.Value(loc, "divide by zero")
	}
	return Dimen{d.Sp / n}, nil
}

func (d Dimen) String() string {
	return fmt.Sprintf("%gpt", d.Pt())
}

// InfOrder is a glue stretch/shrink's infinity order: 0 for a plain
// finite Dimen, 1/2/3 for fil/fill/filll. Higher orders absorb any
// finite amount and dominate lower orders when distributing stretch.
type InfOrder int

const (
	Finite InfOrder = 0
	Fil    InfOrder = 1
	Fill   InfOrder = 2
	Filll  InfOrder = 3
)

// Amount is a length tagged with its infinity order, as used for a
// Glue's stretch and shrink components.
type Amount struct {
	Dimen Dimen
	Order InfOrder
}

func (a Amount) String() string {
	switch a.Order {
	case Fil:
		return fmt.Sprintf("%gfil", a.Dimen.Pt())
	case Fill:
		return fmt.Sprintf("%gfill", a.Dimen.Pt())
	case Filll:
		return fmt.Sprintf("%gfilll", a.Dimen.Pt())
	default:
		return a.Dimen.String()
	}
}

// Glue is a stretchable/shrinkable length (spec.md §3).
type Glue struct {
	Natural Dimen
	Stretch Amount
	Shrink  Amount
}

// Add combines two glues component-wise. Adding stretches/shrinks of
// differing infinity order is legal in TeX (the higher order wins, the
// lower order's finite amount is simply dominated); Scale and Divide
// below require matching orders because that's how \multiply/\divide
// are actually used against a single register.
func (g Glue) Add(o Glue) Glue {
	return Glue{
		Natural: g.Natural.Add(o.Natural),
		Stretch: addAmount(g.Stretch, o.Stretch),
		Shrink:  addAmount(g.Shrink, o.Shrink),
	}
}

func addAmount(a, b Amount) Amount {
	if a.Order == b.Order {
		return Amount{a.Dimen.Add(b.Dimen), a.Order}
	}
	if a.Order > b.Order {
		return a
	}
	return b
}

// Scale multiplies every component (natural, stretch, shrink)
// proportionally by a plain integer, per spec.md §4.4 "glue arithmetic
// is component-wise".
func (g Glue) Scale(n int64) Glue {
	return Glue{
		Natural: g.Natural.Scale(n),
		Stretch: Amount{g.Stretch.Dimen.Scale(n), g.Stretch.Order},
		Shrink:  Amount{g.Shrink.Dimen.Scale(n), g.Shrink.Order},
	}
}

// Divide divides every component by a plain integer.
func (g Glue) Divide(loc mexerr.Location, n int64) (Glue, error) {
	nat, err := g.Natural.Divide(loc, n)
	if err != nil {
		return Glue{}, err
	}
	str, err := g.Stretch.Dimen.Divide(loc, n)
	if err != nil {
		return Glue{}, err
	}
	shr, err := g.Shrink.Dimen.Divide(loc, n)
	if err != nil {
		return Glue{}, err
	}
	return Glue{nat, Amount{str, g.Stretch.Order}, Amount{shr, g.Shrink.Order}}, nil
}

func (g Glue) String() string {
	s := g.Natural.String()
	if g.Stretch.Dimen.Sp != 0 {
		s += " plus " + g.Stretch.String()
	}
	if g.Shrink.Dimen.Sp != 0 {
		s += " minus " + g.Shrink.String()
	}
	return s
}

// Unit is a recognised length unit (spec.md §3).
type Unit struct {
	Name      string
	PtPerUnit float64 // 0 for font-relative units (ex, em), handled specially
}

// Units lists every unit accepted after a number, longest-name first so
// a greedy match (as the tokeniser/parser does) never mistakes "pc" for
// a truncated "pt".
var Units = []Unit{
	{"pt", 1},
	{"pc", 12},
	{"in", 72.27},
	{"bp", 72.27 / 72},
	{"cm", 72.27 / 2.54},
	{"mm", 72.27 / 25.4},
	{"dd", 1238.0 / 1157.0},
	{"cc", 12 * 1238.0 / 1157.0},
	{"sp", 1.0 / unitsPerPt},
}

// FontRelative units (ex, em) need the current font's x-height/quad and
// so are resolved by the caller (the document state has the font);
// LookupUnit only recognises the name.
var FontRelativeUnits = map[string]bool{"ex": true, "em": true}

// LookupUnit finds a fixed-ratio unit by name (case-insensitive isn't
// required; TeX units are always lowercase two-letter codes).
func LookupUnit(name string) (Unit, bool) {
	for _, u := range Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// InfUnit recognises fil/fill/filll, returning the order.
func InfUnit(name string) (InfOrder, bool) {
	switch name {
	case "fil":
		return Fil, true
	case "fill":
		return Fill, true
	case "filll":
		return Filll, true
	}
	return 0, false
}
