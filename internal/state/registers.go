package state

import (
	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/token"
	"github.com/marnanel/mex/internal/value"
)

// SetDimen assigns \dimen<index>.
func (d *Document) SetDimen(index int, v value.Dimen, global bool) {
	prev := d.Registers.Dimen[index]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Registers.Dimen[index] = prev })
	}
	d.Registers.Dimen[index] = v
}

// SetSkip assigns \skip<index>.
func (d *Document) SetSkip(index int, v value.Glue, global bool) {
	prev := d.Registers.Skip[index]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Registers.Skip[index] = prev })
	}
	d.Registers.Skip[index] = v
}

// SetMuskip assigns \muskip<index>.
func (d *Document) SetMuskip(index int, v value.Glue, global bool) {
	prev := d.Registers.Muskip[index]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Registers.Muskip[index] = prev })
	}
	d.Registers.Muskip[index] = v
}

// SetToks assigns \toks<index>.
func (d *Document) SetToks(index int, v []token.Token, global bool) {
	prev := d.Registers.Toks[index]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Registers.Toks[index] = prev })
	}
	cp := make([]token.Token, len(v))
	copy(cp, v)
	d.Registers.Toks[index] = cp
}

// SetBox assigns \setbox<index>, per spec.md §4.6: assigning \box<n>
// also voids it (TeX's "use it up" semantics are implemented by the
// caller reading then clearing; SetBox itself is the plain assignment
// half of that pair).
func (d *Document) SetBox(index int, v *box.Box, global bool) {
	prev := d.Registers.Box[index]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Registers.Box[index] = prev })
	}
	d.Registers.Box[index] = v
}

// TakeBox reads \box<n> and clears the register, per the TeXbook's rule
// that referencing a box register (other than via \copy) empties it.
func (d *Document) TakeBox(index int) *box.Box {
	b := d.Registers.Box[index]
	d.SetBox(index, nil, false)
	return b
}

// SetLccode assigns \lccode`r=n, restored on group exit like \catcode.
func (d *Document) SetLccode(r rune, v rune, global bool) {
	prev := d.Lccode[byte(r)]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Lccode[byte(r)] = prev })
	}
	d.Lccode[byte(r)] = v
}

// SetUccode assigns \uccode`r=n, restored on group exit like \catcode.
func (d *Document) SetUccode(r rune, v rune, global bool) {
	prev := d.Uccode[byte(r)]
	if !global {
		d.RecordUndo(false, func(d *Document) { d.Uccode[byte(r)] = prev })
	}
	d.Uccode[byte(r)] = v
}

// Prefixes accumulates the \global/\long/\outer modifiers spec.md §4.4
// says "may precede \def, in any order" and applies to whatever
// definition or assignment comes next. internal/control's prefix
// primitives set these; the def/assignment primitives that consume them
// call TakePrefixes to read-and-reset in one step, so a prefix can never
// leak onto a second, unrelated command.
type Prefixes struct {
	Global, Long, Outer bool
}

// SetPrefix merges a newly-seen modifier into the pending set.
func (d *Document) SetPrefix(p Prefixes) {
	d.pendingPrefixes.Global = d.pendingPrefixes.Global || p.Global
	d.pendingPrefixes.Long = d.pendingPrefixes.Long || p.Long
	d.pendingPrefixes.Outer = d.pendingPrefixes.Outer || p.Outer
}

// TakePrefixes reads and clears the pending modifier set.
func (d *Document) TakePrefixes() Prefixes {
	p := d.pendingPrefixes
	d.pendingPrefixes = Prefixes{}
	return p
}
