package state

import (
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
)

// GroupFlavor distinguishes the four group flavours from spec.md §3
// "Group".
type GroupFlavor int

const (
	// Ordinary is a plain {...} group.
	Ordinary GroupFlavor = iota
	// SemiSimple is \begingroup...\endgroup.
	SemiSimple
	// OnlyMode is a pseudo-group that restores only the mode on close,
	// delegating every other assignment through to the enclosing group
	// (used when a primitive switches mode for the duration of a
	// sub-computation without opening a full scope).
	OnlyMode
	// Ephemeral groups collapse into their enclosing group on close: any
	// restore records they accumulate are handed up rather than applied,
	// as if the group had never been opened. Used by internal
	// bookkeeping that needs a group object to exist transiently but
	// must not itself create a restorable scope boundary.
	Ephemeral
)

// restoreRecord is the sum type of everything a group can remember how
// to undo. Kept as a small set of concrete types behind an interface
// rather than per-field tables, per spec.md §9 "prefer a sum type over
// per-type tables".
type restoreRecord interface{ restore(d *Document) }

type restoreControl struct {
	name string
	prev *Control
}

func (r restoreControl) restore(d *Document) {
	if r.prev == nil {
		delete(d.names, r.name)
	} else {
		d.names[r.name] = r.prev
	}
}

type restoreCount struct {
	index int
	prev  int64
}

func (r restoreCount) restore(d *Document) { d.Registers.Count[r.index] = r.prev }

type restoreCatcode struct {
	r    rune
	prev catcode.Code
}

func (r restoreCatcode) restore(d *Document) {
	d.Catcode.Set(r.r, r.prev)
}

type restoreMode struct {
	prev Mode
}

func (r restoreMode) restore(d *Document) { d.Mode = r.prev }

type restoreFunc struct {
	undo func(d *Document)
}

func (r restoreFunc) restore(d *Document) { r.undo(d) }

// Group is an open scope: an ordered list of restore records, applied in
// reverse (LIFO) on close, per spec.md §3 "Group".
type Group struct {
	Flavor   GroupFlavor
	restores []restoreRecord
}

// BeginGroup opens a new scope of the given flavour (spec.md §4.5
// "begin_group(flavour)").
func (d *Document) BeginGroup(flavor GroupFlavor) {
	d.groups = append(d.groups, &Group{Flavor: flavor})
}

// EndGroup closes the innermost scope, applying its restore log in
// reverse order, then - if it is an only-mode group - re-recording any
// non-mode restores it held onto the new top group (they were never
// really its own, spec.md §3 "only-mode ... delegates other assignments
// through to the enclosing group"). Ephemeral groups simply hand their
// whole restore log up to the parent without applying it.
func (d *Document) EndGroup() error {
	n := len(d.groups)
	if n == 0 {
		return mexerr.Parse(mexerr.Location{}, "too many }'s: no group to end")
	}
	g := d.groups[n-1]
	d.groups = d.groups[:n-1]

	switch g.Flavor {
	case Ephemeral:
		if len(d.groups) > 0 {
			parent := d.groups[len(d.groups)-1]
			parent.restores = append(parent.restores, g.restores...)
		}
		return nil
	case OnlyMode:
		for i := len(g.restores) - 1; i >= 0; i-- {
			if _, isMode := g.restores[i].(restoreMode); isMode {
				g.restores[i].restore(d)
			} else if len(d.groups) > 0 {
				parent := d.groups[len(d.groups)-1]
				parent.restores = append(parent.restores, g.restores[i])
			}
		}
		return nil
	default:
		for i := len(g.restores) - 1; i >= 0; i-- {
			g.restores[i].restore(d)
		}
		return nil
	}
}

// Depth reports the number of currently-open groups, for the invariant
// in spec.md §3: "reading end-of-input with depth > 0 is an error".
func (d *Document) Depth() int { return len(d.groups) }

// recordRestore appends a restore record to the innermost open group, if
// any (a global assignment with no open group is simply permanent).
func (d *Document) recordRestore(r restoreRecord) {
	if n := len(d.groups); n > 0 {
		d.groups[n-1].restores = append(d.groups[n-1].restores, r)
	}
}

// SetCount assigns \countN, recording an undo entry unless global.
func (d *Document) SetCount(index int, v int64, global bool) {
	if !global {
		d.recordRestore(restoreCount{index, d.Registers.Count[index]})
	} else {
		for _, g := range d.groups {
			filtered := g.restores[:0]
			for _, r := range g.restores {
				if rc, ok := r.(restoreCount); ok && rc.index == index {
					continue
				}
				filtered = append(filtered, r)
			}
			g.restores = filtered
		}
	}
	d.Registers.Count[index] = v
}

// SetCatcode assigns \catcode`c=n, recording an undo entry unless
// global.
func (d *Document) SetCatcode(r rune, c catcode.Code, global bool) {
	if !global {
		d.recordRestore(restoreCatcode{r, d.Catcode.Of(r)})
	}
	d.Catcode.Set(r, c)
}

// SetMode assigns the current mode, recording an undo entry unless
// global.
func (d *Document) SetMode(m Mode, global bool) {
	if !global {
		d.recordRestore(restoreMode{d.Mode})
	}
	d.Mode = m
}

// RecordUndo lets callers outside this file (other Set* helpers for
// Dimen/Skip/Muskip/Toks/Box registers, added alongside their owning
// package) register an arbitrary restore closure without this package
// needing to know every register type up front.
func (d *Document) RecordUndo(global bool, undo func(d *Document)) {
	if !global {
		d.recordRestore(restoreFunc{undo})
	}
}
