// Package state implements the document state: a scoped, multi-block
// symbol table with group-local undo (spec.md §3 "Document state", §4.5).
//
// It owns the six register blocks, the catcode/lccode/uccode tables, the
// control-name registry, the group stack, and the conditional-nesting
// stack. Grounded on pongo2's context.go (the ExecutionContext
// Public/Private/Shared split becomes mex's registers/groups split: a
// document has exactly one mutable state bag, passed by reference
// through the engine rather than held in a process-wide singleton, per
// spec.md §9 "Global state").
package state

import (
	"fmt"
	"time"

	"github.com/juju/loggo"

	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/token"
	"github.com/marnanel/mex/internal/value"
)

var logger = loggo.GetLogger("mex.state")

// Mode is the document's current layout mode (spec.md §4.6). Kept here
// rather than in a separate package because it is a field of Document
// itself and participates in group restoration exactly like any other
// scoped field.
type Mode int

const (
	Vertical Mode = iota
	InternalVertical
	Horizontal
	RestrictedHorizontal
	Math
	DisplayMath
)

func (m Mode) String() string {
	switch m {
	case Vertical:
		return "vertical"
	case InternalVertical:
		return "internal vertical"
	case Horizontal:
		return "horizontal"
	case RestrictedHorizontal:
		return "restricted horizontal"
	case Math:
		return "math"
	case DisplayMath:
		return "display math"
	default:
		return "unknown mode"
	}
}

// Registers holds the five numbered register blocks plus the box
// register block (spec.md §3 "Register"). Every index 0-255 always
// holds a value; reads never fail.
type Registers struct {
	Count  [256]int64
	Dimen  [256]value.Dimen
	Skip   [256]value.Glue
	Muskip [256]value.Glue
	Toks   [256][]token.Token
	Box    [256]*box.Box
}

// Machine is the surface a Control's Run function uses to interact with
// the engine driving it. It is implemented by *expand.Expander; keeping
// it as an interface declared here (rather than importing expand, which
// itself must import state for Document and Control) breaks what would
// otherwise be a control-registry/expander import cycle, matching
// spec.md §9's note that dispatch should be a single method taking "a
// mutable reference to the engine".
type Machine interface {
	// Doc returns the document state the machine is driving.
	Doc() *Document
	// Loc returns the source location of the token currently being
	// processed, for error messages.
	Loc() token.Location
	// Next pulls the next token, with this Machine's ambient expansion
	// policy (for *expand.Expander, "executing": macros are expanded and
	// primitives are run).
	Next() (tok token.Token, ok bool, err error)
	// NextUnexpanded pulls the next raw token with no expansion at all,
	// for contexts that must see tokens as literally as \noexpand would:
	// \let right-hand sides, \def parameter templates, \csname bodies'
	// delimiter comparisons.
	NextUnexpanded() (tok token.Token, ok bool, err error)
	// NextExpanding pulls the next token expanding macros and expandable
	// primitives, but never executing a primitive with side effects - the
	// level \edef/\xdef capture replacement text at.
	NextExpanding() (tok token.Token, ok bool, err error)
	// Push reinjects a single token ahead of the rest of the stream.
	Push(tok token.Token)
	// PushAll reinjects a sequence of tokens, preserving order: the
	// first element of seq is read first.
	PushAll(seq []token.Token)
	// InvokeMacro performs the full parameter-matching and substitution
	// algorithm for a user macro (spec.md §4.4 "User-macro invocation")
	// and returns the replacement tokens to push back.
	InvokeMacro(m *UserMacro, callLoc token.Location) ([]token.Token, error)
	// ExpandOnce expands tok by exactly one level if it names a macro or
	// an expandable primitive, returning its replacement tokens; any
	// other token is returned unchanged as a one-element slice. Used by
	// \expandafter (spec.md §4.4).
	ExpandOnce(tok token.Token) ([]token.Token, error)
	// BeginGroup pushes a new group of the given flavour.
	BeginGroup(flavor GroupFlavor)
	// EndGroup pops the innermost group, applying its restore log.
	EndGroup() error
}

// Document is the engine's single mutable state bag (spec.md §4.5).
type Document struct {
	Registers Registers

	Catcode *catcode.Table
	Lccode  [256]rune
	Uccode  [256]rune

	names map[string]*Control

	groups []*Group

	// Conditionals tracks unmatched \if*/\fi nesting (spec.md §3's
	// invariant: its depth equals the number of unmatched \if*
	// constructs). Each entry records whether the conditional's taken
	// branch has already fired, so \else/\or know whether to skip.
	Conditionals []*Conditional

	Mode        Mode
	CurrentFont string
	Parshape    []ParshapeLine

	// Layout is the mode-switched layout core driving box/list building
	// (spec.md §4.6). Set once by whoever assembles the engine
	// (internal/mode.New followed by assigning this field); nil until
	// then, so state itself stays decoupled from internal/mode.
	Layout LayoutHandler

	// pendingPrefixes holds \global/\long/\outer modifiers seen before a
	// \def-family or assignment command but not yet consumed by it
	// (spec.md §4.4).
	pendingPrefixes Prefixes

	// created is the document's creation timestamp, the source for
	// \time, \day, \month, \year (spec.md §4.5 "Time values").
	created time.Time
}

// ParshapeLine is one (indent, length) pair from \parshape.
type ParshapeLine struct {
	Indent value.Dimen
	Length value.Dimen
}

// Conditional is one entry on the conditional-nesting stack.
type Conditional struct {
	// Name is the \if* variant that opened this conditional, for
	// diagnostics ("extra \else" etc).
	Name string
	// Taken is true once a true branch has been entered; a later \else
	// in the same conditional is then skipped rather than executed.
	Taken bool
	// SawElse records whether \else has already appeared, to catch a
	// second \else as an error.
	SawElse bool
}

// New builds a fresh Document with default catcodes and no user-defined
// controls; callers (cmd/mex, or internal/control.InstallPrimitives)
// populate the primitive table separately, so state itself stays
// agnostic of what a "primitive" does.
func New() *Document {
	d := &Document{
		Catcode: catcode.NewDefaultTable(),
		names:   make(map[string]*Control),
		created: time.Now(),
	}
	for i := 0; i < 256; i++ {
		d.Lccode[i] = 0
		d.Uccode[i] = 0
	}
	for r := 'a'; r <= 'z'; r++ {
		d.Lccode[r] = r
		d.Uccode[r] = r - 'a' + 'A'
	}
	for r := 'A'; r <= 'Z'; r++ {
		d.Lccode[r] = r - 'A' + 'a'
		d.Uccode[r] = r
	}
	return d
}

// NewWithClock builds a Document whose \time/\day/\month/\year report
// as of the given instant, for reproducible tests instead of New's
// time.Now().
func NewWithClock(at time.Time) *Document {
	d := New()
	d.created = at
	return d
}

// Lookup returns the current meaning of a control/active-character name
// (including the leading backslash for controls), or nil if undefined.
func (d *Document) Lookup(name string) *Control {
	return d.names[name]
}

// Define installs or replaces the meaning of name. If global is false
// and there is an open group, the previous meaning (possibly nil) is
// recorded so the group can restore it on close.
func (d *Document) Define(name string, c *Control, global bool) {
	prev := d.names[name]
	if !global {
		d.recordRestore(restoreControl{name: name, prev: prev})
	} else {
		d.purgeControlRestoresBelow(name)
	}
	if c == nil {
		delete(d.names, name)
	} else {
		d.names[name] = c
	}
}

// purgeControlRestoresBelow drops any pending restore records for name
// in currently-open groups: a \global assignment is meant to survive
// every enclosing group close, so those groups must not later overwrite
// it with their stale "previous value".
func (d *Document) purgeControlRestoresBelow(name string) {
	for _, g := range d.groups {
		filtered := g.restores[:0]
		for _, r := range g.restores {
			if cr, ok := r.(restoreControl); ok && cr.name == name {
				continue
			}
			filtered = append(filtered, r)
		}
		g.restores = filtered
	}
}

// ResolveControlAsNumber implements value.Resolver: a control stands in
// for a number when it is a register reference (\countdef etc, or the
// bare register primitives \count/\dimen/... followed by an index) or a
// \chardef/\mathchardef target, per spec.md §4.4 "\the" and "Numeric
// parsing".
func (d *Document) ResolveControlAsNumber(name string) (int64, bool, error) {
	c := d.Lookup("\\" + name)
	if c == nil {
		return 0, false, mexerr.Macro(token.Location{}, "there is no macro called \\%s", name)
	}
	switch c.Kind {
	case KindChardef:
		return int64(c.CharValue), true, nil
	case KindRegisterRef:
		n, err := d.readRegisterAsNumber(c.Block, c.Index)
		return n, true, err
	default:
		return 0, false, nil
	}
}

func (d *Document) readRegisterAsNumber(block RegisterBlock, index int) (int64, error) {
	switch block {
	case BlockCount:
		return d.Registers.Count[index], nil
	case BlockDimen:
		return d.Registers.Dimen[index].Sp, nil
	default:
		return 0, mexerr.Control(token.Location{}, "register block %v has no numeric value", block)
	}
}

// Logger exposes the module's trace logger, so callers outside this
// package (the expander, primitives) can log at the same "mex.state"
// level consistently instead of each declaring their own.
func Logger() loggo.Logger { return logger }

// Time values (spec.md §4.5).
func (d *Document) Time() int   { return d.created.Hour()*60 + d.created.Minute() }
func (d *Document) Day() int    { return d.created.Day() }
func (d *Document) Month() int  { return int(d.created.Month()) }
func (d *Document) Year() int   { return d.created.Year() }

func (d *Document) String() string {
	return fmt.Sprintf("Document{mode=%s, %d controls, %d groups}", d.Mode, len(d.names), len(d.groups))
}
