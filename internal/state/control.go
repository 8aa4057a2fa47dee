package state

import "github.com/marnanel/mex/internal/token"

// Kind discriminates the Control variants from spec.md §3 "Control
// (meaning of a name)".
type Kind int

const (
	KindPrimitive Kind = iota
	KindUserMacro
	KindLetAlias
	KindChardef
	KindRegisterRef
)

// RegisterBlock names one of the five register blocks plus the box
// block (spec.md §3 "Register").
type RegisterBlock int

const (
	BlockCount RegisterBlock = iota
	BlockDimen
	BlockSkip
	BlockMuskip
	BlockToks
	BlockBox
)

func (b RegisterBlock) String() string {
	switch b {
	case BlockCount:
		return "count"
	case BlockDimen:
		return "dimen"
	case BlockSkip:
		return "skip"
	case BlockMuskip:
		return "muskip"
	case BlockToks:
		return "toks"
	case BlockBox:
		return "box"
	default:
		return "unknown"
	}
}

// PrimitiveFunc is the behaviour of a built-in control. It returns the
// tokens (if any) to push back onto the stream - e.g. \the's textual
// expansion - or nil for a control that is pure side effect, like \def.
type PrimitiveFunc func(m Machine, self *Control, callLoc token.Location) ([]token.Token, error)

// Affinity is a control's opinion on which mode it may run in (spec.md
// §4.6 "Unexpandable control").
type Affinity int

const (
	// AffinityAny means the control runs wherever it's invoked.
	AffinityAny Affinity = iota
	// AffinityVertical means "switch to vertical mode and resubmit".
	AffinityVertical
	// AffinityHorizontal means "switch to horizontal mode and resubmit".
	AffinityHorizontal
	// AffinityForbidden means the control is an error in the mode it was
	// invoked in (e.g. \hrule in horizontal mode).
	AffinityForbidden
)

// Capabilities bundle the orthogonal flags spec.md §3 lists for a
// Control ("is_expandable, takes_tokens_as_args, has_mode_affinity,
// is_outer, is_long").
type Capabilities struct {
	// Expandable controls are processed at expansion level "expanding";
	// non-expandable ones only run at "executing" level (spec.md §4.3
	// step 4).
	Expandable bool
	// Outer forbids this control from appearing inside argument lists,
	// other macro bodies, or skipped conditional branches.
	Outer bool
	// Long allows \par inside this macro's arguments.
	Long bool
	// ModeAffinity is AffinityAny for controls with no opinion on mode;
	// spec.md §4.6 "Unexpandable control".
	ModeAffinity Affinity
}

// Control is the polymorphic "meaning of a name" (spec.md §3).
type Control struct {
	Kind Kind
	Name string
	Capabilities

	// Primitive
	Run PrimitiveFunc

	// UserMacro
	Macro *UserMacro

	// LetAlias: points at another Control (AliasTarget) or, if Tok is
	// non-nil, at a single literal token (e.g. \let\a=a).
	AliasTarget *Control
	AliasTok    *token.Token

	// Chardef / Mathchardef
	CharValue rune
	IsMathChar bool

	// RegisterRef (\countdef et al.)
	Block RegisterBlock
	Index int
}

// Resolve follows LetAlias chains to the underlying Control that
// actually governs behaviour (spec.md's \let chaining scenario).
func (c *Control) Resolve() *Control {
	seen := map[*Control]bool{}
	cur := c
	for cur != nil && cur.Kind == KindLetAlias && cur.AliasTarget != nil {
		if seen[cur] {
			break
		}
		seen[cur] = true
		cur = cur.AliasTarget
	}
	return cur
}

// UserMacro is a \def-family definition: a delimited-parameter template
// plus a replacement template (spec.md §3 "User macro").
type UserMacro struct {
	// Params is the parameter template: literal tokens interleaved with
	// parameter-marker pseudo-tokens (Kind==paramMarker, Name holding the
	// digit "1".."9"). Built by internal/control's \def parser.
	Params []TemplateToken
	// Replacement is the replacement template, walked on each
	// invocation; parameter markers here are substituted with the
	// matching captured argument.
	Replacement []TemplateToken
	Long        bool
	Outer       bool
	// ExpandedAtDefTime is true for \edef/\xdef: Replacement was already
	// expanded once when the macro was captured (spec.md §4.4 step 7).
	ExpandedAtDefTime bool
}

// TemplateToken is either a literal token or a parameter marker #1-#9,
// used in both halves of a UserMacro template.
type TemplateToken struct {
	IsParam bool
	Param   int // 1-9, valid when IsParam
	Lit     token.Token
}
