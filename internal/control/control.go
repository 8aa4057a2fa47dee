// Package control implements the control registry and the built-in
// primitives (spec.md §4.4, §6): InstallPrimitives populates a fresh
// state.Document with every control TeX treats as a primitive.
//
// Grounded on pongo2's tags.go/filters.go registry pattern (a package-
// level map of name -> constructor/behaviour, installed into a context
// once at startup) generalized from "template tags" to "TeX primitives".
package control

import (
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// loc converts a token.Location (the shape every call site has on hand)
// to the mexerr.Location every error constructor wants.
func loc(l token.Location) mexerr.Location {
	return mexerr.Location{Filename: l.Filename, Line: l.Line, Column: l.Column}
}

// define registers a non-expandable primitive.
func define(doc *state.Document, name string, run state.PrimitiveFunc) {
	doc.Define(`\`+name, &state.Control{Kind: state.KindPrimitive, Name: name, Run: run}, true)
}

// defineCap registers a primitive with explicit capabilities (expandable,
// outer, mode affinity).
func defineCap(doc *state.Document, name string, cap state.Capabilities, run state.PrimitiveFunc) {
	doc.Define(`\`+name, &state.Control{Kind: state.KindPrimitive, Name: name, Capabilities: cap, Run: run}, true)
}

// defineExpandable registers an expandable primitive (\the, conditionals,
// \csname, \expandafter, \noexpand, ...).
func defineExpandable(doc *state.Document, name string, run state.PrimitiveFunc) {
	defineCap(doc, name, state.Capabilities{Expandable: true}, run)
}

// InstallPrimitives populates doc's control registry with every built-in
// control this module implements. Callers (cmd/mex, tests) call this
// once against a freshly-constructed state.New() document.
func InstallPrimitives(doc *state.Document) {
	installCore(doc)
	installDefPrimitives(doc)
	installTheAndArithmetic(doc)
	installConditionals(doc)
	installCsnamePrimitives(doc)
	installBoxPrimitives(doc)
	installMiscPrimitives(doc)
}

// installCore wires \relax, \par, and the group/prefix primitives that
// have no natural home in any of the other files.
func installCore(doc *state.Document) {
	define(doc, "relax", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		return nil, nil
	})

	defineCap(doc, "par", state.Capabilities{ModeAffinity: state.AffinityVertical}, func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		proceed, err := enforceAffinity(m, self, callLoc)
		if err != nil || !proceed {
			return nil, err
		}
		return nil, nil
	})

	define(doc, "begingroup", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		m.BeginGroup(state.SemiSimple)
		return nil, nil
	})
	define(doc, "endgroup", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		return nil, m.EndGroup()
	})

	define(doc, "global", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		m.Doc().SetPrefix(state.Prefixes{Global: true})
		return nil, nil
	})
	define(doc, "long", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		m.Doc().SetPrefix(state.Prefixes{Long: true})
		return nil, nil
	})
	define(doc, "outer", func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
		m.Doc().SetPrefix(state.Prefixes{Outer: true})
		return nil, nil
	})
}
