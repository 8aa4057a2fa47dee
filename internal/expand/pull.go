package expand

import (
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/token"
)

// PullBounded implements the bounded=single/balanced half of spec.md
// §4.3's algorithm: reads a self-contained run of tokens, stopping per
// the bounded policy, and guarantees that any document-state group
// opened while reading this run is closed again before it returns -
// including on error (spec.md §4.3 "leak-free under all exit paths").
func (e *Expander) PullBounded(bounded Bounded, level Level, onEOF OnEOF, noOuter, noPar bool) ([]token.Token, error) {
	switch bounded {
	case Single:
		return e.pullSingle(level, onEOF, noOuter, noPar)
	case Balanced:
		return e.pullBalanced(level, onEOF, noOuter, noPar)
	default:
		panic("expand: PullBounded called with bounded=None; use Next in a loop instead")
	}
}

func (e *Expander) pullSingle(level Level, onEOF OnEOF, noOuter, noPar bool) ([]token.Token, error) {
	first, ok, err := e.pullOne(level, noOuter, noPar)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.handleEOF(onEOF, 0)
	}
	if !first.IsBeginGroup() {
		return []token.Token{first}, nil
	}

	out := []token.Token{first}
	depth := 1
	for depth > 0 {
		tok, ok, err := e.pullOne(level, noOuter, noPar)
		if err != nil {
			e.closeOpenGroups(depth)
			return nil, err
		}
		if !ok {
			e.closeOpenGroups(depth)
			return nil, mexerr.Parse(loc(first), "file ended inside a group")
		}
		switch {
		case tok.IsBeginGroup():
			depth++
		case tok.IsEndGroup():
			depth--
		}
		out = append(out, tok)
	}
	return out, nil
}

func (e *Expander) pullBalanced(level Level, onEOF OnEOF, noOuter, noPar bool) ([]token.Token, error) {
	first, ok, err := e.pullOne(level, noOuter, noPar)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.handleEOF(onEOF, 0)
	}
	if !first.IsBeginGroup() {
		return nil, mexerr.Parse(loc(first), "expected a { ... } group")
	}

	var out []token.Token
	depth := 1
	for depth > 0 {
		tok, ok, err := e.pullOne(level, noOuter, noPar)
		if err != nil {
			e.closeOpenGroups(depth)
			return nil, err
		}
		if !ok {
			e.closeOpenGroups(depth)
			return nil, mexerr.Parse(loc(first), "file ended inside a group")
		}
		switch {
		case tok.IsBeginGroup():
			depth++
			out = append(out, tok)
		case tok.IsEndGroup():
			depth--
			if depth > 0 {
				out = append(out, tok)
			}
		default:
			out = append(out, tok)
		}
	}
	return out, nil
}

// closeOpenGroups closes n groups this Pull opened but never saw matched,
// because the read is being abandoned on error or premature EOF.
func (e *Expander) closeOpenGroups(n int) {
	for i := 0; i < n; i++ {
		_ = e.doc.EndGroup()
	}
}

func (e *Expander) handleEOF(onEOF OnEOF, depth int) ([]token.Token, error) {
	e.closeOpenGroups(depth)
	switch onEOF {
	case Raise:
		return nil, mexerr.Parse(mexerr.Location{}, "unexpected end of input")
	default: // Exhaust, ReturnNone
		return nil, nil
	}
}
