package expand

import (
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
)

// InvokeMacro implements state.Machine and spec.md §4.4's user-macro
// invocation algorithm: match the parameter template against the call
// site, then walk the replacement template substituting captured
// arguments for #1-#9.
func (e *Expander) InvokeMacro(m *state.UserMacro, callLoc token.Location) ([]token.Token, error) {
	var args [9][]token.Token

	i := 0
	for i < len(m.Params) {
		pt := m.Params[i]
		if !pt.IsParam {
			tok, ok, err := e.pullOne(Deep, true, !m.Long)
			if err != nil {
				return nil, err
			}
			if !ok || !tok.Equal(pt.Lit) {
				errLoc := callLoc
				if ok {
					errLoc = tok.Loc
				}
				return nil, mexerr.Parse(mexerr.Location{Filename: errLoc.Filename, Line: errLoc.Line, Column: errLoc.Column}, "use of macro doesn't match its definition")
			}
			i++
			continue
		}

		j := i + 1
		var delim []token.Token
		for j < len(m.Params) && !m.Params[j].IsParam {
			delim = append(delim, m.Params[j].Lit)
			j++
		}

		var arg []token.Token
		var err error
		if len(delim) == 0 {
			arg, err = e.readUndelimitedArg(m.Long)
		} else {
			arg, err = e.readDelimitedArg(delim, m.Long)
		}
		if err != nil {
			return nil, err
		}
		args[pt.Param-1] = arg
		i = j
	}

	var out []token.Token
	for _, rt := range m.Replacement {
		if rt.IsParam {
			out = append(out, args[rt.Param-1]...)
		} else {
			out = append(out, rt.Lit)
		}
	}
	return out, nil
}

// readUndelimitedArg implements spec.md §4.4 step 2: a single
// non-beginning-group token, or one balanced {...} group with braces
// stripped.
func (e *Expander) readUndelimitedArg(long bool) ([]token.Token, error) {
	toks, err := e.pullSingle(Deep, Raise, true, !long)
	if err != nil {
		return nil, err
	}
	if len(toks) >= 2 && toks[0].IsBeginGroup() && toks[len(toks)-1].IsEndGroup() {
		return toks[1 : len(toks)-1], nil
	}
	return toks, nil
}

// readDelimitedArg implements spec.md §4.4 step 3: read tokens until the
// delimiter sequence matches exactly at group depth 0, then strip a
// single outer balanced group from the result if present.
func (e *Expander) readDelimitedArg(delim []token.Token, long bool) ([]token.Token, error) {
	var collected []token.Token
	depth := 0
	for {
		tok, ok, err := e.pullOne(Deep, true, !long)
		if err != nil {
			e.closeOpenGroups(depth)
			return nil, err
		}
		if !ok {
			e.closeOpenGroups(depth)
			return nil, mexerr.Parse(mexerr.Location{}, "file ended while scanning use of a macro")
		}
		switch {
		case tok.IsBeginGroup():
			depth++
		case tok.IsEndGroup():
			depth--
		}
		collected = append(collected, tok)
		if depth == 0 && endsWithDelimiter(collected, delim) {
			arg := collected[:len(collected)-len(delim)]
			return stripOuterGroup(arg), nil
		}
	}
}

func endsWithDelimiter(collected, delim []token.Token) bool {
	if len(delim) == 0 || len(collected) < len(delim) {
		return false
	}
	tail := collected[len(collected)-len(delim):]
	for k := range delim {
		if !tail[k].Equal(delim[k]) {
			return false
		}
	}
	return true
}

// stripOuterGroup removes a leading/trailing brace pair only when they
// are each other's match - i.e. arg is itself exactly one {...} group -
// not merely when the first and last tokens happen to be braces (e.g.
// "{a}{b}" must not be stripped to "a}{b").
func stripOuterGroup(arg []token.Token) []token.Token {
	if len(arg) < 2 || !arg[0].IsBeginGroup() || !arg[len(arg)-1].IsEndGroup() {
		return arg
	}
	depth := 1
	for i := 1; i < len(arg)-1; i++ {
		switch {
		case arg[i].IsBeginGroup():
			depth++
		case arg[i].IsEndGroup():
			depth--
			if depth == 0 {
				return arg
			}
		}
	}
	return arg[1 : len(arg)-1]
}
