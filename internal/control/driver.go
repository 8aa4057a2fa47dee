package control

import "github.com/marnanel/mex/internal/state"

// RunDocument drives m to exhaustion against layout: every pulled token
// has already had any control's side effects applied (m.Next() only
// yields a token once nothing further needs to run), so this just
// routes the remaining plain content (characters, spaces, paragraph
// breaks, begin/end group) the same way buildBox does for a nested
// list. Callers (cmd/mex) use this for the outermost document list.
func RunDocument(m state.Machine, layout state.LayoutHandler) error {
	for {
		tok, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if tok.IsBeginGroup() || tok.IsEndGroup() {
			continue
		}
		if err := dispatchContentToken(m, layout, tok); err != nil {
			return err
		}
	}
}
