package box

// AppendItem adds a gismo to an HBox: a caller passes the gismo it
// wants to add (a Box, a Leader, a Kern, etc). AppendItem decides whether
// a Breakpoint must also be inserted, and where, per spec.md §4.6
// "HBox.append implements breakpoint insertion".
func (b *Box) AppendItem(g Gismo) {
	switch v := g.(type) {
	case Leader:
		b.appendLeader(v)
	case Penalty:
		b.Children = append(b.Children, Breakpoint{Penalty: v.Demerits})
	case DiscretionaryBreak:
		penalty := v.Penalty
		b.Children = append(b.Children, Breakpoint{Penalty: penalty})
		b.Children = append(b.Children, v)
	default:
		b.Children = append(b.Children, g)
	}
	if b.Kind == KindVBox {
		b.recomputeVBox()
	} else {
		b.recomputeHBox()
	}
}

// lastNonBreakpointIndex finds the index of the most recently appended
// child that is not itself a Breakpoint, or -1.
func (b *Box) lastNonBreakpointIndex() int {
	for i := len(b.Children) - 1; i >= 0; i-- {
		if _, ok := b.Children[i].(Breakpoint); !ok {
			return i
		}
	}
	return -1
}

// appendLeader implements spec.md §4.6's rule: "before appending a glue
// after a non-discardable item, insert a Breakpoint with penalty 0;
// before a glue after a Kern or math-off, insert the breakpoint *before*
// the prior kern/switch."
func (b *Box) appendLeader(l Leader) {
	i := b.lastNonBreakpointIndex()
	switch {
	case i < 0:
		// Nothing precedes this glue; no breakpoint needed at the very
		// start of a list.
	default:
		switch prev := b.Children[i].(type) {
		case Kern:
			b.insertBreakpointAt(i, Breakpoint{Penalty: 0})
		case MathSwitch:
			if !prev.Entering {
				b.insertBreakpointAt(i, Breakpoint{Penalty: 0})
			} else {
				b.Children = append(b.Children, Breakpoint{Penalty: 0})
			}
		default:
			if !prev.Discardable() {
				b.Children = append(b.Children, Breakpoint{Penalty: 0})
			}
		}
	}
	b.Children = append(b.Children, l)
}

// insertBreakpointAt splices a Breakpoint into Children immediately
// before index i.
func (b *Box) insertBreakpointAt(i int, bp Breakpoint) {
	b.Children = append(b.Children, nil)
	copy(b.Children[i+1:], b.Children[i:])
	b.Children[i] = bp
}
