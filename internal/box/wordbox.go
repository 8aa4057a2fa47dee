package box

import "github.com/marnanel/mex/internal/value"

// FontMetrics is the minimal surface WordBox needs from a loaded font to
// apply kerning and ligature substitution on append (spec.md §4.6
// "WordBox.append(character)"). internal/font/tfm.Font implements it.
type FontMetrics interface {
	KernFor(prev, next rune) (value.Dimen, bool)
	LigatureFor(prev, next rune) (rune, bool)
	CharDims(ch rune) (width, height, depth value.Dimen)
}

// NewWordBox builds an HBox specialised for consecutive characters from
// one font (spec.md §3 "WordBox").
func NewWordBox(fontName string, metrics FontMetrics) *Box {
	return &Box{Kind: KindWordBox, Font: fontName, metrics: metrics}
}

// AppendChar implements spec.md §4.6 "WordBox.append(character)":
// kern-or-ligature lookup against the previous character, falling back
// to a plain CharBox.
func (b *Box) AppendChar(ch rune) {
	if len(b.Children) > 0 {
		if prevBox, ok := lastCharBox(b.Children); ok && b.metrics != nil {
			if lig, ok := b.metrics.LigatureFor(prevBox.Char, ch); ok {
				prevBox.Char = lig
				prevBox.LigatureSource = append(append([]rune{}, prevBox.LigatureSource...), ch)
				w, h, d := b.metrics.CharDims(lig)
				prevBox.Width, prevBox.Height, prevBox.Depth = w, h, d
				b.recomputeHBox()
				return
			}
			if kern, ok := b.metrics.KernFor(prevBox.Char, ch); ok {
				b.Children = append(b.Children, Kern{Width: kern.Neg(), Axis: AxisHorizontal})
			}
		}
	}
	var w, h, d value.Dimen
	if b.metrics != nil {
		w, h, d = b.metrics.CharDims(ch)
	}
	b.Children = append(b.Children, BoxGismo{Box: NewCharBox(b.Font, ch, w, h, d)})
	b.recomputeHBox()
}

// lastCharBox finds the most recently appended CharBox, so a new
// character can be checked against it for kerning/ligatures - kerns
// inserted in between do not block the lookup (TeX looks past them at
// the last real glyph).
func lastCharBox(children []Gismo) (*Box, bool) {
	for i := len(children) - 1; i >= 0; i-- {
		switch v := children[i].(type) {
		case BoxGismo:
			if v.Box.Kind == KindCharBox {
				return v.Box, true
			}
			return nil, false
		case Kern:
			continue
		default:
			return nil, false
		}
	}
	return nil, false
}
