// Package tfm implements the TFM font-metric reader (spec.md §4.7): the
// fixed-point width/height/depth/italic tables, the kern/ligature
// program, and the seven named font parameters, all read from the
// standard big-endian TFM binary layout.
//
// pongo2 has no binary-format reader to ground this on, so this package
// follows spec.md §4.7/§6's prose directly for layout, and reuses mex's
// own internal/value for the fixed-point arithmetic every table entry
// is expressed in.
package tfm

import (
	"encoding/binary"
	"io"

	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/value"
)

// fixWord is TFM's native fixed-point representation: a signed 32-bit
// integer equal to the value times 2^20 (spec.md §4.7 "Fix-word").
type fixWord int32

// toDimen converts a fix-word to a Dimen, given the font's design size
// in points - a fix-word's unit is "design size point" for every table
// except the design size field itself, which is already in points.
func (f fixWord) toDimen(designSizePt float64) value.Dimen {
	return value.FromPt(float64(f) / (1 << 20) * designSizePt)
}

// toPt interprets a fix-word directly as a point count, used only for
// the header's own design-size field.
func (f fixWord) toPt() float64 {
	return float64(f) / (1 << 20)
}

// charInfoWord is the packed per-character descriptor (spec.md §4.7):
// width-index(8b), height-index(4b), depth-index(4b),
// italic-correction-index(6b), tag-code(2b), remainder(8b).
type charInfoWord struct {
	widthIndex   byte
	heightIndex  byte
	depthIndex   byte
	italicIndex  byte
	tag          byte
	remainder    byte
}

func decodeCharInfo(w uint32) charInfoWord {
	return charInfoWord{
		widthIndex:  byte(w >> 24),
		heightIndex: byte((w >> 20) & 0xF),
		depthIndex:  byte((w >> 16) & 0xF),
		italicIndex: byte((w >> 10) & 0x3F),
		tag:         byte((w >> 8) & 0x3),
		remainder:   byte(w & 0xFF),
	}
}

// Tag codes for charInfoWord.tag (spec.md §4.7).
const (
	tagNoTag = 0
	tagLig   = 1 // remainder indexes the lig/kern program
	tagList  = 2
	tagExt   = 3
)

// ligKernStep is one step of the lig/kern program, packed as four bytes
// (spec.md §4.7 "lig/kern program").
type ligKernStep struct {
	skip, nextChar, op, remainder byte
}

// Params are the standard seven font dimensions (spec.md §4.7 "Parameter
// table"), indices 1-7 in TeX's own 1-based numbering.
type Params struct {
	Slant      float64 // dimensionless: a pure ratio, not scaled by design size
	Space      value.Dimen
	Stretch    value.Dimen
	Shrink     value.Dimen
	XHeight    value.Dimen
	Quad       value.Dimen
	ExtraSpace value.Dimen
}

// Font is a fully-parsed TFM font, implementing box.FontMetrics.
type Font struct {
	Checksum   uint32
	DesignSize float64 // in points

	firstChar, lastChar int
	charInfo             []charInfoWord
	width, height, depth, italic []fixWord
	ligKern                      []ligKernStep
	kern                         []fixWord

	Params Params
}

// Parse reads a TFM file per spec.md §4.7.
func Parse(r io.Reader) (*Font, error) {
	var lengths [12]uint16
	if err := binary.Read(r, binary.BigEndian, &lengths); err != nil {
		return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM header lengths")
	}
	lf, lh := int(lengths[0]), int(lengths[1])
	bc, ec := int(lengths[2]), int(lengths[3])
	nw, nh, nd, ni := int(lengths[4]), int(lengths[5]), int(lengths[6]), int(lengths[7])
	nl, nk, ne, np := int(lengths[8]), int(lengths[9]), int(lengths[10]), int(lengths[11])

	nChars := 0
	if ec >= bc {
		nChars = ec - bc + 1
	}
	expected := 6 + lh + nChars + nw + nh + nd + ni + nl + nk + ne + np
	if lf != expected {
		return nil, mexerr.IO(mexerr.Location{}, nil, "TFM length mismatch: header says %d words, sub-tables sum to %d", lf, expected)
	}

	header := make([]uint32, lh)
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM header")
	}
	f := &Font{firstChar: bc, lastChar: ec}
	if len(header) > 0 {
		f.Checksum = header[0]
	}
	if len(header) > 1 {
		f.DesignSize = fixWord(header[1]).toPt()
	}

	rawCharInfo := make([]uint32, nChars)
	if err := binary.Read(r, binary.BigEndian, &rawCharInfo); err != nil {
		return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM char-info table")
	}
	f.charInfo = make([]charInfoWord, nChars)
	for i, w := range rawCharInfo {
		f.charInfo[i] = decodeCharInfo(w)
	}

	readFixWords := func(n int) ([]fixWord, error) {
		raw := make([]int32, n)
		if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM fix-word table")
		}
		out := make([]fixWord, n)
		for i, v := range raw {
			out[i] = fixWord(v)
		}
		return out, nil
	}

	var err error
	if f.width, err = readFixWords(nw); err != nil {
		return nil, err
	}
	if f.height, err = readFixWords(nh); err != nil {
		return nil, err
	}
	if f.depth, err = readFixWords(nd); err != nil {
		return nil, err
	}
	if f.italic, err = readFixWords(ni); err != nil {
		return nil, err
	}

	rawLigKern := make([]uint32, nl)
	if err := binary.Read(r, binary.BigEndian, &rawLigKern); err != nil {
		return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM lig/kern program")
	}
	f.ligKern = make([]ligKernStep, nl)
	for i, w := range rawLigKern {
		f.ligKern[i] = ligKernStep{
			skip:      byte(w >> 24),
			nextChar:  byte(w >> 16),
			op:        byte(w >> 8),
			remainder: byte(w),
		}
	}

	if f.kern, err = readFixWords(nk); err != nil {
		return nil, err
	}

	// Extensible recipes (ne entries) aren't consulted by this module's
	// layout core (no \accent/extensible-rule support), so they're
	// skipped rather than stored.
	if ne > 0 {
		skip := make([]uint32, ne)
		if err := binary.Read(r, binary.BigEndian, &skip); err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading TFM extensible-recipe table")
		}
	}

	params, err := readFixWords(np)
	if err != nil {
		return nil, err
	}
	get := func(i int) fixWord {
		if i < len(params) {
			return params[i]
		}
		return 0
	}
	f.Params = Params{
		Slant:      get(0).toPt(),
		Space:      get(1).toDimen(f.DesignSize),
		Stretch:    get(2).toDimen(f.DesignSize),
		Shrink:     get(3).toDimen(f.DesignSize),
		XHeight:    get(4).toDimen(f.DesignSize),
		Quad:       get(5).toDimen(f.DesignSize),
		ExtraSpace: get(6).toDimen(f.DesignSize),
	}

	return f, nil
}

func (f *Font) info(ch rune) (charInfoWord, bool) {
	i := int(ch) - f.firstChar
	if i < 0 || i >= len(f.charInfo) {
		return charInfoWord{}, false
	}
	ci := f.charInfo[i]
	if ci.widthIndex == 0 {
		return charInfoWord{}, false // width index 0 means "character does not exist"
	}
	return ci, true
}

// CharDims implements box.FontMetrics.
func (f *Font) CharDims(ch rune) (width, height, depth value.Dimen) {
	ci, ok := f.info(ch)
	if !ok {
		return value.Zero, value.Zero, value.Zero
	}
	return dimAt(f.width, ci.widthIndex, f.DesignSize),
		dimAt(f.height, ci.heightIndex, f.DesignSize),
		dimAt(f.depth, ci.depthIndex, f.DesignSize)
}

// Italic returns a character's italic correction.
func (f *Font) Italic(ch rune) value.Dimen {
	ci, ok := f.info(ch)
	if !ok {
		return value.Zero
	}
	return dimAt(f.italic, ci.italicIndex, f.DesignSize)
}

func dimAt(table []fixWord, index byte, designSize float64) value.Dimen {
	if int(index) >= len(table) {
		return value.Zero
	}
	return table[index].toDimen(designSize)
}

// ligKernStart returns the lig/kern program index to begin scanning at
// for ch, if it has one (tag == tagLig).
func (f *Font) ligKernStart(ch rune) (int, bool) {
	ci, ok := f.info(ch)
	if !ok || ci.tag != tagLig {
		return 0, false
	}
	start := int(ci.remainder)
	if len(f.ligKern) > 0 && f.ligKern[0].skip > 128 {
		start = 256*int(f.ligKern[0].op) + int(f.ligKern[0].remainder)
	}
	return start, true
}

// scan walks prev's lig/kern program looking for an instruction keyed on
// next, per spec.md §4.7: each step either kerns, produces a ligature,
// or (skip>128) is the final step of the program.
func (f *Font) scan(prev, next rune) (ligKernStep, bool) {
	i, ok := f.ligKernStart(prev)
	if !ok {
		return ligKernStep{}, false
	}
	for i < len(f.ligKern) {
		step := f.ligKern[i]
		if step.skip > 128 {
			return ligKernStep{}, false
		}
		if byte(next) == step.nextChar {
			return step, true
		}
		if step.skip >= 128 {
			return ligKernStep{}, false
		}
		i += int(step.skip) + 1
	}
	return ligKernStep{}, false
}

// KernFor implements box.FontMetrics: op >= 128 in the matched step
// means a kern (the standard encoding; every other op byte is a
// ligature instruction, handled by LigatureFor instead).
func (f *Font) KernFor(prev, next rune) (value.Dimen, bool) {
	step, ok := f.scan(prev, next)
	if !ok || step.op < 128 {
		return value.Zero, false
	}
	idx := 256*(int(step.op)-128) + int(step.remainder)
	if idx >= len(f.kern) {
		return value.Zero, false
	}
	return f.kern[idx].toDimen(f.DesignSize), true
}

// LigatureFor implements box.FontMetrics. Only the plain "=:" ligature
// (op byte 0: replace both characters with a single one) is
// implemented; the boundary-character and repeat-original-character
// variants (op bytes 1-3, 5-7, 9-11...) are rarer combinations this
// module's test fonts don't exercise, so they're reported as "no
// ligature" rather than guessed at.
func (f *Font) LigatureFor(prev, next rune) (rune, bool) {
	step, ok := f.scan(prev, next)
	if !ok || step.op >= 128 || step.op != 0 {
		return 0, false
	}
	return rune(step.remainder), true
}
