// Package pk implements the PK glyph bitmap decoder (spec.md §4.8):
// packed nibble run-length decoding of one bitmap per character packet,
// preceded by a preamble and interspersed with special/no-op/postamble
// commands.
//
// Grounded on spec.md §4.8's own prose description of the format (no
// pack reader appears anywhere in the retrieval pack). The per-packet
// tfm-width field is kept as its raw 3-byte value; it is not converted
// into a value.Dimen.
package pk

import (
	"bufio"
	"io"

	"github.com/marnanel/mex/internal/mexerr"
)

// Command bytes (spec.md §4.8).
const (
	cmdSpecial1  = 240
	cmdSpecial4  = 243
	cmdNumSpecial = 244
	cmdPostamble  = 245
	cmdNop        = 246
	cmdPre        = 247
)

// Preamble is PK's file header (spec.md §4.8 "font preamble").
type Preamble struct {
	ID          byte
	Comment     string
	DesignSize  uint32 // fix-word, design-size units
	Checksum    uint32
	HPixelsPerPt uint32
	VPixelsPerPt uint32
}

// Glyph is one decoded character bitmap.
type Glyph struct {
	CharCode int
	TFMWidth uint32 // raw 3-byte tfm-width field, design-size fix-word units
	DX, DY   int32  // escapement
	Width, Height int
	HOffset, VOffset int32
	// Bits is a Height x Width grid; Bits[row][col] is true for "black".
	Bits [][]bool
}

// Font is a decoded PK file: a preamble plus every character packet
// read before the postamble.
type Font struct {
	Preamble Preamble
	Glyphs   map[int]*Glyph
}

// Decode reads a full PK file per spec.md §4.8.
func Decode(r io.Reader) (*Font, error) {
	br := bufio.NewReader(r)
	pre, err := readPreamble(br)
	if err != nil {
		return nil, err
	}
	f := &Font{Preamble: pre, Glyphs: map[int]*Glyph{}}

	for {
		flag, err := br.ReadByte()
		if err == io.EOF {
			return f, nil
		}
		if err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading PK command byte")
		}
		switch {
		case flag >= cmdSpecial1 && flag <= cmdSpecial4:
			n := int(flag-cmdSpecial1) + 1
			length, err := readUint(br, n)
			if err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, int64(length)); err != nil {
				return nil, mexerr.IO(mexerr.Location{}, err, "reading PK special payload")
			}
		case flag == cmdNumSpecial:
			if _, err := readUint(br, 4); err != nil {
				return nil, err
			}
		case flag == cmdPostamble:
			return f, nil
		case flag == cmdNop:
			continue
		case flag >= cmdPre:
			return nil, mexerr.IO(mexerr.Location{}, nil, "invalid PK command byte %d mid-stream", flag)
		default:
			g, err := readGlyphPacket(br, flag)
			if err != nil {
				return nil, err
			}
			f.Glyphs[g.CharCode] = g
		}
	}
}

func readPreamble(br *bufio.Reader) (Preamble, error) {
	var pre Preamble
	first, err := br.ReadByte()
	if err != nil {
		return pre, mexerr.IO(mexerr.Location{}, err, "reading PK preamble tag")
	}
	if first != cmdPre {
		return pre, mexerr.IO(mexerr.Location{}, nil, "not a PK file: expected preamble byte 247, got %d", first)
	}
	id, err := br.ReadByte()
	if err != nil {
		return pre, mexerr.IO(mexerr.Location{}, err, "reading PK preamble id")
	}
	if id != 89 {
		return pre, mexerr.IO(mexerr.Location{}, nil, "not a PK file: expected id byte 89, got %d", id)
	}
	pre.ID = id
	commentLen, err := br.ReadByte()
	if err != nil {
		return pre, mexerr.IO(mexerr.Location{}, err, "reading PK comment length")
	}
	comment := make([]byte, commentLen)
	if _, err := io.ReadFull(br, comment); err != nil {
		return pre, mexerr.IO(mexerr.Location{}, err, "reading PK comment")
	}
	pre.Comment = string(comment)

	ds, err := readUint(br, 4)
	if err != nil {
		return pre, err
	}
	pre.DesignSize = ds
	cs, err := readUint(br, 4)
	if err != nil {
		return pre, err
	}
	pre.Checksum = cs
	hp, err := readUint(br, 4)
	if err != nil {
		return pre, err
	}
	pre.HPixelsPerPt = hp
	vp, err := readUint(br, 4)
	if err != nil {
		return pre, err
	}
	pre.VPixelsPerPt = vp
	return pre, nil
}

func readUint(br *bufio.Reader, n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return 0, mexerr.IO(mexerr.Location{}, err, "reading %d-byte PK integer", n)
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// readGlyphPacket reads one character packet given its already-consumed
// flag byte (spec.md §4.8): short (low 3 bits 0-3), extended short
// (4-6), or long (7, not implemented).
func readGlyphPacket(br *bufio.Reader, flag byte) (*Glyph, error) {
	dynF := flag >> 4
	blackFirst := flag&0x08 != 0
	selector := flag & 0x07

	var packetLength uint32
	var charCode int

	switch {
	case selector < 4:
		next, err := br.ReadByte()
		if err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading short PK packet length")
		}
		packetLength = uint32(selector)<<8 | uint32(next)
		cc, err := br.ReadByte()
		if err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading PK character code")
		}
		charCode = int(cc)
	case selector < 7:
		pl, err := readUint(br, 2)
		if err != nil {
			return nil, err
		}
		packetLength = pl
		cc, err := br.ReadByte()
		if err != nil {
			return nil, mexerr.IO(mexerr.Location{}, err, "reading PK character code")
		}
		charCode = int(cc)
	default:
		return nil, mexerr.IO(mexerr.Location{}, nil, "long PK character packets are not implemented")
	}

	lr := io.LimitReader(br, int64(packetLength))
	lbr := bufio.NewReader(lr)

	tfmWidth, err := readUint(lbr, 3)
	if err != nil {
		return nil, err
	}
	dx, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}
	dy, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}
	width, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}
	height, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}
	hoff, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}
	voff, err := readUint(lbr, 2)
	if err != nil {
		return nil, err
	}

	g := &Glyph{
		CharCode: charCode,
		TFMWidth: tfmWidth,
		DX:       int32(dx),
		DY:       int32(dy),
		Width:    int(width),
		Height:   int(height),
		HOffset:  int32(hoff),
		VOffset:  int32(voff),
	}

	bits, err := decodeBitmap(lbr, int(dynF), blackFirst, g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	g.Bits = bits

	// Drain any remaining padding inside the declared packet length so
	// the next ReadByte on br lines up with the following command byte.
	io.Copy(io.Discard, lbr)
	return g, nil
}

// nibbleReader yields 4-bit nibbles from an underlying byte stream, high
// nibble first, per spec.md §4.8's packed run-length encoding.
type nibbleReader struct {
	r       io.ByteReader
	pending byte
	hasLow  bool
}

func (n *nibbleReader) next() (byte, error) {
	if n.hasLow {
		n.hasLow = false
		return n.pending & 0x0F, nil
	}
	b, err := n.r.ReadByte()
	if err != nil {
		return 0, err
	}
	n.pending = b
	n.hasLow = true
	return b >> 4, nil
}

// decodeBitmap implements spec.md §4.8's run-length grammar: a run is
// large (leading zero nibble, then nibbles accumulate until non-zero),
// short (1..dynF), a repeat pair (nibble 14), a single-line repeat
// (nibble 15), or extended (anything else). Runs alternate black/white,
// starting black iff blackFirst; each completed row is emitted repeat+1
// times.
func decodeBitmap(r io.ByteReader, dynF int, blackFirst bool, width, height int) ([][]bool, error) {
	rows := make([][]bool, 0, height)
	nr := &nibbleReader{r: r}

	black := blackFirst
	var row []bool
	repeatCount := 0
	pendingRepeat := 0

	emitRow := func() error {
		if len(rows)+1+pendingRepeat > height {
			return mexerr.IO(mexerr.Location{}, nil, "PK bitmap row overshoot: wanted %d rows, have %d", height, len(rows))
		}
		for i := 0; i <= pendingRepeat; i++ {
			cp := make([]bool, width)
			copy(cp, row)
			rows = append(rows, cp)
		}
		pendingRepeat = 0
		row = row[:0]
		return nil
	}

	readRunLength := func() (int, error) {
		first, err := nr.next()
		if err != nil {
			return 0, mexerr.IO(mexerr.Location{}, err, "reading PK run nibble")
		}
		switch {
		case first == 0:
			// Large run: accumulate zero nibbles, then a sequence of
			// nibbles whose concatenation (big-endian) gives the extra
			// count added to dynF's large-run base.
			var extra []byte
			for {
				nib, err := nr.next()
				if err != nil {
					return 0, mexerr.IO(mexerr.Location{}, err, "reading PK large-run nibble")
				}
				extra = append(extra, nib)
				if nib != 0 {
					break
				}
			}
			n := 0
			for _, nib := range extra {
				n = n<<4 | int(nib)
			}
			return n + 15 - dynF, nil
		case int(first) <= dynF:
			return int(first), nil
		case first == 14:
			// Repeat pair: the following run-length value's row is
			// repeated an extra (count) times once its contents are
			// known.
			count, err := readRunLength()
			if err != nil {
				return 0, err
			}
			repeatCount = count
			return readRunLength()
		case first == 15:
			repeatCount = 1
			return readRunLength()
		default:
			second, err := nr.next()
			if err != nil {
				return 0, mexerr.IO(mexerr.Location{}, err, "reading PK extended-run nibble")
			}
			return (int(first)-dynF-1)<<4 + int(second) + dynF + 1, nil
		}
	}

	for len(rows) < height {
		n, err := readRunLength()
		if err != nil {
			return nil, err
		}
		// A run may span a row boundary; its colour doesn't flip until
		// the whole run is consumed, only once it crosses into a fresh
		// row.
		for n > 0 {
			take := n
			if room := width - len(row); take > room {
				take = room
			}
			for i := 0; i < take; i++ {
				row = append(row, black)
			}
			n -= take
			if len(row) >= width {
				pendingRepeat = repeatCount
				repeatCount = 0
				if err := emitRow(); err != nil {
					return nil, err
				}
			}
		}
		black = !black
	}
	return rows, nil
}
