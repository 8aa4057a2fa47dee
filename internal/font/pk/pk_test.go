package pk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func putUint(buf *bytes.Buffer, v uint32, n int) {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	buf.Write(b)
}

// buildTinyPK constructs a one-glyph PK file: a 1x1 all-black bitmap for
// char code 0, using dynF=1 so a single short run (nibble value 1) fills
// the whole bitmap.
func buildTinyPK(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}

	buf.WriteByte(cmdPre)
	buf.WriteByte(89)
	buf.WriteByte(0) // comment length 0
	putUint(buf, 10<<20, 4) // design size
	putUint(buf, 0, 4)      // checksum
	putUint(buf, 1<<16, 4)  // hppp
	putUint(buf, 1<<16, 4)  // vppp

	const dynF = 1
	const blackFirst = true
	flag := byte(dynF<<4) | 0x08 // selector 0 (short), black-first set

	buf.WriteByte(flag)
	buf.WriteByte(16) // packet length low byte (selector contributes 0 high bits)
	buf.WriteByte(0)  // char code 0

	putUint(buf, 0, 3) // tfm width
	putUint(buf, 0, 2) // dx
	putUint(buf, 0, 2) // dy
	putUint(buf, 1, 2) // width
	putUint(buf, 1, 2) // height
	putUint(buf, 0, 2) // h offset
	putUint(buf, 0, 2) // v offset
	buf.WriteByte(0x10) // one nibble: run length 1 (== dynF), fills the 1x1 bitmap

	buf.WriteByte(cmdPostamble)
	return buf.Bytes()
}

func TestDecodeTinyGlyph(t *testing.T) {
	data := buildTinyPK(t)
	f, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, byte(89), f.Preamble.ID)

	g, ok := f.Glyphs[0]
	require.True(t, ok)
	require.Equal(t, 1, g.Width)
	require.Equal(t, 1, g.Height)
	require.Len(t, g.Bits, 1)
	require.True(t, g.Bits[0][0])
}

func TestDecodeRejectsBadPreambleTag(t *testing.T) {
	data := buildTinyPK(t)
	data[0] = 0 // corrupt the preamble tag
	_, err := Decode(bytes.NewReader(data))
	require.Error(t, err)
}
