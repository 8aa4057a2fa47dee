package tfm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildMinimalTFM constructs a one-character TFM file (char 65 = 'A')
// with a two-entry width/height/depth table (index 0 is the reserved
// zero entry) and no lig/kern or extensible data, mirroring the layout
// Parse expects.
func buildMinimalTFM(t *testing.T) []byte {
	t.Helper()
	const (
		bc, ec = 65, 65
		nw, nh, nd, ni = 2, 2, 2, 1
		nl, nk, ne = 0, 0, 0
		np         = 7
		lh         = 2
	)
	nChars := ec - bc + 1
	lf := 6 + lh + nChars + nw + nh + nd + ni + nl + nk + ne + np

	buf := &bytes.Buffer{}
	lengths := [12]uint16{uint16(lf), lh, bc, ec, nw, nh, nd, ni, nl, nk, ne, np}
	require.NoError(t, binary.Write(buf, binary.BigEndian, lengths))

	// header: checksum, design size (10pt)
	require.NoError(t, binary.Write(buf, binary.BigEndian, []uint32{0, 10 << 20}))

	// char info for 'A': width/height/depth index 1, no italic, no tag.
	charInfo := uint32(1)<<24 | uint32(1)<<20 | uint32(1)<<16
	require.NoError(t, binary.Write(buf, binary.BigEndian, []uint32{charInfo}))

	require.NoError(t, binary.Write(buf, binary.BigEndian, []int32{0, int32(0.5 * (1 << 20))})) // width
	require.NoError(t, binary.Write(buf, binary.BigEndian, []int32{0, int32(0.7 * (1 << 20))})) // height
	require.NoError(t, binary.Write(buf, binary.BigEndian, []int32{0, int32(0.1 * (1 << 20))})) // depth
	require.NoError(t, binary.Write(buf, binary.BigEndian, []int32{0}))                         // italic

	// no lig/kern, no kern, no extensible entries

	params := make([]int32, np)
	params[1] = int32(0.25 * (1 << 20)) // space
	require.NoError(t, binary.Write(buf, binary.BigEndian, params))

	return buf.Bytes()
}

func TestParseRoundTrip(t *testing.T) {
	data := buildMinimalTFM(t)
	f, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 10.0, f.DesignSize)
	require.Len(t, f.width, 2)

	w, h, d := f.CharDims('A')
	require.InDelta(t, 5.0, w.Pt(), 0.001)
	require.InDelta(t, 7.0, h.Pt(), 0.001)
	require.InDelta(t, 1.0, d.Pt(), 0.001)
	require.InDelta(t, 2.5, f.Params.Space.Pt(), 0.001)
}

func TestParseRejectsLengthMismatch(t *testing.T) {
	data := buildMinimalTFM(t)
	data[0] = 0xFF // corrupt lf's high byte
	_, err := Parse(bytes.NewReader(data))
	require.Error(t, err)
}

func TestCharDimsMissingCharIsZero(t *testing.T) {
	data := buildMinimalTFM(t)
	f, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	w, h, d := f.CharDims('Z')
	require.Equal(t, 0.0, w.Pt())
	require.Equal(t, 0.0, h.Pt())
	require.Equal(t, 0.0, d.Pt())
}

func TestKernForNoLigKernProgram(t *testing.T) {
	data := buildMinimalTFM(t)
	f, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	_, ok := f.KernFor('A', 'A')
	require.False(t, ok)
	_, ok = f.LigatureFor('A', 'A')
	require.False(t, ok)
}
