package protocol

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bits(s string) []uint8 {
	out := make([]uint8, 0, len(s))
	for _, c := range s {
		switch c {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		}
	}
	return out
}

func TestEncodeSingleLED(t *testing.T) {
	f := Encode(5, 0xF0, 0x80, 0x10, 0x80)
	got := f.Bits()
	want := bits("000101" + "10000000" + "0001" + "1000" + "1111")
	require.Len(t, want, FrameBits)
	assert.Equal(t, want, got[:])
	assert.Equal(t, "000101 10000000 0001 1000 1111", f.String())
	assert.Equal(t, Fields{Address: 5, Intensity: 0x80, Blue: 1, Green: 8, Red: 0xF}, f.Fields())
}

func TestEncodeFields(t *testing.T) {
	cases := []struct {
		name             string
		index, r, g, b, i uint8
		want             Fields
	}{
		{"zero", 0, 0, 0, 0, 0, Fields{}},
		{"max address", 61, 0xFF, 0xFF, 0xFF, MaxIntensity, Fields{61, MaxIntensity, 0xF, 0xF, 0xF}},
		{"low nibbles dropped", 1, 0x0F, 0x1F, 0x2F, 0x01, Fields{1, 0x01, 0x2, 0x1, 0x0}},
		{"index wraps", 64 + 7, 0, 0, 0, 0, Fields{Address: 7}},
		{"broadcast", BroadcastAddress, 0x80, 0x80, 0x00, 0x42, Fields{0x3F, 0x42, 0x0, 0x8, 0x8}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Encode(c.index, c.r, c.g, c.b, c.i).Fields())
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(35))
	for n := 0; n < 1000; n++ {
		idx, r, g, b, i := uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))
		a := Encode(idx, r, g, b, i)
		assert.Equal(t, a, Encode(idx, r, g, b, i))
		assert.Less(t, uint32(a), uint32(1)<<FrameBits)
	}
}

func TestExpandLength(t *testing.T) {
	for _, f := range []Frame{0, 1<<FrameBits - 1} {
		levels := Expand(f)
		assert.Len(t, levels, 80)
		assert.True(t, levels[0], "start bit")
		assert.False(t, levels[FrameSize-1], "idle bit")
	}
}

func TestExpandPhases(t *testing.T) {
	ones := Expand(1<<FrameBits - 1)
	zeros := Expand(0)
	for i := 0; i < FrameBits; i++ {
		assert.Equal(t, []bool{false, false, true}, ones[1+i*3:4+i*3], "bit %d of all-ones", i)
		assert.Equal(t, []bool{false, true, true}, zeros[1+i*3:4+i*3], "bit %d of all-zeros", i)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(62))
	for n := 0; n < 20000; n++ {
		f := Frame(rng.Uint32() & (1<<FrameBits - 1))
		levels := Expand(f)
		got, err := Decode(levels[:])
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	good := Expand(Encode(3, 1, 2, 3, 4))

	noStart := good
	noStart[0] = false
	badTriple := good
	badTriple[1] = true
	notIdle := good
	notIdle[FrameSize-1] = true

	for name, levels := range map[string][]bool{
		"short":      good[:FrameSize-1],
		"no start":   noStart[:],
		"bad triple": badTriple[:],
		"not idle":   notIdle[:],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(levels)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
