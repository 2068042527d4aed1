// Package protocol encodes GE35 colour-effects LED frames.
//
// Each LED on a strand listens for a 26 bit frame carrying its address, an
// intensity and a 4 bit per channel colour. On the wire every logical bit is
// three tribits long:
//
//	start  H
//	1      L L H
//	0      L H H
//	idle   L
//
// giving FrameSize tribits per frame, followed by a quiet period before the
// next frame may start.
package protocol

import (
	"errors"
	"strings"
)

const (
	// FrameBits is the number of logical bits in one LED frame.
	FrameBits = 26
	// FrameSize is the number of tribits in one physical frame: start bit,
	// 26 data bits of three tribits each, and the trailing idle tribit.
	FrameSize = 2 + FrameBits*3

	// BroadcastAddress is passed as the index for brightness-only frames.
	// Only the low 6 bits (0x3F) reach the wire.
	BroadcastAddress uint8 = 0xFF

	// MaxStrandLen is the electrical limit of LEDs per strand.
	MaxStrandLen = 62

	// MaxIntensity is the default global intensity. A full 0xFF has been
	// seen to glitch some bulbs.
	MaxIntensity uint8 = 0xF2
)

const (
	addrBits      = 6
	intensityBits = 8
	nibbleBits    = 4
)

// ErrMalformed is returned by Decode when a waveform is not a valid frame.
var ErrMalformed = errors.New("protocol: malformed physical frame")

// Frame is a 26 bit logical frame. Bit 25 is transmitted first.
type Frame uint32

// Fields is the decoded content of a Frame. Colours are the 4 bit nibbles
// actually carried on the wire.
type Fields struct {
	Address   uint8
	Intensity uint8
	Blue      uint8
	Green     uint8
	Red       uint8
}

// Encode packs one LED update. Colour channels keep their top nibble only and
// index wraps to 6 bits; both are properties of the protocol.
func Encode(index, r, g, b, intensity uint8) Frame {
	var f uint32
	f = uint32(index & 0x3f)
	f = f<<intensityBits | uint32(intensity)
	f = f<<nibbleBits | uint32(b>>4)
	f = f<<nibbleBits | uint32(g>>4)
	f = f<<nibbleBits | uint32(r>>4)
	return Frame(f)
}

// Bit returns logical bit i in wire order (0 is sent first).
func (f Frame) Bit(i int) uint8 {
	return uint8(f>>(FrameBits-1-i)) & 1
}

// Bits returns the frame one bit per byte, in wire order.
func (f Frame) Bits() [FrameBits]uint8 {
	var out [FrameBits]uint8
	for i := range out {
		out[i] = f.Bit(i)
	}
	return out
}

// Fields splits the frame back into its fields.
func (f Frame) Fields() Fields {
	return Fields{
		Address:   uint8(f>>20) & 0x3f,
		Intensity: uint8(f >> 12),
		Blue:      uint8(f>>8) & 0xf,
		Green:     uint8(f>>4) & 0xf,
		Red:       uint8(f) & 0xf,
	}
}

// String renders the frame as its 26 bit pattern with the fields separated,
// e.g. "000101 10000000 0001 1000 1111".
func (f Frame) String() string {
	var sb strings.Builder
	for i := 0; i < FrameBits; i++ {
		switch i {
		case addrBits, addrBits + intensityBits,
			addrBits + intensityBits + nibbleBits,
			addrBits + intensityBits + 2*nibbleBits:
			sb.WriteByte(' ')
		}
		sb.WriteByte('0' + f.Bit(i))
	}
	return sb.String()
}

// Phase returns the three tribit levels for a logical bit.
func Phase(bit uint8) [3]bool {
	if bit != 0 {
		return [3]bool{false, false, true}
	}
	return [3]bool{false, true, true}
}

// Expand returns the line level for each of the FrameSize tribits of f.
func Expand(f Frame) [FrameSize]bool {
	var out [FrameSize]bool
	out[0] = true
	for i := 0; i < FrameBits; i++ {
		p := Phase(f.Bit(i))
		copy(out[1+i*3:], p[:])
	}
	out[FrameSize-1] = false
	return out
}

// Decode is the inverse of Expand.
func Decode(levels []bool) (Frame, error) {
	if len(levels) != FrameSize || !levels[0] || levels[FrameSize-1] {
		return 0, ErrMalformed
	}
	var f uint32
	for i := 0; i < FrameBits; i++ {
		t := levels[1+i*3 : 4+i*3]
		if t[0] || !t[2] {
			return 0, ErrMalformed
		}
		f <<= 1
		if !t[1] {
			f |= 1
		}
	}
	return Frame(f), nil
}
