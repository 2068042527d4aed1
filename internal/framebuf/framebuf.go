// Package framebuf holds port output buffers: one FrameSize-long run of port
// words per port group, shared by every strand wired to that port. Each
// strand owns one bit of every word.
package framebuf

import (
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
)

// Buffer is the physical frame of one port group.
type Buffer struct {
	Port   port.ID
	Slices [protocol.FrameSize]port.Word
	// Driven accumulates the pins expanded since the last Reset.
	Driven port.Word
}

// Set is every port buffer needed to clock out one frame time.
type Set struct {
	ports   *port.Map
	Buffers []Buffer
	// Seq tags the composition, for ordering checks.
	Seq uint64
	// Strands counts expansions since the last Reset.
	Strands int
}

// NewSet allocates one buffer per group of m.
func NewSet(m *port.Map) *Set {
	s := &Set{ports: m, Buffers: make([]Buffer, m.Len())}
	for i := range s.Buffers {
		s.Buffers[i].Port = port.ID(i)
	}
	return s
}

// Reset clears every slice and driven mask.
func (s *Set) Reset() {
	for i := range s.Buffers {
		b := &s.Buffers[i]
		b.Slices = [protocol.FrameSize]port.Word{}
		b.Driven = 0
	}
	s.Strands = 0
}

// Empty reports whether nothing has been expanded since Reset.
func (s *Set) Empty() bool {
	for i := range s.Buffers {
		if s.Buffers[i].Driven != 0 {
			return false
		}
	}
	return true
}

// Expand writes the physical frame for f onto pin's bit of its port
// buffer. Bits of other pins are untouched.
func (s *Set) Expand(pin uint8, f protocol.Frame) error {
	id, mask, err := s.ports.Lookup(pin)
	if err != nil {
		return err
	}
	b := &s.Buffers[id]
	b.Driven |= mask

	slice := b.Slices[:]
	slice[0] |= mask // start
	i := 1
	for n := 0; n < protocol.FrameBits; n++ {
		if f.Bit(n) != 0 { // L L H
			slice[i] &^= mask
			slice[i+1] &^= mask
			slice[i+2] |= mask
		} else { // L H H
			slice[i] &^= mask
			slice[i+1] |= mask
			slice[i+2] |= mask
		}
		i += 3
	}
	slice[i] &^= mask // idle
	s.Strands++
	return nil
}

// Levels extracts pin's waveform from the set.
func (s *Set) Levels(pin uint8) ([protocol.FrameSize]bool, error) {
	var out [protocol.FrameSize]bool
	id, mask, err := s.ports.Lookup(pin)
	if err != nil {
		return out, err
	}
	for i, w := range s.Buffers[id].Slices {
		out[i] = w&mask != 0
	}
	return out, nil
}

// WriteSlice pushes slice i of every driven port to w.
func (s *Set) WriteSlice(w port.Writer, i int) error {
	for n := range s.Buffers {
		b := &s.Buffers[n]
		if b.Driven == 0 {
			continue
		}
		if err := w.WriteMaskedBits(b.Port, b.Driven, b.Slices[i]); err != nil {
			return err
		}
	}
	return nil
}
