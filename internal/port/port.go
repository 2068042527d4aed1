// Package port maps output pins onto hardware port groups and writes
// masked port words to them.
package port

import (
	"errors"
	"fmt"
	"sort"
)

// Word is one port-width sample. A group has at most 32 pins.
type Word uint32

// ID identifies a port group within a Map.
type ID int

// ErrInvalidPin is returned for a pin that belongs to no port group.
var ErrInvalidPin = errors.New("port: pin not in any port group")

// Writer drives physical port groups. Only bits set in mask change; every
// other pin of the port keeps its level.
type Writer interface {
	WriteMaskedBits(port ID, mask, bits Word) error
}

// Group is a contiguous range of pins wired to one hardware port.
type Group struct {
	Name     string `yaml:"name"`
	FirstPin uint8  `yaml:"first_pin"`
	Count    uint8  `yaml:"count"`
	// Reversed puts FirstPin on the most significant bit.
	Reversed bool `yaml:"reversed,omitempty"`
}

func (g Group) contains(pin uint8) bool {
	return pin >= g.FirstPin && int(pin) < int(g.FirstPin)+int(g.Count)
}

func (g Group) mask(pin uint8) Word {
	off := pin - g.FirstPin
	if g.Reversed {
		return 1 << (g.Count - 1 - off)
	}
	return 1 << off
}

// Pins lists the group's pins in bit order, least significant first.
func (g Group) Pins() []uint8 {
	out := make([]uint8, g.Count)
	for i := range out {
		if g.Reversed {
			out[i] = g.FirstPin + g.Count - 1 - uint8(i)
		} else {
			out[i] = g.FirstPin + uint8(i)
		}
	}
	return out
}

// Map is a static pin lookup over a set of disjoint groups.
type Map struct {
	groups []Group
}

// NewMap validates groups and builds a Map. A group's ID is its index.
func NewMap(groups ...Group) (*Map, error) {
	if len(groups) == 0 {
		return nil, errors.New("port: no port groups")
	}
	idx := make([]int, len(groups))
	for i, g := range groups {
		if g.Count == 0 || g.Count > 32 {
			return nil, fmt.Errorf("port: group %q has %d pins, want 1..32", g.Name, g.Count)
		}
		if int(g.FirstPin)+int(g.Count) > 256 {
			return nil, fmt.Errorf("port: group %q runs past pin 255", g.Name)
		}
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return groups[idx[a]].FirstPin < groups[idx[b]].FirstPin })
	for i := 1; i < len(idx); i++ {
		prev, cur := groups[idx[i-1]], groups[idx[i]]
		if int(prev.FirstPin)+int(prev.Count) > int(cur.FirstPin) {
			return nil, fmt.Errorf("port: groups %q and %q overlap", prev.Name, cur.Name)
		}
	}
	return &Map{groups: append([]Group(nil), groups...)}, nil
}

// MustMap is NewMap for compiled-in profiles.
func MustMap(groups ...Group) *Map {
	m, err := NewMap(groups...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the port and bit mask that drive pin.
func (m *Map) Lookup(pin uint8) (ID, Word, error) {
	for i, g := range m.groups {
		if g.contains(pin) {
			return ID(i), g.mask(pin), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrInvalidPin, pin)
}

// Driven folds pins into one mask per group. Hardware backends claim only
// these bits.
func (m *Map) Driven(pins []uint8) ([]Word, error) {
	out := make([]Word, len(m.groups))
	for _, pin := range pins {
		id, mask, err := m.Lookup(pin)
		if err != nil {
			return nil, err
		}
		out[id] |= mask
	}
	return out, nil
}

// Len is the number of port groups.
func (m *Map) Len() int { return len(m.groups) }

// Group returns the group for id.
func (m *Map) Group(id ID) Group { return m.groups[id] }

// Groups returns a copy of all groups in ID order.
func (m *Map) Groups() []Group { return append([]Group(nil), m.groups...) }

// ATmega2560 is the Arduino Mega layout: PORTA on digital pins 22-29 with
// pin 22 on bit 0, PORTC on pins 30-37 with pin 30 on bit 7.
func ATmega2560() []Group {
	return []Group{
		{Name: "PORTA", FirstPin: 22, Count: 8},
		{Name: "PORTC", FirstPin: 30, Count: 8, Reversed: true},
	}
}

// Linear groups pins 0-255 into eight 32 bit words by pin number. It suits
// backends without port registers, where the grouping only batches writes.
func Linear() []Group {
	out := make([]Group, 8)
	for i := range out {
		out[i] = Group{Name: fmt.Sprintf("P%d", i), FirstPin: uint8(i * 32), Count: 32}
	}
	return out
}

// Profile returns a compiled-in group layout by name.
func Profile(name string) ([]Group, bool) {
	switch name {
	case "atmega2560", "":
		return ATmega2560(), true
	case "linear":
		return Linear(), true
	}
	return nil, false
}
