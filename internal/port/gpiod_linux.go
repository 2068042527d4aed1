//go:build linux && !tinygo

package port

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/gpiod"
)

// Gpiod drives port groups through the Linux GPIO character device. Each
// group's driven pins are one line request so a whole port word is set with
// one ioctl.
type Gpiod struct {
	mu    sync.Mutex
	lines []*gpiod.Lines // nil for groups with no driven pin
	bits  [][]int        // [port][line] -> bit
	vals  [][]int
}

// OpenGpiod requests the given pins as outputs on chip (e.g. "gpiochip0"),
// using the pin number as the line offset. All lines start low.
func OpenGpiod(chip string, m *Map, pins []uint8) (*Gpiod, error) {
	driven, err := m.Driven(pins)
	if err != nil {
		return nil, err
	}
	d := &Gpiod{
		lines: make([]*gpiod.Lines, m.Len()),
		bits:  make([][]int, m.Len()),
		vals:  make([][]int, m.Len()),
	}
	for id, g := range m.Groups() {
		var offsets []int
		for bit, pin := range g.Pins() {
			if driven[id]&(Word(1)<<bit) == 0 {
				continue
			}
			offsets = append(offsets, int(pin))
			d.bits[id] = append(d.bits[id], bit)
		}
		if len(offsets) == 0 {
			continue
		}
		l, err := gpiod.RequestLines(chip, offsets, gpiod.AsOutput(make([]int, len(offsets))...), gpiod.WithConsumer("kelp"))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("port: request %s lines on %s: %w", g.Name, chip, err), d.Close())
		}
		d.lines[id] = l
		d.vals[id] = make([]int, len(offsets))
	}
	return d, nil
}

// WriteMaskedBits sets the masked bits of port. Bits without a requested
// line are ignored.
func (d *Gpiod) WriteMaskedBits(port ID, mask, bits Word) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(port) >= len(d.lines) {
		return fmt.Errorf("port: no gpiod port %d", port)
	}
	if d.lines[port] == nil {
		return nil
	}
	vals := d.vals[port]
	for i, bit := range d.bits[port] {
		m := Word(1) << bit
		if mask&m == 0 {
			continue
		}
		if bits&m != 0 {
			vals[i] = 1
		} else {
			vals[i] = 0
		}
	}
	return d.lines[port].SetValues(vals)
}

// Close releases all line requests.
func (d *Gpiod) Close() error {
	var errs []error
	for _, l := range d.lines {
		if l != nil {
			errs = append(errs, l.Close())
		}
	}
	d.lines = nil
	return errors.Join(errs...)
}
