package port

import (
	"errors"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIO drives port groups through periph.io pins, one gpio.PinIO per bit.
// It is far slower than a register write but lets a Linux board drive
// strands without a microcontroller.
type GPIO struct {
	pins [][]gpio.PinIO // [port][bit]
}

// NewGPIO wraps already-resolved pins. pins[port][bit] may be nil for bits
// that are never driven.
func NewGPIO(pins [][]gpio.PinIO) *GPIO {
	return &GPIO{pins: pins}
}

// OpenGPIO resolves the given pins with gpioreg, naming pins by their
// number, and drives them low. Bits of m no pin in pins maps to stay nil and
// are never touched. host.Init must have been called.
func OpenGPIO(m *Map, pins []uint8) (*GPIO, error) {
	driven, err := m.Driven(pins)
	if err != nil {
		return nil, err
	}
	out := make([][]gpio.PinIO, m.Len())
	for id, g := range m.Groups() {
		out[id] = make([]gpio.PinIO, g.Count)
		for bit, pin := range g.Pins() {
			if driven[id]&(Word(1)<<bit) == 0 {
				continue
			}
			p := gpioreg.ByName(strconv.Itoa(int(pin)))
			if p == nil {
				return nil, fmt.Errorf("port: gpio %d (%s bit %d) not found", pin, g.Name, bit)
			}
			if err := p.Out(gpio.Low); err != nil {
				return nil, fmt.Errorf("port: gpio %d: %w", pin, err)
			}
			out[id][bit] = p
		}
	}
	return &GPIO{pins: out}, nil
}

func (d *GPIO) WriteMaskedBits(port ID, mask, bits Word) error {
	if int(port) >= len(d.pins) {
		return fmt.Errorf("port: no gpio port %d", port)
	}
	var errs []error
	for bit, p := range d.pins[port] {
		m := Word(1) << bit
		if mask&m == 0 || p == nil {
			continue
		}
		if err := p.Out(bits&m != 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Halt drives every pin low.
func (d *GPIO) Halt() error {
	var errs []error
	for _, port := range d.pins {
		for _, p := range port {
			if p != nil {
				errs = append(errs, p.Out(gpio.Low))
			}
		}
	}
	return errors.Join(errs...)
}
