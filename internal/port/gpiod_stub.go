//go:build !linux || tinygo

package port

import "fmt"

type Gpiod struct{}

func OpenGpiod(chip string, m *Map, pins []uint8) (*Gpiod, error) {
	return nil, fmt.Errorf("gpiod port not supported on this platform")
}

func (d *Gpiod) WriteMaskedBits(port ID, mask, bits Word) error {
	return fmt.Errorf("gpiod port not supported on this platform")
}

func (d *Gpiod) Close() error { return nil }
