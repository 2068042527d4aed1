//go:build tinygo

package port

import "machine"

// Machine drives port groups from a TinyGo board's pins.
type Machine struct {
	pins [][]machine.Pin
}

// OpenMachine configures every group pin as an output, low. Pin numbers are
// taken as machine.Pin values.
func OpenMachine(m *Map) *Machine {
	d := &Machine{pins: make([][]machine.Pin, m.Len())}
	for id, g := range m.Groups() {
		for _, p := range g.Pins() {
			pin := machine.Pin(p)
			pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
			pin.Low()
			d.pins[id] = append(d.pins[id], pin)
		}
	}
	return d
}

func (d *Machine) WriteMaskedBits(port ID, mask, bits Word) error {
	for bit, pin := range d.pins[port] {
		m := Word(1) << bit
		if mask&m != 0 {
			pin.Set(bits&m != 0)
		}
	}
	return nil
}
