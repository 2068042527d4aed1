// Package mirror shows what the strands show on a WS281x bench strip: one
// NRZ pixel per GE35 bulb, strands laid end to end.
package mirror

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"

	"github.com/nsfw/kelp/internal/layout"
)

// DefaultFreq is the WS2812B data rate.
const DefaultFreq = 800 * physic.KiloHertz

type Mirror struct {
	inst   *layout.Installation
	drawer display.Drawer
	strip  *layout.Image
	port   spi.PortCloser
}

// Len is the number of bench pixels inst needs.
func Len(inst *layout.Installation) int {
	n := 0
	for _, s := range inst.Strands {
		n += int(s.Len)
	}
	return n
}

// New draws onto an existing drawer, usually an nrzled.Dev.
func New(inst *layout.Installation, drawer display.Drawer) *Mirror {
	return &Mirror{
		inst:   inst,
		drawer: drawer,
		strip:  layout.NewImage(Len(inst), 1),
	}
}

// Open opens an SPI port ("" for the first one) and drives an NRZ strip
// long enough for inst.
func Open(dev string, freq physic.Frequency, channels int, inst *layout.Installation) (*Mirror, error) {
	if freq == 0 {
		freq = DefaultFreq
	}
	if channels == 0 {
		channels = 3
	}
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: Len(inst),
		Channels:  channels,
		Freq:      freq,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("mirror: %w", err)
	}
	d.Halt()
	m := New(inst, d)
	m.port = p
	return m, nil
}

// Strip lays out, per bulb, the pixel it samples.
func (m *Mirror) Strip(img *layout.Image) *layout.Image {
	i := 0
	for _, s := range m.inst.Strands {
		for led := 0; led < int(s.Len); led++ {
			m.strip.Pix[i] = img.Pixel(s.Source(led))
			i++
		}
	}
	return m.strip
}

// Show pushes img to the bench strip.
func (m *Mirror) Show(img *layout.Image) error {
	return m.drawer.Draw(m.drawer.Bounds(), m.Strip(img), image.Point{})
}

// Close blanks the strip and releases the port.
func (m *Mirror) Close() error {
	err := m.drawer.Halt()
	if m.port != nil {
		if cerr := m.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
