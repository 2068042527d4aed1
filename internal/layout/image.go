package layout

import (
	"image"
	"image/color"
)

// RGB is one pixel, 8 bits per channel.
type RGB struct{ R, G, B uint8 }

// Image is the rectangular source buffer strands sample from. It
// implements image.Image so it can be drawn to periph displays.
type Image struct {
	Width, Height int
	Pix           []RGB // row-major
}

// NewImage returns a black w×h image.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]RGB, w*h)}
}

// In reports whether (x, y) lies inside the image.
func (m *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Pixel returns the pixel at (x, y). It panics outside the image; strand
// tables are validated before rendering.
func (m *Image) Pixel(x, y int) RGB { return m.Pix[y*m.Width+x] }

// Set writes one pixel; out of range writes are ignored.
func (m *Image) Set(x, y int, c RGB) {
	if m.In(x, y) {
		m.Pix[y*m.Width+x] = c
	}
}

// Fill sets every pixel to c.
func (m *Image) Fill(c RGB) {
	for i := range m.Pix {
		m.Pix[i] = c
	}
}

// Bytes returns the pixels as packed RGB bytes.
func (m *Image) Bytes() []byte {
	out := make([]byte, 0, len(m.Pix)*3)
	for _, p := range m.Pix {
		out = append(out, p.R, p.G, p.B)
	}
	return out
}

// CopyFrom samples src (from its Min corner) into the image.
func (m *Image) CopyFrom(src image.Image) {
	b := src.Bounds()
	for y := 0; y < m.Height && b.Min.Y+y < b.Max.Y; y++ {
		for x := 0; x < m.Width && b.Min.X+x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			m.Pix[y*m.Width+x] = RGB{c.R, c.G, c.B}
		}
	}
}

func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color {
	if !m.In(x, y) {
		return color.NRGBA{}
	}
	p := m.Pixel(x, y)
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: 255}
}
