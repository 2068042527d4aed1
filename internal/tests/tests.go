// Package tests generates diagnostic patterns into the image buffer.
package tests

import "github.com/nsfw/kelp/internal/layout"

type Kind string

const (
	None        Kind = ""
	PixelSweep  Kind = "pixel_sweep"
	RGBTest     Kind = "rgb_channels"
	AddressWalk Kind = "address_walk"
	StrandID    Kind = "strand_id"
)

// Kinds lists the runnable patterns.
func Kinds() []Kind { return []Kind{PixelSweep, RGBTest, AddressWalk, StrandID} }

type Plan struct{ Kind Kind }

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind      { return r.plan.Kind }

var white = layout.RGB{R: 255, G: 255, B: 255}

// palette for StrandID, one colour per strand modulo its length
var palette = []layout.RGB{
	{R: 255}, {G: 255}, {B: 255}, {R: 255, G: 255}, {G: 255, B: 255}, {R: 255, B: 255},
}

// Step draws the next frame of the pattern into img; returns false when
// complete.
func (r *Runner) Step(in *layout.Installation, img *layout.Image) bool {
	img.Fill(layout.RGB{})

	switch r.plan.Kind {
	case PixelSweep:
		idx := r.step
		if idx >= img.Width*img.Height {
			return false
		}
		img.Set(idx%img.Width, idx/img.Width, white)
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		var c layout.RGB
		switch r.step {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		img.Fill(c)
	case AddressWalk:
		// LED n of every strand, so a miswired address shows up as the
		// wrong bulb lighting.
		led := r.step
		if led >= in.LongestStrand() {
			return false
		}
		for _, s := range in.Strands {
			if led < int(s.Len) {
				x, y := s.Source(led)
				img.Set(x, y, white)
			}
		}
	case StrandID:
		if r.step > 0 {
			return false
		}
		for i, s := range in.Strands {
			for led := 0; led < int(s.Len); led++ {
				x, y := s.Source(led)
				img.Set(x, y, palette[i%len(palette)])
			}
		}
	default:
		return false
	}
	r.step++
	return true
}
