// Package layout describes an installation: the source image and the
// strands that sample it, one LED at a time.
//
// The display is usually not rectangular and there is no correlation between
// image row/column and strand/LED. The same pixel may feed several LEDs.
package layout

import "github.com/nsfw/kelp/internal/port"

// Point is a source pixel coordinate.
type Point struct{ X, Y uint8 }

// Strand is one data line: Len LEDs on Pin, LED i showing pixel (X[i], Y[i]).
type Strand struct {
	Len uint8   `yaml:"len"`
	Pin uint8   `yaml:"pin"`
	X   []uint8 `yaml:"x,flow"`
	Y   []uint8 `yaml:"y,flow"`
}

// NewStrand builds a strand from consecutive runs of pixels.
func NewStrand(pin uint8, runs ...[]Point) Strand {
	s := Strand{Pin: pin}
	for _, r := range runs {
		for _, p := range r {
			s.X = append(s.X, p.X)
			s.Y = append(s.Y, p.Y)
		}
	}
	s.Len = uint8(len(s.X))
	return s
}

// Source returns the pixel coordinate of LED i.
func (s Strand) Source(i int) (x, y int) {
	return int(s.X[i]), int(s.Y[i])
}

// Installation is a complete wiring table.
type Installation struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// MaxStrandLen is the configured ceiling, at most the electrical 62.
	MaxStrandLen int      `yaml:"max_strand_len"`
	Strands      []Strand `yaml:"strands"`
	// Ports names the compiled-in port profile the pins belong to.
	Ports string `yaml:"ports,omitempty"`
}

// LongestStrand is the number of render passes a full image needs.
func (in *Installation) LongestStrand() int {
	n := 0
	for _, s := range in.Strands {
		if int(s.Len) > n {
			n = int(s.Len)
		}
	}
	return n
}

// Pins lists each strand pin once, in strand order.
func (in *Installation) Pins() []uint8 {
	var seen [256]bool
	var out []uint8
	for _, s := range in.Strands {
		if !seen[s.Pin] {
			seen[s.Pin] = true
			out = append(out, s.Pin)
		}
	}
	return out
}

// Run returns the pixels from (x0,y0) to (x1,y1) inclusive along one row or
// column, in either direction.
func Run(x0, y0, x1, y1 int) []Point {
	dx, dy := step(x0, x1), step(y0, y1)
	if dx != 0 && dy != 0 {
		panic("layout: run must be horizontal or vertical")
	}
	var out []Point
	x, y := x0, y0
	for {
		out = append(out, Point{uint8(x), uint8(y)})
		if x == x1 && y == y1 {
			return out
		}
		x, y = x+dx, y+dy
	}
}

func step(a, b int) int {
	switch {
	case b > a:
		return 1
	case b < a:
		return -1
	}
	return 0
}

// PortMap builds the port map for the installation's profile.
func (in *Installation) PortMap() (*port.Map, error) {
	groups, ok := port.Profile(in.Ports)
	if !ok {
		return nil, &FaultError{Faults: []Fault{{Kind: FaultPorts, Strand: -1, LED: -1, Detail: "unknown port profile " + in.Ports}}}
	}
	return port.NewMap(groups...)
}
