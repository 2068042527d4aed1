package layout

import (
	"fmt"
	"sort"
)

var builtin = map[string]func() *Installation{
	"test":   testMap,
	"kelp":   kelpMap,
	"biggie": biggieMap,
}

// Names lists the compiled-in installations.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Builtin returns a fresh copy of a compiled-in installation.
func Builtin(name string) (*Installation, error) {
	fn, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("layout: unknown installation %q", name)
	}
	return fn(), nil
}

// testMap is one 35 bulb strand on pin 22 sampling a 1x35 column.
func testMap() *Installation {
	return &Installation{
		Name:         "test",
		Width:        1,
		Height:       35,
		MaxStrandLen: 35,
		Ports:        "atmega2560",
		Strands:      []Strand{NewStrand(22, Run(0, 0, 0, 34))},
	}
}

// kelpPanel is one KELP strand: two columns of the 4x8 image, each walked
// down and back up, with a bulb hanging at each fold and a spare bulb
// between the columns.
//
//	| a0  .. a7  -+
//	|             a7.5 (down)
//	| a15 .. a8  -+
//	a15.5 (spare)
//	| a16 .. a23 -+
//	|             a23.5 (down)
//	| a31 .. a24 -+
func kelpPanel(pin uint8, x int) Strand {
	return NewStrand(pin,
		Run(x, 0, x, 7),
		Run(x, 7, x, 7), // down
		Run(x, 7, x, 0),
		Run(x+1, 0, x+1, 0), // spare
		Run(x+1, 0, x+1, 7),
		Run(x+1, 7, x+1, 7), // down
		Run(x+1, 7, x+1, 0),
	)
}

func kelpMap() *Installation {
	return &Installation{
		Name:         "kelp",
		Width:        4,
		Height:       8,
		MaxStrandLen: 35,
		Ports:        "atmega2560",
		Strands: []Strand{
			kelpPanel(22, 0),
			kelpPanel(23, 2),
		},
	}
}

// biggieRow is a 39 bulb run across the front of the vehicle (9 + 15 + 15).
func biggieRow(pin uint8, y int) Strand {
	return NewStrand(pin, Run(0, y, 38, y))
}

// biggieMap is 4 rows, a gap, and 4 rows, top down, on a 53x8 image. The
// 14 bulb slide-out columns (x 39..52) are not wired.
func biggieMap() *Installation {
	pins := []uint8{78, 82, 8, 70, 2, 31, 18, 30}
	in := &Installation{
		Name:         "biggie",
		Width:        53,
		Height:       8,
		MaxStrandLen: 56,
		Ports:        "linear",
	}
	for y, p := range pins {
		in.Strands = append(in.Strands, biggieRow(p, y))
	}
	return in
}
