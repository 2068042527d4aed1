package layout

import (
	"errors"
	"image"
	"image/color"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsfw/kelp/internal/port"
)

func atmega(t *testing.T) *port.Map {
	t.Helper()
	m, err := port.NewMap(port.ATmega2560()...)
	require.NoError(t, err)
	return m
}

func TestBuiltinsValidate(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			in, err := Builtin(name)
			require.NoError(t, err)
			m, err := in.PortMap()
			require.NoError(t, err)
			assert.NoError(t, Validate(in, m))
		})
	}
	_, err := Builtin("nope")
	assert.Error(t, err)
}

func TestKelpPanelShape(t *testing.T) {
	in, err := Builtin("kelp")
	require.NoError(t, err)
	require.Len(t, in.Strands, 2)
	a := in.Strands[0]
	assert.Equal(t, uint8(35), a.Len)
	assert.Equal(t, 35, in.LongestStrand())

	wantY := []uint8{0, 1, 2, 3, 4, 5, 6, 7, 7, 7, 6, 5, 4, 3, 2, 1, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 7, 7, 6, 5, 4, 3, 2, 1, 0}
	assert.Equal(t, wantY, a.Y)
	x, y := a.Source(17) // spare
	assert.Equal(t, 1, x)
	assert.Equal(t, 0, y)
	x, _ = in.Strands[1].Source(0)
	assert.Equal(t, 2, x)
}

func TestRun(t *testing.T) {
	assert.Equal(t, []Point{{0, 2}, {0, 1}, {0, 0}}, Run(0, 2, 0, 0))
	assert.Equal(t, []Point{{3, 1}}, Run(3, 1, 3, 1))
	assert.Len(t, Run(0, 4, 38, 4), 39)
	assert.Panics(t, func() { Run(0, 0, 1, 1) })
}

func TestValidateFaults(t *testing.T) {
	in := &Installation{
		Width:        2,
		Height:       2,
		MaxStrandLen: 3,
		Strands: []Strand{
			NewStrand(22, Run(0, 0, 0, 1), Run(1, 1, 2, 1)), // 4 leds, one out of bounds
			NewStrand(40, Run(0, 0, 1, 0)),                  // unknown pin
			NewStrand(22, Run(0, 0, 0, 0)),                  // duplicate
			{Len: 2, Pin: 23, X: []uint8{0}, Y: []uint8{0}}, // short coords
		},
	}
	err := Validate(in, atmega(t))
	require.Error(t, err)

	var fe *FaultError
	require.True(t, errors.As(err, &fe))
	kinds := map[FaultKind]int{}
	for _, f := range fe.Faults {
		kinds[f.Kind]++
	}
	assert.Equal(t, map[FaultKind]int{
		FaultStrandLen:    1,
		FaultOutOfBounds:  1,
		FaultInvalidPin:   1,
		FaultDuplicatePin: 1,
		FaultCoords:       1,
	}, kinds)

	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, err, port.ErrInvalidPin)
	assert.ErrorIs(t, err, ErrDuplicatePin)
	assert.ErrorIs(t, err, ErrStrandTooLong)
	assert.Contains(t, err.Error(), "strand 0: led 3: pixel (2,1) outside 2x2 image")
}

func TestValidateEmptyAndCeiling(t *testing.T) {
	err := Validate(&Installation{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTable)

	long := NewStrand(22, Run(0, 0, 0, 62)) // 63 leds
	err = Validate(&Installation{Width: 1, Height: 63, Strands: []Strand{long}}, atmega(t))
	assert.ErrorIs(t, err, ErrStrandTooLong, "electrical ceiling applies without a configured max")
}

func TestUnknownPortProfile(t *testing.T) {
	_, err := (&Installation{Ports: "pic32"}).PortMap()
	assert.ErrorIs(t, err, ErrTable)
}

func TestImage(t *testing.T) {
	m := NewImage(3, 2)
	m.Fill(RGB{1, 2, 3})
	m.Set(2, 1, RGB{R: 255})
	m.Set(5, 5, RGB{G: 255})
	assert.Equal(t, RGB{R: 255}, m.Pixel(2, 1))
	assert.Equal(t, RGB{1, 2, 3}, m.Pixel(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, m.At(2, 1))
	assert.Equal(t, color.NRGBA{}, m.At(-1, 0))
	assert.Len(t, m.Bytes(), 18)

	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(1, 1, color.NRGBA{G: 200, A: 255})
	m.CopyFrom(src)
	assert.Equal(t, RGB{G: 200}, m.Pixel(1, 1))
	assert.Equal(t, RGB{R: 255}, m.Pixel(2, 1), "outside src is kept")
}

func TestInstallationPins(t *testing.T) {
	in, err := Builtin("biggie")
	require.NoError(t, err)
	assert.Equal(t, []uint8{78, 82, 8, 70, 2, 31, 18, 30}, in.Pins())

	m, err := in.PortMap()
	require.NoError(t, err)
	driven, err := m.Driven(in.Pins())
	require.NoError(t, err)
	n := 0
	for _, w := range driven {
		n += bits.OnesCount32(uint32(w))
	}
	assert.Equal(t, 8, n)

	dup := &Installation{Strands: []Strand{
		NewStrand(22, Run(0, 0, 0, 1)),
		NewStrand(22, Run(1, 0, 1, 1)),
		NewStrand(23, Run(2, 0, 2, 1)),
	}}
	assert.Equal(t, []uint8{22, 23}, dup.Pins())
}
