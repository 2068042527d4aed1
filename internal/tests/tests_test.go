package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsfw/kelp/internal/layout"
)

func lit(img *layout.Image) int {
	n := 0
	for _, p := range img.Pix {
		if p != (layout.RGB{}) {
			n++
		}
	}
	return n
}

func run(t *testing.T, kind Kind, in *layout.Installation) (steps int, img *layout.Image) {
	t.Helper()
	img = layout.NewImage(in.Width, in.Height)
	r := NewRunner(Plan{Kind: kind})
	for r.Step(in, img) {
		steps++
		require.Less(t, steps, 10000)
	}
	return steps, img
}

func TestPatterns(t *testing.T) {
	in, err := layout.Builtin("kelp")
	require.NoError(t, err)

	steps, img := run(t, PixelSweep, in)
	assert.Equal(t, 32, steps)
	assert.Zero(t, lit(img), "finished pattern leaves the image dark")

	steps, _ = run(t, RGBTest, in)
	assert.Equal(t, 3, steps)

	steps, _ = run(t, AddressWalk, in)
	assert.Equal(t, 35, steps)

	steps, _ = run(t, StrandID, in)
	assert.Equal(t, 1, steps)

	steps, _ = run(t, None, in)
	assert.Zero(t, steps)
}

func TestAddressWalkLightsOneBulbPerStrand(t *testing.T) {
	in, err := layout.Builtin("kelp")
	require.NoError(t, err)
	img := layout.NewImage(in.Width, in.Height)
	r := NewRunner(Plan{Kind: AddressWalk})
	for i := 0; i < 9; i++ {
		require.True(t, r.Step(in, img))
	}
	// LED 8 is the bulb hanging at the bottom fold of each first column.
	assert.Equal(t, 2, lit(img))
	assert.Equal(t, white, img.Pixel(0, 7))
	assert.Equal(t, white, img.Pixel(2, 7))
}

func TestStrandIDColours(t *testing.T) {
	in, err := layout.Builtin("kelp")
	require.NoError(t, err)
	img := layout.NewImage(in.Width, in.Height)
	require.True(t, NewRunner(Plan{Kind: StrandID}).Step(in, img))
	assert.Equal(t, layout.RGB{R: 255}, img.Pixel(1, 4))
	assert.Equal(t, layout.RGB{G: 255}, img.Pixel(3, 4))
}
