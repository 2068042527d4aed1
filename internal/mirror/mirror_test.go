package mirror

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/devices/v3/nrzled"

	"github.com/nsfw/kelp/internal/layout"
)

func TestStripFollowsStrands(t *testing.T) {
	in, err := layout.Builtin("kelp")
	require.NoError(t, err)
	assert.Equal(t, 70, Len(in))

	img := layout.NewImage(in.Width, in.Height)
	img.Set(0, 7, layout.RGB{R: 10})
	img.Set(2, 0, layout.RGB{B: 20})

	m := New(in, nil)
	s := m.Strip(img)
	require.Equal(t, 70, s.Width)
	assert.Equal(t, layout.RGB{R: 10}, s.Pixel(7, 0))
	assert.Equal(t, layout.RGB{R: 10}, s.Pixel(8, 0), "fold bulb samples the same pixel")
	assert.Equal(t, layout.RGB{B: 20}, s.Pixel(35, 0), "second strand starts after the first")
}

func TestShowDrawsOnNRZ(t *testing.T) {
	in, err := layout.Builtin("test")
	require.NoError(t, err)

	buf := bytes.Buffer{}
	d, err := nrzled.NewSPI(spitest.NewRecordRaw(&buf), &nrzled.Opts{NumPixels: Len(in), Channels: 3, Freq: 2500 * physic.KiloHertz})
	require.NoError(t, err)
	m := New(in, d)

	img := layout.NewImage(in.Width, in.Height)
	require.NoError(t, m.Show(img))
	dark := append([]byte(nil), buf.Bytes()...)
	require.NotEmpty(t, dark)

	buf.Reset()
	img.Fill(layout.RGB{R: 255, G: 128, B: 1})
	require.NoError(t, m.Show(img))
	assert.Len(t, buf.Bytes(), len(dark))
	assert.NotEqual(t, dark, buf.Bytes())

	buf.Reset()
	require.NoError(t, m.Close())
	assert.Len(t, buf.Bytes(), len(dark), "halt rewrites the whole strip")
}
