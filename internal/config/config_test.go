package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsfw/kelp/internal/port"
)

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
installation: biggie
transport: sync
timing:
  tribit_us: 8
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "biggie", c.Installation)
	assert.Equal(t, "sync", c.Transport)
	assert.Equal(t, 8*time.Microsecond, c.TransportTiming().Tribit)
	assert.Equal(t, 30*time.Microsecond, c.TransportTiming().Quiet, "default kept")
	assert.Equal(t, 250*time.Millisecond, c.StallWarning())
	assert.NoError(t, c.Validate())

	in, m, err := c.ResolveInstallation()
	require.NoError(t, err)
	assert.Equal(t, "biggie", in.Name)
	assert.Equal(t, 8, m.Len())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Ports.Groups = port.ATmega2560()
	c.Mirror = Mirror{Dev: "/dev/spidev0.0", SpeedHz: 2400000, Channels: 3}
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Ports.Backend = "spi"
	c.Transport = "dma"
	c.Timing.TribitUs = 0
	c.Intensity = 300
	c.Installation = "moon"
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, ErrUnknownInstallation)
	for _, field := range []string{"ports.backend", "transport", "timing.tribit_us", "intensity"} {
		assert.Contains(t, err.Error(), field)
	}

	c = Default()
	c.Ports.Backend = "gpiod"
	assert.ErrorIs(t, c.Validate(), ErrInvalid, "gpiod needs a chip")
	c.Ports.Chip = "gpiochip0"
	assert.NoError(t, c.Validate())
}

func TestResolveInlineLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
layout:
  name: bench
  width: 2
  height: 1
  strands:
    - {len: 2, pin: 3, x: [0, 1], y: [0, 0]}
ports:
  groups:
    - {name: bench, first_pin: 0, count: 4}
`), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	in, m, err := c.ResolveInstallation()
	require.NoError(t, err)
	assert.Equal(t, "bench", in.Name)
	id, mask, err := m.Lookup(3)
	require.NoError(t, err)
	assert.Equal(t, port.ID(0), id)
	assert.Equal(t, port.Word(0x8), mask)

	_, _, err = (&Config{Installation: "moon"}).ResolveInstallation()
	assert.ErrorIs(t, err, ErrUnknownInstallation)
}
