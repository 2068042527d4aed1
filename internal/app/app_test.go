package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsfw/kelp/internal/config"
	diag "github.com/nsfw/kelp/internal/diagnostics"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
	"github.com/nsfw/kelp/internal/tests"
)

type noWait struct{}

func (noWait) Wait(time.Duration) {}

func syncConfig(name string) *config.Config {
	cfg := config.Default()
	cfg.Installation = name
	cfg.Transport = "sync"
	return cfg
}

// decoded returns every frame sent on pin.
func decoded(t *testing.T, sim *port.Sim, m *port.Map, pin uint8) []protocol.Frame {
	t.Helper()
	id, mask, err := m.Lookup(pin)
	require.NoError(t, err)
	wave := port.Waveform(sim.Trace(), id, mask)
	var out []protocol.Frame
	for i := 0; i+protocol.FrameSize <= len(wave); i += protocol.FrameSize {
		f, err := protocol.Decode(wave[i : i+protocol.FrameSize])
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestInitCoreAssignsAddresses(t *testing.T) {
	cfg := syncConfig("kelp")
	cfg.Intensity = 0x40
	m, err := port.NewMap(port.ATmega2560()...)
	require.NoError(t, err)
	sim := port.NewSim(m.Len())
	sim.Record(true)

	c, err := InitCore(context.Background(), cfg, WithWriter(sim), WithWaiter(noWait{}))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "custom", c.Backend)

	for _, pin := range []uint8{22, 23} {
		got := decoded(t, sim, c.Ports, pin)
		require.Len(t, got, 35)
		for i, f := range got {
			assert.Equal(t, protocol.Encode(uint8(i), 128, 0, 255, 0x40), f)
		}
	}
}

func TestInitCoreRejectsBadTable(t *testing.T) {
	cfg := syncConfig("")
	cfg.Layout = &layout.Installation{
		Width: 1, Height: 1,
		Strands: []layout.Strand{layout.NewStrand(99, layout.Run(0, 0, 0, 0))},
	}
	_, err := InitCore(context.Background(), cfg, WithWaiter(noWait{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrInvalidPin)

	cfg = syncConfig("kelp")
	cfg.Transport = "carrier pigeon"
	_, err = InitCore(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestConductorRunsTest(t *testing.T) {
	c, err := InitCore(context.Background(), syncConfig("kelp"), WithWaiter(noWait{}), WithoutInit())
	require.NoError(t, err)
	defer c.Close()

	var diags []diag.Diagnostic
	c.OnDiag(func(d diag.Diagnostic) { diags = append(diags, d) })
	var frames []uint64
	c.OnFrame(func(id uint64, img *layout.Image) { frames = append(frames, id) })

	cond := c.Conductor()
	assert.Error(t, cond.RunTest("nope"))
	require.NoError(t, cond.RunTest(tests.RGBTest))
	assert.Equal(t, tests.RGBTest, cond.Testing())

	require.NoError(t, cond.Step())
	assert.Equal(t, layout.RGB{R: 255}, c.Eng.Snapshot().Pixel(3, 3))
	require.NoError(t, cond.Step())
	require.NoError(t, cond.Step())
	assert.Equal(t, layout.RGB{B: 255}, c.Eng.Snapshot().Pixel(0, 0))
	require.NoError(t, cond.Step())
	assert.Equal(t, tests.None, cond.Testing())

	assert.Equal(t, []uint64{1, 2, 3, 4}, frames)
	require.Len(t, diags, 2)
	assert.Equal(t, "TEST.RUNNING", diags[0].Code)
	assert.Equal(t, "TEST.DONE", diags[1].Code)
}

func TestConductorRunStops(t *testing.T) {
	c, err := InitCore(context.Background(), syncConfig("test"), WithWaiter(noWait{}), WithoutInit())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Conductor().Run(ctx, 200) }()
	require.Eventually(t, func() bool { return c.Conductor().FrameID() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

// closingWriter fails every write and every close.
type closingWriter struct {
	writeErr, closeErr error
	closed             int
}

func (w *closingWriter) WriteMaskedBits(port.ID, port.Word, port.Word) error { return w.writeErr }

func (w *closingWriter) Close() error {
	w.closed++
	return w.closeErr
}

func TestInitCoreFailureReportsRelease(t *testing.T) {
	errWrite := errors.New("write")
	errClose := errors.New("close")

	w := &closingWriter{writeErr: errWrite, closeErr: errClose}
	_, err := InitCore(context.Background(), syncConfig("test"), WithWriter(w), WithWaiter(noWait{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errWrite)
	assert.ErrorIs(t, err, errClose)
	assert.Equal(t, 1, w.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w = &closingWriter{closeErr: errClose}
	_, err = InitCore(ctx, syncConfig("test"), WithWriter(w), WithWaiter(noWait{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errClose)
	assert.Equal(t, 1, w.closed)

	w = &closingWriter{}
	c, err := InitCore(context.Background(), syncConfig("test"), WithWriter(w), WithWaiter(noWait{}))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 1, w.closed)
}
