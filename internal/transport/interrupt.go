package transport

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/nsfw/kelp/internal/framebuf"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
)

// Interrupt transmits from a periodic tick while the main path composes the
// next frame into the other buffer of a ping-pong pair.
//
// The pipeline is exactly two deep. Flush waits for the in-flight buffer to
// finish, arms the freshly composed one, and the next Compose hands back the
// buffer that just finished.
type Interrupt struct {
	w      port.Writer
	clk    port.Clocked
	ticker Ticker
	timing Timing
	opts   options

	sets      [2]*framebuf.Set
	state     *TxState
	composing int
	seq       uint64

	// first write error seen by the tick, reported by the next Flush
	err    atomic.Pointer[error]
	closed atomic.Bool
}

// NewInterrupt allocates the buffer pair and starts ticker at the tribit
// period.
func NewInterrupt(m *port.Map, w port.Writer, ticker Ticker, timing Timing, opts ...Option) (*Interrupt, error) {
	if err := timing.validate(); err != nil {
		return nil, err
	}
	t := &Interrupt{
		w:      w,
		ticker: ticker,
		timing: timing,
		opts:   buildOptions(opts),
		sets:   [2]*framebuf.Set{framebuf.NewSet(m), framebuf.NewSet(m)},
		state:  NewTxState(protocol.FrameSize + timing.QuietTicks()),
	}
	t.clk, _ = w.(port.Clocked)
	t.composing = 1 - t.state.Active()
	if err := ticker.Start(timing.Tribit, t.tick); err != nil {
		return nil, err
	}
	return t, nil
}

// tick is the timer interrupt body: emit one slice of the active buffer.
// Ticks after the last slice are the quiet period and write nothing; the
// final slice already left every driven line low.
func (t *Interrupt) tick() {
	buf, slice, ok := t.state.Current()
	if !ok {
		return
	}
	set := t.sets[buf]
	if slice == 0 && t.opts.onTransmit != nil {
		t.opts.onTransmit(set.Seq)
	}
	if slice < protocol.FrameSize {
		if err := set.WriteSlice(t.w, slice); err != nil {
			t.err.CompareAndSwap(nil, &err)
		}
	}
	if t.clk != nil {
		t.clk.Tick()
	}
	t.state.AdvanceSlice()
}

// Compose returns the buffer not owned by the tick, cleared and tagged.
func (t *Interrupt) Compose() *framebuf.Set {
	set := t.sets[t.composing]
	set.Reset()
	t.seq++
	set.Seq = t.seq
	return set
}

// Flush hands the composed buffer to the tick. It spins until the previous
// transmission has fully completed; a stalled tick source stalls Flush.
// Once closed nothing is armed.
func (t *Interrupt) Flush() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.Drain()
	if errp := t.err.Swap(nil); errp != nil {
		return *errp
	}
	if !t.state.TryBeginTransmit(t.composing) {
		// Only Flush arms, and the state was idle above.
		panic("transport: arm failed on idle state")
	}
	t.composing ^= 1
	return nil
}

// Drain spins until the tick has finished the in-flight buffer.
func (t *Interrupt) Drain() {
	if t.state.IsIdle() {
		return
	}
	start := time.Now()
	warned := false
	for !t.state.IsIdle() {
		runtime.Gosched()
		if !warned && t.opts.stallWarn > 0 && time.Since(start) > t.opts.stallWarn {
			warned = true
			phase, cursor, waited := t.state.Phase(), t.state.Cursor(), time.Since(start)
			t.opts.log.Warn().
				Str("phase", phase.String()).
				Int("cursor", cursor).
				Dur("waited", waited).
				Msg("transmit tick stalled; waiting")
			if t.opts.onStall != nil {
				t.opts.onStall(phase, cursor, waited)
			}
		}
	}
}

// Close waits for the last frame and stops the tick. Later calls are
// no-ops.
func (t *Interrupt) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.Drain()
	t.ticker.Stop()
	if errp := t.err.Swap(nil); errp != nil {
		return *errp
	}
	return nil
}

// State exposes the shared transmit state for instrumentation.
func (t *Interrupt) State() *TxState { return t.state }
