// Package transport clocks composed port buffers out to the hardware at the
// tribit rate, either inline (Sync) or from a periodic tick with two
// ping-pong buffers (Interrupt).
package transport

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/nsfw/kelp/internal/framebuf"
)

// Transport moves composed frames to the LEDs.
//
// The caller composes into the set returned by Compose and hands it over with
// Flush. The set must not be touched after Flush; the next Compose returns
// the set that is free to write.
type Transport interface {
	Compose() *framebuf.Set
	Flush() error
	// Drain blocks until nothing is in flight.
	Drain()
	Close() error
}

// Timing is the bit clock. Both values must be calibrated per target so the
// bulbs see ~10µs tribits and at least ~30µs of quiet between frames.
type Timing struct {
	Tribit time.Duration `yaml:"tribit"`
	Quiet  time.Duration `yaml:"quiet"`
}

// DefaultTiming is the nominal GE35 bit clock.
var DefaultTiming = Timing{Tribit: 10 * time.Microsecond, Quiet: 30 * time.Microsecond}

var errTribit = errors.New("transport: tribit must be positive")

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("transport: closed")

func (t Timing) validate() error {
	if t.Tribit <= 0 {
		return errTribit
	}
	return nil
}

// QuietTicks is the number of whole tribits covering the quiet period.
func (t Timing) QuietTicks() int {
	if t.Quiet <= 0 {
		return 0
	}
	return int((t.Quiet + t.Tribit - 1) / t.Tribit)
}

// Waiter holds the line for a duration.
type Waiter interface {
	Wait(d time.Duration)
}

// Spin busy-waits on the monotonic clock. Scheduler sleeps are far coarser
// than a tribit.
type Spin struct{}

func (Spin) Wait(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

type options struct {
	log        zerolog.Logger
	wait       Waiter
	onTransmit func(seq uint64)
	onStall    func(phase Phase, cursor int, waited time.Duration)
	stallWarn  time.Duration
}

// Option configures a transport.
type Option func(*options)

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithWaiter replaces the Spin waiter used by Sync.
func WithWaiter(w Waiter) Option { return func(o *options) { o.wait = w } }

// WithOnTransmit registers fn to be called with a set's sequence tag when its
// transmission starts. On Interrupt it runs on the tick, so keep it short.
func WithOnTransmit(fn func(seq uint64)) Option { return func(o *options) { o.onTransmit = fn } }

// WithStallWarning sets how long Flush spins before logging that the tick
// source is not making progress. Zero disables the warning.
func WithStallWarning(d time.Duration) Option { return func(o *options) { o.stallWarn = d } }

// WithOnStall is called alongside the stall warning.
func WithOnStall(fn func(phase Phase, cursor int, waited time.Duration)) Option {
	return func(o *options) { o.onStall = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		log:       zerolog.Nop(),
		wait:      Spin{},
		stallWarn: 250 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
