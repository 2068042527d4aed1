package transport

import (
	"github.com/nsfw/kelp/internal/framebuf"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
)

// Sync composes into a single set and clocks it out inline from Flush.
// Nothing overlaps: the caller is blocked for the whole frame time.
type Sync struct {
	w      port.Writer
	set    *framebuf.Set
	timing Timing
	seq    uint64
	opts   options
	closed bool
}

// NewSync returns a busy-wait transport over w.
func NewSync(m *port.Map, w port.Writer, timing Timing, opts ...Option) (*Sync, error) {
	if err := timing.validate(); err != nil {
		return nil, err
	}
	return &Sync{
		w:      w,
		set:    framebuf.NewSet(m),
		timing: timing,
		opts:   buildOptions(opts),
	}, nil
}

func (s *Sync) Compose() *framebuf.Set {
	s.set.Reset()
	s.seq++
	s.set.Seq = s.seq
	return s.set
}

// Flush says it in one parallel blast for all driven pins, then holds the
// quiet time.
func (s *Sync) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.opts.onTransmit != nil {
		s.opts.onTransmit(s.set.Seq)
	}
	clk, _ := s.w.(port.Clocked)
	for i := 0; i < protocol.FrameSize; i++ {
		if err := s.set.WriteSlice(s.w, i); err != nil {
			return err
		}
		if clk != nil {
			clk.Tick()
		}
		s.opts.wait.Wait(s.timing.Tribit)
	}
	s.opts.wait.Wait(s.timing.Quiet)
	return nil
}

func (s *Sync) Drain() {}

func (s *Sync) Close() error {
	s.closed = true
	return nil
}
