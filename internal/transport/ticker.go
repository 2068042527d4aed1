package transport

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Ticker is a periodic tick source standing in for a hardware timer
// interrupt. The callback must return well within one period.
type Ticker interface {
	Start(period time.Duration, tick func()) error
	Stop()
}

var errStarted = errors.New("transport: ticker already started")

// GoTicker calls tick from a goroutine locked to its own OS thread, spinning
// between ticks. On Linux the thread can be pinned to a CPU and memory
// locked to keep page faults out of the bit stream.
type GoTicker struct {
	// CPU to pin the tick thread to; negative leaves it unpinned.
	CPU int
	// LockMemory calls mlockall before ticking.
	LockMemory bool
	Log        zerolog.Logger

	running atomic.Bool
	done    chan struct{}
}

func (g *GoTicker) Start(period time.Duration, tick func()) error {
	if period <= 0 {
		return errTribit
	}
	if !g.running.CompareAndSwap(false, true) {
		return errStarted
	}
	g.done = make(chan struct{})
	ready := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(g.done)
		ready <- realtime(g.CPU, g.LockMemory)

		next := time.Now()
		for g.running.Load() {
			tick()
			next = next.Add(period)
			now := time.Now()
			if now.Sub(next) > period {
				// Fell behind (preempted); restart the schedule rather than
				// bursting ticks to catch up.
				next = now
				continue
			}
			for now.Before(next) {
				now = time.Now()
			}
		}
	}()
	if err := <-ready; err != nil {
		g.Log.Warn().Err(err).Int("cpu", g.CPU).Msg("real-time setup incomplete; tick jitter likely")
	}
	return nil
}

// Stop ends the tick goroutine and waits for it to exit.
func (g *GoTicker) Stop() {
	if g.running.CompareAndSwap(true, false) {
		<-g.done
	}
}

// ManualTicker fires only when Tick is called. Tests use it to step the
// transmit state machine one tribit at a time.
type ManualTicker struct {
	mu     sync.Mutex
	fn     func()
	period time.Duration
}

func (m *ManualTicker) Start(period time.Duration, tick func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn != nil {
		return errStarted
	}
	m.fn, m.period = tick, period
	return nil
}

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	m.fn = nil
	m.mu.Unlock()
}

// Tick fires the callback n times. It is a no-op before Start or after Stop.
func (m *ManualTicker) Tick(n int) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn == nil {
		return
	}
	for i := 0; i < n; i++ {
		fn()
	}
}

// Period returns the period passed to Start.
func (m *ManualTicker) Period() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.period
}
