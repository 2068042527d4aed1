package transport

import "sync/atomic"

// Phase is the transmit state shared by the tick and the main path.
type Phase int32

const (
	Idle Phase = iota
	Armed
	Transmitting
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Transmitting:
		return "transmitting"
	case Done:
		return "done"
	}
	return "unknown"
}

// TxState is the only state shared between the tick callback and the main
// path: the phase flag, the slice cursor and which buffer is active.
//
// The main path calls IsIdle and TryBeginTransmit; the tick calls Current
// and AdvanceSlice.
type TxState struct {
	phase  atomic.Int32
	cursor atomic.Int32
	active atomic.Int32
	length int32
}

// NewTxState returns an idle state whose transmissions last length ticks.
func NewTxState(length int) *TxState {
	s := &TxState{length: int32(length)}
	s.active.Store(1)
	return s
}

// IsIdle reports whether no buffer is armed or in flight.
func (s *TxState) IsIdle() bool {
	return Phase(s.phase.Load()) == Idle
}

// TryBeginTransmit makes buf the active buffer and arms it. It fails unless
// the state is idle.
func (s *TxState) TryBeginTransmit(buf int) bool {
	if !s.IsIdle() {
		return false
	}
	s.active.Store(int32(buf))
	return s.phase.CompareAndSwap(int32(Idle), int32(Armed))
}

// Current returns the active buffer and the slice to emit on this tick. An
// armed state starts transmitting at slice 0. ok is false when idle.
func (s *TxState) Current() (buf, slice int, ok bool) {
	switch Phase(s.phase.Load()) {
	case Idle:
		return 0, 0, false
	case Armed:
		s.cursor.Store(0)
		s.phase.Store(int32(Transmitting))
	}
	return int(s.active.Load()), int(s.cursor.Load()), true
}

// AdvanceSlice moves the cursor past the slice just emitted. When the
// transmission is complete the state returns to idle and Done is reported.
func (s *TxState) AdvanceSlice() Phase {
	if Phase(s.phase.Load()) != Transmitting {
		return Phase(s.phase.Load())
	}
	if s.cursor.Add(1) >= s.length {
		s.cursor.Store(0)
		s.phase.Store(int32(Idle))
		return Done
	}
	return Transmitting
}

// Phase returns the current phase.
func (s *TxState) Phase() Phase { return Phase(s.phase.Load()) }

// Cursor returns the next slice to emit.
func (s *TxState) Cursor() int { return int(s.cursor.Load()) }

// Active returns the buffer most recently armed.
func (s *TxState) Active() int { return int(s.active.Load()) }
