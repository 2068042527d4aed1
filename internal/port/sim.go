package port

import "sync"

// Sample is one recorded port write.
type Sample struct {
	Tick  uint64
	Port  ID
	Mask  Word
	Level Word
}

// Sim is an in-memory port bank. It stands in for the hardware in tests and
// in the simulator and can record every write.
type Sim struct {
	mu     sync.Mutex
	levels []Word
	tick   uint64
	record bool
	trace  []Sample
}

// NewSim returns a Sim with n ports, all low.
func NewSim(n int) *Sim {
	return &Sim{levels: make([]Word, n)}
}

// Record turns write tracing on or off.
func (s *Sim) Record(on bool) {
	s.mu.Lock()
	s.record = on
	s.mu.Unlock()
}

func (s *Sim) WriteMaskedBits(port ID, mask, bits Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(port) >= len(s.levels) {
		grown := make([]Word, port+1)
		copy(grown, s.levels)
		s.levels = grown
	}
	s.levels[port] = s.levels[port]&^mask | bits&mask
	if s.record {
		s.trace = append(s.trace, Sample{Tick: s.tick, Port: port, Mask: mask, Level: s.levels[port]})
	}
	return nil
}

// Tick advances the sample clock. Transports call it once per tribit so
// writes to several ports in the same tribit share a tick.
func (s *Sim) Tick() {
	s.mu.Lock()
	s.tick++
	s.mu.Unlock()
}

// Levels returns the current word of port.
func (s *Sim) Levels(port ID) Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(port) >= len(s.levels) {
		return 0
	}
	return s.levels[port]
}

// Trace returns a copy of the recorded writes.
func (s *Sim) Trace() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.trace...)
}

// Reset drops the trace and rewinds the tick counter.
func (s *Sim) Reset() {
	s.mu.Lock()
	s.trace = nil
	s.tick = 0
	s.mu.Unlock()
}

// Waveform returns, per tick at which mask was driven on port, whether the
// pin was high. Ticks without a write to that pin are skipped.
func Waveform(trace []Sample, port ID, mask Word) []bool {
	var out []bool
	for _, s := range trace {
		if s.Port == port && s.Mask&mask != 0 {
			out = append(out, s.Level&mask != 0)
		}
	}
	return out
}

// Clocked is implemented by writers that want to know where tribit
// boundaries fall.
type Clocked interface {
	Tick()
}
