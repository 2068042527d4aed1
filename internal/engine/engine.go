// Package engine renders the image buffer onto GE35 strands.
//
// A render walks LED positions, not pixels: pass i sends LED i of every
// strand at once, so a full image costs one frame time per bulb on the
// longest strand regardless of image size.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
	"github.com/nsfw/kelp/internal/transport"
)

// PowerUpColor is written to every pixel by Init.
var PowerUpColor = layout.RGB{R: 128, G: 0, B: 255}

// broadcast colour; the bulbs ignore it on an intensity-only frame
var neutral = layout.RGB{R: 0x80, G: 0x80, B: 0x00}

// DebugSample is passed to the debug pixel hook.
type DebugSample struct {
	Strand int
	LED    int
	Pixel  layout.RGB
	Frame  protocol.Frame
}

// Stats describes the last full render.
type Stats struct {
	Rows      int
	Frames    int           // LED frames expanded
	Compose   time.Duration // encoding and expansion
	Flush     time.Duration // handing off / clocking out
	Total     time.Duration
	Renders   uint64
	Intensity uint8
}

// Engine is the frame scheduler. Its methods are safe for concurrent use;
// transmissions are serialised.
type Engine struct {
	mu        sync.Mutex
	inst      *layout.Installation
	img       *layout.Image
	tx        transport.Transport
	enabled   []bool
	intensity uint8
	log       zerolog.Logger

	debugAt *layout.Point
	debugFn func(DebugSample)

	last Stats
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithIntensity sets the starting global intensity (default MaxIntensity).
func WithIntensity(v uint8) Option { return func(e *Engine) { e.intensity = v } }

// WithDebugPixel calls fn whenever a frame is composed from pixel (x, y).
func WithDebugPixel(x, y uint8, fn func(DebugSample)) Option {
	return func(e *Engine) {
		e.debugAt = &layout.Point{X: x, Y: y}
		e.debugFn = fn
	}
}

// New validates inst against ports and returns an engine with every strand
// enabled and a black image.
func New(inst *layout.Installation, ports *port.Map, tx transport.Transport, opts ...Option) (*Engine, error) {
	if err := layout.Validate(inst, ports); err != nil {
		return nil, err
	}
	e := &Engine{
		inst:      inst,
		img:       layout.NewImage(inst.Width, inst.Height),
		tx:        tx,
		enabled:   make([]bool, len(inst.Strands)),
		intensity: protocol.MaxIntensity,
		log:       zerolog.Nop(),
	}
	for i := range e.enabled {
		e.enabled[i] = true
	}
	for _, fn := range opts {
		fn(e)
	}
	return e, nil
}

// Init fills the image with PowerUpColor and renders it. On the first
// render after power-up each bulb latches the address it is sent.
func (e *Engine) Init() error {
	e.mu.Lock()
	e.img.Fill(PowerUpColor)
	e.mu.Unlock()
	for i, s := range e.inst.Strands {
		e.log.Info().Int("strand", i).Uint8("pin", s.Pin).Uint8("len", s.Len).Msg("configured strand")
	}
	if err := e.RenderImage(); err != nil {
		return err
	}
	e.log.Info().Str("installation", e.inst.Name).Int("strands", len(e.inst.Strands)).Msg("strands initialised")
	return nil
}

// RenderImage sends the whole image once: one pass per LED position up to
// the longest strand. A strand shorter than the current position sits the
// pass out.
func (e *Engine) RenderImage() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	st := Stats{Rows: e.inst.LongestStrand(), Intensity: e.intensity}
	for row := 0; row < st.Rows; row++ {
		t0 := time.Now()
		set := e.tx.Compose()
		for i := range e.inst.Strands {
			s := &e.inst.Strands[i]
			if row >= int(s.Len) || !e.enabled[i] {
				continue
			}
			x, y := s.Source(row)
			px := e.img.Pixel(x, y)
			f := protocol.Encode(uint8(row), px.R, px.G, px.B, e.intensity)
			if e.debugFn != nil && int(e.debugAt.X) == x && int(e.debugAt.Y) == y {
				e.debugFn(DebugSample{Strand: i, LED: row, Pixel: px, Frame: f})
			}
			if err := set.Expand(s.Pin, f); err != nil {
				return fmt.Errorf("engine: strand %d: %w", i, err)
			}
			st.Frames++
		}
		t1 := time.Now()
		st.Compose += t1.Sub(t0)
		if err := e.tx.Flush(); err != nil {
			return fmt.Errorf("engine: flush led %d: %w", row, err)
		}
		st.Flush += time.Since(t1)
	}
	st.Total = time.Since(start)
	st.Renders = e.last.Renders + 1
	e.last = st
	return nil
}

// SetGlobalIntensity broadcasts a brightness-only frame to every enabled
// strand and, once it is sent, keeps v as the intensity for later renders.
// Pixels are not touched.
func (e *Engine) SetGlobalIntensity(v uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := protocol.Encode(protocol.BroadcastAddress, neutral.R, neutral.G, neutral.B, v)
	set := e.tx.Compose()
	for i, s := range e.inst.Strands {
		if !e.enabled[i] {
			continue
		}
		if err := set.Expand(s.Pin, f); err != nil {
			return fmt.Errorf("engine: strand %d: %w", i, err)
		}
	}
	if err := e.tx.Flush(); err != nil {
		return fmt.Errorf("engine: flush intensity: %w", err)
	}
	e.intensity = v
	e.log.Debug().Uint8("intensity", v).Msg("global intensity set")
	return nil
}

// SendSingleLED sends one frame to one pin, bypassing the strand table.
func (e *Engine) SendSingleLED(address, pin, r, g, b, intensity uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.tx.Compose()
	if err := set.Expand(pin, protocol.Encode(address, r, g, b, intensity)); err != nil {
		return fmt.Errorf("engine: single led: %w", err)
	}
	if err := e.tx.Flush(); err != nil {
		return fmt.Errorf("engine: flush single led: %w", err)
	}
	return nil
}

// SetStrandEnabled gates whether strand i is driven.
func (e *Engine) SetStrandEnabled(i int, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.enabled) {
		return fmt.Errorf("engine: no strand %d", i)
	}
	e.enabled[i] = on
	return nil
}

// StrandEnabled reports whether strand i is driven.
func (e *Engine) StrandEnabled(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return i >= 0 && i < len(e.enabled) && e.enabled[i]
}

// Update runs fn with exclusive access to the image buffer.
func (e *Engine) Update(fn func(img *layout.Image)) {
	e.mu.Lock()
	fn(e.img)
	e.mu.Unlock()
}

// Fill sets every pixel of the image buffer.
func (e *Engine) Fill(c layout.RGB) {
	e.Update(func(img *layout.Image) { img.Fill(c) })
}

// Snapshot copies the image buffer.
func (e *Engine) Snapshot() *layout.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &layout.Image{Width: e.img.Width, Height: e.img.Height, Pix: append([]layout.RGB(nil), e.img.Pix...)}
}

// Intensity returns the current global intensity.
func (e *Engine) Intensity() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intensity
}

// Installation returns the wiring table. It must not be modified.
func (e *Engine) Installation() *layout.Installation { return e.inst }

// Last returns timing for the most recent render.
func (e *Engine) Last() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Close waits for any in-flight frame and releases the transport.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx.Close()
}
