package app

import (
	"context"
	"errors"
	"io"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/nsfw/kelp/internal/config"
	diag "github.com/nsfw/kelp/internal/diagnostics"
	"github.com/nsfw/kelp/internal/engine"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/mirror"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/transport"
)

// Core is everything between the config file and the bulbs.
type Core struct {
	Cfg     *config.Config
	Inst    *layout.Installation
	Ports   *port.Map
	Eng     *engine.Engine
	Mirror  *mirror.Mirror // nil unless configured
	Writer  port.Writer
	Backend string

	log     zerolog.Logger
	release func() error

	mu      sync.Mutex
	onDiag  []func(diag.Diagnostic)
	onFrame []func(id uint64, img *layout.Image)
	cond    *Conductor
}

type coreOptions struct {
	log    zerolog.Logger
	writer port.Writer
	waiter transport.Waiter
	init   bool
}

type CoreOption func(*coreOptions)

func WithLogger(l zerolog.Logger) CoreOption { return func(o *coreOptions) { o.log = l } }

// WithWriter replaces the configured port backend. A writer that is also an
// io.Closer is closed with the core.
func WithWriter(w port.Writer) CoreOption { return func(o *coreOptions) { o.writer = w } }

// WithWaiter replaces the busy-wait of the sync transport.
func WithWaiter(w transport.Waiter) CoreOption { return func(o *coreOptions) { o.waiter = w } }

// WithoutInit skips the power-up render.
func WithoutInit() CoreOption { return func(o *coreOptions) { o.init = false } }

func InitCore(ctx context.Context, cfg *config.Config, opts ...CoreOption) (*Core, error) {
	o := coreOptions{log: zerolog.Nop(), init: true}
	for _, fn := range opts {
		fn(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1) Strand table and port map
	inst, ports, err := cfg.ResolveInstallation()
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(inst, ports); err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, Inst: inst, Ports: ports, log: o.log, release: func() error { return nil }}

	// 2) Port backend
	w := o.writer
	c.Backend = "custom"
	if w == nil {
		if w, err = c.openPorts(); err != nil {
			return nil, err
		}
	} else if cl, ok := w.(io.Closer); ok {
		c.release = cl.Close
	}

	c.Writer = w

	// 3) Transport
	txOpts := []transport.Option{
		transport.WithLogger(o.log),
		transport.WithStallWarning(cfg.StallWarning()),
		transport.WithOnStall(func(p transport.Phase, cursor int, waited time.Duration) {
			c.pushDiag(diag.Stall(p.String(), cursor, waited))
		}),
	}
	if o.waiter != nil {
		txOpts = append(txOpts, transport.WithWaiter(o.waiter))
	}
	var tx transport.Transport
	switch cfg.Transport {
	case "sync":
		tx, err = transport.NewSync(ports, w, cfg.TransportTiming(), txOpts...)
	default:
		tk := &transport.GoTicker{CPU: cfg.RT.CPU, LockMemory: cfg.RT.LockMemory, Log: o.log}
		tx, err = transport.NewInterrupt(ports, w, tk, cfg.TransportTiming(), txOpts...)
	}
	if err != nil {
		return nil, errors.Join(err, c.release())
	}

	// 4) Engine
	c.Eng, err = engine.New(inst, ports, tx,
		engine.WithLogger(o.log),
		engine.WithIntensity(uint8(cfg.Intensity)),
	)
	if err != nil {
		return nil, errors.Join(err, tx.Close(), c.release())
	}

	// 5) Optional bench mirror
	if cfg.Mirror.Dev != "" {
		m, err := mirror.Open(cfg.Mirror.Dev, physic.Frequency(cfg.Mirror.SpeedHz)*physic.Hertz, cfg.Mirror.Channels, inst)
		if err != nil {
			o.log.Warn().Err(err).Str("dev", cfg.Mirror.Dev).Msg("mirror open failed; continuing without it")
		} else {
			c.Mirror = m
		}
	}

	c.cond = newConductor(c)

	// 6) Address assignment
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	if o.init {
		if err := c.Eng.Init(); err != nil {
			return nil, errors.Join(fmt.Errorf("init strands: %w", err), c.Close())
		}
	}
	o.log.Info().
		Str("installation", inst.Name).
		Str("backend", c.Backend).
		Str("transport", cfg.Transport).
		Int("strands", len(inst.Strands)).
		Int("longest", inst.LongestStrand()).
		Msg("core ready")
	return c, nil
}

func (c *Core) openPorts() (port.Writer, error) {
	c.Backend = c.Cfg.Ports.Backend
	switch c.Backend {
	case "gpio":
		g, err := port.OpenGPIO(c.Ports, c.Inst.Pins())
		if err != nil {
			return nil, err
		}
		c.release = g.Halt
		return g, nil
	case "gpiod":
		g, err := port.OpenGpiod(c.Cfg.Ports.Chip, c.Ports, c.Inst.Pins())
		if err != nil {
			return nil, err
		}
		c.release = g.Close
		return g, nil
	}
	return port.NewSim(c.Ports.Len()), nil
}

// OnDiag subscribes fn to diagnostics.
func (c *Core) OnDiag(fn func(diag.Diagnostic)) {
	c.mu.Lock()
	c.onDiag = append(c.onDiag, fn)
	c.mu.Unlock()
}

// OnFrame subscribes fn to every rendered image. img is a copy.
func (c *Core) OnFrame(fn func(id uint64, img *layout.Image)) {
	c.mu.Lock()
	c.onFrame = append(c.onFrame, fn)
	c.mu.Unlock()
}

func (c *Core) pushDiag(d diag.Diagnostic) {
	c.mu.Lock()
	fns := append([]func(diag.Diagnostic){}, c.onDiag...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

func (c *Core) pushFrame(id uint64, img *layout.Image) {
	c.mu.Lock()
	fns := append([]func(uint64, *layout.Image){}, c.onFrame...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(id, img)
	}
}

// Conductor returns the render loop.
func (c *Core) Conductor() *Conductor { return c.cond }

// Close drains the transport and releases hardware.
func (c *Core) Close() error {
	var errs []error
	if c.Eng != nil {
		errs = append(errs, c.Eng.Close())
	}
	if c.Mirror != nil {
		errs = append(errs, c.Mirror.Close())
	}
	errs = append(errs, c.release())
	return errors.Join(errs...)
}
