// kelpsim renders an installation through the simulated port bank and
// prints, per strand, every frame the bulbs would have latched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nsfw/kelp/internal/app"
	"github.com/nsfw/kelp/internal/config"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
	"github.com/nsfw/kelp/internal/tests"
)

// instant replaces the tribit busy-wait; the trace is all we need.
type instant struct{}

func (instant) Wait(time.Duration) {}

func main() {
	var (
		installation = flag.String("installation", "test", "compiled-in installation")
		configPath   = flag.String("config", "", "optional config.yaml (installation, ports, intensity)")
		intensity    = flag.Int("intensity", 0xF2, "global intensity 0..255")
		test         = flag.String("test", "", "step a test pattern instead of the power-up image")
		steps        = flag.Int("steps", 1, "test pattern frames to render")
		bits         = flag.Bool("bits", false, "print the 26 bit pattern of each frame")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		cfg = c
	} else {
		cfg.Installation = *installation
		cfg.Intensity = *intensity
	}
	cfg.Transport = "sync"
	cfg.Ports.Backend = "sim"

	_, ports, err := cfg.ResolveInstallation()
	if err != nil {
		log.Fatal().Err(err).Msg("installation")
	}
	sim := port.NewSim(ports.Len())
	sim.Record(true)

	core, err := app.InitCore(context.Background(), cfg,
		app.WithLogger(log.Logger),
		app.WithWriter(sim),
		app.WithWaiter(instant{}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer core.Close()

	if *test != "" {
		sim.Reset()
		if err := core.Conductor().RunTest(tests.Kind(*test)); err != nil {
			log.Fatal().Err(err).Msg("test")
		}
		for i := 0; i < *steps; i++ {
			if err := core.Conductor().Step(); err != nil {
				log.Fatal().Err(err).Msg("render")
			}
		}
	}

	trace := sim.Trace()
	ports = core.Ports
	for i, s := range core.Inst.Strands {
		id, mask, err := ports.Lookup(s.Pin)
		if err != nil {
			log.Fatal().Err(err).Msg("lookup")
		}
		wave := port.Waveform(trace, id, mask)
		fmt.Printf("strand %d  pin %d (%s bit %#x)  %d frames\n", i, s.Pin, ports.Group(id).Name, uint32(mask), len(wave)/protocol.FrameSize)
		for n := 0; n+protocol.FrameSize <= len(wave); n += protocol.FrameSize {
			f, err := protocol.Decode(wave[n : n+protocol.FrameSize])
			if err != nil {
				fmt.Printf("  %4d  %v\n", n/protocol.FrameSize, err)
				continue
			}
			fl := f.Fields()
			fmt.Printf("  %4d  addr %2d  i %#02x  r %x g %x b %x", n/protocol.FrameSize, fl.Address, fl.Intensity, fl.Red, fl.Green, fl.Blue)
			if *bits {
				fmt.Printf("  %s", f)
			}
			fmt.Println()
		}
	}
}
