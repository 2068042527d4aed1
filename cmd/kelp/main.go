package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/nsfw/kelp/internal/app"
	"github.com/nsfw/kelp/internal/config"
	"github.com/nsfw/kelp/internal/console"
	diag "github.com/nsfw/kelp/internal/diagnostics"
	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/ws"
)

func main() {
	// ---- Flags (config.yaml, when present, wins) ----
	var (
		installation = flag.String("installation", "", "compiled-in installation: "+strings.Join(layout.Names(), ", "))
		backend      = flag.String("backend", "", "port backend: sim | gpio | gpiod")
		chip         = flag.String("chip", "", "gpiod chip, e.g. gpiochip0")
		mode         = flag.String("transport", "", "transport: sync | interrupt")
		intensity    = flag.Int("intensity", 0xF2, "global intensity 0..255")
		fps          = flag.Int("fps", 30, "image re-send rate")
		cpu          = flag.Int("cpu", -1, "pin the tick thread to this CPU (-1: no pinning)")
		addr         = flag.String("addr", ":8080", "HTTP listen address (empty disables)")
		configPath   = flag.String("config", "config.yaml", "path to config.yaml")
		repl         = flag.Bool("console", false, "read commands from stdin")
		debug        = flag.Bool("debug", false, "debug logging")
		simOnly      = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Load config.yaml (optional) ----
	cfg, err := config.Load(*configPath)
	fromFile := err == nil
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		cfg = config.Default()
	}

	// ---- Without a file, explicitly set flags apply over the defaults ----
	if !fromFile {
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "installation":
				cfg.Installation = *installation
			case "backend":
				cfg.Ports.Backend = *backend
			case "chip":
				cfg.Ports.Chip = *chip
			case "transport":
				cfg.Transport = *mode
			case "intensity":
				cfg.Intensity = *intensity
			case "fps":
				cfg.FPS = *fps
			case "cpu":
				cfg.RT.CPU = *cpu
			case "addr":
				cfg.Addr = *addr
			}
		})
	}
	if *repl {
		cfg.Console = true
	}
	if *simOnly {
		cfg.Ports.Backend = "sim"
		cfg.Mirror.Dev = ""
	}

	// ---- Host drivers for periph GPIO and SPI ----
	if cfg.Ports.Backend == "gpio" || cfg.Mirror.Dev != "" {
		if _, err := host.Init(); err != nil {
			log.Fatal().Err(err).Msg("periph host init failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.InitCore(ctx, cfg, app.WithLogger(log.Logger))
	if err != nil {
		for _, d := range diag.FromError(err) {
			log.Error().Str("code", d.Code).Strs("fix", d.SuggestedFixes).Msg(d.Summary)
		}
		log.Fatal().Err(err).Msg("startup failed")
	}

	// ---- State ----
	state := ws.NewState(core)
	state.ConfigPath = *configPath
	core.OnDiag(func(d diag.Diagnostic) {
		log.Info().Str("code", d.Code).Str("severity", string(d.Severity)).Msg(d.Summary)
	})

	// ---- HTTP routes ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", state.HandleFramesWS)
	mux.HandleFunc("/diag", state.HandleDiagWS)
	mux.HandleFunc("/control", state.HandleControlWS)
	mux.HandleFunc("/health", state.HandleHealth)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Run render loop, server and console ----
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return core.Conductor().Run(gctx, cfg.FPS)
	})
	if cfg.Addr != "" {
		g.Go(func() error {
			log.Info().Str("addr", cfg.Addr).Str("backend", core.Backend).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}
	if cfg.Console {
		g.Go(func() error {
			return console.New(core, os.Stdout).Run(gctx, os.Stdin)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped")
	}
	log.Info().Msg("shutting down")
	if err := core.Close(); err != nil {
		log.Warn().Err(err).Msg("close")
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
