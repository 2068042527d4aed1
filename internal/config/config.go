package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nsfw/kelp/internal/layout"
	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/transport"
)

var (
	ErrUnknownInstallation = errors.New("config: unknown installation")
	ErrInvalid             = errors.New("config: invalid value")
)

type Timing struct {
	TribitUs    int `yaml:"tribit_us"`     // e.g. 10
	QuietUs     int `yaml:"quiet_us"`      // e.g. 30
	StallWarnMs int `yaml:"stall_warn_ms"` // 0 disables
}

type Ports struct {
	Backend string       `yaml:"backend"` // "sim" | "gpio" | "gpiod"
	Profile string       `yaml:"profile,omitempty"`
	Groups  []port.Group `yaml:"groups,omitempty"`
	Chip    string       `yaml:"chip,omitempty"` // gpiod only, e.g. gpiochip0
}

type RT struct {
	CPU        int  `yaml:"cpu"` // -1 leaves affinity alone
	LockMemory bool `yaml:"lock_memory"`
}

// Mirror is an optional WS281x bench strip showing the image buffer.
type Mirror struct {
	Dev      string `yaml:"dev"`      // e.g. /dev/spidev0.0, empty disables
	SpeedHz  int    `yaml:"speed_hz"` // e.g. 2400000
	Channels int    `yaml:"channels"` // 3 or 4
}

type Config struct {
	// Installation names a compiled-in map. Layout, when set, is used
	// instead.
	Installation string               `yaml:"installation"`
	Layout       *layout.Installation `yaml:"layout,omitempty"`

	Ports     Ports  `yaml:"ports"`
	Transport string `yaml:"transport"` // "sync" | "interrupt"
	Timing    Timing `yaml:"timing"`
	RT        RT     `yaml:"rt"`

	Intensity int    `yaml:"intensity"`
	FPS       int    `yaml:"fps"`
	Addr      string `yaml:"addr"`
	Console   bool   `yaml:"console"`

	Mirror Mirror `yaml:"mirror,omitempty"`
}

// Default is the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Installation: "kelp",
		Ports:        Ports{Backend: "sim"},
		Transport:    "interrupt",
		Timing:       Timing{TribitUs: 10, QuietUs: 30, StallWarnMs: 250},
		RT:           RT{CPU: -1},
		Intensity:    0xF2,
		FPS:          30,
		Addr:         ":8080",
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks enumerations and ranges. Strand table faults are left to
// layout.Validate.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, v any) {
		errs = append(errs, fmt.Errorf("%w: %s = %v", ErrInvalid, field, v))
	}
	switch c.Ports.Backend {
	case "sim", "gpio", "gpiod":
	default:
		bad("ports.backend", c.Ports.Backend)
	}
	if c.Ports.Backend == "gpiod" && c.Ports.Chip == "" {
		bad("ports.chip", `""`)
	}
	switch c.Transport {
	case "sync", "interrupt":
	default:
		bad("transport", c.Transport)
	}
	if c.Timing.TribitUs <= 0 {
		bad("timing.tribit_us", c.Timing.TribitUs)
	}
	if c.Timing.QuietUs < 0 {
		bad("timing.quiet_us", c.Timing.QuietUs)
	}
	if c.Intensity < 0 || c.Intensity > 0xFF {
		bad("intensity", c.Intensity)
	}
	if c.FPS < 0 {
		bad("fps", c.FPS)
	}
	if c.Mirror.Dev != "" && c.Mirror.Channels != 0 && c.Mirror.Channels != 3 && c.Mirror.Channels != 4 {
		bad("mirror.channels", c.Mirror.Channels)
	}
	if c.Layout == nil {
		if _, err := layout.Builtin(c.Installation); err != nil {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownInstallation, c.Installation))
		}
	}
	return errors.Join(errs...)
}

// TransportTiming converts the microsecond fields.
func (c *Config) TransportTiming() transport.Timing {
	return transport.Timing{
		Tribit: time.Duration(c.Timing.TribitUs) * time.Microsecond,
		Quiet:  time.Duration(c.Timing.QuietUs) * time.Microsecond,
	}
}

func (c *Config) StallWarning() time.Duration {
	return time.Duration(c.Timing.StallWarnMs) * time.Millisecond
}

// ResolveInstallation returns the strand table and the port map it is
// wired to. Inline port groups override the installation's profile.
func (c *Config) ResolveInstallation() (*layout.Installation, *port.Map, error) {
	in := c.Layout
	if in == nil {
		var err error
		if in, err = layout.Builtin(c.Installation); err != nil {
			return nil, nil, fmt.Errorf("%w %q", ErrUnknownInstallation, c.Installation)
		}
	}
	if c.Ports.Profile != "" {
		in.Ports = c.Ports.Profile
	}
	if len(c.Ports.Groups) > 0 {
		m, err := port.NewMap(c.Ports.Groups...)
		if err != nil {
			return nil, nil, err
		}
		return in, m, nil
	}
	m, err := in.PortMap()
	if err != nil {
		return nil, nil, err
	}
	return in, m, nil
}
