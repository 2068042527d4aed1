package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nsfw/kelp/internal/port"
	"github.com/nsfw/kelp/internal/protocol"
)

// MaxStrands is the most data lines one engine drives.
const MaxStrands = 32

// FaultKind classifies a configuration fault.
type FaultKind string

const (
	FaultNoStrands    FaultKind = "no_strands"
	FaultTooMany      FaultKind = "too_many_strands"
	FaultImage        FaultKind = "image_size"
	FaultStrandLen    FaultKind = "strand_too_long"
	FaultCoords       FaultKind = "coords_short"
	FaultOutOfBounds  FaultKind = "pixel_out_of_bounds"
	FaultInvalidPin   FaultKind = "invalid_pin"
	FaultDuplicatePin FaultKind = "duplicate_pin"
	FaultPorts        FaultKind = "ports"
)

var (
	ErrStrandTooLong = errors.New("layout: strand too long")
	ErrOutOfBounds   = errors.New("layout: pixel outside image")
	ErrDuplicatePin  = errors.New("layout: pin used by two strands")
	ErrTable         = errors.New("layout: bad strand table")
)

// Fault is one configuration problem. Strand and LED are -1 when not
// applicable.
type Fault struct {
	Kind   FaultKind
	Strand int
	LED    int
	Detail string
}

func (f Fault) sentinel() error {
	switch f.Kind {
	case FaultStrandLen:
		return ErrStrandTooLong
	case FaultOutOfBounds:
		return ErrOutOfBounds
	case FaultInvalidPin:
		return port.ErrInvalidPin
	case FaultDuplicatePin:
		return ErrDuplicatePin
	}
	return ErrTable
}

func (f Fault) Error() string {
	var sb strings.Builder
	if f.Strand >= 0 {
		fmt.Fprintf(&sb, "strand %d: ", f.Strand)
	}
	if f.LED >= 0 {
		fmt.Fprintf(&sb, "led %d: ", f.LED)
	}
	sb.WriteString(f.Detail)
	return sb.String()
}

// FaultError carries every fault found by Validate.
type FaultError struct {
	Faults []Fault
}

func (e *FaultError) Error() string {
	msgs := make([]string, len(e.Faults))
	for i, f := range e.Faults {
		msgs[i] = f.Error()
	}
	return "layout: invalid installation: " + strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match the sentinel of any fault.
func (e *FaultError) Unwrap() []error {
	out := make([]error, len(e.Faults))
	for i, f := range e.Faults {
		out[i] = fmt.Errorf("%w: %s", f.sentinel(), f.Error())
	}
	return out
}

// Validate checks the installation against the image bounds, the strand
// length ceilings and the port map. It reports every fault, not the first.
func Validate(in *Installation, ports *port.Map) error {
	var faults []Fault
	add := func(kind FaultKind, s, led int, format string, args ...any) {
		faults = append(faults, Fault{Kind: kind, Strand: s, LED: led, Detail: fmt.Sprintf(format, args...)})
	}

	if in.Width <= 0 || in.Height <= 0 {
		add(FaultImage, -1, -1, "image is %dx%d", in.Width, in.Height)
	}
	if len(in.Strands) == 0 {
		add(FaultNoStrands, -1, -1, "no strands")
	}
	if len(in.Strands) > MaxStrands {
		add(FaultTooMany, -1, -1, "%d strands, max %d", len(in.Strands), MaxStrands)
	}
	ceiling := in.MaxStrandLen
	if ceiling <= 0 || ceiling > protocol.MaxStrandLen {
		ceiling = protocol.MaxStrandLen
	}

	pins := map[uint8]int{}
	for i, s := range in.Strands {
		if int(s.Len) > ceiling {
			add(FaultStrandLen, i, -1, "%d leds, max %d", s.Len, ceiling)
		}
		if len(s.X) < int(s.Len) || len(s.Y) < int(s.Len) {
			add(FaultCoords, i, -1, "%d leds but %d x and %d y coordinates", s.Len, len(s.X), len(s.Y))
		} else {
			for led := 0; led < int(s.Len); led++ {
				x, y := s.Source(led)
				if x >= in.Width || y >= in.Height {
					add(FaultOutOfBounds, i, led, "pixel (%d,%d) outside %dx%d image", x, y, in.Width, in.Height)
				}
			}
		}
		if ports != nil {
			if _, _, err := ports.Lookup(s.Pin); err != nil {
				add(FaultInvalidPin, i, -1, "pin %d is not on any port", s.Pin)
			}
		}
		if prev, ok := pins[s.Pin]; ok {
			add(FaultDuplicatePin, i, -1, "pin %d already drives strand %d", s.Pin, prev)
		} else {
			pins[s.Pin] = i
		}
	}
	if len(faults) == 0 {
		return nil
	}
	return &FaultError{Faults: faults}
}
