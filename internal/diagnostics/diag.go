package diagnostics

import (
	"errors"
	"fmt"
	"time"

	"github.com/nsfw/kelp/internal/layout"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromError turns a startup or runtime error into diagnostics. Strand table
// faults become one diagnostic each.
func FromError(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var fe *layout.FaultError
	if errors.As(err, &fe) {
		out := make([]Diagnostic, len(fe.Faults))
		for i, f := range fe.Faults {
			out[i] = FromFault(f)
		}
		return out
	}
	return []Diagnostic{{
		Severity: Err,
		Code:     "error",
		Summary:  err.Error(),
	}}
}

// FromFault describes one strand table fault.
func FromFault(f layout.Fault) Diagnostic {
	d := Diagnostic{
		Severity: Err,
		Code:     string(f.Kind),
		Summary:  f.Error(),
		Evidence: map[string]any{},
	}
	if f.Strand >= 0 {
		d.Evidence["strand"] = f.Strand
	}
	if f.LED >= 0 {
		d.Evidence["led"] = f.LED
	}
	switch f.Kind {
	case layout.FaultStrandLen:
		d.LikelyCauses = []string{"strand longer than the bulbs can be addressed", "max_strand_len set lower than the wiring"}
		d.SuggestedFixes = []string{"split the strand across two pins", "raise max_strand_len (62 at most)"}
	case layout.FaultOutOfBounds:
		d.LikelyCauses = []string{"coordinate typo in the strand table", "image width/height too small"}
		d.SuggestedFixes = []string{"check the x/y lists for this strand"}
	case layout.FaultInvalidPin:
		d.LikelyCauses = []string{"pin not on any configured port group"}
		d.SuggestedFixes = []string{"use a pin from the port profile", "add a port group covering the pin"}
	case layout.FaultDuplicatePin:
		d.LikelyCauses = []string{"two strands wired to one data line"}
		d.SuggestedFixes = []string{"give each strand its own pin"}
	case layout.FaultCoords:
		d.SuggestedFixes = []string{"list one x and one y per LED"}
	case layout.FaultPorts:
		d.SuggestedFixes = []string{"use ports profile atmega2560 or linear, or list groups inline"}
	}
	return d
}

// Stall reports a transmit tick that stopped making progress.
func Stall(phase string, cursor int, waited time.Duration) Diagnostic {
	return Diagnostic{
		Severity:       Warn,
		Code:           "tx_stall",
		Summary:        fmt.Sprintf("transmit tick stalled in %s at slice %d", phase, cursor),
		LikelyCauses:   []string{"tick thread starved or stopped", "ticker not started"},
		SuggestedFixes: []string{"pin the tick thread to an idle CPU (rt.cpu)", "check that the transport was not closed"},
		Evidence:       map[string]any{"phase": phase, "cursor": cursor, "waited_ms": waited.Milliseconds()},
	}
}

// Render reports a failed image render.
func Render(err error) Diagnostic {
	return Diagnostic{
		Severity:       Err,
		Code:           "render_failed",
		Summary:        "render failed",
		Detail:         err.Error(),
		LikelyCauses:   []string{"port write failed", "GPIO line released"},
		SuggestedFixes: []string{"check the port backend and permissions"},
	}
}
