//go:build linux && !tinygo

package transport

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// realtime pins the calling thread to cpu and optionally locks all current
// and future pages in memory.
func realtime(cpu int, lockMemory bool) error {
	var errs []error
	if cpu >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(cpu)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			errs = append(errs, fmt.Errorf("pin to cpu %d: %w", cpu, err))
		}
	}
	if lockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			errs = append(errs, fmt.Errorf("mlockall: %w", err))
		}
	}
	return errors.Join(errs...)
}
