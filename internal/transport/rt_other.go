//go:build !linux || tinygo

package transport

import "errors"

func realtime(cpu int, lockMemory bool) error {
	if cpu >= 0 || lockMemory {
		return errors.New("cpu pinning and memory locking need linux")
	}
	return nil
}
