//go:build windows

package singleton

import "os"

func processAlive(pid int) bool {
	// FindProcess always succeeds on Windows; a zero signal probe is not
	// available, so treat a findable handle as alive.
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}

func terminate(pid int) {
	p, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	defer p.Release()
	p.Kill()
}
