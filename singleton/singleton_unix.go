//go:build !windows

package singleton

import (
	"syscall"
	"time"

	"voxtype/log"
)

const (
	termWait     = 3 * time.Second
	termPollStep = 100 * time.Millisecond
)

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	// EPERM means the process exists but belongs to someone else.
	return err == nil || err == syscall.EPERM
}

// terminate asks nicely first, then kills. The wait is bounded so startup
// cannot hang behind a wedged older instance.
func terminate(pid int) {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return
	}
	deadline := time.Now().Add(termWait)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			log.Infof("older instance pid %d exited", pid)
			return
		}
		time.Sleep(termPollStep)
	}
	log.Warnf("older instance pid %d ignored SIGTERM, killing", pid)
	syscall.Kill(pid, syscall.SIGKILL)
	time.Sleep(termPollStep)
}
