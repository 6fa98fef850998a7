// Package singleton enforces one live voxtype instance per host. Two
// processes capturing the same microphone fight over the device and type
// duplicate text, so a newer instance takes over: it terminates the process
// named in the lock file and claims the lock for itself.
package singleton

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"voxtype/log"
)

const DefaultPath = "/tmp/voxtype.pid"

type Lease struct {
	path        string
	pid         int
	releaseOnce sync.Once
}

// Acquire claims the instance lock, preempting any live older instance
// first (graceful signal, bounded wait, then force). Failure to write the
// lock file is fatal to startup and returned to the caller.
func Acquire(path string) (*Lease, error) {
	if path == "" {
		path = DefaultPath
	}

	preempt(path)

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return nil, fmt.Errorf("singleton: write lock file %s: %w", path, err)
	}
	return &Lease{path: path, pid: pid}, nil
}

func (l *Lease) Path() string { return l.path }

// Release removes the lock file. Idempotent, and careful not to delete a
// lock that a newer instance has already taken over.
func (l *Lease) Release() {
	l.releaseOnce.Do(func() {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return
		}
		owner, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil && owner != l.pid {
			log.Warnf("lock file %s taken over by pid %d, leaving it", l.path, owner)
			return
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			log.Warnf("lock file remove failed: %v", err)
		}
	})
}

// preempt reads the lock file and, when it names a live process other than
// this one, terminates it. A stale or unreadable lock is simply ignored;
// the subsequent write overwrites it.
func preempt(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	old, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || old <= 0 || old == os.Getpid() {
		return
	}
	if !processAlive(old) {
		log.Infof("stale lock file for dead pid %d", old)
		return
	}
	log.Warnf("terminating older instance pid %d", old)
	terminate(old)
}
