// Package status publishes the effective listening state to a well-known
// file so external processes (a tray icon, a bar widget) can display it.
package status

import (
	"os"

	"voxtype/log"
)

const DefaultPath = "/tmp/voxtype_status"

type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	if path == "" {
		path = DefaultPath
	}
	return &Writer{path: path}
}

func (w *Writer) Path() string { return w.path }

// Write records "ON" or "OFF". Best-effort: failures are logged and swallowed,
// the caller's control flow never depends on this.
func (w *Writer) Write(transmitting bool) {
	state := "OFF"
	if transmitting {
		state = "ON"
	}
	if err := os.WriteFile(w.path, []byte(state), 0644); err != nil {
		log.Warnf("status file write failed: %v", err)
	}
}

// Remove deletes the status file. Used on shutdown; missing file is fine.
func (w *Writer) Remove() {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		log.Debugf("status file remove failed: %v", err)
	}
}
