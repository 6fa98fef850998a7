//go:build windows

package control

import (
	"os"
	"os/signal"
)

func NotifyShutdown() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}

// ListenSignals is a no-op on Windows; there is no SIGUSR equivalent.
func ListenSignals(s *Surface, stop <-chan struct{}) {}
