//go:build !windows

package control

import (
	"os"
	"os/signal"
	"syscall"
)

// NotifyShutdown returns a channel that fires on INT or TERM.
func NotifyShutdown() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// ListenSignals translates user signals into control events until stop
// closes. SIGUSR1 toggles listening; SIGUSR2 alternates between push-to-talk
// press and release, since a signal carries no edge information of its own.
func ListenSignals(s *Surface, stop <-chan struct{}) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer signal.Stop(ch)
		pttHeld := false
		for {
			select {
			case <-stop:
				return
			case sig := <-ch:
				switch sig {
				case syscall.SIGUSR1:
					s.Push(ToggleListening)
				case syscall.SIGUSR2:
					if pttHeld {
						s.Push(PushToTalkRelease)
					} else {
						s.Push(PushToTalkPress)
					}
					pttHeld = !pttHeld
				}
			}
		}
	}()
}
