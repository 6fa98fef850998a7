// Package listen holds the listening mode state machine: whether captured
// audio may be forwarded to the transcription backend right now.
package listen

import "sync"

type Mode int

const (
	Off Mode = iota
	ToggledOn
	PushToTalk
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case ToggledOn:
		return "on"
	case PushToTalk:
		return "ptt"
	default:
		return "unknown"
	}
}

// Gate decides per audio frame whether transmission is allowed. All methods
// are safe from any goroutine; the capture loop only calls Transmitting.
type Gate struct {
	mu    sync.Mutex
	mode  Mode
	prev  Mode // mode to restore when PTT is released

	// onChange fires whenever the effective transmit decision flips.
	// Called outside the lock; best-effort observers only.
	onChange func(transmitting bool)
}

func New() *Gate {
	return &Gate{mode: Off, prev: Off}
}

// OnChange registers an observer for effective transmit-state changes.
// Must be set before the gate is shared across goroutines.
func (g *Gate) OnChange(fn func(transmitting bool)) {
	g.onChange = fn
}

func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Transmitting reports whether audio should be forwarded right now.
func (g *Gate) Transmitting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode != Off
}

// Toggle flips Off and ToggledOn. While push-to-talk is held it is a no-op:
// the held key always wins.
func (g *Gate) Toggle() {
	g.mu.Lock()
	if g.mode == PushToTalk {
		g.mu.Unlock()
		return
	}
	before := g.mode != Off
	if g.mode == Off {
		g.mode = ToggledOn
	} else {
		g.mode = Off
	}
	after := g.mode != Off
	g.mu.Unlock()
	g.notify(before, after)
}

// PressPTT enters push-to-talk, remembering the mode to restore on release.
// A repeated press while already held is a no-op.
func (g *Gate) PressPTT() {
	g.mu.Lock()
	if g.mode == PushToTalk {
		g.mu.Unlock()
		return
	}
	before := g.mode != Off
	g.prev = g.mode
	g.mode = PushToTalk
	g.mu.Unlock()
	g.notify(before, true)
}

// ReleasePTT restores the pre-press mode. No-op unless PTT is held.
func (g *Gate) ReleasePTT() {
	g.mu.Lock()
	if g.mode != PushToTalk {
		g.mu.Unlock()
		return
	}
	g.mode = g.prev
	after := g.mode != Off
	g.mu.Unlock()
	g.notify(true, after)
}

func (g *Gate) notify(before, after bool) {
	if g.onChange != nil && before != after {
		g.onChange(after)
	}
}
