// Package control is the event bus between whatever delivers user intent
// (OS signals today, an IPC socket tomorrow) and the components that act on
// it. Producers stay dumb; the Surface owns the mutations.
package control

import (
	"sync"

	"voxtype/log"
)

type Event int

const (
	ToggleListening Event = iota
	PushToTalkPress
	PushToTalkRelease
	ToggleQueryRoute
)

func (e Event) String() string {
	switch e {
	case ToggleListening:
		return "toggle_listening"
	case PushToTalkPress:
		return "ptt_press"
	case PushToTalkRelease:
		return "ptt_release"
	case ToggleQueryRoute:
		return "toggle_query_route"
	default:
		return "unknown"
	}
}

// Gate is the listening state machine the surface drives.
type Gate interface {
	Toggle()
	PressPTT()
	ReleasePTT()
}

// Route flips the router's side-query dispatch.
type Route interface {
	ToggleQueryRoute() bool
}

// Surface consumes control events and applies them. One consumer goroutine;
// producers push into Events without blocking.
type Surface struct {
	gate  Gate
	route Route

	events   chan Event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSurface(gate Gate, route Route) *Surface {
	return &Surface{
		gate:   gate,
		route:  route,
		events: make(chan Event, 8),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Push enqueues an event, dropping it if the bus is jammed. Control events
// are momentary user gestures; a stale one is worse than a lost one.
func (s *Surface) Push(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warnf("control event dropped: %s", ev)
	}
}

func (s *Surface) Start() {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.stop:
				return
			case ev := <-s.events:
				s.apply(ev)
			}
		}
	}()
}

func (s *Surface) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Surface) apply(ev Event) {
	log.Infof("control: %s", ev)
	switch ev {
	case ToggleListening:
		s.gate.Toggle()
	case PushToTalkPress:
		s.gate.PressPTT()
	case PushToTalkRelease:
		s.gate.ReleasePTT()
	case ToggleQueryRoute:
		if s.route != nil {
			on := s.route.ToggleQueryRoute()
			log.Infof("query route active: %v", on)
		}
	}
}
