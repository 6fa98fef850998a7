// Package router turns raw backend events into at most one output action
// per genuinely new utterance: it filters interim results, suppresses the
// double-delivered finals some backends emit near utterance boundaries, and
// dispatches to the active route.
package router

import (
	"strings"
	"sync"
	"time"

	"voxtype/log"
	"voxtype/transcriber"
)

// DedupWindow is the default span within which an identical final transcript
// is treated as a backend double-delivery. Empirical; override via SetWindow.
const DedupWindow = 3 * time.Second

// Sink receives finalized, deduplicated text. The text always carries a
// trailing separator space.
type Sink interface {
	Emit(text string) error
}

// Health is the session-liveness accounting the supervisor keeps. The
// router reports what it observes; it never reads these counters back.
type Health interface {
	NoteEmptyFinal()
	NoteFinal()
	NoteUtteranceEnd()
}

type Router struct {
	sink   Sink
	health Health

	mu       sync.Mutex
	lastText string // case-insensitive normalized form
	lastEmit time.Time
	window   time.Duration
	queryOn  bool
	query    func(text string)
	routed   int

	now func() time.Time
}

func New(sink Sink, health Health) *Router {
	return &Router{
		sink:   sink,
		health: health,
		window: DedupWindow,
		now:    time.Now,
	}
}

// SetWindow overrides the dedup window.
func (r *Router) SetWindow(d time.Duration) {
	r.mu.Lock()
	r.window = d
	r.mu.Unlock()
}

// SetQueryHandler installs the side route target. While the query route is
// active, finalized text goes there instead of the sink.
func (r *Router) SetQueryHandler(fn func(text string)) {
	r.mu.Lock()
	r.query = fn
	r.mu.Unlock()
}

// ToggleQueryRoute flips the active route and reports the new state.
func (r *Router) ToggleQueryRoute() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryOn = !r.queryOn
	return r.queryOn
}

// Routed reports how many utterances were dispatched this process lifetime.
func (r *Router) Routed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routed
}

// Handle consumes one backend event. Runs on the transport goroutine.
func (r *Router) Handle(ev transcriber.Event) {
	if ev.Kind == transcriber.KindUtteranceEnd {
		// Boundary events vouch for session liveness but say nothing about
		// duplicates, so the dedup record survives them.
		r.health.NoteUtteranceEnd()
		return
	}

	if !ev.Final() {
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		r.health.NoteEmptyFinal()
		return
	}
	r.health.NoteFinal()

	norm := strings.ToLower(text)
	r.mu.Lock()
	now := r.now()
	if norm == r.lastText && now.Sub(r.lastEmit) < r.window {
		r.mu.Unlock()
		log.Debugf("duplicate final suppressed: %s", text)
		return
	}
	r.lastText = norm
	r.lastEmit = now
	r.routed++
	queryOn := r.queryOn
	query := r.query
	r.mu.Unlock()

	log.TranscriptText(text)

	if queryOn && query != nil {
		// Query handlers may do network work; keep them off the transport
		// goroutine.
		go query(text)
		return
	}

	if err := r.sink.Emit(text + " "); err != nil {
		log.Errorf("output emit failed: %v", err)
	}
}
