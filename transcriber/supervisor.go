package transcriber

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voxtype/log"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Handler receives backend events. It is invoked on the receiver goroutine,
// never on the caller's; it must not block for long.
type Handler func(Event)

// Supervisor keeps exactly one logical backend session alive for the life of
// the process. Dead sessions are replaced transparently: dial failures back
// off exponentially, an established session is health-checked on the
// keepalive cadence, and a session that stays open but stops producing
// usable finals is torn down and redialed.
type Supervisor struct {
	cfg     Config
	dial    Dialer
	handler Handler

	connMu sync.Mutex
	conn   Conn // guarded reference; never hold connMu across network calls

	state atomic.Int32

	staleMu     sync.Mutex
	emptyFinals int
	lastGood    time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(d time.Duration) bool // false when interrupted by stop

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSupervisor(cfg Config, dial Dialer, handler Handler) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:     cfg.withDefaults(),
		dial:    dial,
		handler: handler,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.sleep = s.stoppableSleep
	s.lastGood = s.now()
	return s
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Start launches the supervision loop on its own goroutine.
func (s *Supervisor) Start() {
	go s.run()
}

// Stop tears down the current session and unblocks both supervision loops.
// Idempotent; returns once the loop has exited or a bounded wait elapses.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(Closing))
		close(s.stop)
		s.cancel()
		if conn := s.currentConn(); conn != nil {
			conn.Close()
		}
	})
	select {
	case <-s.done:
	case <-time.After(3 * time.Second):
		log.Warn("supervisor loop join timeout")
	}
}

// SendAudio forwards one PCM frame to the live session. Frames arriving
// while no session is connected are dropped: fresh audio after reconnect
// beats stale audio replayed late.
func (s *Supervisor) SendAudio(frame []byte) {
	if s.State() != Connected {
		return
	}
	conn := s.currentConn()
	if conn == nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		// The receiver goroutine will observe the broken session and force
		// the reconnect; nothing to do here but note it.
		log.Warnf("audio send failed: %v", err)
	}
}

func (s *Supervisor) currentConn() Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Supervisor) setConn(c Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

func (s *Supervisor) run() {
	defer close(s.done)
	defer s.state.Store(int32(Disconnected))

	backoff := s.cfg.BackoffFloor
	attempt := 0

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.state.Store(int32(Connecting))
		attempt++
		dialStart := s.now()
		conn, err := s.dial(s.ctx, s.cfg)
		if err != nil {
			s.state.Store(int32(Disconnected))
			log.Reconnect("dial: "+err.Error(), backoff)
			if !s.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, s.cfg.BackoffCap)
			continue
		}

		log.Connected(attempt, s.now().Sub(dialStart))
		backoff = s.cfg.BackoffFloor
		attempt = 0
		s.resetStale()
		s.setConn(conn)
		s.state.Store(int32(Connected))

		dead := make(chan struct{})
		go s.receive(conn, dead)

		reason := s.superviseSession(conn, dead)

		s.state.Store(int32(Disconnected))
		s.setConn(nil)
		conn.Close()
		<-dead // receiver exits once the conn is closed

		select {
		case <-s.stop:
			return
		default:
			log.Reconnect(reason, 0)
		}
	}
}

// superviseSession runs the inner health loop: on every keepalive tick it
// pings the backend and evaluates the stale heuristic. Keepalive failures
// are ignored; session health is judged by the absence of usable finals,
// not by ping success.
func (s *Supervisor) superviseSession(conn Conn, dead <-chan struct{}) (reason string) {
	ticker := time.NewTicker(s.cfg.KeepaliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return "shutdown"
		case <-dead:
			return "connection lost"
		case <-ticker.C:
			if err := conn.Keepalive(); err != nil {
				log.Debugf("keepalive failed: %v", err)
			}
			if n, silence, stale := s.staleCheck(); stale {
				log.Stale(n, silence)
				return "stale session"
			}
		}
	}
}

// receive delivers backend events to the handler until the session breaks.
// This goroutine is the "transport thread": the handler runs here.
func (s *Supervisor) receive(conn Conn, dead chan<- struct{}) {
	defer close(dead)
	for {
		ev, err := conn.Recv()
		if err != nil {
			return
		}
		s.handler(ev)
	}
}

// NoteEmptyFinal counts a final transcript with no text, the tell of a
// session gone stale while its socket stays open.
func (s *Supervisor) NoteEmptyFinal() {
	s.staleMu.Lock()
	s.emptyFinals++
	s.staleMu.Unlock()
}

// NoteFinal records a usable final transcript: the session is alive.
func (s *Supervisor) NoteFinal() {
	s.staleMu.Lock()
	s.emptyFinals = 0
	s.lastGood = s.now()
	s.staleMu.Unlock()
}

// NoteUtteranceEnd clears the empty-final streak. A boundary event proves
// the backend is still processing audio even if recent finals were empty.
func (s *Supervisor) NoteUtteranceEnd() {
	s.staleMu.Lock()
	s.emptyFinals = 0
	s.staleMu.Unlock()
}

func (s *Supervisor) resetStale() {
	s.staleMu.Lock()
	s.emptyFinals = 0
	s.lastGood = s.now()
	s.staleMu.Unlock()
}

// staleCheck applies the heuristic: enough consecutive empty finals AND a
// long enough gap since the last non-empty one. On a trip the counter is
// reset so the next session starts clean.
func (s *Supervisor) staleCheck() (emptyFinals int, silence time.Duration, stale bool) {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	silence = s.now().Sub(s.lastGood)
	emptyFinals = s.emptyFinals
	if emptyFinals >= s.cfg.StaleEmptyFinals && silence >= s.cfg.StaleSilence {
		s.emptyFinals = 0
		return emptyFinals, silence, true
	}
	return emptyFinals, silence, false
}

func (s *Supervisor) stoppableSleep(d time.Duration) bool {
	select {
	case <-s.stop:
		return false
	case <-time.After(d):
		return true
	}
}
