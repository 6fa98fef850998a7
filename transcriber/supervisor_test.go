package transcriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// recordSleeps replaces the supervisor's backoff sleep with a recorder so
// backoff schedules can be asserted without waiting them out.
func recordSleeps(s *Supervisor) func() []time.Duration {
	var mu sync.Mutex
	var slept []time.Duration
	s.sleep = func(d time.Duration) bool {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return true
	}
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		out := make([]time.Duration, len(slept))
		copy(out, slept)
		return out
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	dialer := NewFakeDialer(7) // 7 failures, then success
	s := NewSupervisor(Config{}, dialer.Dial, func(Event) {})
	slept := recordSleeps(s)

	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return dialer.Dials() >= 8 }, "expected 8 dial attempts")
	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected after final dial")

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	got := slept()
	if len(got) != len(want) {
		t.Fatalf("got %d sleeps %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBackoffResetsAfterSuccess(t *testing.T) {
	// Script: fail, fail, connect, session dies, fail, connect.
	var mu sync.Mutex
	var conns []*FakeConn
	dials := 0
	dial := func(ctx context.Context, _ Config) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		switch dials {
		case 1, 2, 4:
			return nil, errors.New("refused")
		default:
			c := NewFakeConn()
			conns = append(conns, c)
			return c, nil
		}
	}

	s := NewSupervisor(Config{}, dial, func(Event) {})
	slept := recordSleeps(s)
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 1
	}, "expected first connection")

	mu.Lock()
	first := conns[0]
	mu.Unlock()
	first.Close() // kill the session, forcing a redial that fails once

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 2
	}, "expected reconnection")

	got := slept()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 1 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("got sleeps %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v (backoff must reset to floor after success)", i, got[i], want[i])
		}
	}
}

func TestSendAudioDropsWhileDisconnected(t *testing.T) {
	dialer := NewFakeDialer(0)
	s := NewSupervisor(Config{}, dialer.Dial, func(Event) {})

	// Not started: nothing is connected, frames vanish.
	s.SendAudio([]byte{1, 2})

	// Even with a conn reference present, a non-Connected state drops.
	orphan := NewFakeConn()
	s.setConn(orphan)
	s.SendAudio([]byte{5, 6})
	if len(orphan.Sent()) != 0 {
		t.Fatal("frame must not reach Send while state is not Connected")
	}
	s.setConn(nil)

	s.Start()
	defer s.Stop()
	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected")

	s.SendAudio([]byte{3, 4})
	conn := dialer.Conns()[0]
	waitFor(t, func() bool { return len(conn.Sent()) == 1 }, "expected 1 forwarded frame")

	// Kill the session; frames sent before the replacement session is up
	// must be dropped, not queued.
	conn.Close()
	waitFor(t, func() bool { return len(dialer.Conns()) == 2 }, "expected redial")
	second := dialer.Conns()[1]
	waitFor(t, func() bool { return s.State() == Connected && s.currentConn() == second }, "expected second session live")

	if got := second.Sent(); len(got) != 0 {
		t.Errorf("new session received %d stale frames, want 0", len(got))
	}
}

func TestKeepaliveCadence(t *testing.T) {
	dialer := NewFakeDialer(0)
	s := NewSupervisor(Config{KeepaliveEvery: 10 * time.Millisecond}, dialer.Dial, func(Event) {})
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected")
	conn := dialer.Conns()[0]
	waitFor(t, func() bool { return conn.Keepalives() >= 3 }, "expected keepalives on cadence")
}

func TestEventsReachHandler(t *testing.T) {
	dialer := NewFakeDialer(0)
	var mu sync.Mutex
	var got []Event
	s := NewSupervisor(Config{}, dialer.Dial, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected")
	conn := dialer.Conns()[0]
	conn.Deliver(Event{Kind: KindTranscript, Text: "hello", IsFinal: true})
	conn.Deliver(Event{Kind: KindUtteranceEnd})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, "expected 2 events delivered")

	mu.Lock()
	defer mu.Unlock()
	if got[0].Text != "hello" || !got[0].Final() {
		t.Errorf("event 0 = %+v, want final transcript 'hello'", got[0])
	}
	if got[1].Kind != KindUtteranceEnd {
		t.Errorf("event 1 kind = %v, want KindUtteranceEnd", got[1].Kind)
	}
}

func TestStaleCheckThresholds(t *testing.T) {
	s := NewSupervisor(Config{}, NewFakeDialer(0).Dial, func(Event) {})
	clock := time.Now()
	s.now = func() time.Time { return clock }
	s.resetStale()

	for i := 0; i < 10; i++ {
		s.NoteEmptyFinal()
	}
	clock = clock.Add(31 * time.Second)
	if _, _, stale := s.staleCheck(); stale {
		t.Error("10 empty finals must not trip the heuristic")
	}

	s.NoteEmptyFinal() // 11th
	if n, silence, stale := s.staleCheck(); !stale {
		t.Errorf("11 empty finals after %v silence must trip (n=%d)", silence, n)
	}

	// Counter resets after a trip.
	if _, _, stale := s.staleCheck(); stale {
		t.Error("heuristic must not re-trip immediately after reset")
	}
}

func TestStaleCheckNeedsSilence(t *testing.T) {
	s := NewSupervisor(Config{}, NewFakeDialer(0).Dial, func(Event) {})
	clock := time.Now()
	s.now = func() time.Time { return clock }
	s.resetStale()

	for i := 0; i < 20; i++ {
		s.NoteEmptyFinal()
	}
	clock = clock.Add(10 * time.Second)
	if _, _, stale := s.staleCheck(); stale {
		t.Error("empty finals alone must not trip before the silence window")
	}
}

func TestUtteranceEndResetsEmptyCount(t *testing.T) {
	s := NewSupervisor(Config{}, NewFakeDialer(0).Dial, func(Event) {})
	clock := time.Now()
	s.now = func() time.Time { return clock }
	s.resetStale()

	for i := 0; i < 15; i++ {
		s.NoteEmptyFinal()
	}
	s.NoteUtteranceEnd()
	clock = clock.Add(40 * time.Second)
	if _, _, stale := s.staleCheck(); stale {
		t.Error("utterance boundary must clear the empty-final streak")
	}
}

func TestStaleSessionForcesReconnect(t *testing.T) {
	dialer := NewFakeDialer(0)
	var s *Supervisor
	handler := func(ev Event) {
		if ev.Kind == KindTranscript && ev.Final() && ev.Text == "" {
			s.NoteEmptyFinal()
		}
	}
	s = NewSupervisor(Config{KeepaliveEvery: 5 * time.Millisecond}, dialer.Dial, handler)

	clock := time.Now()
	var clockMu sync.Mutex
	s.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}

	s.Start()
	defer s.Stop()
	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected")

	conn := dialer.Conns()[0]
	for i := 0; i < 11; i++ {
		conn.Deliver(Event{Kind: KindTranscript, IsFinal: true})
	}
	clockMu.Lock()
	clock = clock.Add(31 * time.Second)
	clockMu.Unlock()

	// No transport error occurred, yet the supervisor must tear the
	// session down and dial a fresh one.
	waitFor(t, func() bool { return len(dialer.Conns()) >= 2 }, "expected forced reconnect")
	if !conn.Closed() {
		t.Error("stale session should have been closed")
	}
}

func TestStopUnblocksBackoffPromptly(t *testing.T) {
	dialer := NewFakeDialer(1000)
	s := NewSupervisor(Config{BackoffFloor: 10 * time.Second}, dialer.Dial, func(Event) {})
	s.Start()

	waitFor(t, func() bool { return dialer.Dials() >= 1 }, "expected a dial attempt")
	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v, want prompt exit from backoff sleep", elapsed)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dialer := NewFakeDialer(0)
	s := NewSupervisor(Config{}, dialer.Dial, func(Event) {})
	s.Start()
	waitFor(t, func() bool { return s.State() == Connected }, "expected Connected")
	s.Stop()
	s.Stop()
	if s.State() == Connected {
		t.Error("state should not be Connected after Stop")
	}
}
