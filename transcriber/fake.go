package transcriber

import (
	"context"
	"errors"
	"sync"
)

// FakeConn is a scripted backend session for tests. Events pushed with
// Deliver come out of Recv; Close unblocks any pending Recv.
type FakeConn struct {
	events chan Event

	mu         sync.Mutex
	sent       [][]byte
	keepalives int
	closed     bool
	sendErr    error

	closeCh chan struct{}
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		events:  make(chan Event, 64),
		closeCh: make(chan struct{}),
	}
}

func (f *FakeConn) Send(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotConnected
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	f.sent = append(f.sent, frame)
	return nil
}

func (f *FakeConn) Keepalive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotConnected
	}
	f.keepalives++
	return nil
}

func (f *FakeConn) Recv() (Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closeCh:
		return Event{}, ErrNotConnected
	}
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closeCh)
	}
	return nil
}

// Deliver queues an event for Recv.
func (f *FakeConn) Deliver(ev Event) {
	f.events <- ev
}

func (f *FakeConn) SetSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *FakeConn) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *FakeConn) Keepalives() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keepalives
}

func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeDialer scripts dial outcomes: the first failures dials return an
// error, then each subsequent dial hands out a fresh FakeConn.
type FakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*FakeConn
	notify   chan struct{}
}

func NewFakeDialer(failures int) *FakeDialer {
	return &FakeDialer{failures: failures, notify: make(chan struct{}, 16)}
}

func (d *FakeDialer) Dial(ctx context.Context, _ Config) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	select {
	case d.notify <- struct{}{}:
	default:
	}
	if d.dials <= d.failures {
		return nil, errors.New("fake dial refused")
	}
	conn := NewFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeConn, len(d.conns))
	copy(out, d.conns)
	return out
}

// DialNotify signals once per dial attempt; tests use it to wait for
// reconnects without polling.
func (d *FakeDialer) DialNotify() <-chan struct{} { return d.notify }
