package audio

import (
	"errors"
	"sync"
	"sync/atomic"
)

// FakeCapture is a test double for CaptureDevice. Tests push PCM through
// Emit as if the device thread delivered it.
type FakeCapture struct {
	mu        sync.Mutex
	cb        DataCallback
	started   bool
	starts    int
	stops     int
	failNext  int32 // remaining Start calls to fail
}

func NewFakeCapture() *FakeCapture {
	return &FakeCapture{}
}

func (f *FakeCapture) Start() error {
	if atomic.LoadInt32(&f.failNext) > 0 {
		atomic.AddInt32(&f.failNext, -1)
		return errors.New("fake capture: device unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.starts++
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.stops++
}

func (f *FakeCapture) Close() {}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = nil
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// FailNextStarts makes the next n Start calls return an error.
func (f *FakeCapture) FailNextStarts(n int) {
	atomic.StoreInt32(&f.failNext, int32(n))
}

// Emit delivers PCM to the registered callback, like the device thread would.
func (f *FakeCapture) Emit(data []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/BytesPerSample))
	}
}

// Starts reports how many times Start succeeded.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}
