package audio

import (
	"errors"
	"sync"
	"time"

	"voxtype/log"
)

const (
	// frameQueue bounds how far the forwarding goroutine may fall behind the
	// device. Audio older than a few frames is useless for live dictation,
	// so overflow is dropped rather than queued.
	frameQueue = 8

	restartRetryDelay = 100 * time.Millisecond
	stallTimeout      = 3 * time.Second
	joinTimeout       = 2 * time.Second
)

var ErrAlreadyRunning = errors.New("audio: streamer already running")

// Streamer owns the capture loop: it re-chunks device callbacks into exact
// FrameBytes frames and forwards each one iff the gate permits it at that
// moment. Frames are never buffered across a denied gate or a dead backend.
type Streamer struct {
	capture    CaptureDevice
	shouldSend func() bool
	send       func(frame []byte)

	mu      sync.Mutex
	pending []byte // callback-side accumulator, device thread only under mu
	frames  chan []byte
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewStreamer wires a capture device to a transmit predicate and a send
// function. shouldSend is consulted once per frame; send must not block for
// long (the supervisor drops instead of blocking).
func NewStreamer(capture CaptureDevice, shouldSend func() bool, send func([]byte)) *Streamer {
	return &Streamer{
		capture:    capture,
		shouldSend: shouldSend,
		send:       send,
	}
}

// Start opens the device and spawns the forwarding goroutine. An open failure
// here is reported to the caller; at launch that is fatal.
func (s *Streamer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.frames = make(chan []byte, frameQueue)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.pending = nil
	s.running = true
	s.mu.Unlock()

	s.capture.SetCallback(s.onData)
	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	log.Infof("capture started: %s (%d Hz, %d ms frames)",
		s.capture.DeviceName(), SampleRate, FrameSamples*1000/SampleRate)
	go s.run()
	return nil
}

// onData runs on the device thread. It slices incoming PCM into exact frames
// and hands them to the forwarding goroutine, dropping when it lags.
func (s *Streamer) onData(data []byte, _ uint32) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, data...)
	var full [][]byte
	for len(s.pending) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, s.pending[:FrameBytes])
		s.pending = s.pending[FrameBytes:]
		full = append(full, frame)
	}
	frames := s.frames
	s.mu.Unlock()

	for _, frame := range full {
		select {
		case frames <- frame:
		default:
			// Forwarder is behind; late audio is not worth sending.
		}
	}
}

func (s *Streamer) run() {
	defer close(s.done)
	stall := time.NewTimer(stallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-s.stop:
			return

		case frame := <-s.frames:
			if !stall.Stop() {
				<-stall.C
			}
			stall.Reset(stallTimeout)
			if s.shouldSend() {
				s.send(frame)
			}

		case <-stall.C:
			// Device went quiet entirely (unplugged, server restart). A
			// transient hiccup must not kill capture: cycle the device and
			// keep retrying until frames flow again or we are stopped.
			log.Warn("no audio frames from device, restarting capture")
			s.capture.Stop()
			if err := s.capture.Start(); err != nil {
				log.Warnf("capture restart failed: %v", err)
				select {
				case <-s.stop:
					return
				case <-time.After(restartRetryDelay):
				}
			}
			stall.Reset(stallTimeout)
		}
	}
}

// Stop halts forwarding and closes the device. Idempotent; the goroutine
// join is bounded so shutdown can never hang on a wedged device.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(joinTimeout):
		log.Warn("capture loop join timeout")
	}
	s.capture.ClearCallback()
	s.capture.Stop()
}
