// Package transcriber maintains the streaming session with the speech
// backend: one websocket connection at a time, supervised by a reconnect
// loop with exponential backoff and a stale-session heuristic.
package transcriber

import (
	"context"
	"errors"
	"time"
)

var ErrNotConnected = errors.New("transcriber: no active connection")

// Config carries the backend session parameters and the resilience knobs.
// The stale/dedup thresholds are empirical; they are configuration, not
// invariants, because backend cadence varies.
type Config struct {
	APIKey   string
	Model    string
	Language string

	SampleRate int
	Channels   int

	EndpointingMs  int // end-of-speech silence threshold
	UtteranceEndMs int // utterance-boundary silence threshold

	KeepaliveEvery   time.Duration
	BackoffFloor     time.Duration
	BackoffCap       time.Duration
	StaleEmptyFinals int           // consecutive empty finals before a session is suspect
	StaleSilence     time.Duration // minimum quiet period before forcing reconnect
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.EndpointingMs == 0 {
		c.EndpointingMs = 200
	}
	if c.UtteranceEndMs == 0 {
		c.UtteranceEndMs = 1000
	}
	if c.KeepaliveEvery == 0 {
		c.KeepaliveEvery = 5 * time.Second
	}
	if c.BackoffFloor == 0 {
		c.BackoffFloor = time.Second
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.StaleEmptyFinals == 0 {
		c.StaleEmptyFinals = 11
	}
	if c.StaleSilence == 0 {
		c.StaleSilence = 30 * time.Second
	}
	return c
}

type EventKind int

const (
	KindTranscript EventKind = iota
	KindUtteranceEnd
)

// Event is one message from the backend. For KindTranscript, Text holds the
// (possibly interim) transcript; IsFinal marks a finalized phrase and
// SpeechFinal the end of an utterance after a pause.
type Event struct {
	Kind        EventKind
	Text        string
	IsFinal     bool
	SpeechFinal bool
}

// Final reports whether the backend asserts this text will not be revised.
func (e Event) Final() bool {
	return e.Kind == KindTranscript && (e.IsFinal || e.SpeechFinal)
}

// Conn is one live session with the backend. Recv blocks until the next
// event; it returns an error once the session is finished or broken.
type Conn interface {
	Send(pcm []byte) error
	Keepalive() error
	Recv() (Event, error)
	Close() error
}

// Dialer opens a new session. The context bounds the dial and, once
// established, the session's reads and writes.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)
