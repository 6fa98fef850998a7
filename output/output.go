// Package output delivers finalized text into the user's focused window.
package output

import (
	"sync"

	cb "github.com/atotto/clipboard"
)

// Sink is where deduplicated finalized text ends up.
type Sink interface {
	Emit(text string) error
}

// Paste emits text by copying it to the clipboard and synthesizing the
// platform paste chord. Crude but reliable across toolkits, and it handles
// arbitrary unicode that per-character key synthesis cannot.
type Paste struct{}

func NewPaste() *Paste {
	return &Paste{}
}

func (p *Paste) Emit(text string) error {
	if text == "" {
		return nil
	}
	if err := cb.WriteAll(text); err != nil {
		return err
	}
	return sendPaste()
}

// Fake records emitted text for tests.
type Fake struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Emit(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) Emitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}
