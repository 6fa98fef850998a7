package output

import (
	"errors"
	"testing"
)

func TestFakeRecordsEmits(t *testing.T) {
	f := NewFake()
	if err := f.Emit("hello "); err != nil {
		t.Fatal(err)
	}
	if err := f.Emit("world "); err != nil {
		t.Fatal(err)
	}
	got := f.Emitted()
	if len(got) != 2 || got[0] != "hello " || got[1] != "world " {
		t.Errorf("emitted = %q", got)
	}
}

func TestFakeErr(t *testing.T) {
	f := NewFake()
	f.SetErr(errors.New("sink broken"))
	if err := f.Emit("x"); err == nil {
		t.Error("expected error")
	}
	if len(f.Emitted()) != 0 {
		t.Error("failed emit must not be recorded")
	}
}

func TestPasteEmptyTextIsNoop(t *testing.T) {
	p := NewPaste()
	if err := p.Emit(""); err != nil {
		t.Errorf("empty emit should be a no-op, got %v", err)
	}
}
