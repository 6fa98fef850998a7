package status

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteStates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status")
	w := NewWriter(path)

	w.Write(true)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ON" {
		t.Errorf("got %q, want ON", data)
	}

	w.Write(false)
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "OFF" {
		t.Errorf("got %q, want OFF", data)
	}
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing", "deeply", "status"))
	w.Write(true) // must not panic
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status")
	w := NewWriter(path)
	w.Write(true)
	w.Remove()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("status file should be gone, stat err = %v", err)
	}
	w.Remove() // idempotent
}

func TestDefaultPath(t *testing.T) {
	if got := NewWriter("").Path(); got != DefaultPath {
		t.Errorf("got %q, want %q", got, DefaultPath)
	}
}
