// Package doctor runs preflight diagnostics: can we hear the microphone,
// reach the speech backend, and paste into the focused window.
package doctor

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"

	"voxtype/audio"
	"voxtype/transcriber"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run() int {
	fmt.Println("voxtype doctor - system diagnostics")
	fmt.Println("===================================")

	allPass := checkMicrophone()
	if !checkBackend() {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[1/3] Microphone capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: audio context: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: device enumeration: %v\n", err)
		return false
	}
	for _, d := range devices {
		marker := " "
		if audio.IsBluetooth(d.Name) {
			marker = "!"
		}
		fmt.Printf("  %s %s\n", marker, d.Name)
	}

	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: open default device: %v\n", err)
		return false
	}
	defer capture.Close()

	var captured atomic.Uint64
	capture.SetCallback(func(data []byte, _ uint32) {
		captured.Add(uint64(len(data)))
	})
	if err := capture.Start(); err != nil {
		fmt.Printf("  FAIL: start capture: %v\n", err)
		return false
	}
	fmt.Println("  listening for 2s...")
	time.Sleep(2 * time.Second)
	capture.Stop()
	capture.ClearCallback()

	bytes := captured.Load()
	if bytes == 0 {
		fmt.Println("  FAIL: no audio data received from device")
		return false
	}
	seconds := float64(bytes) / float64(audio.SampleRate*audio.BytesPerSample)
	fmt.Printf("  PASS: captured %.1fs of audio (%d bytes)\n", seconds, bytes)
	return true
}

func checkBackend() bool {
	fmt.Println()
	fmt.Println("[2/3] Speech backend")

	key := os.Getenv("DEEPGRAM_API_KEY")
	if key == "" {
		fmt.Println("  FAIL: DEEPGRAM_API_KEY is not set")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	conn, err := transcriber.DialDeepgram(ctx, transcriber.Config{APIKey: key})
	if err != nil {
		fmt.Printf("  FAIL: dial: %v\n", err)
		return false
	}
	defer conn.Close()

	if err := conn.Keepalive(); err != nil {
		fmt.Printf("  FAIL: keepalive: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: connected in %dms\n", time.Since(start).Milliseconds())
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[3/3] Clipboard roundtrip")

	prev, _ := clipboard.ReadAll()
	probe := fmt.Sprintf("voxtype-doctor-%d", os.Getpid())
	if err := clipboard.WriteAll(probe); err != nil {
		fmt.Printf("  FAIL: write: %v\n", err)
		return false
	}
	got, err := clipboard.ReadAll()
	if prev != "" {
		defer clipboard.WriteAll(prev)
	}
	if err != nil {
		fmt.Printf("  FAIL: read: %v\n", err)
		return false
	}
	if got != probe {
		fmt.Printf("  FAIL: read back %q, want %q\n", got, probe)
		return false
	}
	fmt.Println("  PASS: clipboard works")
	return true
}
