// Package audio owns microphone capture: a platform device abstraction
// (PulseAudio on linux, miniaudio elsewhere) and the Streamer, which turns
// raw device callbacks into fixed-size PCM frames for the streaming backend.
package audio

import "strings"

// Fixed capture format expected by the streaming backend: 16 kHz mono s16le,
// 1024 samples (64 ms) per frame.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	FrameSamples   = 1024
	FrameBytes     = FrameSamples * BytesPerSample * Channels
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses whether a device name belongs to a Bluetooth headset.
// BT mics tend to drop to a low-bandwidth codec and transcribe poorly.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
