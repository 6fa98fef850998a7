// Package beep plays short earcons when the microphone gate opens or
// closes, so the user knows the daemon heard the signal without looking
// at the status file.
package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Gate open: high pitch, short
	onFreq   = 1200
	onVolume = 0.5
	onDecay  = 60

	// Gate closed: medium pitch, slightly longer
	offFreq   = 900
	offVolume = 0.5
	offDecay  = 40
)
