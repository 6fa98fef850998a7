//go:build windows

package beep

// No audio playback on Windows - earcons disabled.

func Init()    {}
func PlayOn()  {}
func PlayOff() {}
