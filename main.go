package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"voxtype/audio"
	"voxtype/beep"
	"voxtype/control"
	"voxtype/doctor"
	"voxtype/listen"
	"voxtype/log"
	"voxtype/output"
	"voxtype/router"
	"voxtype/singleton"
	"voxtype/status"
	"voxtype/transcriber"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	modelFlag := flag.String("model", "nova-2", "speech model")
	langFlag := flag.String("lang", "en-US", "language code for transcription")
	deviceFlag := flag.String("device", "", "use named microphone device (default: system default)")
	listFlag := flag.Bool("list-devices", false, "list capture devices and exit")
	statusFlag := flag.String("status-file", status.DefaultPath, "listening state file path")
	lockFlag := flag.String("lock-file", singleton.DefaultPath, "pid lock file path")
	queryFlag := flag.Bool("query", false, "start with the query route enabled")
	muteFlag := flag.Bool("mute", false, "disable earcons on gate transitions")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voxtype %s\n", version)
		return 0
	}
	if *doctorFlag {
		return doctor.Run()
	}
	if *muteFlag {
		beep.Disable()
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer ctx.Close()

	if *listFlag {
		devices, err := ctx.Devices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error enumerating devices: %v\n", err)
			return 1
		}
		for _, d := range devices {
			suffix := ""
			if audio.IsBluetooth(d.Name) {
				suffix = " (bluetooth)"
			}
			fmt.Printf("  %s%s\n", d.Name, suffix)
		}
		return 0
	}

	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: DEEPGRAM_API_KEY is not set")
		return 1
	}

	lease, err := singleton.Acquire(*lockFlag)
	if err != nil {
		log.Errorf("lock acquire error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer lease.Release()

	var selected *audio.DeviceInfo
	if *deviceFlag != "" {
		devices, err := ctx.Devices()
		if err != nil {
			log.Warnf("device enumeration failed: %v", err)
		}
		for i := range devices {
			if devices[i].Name == *deviceFlag {
				selected = &devices[i]
				break
			}
		}
		if selected == nil {
			log.Warnf("device not found: %s, using system default", *deviceFlag)
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", *deviceFlag)
		}
	}
	if selected != nil && audio.IsBluetooth(selected.Name) {
		log.Warnf("bluetooth microphone selected: %s, expect degraded quality", selected.Name)
		fmt.Println("Warning: bluetooth microphones often capture at low quality")
	}

	capture, err := ctx.NewCapture(selected, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		return 1
	}
	defer capture.Close()
	log.Info("recording_device: " + capture.DeviceName())

	gate := listen.New()
	st := status.NewWriter(*statusFlag)
	st.Write(false)
	defer st.Remove()
	go beep.Init()
	gate.OnChange(func(transmitting bool) {
		st.Write(transmitting)
		log.Infof("transmitting: %v (%s)", transmitting, gate.Mode())
		if transmitting {
			beep.PlayOn()
		} else {
			beep.PlayOff()
		}
	})

	cfg := transcriber.Config{
		APIKey:   apiKey,
		Model:    *modelFlag,
		Language: *langFlag,
	}

	// Handler closure lets the supervisor and router reference each other:
	// events flow supervisor -> router, health notes flow router -> supervisor.
	var rt *router.Router
	sup := transcriber.NewSupervisor(cfg, transcriber.DialDeepgram, func(ev transcriber.Event) {
		rt.Handle(ev)
	})
	rt = router.New(output.NewPaste(), sup)
	rt.SetQueryHandler(func(text string) {
		log.Infof("query: %s", text)
	})
	if *queryFlag {
		rt.ToggleQueryRoute()
	}

	sup.Start()
	defer sup.Stop()

	streamer := audio.NewStreamer(capture, gate.Transmitting, sup.SendAudio)
	if err := streamer.Start(); err != nil {
		log.Errorf("audio streamer start error: %v", err)
		fmt.Fprintf(os.Stderr, "Error starting audio capture: %v\n", err)
		return 1
	}
	defer streamer.Stop()

	surface := control.NewSurface(gate, rt)
	surface.Start()
	defer surface.Stop()
	sigStop := make(chan struct{})
	control.ListenSignals(surface, sigStop)

	log.SessionStart(*modelFlag, *langFlag)
	pid := os.Getpid()
	fmt.Printf("voxtype %s ready [pid=%d]\n", version, pid)
	fmt.Printf("  toggle listening:  kill -USR1 %d\n", pid)
	fmt.Printf("  push-to-talk:      kill -USR2 %d (press and release)\n", pid)
	fmt.Printf("  status file:       %s\n", st.Path())

	<-control.NotifyShutdown()
	fmt.Println("\nshutting down")
	log.Info("shutdown signal received")

	close(sigStop)
	streamer.Stop()
	sup.Stop()
	surface.Stop()
	st.Remove()
	log.SessionEnd(rt.Routed())
	log.Close()
	return 0
}
