package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/kwanm/voxchat/internal/audio"
	"github.com/kwanm/voxchat/internal/config"
	"github.com/kwanm/voxchat/internal/dispatch"
	"github.com/kwanm/voxchat/internal/hotkey"
	"github.com/kwanm/voxchat/internal/pipeline"
	"github.com/kwanm/voxchat/internal/transcribe"
	"github.com/kwanm/voxchat/internal/translate"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/voxchat/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	printBanner(cfg)

	capture, err := audio.New()
	if err != nil {
		logrus.Fatalf("Failed to initialize audio backend: %v", err)
	}

	listDevices(capture)

	whisper := transcribe.NewWhisper(cfg.ModelName, cfg.ModelDir)
	translator := translate.NewArgos("en", "zh")
	dispatcher := dispatch.New()

	ctrl := pipeline.NewController(
		func() config.Config { return *cfg },
		captureRecorder{capture},
		whisper,
		translator,
		dispatcher,
		pipeline.SinkFunc(logEvent),
	)

	ctrl.LoadModel()
	ctrl.SetupTranslator()

	listener, err := hotkey.NewListener(cfg.Hotkey)
	if err != nil {
		capture.Close()
		logrus.Fatalf("hotkey: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	go listener.Start()

	logrus.Infof("Ready! Press %s to start/stop recording. Ctrl+C to quit.", cfg.Hotkey)

	for {
		select {
		case _, ok := <-listener.Events():
			if !ok {
				logrus.Info("Hotkey listener stopped")
				cancel()
				capture.Close()
				return
			}
			ctrl.Toggle()

		case sig := <-sigCh:
			logrus.Infof("Received %s, shutting down...", sig)
			listener.Stop()
			cancel()
			capture.Close()
			logrus.Info("Goodbye!")
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// captureRecorder adapts audio.Capture to the pipeline Recorder
// interface.
type captureRecorder struct {
	capture *audio.Capture
}

func (r captureRecorder) Start(cfg audio.SessionConfig) (pipeline.Session, error) {
	sess, err := r.capture.Start(cfg)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// logEvent is the event sink: it renders pipeline events as log lines.
func logEvent(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventError:
		logrus.Error(ev.Text)
	case pipeline.EventTranslationModeChanged:
		logrus.WithField("active", ev.Flag).Info("Translation mode changed")
	case pipeline.EventAudioProcessed:
		logrus.WithField("lang", ev.Lang).Infof("Transcript: %s", ev.Text)
	case pipeline.EventEnableControls:
		logrus.Debug("Controls enabled")
	default:
		logrus.Info(ev.Text)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		logrus.Infof("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	logrus.Info("No config file found, using defaults")
	return config.Default(), nil
}

// listDevices logs the available capture devices so mic_index is easy
// to pick.
func listDevices(capture *audio.Capture) {
	devices, err := capture.Devices()
	if err != nil {
		logrus.Warnf("Could not enumerate capture devices: %v", err)
		return
	}
	for _, d := range devices {
		logrus.Infof("  input %d: %s", d.Index, d.Name)
	}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== voxchat ===")
	fmt.Printf("  Model:   %s\n", cfg.ModelName)
	fmt.Printf("  Hotkey:  %s (toggle)\n", cfg.Hotkey)
	fmt.Printf("  Audio:   %dHz, %dch, mic %d\n", cfg.Rate, cfg.Channels, cfg.MicIndex)
	fmt.Printf("  Target:  %q\n", cfg.RobloxWindowTitle)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("===============")
}
