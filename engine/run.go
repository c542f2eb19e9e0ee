package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/device"
	"github.com/YitingChang/eye-tracking/task"
	"github.com/YitingChang/eye-tracking/tracker"
)

// NewLogger writes text logs to w at the named level. Unknown levels log at
// info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// NewSessionConfig maps the settings onto the session timing and files.
func NewSessionConfig(cfg *config.Config, id, resultsFile string) task.SessionConfig {
	t := cfg.Timing
	return task.SessionConfig{
		ID:          id,
		TrialFile:   cfg.TrialFile,
		DataFile:    cfg.DataFile,
		ResultsFile: resultsFile,
		Gate: task.GateConfig{
			Window: uint64(t.FixationWindow),
			Dwell:  uint64(t.FixationDwell),
			Radius: t.FixationRadius,
		},
		Runner: task.RunnerConfig{
			StimDuration: uint64(t.StimDuration),
			Radius:       t.TrialRadius,
			MaxOutside:   t.MaxOutside,
		},
		MinITI: t.MinITI,
		MaxITI: t.MaxITI,
	}
}

// TimestampedName inserts the session start time before the extension, so
// each session keeps its own results file.
func TimestampedName(path string, now time.Time) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + now.Format("20060102-150405") + ext
}

// Run opens the window and devices, then runs the session until it
// terminates. It must be called from the main OS thread.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("SDL_Init: %w", err)
	}
	defer sdl.Quit()

	windowFlags := sdl.WINDOW_RESIZABLE
	if cfg.Display.Fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}
	window, renderer, err := sdl.CreateWindowAndRenderer("eyetask", cfg.Display.Width, cfg.Display.Height, windowFlags)
	if err != nil {
		return fmt.Errorf("CreateWindowAndRenderer: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	frameDelay := uint32(1)
	if cfg.Display.VSync {
		renderer.SetVSync(1)
		frameDelay = 0
	} else {
		renderer.SetVSync(0)
	}

	screen := NewScreen(renderer, cfg, logger)
	defer screen.Destroy()

	env := &task.Env{
		Display:    screen,
		Keys:       screen,
		Clock:      Clock{},
		Logger:     logger,
		ShowGaze:   cfg.ShowGaze,
		FrameDelay: frameDelay,
	}

	if sounds, stream := openSounds(cfg, logger); sounds != nil {
		defer stream.Destroy()
		env.Sounds = sounds
	}

	env.Tracker, err = openTracker(ctx, cfg, screen, logger)
	if err != nil {
		return err
	}

	if cfg.Reward.Device != "" {
		reward, err := device.OpenReward(cfg.Reward.Device, cfg.Reward.Baud, cfg.Reward.PulseMS, logger)
		if err != nil {
			logger.Warn("reward port unavailable, rewards disabled", "device", cfg.Reward.Device, "err", err)
		} else {
			env.Reward = reward
		}
	}
	if cfg.Markers.Device != "" {
		dlp, err := device.OpenDLP(cfg.Markers.Device, cfg.Markers.Baud, logger)
		if err != nil {
			logger.Warn("marker box unavailable, markers disabled", "device", cfg.Markers.Device, "err", err)
		} else {
			env.Marker = dlp
		}
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

	results := TimestampedName(cfg.ResultsFile, time.Now())
	session := task.NewSession(env, NewSessionConfig(cfg, sessionID, results))
	logger.Info("session ready", "trial_file", cfg.TrialFile, "keys", "r=run c=calibrate p=pause q=quit g=gaze")
	return session.Run(ctx)
}

func openSounds(cfg *config.Config, logger *slog.Logger) (*Feedback, *sdl.AudioStream) {
	mixer := NewAudioMixer()
	cb := sdl.NewAudioStreamCallback(mixer.Callback)
	spec := mixSpec
	stream := sdl.AUDIO_DEVICE_DEFAULT_PLAYBACK.OpenAudioDeviceStream(&spec, cb)
	if stream == nil {
		logger.Warn("audio unavailable, feedback sounds disabled")
		return nil, nil
	}
	stream.ResumeDevice()

	cache := NewSoundCache()
	load := func(path string) *SoundResource {
		if path == "" {
			return nil
		}
		res, err := cache.Load(path)
		if err != nil {
			logger.Warn("feedback sound unavailable", "err", err)
		}
		return res
	}
	return NewFeedback(mixer, load(cfg.SuccessSound), load(cfg.ErrorSound)), stream
}

func openTracker(ctx context.Context, cfg *config.Config, screen *Screen, logger *slog.Logger) (tracker.Tracker, error) {
	if cfg.Tracker.Replay != "" {
		r, err := tracker.LoadReplay(cfg.Tracker.Replay, Clock{})
		if err != nil {
			return nil, fmt.Errorf("load replay: %w", err)
		}
		logger.Info("replaying recorded gaze", "path", cfg.Tracker.Replay)
		return r, nil
	}
	return tracker.Open(ctx, tracker.Options{
		Address:         cfg.Tracker.Address,
		SampleRate:      cfg.Tracker.SampleRate,
		CalibrationType: cfg.Tracker.CalibrationType,
		ScreenWidth:     cfg.Display.Width,
		ScreenHeight:    cfg.Display.Height,
		DataFile:        cfg.Tracker.EDFFile,
	}, screen.Pointer, Clock{}, logger), nil
}

// serveMetrics exposes the Prometheus registry on addr. The returned
// function shuts the server down.
func serveMetrics(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
