package main

import (
	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/engine"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the task window and run the session",
		Long: `Open the task window and wait for keys:

  r      load the trial block and start
  c      calibration setup (c again to calibrate, Enter to accept, o to leave)
  p      pause / resume
  g      toggle the gaze overlay
  space  end the current trial
  Esc    skip the current trial
  q      quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			defer binsdl.Load().Unload()
			defer binimg.Load().Unload()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return engine.Run(ctx, cfg, engine.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel))
		},
	}

	f := cmd.Flags()
	f.String("trial-file", "", "Trial block CSV (index, imageA, imageB)")
	f.String("image-dir", "", "Directory containing the images")
	f.String("data-file", "", "Gaze data file, appended to")
	f.String("results", "", "Results CSV; a timestamp is added to the name")
	f.String("tracker", "", "Tracker host address; empty uses the mouse")
	f.String("replay", "", "Replay gaze from a data file instead of a tracker")
	f.String("reward-device", "", "Reward serial device; empty disables rewards")
	f.String("marker-device", "", "DLP-IO8-G event marker device")
	f.Bool("show-gaze", false, "Start with the gaze overlay on")
	f.Bool("windowed", false, "Run in a window instead of fullscreen")
	f.Bool("no-vsync", false, "Disable VSync")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(f *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("trial-file", &cfg.TrialFile)
	str("image-dir", &cfg.ImageDir)
	str("data-file", &cfg.DataFile)
	str("results", &cfg.ResultsFile)
	str("tracker", &cfg.Tracker.Address)
	str("replay", &cfg.Tracker.Replay)
	str("reward-device", &cfg.Reward.Device)
	str("marker-device", &cfg.Markers.Device)
	str("metrics-addr", &cfg.MetricsAddr)

	if f.Changed("show-gaze") {
		cfg.ShowGaze, _ = f.GetBool("show-gaze")
	}
	if f.Changed("windowed") {
		windowed, _ := f.GetBool("windowed")
		cfg.Display.Fullscreen = !windowed
	}
	if f.Changed("no-vsync") {
		noVSync, _ := f.GetBool("no-vsync")
		cfg.Display.VSync = !noVSync
	}
}
