package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/device"
	"github.com/YitingChang/eye-tracking/engine"
	"github.com/YitingChang/eye-tracking/task"
	"github.com/YitingChang/eye-tracking/tracker"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the configuration, trial block and files before a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if f, _ := cmd.Flags().GetString("trial-file"); f != "" {
				cfg.TrialFile = f
			}
			problems := checkFiles(cmd.OutOrStdout(), cfg)

			if probe, _ := cmd.Flags().GetBool("devices"); probe {
				problems += checkDevices(cmd.OutOrStdout(), cfg)
			}
			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().String("trial-file", "", "Trial block CSV to check instead of the configured one")
	cmd.Flags().Bool("devices", false, "Also open the reward port and ping the marker box")
	return cmd
}

// checkFiles reports every missing or unreadable input and returns how many
// were found.
func checkFiles(w io.Writer, cfg *config.Config) int {
	problems := 0
	report := func(format string, args ...any) {
		problems++
		fmt.Fprintf(w, "FAIL "+format+"\n", args...)
	}

	if err := cfg.Validate(); err != nil {
		report("config: %v", err)
	}

	block, err := task.LoadBlock(cfg.TrialFile)
	if err != nil {
		report("trial block: %v", err)
	} else {
		fmt.Fprintf(w, "trial block %s: %d trials\n", block.Path, len(block.Trials))
		for _, name := range block.Images() {
			if _, err := os.Stat(filepath.Join(cfg.ImageDir, name)); err != nil {
				report("image %s: %v", name, err)
			}
		}
	}

	for _, f := range []string{cfg.SuccessSound, cfg.ErrorSound, cfg.CalibrationTarget} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			report("%v", err)
		}
	}

	if cfg.Tracker.Replay != "" {
		fh, err := os.Open(cfg.Tracker.Replay)
		if err != nil {
			report("replay: %v", err)
		} else {
			samples, err := tracker.ReadSamples(fh)
			fh.Close()
			switch {
			case err != nil:
				report("replay %s: %v", cfg.Tracker.Replay, err)
			case len(samples) == 0:
				report("replay %s: no samples", cfg.Tracker.Replay)
			default:
				fmt.Fprintf(w, "replay %s: %d samples\n", cfg.Tracker.Replay, len(samples))
			}
		}
	}
	return problems
}

func checkDevices(w io.Writer, cfg *config.Config) int {
	problems := 0
	logger := engine.NewLogger(w, "warn")

	if cfg.Reward.Device != "" {
		r, err := device.OpenReward(cfg.Reward.Device, cfg.Reward.Baud, cfg.Reward.PulseMS, logger)
		if err != nil {
			problems++
			fmt.Fprintf(w, "FAIL reward %s: %v\n", cfg.Reward.Device, err)
		} else {
			fmt.Fprintf(w, "reward %s: open\n", cfg.Reward.Device)
			r.Close()
		}
	}
	if cfg.Markers.Device != "" {
		d, err := device.OpenDLP(cfg.Markers.Device, cfg.Markers.Baud, logger)
		if err != nil {
			problems++
			fmt.Fprintf(w, "FAIL markers %s: %v\n", cfg.Markers.Device, err)
		} else {
			d.Pulse(device.LineImageA, 50*time.Millisecond)
			fmt.Fprintf(w, "markers %s: pulsed line %s\n", cfg.Markers.Device, device.LineImageA)
			d.Close()
		}
	}
	return problems
}
