// Package tracker talks to the eye-tracker: recording control, newest-sample
// polling and the interactive calibration routine.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

var (
	ErrNotRecording   = errors.New("tracker is not recording")
	ErrConnectionLost = errors.New("tracker connection lost")
)

// Sample is one gaze reading of the tracked eye. Time is the tracker clock
// in milliseconds.
type Sample struct {
	Time  uint64
	X, Y  float64
	Pupil float64
}

// Valid reports whether the sample carries a gaze position. Trackers report
// missing data (blinks, lost eye) as NaN.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.X) && !math.IsNaN(s.Y)
}

type SetupKey int

const (
	SetupCalibrate SetupKey = iota
	SetupAccept
)

func (k SetupKey) String() string {
	switch k {
	case SetupCalibrate:
		return "calibrate"
	case SetupAccept:
		return "accept"
	}
	return fmt.Sprintf("SetupKey(%d)", int(k))
}

// Tracker is the subset of the tracker link the task needs.
type Tracker interface {
	StartRecording() error
	StopRecording() error
	// IsRecording returns nil while samples are flowing.
	IsRecording() error
	// NewestSample never blocks. ok is false when no sample is available.
	NewestSample() (s Sample, ok bool)
	SendCommand(cmd string) error

	StartSetup() error
	SetupKey(k SetupKey) error
	CalibrationTarget() (x, y float64, visible bool)
	SetupDone() bool
	ExitSetup() error

	Connected() bool
	Close() error
}

// CmdClearScreen blanks the tracker host display.
const CmdClearScreen = "clear_screen 0"

// Options configure a tracker link at startup.
type Options struct {
	Address         string
	SampleRate      int
	CalibrationType string
	ScreenWidth     int
	ScreenHeight    int
	DataFile        string
}

// Open dials the tracker host and configures it. When the host cannot be
// reached it falls back to a Loopback tracker driven by pointer.
func Open(ctx context.Context, opts Options, pointer PointerFunc, clock Clock, logger *slog.Logger) Tracker {
	var t Tracker
	if opts.Address != "" {
		r, err := Dial(ctx, opts.Address, logger)
		if err != nil {
			logger.Warn("tracker unreachable, using loopback", "address", opts.Address, "err", err)
		} else {
			t = r
		}
	}
	if t == nil {
		t = NewLoopback(pointer, clock)
	}

	if err := Configure(t, opts); err != nil {
		logger.Warn("tracker configuration incomplete", "err", err)
	}
	return t
}

// Configure sends the startup command set.
func Configure(t Tracker, opts Options) error {
	var cmds []string
	if opts.DataFile != "" {
		cmds = append(cmds, "open_data_file "+opts.DataFile)
	}
	if opts.SampleRate > 0 {
		cmds = append(cmds, fmt.Sprintf("sample_rate %d", opts.SampleRate))
	}
	if opts.CalibrationType != "" {
		cmds = append(cmds, "calibration_type = "+opts.CalibrationType)
	}
	if opts.ScreenWidth > 0 && opts.ScreenHeight > 0 {
		cmds = append(cmds, fmt.Sprintf("screen_pixel_coords = 0 0 %d %d", opts.ScreenWidth-1, opts.ScreenHeight-1))
	}
	for _, c := range cmds {
		if err := t.SendCommand(c); err != nil {
			return fmt.Errorf("send %q: %w", c, err)
		}
	}
	return nil
}

// Clock reports milliseconds since an arbitrary origin.
type Clock interface {
	Ticks() uint64
}

// PointerFunc returns the current pointer position in screen pixels.
type PointerFunc func() (x, y float64)
