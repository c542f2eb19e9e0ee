package tracker

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const loopbackPupil = 1000

// calibrationPatterns holds target positions as fractions of the screen.
var calibrationPatterns = map[string][][2]float64{
	"H3":  {{0.5, 0.5}, {0.1, 0.5}, {0.9, 0.5}},
	"HV3": {{0.5, 0.1}, {0.1, 0.9}, {0.9, 0.9}},
	"HV5": {{0.5, 0.5}, {0.5, 0.1}, {0.5, 0.9}, {0.1, 0.5}, {0.9, 0.5}},
	"HV9": {
		{0.5, 0.5}, {0.5, 0.1}, {0.5, 0.9}, {0.1, 0.5}, {0.9, 0.5},
		{0.1, 0.1}, {0.9, 0.1}, {0.1, 0.9}, {0.9, 0.9},
	},
	"HV13": {
		{0.5, 0.5}, {0.5, 0.1}, {0.5, 0.9}, {0.1, 0.5}, {0.9, 0.5},
		{0.1, 0.1}, {0.9, 0.1}, {0.1, 0.9}, {0.9, 0.9},
		{0.3, 0.3}, {0.7, 0.3}, {0.3, 0.7}, {0.7, 0.7},
	},
}

// Loopback stands in for an unreachable tracker: the pointer position is
// reported as gaze at the configured sample rate.
type Loopback struct {
	mu sync.Mutex

	pointer PointerFunc
	clock   Clock

	periodMS  uint64
	pattern   string
	w, h      float64
	recording bool
	closed    bool

	inSetup     bool
	calibrating bool
	point       int
	done        bool
}

func NewLoopback(pointer PointerFunc, clock Clock) *Loopback {
	return &Loopback{
		pointer:  pointer,
		clock:    clock,
		periodMS: 2,
		pattern:  "HV5",
		w:        1920,
		h:        1080,
	}
}

func (l *Loopback) SendCommand(cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(arg), "="))

	switch name {
	case "sample_rate":
		rate, err := strconv.Atoi(arg)
		if err != nil || rate <= 0 {
			return fmt.Errorf("invalid sample rate %q", arg)
		}
		l.periodMS = uint64(1000 / rate)
		if l.periodMS == 0 {
			l.periodMS = 1
		}
	case "calibration_type":
		if _, ok := calibrationPatterns[arg]; !ok {
			return fmt.Errorf("unknown calibration type %q", arg)
		}
		l.pattern = arg
	case "screen_pixel_coords":
		var left, top, right, bottom float64
		if _, err := fmt.Sscanf(arg, "%g %g %g %g", &left, &top, &right, &bottom); err != nil {
			return fmt.Errorf("invalid screen coords %q: %w", arg, err)
		}
		l.w, l.h = right-left+1, bottom-top+1
	}
	return nil
}

func (l *Loopback) StartRecording() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrConnectionLost
	}
	l.recording = true
	return nil
}

func (l *Loopback) StopRecording() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recording = false
	return nil
}

func (l *Loopback) IsRecording() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return ErrConnectionLost
	case !l.recording:
		return ErrNotRecording
	}
	return nil
}

func (l *Loopback) NewestSample() (Sample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording || l.pointer == nil {
		return Sample{}, false
	}
	now := l.clock.Ticks()
	x, y := l.pointer()
	return Sample{
		Time:  now - now%l.periodMS,
		X:     x,
		Y:     y,
		Pupil: loopbackPupil,
	}, true
}

func (l *Loopback) StartSetup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inSetup = true
	l.calibrating = false
	l.done = false
	l.point = 0
	return nil
}

func (l *Loopback) SetupKey(k SetupKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.inSetup {
		return fmt.Errorf("setup key %s outside setup", k)
	}
	switch k {
	case SetupCalibrate:
		l.calibrating = true
		l.point = 0
	case SetupAccept:
		if !l.calibrating {
			l.done = true
			return nil
		}
		l.point++
		if l.point >= len(calibrationPatterns[l.pattern]) {
			l.calibrating = false
			l.done = true
		}
	}
	return nil
}

func (l *Loopback) CalibrationTarget() (float64, float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.inSetup || !l.calibrating {
		return 0, 0, false
	}
	p := calibrationPatterns[l.pattern][l.point]
	return p[0] * l.w, p[1] * l.h, true
}

func (l *Loopback) SetupDone() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Loopback) ExitSetup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inSetup = false
	l.calibrating = false
	return nil
}

func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.recording = false
	return nil
}
