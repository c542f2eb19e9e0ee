package task

import (
	"io"
	"log/slog"

	"github.com/YitingChang/eye-tracking/tracker"
)

// Key is a task command decoded from the keyboard.
type Key int

const (
	KeyNone       Key = iota
	KeyRun            // r: load and run the trial block
	KeyCalibrate      // c: calibration setup / start calibration
	KeyAccept         // Enter: accept calibration
	KeyExitSetup      // o: leave calibration setup
	KeyPause          // p: pause / resume
	KeyQuit           // q
	KeyToggleGaze     // g
	KeySkip           // Escape: skip the current trial
	KeyEnd            // space: end the current trial
	KeyTerminate      // Ctrl-C or window close
)

var keyNames = map[Key]string{
	KeyNone:       "none",
	KeyRun:        "run",
	KeyCalibrate:  "calibrate",
	KeyAccept:     "accept",
	KeyExitSetup:  "exit_setup",
	KeyPause:      "pause",
	KeyQuit:       "quit",
	KeyToggleGaze: "toggle_gaze",
	KeySkip:       "skip",
	KeyEnd:        "end",
	KeyTerminate:  "terminate",
}

func (k Key) String() string { return keyNames[k] }

type Keyboard interface {
	// PollKeys drains pending key presses without blocking.
	PollKeys() []Key
}

// Clock is the millisecond frame clock shared by every poll loop.
type Clock interface {
	Ticks() uint64
	Delay(ms uint32)
}

type Point struct{ X, Y float64 }

// Overlay is the optional gaze feedback drawn over the current screen.
type Overlay struct {
	Show    bool
	Center  Point
	Radius  float64
	Gaze    Point
	HasGaze bool
	Inside  bool
}

// Corner selects where the photodiode marker square is drawn.
type Corner int

const (
	CornerBottomLeft Corner = iota
	CornerBottomRight
)

// Image is a loaded stimulus owned by the caller until Release.
type Image interface {
	Release()
}

type Display interface {
	Size() (w, h int)
	LoadImage(name string) (Image, error)
	ShowBlank()
	ShowFixation(o Overlay)
	ShowStimulus(img Image, marker Corner, o Overlay)
	ShowCalibration(target Point, visible bool)
}

type Sound int

const (
	SoundSuccess Sound = iota
	SoundError
)

type Sounds interface {
	Play(s Sound)
}

// Rewarder fires the reward pump. Fire never reports failure.
type Rewarder interface {
	Fire()
	Close() error
}

// Marker raises and lowers TTL lines on the event-marker box.
type Marker interface {
	Set(lines string)
	Unset(lines string)
	Close() error
}

// Env is the session context handed to every component. It is owned by the
// goroutine running the session.
type Env struct {
	Tracker tracker.Tracker
	Display Display
	Keys    Keyboard
	Clock   Clock
	Sounds  Sounds
	Reward  Rewarder
	Marker  Marker
	Logger  *slog.Logger

	ShowGaze bool
	// FrameDelay is slept once per poll iteration; zero when presentation
	// is paced by VSync.
	FrameDelay uint32
}

func (e *Env) center() Point {
	w, h := e.Display.Size()
	return Point{X: float64(w) / 2, Y: float64(h) / 2}
}

func (e *Env) frame() {
	e.Clock.Delay(e.FrameDelay)
}

type nopSounds struct{}

func (nopSounds) Play(Sound) {}

type nopDevice struct{}

func (nopDevice) Fire()        {}
func (nopDevice) Set(string)   {}
func (nopDevice) Unset(string) {}
func (nopDevice) Close() error { return nil }

// fill replaces absent optional devices with no-ops.
func (e *Env) fill() {
	if e.Sounds == nil {
		e.Sounds = nopSounds{}
	}
	if e.Reward == nil {
		e.Reward = nopDevice{}
	}
	if e.Marker == nil {
		e.Marker = nopDevice{}
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
