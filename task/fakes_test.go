package task

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/YitingChang/eye-tracking/tracker"
)

const (
	screenW = 1920
	screenH = 1080
)

var screenCenter = Point{X: screenW / 2, Y: screenH / 2}

type fakeClock struct{ now uint64 }

func (c *fakeClock) Ticks() uint64   { return c.now }
func (c *fakeClock) Delay(ms uint32) { c.now += uint64(ms) }

type fakeImage struct {
	name     string
	released bool
}

func (i *fakeImage) Release() { i.released = true }

type shownStimulus struct {
	at     uint64
	image  string
	corner Corner
}

type fakeDisplay struct {
	clock   *fakeClock
	missing map[string]bool

	images    []*fakeImage
	stimuli   []shownStimulus
	fixations int
	blanks    int
	calTarget Point
	calShown  bool
	overlays  []Overlay
}

func (d *fakeDisplay) Size() (int, int) { return screenW, screenH }

func (d *fakeDisplay) LoadImage(name string) (Image, error) {
	if d.missing[name] {
		return nil, errors.New("no such file")
	}
	img := &fakeImage{name: name}
	d.images = append(d.images, img)
	return img, nil
}

func (d *fakeDisplay) ShowBlank() { d.blanks++ }

func (d *fakeDisplay) ShowFixation(o Overlay) {
	d.fixations++
	d.overlays = append(d.overlays, o)
}

func (d *fakeDisplay) ShowStimulus(img Image, marker Corner, o Overlay) {
	d.stimuli = append(d.stimuli, shownStimulus{at: d.clock.now, image: img.(*fakeImage).name, corner: marker})
}

func (d *fakeDisplay) ShowCalibration(target Point, visible bool) {
	d.calTarget, d.calShown = target, visible
}

// funcKeys answers PollKeys from a function.
type funcKeys func() []Key

func (f funcKeys) PollKeys() []Key { return f() }

// queueKeys hands out one batch per poll.
type queueKeys struct{ batches [][]Key }

func (q *queueKeys) PollKeys() []Key {
	if len(q.batches) == 0 {
		return nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b
}

type fakeSounds struct{ played []Sound }

func (s *fakeSounds) Play(snd Sound) { s.played = append(s.played, snd) }

type fakeReward struct {
	fired  int
	closed bool
}

func (r *fakeReward) Fire() { r.fired++ }

func (r *fakeReward) Close() error {
	r.closed = true
	return nil
}

// fakeMarker records line changes as "+lines" and "-lines".
type fakeMarker struct {
	ops    []string
	closed bool
}

func (m *fakeMarker) Set(lines string)   { m.ops = append(m.ops, "+"+lines) }
func (m *fakeMarker) Unset(lines string) { m.ops = append(m.ops, "-"+lines) }

func (m *fakeMarker) Close() error {
	m.closed = true
	return nil
}

// spyTracker counts recording starts and can report a lost connection from
// a given clock time on.
type spyTracker struct {
	tracker.Tracker
	clock    *fakeClock
	starts   int
	lostAt   uint64
	commands []string
	exits    int
	closed   bool
}

func (s *spyTracker) SendCommand(cmd string) error {
	s.commands = append(s.commands, cmd)
	return s.Tracker.SendCommand(cmd)
}

func (s *spyTracker) ExitSetup() error {
	s.exits++
	return s.Tracker.ExitSetup()
}

func (s *spyTracker) Close() error {
	s.closed = true
	return s.Tracker.Close()
}

func (s *spyTracker) StartRecording() error {
	s.starts++
	return s.Tracker.StartRecording()
}

func (s *spyTracker) IsRecording() error {
	if s.lostAt > 0 && s.clock.now >= s.lostAt {
		return tracker.ErrConnectionLost
	}
	return s.Tracker.IsRecording()
}

// gazePath builds one sample per step ms over [0, dur) with positions from
// at.
func gazePath(dur, step uint64, at func(t uint64) Point) []tracker.Sample {
	var out []tracker.Sample
	for t := uint64(0); t < dur; t += step {
		p := at(t)
		out = append(out, tracker.Sample{Time: 5000 + t, X: p.X, Y: p.Y, Pupil: 800})
	}
	return out
}

func steady(p Point) func(uint64) Point {
	return func(uint64) Point { return p }
}

var farAway = Point{X: screenCenter.X + 500, Y: screenCenter.Y}

var blink = Point{X: math.NaN(), Y: math.NaN()}

type harness struct {
	env     *Env
	clock   *fakeClock
	display *fakeDisplay
	sounds  *fakeSounds
	reward  *fakeReward
	marker  *fakeMarker
	tracker *spyTracker
}

func newHarness(samples []tracker.Sample, keys Keyboard) *harness {
	clock := &fakeClock{now: 1000}
	display := &fakeDisplay{clock: clock, missing: map[string]bool{}}
	sounds := &fakeSounds{}
	reward := &fakeReward{}
	marker := &fakeMarker{}
	tr := &spyTracker{Tracker: tracker.NewReplay(samples, clock), clock: clock}
	if keys == nil {
		keys = funcKeys(func() []Key { return nil })
	}
	return &harness{
		env: &Env{
			Tracker:    tr,
			Display:    display,
			Keys:       keys,
			Clock:      clock,
			Sounds:     sounds,
			Reward:     reward,
			Marker:     marker,
			Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			FrameDelay: 1,
		},
		clock:   clock,
		display: display,
		sounds:  sounds,
		reward:  reward,
		marker:  marker,
		tracker: tr,
	}
}
