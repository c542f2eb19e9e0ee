package task

import (
	"math"

	"github.com/YitingChang/eye-tracking/tracker"
)

// Outside reports whether gaze lies outside the acceptance radius. A gaze
// exactly on the boundary is outside only if the distance exceeds radius.
func Outside(center, gaze Point, radius float64) bool {
	return math.Hypot(center.X-gaze.X, center.Y-gaze.Y) > radius
}

// SampleStream pulls fresh samples from a tracker: each tracker timestamp is
// yielded at most once, and Next never blocks.
type SampleStream struct {
	src  tracker.Tracker
	last uint64
	seen bool
}

func NewSampleStream(src tracker.Tracker) *SampleStream {
	return &SampleStream{src: src}
}

func (s *SampleStream) Next() (tracker.Sample, bool) {
	smp, ok := s.src.NewestSample()
	if !ok {
		return tracker.Sample{}, false
	}
	if s.seen && smp.Time == s.last {
		return tracker.Sample{}, false
	}
	s.last, s.seen = smp.Time, true
	return smp, true
}

// gazeState tracks the latest gaze against an acceptance circle.
type gazeState struct {
	center Point
	radius float64

	gaze  Point
	known bool
	valid bool
}

func (g *gazeState) update(s tracker.Sample) {
	g.known = true
	g.valid = s.Valid()
	if g.valid {
		g.gaze = Point{X: s.X, Y: s.Y}
	}
}

// classify returns whether the current gaze is inside and whether there is
// any gaze to judge yet. Missing data counts as outside.
func (g *gazeState) classify() (inside, known bool) {
	if !g.known {
		return false, false
	}
	return g.valid && !Outside(g.center, g.gaze, g.radius), true
}

func (g *gazeState) overlay(show bool) Overlay {
	inside, _ := g.classify()
	return Overlay{
		Show:    show,
		Center:  g.center,
		Radius:  g.radius,
		Gaze:    g.gaze,
		HasGaze: g.known && g.valid,
		Inside:  inside,
	}
}
