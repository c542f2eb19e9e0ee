package tracker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
)

// Replay plays back a recorded sample sequence against a clock. Playback
// restarts from the first sample on every StartRecording, so the same
// sequence produces the same gaze stream on every recording window.
type Replay struct {
	mu sync.Mutex

	samples   []Sample
	clock     Clock
	start     uint64
	recording bool
	closed    bool
	inSetup   bool
}

func NewReplay(samples []Sample, clock Clock) *Replay {
	s := make([]Sample, len(samples))
	copy(s, samples)
	return &Replay{samples: s, clock: clock}
}

// LoadReplay reads the sample lines of a data file. Trial begin markers
// ("<index>, nan, nan, nan") are skipped.
func LoadReplay(path string, clock Clock) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewReplay(samples, clock), nil
}

// ReadSamples parses data file records, keeping sample lines in order and
// dropping any whose timestamp does not increase.
func ReadSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var samples []Sample
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 4 || record[1] == "nan" {
			continue
		}

		t, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp: %v", line, err)
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %v", line, record[i+1], err)
			}
		}
		if n := len(samples); n > 0 && t <= samples[n-1].Time {
			continue
		}
		samples = append(samples, Sample{Time: t, X: vals[0], Y: vals[1], Pupil: vals[2]})
	}
	return samples, nil
}

func (r *Replay) StartRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrConnectionLost
	}
	r.start = r.clock.Ticks()
	r.recording = true
	return nil
}

func (r *Replay) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	return nil
}

func (r *Replay) IsRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return ErrConnectionLost
	case !r.recording:
		return ErrNotRecording
	}
	return nil
}

func (r *Replay) NewestSample() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || len(r.samples) == 0 {
		return Sample{}, false
	}
	elapsed := r.clock.Ticks() - r.start
	first := r.samples[0].Time
	i := sort.Search(len(r.samples), func(i int) bool {
		return r.samples[i].Time-first > elapsed
	})
	if i == 0 {
		return Sample{}, false
	}
	return r.samples[i-1], true
}

func (r *Replay) SendCommand(string) error { return nil }

func (r *Replay) StartSetup() error {
	r.mu.Lock()
	r.inSetup = true
	r.mu.Unlock()
	return nil
}

func (r *Replay) SetupKey(SetupKey) error { return nil }

func (r *Replay) CalibrationTarget() (float64, float64, bool) { return 0, 0, false }

// SetupDone is true as soon as setup starts: there is nothing to calibrate.
func (r *Replay) SetupDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inSetup
}

func (r *Replay) ExitSetup() error {
	r.mu.Lock()
	r.inSetup = false
	r.mu.Unlock()
	return nil
}

func (r *Replay) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.recording = false
	return nil
}
