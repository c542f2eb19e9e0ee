package task

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
)

type EventLogEntry struct {
	Trial    int
	Event    string
	OnsetMS  uint64
	OffsetMS uint64
	Samples  int
	Outside  int
	Rewarded bool
}

// EventLog keeps one row per fixation attempt and per trial for the
// results file.
type EventLog struct {
	SessionID string
	Entries   []EventLogEntry
}

func (l *EventLog) LogFixation(trial int, res GateResult, start uint64) {
	event := "FIXATION_FAIL"
	switch {
	case res.Passed:
		event = "FIXATION_PASS"
	case res.Interrupt != KeyNone:
		event = "FIXATION_INTERRUPTED"
	}
	l.Entries = append(l.Entries, EventLogEntry{
		Trial:    trial,
		Event:    event,
		OnsetMS:  start,
		OffsetMS: start + res.Elapsed,
		Outside:  res.Outside,
	})
}

func (l *EventLog) LogTrial(res TrialResult) {
	l.Entries = append(l.Entries, EventLogEntry{
		Trial:    res.Trial.Index,
		Event:    "TRIAL_" + strings.ToUpper(res.Outcome.String()),
		OnsetMS:  res.Onset,
		OffsetMS: res.Offset,
		Samples:  res.Samples,
		Outside:  res.Outside,
		Rewarded: res.Rewarded,
	})
}

// Trials returns the trial rows in order.
func (l *EventLog) Trials() []EventLogEntry {
	var out []EventLogEntry
	for _, e := range l.Entries {
		if strings.HasPrefix(e.Event, "TRIAL_") {
			out = append(out, e)
		}
	}
	return out
}

func (l *EventLog) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"session", "trial", "event", "onset_ms", "offset_ms", "samples", "outside", "rewarded"})
	for _, e := range l.Entries {
		w.Write([]string{
			l.SessionID,
			strconv.Itoa(e.Trial),
			e.Event,
			strconv.FormatUint(e.OnsetMS, 10),
			strconv.FormatUint(e.OffsetMS, 10),
			strconv.Itoa(e.Samples),
			strconv.Itoa(e.Outside),
			strconv.FormatBool(e.Rewarded),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
