package task

import (
	"context"
	"fmt"

	"github.com/YitingChang/eye-tracking/device"
	"github.com/YitingChang/eye-tracking/tracker"
)

type Outcome int

const (
	// OutcomeSuccess: full duration with fixation held; rewarded.
	OutcomeSuccess Outcome = iota
	// OutcomeEnded: ended early from the keyboard; not rewarded.
	OutcomeEnded
	// OutcomeAborted: gaze left the acceptance window for too long.
	OutcomeAborted
	OutcomeSkipped
	// OutcomeError: missing image, tracker failure or data file failure.
	OutcomeError
	OutcomeTerminated
)

var outcomeNames = [...]string{"success", "ended", "aborted", "skipped", "error", "terminated"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// RunnerConfig times a trial. Durations are in milliseconds.
type RunnerConfig struct {
	StimDuration uint64
	Radius       float64
	MaxOutside   int
}

type TrialResult struct {
	Trial   Trial
	Outcome Outcome
	Err     error

	Onset, Offset uint64
	Samples       int
	Outside       int
	Rewarded      bool
	// Deferred holds session keys pressed during the trial; the session
	// applies them once the trial is over.
	Deferred []Key
}

// Runner presents one trial: image A, then image B, while logging gaze.
type Runner struct {
	Config RunnerConfig
}

// settleMS lets the tracker buffer samples after recording starts and
// before it stops.
const settleMS = 10

const markerPulseMS = 5

func (r *Runner) Run(ctx context.Context, env *Env, data *DataFile, trial Trial) (res TrialResult) {
	env.fill()
	res.Trial = trial
	log := env.Logger.With("trial", trial.Index)

	imgA, err := env.Display.LoadImage(trial.ImageA)
	if err != nil {
		return r.fail(res, fmt.Errorf("load image %s: %w", trial.ImageA, err))
	}
	defer imgA.Release()
	imgB, err := env.Display.LoadImage(trial.ImageB)
	if err != nil {
		return r.fail(res, fmt.Errorf("load image %s: %w", trial.ImageB, err))
	}
	defer imgB.Release()

	if err := env.Tracker.SendCommand(tracker.CmdClearScreen); err != nil {
		log.Warn("clear tracker host screen", "err", err)
	}
	if err := data.BeginTrial(trial.Index); err != nil {
		return r.fail(res, fmt.Errorf("write begin marker: %w", err))
	}
	defer func() {
		if err := data.Flush(); err != nil && res.Err == nil {
			res.Outcome, res.Err = OutcomeError, fmt.Errorf("flush data file: %w", err)
		}
	}()

	if err := env.Tracker.StartRecording(); err != nil {
		return r.fail(res, fmt.Errorf("start recording: %w", err))
	}
	defer func() {
		env.Clock.Delay(settleMS)
		if err := env.Tracker.StopRecording(); err != nil {
			log.Warn("stop recording after trial", "err", err)
		}
		env.Marker.Unset(device.LineImageA + device.LineImageB)
		env.Display.ShowBlank()
		res.Offset = env.Clock.Ticks()
	}()
	env.Clock.Delay(settleMS)

	state := gazeState{center: env.center(), radius: r.Config.Radius}
	stream := NewSampleStream(env.Tracker)
	active, corner := imgA, CornerBottomLeft
	switched := false
	consecutive := 0

	env.Display.ShowStimulus(active, corner, state.overlay(env.ShowGaze))
	res.Onset = env.Clock.Ticks()
	env.Marker.Set(device.LineImageA)
	log.Info("trial started", "image_a", trial.ImageA, "image_b", trial.ImageB)

	for {
		if s, ok := stream.Next(); ok {
			state.update(s)
			written, err := data.Sample(s)
			if err != nil {
				res.Outcome, res.Err = OutcomeError, fmt.Errorf("write sample: %w", err)
				return res
			}
			if written {
				res.Samples++
				samplesWritten.Inc()
			}
		}

		switch inside, known := state.classify(); {
		case inside:
			consecutive = 0
		case known:
			consecutive++
			res.Outside++
		}

		if consecutive > r.Config.MaxOutside {
			env.Sounds.Play(SoundError)
			res.Outcome = OutcomeAborted
			log.Info("gaze left the acceptance window", "outside_polls", consecutive)
			return res
		}

		dt := env.Clock.Ticks() - res.Onset
		if dt >= 2*r.Config.StimDuration {
			env.Sounds.Play(SoundSuccess)
			env.Marker.Set(device.LineReward)
			env.Reward.Fire()
			env.Clock.Delay(markerPulseMS)
			env.Marker.Unset(device.LineReward)
			res.Outcome, res.Rewarded = OutcomeSuccess, true
			return res
		}
		if dt >= r.Config.StimDuration && !switched {
			active, corner, switched = imgB, CornerBottomRight, true
			env.Marker.Unset(device.LineImageA)
			env.Marker.Set(device.LineImageB)
		}
		env.Display.ShowStimulus(active, corner, state.overlay(env.ShowGaze))

		if err := env.Tracker.IsRecording(); err != nil {
			res.Outcome, res.Err = OutcomeError, err
			log.Error("tracker stopped recording", "err", err)
			return res
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeTerminated
			return res
		}
		for _, k := range env.Keys.PollKeys() {
			switch k {
			case KeyEnd:
				res.Outcome = OutcomeEnded
				return res
			case KeySkip:
				res.Outcome = OutcomeSkipped
				return res
			case KeyTerminate:
				res.Outcome = OutcomeTerminated
				return res
			case KeyToggleGaze:
				env.ShowGaze = !env.ShowGaze
			case KeyPause, KeyQuit:
				res.Deferred = append(res.Deferred, k)
			}
		}

		env.frame()
	}
}

func (r *Runner) fail(res TrialResult, err error) TrialResult {
	res.Outcome, res.Err = OutcomeError, err
	return res
}
