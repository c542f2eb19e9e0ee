package task

import (
	"context"
	"fmt"
)

// GateConfig times the fixation gate. Durations are in milliseconds.
type GateConfig struct {
	Window uint64
	Dwell  uint64
	Radius float64
}

type GateResult struct {
	Passed bool
	// Outside counts polls with gaze outside the radius. It never ends the
	// gate early.
	Outside int
	// Interrupt is the session key that cut the gate short, or KeyNone.
	Interrupt Key
	Elapsed   uint64
}

// Gate waits for the subject to hold gaze on a target.
type Gate struct {
	Config GateConfig
}

// Run shows the fixation point at target and polls gaze until the dwell is
// held continuously or the window closes. Recording runs for exactly the
// duration of the call.
func (g *Gate) Run(ctx context.Context, env *Env, target Point) (res GateResult, err error) {
	env.fill()
	if err := env.Tracker.StartRecording(); err != nil {
		return res, fmt.Errorf("start recording: %w", err)
	}
	defer func() {
		if serr := env.Tracker.StopRecording(); serr != nil && err == nil {
			env.Logger.Warn("stop recording after fixation", "err", serr)
		}
	}()

	state := gazeState{center: target, radius: g.Config.Radius}
	stream := NewSampleStream(env.Tracker)

	var (
		inZone    bool
		zoneStart uint64
	)

	env.Display.ShowFixation(state.overlay(env.ShowGaze))
	start := env.Clock.Ticks()

	for {
		dt := env.Clock.Ticks() - start
		res.Elapsed = dt
		if dt >= g.Config.Window {
			break
		}
		if ctx.Err() != nil {
			res.Interrupt = KeyTerminate
			return res, nil
		}

		if s, ok := stream.Next(); ok {
			state.update(s)
		}

		inside, known := state.classify()
		switch {
		case inside:
			if !inZone {
				inZone, zoneStart = true, dt
			}
			if dt-zoneStart >= g.Config.Dwell {
				res.Passed = true
				env.Logger.Debug("fixation held", "elapsed_ms", dt, "outside", res.Outside)
				return res, nil
			}
		case known:
			inZone = false
			res.Outside++
		}

		env.Display.ShowFixation(state.overlay(env.ShowGaze))

		for _, k := range env.Keys.PollKeys() {
			switch k {
			case KeyToggleGaze:
				env.ShowGaze = !env.ShowGaze
			case KeyPause, KeyQuit, KeyTerminate:
				res.Interrupt = k
				return res, nil
			}
		}

		env.frame()
	}

	env.Display.ShowBlank()
	return res, nil
}
