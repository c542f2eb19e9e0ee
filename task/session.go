package task

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/YitingChang/eye-tracking/tracker"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingFixation
	StateRunningTrial
	StatePaused
	StateCalibrating
	StateTerminated
)

var stateNames = [...]string{"idle", "awaiting_fixation", "running_trial", "paused", "calibrating", "terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// pausePollMS is the key polling period while paused.
const pausePollMS = 10

// hostClearMS is waited after clearing the tracker host screen on close.
const hostClearMS = 500

type SessionConfig struct {
	ID          string
	TrialFile   string
	DataFile    string
	ResultsFile string

	Gate   GateConfig
	Runner RunnerConfig
	// Inter-trial interval bounds in whole seconds.
	MinITI, MaxITI int
}

type SessionOption func(*Session)

// WithRand sets the source used to draw inter-trial intervals.
func WithRand(r *rand.Rand) SessionOption {
	return func(s *Session) { s.rng = r }
}

// WithDataFile supplies an already open data file instead of opening
// SessionConfig.DataFile on the first block.
func WithDataFile(d *DataFile) SessionOption {
	return func(s *Session) { s.data = d }
}

// Session sequences fixation gate and trial runner over a trial block,
// driven by the keyboard. It is not safe for concurrent use.
type Session struct {
	env    *Env
	cfg    SessionConfig
	gate   Gate
	runner Runner
	rng    *rand.Rand

	state  State
	resume State

	block    *Block
	index    int
	data     *DataFile
	events   *EventLog
	itiUntil uint64
	closed   bool
}

func NewSession(env *Env, cfg SessionConfig, opts ...SessionOption) *Session {
	env.fill()
	s := &Session{
		env:    env,
		cfg:    cfg,
		gate:   Gate{Config: cfg.Gate},
		runner: Runner{Config: cfg.Runner},
		events: &EventLog{SessionID: cfg.ID},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	sessionState.Set(float64(StateIdle))
	return s
}

func (s *Session) State() State { return s.state }

// Index is the position of the current trial within the loaded block.
func (s *Session) Index() int { return s.index }

func (s *Session) Events() *EventLog { return s.events }

// Run steps the session until it terminates, then tears it down.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()
	for s.state != StateTerminated {
		s.Step(ctx)
	}
	return s.Close()
}

// Step performs one iteration of the current state.
func (s *Session) Step(ctx context.Context) {
	if ctx.Err() != nil && s.state != StateTerminated {
		if s.state == StateCalibrating {
			s.exitCalibration()
		}
		s.terminate("interrupted")
		return
	}

	switch s.state {
	case StateIdle:
		s.stepIdle()
	case StateAwaitingFixation:
		s.stepAwaitingFixation(ctx)
	case StateRunningTrial:
		s.stepRunningTrial(ctx)
	case StatePaused:
		s.stepPaused()
	case StateCalibrating:
		s.stepCalibrating()
	}
}

func (s *Session) setState(next State) {
	if next == s.state {
		return
	}
	s.env.Logger.Debug("session state", "from", s.state, "to", next)
	s.state = next
	sessionState.Set(float64(next))
}

func (s *Session) pause(resume State) {
	s.env.Logger.Info("pausing")
	s.resume = resume
	s.setState(StatePaused)
}

func (s *Session) terminate(reason string) {
	s.env.Logger.Info("session terminating", "reason", reason)
	s.setState(StateTerminated)
}

// common handles the keys every waiting state shares. It reports whether
// the state changed.
func (s *Session) common(k Key) bool {
	switch k {
	case KeyToggleGaze:
		s.env.ShowGaze = !s.env.ShowGaze
	case KeyPause:
		s.pause(s.state)
		return true
	case KeyQuit:
		s.terminate("quit")
		return true
	case KeyTerminate:
		s.terminate("terminate")
		return true
	}
	return false
}

func (s *Session) stepIdle() {
	for _, k := range s.env.Keys.PollKeys() {
		switch k {
		case KeyRun:
			s.startBlock()
		case KeyCalibrate:
			s.enterCalibration()
		default:
			s.common(k)
		}
		if s.state != StateIdle {
			return
		}
	}
	s.env.Display.ShowBlank()
	s.env.frame()
}

func (s *Session) startBlock() {
	block, err := LoadBlock(s.cfg.TrialFile)
	if err != nil {
		s.env.Logger.Error("load trial block", "err", err)
		return
	}
	if s.data == nil {
		d, err := OpenDataFile(s.cfg.DataFile)
		if err != nil {
			s.env.Logger.Error("open data file", "path", s.cfg.DataFile, "err", err)
			return
		}
		s.data = d
	}
	s.block, s.index = block, 0
	s.env.Logger.Info("trial block loaded", "path", block.Path, "trials", len(block.Trials))
	s.scheduleITI()
	s.setState(StateAwaitingFixation)
}

func (s *Session) scheduleITI() {
	lo, hi := s.cfg.MinITI, s.cfg.MaxITI
	if hi < lo {
		hi = lo
	}
	sec := lo + s.rng.IntN(hi-lo+1)
	s.itiUntil = s.env.Clock.Ticks() + uint64(sec)*1000
}

func (s *Session) stepAwaitingFixation(ctx context.Context) {
	if s.env.Clock.Ticks() < s.itiUntil {
		for _, k := range s.env.Keys.PollKeys() {
			if s.common(k) {
				return
			}
		}
		s.env.Display.ShowBlank()
		s.env.frame()
		return
	}

	trial := s.block.Trials[s.index]
	start := s.env.Clock.Ticks()
	res, err := s.gate.Run(ctx, s.env, s.env.center())
	if err != nil {
		fixationAttempts.WithLabelValues("error").Inc()
		if errors.Is(err, tracker.ErrConnectionLost) {
			s.env.Logger.Error("fixation gate", "trial", trial.Index, "err", err)
			s.terminate("tracker connection lost")
			return
		}
		s.env.Logger.Error("fixation gate", "trial", trial.Index, "err", err)
		s.scheduleITI()
		return
	}
	s.events.LogFixation(trial.Index, res, start)

	switch res.Interrupt {
	case KeyPause:
		fixationAttempts.WithLabelValues("interrupted").Inc()
		s.pause(StateAwaitingFixation)
	case KeyQuit, KeyTerminate:
		fixationAttempts.WithLabelValues("interrupted").Inc()
		s.terminate(res.Interrupt.String())
	default:
		if res.Passed {
			fixationAttempts.WithLabelValues("passed").Inc()
			s.setState(StateRunningTrial)
			return
		}
		fixationAttempts.WithLabelValues("failed").Inc()
		s.env.Logger.Info("fixation failed, retrying", "trial", trial.Index, "outside", res.Outside)
		s.scheduleITI()
	}
}

func (s *Session) stepRunningTrial(ctx context.Context) {
	trial := s.block.Trials[s.index]
	res := s.runner.Run(ctx, s.env, s.data, trial)

	s.events.LogTrial(res)
	trialsTotal.WithLabelValues(res.Outcome.String()).Inc()
	if res.Rewarded {
		rewardsTotal.Inc()
	}
	if res.Offset > res.Onset && res.Onset > 0 {
		trialDuration.Observe(float64(res.Offset-res.Onset) / 1000)
	}

	log := s.env.Logger.With("trial", trial.Index, "outcome", res.Outcome, "samples", res.Samples)
	if res.Err != nil {
		log.Warn("trial finished", "err", res.Err)
	} else {
		log.Info("trial finished")
	}

	if res.Outcome == OutcomeTerminated {
		s.terminate("terminate")
		return
	}
	if errors.Is(res.Err, tracker.ErrConnectionLost) {
		s.terminate("tracker connection lost")
		return
	}

	s.index++
	next := StateAwaitingFixation
	if s.index >= len(s.block.Trials) {
		s.env.Logger.Info("trial block completed", "trials", len(s.block.Trials))
		next = StateIdle
	} else {
		s.scheduleITI()
	}
	s.setState(next)

	for _, k := range res.Deferred {
		switch k {
		case KeyPause:
			if s.state == StatePaused {
				s.setState(s.resume)
			} else {
				s.pause(next)
			}
		case KeyQuit:
			s.terminate("quit")
			return
		}
	}
}

func (s *Session) stepPaused() {
	for _, k := range s.env.Keys.PollKeys() {
		switch k {
		case KeyPause:
			s.env.Logger.Info("resuming", "state", s.resume)
			s.setState(s.resume)
			return
		case KeyQuit, KeyTerminate:
			if s.resume == StateCalibrating {
				s.exitCalibration()
			}
			s.terminate(k.String())
			return
		case KeyToggleGaze:
			s.env.ShowGaze = !s.env.ShowGaze
		}
	}
	s.env.Display.ShowBlank()
	s.env.Clock.Delay(pausePollMS)
}

func (s *Session) enterCalibration() {
	if err := s.env.Tracker.StartSetup(); err != nil {
		s.env.Logger.Error("start calibration setup", "err", err)
		return
	}
	s.env.Logger.Info("calibration setup")
	s.setState(StateCalibrating)
}

func (s *Session) exitCalibration() {
	if err := s.env.Tracker.ExitSetup(); err != nil {
		s.env.Logger.Warn("exit calibration setup", "err", err)
	}
	if s.state == StateCalibrating {
		s.setState(StateIdle)
	}
}

func (s *Session) stepCalibrating() {
	t := s.env.Tracker
	for _, k := range s.env.Keys.PollKeys() {
		var err error
		switch k {
		case KeyCalibrate:
			err = t.SetupKey(tracker.SetupCalibrate)
		case KeyAccept:
			err = t.SetupKey(tracker.SetupAccept)
		case KeyExitSetup:
			s.exitCalibration()
			return
		case KeyQuit, KeyTerminate:
			s.exitCalibration()
			s.terminate(k.String())
			return
		default:
			if s.common(k) {
				return
			}
		}
		if err != nil {
			s.env.Logger.Error("calibration key", "key", k, "err", err)
		}
	}

	if t.SetupDone() {
		s.env.Logger.Info("calibration accepted")
		s.exitCalibration()
		return
	}
	x, y, visible := t.CalibrationTarget()
	s.env.Display.ShowCalibration(Point{X: x, Y: y}, visible)
	s.env.frame()
}

// Close releases every session resource. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.setState(StateTerminated)

	var errs []error
	if s.env.Tracker.IsRecording() == nil {
		if err := s.env.Tracker.StopRecording(); err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		}
	}
	if s.env.Tracker.Connected() {
		if err := s.env.Tracker.SendCommand(tracker.CmdClearScreen); err != nil {
			s.env.Logger.Warn("clear tracker host screen", "err", err)
		} else {
			s.env.Clock.Delay(hostClearMS)
		}
	}
	if s.data != nil {
		if err := s.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data file: %w", err))
		}
	}
	if s.cfg.ResultsFile != "" && len(s.events.Entries) > 0 {
		if err := s.events.Save(s.cfg.ResultsFile); err != nil {
			errs = append(errs, fmt.Errorf("save results: %w", err))
		} else {
			s.env.Logger.Info("results saved", "path", s.cfg.ResultsFile)
		}
	}
	if err := s.env.Reward.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reward port: %w", err))
	}
	if err := s.env.Marker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close marker port: %w", err))
	}
	if err := s.env.Tracker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tracker: %w", err))
	}
	return errors.Join(errs...)
}
