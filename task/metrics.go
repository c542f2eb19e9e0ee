package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// trialsTotal counts finished trials by outcome.
	trialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eyetask_trials_total",
		Help: "Trials finished, by outcome",
	}, []string{"outcome"})

	// fixationAttempts counts fixation gate runs by result.
	// Labels: "passed", "failed", "interrupted", "error"
	fixationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eyetask_fixation_attempts_total",
		Help: "Fixation gate runs, by result",
	}, []string{"result"})

	rewardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eyetask_rewards_total",
		Help: "Reward pulses sent",
	})

	samplesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eyetask_samples_written_total",
		Help: "Gaze samples written to the data file",
	})

	trialDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eyetask_trial_duration_seconds",
		Help:    "Time from image onset to trial end",
		Buckets: []float64{0.5, 1, 2, 3, 4, 5, 8},
	})

	sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eyetask_session_state",
		Help: "Current session state (0 idle, 1 awaiting fixation, 2 running trial, 3 paused, 4 calibrating, 5 terminated)",
	})
)
