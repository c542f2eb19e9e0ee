package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YitingChang/eye-tracking/tracker"
)

var testGate = GateConfig{Window: 3000, Dwell: 1000, Radius: 200}

func runGate(t *testing.T, h *harness) GateResult {
	t.Helper()
	g := Gate{Config: testGate}
	res, err := g.Run(context.Background(), h.env, screenCenter)
	require.NoError(t, err)
	assert.ErrorIs(t, h.tracker.IsRecording(), tracker.ErrNotRecording, "recording stopped")
	return res
}

func TestGatePassesOnSteadyFixation(t *testing.T) {
	h := newHarness(gazePath(5000, 2, steady(screenCenter)), nil)
	res := runGate(t, h)
	assert.True(t, res.Passed)
	assert.Equal(t, uint64(1000), res.Elapsed)
	assert.Zero(t, res.Outside)
	assert.Equal(t, 1, h.tracker.starts)
}

func TestGateFailsWhenGazeStaysOutside(t *testing.T) {
	h := newHarness(gazePath(5000, 2, steady(farAway)), nil)
	res := runGate(t, h)
	assert.False(t, res.Passed)
	assert.Equal(t, uint64(3000), res.Elapsed)
	assert.Equal(t, 3000, res.Outside, "every poll counted, none aborts")
}

func TestGateWithoutSamplesFails(t *testing.T) {
	h := newHarness(nil, nil)
	res := runGate(t, h)
	assert.False(t, res.Passed)
	assert.Zero(t, res.Outside)
}

func TestGateDwellMustBeContinuous(t *testing.T) {
	// Inside for 900 ms, a 10 ms excursion, inside for another 900 ms, then
	// away: 1800 ms inside in total but never 1000 ms in a row.
	broken := func(t uint64) Point {
		switch {
		case t < 900:
			return screenCenter
		case t < 910:
			return farAway
		case t < 1810:
			return screenCenter
		}
		return farAway
	}
	h := newHarness(gazePath(5000, 1, broken), nil)
	res := runGate(t, h)
	assert.False(t, res.Passed)
	assert.Equal(t, uint64(3000), res.Elapsed)

	// Same start, but the second stretch is long enough.
	recovered := func(t uint64) Point {
		if t >= 900 && t < 910 {
			return farAway
		}
		return screenCenter
	}
	h = newHarness(gazePath(5000, 1, recovered), nil)
	res = runGate(t, h)
	assert.True(t, res.Passed)
	assert.Equal(t, uint64(1910), res.Elapsed)
	assert.Equal(t, 10, res.Outside)
}

func TestGateDwellMustFitInWindow(t *testing.T) {
	// Fixation only starts at 2100 ms: 900 ms remain in the window.
	late := func(t uint64) Point {
		if t < 2100 {
			return farAway
		}
		return screenCenter
	}
	h := newHarness(gazePath(5000, 1, late), nil)
	res := runGate(t, h)
	assert.False(t, res.Passed)
}

func TestGateBlinkBreaksDwell(t *testing.T) {
	blinking := func(t uint64) Point {
		if t%600 < 20 && t > 0 {
			return blink
		}
		return screenCenter
	}
	h := newHarness(gazePath(5000, 1, blinking), nil)
	res := runGate(t, h)
	assert.False(t, res.Passed)
}

func TestGateIsDeterministic(t *testing.T) {
	path := gazePath(5000, 3, func(t uint64) Point {
		if t < 1500 {
			return farAway
		}
		return screenCenter
	})
	h := newHarness(path, nil)
	first := runGate(t, h)
	second := runGate(t, h)
	assert.Equal(t, first, second)
	assert.True(t, first.Passed)
	assert.Equal(t, 2, h.tracker.starts)
}

func TestGateInterruptedByPause(t *testing.T) {
	polls := 0
	keys := funcKeys(func() []Key {
		polls++
		if polls == 5 {
			return []Key{KeyToggleGaze, KeyPause}
		}
		return nil
	})
	h := newHarness(gazePath(5000, 2, steady(farAway)), keys)
	res := runGate(t, h)
	assert.False(t, res.Passed)
	assert.Equal(t, KeyPause, res.Interrupt)
	assert.True(t, h.env.ShowGaze)
}

func TestGateCancelledContext(t *testing.T) {
	h := newHarness(gazePath(5000, 2, steady(screenCenter)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := Gate{Config: testGate}
	res, err := g.Run(ctx, h.env, screenCenter)
	require.NoError(t, err)
	assert.Equal(t, KeyTerminate, res.Interrupt)
}

func TestGateStartRecordingFailure(t *testing.T) {
	h := newHarness(nil, nil)
	require.NoError(t, h.tracker.Close())
	g := Gate{Config: testGate}
	_, err := g.Run(context.Background(), h.env, screenCenter)
	assert.ErrorIs(t, err, tracker.ErrConnectionLost)
}
