package engine

import (
	"bytes"
	"testing"
	"time"
	"unsafe"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/stretchr/testify/assert"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/task"
)

func TestNewSessionConfig(t *testing.T) {
	cfg := config.Default()
	sc := NewSessionConfig(cfg, "abc", "results_x.csv")

	assert.Equal(t, "abc", sc.ID)
	assert.Equal(t, "trialBlock.csv", sc.TrialFile)
	assert.Equal(t, "results_x.csv", sc.ResultsFile)
	assert.Equal(t, task.GateConfig{Window: 3000, Dwell: 1000, Radius: 200}, sc.Gate)
	assert.Equal(t, task.RunnerConfig{StimDuration: 2000, Radius: 200, MaxOutside: 500}, sc.Runner)
	assert.Equal(t, 1, sc.MinITI)
	assert.Equal(t, 3, sc.MaxITI)
}

func TestTimestampedName(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "out/results_20260314-092653.csv", TimestampedName("out/results.csv", now))
	assert.Equal(t, "results_20260314-092653", TimestampedName("results", now))
	assert.Empty(t, TimestampedName("", now))
}

func TestColor(t *testing.T) {
	fallback := sdl.Color{R: 1, G: 2, B: 3, A: 4}
	assert.Equal(t, sdl.Color{R: 128, G: 128, B: 128, A: 255}, Color("128,128,128", fallback))
	assert.Equal(t, sdl.Color{R: 10, G: 20, B: 30, A: 40}, Color("10,20,30,40", fallback))
	assert.Equal(t, fallback, Color("grey", fallback))
}

func TestMapKey(t *testing.T) {
	tests := []struct {
		key  sdl.Keycode
		mod  sdl.Keymod
		want task.Key
	}{
		{sdl.K_R, 0, task.KeyRun},
		{sdl.K_C, 0, task.KeyCalibrate},
		{sdl.K_C, sdl.KMOD_LCTRL, task.KeyTerminate},
		{sdl.K_RETURN, 0, task.KeyAccept},
		{sdl.K_O, 0, task.KeyExitSetup},
		{sdl.K_P, 0, task.KeyPause},
		{sdl.K_Q, 0, task.KeyQuit},
		{sdl.K_G, 0, task.KeyToggleGaze},
		{sdl.K_ESCAPE, 0, task.KeySkip},
		{sdl.K_SPACE, 0, task.KeyEnd},
		{sdl.K_X, 0, task.KeyNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapKey(tt.key, tt.mod), "key %d mod %d", tt.key, tt.mod)
	}
}

func pcm(samples ...int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*2)
	return append([]byte(nil), b...)
}

func TestMixIntoSaturates(t *testing.T) {
	res := &SoundResource{Data: pcm(30000, -30000, 5, 7)}
	s := &ActiveSound{Resource: res, Active: true}
	dst := []int16{10000, -10000, 1, 1}

	mixInto(dst, s, 4)
	assert.Equal(t, []int16{32767, -32768, 1, 1}, dst)
	assert.Equal(t, uint32(4), s.PlayPos)
	assert.True(t, s.Active)

	mixInto(dst[2:], s, 100)
	assert.Equal(t, []int16{32767, -32768, 6, 8}, dst)
	assert.False(t, s.Active, "finished sounds free their slot")
}

func TestMixerPlay(t *testing.T) {
	m := NewAudioMixer()
	assert.False(t, m.Play(nil))
	assert.False(t, m.Play(&SoundResource{}))

	res := &SoundResource{Data: pcm(1, 2)}
	for i := 0; i < MaxActiveSounds; i++ {
		assert.True(t, m.Play(res))
	}
	assert.False(t, m.Play(res), "all slots busy")
}

func TestFeedbackPlaysMappedSound(t *testing.T) {
	m := NewAudioMixer()
	ok := &SoundResource{Data: pcm(1)}
	f := NewFeedback(m, ok, nil)

	f.Play(task.SoundError)
	assert.False(t, m.Slots[0].Active, "missing sound is silent")
	f.Play(task.SoundSuccess)
	assert.True(t, m.Slots[0].Active)
	assert.Same(t, ok, m.Slots[0].Resource)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	NewLogger(&buf, "bogus").Info("default level")
	assert.Contains(t, buf.String(), "default level")
}

func TestFontPath(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, GetDefaultFontPath(), FontPath(cfg))

	cfg.FontFile = "fonts/custom.ttf"
	assert.Equal(t, "fonts/custom.ttf", FontPath(cfg))
	assert.Equal(t, 18, cfg.Display.FontSize)
}
