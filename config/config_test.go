package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2000, cfg.Timing.StimDuration)
	assert.Equal(t, 500, cfg.Timing.MaxOutside)
	assert.Equal(t, "/dev/ttyACM0", cfg.Reward.Device)
	assert.Equal(t, 200, cfg.Reward.PulseMS)
}

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eyetask.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trial_file: block2.csv
tracker:
  address: 10.0.0.2
  sample_rate: 1000
timing:
  stim_duration_ms: 1500
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "block2.csv", cfg.TrialFile)
	assert.Equal(t, "10.0.0.2", cfg.Tracker.Address)
	assert.Equal(t, 1000, cfg.Tracker.SampleRate)
	assert.Equal(t, "HV5", cfg.Tracker.CalibrationType, "unset keys keep defaults")
	assert.Equal(t, 1500, cfg.Timing.StimDuration)
	assert.Equal(t, 3000, cfg.Timing.FixationWindow)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trial_fiel: x.csv\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Tracker.SampleRate = 600 }},
		{"calibration type", func(c *Config) { c.Tracker.CalibrationType = "HV7" }},
		{"dwell longer than window", func(c *Config) { c.Timing.FixationDwell = 4000 }},
		{"iti bounds", func(c *Config) { c.Timing.MinITI, c.Timing.MaxITI = 3, 1 }},
		{"color", func(c *Config) { c.Display.Background = "128,128" }},
		{"color range", func(c *Config) { c.Display.FixationColor = "256,0,0" }},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"metrics address", func(c *Config) { c.MetricsAddr = "localhost" }},
		{"no trial file", func(c *Config) { c.TrialFile = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.MetricsAddr = ":9090"
	assert.NoError(t, cfg.Validate())
}

func TestParseRGB(t *testing.T) {
	c, err := ParseRGB("128, 64, 0")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{128, 64, 0, 255}, c)

	c, err = ParseRGB("1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{1, 2, 3, 4}, c)

	_, err = ParseRGB("red")
	assert.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eyetask.yaml")
	cfg := Default()
	cfg.Reward.Device = "/dev/ttyUSB1"
	require.NoError(t, cfg.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFile)

	cfg := Default()
	cfg.LoadCache(path)
	assert.Equal(t, Default(), cfg, "missing cache changes nothing")

	cfg.TrialFile = "blockB.csv"
	cfg.Display.Width, cfg.Display.Height = 1280, 720
	cfg.Display.Fullscreen = false
	cfg.ShowGaze = true
	cfg.SaveCache(path)

	got := Default()
	got.LoadCache(path)
	assert.Equal(t, "blockB.csv", got.TrialFile)
	assert.Equal(t, 1280, got.Display.Width)
	assert.Equal(t, 720, got.Display.Height)
	assert.False(t, got.Display.Fullscreen)
	assert.True(t, got.ShowGaze)
	assert.Equal(t, cfg.Reward.PulseMS, got.Reward.PulseMS)
}
