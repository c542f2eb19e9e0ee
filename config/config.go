// Package config holds the experiment settings: file locations, device
// ports, display and timing. Settings load from YAML over Default and are
// checked with Validate before a session starts.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YitingChang/eye-tracking/device"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("rgb", validateRGB)
}

// validateRGB accepts "R,G,B" and "R,G,B,A" with components in 0-255.
func validateRGB(fl validator.FieldLevel) bool {
	_, err := ParseRGB(fl.Field().String())
	return err == nil
}

// ParseRGB splits a color string into its components. Alpha defaults to 255.
func ParseRGB(s string) ([4]uint8, error) {
	c := [4]uint8{0, 0, 0, 255}
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return c, fmt.Errorf("color %q: want R,G,B[,A]", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return c, fmt.Errorf("color %q: %w", s, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

type Config struct {
	TrialFile   string `yaml:"trial_file" validate:"required"`
	ImageDir    string `yaml:"image_dir"`
	DataFile    string `yaml:"data_file" validate:"required"`
	ResultsFile string `yaml:"results_file"`

	SuccessSound      string `yaml:"success_sound"`
	ErrorSound        string `yaml:"error_sound"`
	CalibrationTarget string `yaml:"calibration_target"`
	// FontFile is the setup form font; empty picks a system font.
	FontFile string `yaml:"font_file"`

	Tracker TrackerConfig `yaml:"tracker"`
	Reward  RewardConfig  `yaml:"reward"`
	Markers MarkerConfig  `yaml:"markers"`
	Display DisplayConfig `yaml:"display"`
	Timing  TimingConfig  `yaml:"timing"`

	ShowGaze    bool   `yaml:"show_gaze"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type TrackerConfig struct {
	// Address of the tracker host; empty or unreachable falls back to the
	// pointer-driven loopback.
	Address         string `yaml:"address"`
	SampleRate      int    `yaml:"sample_rate" validate:"oneof=250 500 1000 2000"`
	CalibrationType string `yaml:"calibration_type" validate:"oneof=H3 HV3 HV5 HV9 HV13"`
	EDFFile         string `yaml:"edf_file" validate:"max=12"`
	// Replay plays back a data file instead of connecting.
	Replay string `yaml:"replay"`
}

type RewardConfig struct {
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud" validate:"gt=0"`
	PulseMS int    `yaml:"pulse_ms" validate:"gt=0"`
}

type MarkerConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud" validate:"gt=0"`
}

type DisplayConfig struct {
	Width         int    `yaml:"width" validate:"gt=0"`
	Height        int    `yaml:"height" validate:"gt=0"`
	Fullscreen    bool   `yaml:"fullscreen"`
	VSync         bool   `yaml:"vsync"`
	FontSize      int    `yaml:"font_size" validate:"gt=0"`
	Background    string `yaml:"background" validate:"rgb"`
	FixationColor string `yaml:"fixation_color" validate:"rgb"`
	MarkerColor   string `yaml:"marker_color" validate:"rgb"`
}

// TimingConfig durations are in milliseconds, intervals in whole seconds.
type TimingConfig struct {
	StimDuration   int     `yaml:"stim_duration_ms" validate:"gt=0"`
	FixationWindow int     `yaml:"fixation_window_ms" validate:"gt=0"`
	FixationDwell  int     `yaml:"fixation_dwell_ms" validate:"gt=0,ltefield=FixationWindow"`
	FixationRadius float64 `yaml:"fixation_radius" validate:"gt=0"`
	TrialRadius    float64 `yaml:"trial_radius" validate:"gt=0"`
	MaxOutside     int     `yaml:"max_outside" validate:"gte=0"`
	MinITI         int     `yaml:"min_iti_s" validate:"gte=0"`
	MaxITI         int     `yaml:"max_iti_s" validate:"gtefield=MinITI"`
}

func Default() *Config {
	return &Config{
		TrialFile:         "trialBlock.csv",
		ImageDir:          "images",
		DataFile:          "testData.txt",
		ResultsFile:       "results.csv",
		SuccessSound:      "qbeep.wav",
		ErrorSound:        "error.wav",
		CalibrationTarget: "images/sm.jpg",
		Tracker: TrackerConfig{
			Address:         "100.1.1.1",
			SampleRate:      500,
			CalibrationType: "HV5",
			EDFFile:         "test.edf",
		},
		Reward: RewardConfig{
			Device:  device.DefaultRewardDevice,
			Baud:    device.DefaultRewardBaud,
			PulseMS: device.DefaultPulseMS,
		},
		Markers: MarkerConfig{Baud: device.DefaultMarkerBaud},
		Display: DisplayConfig{
			Width:         1920,
			Height:        1080,
			Fullscreen:    true,
			VSync:         true,
			FontSize:      18,
			Background:    "128,128,128",
			FixationColor: "255,255,255",
			MarkerColor:   "255,255,255",
		},
		Timing: TimingConfig{
			StimDuration:   2000,
			FixationWindow: 3000,
			FixationDwell:  1000,
			FixationRadius: 200,
			TrialRadius:    200,
			MaxOutside:     500,
			MinITI:         1,
			MaxITI:         3,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Write stores the configuration as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
