package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const CacheFile = ".eyetask_cache.yaml"

// cache is the subset of settings the setup form remembers between runs.
type cache struct {
	TrialFile     string `yaml:"trial_file"`
	ImageDir      string `yaml:"image_dir"`
	DataFile      string `yaml:"data_file"`
	TrackerAddr   string `yaml:"tracker_address"`
	RewardDevice  string `yaml:"reward_device"`
	MarkerDevice  string `yaml:"marker_device"`
	ScreenWidth   int    `yaml:"screen_w"`
	ScreenHeight  int    `yaml:"screen_h"`
	Fullscreen    bool   `yaml:"fullscreen"`
	ShowGaze      bool   `yaml:"show_gaze"`
	Background    string `yaml:"background"`
	FixationColor string `yaml:"fixation_color"`
}

// SaveCache remembers the setup form choices. Failures are ignored.
func (c *Config) SaveCache(path string) {
	data, err := yaml.Marshal(cache{
		TrialFile:     c.TrialFile,
		ImageDir:      c.ImageDir,
		DataFile:      c.DataFile,
		TrackerAddr:   c.Tracker.Address,
		RewardDevice:  c.Reward.Device,
		MarkerDevice:  c.Markers.Device,
		ScreenWidth:   c.Display.Width,
		ScreenHeight:  c.Display.Height,
		Fullscreen:    c.Display.Fullscreen,
		ShowGaze:      c.ShowGaze,
		Background:    c.Display.Background,
		FixationColor: c.Display.FixationColor,
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

// LoadCache applies remembered choices over c. A missing or unreadable cache
// leaves c unchanged.
func (c *Config) LoadCache(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var v cache
	if err := yaml.Unmarshal(data, &v); err != nil {
		return
	}

	setString := func(dst *string, s string) {
		if s != "" {
			*dst = s
		}
	}
	setString(&c.TrialFile, v.TrialFile)
	setString(&c.ImageDir, v.ImageDir)
	setString(&c.DataFile, v.DataFile)
	setString(&c.Tracker.Address, v.TrackerAddr)
	setString(&c.Reward.Device, v.RewardDevice)
	setString(&c.Markers.Device, v.MarkerDevice)
	setString(&c.Display.Background, v.Background)
	setString(&c.Display.FixationColor, v.FixationColor)
	if v.ScreenWidth > 0 && v.ScreenHeight > 0 {
		c.Display.Width, c.Display.Height = v.ScreenWidth, v.ScreenHeight
	}
	c.Display.Fullscreen = v.Fullscreen
	c.ShowGaze = v.ShowGaze
}
