package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/YitingChang/eye-tracking/config"
)

func GetDefaultFontPath() string {
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".ttf" || ext == ".ttc" {
					return filepath.Join("fonts", entry.Name())
				}
			}
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{"C:\\Windows\\Fonts\\arial.ttf"}
	case "darwin":
		paths = []string{"/System/Library/Fonts/Helvetica.ttc"}
	default:
		paths = []string{
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FontPath returns the configured font file, or a system font when none is
// set.
func FontPath(cfg *config.Config) string {
	if cfg.FontFile != "" {
		return cfg.FontFile
	}
	return GetDefaultFontPath()
}

// mixSpec is the format every sound is converted to before mixing.
var mixSpec = sdl.AudioSpec{Format: sdl.AUDIO_S16, Channels: 2, Freq: 44100}

type SoundResource struct {
	Data []byte
	Spec sdl.AudioSpec
}

// LoadSound reads a WAV file and converts it to the mixer format.
func LoadSound(path string) (*SoundResource, error) {
	spec := &sdl.AudioSpec{}
	data, err := sdl.LoadWAV(path, spec)
	if err != nil {
		return nil, fmt.Errorf("load sound %s: %w", path, err)
	}
	if spec.Format == mixSpec.Format && spec.Channels == mixSpec.Channels && spec.Freq == mixSpec.Freq {
		return &SoundResource{Data: data, Spec: *spec}, nil
	}
	converted, err := sdl.ConvertAudioSamples(spec, data, &mixSpec)
	if err != nil {
		return nil, fmt.Errorf("convert sound %s: %w", path, err)
	}
	return &SoundResource{Data: converted, Spec: mixSpec}, nil
}

// SoundCache loads each sound file once.
type SoundCache struct {
	entries map[string]*SoundResource
}

func NewSoundCache() *SoundCache {
	return &SoundCache{entries: make(map[string]*SoundResource)}
}

// Load returns the cached sound for path. Failures are cached as nil so a
// missing file is reported once.
func (c *SoundCache) Load(path string) (*SoundResource, error) {
	if res, ok := c.entries[path]; ok {
		return res, nil
	}
	res, err := LoadSound(path)
	c.entries[path] = res
	return res, err
}
