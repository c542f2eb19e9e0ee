package engine

import (
	"log/slog"
	"math"
	"path/filepath"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/task"
)

const (
	CornerMarkerSize = 32
	FixationSize     = 8
	GazeDotRadius    = 5
	circleSegments   = 90
)

var (
	windowColor = sdl.Color{R: 200, G: 0, B: 0, A: 255}
	insideColor = sdl.Color{R: 0, G: 200, B: 0, A: 255}
)

// Color converts an "R,G,B[,A]" setting, falling back on invalid input.
func Color(s string, fallback sdl.Color) sdl.Color {
	c, err := config.ParseRGB(s)
	if err != nil {
		return fallback
	}
	return sdl.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// Screen draws the task screens on an SDL renderer and decodes keyboard
// events into task keys. It must be used from the thread that created the
// renderer.
type Screen struct {
	renderer *sdl.Renderer
	w, h     int
	imageDir string
	logger   *slog.Logger

	background sdl.Color
	fixation   sdl.Color
	marker     sdl.Color

	calTarget *sdl.Texture
	calW      float32
	calH      float32

	mouseX, mouseY float64
	quit           bool
}

func NewScreen(renderer *sdl.Renderer, cfg *config.Config, logger *slog.Logger) *Screen {
	s := &Screen{
		renderer:   renderer,
		w:          cfg.Display.Width,
		h:          cfg.Display.Height,
		imageDir:   cfg.ImageDir,
		logger:     logger,
		background: Color(cfg.Display.Background, sdl.Color{R: 128, G: 128, B: 128, A: 255}),
		fixation:   Color(cfg.Display.FixationColor, sdl.Color{R: 255, G: 240, B: 255, A: 255}),
		marker:     Color(cfg.Display.MarkerColor, sdl.Color{R: 255, G: 255, B: 255, A: 255}),
		mouseX:     float64(cfg.Display.Width) / 2,
		mouseY:     float64(cfg.Display.Height) / 2,
	}
	if cfg.CalibrationTarget != "" {
		tex, err := img.LoadTexture(renderer, cfg.CalibrationTarget)
		if err != nil {
			logger.Warn("calibration target picture unavailable, drawing a disc", "path", cfg.CalibrationTarget, "err", err)
		} else {
			s.calTarget = tex
			s.calW, s.calH, _ = tex.Size()
		}
	}
	return s
}

func (s *Screen) Destroy() {
	if s.calTarget != nil {
		s.calTarget.Destroy()
		s.calTarget = nil
	}
}

func (s *Screen) Size() (int, int) { return s.w, s.h }

type texture struct {
	tex *sdl.Texture
}

func (t *texture) Release() {
	if t.tex != nil {
		t.tex.Destroy()
		t.tex = nil
	}
}

// LoadImage loads a stimulus from the image directory.
func (s *Screen) LoadImage(name string) (task.Image, error) {
	tex, err := img.LoadTexture(s.renderer, filepath.Join(s.imageDir, name))
	if err != nil {
		return nil, err
	}
	return &texture{tex: tex}, nil
}

func (s *Screen) clear() {
	c := s.background
	s.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	s.renderer.Clear()
}

func (s *Screen) ShowBlank() {
	s.clear()
	s.renderer.Present()
}

func (s *Screen) drawFixation() {
	c := s.fixation
	s.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	r := sdl.FRect{
		X: float32(s.w)/2 - FixationSize/2,
		Y: float32(s.h)/2 - FixationSize/2,
		W: FixationSize,
		H: FixationSize,
	}
	s.renderer.RenderFillRect(&r)
}

func (s *Screen) ShowFixation(o task.Overlay) {
	s.clear()
	s.drawFixation()
	s.drawOverlay(o)
	s.renderer.Present()
}

// ShowStimulus stretches img over the whole screen and adds the photodiode
// marker in the given corner.
func (s *Screen) ShowStimulus(image task.Image, corner task.Corner, o task.Overlay) {
	s.clear()
	if t, ok := image.(*texture); ok && t.tex != nil {
		s.renderer.RenderTexture(t.tex, nil, nil)
	}

	c := s.marker
	s.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	m := sdl.FRect{Y: float32(s.h - CornerMarkerSize), W: CornerMarkerSize, H: CornerMarkerSize}
	if corner == task.CornerBottomRight {
		m.X = float32(s.w - CornerMarkerSize)
	}
	s.renderer.RenderFillRect(&m)

	s.drawFixation()
	s.drawOverlay(o)
	s.renderer.Present()
}

func (s *Screen) ShowCalibration(target task.Point, visible bool) {
	s.clear()
	if visible {
		if s.calTarget != nil {
			dst := sdl.FRect{
				X: float32(target.X) - s.calW/2,
				Y: float32(target.Y) - s.calH/2,
				W: s.calW,
				H: s.calH,
			}
			s.renderer.RenderTexture(s.calTarget, nil, &dst)
		} else {
			s.fillCircle(target, 10, s.fixation)
		}
	}
	s.renderer.Present()
}

func (s *Screen) drawOverlay(o task.Overlay) {
	if !o.Show {
		return
	}
	s.strokeCircle(o.Center, o.Radius, windowColor)
	if o.HasGaze {
		c := windowColor
		if o.Inside {
			c = insideColor
		}
		s.fillCircle(o.Gaze, GazeDotRadius, c)
	}
}

func (s *Screen) strokeCircle(center task.Point, r float64, c sdl.Color) {
	s.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	px, py := center.X+r, center.Y
	for i := 1; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		x, y := center.X+r*math.Cos(a), center.Y+r*math.Sin(a)
		s.renderer.RenderLine(float32(px), float32(py), float32(x), float32(y))
		px, py = x, y
	}
}

func (s *Screen) fillCircle(center task.Point, r float64, c sdl.Color) {
	if math.IsNaN(center.X) || math.IsNaN(center.Y) {
		return
	}
	s.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	for dy := -r; dy <= r; dy++ {
		dx := math.Sqrt(r*r - dy*dy)
		y := float32(center.Y + dy)
		s.renderer.RenderLine(float32(center.X-dx), y, float32(center.X+dx), y)
	}
}

// PollKeys drains the SDL event queue. The last pointer position is kept
// for the loopback tracker.
func (s *Screen) PollKeys() []task.Key {
	var keys []task.Key
	var e sdl.Event
	for sdl.PollEvent(&e) {
		switch e.Type {
		case sdl.EVENT_QUIT:
			keys = append(keys, task.KeyTerminate)
		case sdl.EVENT_MOUSE_MOTION:
			me := e.MouseMotionEvent()
			s.mouseX, s.mouseY = float64(me.X), float64(me.Y)
		case sdl.EVENT_KEY_DOWN:
			ke := e.KeyboardEvent()
			if ke.Repeat {
				continue
			}
			if k := mapKey(ke.Key, ke.Mod); k != task.KeyNone {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func mapKey(k sdl.Keycode, mod sdl.Keymod) task.Key {
	if k == sdl.K_C && mod&sdl.KMOD_CTRL != 0 {
		return task.KeyTerminate
	}
	switch k {
	case sdl.K_R:
		return task.KeyRun
	case sdl.K_C:
		return task.KeyCalibrate
	case sdl.K_RETURN, sdl.K_KP_ENTER:
		return task.KeyAccept
	case sdl.K_O:
		return task.KeyExitSetup
	case sdl.K_P:
		return task.KeyPause
	case sdl.K_Q:
		return task.KeyQuit
	case sdl.K_G:
		return task.KeyToggleGaze
	case sdl.K_ESCAPE:
		return task.KeySkip
	case sdl.K_SPACE:
		return task.KeyEnd
	}
	return task.KeyNone
}

// Pointer reports the last mouse position seen by PollKeys.
func (s *Screen) Pointer() (float64, float64) {
	return s.mouseX, s.mouseY
}

// Clock is the SDL millisecond clock.
type Clock struct{}

func (Clock) Ticks() uint64   { return sdl.Ticks() }
func (Clock) Delay(ms uint32) { sdl.Delay(ms) }
