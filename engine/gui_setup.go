package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"github.com/YitingChang/eye-tracking/config"
)

type resOption struct {
	W, H  int
	Label string
}

var resOptions = []resOption{
	{800, 600, "800x600 (SVGA)"},
	{1024, 768, "1024x768 (XGA)"},
	{1366, 1024, "1366x1024 (SXGA-)"},
	{1920, 1080, "1920x1080 (FHD)"},
	{2560, 1440, "2560x1440 (QHD)"},
	{3840, 2160, "3840x2160 (4K UHD)"},
}

// setupField is one editable path on the setup form.
type setupField struct {
	label  string
	value  *string
	browse func(window *sdl.Window, set func(string))
}

func setupFields(cfg *config.Config) []setupField {
	openFile := func(name, pattern string) func(*sdl.Window, func(string)) {
		return func(window *sdl.Window, set func(string)) {
			filters := []sdl.DialogFileFilter{{Name: name, Pattern: pattern}}
			cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
				if len(fileList) > 0 {
					set(fileList[0])
				}
			})
			sdl.ShowOpenFileDialog(cb, window, filters, "", false)
		}
	}
	return []setupField{
		{"Trial block CSV:", &cfg.TrialFile, openFile("CSV Files", "csv")},
		{"Image directory:", &cfg.ImageDir, func(window *sdl.Window, set func(string)) {
			cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
				if len(fileList) > 0 {
					set(fileList[0])
				}
			})
			sdl.ShowOpenFolderDialog(cb, window, "", false)
		}},
		{"Gaze data file:", &cfg.DataFile, func(window *sdl.Window, set func(string)) {
			cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
				if len(fileList) > 0 {
					set(fileList[0])
				}
			})
			sdl.ShowSaveFileDialog(cb, window, nil, "testData.txt")
		}},
		{"Tracker address (empty: mouse):", &cfg.Tracker.Address, nil},
		{"Reward serial device:", &cfg.Reward.Device, nil},
	}
}

// RunGuiSetup shows the setup form and reports whether the user pressed
// START. Choices are written to the cache file.
func RunGuiSetup(cfg *config.Config, cacheFile string, logger *slog.Logger) (bool, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return false, fmt.Errorf("init SDL: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		return false, fmt.Errorf("init TTF: %w", err)
	}
	defer ttf.Quit()

	window, renderer, err := sdl.CreateWindowAndRenderer("eyetask setup", 800, 850, 0)
	if err != nil {
		return false, fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	fontPath := FontPath(cfg)
	if fontPath == "" {
		return false, errors.New("no font found for the setup form")
	}
	guiFont, err := ttf.OpenFont(fontPath, float32(cfg.Display.FontSize))
	if err != nil {
		return false, fmt.Errorf("open font %s: %w", fontPath, err)
	}
	defer guiFont.Close()
	logger.Debug("setup form", "font", fontPath, "size", cfg.Display.FontSize)

	fields := setupFields(cfg)
	focus := -1
	fieldY := func(i int) float32 { return float32(50 + i*70) }
	resY := func(i int) float32 { return float32(fieldY(len(fields)) + float32(i*40)) }
	checksY := resY(len(resOptions)) + 10
	startY := checksY + 110

	selectedRes := 3
	for i, res := range resOptions {
		if cfg.Display.Width == res.W && cfg.Display.Height == res.H {
			selectedRes = i
			break
		}
	}

	window.StartTextInput()
	defer window.StopTextInput()

	black := sdl.Color{R: 0, G: 0, B: 0, A: 255}
	drawText := func(text string, x, y float32, color sdl.Color) {
		if text == "" {
			return
		}
		surf, err := guiFont.RenderTextBlended(text, color)
		if err != nil || surf == nil {
			return
		}
		defer surf.Destroy()
		tex, err := renderer.CreateTextureFromSurface(surf)
		if err != nil {
			return
		}
		r := sdl.FRect{X: x, Y: y, W: float32(surf.W), H: float32(surf.H)}
		renderer.RenderTexture(tex, nil, &r)
		tex.Destroy()
	}
	drawCheck := func(label string, y float32, checked bool) {
		renderer.SetDrawColor(255, 255, 255, 255)
		box := sdl.FRect{X: 50, Y: y, W: 20, H: 20}
		renderer.RenderFillRect(&box)
		renderer.SetDrawColor(0, 0, 0, 255)
		renderer.RenderRect(&box)
		if checked {
			mark := sdl.FRect{X: 54, Y: y + 4, W: 12, H: 12}
			renderer.SetDrawColor(0, 150, 0, 255)
			renderer.RenderFillRect(&mark)
		}
		drawText(label, 80, y, black)
	}
	within := func(mx, my, x0, x1, y0 float32) bool {
		return mx >= x0 && mx <= x1 && my >= y0 && my <= y0+30
	}

	for {
		var e sdl.Event
		for sdl.PollEvent(&e) {
			switch e.Type {
			case sdl.EVENT_QUIT:
				return false, nil
			case sdl.EVENT_MOUSE_BUTTON_DOWN:
				me := e.MouseButtonEvent()
				mx, my := me.X, me.Y

				focus = -1
				for i, f := range fields {
					if within(mx, my, 50, 700, fieldY(i)) {
						focus = i
					}
					if f.browse != nil && within(mx, my, 710, 780, fieldY(i)) {
						value := f.value
						f.browse(window, func(s string) { *value = s })
					}
				}
				for i := range resOptions {
					if within(mx, my, 50, 300, resY(i)) {
						selectedRes = i
					}
				}
				if within(mx, my, 50, 300, checksY) {
					cfg.ShowGaze = !cfg.ShowGaze
				}
				if within(mx, my, 50, 300, checksY+50) {
					cfg.Display.Fullscreen = !cfg.Display.Fullscreen
				}
				if mx >= 350 && mx <= 450 && my >= startY && my <= startY+40 && cfg.TrialFile != "" {
					cfg.Display.Width = resOptions[selectedRes].W
					cfg.Display.Height = resOptions[selectedRes].H
					cfg.SaveCache(cacheFile)
					return true, nil
				}
			case sdl.EVENT_TEXT_INPUT:
				if focus != -1 {
					*fields[focus].value += e.TextInputEvent().Text
				}
			case sdl.EVENT_KEY_DOWN:
				if focus != -1 && e.KeyboardEvent().Key == sdl.K_BACKSPACE {
					v := fields[focus].value
					if len(*v) > 0 {
						*v = (*v)[:len(*v)-1]
					}
				}
			}
		}

		renderer.SetDrawColor(240, 240, 240, 255)
		renderer.Clear()

		for i, f := range fields {
			y := fieldY(i)
			drawText(f.label, 50, y-30, black)

			renderer.SetDrawColor(255, 255, 255, 255)
			box := sdl.FRect{X: 50, Y: y, W: 650, H: 30}
			renderer.RenderFillRect(&box)
			if focus == i {
				renderer.SetDrawColor(0, 120, 255, 255)
			} else {
				renderer.SetDrawColor(180, 180, 180, 255)
			}
			renderer.RenderRect(&box)
			drawText(*f.value, 55, y+5, black)

			if f.browse != nil {
				renderer.SetDrawColor(200, 200, 200, 255)
				btn := sdl.FRect{X: 710, Y: y, W: 70, H: 30}
				renderer.RenderFillRect(&btn)
				renderer.SetDrawColor(0, 0, 0, 255)
				renderer.RenderRect(&btn)
				drawText("...", 735, y+5, black)
			}
		}

		for i, opt := range resOptions {
			drawCheck(opt.Label, resY(i), selectedRes == i)
		}
		drawCheck("Show gaze overlay", checksY, cfg.ShowGaze)
		drawCheck("Fullscreen mode", checksY+50, cfg.Display.Fullscreen)

		renderer.SetDrawColor(0, 150, 0, 255)
		startBtn := sdl.FRect{X: 350, Y: startY, W: 100, H: 40}
		renderer.RenderFillRect(&startBtn)
		drawText("START", 375, startY+10, sdl.Color{R: 255, G: 255, B: 255, A: 255})

		renderer.Present()
		sdl.Delay(10)
	}
}
