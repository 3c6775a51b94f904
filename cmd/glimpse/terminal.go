package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/rs/zerolog"

	"github.com/taigrr/glimpse/internal/config"
	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/preview"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

// termSink keeps the latest frame for the terminal to paint.
type termSink struct {
	mu sync.Mutex
	fb *render.Framebuffer
}

func newTermSink() *termSink {
	return &termSink{fb: render.NewFramebuffer(0, 0)}
}

func (s *termSink) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fb.Resize(width, height)
}

func (s *termSink) SetRows(y0, y1 int, rgb []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y0, y1 = min(y0, s.fb.Height), min(y1, s.fb.Height)
	px := s.fb.Pixels[y0*s.fb.Width : y1*s.fb.Width]
	for i := range px {
		px[i] = render.RGB(rgb[i*3], rgb[i*3+1], rgb[i*3+2])
	}
}

func (s *termSink) FrameDone() {}

func (s *termSink) draw(scr uv.Screen, area uv.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fb.Draw(scr, area)
}

func (s *termSink) savePNG(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb.SavePNG(path)
}

// ViewState holds the terminal UI state (not library state)
type ViewState struct {
	Wireframe    bool
	LightMode    bool        // Whether in light positioning mode
	LightDir     math3d.Vec3 // Key light direction, view space
	PendingLight math3d.Vec3 // Light direction while positioning
	ShowHUD      bool
	Message      string // Shown once on the bottom line
}

// HUD renders an overlay with model info and controls
type HUD struct {
	title     string
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

func NewHUD(title string) *HUD {
	return &HUD{title: title, fpsTime: time.Now()}
}

// UpdateFPS counts one painted frame.
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Render draws the HUD overlay directly to the terminal
func (h *HUD) Render(width, height int, v *ViewState, st preview.Stats, view string) {
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)
	moveTo := func(row, col int) string {
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	}

	// Always clear the HUD rows (so toggling off works)
	fmt.Print(moveTo(1, 1) + clearLine)
	fmt.Print(moveTo(height, 1) + clearLine)

	if v.LightMode {
		msg := fmt.Sprintf("%s%s%s ◉ LIGHT MODE - Move mouse to position, click to set, Esc to cancel %s",
			bgBlack, bold, fgYellow, reset)
		fmt.Print(moveTo(height, max((width-68)/2, 1)) + msg)
		return
	}
	if v.Message != "" {
		fmt.Printf("%s%s%s %s %s", moveTo(height, 1), bgBlack, fgYellow, v.Message, reset)
		v.Message = ""
		return
	}
	if !v.ShowHUD {
		return
	}

	fmt.Printf("%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)

	title := fmt.Sprintf("%s%s%s %s %s", bold, bgBlack, fgWhite, h.title, reset)
	fmt.Print(moveTo(1, max((width-len(h.title)-2)/2, 1)) + title)

	faces := fmt.Sprintf("%d faces", st.Faces)
	fmt.Printf("%s%s%s%s %s %s", moveTo(1, max(width-len(faces)-1, 1)), bgBlack, fgCyan, bold, faces, reset)

	checkWire := "[ ]"
	if v.Wireframe {
		checkWire = "[✓]"
	}
	mode := fmt.Sprintf("%s%s %s Wireframe  %.1fms %s", bgBlack, fgWhite, checkWire, st.Took.Seconds()*1000, reset)
	fmt.Print(moveTo(height, 1) + mode)

	hint := fmt.Sprintf("%s%s%s %s %s", bgBlack, dim, fgYellow, view, reset)
	fmt.Print(moveTo(height, max(width-len(view)-1, 1)) + hint)
}

// screenToLightDir maps a screen position onto a hemisphere facing the
// viewer and returns the direction a light there shines, in view space.
func screenToLightDir(screenX, screenY, width, height int) math3d.Vec3 {
	nx := (float64(screenX)/float64(max(width, 1)))*2 - 1
	ny := (float64(screenY)/float64(max(height, 1)))*2 - 1

	// Clamp to unit circle
	lenSq := nx*nx + ny*ny
	if lenSq > 1 {
		l := math.Sqrt(lenSq)
		nx /= l
		ny /= l
		lenSq = 1
	}
	nz := math.Sqrt(1 - lenSq)

	// The light sits at (nx, -ny, -nz) and shines through the origin.
	return math3d.V3(-nx, ny, nz).Normalize()
}

// setKeyLight points the first light at dir, attached to the camera.
func setKeyLight(sc *scene.Scene, dir math3d.Vec3) {
	lights := sc.Lights()
	if len(lights) == 0 {
		lights = scene.DefaultLights()
	}
	lights[0].Type = render.LightDirectional
	lights[0].Direction = dir
	lights[0].Attached = true
	sc.SetLights(lights...)
}

func runTerminal(ctx context.Context, cfg *config.Config, sc *scene.Scene, opts []preview.Option, title string, log zerolog.Logger) error {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	// Each cell shows two pixel rows.
	repaint := make(chan struct{}, 1)
	ctl := preview.New(sc, append(opts,
		preview.WithSize(width, height*2),
		preview.WithRepaint(func() {
			select {
			case repaint <- struct{}{}:
			default:
			}
		}),
	)...)
	defer ctl.Close()
	if cfg.View == "" {
		ctl.Frame()
	}
	home := ctl.Camera()

	sink := newTermSink()
	ctl.Subscribe(sink)

	// Paint a wireframe right away so the first shaded frame is not a blank wait.
	sink.mu.Lock()
	sink.fb.Resize(width, height*2)
	ctl.DrawWireframe(sink.fb)
	sink.mu.Unlock()
	repaint <- struct{}{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := ctl.Start(ctx); err != nil {
		return err
	}

	fps := max(cfg.FPS, 1)
	hud := NewHUD(title)
	spin := NewSpin(fps)
	viewState := &ViewState{ShowHUD: true, LightDir: math3d.V3(0.5, -0.6, 1).Normalize()}
	if lights := sc.Lights(); len(lights) > 0 {
		viewState.LightDir = lights[0].Direction.Normalize()
	}

	const impulse = 0.03

	var (
		dragging   bool
		dragMode   preview.DragMode
		lastX      int
		lastY      int
		lastMove   time.Time
		flingPitch float64
		flingYaw   float64

		savedLights []scene.Light // Restored when light mode is cancelled
	)

	handle := func(ev uv.Event) (quit bool) {
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			ctl.Resize(width, height*2)

		case uv.KeyPressEvent:
			switch {
			case ev.MatchString("escape"):
				if viewState.LightMode {
					viewState.LightMode = false
					sc.SetLights(savedLights...)
				} else {
					return true
				}
			case ev.MatchString("ctrl+c"):
				return true
			case ev.MatchString("w", "up"):
				spin.Impulse(-impulse, 0, 0)
			case ev.MatchString("s", "down"):
				spin.Impulse(impulse, 0, 0)
			case ev.MatchString("a", "left"):
				spin.Impulse(0, -impulse, 0)
			case ev.MatchString("d", "right"):
				spin.Impulse(0, impulse, 0)
			case ev.MatchString("q"):
				spin.Impulse(0, 0, -impulse)
			case ev.MatchString("e"):
				spin.Impulse(0, 0, impulse)
			case ev.MatchString("space"):
				spin.Impulse(
					(rand.Float64()-0.5)*0.3,
					(rand.Float64()-0.5)*0.3,
					(rand.Float64()-0.5)*0.3,
				)
			case ev.MatchString("r"):
				spin.Stop()
				ctl.SetCamera(home)
			case ev.MatchString("f"):
				ctl.Frame()
			case ev.MatchString("+", "="):
				ctl.Wheel(1)
			case ev.MatchString("-", "_"):
				ctl.Wheel(-1)
			case ev.MatchString("x"):
				viewState.Wireframe = !viewState.Wireframe
				ctl.SetMode(modeFor(viewState.Wireframe))
			case ev.MatchString("l"):
				viewState.LightMode = true
				viewState.PendingLight = viewState.LightDir
				savedLights = sc.Lights()
			case ev.MatchString("p"):
				path := fmt.Sprintf("glimpse-%s.png", time.Now().Format("20060102-150405"))
				if err := sink.savePNG(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("snapshot failed")
					viewState.Message = "snapshot failed: " + err.Error()
				} else {
					log.Info().Str("path", path).Msg("snapshot saved")
					viewState.Message = "saved " + path
				}
			case ev.MatchString("?"), ev.MatchString("shift+/"):
				viewState.ShowHUD = !viewState.ShowHUD
			}

		case uv.MouseClickEvent:
			if viewState.LightMode {
				viewState.LightDir = viewState.PendingLight
				viewState.LightMode = false
				setKeyLight(sc, viewState.LightDir)
				return false
			}
			switch ev.Button {
			case uv.MouseRight:
				dragMode = preview.DragPan
			case uv.MouseMiddle:
				dragMode = preview.DragZoom
			default:
				dragMode = preview.DragRotate
			}
			spin.Stop()
			dragging = true
			lastX, lastY = ev.X, ev.Y*2
			flingPitch, flingYaw = 0, 0
			ctl.Press(lastX, lastY, dragMode)

		case uv.MouseReleaseEvent:
			if !dragging {
				return false
			}
			dragging = false
			ctl.Release()
			if viewState.Wireframe {
				ctl.SetMode(preview.Quick)
			}
			// Keep turning if the pointer was still moving when let go.
			if dragMode == preview.DragRotate && time.Since(lastMove) < 100*time.Millisecond {
				spin.Impulse(flingPitch, flingYaw, 0)
			}

		case uv.MouseMotionEvent:
			if viewState.LightMode {
				viewState.PendingLight = screenToLightDir(ev.X, ev.Y, width, height)
				setKeyLight(sc, viewState.PendingLight)
			} else if dragging {
				x, y := ev.X, ev.Y*2
				span := float64(max(min(width, height*2), 1))
				flingPitch = float64(y-lastY) / span * math.Pi
				flingYaw = float64(x-lastX) / span * math.Pi
				lastX, lastY, lastMove = x, y, time.Now()
				ctl.Drag(x, y)
			}

		case uv.MouseWheelEvent:
			switch ev.Button {
			case uv.MouseWheelUp:
				ctl.Wheel(1)
			case uv.MouseWheelDown:
				ctl.Wheel(-1)
			}
		}
		return false
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	events := term.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok || handle(ev) {
				return nil
			}

		case <-ticker.C:
			if pitch, yaw, roll := spin.Step(); pitch != 0 || yaw != 0 || roll != 0 {
				ctl.Orbit(pitch, yaw, roll)
			}

		case <-repaint:
			sink.draw(term, uv.Rect(0, 0, width, height))
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}
			hud.UpdateFPS()
			hud.Render(width, height, viewState, ctl.Stats(), ctl.ViewSettings())
		}
	}
}

func modeFor(wireframe bool) preview.Mode {
	if wireframe {
		return preview.Quick
	}
	return preview.Full
}
