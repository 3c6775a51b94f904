// glimpse - software 3D preview renderer
// Preview OBJ and glTF models in the terminal, in a browser, or as a PNG.
//
// Controls (terminal):
//
//	Left drag   - Rotate
//	Right drag  - Pan
//	Middle drag - Zoom
//	Scroll, +/- - Zoom in/out
//	W/S/A/D     - Pitch and yaw
//	Q/E         - Roll left/right
//	Space       - Random spin
//	F           - Frame the scene
//	R           - Reset view
//	X           - Toggle wireframe
//	L           - Light positioning mode (move mouse, click to set, Esc to cancel)
//	P           - Save a PNG snapshot
//	?           - Toggle HUD overlay
//	Esc         - Quit (or cancel light mode)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/taigrr/glimpse/internal/config"
	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/models"
	"github.com/taigrr/glimpse/pkg/preview"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file")
	texturePath = flag.String("texture", "", "Path to texture image (PNG/JPG) applied to every model")
	targetFPS   = flag.Int("fps", 30, "Target FPS for inertia and HUD")
	width       = flag.Int("width", 0, "Frame width for -snapshot and -serve")
	height      = flag.Int("height", 0, "Frame height for -snapshot and -serve")
	bgColor     = flag.String("bg", "", "Background color (#rrggbb)")
	aperture    = flag.Float64("aperture", 0, "Lens aperture in degrees")
	viewFlag    = flag.String("view", "", `Initial view, e.g. "rot=20,30,0 pos=0,0,4 zoom=1"`)
	snapshot    = flag.String("snapshot", "", "Render one frame to this PNG and exit")
	serveAddr   = flag.String("serve", "", "Serve frames over websocket on this address")
	logFile     = flag.String("log", "", "Log file (terminal mode logs nowhere by default)")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "glimpse - software 3D preview renderer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: glimpse [options] [model.obj|model.glb ...]\n\n")
		fmt.Fprintf(os.Stderr, "Without models a demo scene is shown.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Left drag   - Rotate\n")
		fmt.Fprintf(os.Stderr, "  Right drag  - Pan\n")
		fmt.Fprintf(os.Stderr, "  Middle drag - Zoom\n")
		fmt.Fprintf(os.Stderr, "  Scroll, +/- - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Pitch and yaw\n")
		fmt.Fprintf(os.Stderr, "  Q/E         - Roll left/right\n")
		fmt.Fprintf(os.Stderr, "  Space       - Random spin\n")
		fmt.Fprintf(os.Stderr, "  F           - Frame the scene\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset view\n")
		fmt.Fprintf(os.Stderr, "  X           - Toggle wireframe\n")
		fmt.Fprintf(os.Stderr, "  L           - Position light (mouse to aim, click to set)\n")
		fmt.Fprintf(os.Stderr, "  P           - Save PNG snapshot\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// set on the command line on top of it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps":
			cfg.FPS = *targetFPS
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "bg":
			cfg.Background = *bgColor
		case "aperture":
			cfg.Lens.ApertureDeg = *aperture
		case "view":
			cfg.View = *viewFlag
		case "serve":
			cfg.Serve.Addr = *serveAddr
		case "log":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to the configured file, or to fallback when none is set.
func newLogger(cfg *config.Config, fallback io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := cfg.LogLevel()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	zerolog.TimeFieldFormat = time.RFC3339

	out, closer := fallback, io.Closer(nil)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log: %w", err)
		}
		out, closer = f, f
	}
	if out == nil {
		return zerolog.Nop(), nil, nil
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.Log.File != ""}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), closer, nil
}

// buildScene loads every model into a row of objects, or the demo scene.
func buildScene(cfg *config.Config, paths []string, log zerolog.Logger) (*scene.Scene, error) {
	sc := scene.New()
	lights, err := cfg.SceneLights()
	if err != nil {
		return nil, err
	}
	sc.SetLights(lights...)
	sc.SetAmbient(cfg.AmbientLevel())

	var tex *render.Texture
	if *texturePath != "" {
		tex, err = render.LoadTexture(*texturePath)
		if err != nil {
			log.Warn().Err(err).Str("path", *texturePath).Msg("could not load texture")
		} else {
			tex.FilterMode = render.FilterBilinear
		}
	}

	if len(paths) == 0 {
		for _, o := range demoObjects() {
			if tex != nil {
				o.SetTexture(tex)
			}
			sc.Add(o)
		}
		return sc, nil
	}

	const spacing = 2.5
	offset := -spacing * float64(len(paths)-1) / 2
	for i, path := range paths {
		o, err := scene.LoadObject(path)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		scene.Normalize(o.Mesh, 2)
		o.Transform = math3d.Translate(math3d.V3(offset+spacing*float64(i), 0, 0))
		if tex != nil {
			o.SetTexture(tex)
		}
		log.Info().
			Str("model", filepath.Base(path)).
			Int("vertices", o.Mesh.VertexCount()).
			Int("faces", o.Mesh.FaceCount()).
			Msg("loaded")
		sc.Add(o)
	}
	return sc, nil
}

// demoObjects is a checkered cube on a plane next to a sphere.
func demoObjects() []*scene.Object {
	cube := scene.NewObject("cube", models.NewCube(1.2))
	cube.SetTexture(render.NewCheckerTexture(64, 64, 8, render.RGB(220, 200, 160), render.RGB(120, 90, 60)))
	cube.Transform = math3d.Translate(math3d.V3(-0.9, 0, 0)).Mul(math3d.RotateY(math.Pi / 6))

	sphereMesh := models.NewUVSphere(0.7, 24, 16)
	sphereMesh.Materials[0].BaseColor = [4]float64{0.35, 0.55, 0.9, 1}
	sphereMesh.Materials[0].Specular = 0.8
	sphereMesh.Materials[0].Shininess = 32
	sphere := scene.NewObject("sphere", sphereMesh)
	sphere.Transform = math3d.Translate(math3d.V3(0.9, 0, 0))

	floor := scene.NewObject("floor", models.NewPlane(4, 3))
	floor.Transform = math3d.Translate(math3d.V3(0, -0.6, 0))

	return []*scene.Object{floor, cube, sphere}
}

// controllerOptions maps the config onto the preview controller.
func controllerOptions(cfg *config.Config, log zerolog.Logger) ([]preview.Option, error) {
	bg, err := cfg.BackgroundColor()
	if err != nil {
		return nil, err
	}
	wire, err := cfg.WireRGBA()
	if err != nil {
		return nil, err
	}
	front, err := cfg.Winding()
	if err != nil {
		return nil, err
	}
	cam := scene.NewCamera()
	if cfg.View != "" {
		v, err := scene.ParseViewSettings(cfg.View)
		if err != nil {
			return nil, err
		}
		cam.Apply(v)
	}
	return []preview.Option{
		preview.WithLogger(log),
		preview.WithBackground(bg),
		preview.WithWireColor(wire),
		preview.WithLens(cfg.RenderLens()),
		preview.WithCulling(cfg.CullMode(), front),
		preview.WithRowBand(cfg.RowBand),
		preview.WithCamera(cam),
	}, nil
}

func run(paths []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal viewer owns stdout; only log there in the other modes.
	var fallback io.Writer
	if *snapshot != "" || cfg.Serve.Addr != "" {
		fallback = os.Stderr
	}
	log, closer, err := newLogger(cfg, fallback)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	sc, err := buildScene(cfg, paths, log)
	if err != nil {
		return err
	}
	opts, err := controllerOptions(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *snapshot != "":
		return runSnapshot(ctx, cfg, sc, opts, *snapshot, log)
	case cfg.Serve.Addr != "":
		return runServer(ctx, cfg, sc, opts, log)
	default:
		title := "demo"
		if len(paths) == 1 {
			title = filepath.Base(paths[0])
		} else if len(paths) > 1 {
			title = fmt.Sprintf("%d models", len(paths))
		}
		return runTerminal(ctx, cfg, sc, opts, title, log)
	}
}

// runSnapshot renders a single full frame and writes it as PNG.
func runSnapshot(ctx context.Context, cfg *config.Config, sc *scene.Scene, opts []preview.Option, out string, log zerolog.Logger) error {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		return errors.New("snapshot needs a positive width and height")
	}
	ctl := preview.New(sc, append(opts, preview.WithSize(w, h))...)
	defer ctl.Close()
	if cfg.View == "" {
		ctl.Frame()
	}

	col := preview.NewCollector()
	ctl.Subscribe(col)
	if err := ctl.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	img, err := col.Wait(ctx, 0)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	st := ctl.Stats()
	log.Info().
		Str("path", out).
		Int("width", w).
		Int("height", h).
		Int("faces", st.Faces).
		Dur("took", st.Took).
		Msg("snapshot written")
	return nil
}
