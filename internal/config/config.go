// Package config loads and saves the glimpse YAML settings file.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

var ErrInvalid = errors.New("invalid config")

type Lens struct {
	ApertureDeg float64 `yaml:"aperture_deg"`
	Zoom        float64 `yaml:"zoom"`
	Near        float64 `yaml:"near"`
}

type Light struct {
	Name      string     `yaml:"name,omitempty"`
	Type      string     `yaml:"type"` // "point" | "directional" | "spot"
	Position  [3]float64 `yaml:"position,omitempty,flow"`
	Direction [3]float64 `yaml:"direction,omitempty,flow"`
	Color     string     `yaml:"color"`
	Intensity float64    `yaml:"intensity,omitempty"`
	Specular  *float64   `yaml:"specular,omitempty"`

	Attenuation  [3]float64 `yaml:"attenuation,omitempty,flow"` // constant, linear, quadratic
	SpotAngleDeg float64    `yaml:"spot_angle_deg,omitempty"`
	SpotExponent float64    `yaml:"spot_exponent,omitempty"`
	Attached     bool       `yaml:"attached,omitempty"` // Moves with the camera
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type Serve struct {
	Addr string `yaml:"addr,omitempty"`
}

type Config struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	FPS     int `yaml:"fps"`
	RowBand int `yaml:"row_band"`

	Background string `yaml:"background"`
	WireColor  string `yaml:"wire_color"`

	Lens      Lens    `yaml:"lens"`
	Cull      bool    `yaml:"cull"`
	FrontFace string  `yaml:"front_face"` // "ccw" | "cw"
	Ambient   float64 `yaml:"ambient"`
	Lights    []Light `yaml:"lights,omitempty"`
	View      string  `yaml:"view,omitempty"`

	Log   Log   `yaml:"log"`
	Serve Serve `yaml:"serve,omitempty"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Width:      160,
		Height:     96,
		FPS:        30,
		RowBand:    16,
		Background: "#101418",
		WireColor:  "#00ff80",
		Lens:       Lens{ApertureDeg: 60, Zoom: 1, Near: 0.05},
		Cull:       true,
		FrontFace:  "ccw",
		Ambient:    scene.DefaultAmbient[0],
		Log:        Log{Level: "info"},
	}
}

// Load reads path over the defaults. Missing keys keep their default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks every field that the accessors would otherwise have to
// reject later.
func (c *Config) Validate() error {
	var errs []error
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("%w: negative size %dx%d", ErrInvalid, c.Width, c.Height))
	}
	if c.FPS < 0 {
		errs = append(errs, fmt.Errorf("%w: fps %d", ErrInvalid, c.FPS))
	}
	if c.Lens.ApertureDeg < 0 || c.Lens.ApertureDeg >= 180 {
		errs = append(errs, fmt.Errorf("%w: aperture %g outside 0-180", ErrInvalid, c.Lens.ApertureDeg))
	}
	if _, err := c.BackgroundColor(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.WireRGBA(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Winding(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SceneLights(); err != nil {
		errs = append(errs, err)
	}
	if c.View != "" {
		if _, err := scene.ParseViewSettings(c.View); err != nil {
			errs = append(errs, fmt.Errorf("%w: view: %w", ErrInvalid, err))
		}
	}
	return errors.Join(errs...)
}

// ParseColor accepts "#rrggbb" or "#rgb".
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q: %v", ErrInvalid, s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}, nil
}

func (c *Config) BackgroundColor() (color.RGBA, error) {
	return ParseColor(c.Background)
}

func (c *Config) WireRGBA() (color.RGBA, error) {
	return ParseColor(c.WireColor)
}

// RenderLens converts the lens section.
func (c *Config) RenderLens() render.Lens {
	l := render.DefaultLens()
	if c.Lens.ApertureDeg > 0 {
		l.Aperture = c.Lens.ApertureDeg * math.Pi / 180
	}
	if c.Lens.Zoom > 0 {
		l.Zoom = c.Lens.Zoom
	}
	if c.Lens.Near > 0 {
		l.Near = c.Lens.Near
	}
	return l
}

func (c *Config) CullMode() render.CullMode {
	if c.Cull {
		return render.CullBack
	}
	return render.CullNone
}

func (c *Config) Winding() (render.Winding, error) {
	switch strings.ToLower(c.FrontFace) {
	case "", "ccw":
		return render.CCW, nil
	case "cw":
		return render.CW, nil
	}
	return render.CCW, fmt.Errorf("%w: front_face %q (use ccw or cw)", ErrInvalid, c.FrontFace)
}

func (c *Config) AmbientLevel() [3]float64 {
	a := min(max(c.Ambient, 0), 1)
	return [3]float64{a, a, a}
}

func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}
	return lvl, nil
}

// SceneLights converts the lights section. An empty section yields the
// default camera-attached rig.
func (c *Config) SceneLights() ([]scene.Light, error) {
	if len(c.Lights) == 0 {
		return scene.DefaultLights(), nil
	}
	out := make([]scene.Light, 0, len(c.Lights))
	for i, l := range c.Lights {
		sl, err := l.toScene()
		if err != nil {
			return nil, fmt.Errorf("light %d: %w", i, err)
		}
		out = append(out, sl)
	}
	return out, nil
}

func (l Light) toScene() (scene.Light, error) {
	rgb := [3]float64{1, 1, 1}
	if l.Color != "" {
		c, err := ParseColor(l.Color)
		if err != nil {
			return scene.Light{}, err
		}
		rgb = [3]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
	}
	if l.Intensity > 0 {
		for i := range rgb {
			rgb[i] *= l.Intensity
		}
	}

	pos := math3d.V3(l.Position[0], l.Position[1], l.Position[2])
	dir := math3d.V3(l.Direction[0], l.Direction[1], l.Direction[2])
	var sl scene.Light
	switch strings.ToLower(l.Type) {
	case "point":
		sl = scene.PointLight(pos, rgb)
	case "directional", "":
		if dir.Len() == 0 {
			return scene.Light{}, fmt.Errorf("%w: directional light needs a direction", ErrInvalid)
		}
		sl = scene.DirectionalLight(dir, rgb)
	case "spot":
		if dir.Len() == 0 {
			return scene.Light{}, fmt.Errorf("%w: spot light needs a direction", ErrInvalid)
		}
		sl = scene.SpotLight(pos, dir, l.SpotAngleDeg*math.Pi/180, rgb)
		if l.SpotExponent > 0 {
			sl.SpotExponent = l.SpotExponent
		}
	default:
		return scene.Light{}, fmt.Errorf("%w: light type %q", ErrInvalid, l.Type)
	}

	sl.Name = l.Name
	sl.Attenuation = l.Attenuation
	sl.Attached = l.Attached
	if l.Specular != nil {
		sl.Specular = *l.Specular
	}
	return sl, nil
}
