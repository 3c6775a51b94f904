package scene

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// ErrBadViewSettings is returned for view settings text that cannot be parsed.
var ErrBadViewSettings = errors.New("bad view settings")

// ViewSettings is the part of the camera that is saved and restored as
// text: rotation, translation and zoom.
type ViewSettings struct {
	Pitch, Yaw, Roll float64 // Radians
	Position         math3d.Vec3
	Zoom             float64
}

// DefaultViewSettings matches NewCamera.
func DefaultViewSettings() ViewSettings {
	return NewCamera().Settings()
}

// String formats the settings as
//
//	rot=<pitch>,<yaw>,<roll> pos=<x>,<y>,<z> zoom=<zoom>
//
// with angles in degrees.
func (v ViewSettings) String() string {
	return fmt.Sprintf("rot=%s,%s,%s pos=%s,%s,%s zoom=%s",
		formatFloat(degrees(v.Pitch)), formatFloat(degrees(v.Yaw)), formatFloat(degrees(v.Roll)),
		formatFloat(v.Position.X), formatFloat(v.Position.Y), formatFloat(v.Position.Z),
		formatFloat(v.Zoom))
}

// ParseViewSettings parses the String format. Keys may appear in any order
// and missing keys keep their defaults.
func ParseViewSettings(s string) (ViewSettings, error) {
	v := DefaultViewSettings()
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return v, fmt.Errorf("%w: empty", ErrBadViewSettings)
	}

	for _, field := range fields {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return v, fmt.Errorf("%w: %q is not key=value", ErrBadViewSettings, field)
		}
		switch key {
		case "rot":
			n, err := parseList(val, 3)
			if err != nil {
				return v, fmt.Errorf("%w: rot: %v", ErrBadViewSettings, err)
			}
			v.Pitch, v.Yaw, v.Roll = radians(n[0]), radians(n[1]), radians(n[2])
		case "pos":
			n, err := parseList(val, 3)
			if err != nil {
				return v, fmt.Errorf("%w: pos: %v", ErrBadViewSettings, err)
			}
			v.Position = math3d.V3(n[0], n[1], n[2])
		case "zoom":
			n, err := parseList(val, 1)
			if err != nil {
				return v, fmt.Errorf("%w: zoom: %v", ErrBadViewSettings, err)
			}
			if n[0] <= 0 {
				return v, fmt.Errorf("%w: zoom must be positive", ErrBadViewSettings)
			}
			v.Zoom = n[0]
		default:
			return v, fmt.Errorf("%w: unknown key %q", ErrBadViewSettings, key)
		}
	}
	return v, nil
}

func parseList(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not finite", p)
		}
		out[i] = f
	}
	return out, nil
}

// formatFloat prints at most six decimals so degree conversions stay short.
func formatFloat(f float64) string {
	f = math.Round(f*1e6) / 1e6
	if f == 0 {
		f = 0 // Drop negative zero
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func degrees(r float64) float64 { return r * 180 / math.Pi }
func radians(d float64) float64 { return d * math.Pi / 180 }
