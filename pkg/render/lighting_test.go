package render

import (
	"math"
	"testing"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// litVertex returns a one-triangle object at depth z whose face points at
// the viewer.
func litVertex(z float64) (*ProjectedObject, *Face) {
	obj := screenObject([3]float64{10, 10, z}, [3]float64{20, 10, z}, [3]float64{15, 20, z})
	return obj, faceOf(obj, 0, 1, 2)
}

func TestEvaluatorDiffuse(t *testing.T) {
	white := [3]float64{1, 1, 1}
	ambient := [3]float64{0.1, 0.1, 0.1}

	tests := []struct {
		name  string
		light Light
		want  int32
	}{
		{
			name:  "directional head on",
			light: Light{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: white},
			want:  282, // (0.1 + 1) * 256
		},
		{
			name:  "directional from behind",
			light: Light{Type: LightDirectional, Direction: math3d.V3(0, 0, -1), Color: white},
			want:  26, // ambient only
		},
		{
			name:  "directional at 60 degrees",
			light: Light{Type: LightDirectional, Direction: math3d.V3(math.Sin(math.Pi/3), 0, math.Cos(math.Pi/3)), Color: white},
			want:  154, // (0.1 + 0.5) * 256
		},
		{
			name:  "point with attenuation",
			light: Light{Type: LightPoint, Position: math3d.V3(0, 0, 0), Color: white, Constant: 1, Quadratic: 1},
			want:  77, // (0.1 + 1/(1+2²)) * 256
		},
		{
			name: "spot inside cone",
			light: Light{
				Type: LightSpot, Position: math3d.V3(0, 0, 0), Direction: math3d.V3(0, 0, 1),
				Color: white, Constant: 1, SpotCos: 0.9,
			},
			want: 282,
		},
		{
			name: "spot outside cone",
			light: Light{
				Type: LightSpot, Position: math3d.V3(0, 0, 0), Direction: math3d.V3(1, 0, 0),
				Color: white, Constant: 1, SpotCos: 0.9,
			},
			want: 26,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obj, f := litVertex(2)
			e := NewEvaluator(nil)
			e.SetLights(ambient, []Light{tc.light})
			e.Prepare(obj)
			e.Shade(obj, f, &Material{})

			if len(f.Diffuse) != 3 {
				t.Fatalf("len(Diffuse) = %d, want 3", len(f.Diffuse))
			}
			// Vertex 0 sits on the axis at (0, 0, z) in view space.
			if got := f.Diffuse[0].R; got != tc.want {
				t.Errorf("diffuse = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEvaluatorColoredLights(t *testing.T) {
	obj, f := litVertex(2)
	e := NewEvaluator(nil)
	e.SetLights([3]float64{}, []Light{
		{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: [3]float64{1, 0, 0}},
		{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: [3]float64{0, 0.5, 0}},
	})
	e.Shade(obj, f, &Material{})

	got := f.Diffuse[0]
	if got.R != 256 || got.G != 128 || got.B != 0 {
		t.Errorf("diffuse = %+v, want {256 128 0}", got)
	}
}

func TestEvaluatorSaturates(t *testing.T) {
	obj, f := litVertex(2)
	e := NewEvaluator(nil)
	e.SetLights([3]float64{100, 100, 100}, nil)
	e.Shade(obj, f, &Material{})

	if got := f.Diffuse[0].R; got != 16*ShadeOne {
		t.Errorf("diffuse = %d, want %d", got, 16*ShadeOne)
	}
}

func TestEvaluatorSmoothNormals(t *testing.T) {
	obj, f := litVertex(2)
	f.Smooth = true
	obj.Normals[1] = math3d.V3(0, 0, 1) // Turned away from the light

	e := NewEvaluator(nil)
	e.SetLights([3]float64{}, []Light{{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: [3]float64{1, 1, 1}}})
	e.Shade(obj, f, &Material{})

	if f.Diffuse[0].R != ShadeOne {
		t.Errorf("lit corner = %d, want %d", f.Diffuse[0].R, ShadeOne)
	}
	if f.Diffuse[1].R != 0 {
		t.Errorf("corner facing away = %d, want 0", f.Diffuse[1].R)
	}
}

func TestEvaluatorSpecular(t *testing.T) {
	light := Light{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: [3]float64{1, 1, 1}, Specular: 1}

	tests := []struct {
		name     string
		mat      Material
		specular bool
		weight   int32
	}{
		{"shiny", Material{Specular: 0.5, Shininess: 16}, true, 128},
		{"matte", Material{Specular: 0, Shininess: 16}, false, 0},
		{"below threshold", Material{Specular: 0.01, Shininess: 16}, false, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obj, f := litVertex(2)
			e := NewEvaluator(nil)
			e.SetLights([3]float64{}, []Light{light})
			e.Shade(obj, f, &tc.mat)

			if f.Specular != tc.specular {
				t.Errorf("Specular = %v, want %v", f.Specular, tc.specular)
			}
			if f.SpecW[0] != tc.weight {
				t.Errorf("SpecW = %d, want %d", f.SpecW[0], tc.weight)
			}
		})
	}

	// Viewer, light and normal aligned: the highlight sits at the table centre.
	obj, f := litVertex(2)
	e := NewEvaluator(nil)
	e.SetLights([3]float64{}, []Light{light})
	mat := &Material{Specular: 1, Shininess: 16}
	e.Shade(obj, f, mat)

	table := e.Reflectance.Get(mat.Shininess)
	if got := table.At(f.SpecX[0], f.SpecY[0]); got < 250 {
		t.Errorf("aligned highlight = %d, want near 255", got)
	}
}

func TestEvaluatorResetsCorners(t *testing.T) {
	obj, f := litVertex(2)
	e := NewEvaluator(nil)
	e.SetLights([3]float64{1, 1, 1}, nil)
	e.Shade(obj, f, nil)
	e.Shade(obj, f, nil)

	if len(f.Diffuse) != len(f.V) || len(f.SpecW) != len(f.V) {
		t.Errorf("corner arrays grew across calls: %d, %d", len(f.Diffuse), len(f.SpecW))
	}
	corner := e.Reflectance.Get(DefaultMaterial.Shininess).Cell(-1)
	if f.SpecX[0] != corner || f.SpecY[0] != corner {
		t.Error("unlit corner should point at the empty table corner")
	}
}

func TestSetLightsKeepsTables(t *testing.T) {
	obj, _ := litVertex(2)
	e := NewEvaluator(nil)
	point := Light{Type: LightPoint, Position: math3d.V3(0, 0, 0), Color: [3]float64{1, 1, 1}, Constant: 1}

	e.SetLights([3]float64{}, []Light{point})
	e.Prepare(obj)
	dirs := &e.lights[0].dirs[0]

	e.SetLights([3]float64{}, []Light{point})
	e.Prepare(obj)
	if &e.lights[0].dirs[0] != dirs {
		t.Error("per-vertex light table reallocated")
	}

	e.SetLights([3]float64{}, nil)
	if e.Lights() != 0 {
		t.Errorf("Lights = %d, want 0", e.Lights())
	}
}

func TestLightTypeString(t *testing.T) {
	tests := map[LightType]string{
		LightPoint:       "point",
		LightDirectional: "directional",
		LightSpot:        "spot",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}

func TestReflectanceTable(t *testing.T) {
	table := NewReflectanceTable(ReflectanceSize, 8)

	if got := table.At(table.Cell(0), table.Cell(0)); got < 250 {
		t.Errorf("centre = %d, want near 255", got)
	}
	if got := table.At(table.Cell(-1), table.Cell(-1)); got != 0 {
		t.Errorf("corner = %d, want 0", got)
	}
	if got := table.At(table.Cell(1), table.Cell(0)); got != 0 {
		t.Errorf("edge = %d, want 0", got)
	}

	// Shinier surfaces have tighter highlights.
	dull := NewReflectanceTable(ReflectanceSize, 1)
	off := table.Cell(0.5)
	if dull.At(off, table.Cell(0)) <= table.At(off, table.Cell(0)) {
		t.Error("higher shininess should fall off faster")
	}

	// Out of range cells clamp.
	if got := table.At(-1<<20, 1<<20); got != 0 {
		t.Errorf("clamped corner = %d, want 0", got)
	}
}

func TestReflectanceCache(t *testing.T) {
	c := NewReflectanceCache(32)
	a := c.Get(16)
	if c.Get(16) != a {
		t.Error("cache built a second table for the same shininess")
	}
	c.Get(4)
	c.Get(0) // Clamped to 1
	c.Get(1)
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	if a.Size != 32 {
		t.Errorf("Size = %d, want 32", a.Size)
	}
}
