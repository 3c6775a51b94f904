package models

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# a unit quad and a triangle
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1

usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
s 1
usemtl blue
f -4/1 -3/2 -2/3
`

func TestParseOBJ(t *testing.T) {
	mesh, err := ParseOBJ(strings.NewReader(quadOBJ), "")
	require.NoError(t, err)

	require.Equal(t, 2, mesh.FaceCount())
	assert.Len(t, mesh.Face(0), 4)
	assert.Len(t, mesh.Face(1), 3)

	// Explicit normals make the first face smooth; the second is in group 1.
	assert.True(t, mesh.FaceSmooth(0))
	assert.True(t, mesh.FaceSmooth(1))

	require.Equal(t, 2, mesh.MaterialCount())
	assert.Equal(t, "red", mesh.Materials[mesh.FaceMaterial(0)].Name)
	assert.Equal(t, "blue", mesh.Materials[mesh.FaceMaterial(1)].Name)

	// v is flipped to a top-left origin.
	first := mesh.Face(0)[0]
	assert.InDelta(t, 1, mesh.UV(first).Y, 1e-9)

	assert.InDelta(t, 1, mesh.FaceNormal(0).Z, 1e-9)
	assert.InDelta(t, 1, mesh.BoundsMax.X, 1e-9)
}

func TestParseOBJSharesCorners(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 1 3 4\n"
	mesh, err := ParseOBJ(strings.NewReader(src), "")
	require.NoError(t, err)

	assert.Equal(t, 4, mesh.VertexCount())
	assert.False(t, mesh.FaceSmooth(0))
	assert.Equal(t, -1, mesh.FaceMaterial(0))
	// Normals were synthesized.
	assert.InDelta(t, 1, mesh.VertexNormal(0).Z, 1e-9)
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"short vertex", "v 1 2\n"},
		{"bad float", "v 1 x 2\n"},
		{"index out of range", "v 0 0 0\nf 1 2 3\n"},
		{"two corners", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"usemtl without name", "usemtl\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tc.src), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadOBJWithMaterialLibrary(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(filepath.Join(dir, "tex.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	mtl := "newmtl shiny\nKd 0.5 0.25 1\nKs 0.9 0.9 0.9\nNs 64\nmap_Kd tex.png\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.mtl"), []byte(mtl), 0o644))

	obj := "mtllib model.mtl\nmtllib missing.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl shiny\nf 1 2 3\n"
	path := filepath.Join(dir, "model.obj")
	require.NoError(t, os.WriteFile(path, []byte(obj), 0o644))

	mesh, err := LoadOBJ(path)
	require.NoError(t, err)
	assert.Equal(t, "model.obj", mesh.Name)

	mat := mesh.GetMaterial(mesh.FaceMaterial(0))
	require.NotNil(t, mat)
	assert.Equal(t, "shiny", mat.Name)
	assert.Equal(t, [4]float64{0.5, 0.25, 1, 1}, mat.BaseColor)
	assert.InDelta(t, 0.9, mat.Specular, 1e-9)
	assert.Equal(t, 64.0, mat.Shininess)
	assert.True(t, mat.HasTexture)
	assert.Equal(t, 2, mat.BaseMap.Bounds().Dx())
}

func TestLoadOBJMissingFile(t *testing.T) {
	_, err := LoadOBJ(filepath.Join(t.TempDir(), "nope.obj"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
