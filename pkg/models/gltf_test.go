package models

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGLBInvalidPath(t *testing.T) {
	_, err := LoadGLB("/nonexistent/path.glb")
	assert.Error(t, err)
}

func TestGLTFLoaderCreation(t *testing.T) {
	loader := NewGLTFLoader()
	require.NotNil(t, loader)
	assert.True(t, loader.CalculateNormals)
	assert.True(t, loader.SmoothNormals)
	assert.True(t, loader.LoadTextures)
}

// writeTriangleGLB saves a single red triangle in the XY plane.
func writeTriangleGLB(t *testing.T) string {
	t.Helper()

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})

	red := [4]float64{1, 0, 0, 1}
	rough := 0.5
	doc.Materials = []*gltf.Material{{
		Name: "red",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &red,
			RoughnessFactor: &rough,
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
			Material:   gltf.Index(0),
		}},
	}}

	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadGLBTriangle(t *testing.T) {
	mesh, err := LoadGLB(writeTriangleGLB(t))
	require.NoError(t, err)

	require.Equal(t, 3, mesh.VertexCount())
	require.Equal(t, 1, mesh.FaceCount())
	assert.Equal(t, []int{0, 1, 2}, mesh.Face(0), "winding is kept")
	assert.InDelta(t, 1, mesh.FaceNormal(0).Z, 1e-6)

	// No normals in the file, so they are synthesized.
	assert.InDelta(t, 1, mesh.VertexNormal(0).Z, 1e-6)

	require.Equal(t, 1, mesh.MaterialCount())
	mat := mesh.GetMaterial(mesh.FaceMaterial(0))
	require.NotNil(t, mat)
	assert.Equal(t, "red", mat.Name)
	assert.Equal(t, [4]float64{1, 0, 0, 1}, mat.BaseColor)
	assert.False(t, mat.HasTexture)
	assert.Greater(t, mat.Shininess, 2.0)
}
