package scene

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/models"
)

// ErrUnsupportedFormat is returned by LoadMesh for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// LoadMesh reads a model file, picking the loader from the extension.
func LoadMesh(path string) (*models.Mesh, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".obj":
		return models.LoadOBJ(path)
	case ".glb", ".gltf":
		return models.NewGLTFLoader().Load(path)
	default:
		return nil, fmt.Errorf("%w: %q (use .obj, .glb or .gltf)", ErrUnsupportedFormat, ext)
	}
}

// LoadObject loads a model file into an object named after the file.
func LoadObject(path string) (*Object, error) {
	mesh, err := LoadMesh(path)
	if err != nil {
		return nil, err
	}
	return NewObject(filepath.Base(path), mesh), nil
}

// Normalize centres the mesh on the origin and scales it so its largest
// extent equals size.
func Normalize(m *models.Mesh, size float64) {
	m.CalculateBounds()
	extent := m.Size()
	maxDim := max(extent.X, extent.Y, extent.Z)
	if maxDim <= 0 {
		return
	}
	scale := size / maxDim
	m.Transform(math3d.ScaleUniform(scale).Mul(math3d.Translate(m.Center().Negate())))
}
