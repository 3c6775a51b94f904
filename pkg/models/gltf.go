package models

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/glimpse/pkg/math3d"
)

// GLTFLoader loads GLTF/GLB files into Mesh format.
type GLTFLoader struct {
	// Options
	CalculateNormals bool
	SmoothNormals    bool
	LoadTextures     bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
		LoadTextures:     true,
	}
}

// LoadGLB loads a binary GLTF (.glb) or a .gltf file.
func LoadGLB(path string) (*Mesh, error) {
	loader := NewGLTFLoader()
	return loader.Load(path)
}

// Load loads a GLTF or GLB file and returns a Mesh. Every primitive of every
// mesh in the document is merged into one Mesh; glTF triangles are already
// counter-clockwise so winding is kept as is.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	mesh := NewMesh(filepath.Base(path))
	mesh.Materials = l.readMaterials(doc, filepath.Dir(path))

	for _, m := range doc.Meshes {
		if err := l.processMesh(doc, m, mesh); err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
		}
	}

	if l.CalculateNormals && !mesh.HasNormals() {
		mesh.CalculateSmoothNormals()
	}
	mesh.CalculateBounds()

	return mesh, nil
}

// processMesh extracts geometry from a GLTF mesh.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh, mesh *Mesh) error {
	for _, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			// Skip non-triangle primitives (lines, points, strips)
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}

		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}

		var normals [][3]float32
		if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
			normals, err = modeler.ReadNormal(doc, doc.Accessors[normIdx], nil)
			if err != nil {
				return fmt.Errorf("read normals: %w", err)
			}
		}

		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
			if err != nil {
				return fmt.Errorf("read uvs: %w", err)
			}
		}

		material := -1
		if prim.Material != nil && *prim.Material < len(mesh.Materials) {
			material = *prim.Material
		}

		baseVertex := len(mesh.Vertices)
		for i, p := range positions {
			v := MeshVertex{Position: vec3(p)}
			if i < len(normals) {
				v.Normal = vec3(normals[i]).Normalize()
			}
			if i < len(uvs) {
				// glTF already uses a top-left texture origin.
				v.UV = math3d.V2(float64(uvs[i][0]), float64(uvs[i][1]))
			}
			mesh.Vertices = append(mesh.Vertices, v)
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		smooth := len(normals) > 0 || l.SmoothNormals
		for i := 0; i+2 < len(indices); i += 3 {
			mesh.AddFace(material, smooth,
				baseVertex+int(indices[i]),
				baseVertex+int(indices[i+1]),
				baseVertex+int(indices[i+2]),
			)
		}
	}

	return nil
}

// readMaterials converts the document's PBR materials. Metallic-roughness
// is mapped onto a Phong-style specular intensity and exponent.
func (l *GLTFLoader) readMaterials(doc *gltf.Document, dir string) []Material {
	var images map[int]image.Image
	if l.LoadTextures {
		images = decodeImages(doc, dir)
	}

	mats := make([]Material, 0, len(doc.Materials))
	for _, gm := range doc.Materials {
		mat := DefaultMaterial
		mat.Name = gm.Name
		mat.BaseColor = [4]float64{1, 1, 1, 1}
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.BaseColor = *pbr.BaseColorFactor
			}
			if pbr.MetallicFactor != nil {
				mat.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.Roughness = *pbr.RoughnessFactor
			}
			if pbr.BaseColorTexture != nil {
				if img := textureImage(doc, images, pbr.BaseColorTexture.Index); img != nil {
					mat.BaseMap = img
					mat.HasTexture = true
				}
			}
		}
		mat.Specular = 0.04 + 0.96*mat.Metallic*(1-mat.Roughness)
		mat.Shininess = 2 + 126*(1-mat.Roughness)*(1-mat.Roughness)
		mats = append(mats, mat)
	}
	return mats
}

func textureImage(doc *gltf.Document, images map[int]image.Image, tex int) image.Image {
	if tex < 0 || tex >= len(doc.Textures) || doc.Textures[tex].Source == nil {
		return nil
	}
	return images[*doc.Textures[tex].Source]
}

func vec3(v [3]float32) math3d.Vec3 {
	return math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
}

// imageData returns the raw bytes of every image in the document, embedded
// or stored next to it.
func imageData(doc *gltf.Document, dir string) map[int][]byte {
	textures := make(map[int][]byte)
	for i, img := range doc.Images {
		if img.BufferView != nil {
			bv := doc.BufferViews[*img.BufferView]
			buf := doc.Buffers[bv.Buffer]
			if buf.Data != nil {
				start := bv.ByteOffset
				end := start + bv.ByteLength
				textures[i] = buf.Data[start:end]
			}
		} else if img.URI != "" && !strings.HasPrefix(img.URI, "data:") {
			data, err := os.ReadFile(filepath.Join(dir, img.URI))
			if err == nil {
				textures[i] = data
			}
		}
	}
	return textures
}

func decodeImages(doc *gltf.Document, dir string) map[int]image.Image {
	images := make(map[int]image.Image)
	for i, data := range imageData(doc, dir) {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err == nil {
			images[i] = img
		}
	}
	return images
}

// LoadGLBWithTexture loads a GLB file and returns the mesh plus the first
// decodable texture. The texture may be nil if none is present.
func LoadGLBWithTexture(path string) (*Mesh, image.Image, error) {
	mesh, err := LoadGLB(path)
	if err != nil {
		return nil, nil, err
	}

	for _, mat := range mesh.Materials {
		if mat.HasTexture {
			return mesh, mat.BaseMap, nil
		}
	}
	return mesh, nil, nil
}
