package models

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// LoadOBJ loads a Wavefront OBJ file. Material libraries and textures are
// resolved relative to the file.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer f.Close()

	mesh, err := ParseOBJ(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	mesh.Name = filepath.Base(path)
	return mesh, nil
}

type objCorner struct {
	p, t, n int
}

type objParser struct {
	dir  string
	mesh *Mesh

	positions []math3d.Vec3
	uvs       []math3d.Vec2
	normals   []math3d.Vec3

	corners   map[objCorner]int
	materials map[string]int
	material  int
	smooth    bool
}

// ParseOBJ reads OBJ data. dir is used to locate mtllib files and may be
// empty, in which case material libraries are ignored.
//
// Supported statements: v, vt, vn, f, s, usemtl and mtllib. Polygons keep
// their vertex count. Faces without explicit normals are flat unless a
// smoothing group is active.
func ParseOBJ(r io.Reader, dir string) (*Mesh, error) {
	p := &objParser{
		dir:       dir,
		mesh:      NewMesh("obj"),
		corners:   make(map[objCorner]int),
		materials: make(map[string]int),
		material:  -1,
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}

	p.mesh.FillMissingNormals()
	p.mesh.CalculateBounds()
	return p.mesh, nil
}

func (p *objParser) parseLine(text string) error {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		p.positions = append(p.positions, math3d.V3(v[0], v[1], v[2]))
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return fmt.Errorf("texture coordinate: %w", err)
		}
		// OBJ puts the texture origin bottom-left.
		p.uvs = append(p.uvs, math3d.V2(v[0], 1-v[1]))
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		p.normals = append(p.normals, math3d.V3(v[0], v[1], v[2]).Normalize())
	case "f":
		return p.parseFace(fields[1:])
	case "s":
		p.smooth = len(fields) > 1 && fields[1] != "off" && fields[1] != "0"
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl without name")
		}
		idx, ok := p.materials[fields[1]]
		if !ok {
			p.mesh.Materials = append(p.mesh.Materials, DefaultMaterial)
			idx = len(p.mesh.Materials) - 1
			p.mesh.Materials[idx].Name = fields[1]
			p.materials[fields[1]] = idx
		}
		p.material = idx
	case "mtllib":
		if p.dir == "" {
			return nil
		}
		for _, name := range fields[1:] {
			if err := p.loadMTL(filepath.Join(p.dir, name)); err != nil {
				return err
			}
		}
	}
	// o, g, l and unknown statements are ignored.
	return nil
}

func (p *objParser) parseFace(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face needs at least 3 vertices, got %d", len(refs))
	}

	idx := make([]int, 0, len(refs))
	explicitNormals := true
	for _, ref := range refs {
		c, err := p.parseCorner(ref)
		if err != nil {
			return fmt.Errorf("face: %w", err)
		}
		if c.n < 0 {
			explicitNormals = false
		}
		vi, ok := p.corners[c]
		if !ok {
			v := MeshVertex{Position: p.positions[c.p]}
			if c.t >= 0 {
				v.UV = p.uvs[c.t]
			}
			if c.n >= 0 {
				v.Normal = p.normals[c.n]
			}
			p.mesh.Vertices = append(p.mesh.Vertices, v)
			vi = len(p.mesh.Vertices) - 1
			p.corners[c] = vi
		}
		idx = append(idx, vi)
	}

	p.mesh.AddFace(p.material, p.smooth || explicitNormals, idx...)
	return nil
}

// parseCorner resolves one v, v/t, v//n or v/t/n reference. Negative indices
// count back from the end. Missing components are -1.
func (p *objParser) parseCorner(ref string) (objCorner, error) {
	parts := strings.Split(ref, "/")
	c := objCorner{t: -1, n: -1}

	var err error
	if c.p, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return c, fmt.Errorf("vertex index %q: %w", ref, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.t, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return c, fmt.Errorf("texture index %q: %w", ref, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.n, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return c, fmt.Errorf("normal index %q: %w", ref, err)
		}
	}
	return c, nil
}

func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, fmt.Errorf("out of range (have %d)", n)
	}
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := range n {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// loadMTL reads a material library. A missing library is not an error:
// faces keep the default material.
func (p *objParser) loadMTL(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open mtl: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var cur *Material
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return fmt.Errorf("mtl: newmtl without name")
			}
			idx, ok := p.materials[fields[1]]
			if !ok {
				p.mesh.Materials = append(p.mesh.Materials, DefaultMaterial)
				idx = len(p.mesh.Materials) - 1
				p.materials[fields[1]] = idx
			}
			cur = &p.mesh.Materials[idx]
			cur.Name = fields[1]
			continue
		}
		if cur == nil {
			continue
		}

		switch fields[0] {
		case "Kd":
			if v, err := parseFloats(fields[1:], 3); err == nil {
				cur.BaseColor = [4]float64{v[0], v[1], v[2], cur.BaseColor[3]}
			}
		case "Ks":
			if v, err := parseFloats(fields[1:], 3); err == nil {
				cur.Specular = (v[0] + v[1] + v[2]) / 3
			}
		case "Ns":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.Shininess = v[0]
			}
		case "d":
			if v, err := parseFloats(fields[1:], 1); err == nil {
				cur.BaseColor[3] = v[0]
			}
		case "map_Kd":
			if len(fields) < 2 {
				continue
			}
			img, err := decodeImageFile(filepath.Join(dir, fields[len(fields)-1]))
			if err == nil {
				cur.BaseMap = img
				cur.HasTexture = true
			}
		}
	}
	return sc.Err()
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
