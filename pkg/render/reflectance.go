package render

import "math"

// ReflectanceSize is the default side length of a reflectance table.
const ReflectanceSize = 64

// ReflectanceTable maps a normal, expressed in a basis around the half
// vector, to a specular intensity. Cell (i, j) stands for the normal with
// basis coordinates sx = 2i/(size-1) - 1 and sy = 2j/(size-1) - 1, whose
// component along the half vector is sqrt(1 - sx² - sy²). The stored value
// is 255 * that component raised to the shininess.
type ReflectanceTable struct {
	Size      int
	Shininess float64
	Values    []uint8 // Row-major, Size*Size
}

// NewReflectanceTable builds a table.
func NewReflectanceTable(size int, shininess float64) *ReflectanceTable {
	size = max(size, 2)
	t := &ReflectanceTable{
		Size:      size,
		Shininess: shininess,
		Values:    make([]uint8, size*size),
	}
	for j := range size {
		sy := t.coord(j)
		for i := range size {
			sx := t.coord(i)
			c := 1 - sx*sx - sy*sy
			if c <= 0 {
				continue
			}
			t.Values[j*size+i] = uint8(255*math.Pow(math.Sqrt(c), shininess) + 0.5)
		}
	}
	return t
}

// coord maps a cell index to its basis coordinate in [-1, 1].
func (t *ReflectanceTable) coord(i int) float64 {
	return 2*float64(i)/float64(t.Size-1) - 1
}

// Cell converts a basis coordinate in [-1, 1] to a fixed-point (x256) cell
// position, as stored in Face.SpecX and Face.SpecY.
func (t *ReflectanceTable) Cell(s float64) int32 {
	s = math.Max(-1, math.Min(1, s))
	return int32(math.Round((s + 1) / 2 * float64(t.Size-1) * ShadeOne))
}

// At returns the intensity at fixed-point (x256) cell coordinates.
func (t *ReflectanceTable) At(sx, sy int32) uint8 {
	i := int(sx+ShadeOne/2) / ShadeOne
	j := int(sy+ShadeOne/2) / ShadeOne
	i = min(max(i, 0), t.Size-1)
	j = min(max(j, 0), t.Size-1)
	return t.Values[j*t.Size+i]
}

// ReflectanceCache builds tables lazily and keeps one per shininess.
// It is not safe for concurrent use; the render worker owns it.
type ReflectanceCache struct {
	Size   int
	tables map[float64]*ReflectanceTable
}

// NewReflectanceCache creates a cache for tables of the given size.
func NewReflectanceCache(size int) *ReflectanceCache {
	return &ReflectanceCache{Size: size, tables: make(map[float64]*ReflectanceTable)}
}

// Get returns the table for shininess, building it on first use.
func (c *ReflectanceCache) Get(shininess float64) *ReflectanceTable {
	if shininess <= 0 {
		shininess = 1
	}
	if t, ok := c.tables[shininess]; ok {
		return t
	}
	t := NewReflectanceTable(c.Size, shininess)
	c.tables[shininess] = t
	return t
}

// Len returns the number of cached tables.
func (c *ReflectanceCache) Len() int {
	return len(c.tables)
}
