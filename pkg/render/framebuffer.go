package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Framebuffer holds the frame and its parallel inverse-depth buffer.
// Both are row-major and exactly Width*Height long.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA
	Depth  []Depth
}

// NewFramebuffer creates a new framebuffer with the given dimensions.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{}
	fb.Resize(width, height)
	return fb
}

// Resize changes the dimensions, reusing storage when it is large enough.
// Contents are cleared either way. Returns false if the size is unchanged.
func (fb *Framebuffer) Resize(width, height int) bool {
	width, height = max(width, 0), max(height, 0)
	if width == fb.Width && height == fb.Height && len(fb.Pixels) == width*height {
		return false
	}
	n := width * height
	if cap(fb.Pixels) >= n {
		fb.Pixels = fb.Pixels[:n]
		fb.Depth = fb.Depth[:n]
	} else {
		fb.Pixels = make([]color.RGBA, n)
		fb.Depth = make([]Depth, n)
	}
	fb.Width, fb.Height = width, height
	fb.Clear(color.RGBA{})
	return true
}

// Clear fills the frame with a solid color and resets depth to infinitely far.
func (fb *Framebuffer) Clear(c color.RGBA) {
	n := len(fb.Pixels)
	if n == 0 {
		return
	}
	// Copy-doubling is faster than a per-element loop.
	fb.Pixels[0] = c
	for i := 1; i < n; i *= 2 {
		copy(fb.Pixels[i:], fb.Pixels[:i])
	}
	fb.ClearDepth()
}

// ClearDepth resets the depth buffer.
func (fb *Framebuffer) ClearDepth() {
	clear(fb.Depth)
}

// SetPixel sets a pixel at (x, y) to the given color.
// Bounds checking is performed.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the color at (x, y).
// Returns transparent black if out of bounds.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DepthAt returns the stored inverse depth at (x, y), 0 if out of bounds.
func (fb *Framebuffer) DepthAt(x, y int) Depth {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return 0
	}
	return fb.Depth[y*fb.Width+x]
}

// DrawLine draws a line from (x0, y0) to (x1, y1) using Bresenham's
// algorithm. The line is clipped to the buffer first.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	var ok bool
	if x0, y0, x1, y1, ok = clipLine(x0, y0, x1, y1, fb.Width-1, fb.Height-1); !ok {
		return
	}

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// clipLine clips a segment to [0, maxX] x [0, maxY] (Liang-Barsky).
func clipLine(x0, y0, x1, y1, maxX, maxY int) (int, int, int, int, bool) {
	if maxX < 0 || maxY < 0 {
		return 0, 0, 0, 0, false
	}
	fx0, fy0 := float64(x0), float64(y0)
	dx, dy := float64(x1-x0), float64(y1-y0)
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, fx0},
		{dx, float64(maxX) - fx0},
		{-dy, fy0},
		{dy, float64(maxY) - fy0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			t0 = max(t0, r)
		} else {
			t1 = min(t1, r)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}
	round := func(v float64) int { return int(v + 0.5) }
	return round(fx0 + t0*dx), round(fy0 + t0*dy), round(fx0 + t1*dx), round(fy0 + t1*dy), true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// RGBRows packs rows [y0, y1) as tightly packed 8-bit RGB triples into dst,
// growing it if needed, and returns the filled slice.
func (fb *Framebuffer) RGBRows(y0, y1 int, dst []byte) []byte {
	y0, y1 = max(y0, 0), min(y1, fb.Height)
	if y1 <= y0 {
		return dst[:0]
	}
	n := (y1 - y0) * fb.Width * 3
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	i := 0
	for _, p := range fb.Pixels[y0*fb.Width : y1*fb.Width] {
		dst[i], dst[i+1], dst[i+2] = p.R, p.G, p.B
		i += 3
	}
	return dst
}

// ToImage converts the framebuffer to a standard Go image.RGBA.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for i, p := range fb.Pixels {
		j := i * 4
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = p.R, p.G, p.B, p.A
	}
	return img
}

// ScaledImage returns the frame resampled to width x height.
func (fb *Framebuffer) ScaledImage(width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	src := fb.ToImage()
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SavePNG saves the framebuffer as a PNG file.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, fb.ToImage()); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
