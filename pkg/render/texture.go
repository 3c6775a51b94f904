package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"
	"os"
)

// WrapMode determines how texel coordinates outside the image are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor (pixelated)
	FilterBilinear                   // Bilinear interpolation (smooth)
)

// Texture holds a 2D image for texture mapping. It is addressed in texel
// units: (0, 0) is the top-left corner of the first texel and
// (Width, Height) the bottom-right corner of the last.
type Texture struct {
	Width      int
	Height     int
	Pixels     []color.RGBA // Row-major pixel data
	WrapU      WrapMode     // Horizontal wrap mode
	WrapV      WrapMode     // Vertical wrap mode
	FilterMode FilterMode   // Sampling filter mode
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:      width,
		Height:     height,
		Pixels:     make([]color.RGBA, width*height),
		WrapU:      WrapRepeat,
		WrapV:      WrapRepeat,
		FilterMode: FilterNearest,
	}
}

// LoadTexture loads a texture from an image file.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture: %w", err)
	}
	return TextureFromImage(img), nil
}

// TextureFromImage creates a texture from an image.Image.
func TextureFromImage(img image.Image) *Texture {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	tex := NewTexture(b.Dx(), b.Dy())
	for i := range tex.Pixels {
		j := i * 4
		tex.Pixels[i] = color.RGBA{rgba.Pix[j], rgba.Pix[j+1], rgba.Pix[j+2], rgba.Pix[j+3]}
	}
	return tex
}

// NewCheckerTexture creates a procedural checkerboard texture.
func NewCheckerTexture(width, height, checkSize int, c1, c2 color.RGBA) *Texture {
	tex := NewTexture(width, height)
	for y := range height {
		for x := range width {
			if (x/checkSize+y/checkSize)%2 == 0 {
				tex.SetPixel(x, y, c1)
			} else {
				tex.SetPixel(x, y, c2)
			}
		}
	}
	return tex
}

// SetPixel sets a pixel in the texture.
func (t *Texture) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

// GetPixel returns the pixel at (x, y) with bounds checking.
func (t *Texture) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return color.RGBA{}
	}
	return t.Pixels[y*t.Width+x]
}

// Sample samples the texture at texel coordinates.
func (t *Texture) Sample(u, v float64) color.RGBA {
	if t.Width == 0 || t.Height == 0 {
		return color.RGBA{}
	}
	switch t.FilterMode {
	case FilterBilinear:
		return t.sampleBilinear(u, v)
	default:
		x := wrapTexel(int(math.Floor(u)), t.Width, t.WrapU)
		y := wrapTexel(int(math.Floor(v)), t.Height, t.WrapV)
		return t.Pixels[y*t.Width+x]
	}
}

// sampleBilinear returns bilinearly interpolated color.
func (t *Texture) sampleBilinear(u, v float64) color.RGBA {
	fx := u - 0.5
	fy := v - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapTexel(x0+1, t.Width, t.WrapU)
	y1 := wrapTexel(y0+1, t.Height, t.WrapV)
	x0 = wrapTexel(x0, t.Width, t.WrapU)
	y0 = wrapTexel(y0, t.Height, t.WrapV)

	c00 := t.Pixels[y0*t.Width+x0]
	c10 := t.Pixels[y0*t.Width+x1]
	c01 := t.Pixels[y1*t.Width+x0]
	c11 := t.Pixels[y1*t.Width+x1]

	top := lerpColor(c00, c10, tx)
	bot := lerpColor(c01, c11, tx)
	return lerpColor(top, bot, ty)
}

// wrapTexel maps a texel index into [0, size).
func wrapTexel(x, size int, mode WrapMode) int {
	switch mode {
	case WrapClamp:
		return min(max(x, 0), size-1)
	default:
		x %= size
		if x < 0 {
			x += size
		}
		return x
	}
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t + 0.5),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t + 0.5),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t + 0.5),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t + 0.5),
	}
}
