package preview

import (
	"context"
	"image"
	"sync"
)

// Subscriber receives finished frames. Calls for one frame arrive in order
// on a single goroutine: SetSize, then SetRows for consecutive row bands
// covering the frame top to bottom, then FrameDone. rgb holds tightly packed
// 8-bit RGB triples and is only valid for the duration of the call.
//
// A subscriber must not call back into the Controller that is delivering.
type Subscriber interface {
	SetSize(width, height int)
	SetRows(y0, y1 int, rgb []byte)
	FrameDone()
}

// Collector is a Subscriber that assembles frames into an image.
type Collector struct {
	mu     sync.Mutex
	img    *image.RGBA
	next   *image.RGBA
	frames int
	notify chan struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{notify: make(chan struct{}, 1)}
}

// SetSize starts a new frame.
func (c *Collector) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == nil || c.next.Bounds().Dx() != width || c.next.Bounds().Dy() != height {
		c.next = image.NewRGBA(image.Rect(0, 0, width, height))
	}
}

// SetRows copies a band of rows into the frame being assembled.
func (c *Collector) SetRows(y0, y1 int, rgb []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == nil {
		return
	}
	w := c.next.Bounds().Dx()
	y1 = min(y1, c.next.Bounds().Dy())
	src := 0
	for y := max(y0, 0); y < y1; y++ {
		row := c.next.Pix[y*c.next.Stride : y*c.next.Stride+w*4]
		for x := 0; x < w && src+2 < len(rgb); x++ {
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = rgb[src], rgb[src+1], rgb[src+2], 255
			src += 3
		}
	}
}

// FrameDone publishes the assembled frame.
func (c *Collector) FrameDone() {
	c.mu.Lock()
	if c.next != nil {
		c.img, c.next = c.next, nil
		c.frames++
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Frames returns how many frames have completed.
func (c *Collector) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Image returns the last completed frame, or nil.
func (c *Collector) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// Wait blocks until the collector has seen more than n frames and returns
// the latest.
func (c *Collector) Wait(ctx context.Context, n int) (*image.RGBA, error) {
	for {
		c.mu.Lock()
		img, frames := c.img, c.frames
		c.mu.Unlock()
		if frames > n {
			return img, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.notify:
		}
	}
}
