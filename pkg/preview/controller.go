// Package preview drives rendering for an interactive viewer. A Controller
// owns one background worker that turns change requests into frames: any
// number of requests made while a pass runs collapse into a single follow-up
// pass, and a pass that learns it is stale stops early and starts over.
package preview

import (
	"context"
	"errors"
	"image/color"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

var (
	ErrClosed  = errors.New("preview: controller closed")
	ErrStarted = errors.New("preview: controller already started")
)

// errStale aborts a pass whose request has been superseded.
var errStale = errors.New("stale pass")

// DefaultRowBand is how many rows go into one SetRows call.
const DefaultRowBand = 16

// Stats describes the controller's work so far.
type Stats struct {
	Passes     int // Frames published
	Superseded int // Passes abandoned for a newer request
	Panics     int // Passes that panicked
	Faces      int // Faces filled or outlined in the last frame
	Pixels     int // Pixels written in the last frame
	Took       time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRowBand sets how many rows each SetRows call carries.
func WithRowBand(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.rowBand = n
		}
	}
}

// WithRepaint sets a callback run on the worker after every published
// frame. It must not block.
func WithRepaint(fn func()) Option {
	return func(c *Controller) { c.repaint = fn }
}

// WithBackground sets the clear color.
func WithBackground(bg color.RGBA) Option {
	return func(c *Controller) { c.background = bg }
}

// WithWireColor sets the line color used for quick passes.
func WithWireColor(wire color.RGBA) Option {
	return func(c *Controller) { c.wire = wire }
}

// WithLens sets the base lens. Camera zoom multiplies its Zoom.
func WithLens(l render.Lens) Option {
	return func(c *Controller) { c.lens = l }
}

// WithCulling sets backface culling and which winding faces the viewer.
func WithCulling(mode render.CullMode, front render.Winding) Option {
	return func(c *Controller) { c.cull, c.front = mode, front }
}

// WithCamera sets the initial camera.
func WithCamera(cam scene.Camera) Option {
	return func(c *Controller) { c.camera = cam }
}

// WithSize sets the initial viewport size.
func WithSize(width, height int) Option {
	return func(c *Controller) { c.width, c.height = max(width, 0), max(height, 0) }
}

// Controller renders a scene on demand.
type Controller struct {
	scene      *scene.Scene
	log        zerolog.Logger
	rowBand    int
	repaint    func()
	background color.RGBA
	wire       color.RGBA

	mu      sync.Mutex
	gen     uint64 // Latest request
	handled uint64 // Latest request a finished pass covered
	state   State
	mode    Mode
	width   int
	height  int
	camera  scene.Camera
	lens    render.Lens
	cull    render.CullMode
	front   render.Winding
	drag    *dragState
	subs    []Subscriber
	stats   Stats
	started bool
	closed  bool
	cancel  context.CancelFunc

	wake chan struct{}
	done chan struct{}

	// Owned by the worker.
	fb     *render.Framebuffer
	pipe   *render.Pipeline
	objs   []scene.Object
	lights []render.Light

	// Last published frame.
	pubMu  sync.Mutex
	frame  []byte
	frameW int
	frameH int
	ready  bool

	// Synchronous wireframe fallback.
	wireMu   sync.Mutex
	wirePipe *render.Pipeline
	wireObjs []scene.Object
}

// pass is the state a render pass works from, copied when it starts.
type pass struct {
	gen    uint64
	width  int
	height int
	mode   Mode
	view   math3d.Affine
	lens   render.Lens
	cull   render.CullMode
	front  render.Winding
}

// New creates a controller for sc. Call Start to run it. Changes to sc
// request a new frame.
func New(sc *scene.Scene, opts ...Option) *Controller {
	c := &Controller{
		scene:      sc,
		log:        zerolog.Nop(),
		rowBand:    DefaultRowBand,
		background: color.RGBA{A: 255},
		wire:       color.RGBA{R: 0, G: 255, B: 128, A: 255},
		camera:     scene.NewCamera(),
		lens:       render.DefaultLens(),
		cull:       render.CullBack,
		front:      render.CCW,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fb = render.NewFramebuffer(c.width, c.height)
	c.pipe = render.NewPipeline(c.fb)
	sc.OnChange(c.Invalidate)
	return c
}

// Start launches the worker. It stops when ctx is cancelled or Close is
// called. A first frame is requested immediately.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrStarted
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.requestLocked()
	return nil
}

// Close stops the worker and waits for it. Subscribers are dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.subs = nil
	started, cancel := c.started, c.cancel
	c.mu.Unlock()

	if started {
		cancel()
		<-c.done
	}
	return nil
}

// Invalidate requests a new frame.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	c.requestLocked()
	c.mu.Unlock()
}

func (c *Controller) requestLocked() {
	if c.closed {
		return
	}
	c.gen++
	if c.state == Idle {
		c.state = UpdatePending
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Resize changes the viewport and requests a frame.
func (c *Controller) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.width == width && c.height == height {
		return
	}
	c.width, c.height = width, height
	c.requestLocked()
}

// Size returns the viewport size.
func (c *Controller) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SetMode selects the quality of the following passes.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == m {
		return
	}
	c.mode = m
	c.requestLocked()
}

// Mode returns the current quality mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns where the controller is in its cycle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Subscribe adds s to the frame recipients. The last published frame, if
// any, is not replayed; use RequestFrame for that.
func (c *Controller) Subscribe(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || slices.Contains(c.subs, s) {
		return
	}
	c.subs = append(c.subs, s)
}

// Unsubscribe removes s. A delivery already in progress may still finish.
func (c *Controller) Unsubscribe(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(x Subscriber) bool { return x == s })
}

// RequestFrame sends the last published frame to s. It reports false if no
// frame has been published yet.
func (c *Controller) RequestFrame(s Subscriber) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if !c.ready {
		return false
	}
	c.deliver(s)
	return true
}

// DrawWireframe outlines the scene into fb right away, at fb's size, using
// the current camera. It does not touch the worker or subscribers and
// returns the number of faces outlined.
func (c *Controller) DrawWireframe(fb *render.Framebuffer) int {
	c.mu.Lock()
	p := c.snapshotLocked()
	c.mu.Unlock()

	c.wireMu.Lock()
	defer c.wireMu.Unlock()
	if c.wirePipe == nil {
		c.wirePipe = render.NewPipeline(fb)
	}
	pipe := c.wirePipe
	c.configure(pipe, p)
	pipe.Begin(fb, [3]float64{}, nil)

	fb.Clear(c.background)
	c.wireObjs = c.scene.Objects(c.wireObjs)
	n := 0
	for i := range c.wireObjs {
		n += pipe.Outline(i, c.wireObjs[i].Renderable(p.view), c.wire)
	}
	pipe.Trim(len(c.wireObjs))
	return n
}

// lensFor applies the camera's zoom to the base lens.
func (c *Controller) lensFor(cam scene.Camera) render.Lens {
	lens := c.lens
	if lens.Zoom <= 0 {
		lens.Zoom = 1
	}
	lens.Zoom *= cam.Zoom
	return lens
}

func (c *Controller) snapshotLocked() pass {
	return pass{
		gen:    c.gen,
		width:  c.width,
		height: c.height,
		mode:   c.mode,
		view:   c.camera.View(),
		lens:   c.lensFor(c.camera),
		cull:   c.cull,
		front:  c.front,
	}
}

func (c *Controller) configure(pipe *render.Pipeline, p pass) {
	pipe.Lens = p.lens
	pipe.Projector.Cull = p.cull
	pipe.Projector.FrontFace = p.front
}

func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
		close(c.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		for c.step(ctx) {
		}
	}
}

// begin claims the latest request. ok is false when nothing is pending.
func (c *Controller) begin() (p pass, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handled >= c.gen {
		c.state = Idle
		return pass{}, false
	}
	c.state = Rendering
	return c.snapshotLocked(), true
}

// check reports errStale once the pass has been superseded.
func (c *Controller) check(ctx context.Context, p *pass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != p.gen {
		return errStale
	}
	return nil
}

// step runs at most one pass and reports whether the worker should look
// for another request before sleeping.
func (c *Controller) step(ctx context.Context) (more bool) {
	p, ok := c.begin()
	if !ok {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Interface("panic", r).
				Uint64("gen", p.gen).
				Str("stack", string(debug.Stack())).
				Msg("render pass panicked")
			c.finish(p.gen, func(s *Stats) { s.Panics++ })
			more = ctx.Err() == nil
		}
	}()

	start := time.Now()
	err := c.render(ctx, &p)
	switch {
	case errors.Is(err, errStale):
		c.log.Debug().Uint64("gen", p.gen).Msg("pass superseded")
		c.mu.Lock()
		c.stats.Superseded++
		c.mu.Unlock()
		return ctx.Err() == nil
	case err != nil:
		return false
	}

	c.publish()
	took := time.Since(start)
	faces, pixels := c.pipe.Rasterizer.Stats.Faces, c.pipe.Rasterizer.Stats.Pixels
	if p.mode == Quick {
		faces = c.pipe.Projector.Stats.Visible
	}
	c.finish(p.gen, func(s *Stats) {
		s.Passes++
		s.Faces, s.Pixels, s.Took = faces, pixels, took
	})
	c.log.Debug().
		Uint64("gen", p.gen).
		Stringer("mode", p.mode).
		Int("faces", faces).
		Int("pixels", pixels).
		Dur("took", took).
		Msg("frame rendered")

	if c.repaint != nil {
		c.repaint()
	}
	return ctx.Err() == nil
}

// finish marks gen handled and settles the state.
func (c *Controller) finish(gen uint64, update func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handled = max(c.handled, gen)
	update(&c.stats)
	if c.gen > c.handled {
		c.state = UpdatePending
	} else {
		c.state = Idle
	}
}

func (c *Controller) render(ctx context.Context, p *pass) error {
	if c.fb.Resize(p.width, p.height) {
		c.log.Debug().Int("width", p.width).Int("height", p.height).Msg("framebuffer resized")
	}

	c.objs = c.scene.Objects(c.objs)
	if err := c.check(ctx, p); err != nil {
		return err
	}
	c.lights = c.scene.ViewLights(p.view, c.lights)
	ambient := c.scene.Ambient()
	if err := c.check(ctx, p); err != nil {
		return err
	}

	c.fb.Clear(c.background)
	c.configure(c.pipe, *p)
	c.pipe.Begin(c.fb, ambient, c.lights)
	for i := range c.objs {
		if err := c.check(ctx, p); err != nil {
			return err
		}
		ro := c.objs[i].Renderable(p.view)
		if p.mode == Quick {
			c.pipe.Outline(i, ro, c.wire)
		} else {
			c.pipe.Draw(i, ro)
		}
	}
	c.pipe.Trim(len(c.objs))
	return nil
}

// publish copies the framebuffer into the front buffer and hands it to
// every subscriber.
func (c *Controller) publish() {
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.frame = c.fb.RGBRows(0, c.fb.Height, c.frame)
	c.frameW, c.frameH = c.fb.Width, c.fb.Height
	c.ready = true
	for _, s := range subs {
		c.deliver(s)
	}
}

// deliver sends the front buffer to s. pubMu must be held.
func (c *Controller) deliver(s Subscriber) {
	w, h := c.frameW, c.frameH
	s.SetSize(w, h)
	stride := w * 3
	for y := 0; y < h; y += c.rowBand {
		y1 := min(y+c.rowBand, h)
		s.SetRows(y, y1, c.frame[y*stride:y1*stride])
	}
	s.FrameDone()
}
