// Package stream serves rendered frames to browsers over websockets and
// forwards their pointer input back to the renderer.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/taigrr/glimpse/pkg/preview"
)

const (
	writeWait = time.Second
	maxQueued = 64 // Control messages waiting for one client
)

// Control is the part of the preview controller a client can drive.
type Control interface {
	Press(x, y int, mode preview.DragMode)
	Drag(x, y int)
	Release()
	Wheel(steps float64)
	Resize(width, height int)
	Size() (width, height int)
	ViewSettings() string
	SetViewSettings(s string) error
}

type outgoing struct {
	kind int
	data []byte
}

// client is one websocket connection. Control messages queue in order;
// frames do not queue: a frame the writer has not started on is replaced
// by the next one.
type client struct {
	conn *websocket.Conn
	wake chan struct{}

	mu     sync.Mutex
	queue  []outgoing
	frame  []outgoing // Bands of the newest frame, then its frame message
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, wake: make(chan struct{}, 1)}
}

func (c *client) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// enqueue adds a control message. It reports false when the client is
// closed or has maxQueued messages waiting.
func (c *client) enqueue(m outgoing) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) >= maxQueued {
		return false
	}
	c.queue = append(c.queue, m)
	c.notify()
	return true
}

// setFrame makes msgs the pending frame and reports whether an unsent
// frame was discarded.
func (c *client) setFrame(msgs []outgoing) (stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	stale = len(c.frame) > 0
	c.frame = msgs
	c.notify()
	return stale
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.notify()
}

// take returns everything pending, control messages first.
func (c *client) take() ([]outgoing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := append(c.queue, c.frame...)
	c.queue, c.frame = nil, nil
	return msgs, c.closed
}

// Hub is a preview.Subscriber that fans frames out to websocket clients.
// Each client gets its own writer goroutine. A client that falls behind
// skips frames; only one that stops taking control replies is dropped.
type Hub struct {
	ctl      Control
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	width   int
	height  int
	frame   []byte     // RGB of the frame being received
	bands   []outgoing // Band messages of the frame being received
	last    []byte     // Encoded copy of the last complete frame
	seq     uint64
	skipped uint64
	closed  bool
}

// NewHub creates a hub forwarding client input to ctl.
func NewHub(ctl Control, log zerolog.Logger) *Hub {
	return &Hub{
		ctl:     ctl,
		log:     log,
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Skipped returns how many frames were replaced before a client got them.
func (h *Hub) Skipped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.skipped
}

// SetSize implements preview.Subscriber.
func (h *Hub) SetSize(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = width, height
	n := width * height * 3
	if cap(h.frame) < n {
		h.frame = make([]byte, n)
	}
	h.frame = h.frame[:n]
	h.bands = nil
}

// SetRows implements preview.Subscriber.
func (h *Hub) SetRows(y0, y1 int, rgb []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off := y0 * h.width * 3; off >= 0 && off <= len(h.frame) {
		copy(h.frame[off:], rgb)
	}
	msg := appendBand(make([]byte, 0, HeaderSize+len(rgb)), Header{h.width, h.height, y0, y1}, rgb)
	h.bands = append(h.bands, outgoing{websocket.BinaryMessage, msg})
}

// FrameDone implements preview.Subscriber.
func (h *Hub) FrameDone() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.last = appendBand(h.last[:0], Header{h.width, h.height, 0, h.height}, h.frame)
	msgs := append(h.bands, h.textLocked(Message{Type: TypeFrame, Width: h.width, Height: h.height, Seq: h.seq}))
	h.bands = nil
	for c := range h.clients {
		if c.setFrame(msgs) {
			h.skipped++
		}
	}
}

func (h *Hub) textLocked(m Message) outgoing {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error().Err(err).Str("type", m.Type).Msg("encode message")
	}
	return outgoing{websocket.TextMessage, b}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade")
		return
	}
	c := newClient(conn)

	width, height := h.ctl.Size()
	hello := Message{Type: TypeHello, Width: width, Height: height, Settings: h.ctl.ViewSettings()}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	c.enqueue(h.textLocked(hello))
	if len(h.last) > 0 {
		c.setFrame([]outgoing{
			{websocket.BinaryMessage, append([]byte(nil), h.last...)},
			h.textLocked(Message{Type: TypeFrame, Width: h.width, Height: h.height, Seq: h.seq}),
		})
	}
	h.mu.Unlock()

	log := h.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("client connected")
	go c.writeLoop(log)
	h.readLoop(c, log)
	h.drop(c)
	log.Info().Msg("client disconnected")
}

func (c *client) writeLoop(log zerolog.Logger) {
	defer c.conn.Close()
	for range c.wake {
		msgs, closed := c.take()
		for _, m := range msgs {
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
				log.Debug().Err(err).Msg("write")
				return
			}
		}
		if closed {
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Hub) readLoop(c *client, log zerolog.Logger) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("read")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			h.reply(c, Message{Type: TypeError, Error: "invalid json"})
			continue
		}
		if reply, ok := h.apply(m); ok {
			h.reply(c, reply)
		}
	}
}

// apply forwards one control message. It returns a reply for messages
// that need one.
func (h *Hub) apply(m Message) (Message, bool) {
	switch m.Type {
	case TypePress:
		mode, ok := preview.ParseDragMode(m.Button)
		if !ok {
			return Message{Type: TypeError, Error: "unknown button " + m.Button}, true
		}
		h.ctl.Press(m.X, m.Y, mode)
	case TypeDrag:
		h.ctl.Drag(m.X, m.Y)
	case TypeRelease:
		h.ctl.Release()
	case TypeWheel:
		h.ctl.Wheel(m.Steps)
	case TypeResize:
		if m.Width < 1 || m.Height < 1 || m.Width > MaxDimension || m.Height > MaxDimension {
			return Message{Type: TypeError, Error: "size out of range"}, true
		}
		h.ctl.Resize(m.Width, m.Height)
	case TypeView:
		if err := h.ctl.SetViewSettings(m.Settings); err != nil {
			return Message{Type: TypeError, Error: err.Error()}, true
		}
	case TypeGetView:
		return Message{Type: TypeView, Settings: h.ctl.ViewSettings()}, true
	default:
		return Message{Type: TypeError, Error: "unknown message type " + m.Type}, true
	}
	return Message{}, false
}

func (h *Hub) reply(c *client, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if !c.enqueue(h.textLocked(m)) {
		h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("client not reading, dropping")
		h.dropLocked(c)
	}
}
