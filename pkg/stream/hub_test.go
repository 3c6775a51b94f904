package stream

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/glimpse/pkg/models"
	"github.com/taigrr/glimpse/pkg/preview"
	"github.com/taigrr/glimpse/pkg/scene"
)

// fakeControl records the calls a client makes.
type fakeControl struct {
	mu    sync.Mutex
	calls []string
	view  string
	w, h  int
}

func (f *fakeControl) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeControl) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeControl) Press(x, y int, mode preview.DragMode) {
	f.record("press " + mode.String())
}
func (f *fakeControl) Drag(x, y int) { f.record("drag") }
func (f *fakeControl) Release() { f.record("release") }
func (f *fakeControl) Wheel(steps float64) { f.record("wheel") }
func (f *fakeControl) Resize(w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.w, f.h = w, h
	f.calls = append(f.calls, "resize")
}
func (f *fakeControl) Size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w, f.h
}
func (f *fakeControl) ViewSettings() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}
func (f *fakeControl) SetViewSettings(s string) error {
	if !strings.HasPrefix(s, "rot=") {
		return errors.New("bad view")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = s
	return nil
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func readBand(t *testing.T, conn *websocket.Conn) (Header, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	h, rgb, err := ParseFrame(data)
	require.NoError(t, err)
	return h, rgb
}

func newHub(t *testing.T, ctl Control) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(ctl, zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func TestParseFrame(t *testing.T) {
	msg := appendBand(nil, Header{Width: 2, Height: 3, Y0: 1, Y1: 2}, []byte{1, 2, 3, 4, 5, 6})
	require.Len(t, msg, HeaderSize+6)
	assert.Equal(t, "GLMP", string(msg[:4]))

	h, rgb, err := ParseFrame(msg)
	require.NoError(t, err)
	assert.Equal(t, Header{Width: 2, Height: 3, Y0: 1, Y1: 2}, h)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, rgb)

	for name, bad := range map[string][]byte{
		"short":    msg[:5],
		"magic":    append([]byte("XXXX"), msg[4:]...),
		"payload":  msg[:len(msg)-1],
		"rows":     appendBand(nil, Header{Width: 1, Height: 1, Y0: 1, Y1: 2}, []byte{1, 2, 3}),
		"inverted": appendBand(nil, Header{Width: 1, Height: 4, Y0: 2, Y1: 1}, nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseFrame(bad)
			assert.ErrorIs(t, err, ErrBadMessage)
		})
	}
}

func TestHubHelloAndFrames(t *testing.T) {
	ctl := &fakeControl{view: "rot=0,0,0 pos=0,0,4 zoom=1", w: 4, h: 2}
	hub, srv := newHub(t, ctl)
	conn := dial(t, srv)

	hello := readText(t, conn)
	assert.Equal(t, TypeHello, hello.Type)
	assert.Equal(t, 4, hello.Width)
	assert.Equal(t, 2, hello.Height)
	assert.Equal(t, ctl.view, hello.Settings)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, time.Millisecond)

	row := func(v byte) []byte { return []byte{v, v, v, v, v, v, v, v, v, v, v, v} }
	hub.SetSize(4, 2)
	hub.SetRows(0, 1, row(1))
	hub.SetRows(1, 2, row(2))
	hub.FrameDone()

	h, rgb := readBand(t, conn)
	assert.Equal(t, Header{Width: 4, Height: 2, Y0: 0, Y1: 1}, h)
	assert.Equal(t, row(1), rgb)
	h, rgb = readBand(t, conn)
	assert.Equal(t, 1, h.Y0)
	assert.Equal(t, row(2), rgb)
	done := readText(t, conn)
	assert.Equal(t, TypeFrame, done.Type)
	assert.Equal(t, uint64(1), done.Seq)

	// A late client gets the whole last frame in one message.
	late := dial(t, srv)
	assert.Equal(t, TypeHello, readText(t, late).Type)
	h, rgb = readBand(t, late)
	assert.Equal(t, Header{Width: 4, Height: 2, Y0: 0, Y1: 2}, h)
	assert.Equal(t, append(row(1), row(2)...), rgb)
	assert.Equal(t, uint64(1), readText(t, late).Seq)
}

func TestHubControl(t *testing.T) {
	ctl := &fakeControl{view: "rot=0,0,0 pos=0,0,4 zoom=1"}
	_, srv := newHub(t, ctl)
	conn := dial(t, srv)
	readText(t, conn)

	for _, m := range []Message{
		{Type: TypePress, X: 1, Y: 2, Button: "pan"},
		{Type: TypeDrag, X: 3, Y: 4},
		{Type: TypeRelease},
		{Type: TypeWheel, Steps: 2},
		{Type: TypeResize, Width: 80, Height: 60},
	} {
		require.NoError(t, conn.WriteJSON(m))
	}
	require.Eventually(t, func() bool { return len(ctl.Calls()) == 5 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, []string{"press pan", "drag", "release", "wheel", "resize"}, ctl.Calls())
	w, h := ctl.Size()
	assert.Equal(t, 80, w)
	assert.Equal(t, 60, h)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeView, Settings: "rot=1,2,3 pos=0,0,1 zoom=2"}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeGetView}))
	reply := readText(t, conn)
	assert.Equal(t, TypeView, reply.Type)
	assert.Equal(t, "rot=1,2,3 pos=0,0,1 zoom=2", reply.Settings)

	tests := []struct {
		name string
		send string
	}{
		{"bad json", `{"type":`},
		{"unknown type", `{"type":"spin"}`},
		{"unknown button", `{"type":"press","button":"left"}`},
		{"bad size", `{"type":"resize","width":0,"height":10}`},
		{"bad view", `{"type":"view","settings":"nope"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.send)))
			reply := readText(t, conn)
			assert.Equal(t, TypeError, reply.Type)
			assert.NotEmpty(t, reply.Error)
		})
	}
}

func TestHubClose(t *testing.T) {
	hub, srv := newHub(t, &fakeControl{})
	conn := dial(t, srv)
	readText(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHubWithController(t *testing.T) {
	sc := scene.New()
	sc.Add(scene.NewObject("cube", models.NewCube(1)))
	ctl := preview.New(sc, preview.WithSize(32, 24), preview.WithRowBand(8))
	defer ctl.Close()

	hub, srv := newHub(t, ctl)
	ctl.Subscribe(hub)
	conn := dial(t, srv)
	hello := readText(t, conn)
	assert.Equal(t, 32, hello.Width)
	assert.Equal(t, "rot=0,0,0 pos=0,0,4 zoom=1", hello.Settings)

	require.NoError(t, ctl.Start(context.Background()))
	for y0 := 0; y0 < 24; y0 += 8 {
		h, rgb := readBand(t, conn)
		assert.Equal(t, y0, h.Y0)
		assert.Equal(t, y0+8, h.Y1)
		assert.Len(t, rgb, 8*32*3)
	}
	assert.Equal(t, TypeFrame, readText(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeResize, Width: 16, Height: 8}))
	h, _ := readBand(t, conn)
	assert.Equal(t, Header{Width: 16, Height: 8, Y0: 0, Y1: 8}, h)
}

func TestHubTallFrame(t *testing.T) {
	const w, h = 4, 1000
	hub, srv := newHub(t, &fakeControl{w: w, h: h})
	conn := dial(t, srv)
	readText(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, time.Millisecond)

	// One row per band, far more bands than control messages a client may queue.
	hub.SetSize(w, h)
	for y := range h {
		hub.SetRows(y, y+1, make([]byte, w*3))
	}
	hub.FrameDone()

	for y := range h {
		hdr, _ := readBand(t, conn)
		require.Equal(t, y, hdr.Y0)
	}
	assert.Equal(t, TypeFrame, readText(t, conn).Type)
	assert.Equal(t, 1, hub.Clients())
}

func TestClientReplacesPendingFrame(t *testing.T) {
	c := newClient(nil)
	assert.True(t, c.enqueue(outgoing{websocket.TextMessage, []byte("hello")}))

	first := []outgoing{{websocket.BinaryMessage, []byte("a")}}
	second := []outgoing{{websocket.BinaryMessage, []byte("b")}, {websocket.TextMessage, []byte("done")}}
	assert.False(t, c.setFrame(first))
	assert.True(t, c.setFrame(second), "unsent frame is replaced")

	msgs, closed := c.take()
	assert.False(t, closed)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", string(msgs[0].data))
	assert.Equal(t, "b", string(msgs[1].data))
	assert.Equal(t, "done", string(msgs[2].data))

	msgs, _ = c.take()
	assert.Empty(t, msgs)

	for range maxQueued {
		require.True(t, c.enqueue(outgoing{websocket.TextMessage, nil}))
	}
	assert.False(t, c.enqueue(outgoing{websocket.TextMessage, nil}), "queue full")

	c.close()
	assert.False(t, c.enqueue(outgoing{websocket.TextMessage, nil}))
	assert.False(t, c.setFrame(first))
	_, closed = c.take()
	assert.True(t, closed)
}
