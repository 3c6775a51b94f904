package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic starts every binary frame message.
const Magic = "GLMP"

// HeaderSize is the length of a binary frame header.
const HeaderSize = len(Magic) + 8

// MaxDimension bounds the frame size a client may request.
const MaxDimension = 4096

var ErrBadMessage = errors.New("stream: malformed frame message")

// Header describes one band of rows in a binary frame message. The payload
// that follows holds (Y1-Y0)*Width packed RGB triples.
type Header struct {
	Width, Height int
	Y0, Y1        int
}

// appendBand encodes a band message.
func appendBand(dst []byte, h Header, rgb []byte) []byte {
	dst = append(dst, Magic...)
	dst = binary.BigEndian.AppendUint16(dst, uint16(h.Width))
	dst = binary.BigEndian.AppendUint16(dst, uint16(h.Height))
	dst = binary.BigEndian.AppendUint16(dst, uint16(h.Y0))
	dst = binary.BigEndian.AppendUint16(dst, uint16(h.Y1))
	return append(dst, rgb...)
}

// ParseFrame splits a binary message into its header and RGB payload.
func ParseFrame(msg []byte) (Header, []byte, error) {
	if len(msg) < HeaderSize || string(msg[:len(Magic)]) != Magic {
		return Header{}, nil, ErrBadMessage
	}
	b := msg[len(Magic):]
	h := Header{
		Width:  int(binary.BigEndian.Uint16(b[0:])),
		Height: int(binary.BigEndian.Uint16(b[2:])),
		Y0:     int(binary.BigEndian.Uint16(b[4:])),
		Y1:     int(binary.BigEndian.Uint16(b[6:])),
	}
	rgb := msg[HeaderSize:]
	if h.Y0 > h.Y1 || h.Y1 > h.Height {
		return Header{}, nil, fmt.Errorf("%w: rows %d-%d of %d", ErrBadMessage, h.Y0, h.Y1, h.Height)
	}
	if want := (h.Y1 - h.Y0) * h.Width * 3; len(rgb) != want {
		return Header{}, nil, fmt.Errorf("%w: %d payload bytes, want %d", ErrBadMessage, len(rgb), want)
	}
	return h, rgb, nil
}

// Control message types.
const (
	TypeHello   = "hello"
	TypeFrame   = "frame"
	TypePress   = "press"
	TypeDrag    = "drag"
	TypeRelease = "release"
	TypeWheel   = "wheel"
	TypeResize  = "resize"
	TypeView    = "view"
	TypeGetView = "get_view"
	TypeError   = "error"
)

// Message is a JSON text message in either direction.
type Message struct {
	Type     string  `json:"type"`
	X        int     `json:"x,omitempty"`
	Y        int     `json:"y,omitempty"`
	Button   string  `json:"button,omitempty"`
	Steps    float64 `json:"steps,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Settings string  `json:"settings,omitempty"`
	Seq      uint64  `json:"seq,omitempty"`
	Error    string  `json:"error,omitempty"`
}
