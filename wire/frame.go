// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "encoding/binary"

// FrameType is the 8-bit type discriminant in a frame header.
type FrameType uint8

const (
	FrameHello FrameType = iota
	FrameString
	FrameEvent
	FrameRemote
	FrameBye
)

func (t FrameType) String() string {
	switch t {
	case FrameHello:
		return "HELLO"
	case FrameString:
		return "STRING"
	case FrameEvent:
		return "EVENT"
	case FrameRemote:
		return "REMOTE"
	case FrameBye:
		return "BYE"
	default:
		return "UNKNOWN"
	}
}

// HeaderSize is the fixed 8-byte width of a frame header.
const HeaderSize = 8

// MaxRemoteCommandBytes bounds the byte length of a single frame body;
// a frame declaring more is rejected as FrameTooLarge (§7).
const MaxRemoteCommandBytes = 32 * 1024

// subState is the parser's internal sub-state, named after §4.B.
type subState int

const (
	subHeader subState = iota
	subStringBody
	subEventBody
	subRemoteBody
)

// Handlers are called by Parser.Feed as complete frame bodies arrive.
// Exactly one handler is invoked per frame. Returning a non-nil error
// from a handler aborts the current Feed call; Fatal errors (per
// ErrorKind.Fatal) should cause the caller to close the session.
//
// String and Event additionally receive streamID, the frame header's
// second byte: a multi-stream session (§GLOSSARY "Stream") uses it to
// attribute a batch of strings or events to its source stream without
// growing the fixed-width Event record itself.
type Handlers struct {
	Hello  func(body []byte) error
	String func(body []byte, count int, streamID uint8) error
	Event  func(body []byte, count int, streamID uint8) error
	Remote func(body []byte) error
	Bye    func() error
}

// Parser is the frame-level state machine described in §4.B. It is
// restartable: Reset returns it to its initial state so the same
// Parser can be reused across the handshake and the steady-state
// event stream.
//
// Parser is not safe for concurrent use; it belongs entirely to the
// rx thread.
type Parser struct {
	handlers Handlers

	state subState
	hdr   [HeaderSize]byte
	hdrN  int

	curType     FrameType
	curCount    int
	curStreamID uint8
	bodyWant    int
	body        []byte // accumulated body bytes; reused across frames
}

// NewParser creates a Parser that invokes h as frames complete.
func NewParser(h Handlers) *Parser {
	p := &Parser{handlers: h}
	p.Reset()
	return p
}

// Reset returns the parser to its initial HEADER sub-state, discarding
// any partially-accumulated header or body. Used after the handshake
// completes and whenever a session restarts.
func (p *Parser) Reset() {
	p.state = subHeader
	p.hdrN = 0
	p.curType = 0
	p.curCount = 0
	p.bodyWant = 0
	p.body = p.body[:0]
}

// Feed delivers newly-received transport bytes to the parser. It may
// call zero or more Handlers entries before returning, once per
// complete frame found in buf (plus any bytes buffered from a prior
// call). Partial bodies spanning multiple Feed calls are buffered
// verbatim; no parsing advances until a full body is present.
func (p *Parser) Feed(buf []byte) error {
	for len(buf) > 0 {
		switch p.state {
		case subHeader:
			n := copy(p.hdr[p.hdrN:], buf)
			p.hdrN += n
			buf = buf[n:]
			if p.hdrN < HeaderSize {
				return nil // wait for the rest of the header
			}
			if err := p.startBody(); err != nil {
				return err
			}

		default:
			want := p.bodyWant - len(p.body)
			n := want
			if n > len(buf) {
				n = len(buf)
			}
			p.body = append(p.body, buf[:n]...)
			buf = buf[n:]
			if len(p.body) < p.bodyWant {
				return nil // wait for the rest of the body
			}
			if err := p.dispatch(); err != nil {
				return err
			}
		}
	}
	return nil
}

// startBody computes the sub-state and remaining byte count from a
// freshly-received header, and immediately dispatches zero-length
// bodies without entering a *_BODY sub-state.
func (p *Parser) startBody() error {
	typ := FrameType(p.hdr[0])
	streamID := p.hdr[1]
	count := binary.LittleEndian.Uint16(p.hdr[2:4])
	byteLen := binary.LittleEndian.Uint32(p.hdr[4:8])

	if byteLen > MaxRemoteCommandBytes {
		return newError(FrameTooLarge, "frame type %v declares %d bytes, max is %d", typ, byteLen, MaxRemoteCommandBytes)
	}

	p.curType = typ
	p.curCount = int(count)
	p.curStreamID = streamID
	p.bodyWant = int(byteLen)
	p.body = p.body[:0]
	p.hdrN = 0

	if byteLen == 0 {
		return p.dispatch()
	}

	switch typ {
	case FrameString:
		p.state = subStringBody
	case FrameEvent:
		p.state = subEventBody
	default: // FrameHello, FrameRemote, FrameBye
		p.state = subRemoteBody
	}
	return nil
}

// dispatch calls the handler matching the just-completed frame and
// returns the parser to the HEADER sub-state.
func (p *Parser) dispatch() error {
	typ, count, streamID, body := p.curType, p.curCount, p.curStreamID, p.body
	p.state = subHeader

	switch typ {
	case FrameHello:
		if p.handlers.Hello != nil {
			return p.handlers.Hello(body)
		}
	case FrameString:
		if p.handlers.String != nil {
			return p.handlers.String(body, count, streamID)
		}
	case FrameEvent:
		if p.handlers.Event != nil {
			return p.handlers.Event(body, count, streamID)
		}
	case FrameBye:
		if p.handlers.Bye != nil {
			return p.handlers.Bye()
		}
	default: // FrameRemote
		if p.handlers.Remote != nil {
			return p.handlers.Remote(body)
		}
	}
	return nil
}

// EncodeHeader serializes a frame header for typ with the given count
// and body length, for tests and tools that synthesize wire traffic.
func EncodeHeader(typ FrameType, count uint16, byteLen uint32) []byte {
	var hdr [HeaderSize]byte
	hdr[0] = uint8(typ)
	hdr[1] = 0
	binary.LittleEndian.PutUint16(hdr[2:4], count)
	binary.LittleEndian.PutUint32(hdr[4:8], byteLen)
	return hdr[:]
}
