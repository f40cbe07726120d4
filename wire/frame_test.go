// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"
)

func frameBytes(typ FrameType, count uint16, body []byte) []byte {
	hdr := EncodeHeader(typ, count, uint32(len(body)))
	return append(hdr, body...)
}

func TestParserWholeFramesOneFeed(t *testing.T) {
	var gotHello []byte
	var gotStrings []byte
	var gotStringCount int
	var gotEvents []byte
	var gotEventCount int
	byeCalled := false

	p := NewParser(Handlers{
		Hello: func(body []byte) error { gotHello = append([]byte(nil), body...); return nil },
		String: func(body []byte, count int, streamID uint8) error {
			gotStrings = append([]byte(nil), body...)
			gotStringCount = count
			return nil
		},
		Event: func(body []byte, count int, streamID uint8) error {
			gotEvents = append([]byte(nil), body...)
			gotEventCount = count
			return nil
		},
		Bye: func() error { byeCalled = true; return nil },
	})

	hello := Hello{ProtocolVersion: ProtocolVersion, AppName: "app", BuildName: "build"}.Encode()
	var buf []byte
	buf = append(buf, frameBytes(FrameHello, 0, hello)...)
	buf = append(buf, frameBytes(FrameString, 2, []byte("stringbody"))...)
	buf = append(buf, frameBytes(FrameEvent, 1, make([]byte, EventSize))...)
	buf = append(buf, frameBytes(FrameBye, 0, nil)...)

	if err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !bytes.Equal(gotHello, hello) {
		t.Errorf("hello body mismatch")
	}
	if gotStringCount != 2 || string(gotStrings) != "stringbody" {
		t.Errorf("string frame mismatch: count=%d body=%q", gotStringCount, gotStrings)
	}
	if gotEventCount != 1 || len(gotEvents) != EventSize {
		t.Errorf("event frame mismatch: count=%d len=%d", gotEventCount, len(gotEvents))
	}
	if !byeCalled {
		t.Errorf("bye handler not called")
	}
}

func TestParserByteAtATime(t *testing.T) {
	var gotCount int
	var gotBody []byte
	p := NewParser(Handlers{
		Event: func(body []byte, count int, streamID uint8) error {
			gotBody = append([]byte(nil), body...)
			gotCount = count
			return nil
		},
	})

	buf := frameBytes(FrameEvent, 3, make([]byte, EventSize*3))
	for i := range buf {
		if err := p.Feed(buf[i : i+1]); err != nil {
			t.Fatalf("Feed at byte %d: %v", i, err)
		}
	}
	if gotCount != 3 || len(gotBody) != EventSize*3 {
		t.Errorf("got count=%d len=%d, want 3/%d", gotCount, len(gotBody), EventSize*3)
	}
}

func TestParserSplitAcrossArbitraryBoundaries(t *testing.T) {
	var frames [][]byte
	p := NewParser(Handlers{
		String: func(body []byte, count int, streamID uint8) error {
			frames = append(frames, append([]byte(nil), body...))
			return nil
		},
	})

	var buf []byte
	buf = append(buf, frameBytes(FrameString, 1, []byte("one"))...)
	buf = append(buf, frameBytes(FrameString, 1, []byte("two-longer"))...)
	buf = append(buf, frameBytes(FrameString, 1, []byte("three"))...)

	// Feed in irregular chunks that straddle header/body boundaries.
	chunks := []int{3, 5, 1, 20, 2, 1000}
	pos := 0
	for _, c := range chunks {
		if pos >= len(buf) {
			break
		}
		end := pos + c
		if end > len(buf) {
			end = len(buf)
		}
		if err := p.Feed(buf[pos:end]); err != nil {
			t.Fatalf("Feed: %v", err)
		}
		pos = end
	}
	if len(frames) != 3 || string(frames[0]) != "one" || string(frames[1]) != "two-longer" || string(frames[2]) != "three" {
		t.Fatalf("got frames %q", frames)
	}
}

func TestParserRejectsOversizedFrame(t *testing.T) {
	p := NewParser(Handlers{})
	hdr := EncodeHeader(FrameRemote, 0, MaxRemoteCommandBytes+1)
	err := p.Feed(hdr)
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != FrameTooLarge {
		t.Fatalf("got %v, want FrameTooLarge", err)
	}
}

func TestParserResetDiscardsPartialState(t *testing.T) {
	calls := 0
	p := NewParser(Handlers{
		Event: func(body []byte, count int, streamID uint8) error { calls++; return nil },
	})
	partial := frameBytes(FrameEvent, 1, make([]byte, EventSize))
	if err := p.Feed(partial[:4]); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	p.Reset()
	full := frameBytes(FrameEvent, 1, make([]byte, EventSize))
	if err := p.Feed(full); err != nil {
		t.Fatalf("Feed after reset: %v", err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1 (partial frame before reset must not dispatch)", calls)
	}
}

func TestParserPropagatesStreamID(t *testing.T) {
	var gotStringStream, gotEventStream uint8
	p := NewParser(Handlers{
		String: func(body []byte, count int, streamID uint8) error {
			gotStringStream = streamID
			return nil
		},
		Event: func(body []byte, count int, streamID uint8) error {
			gotEventStream = streamID
			return nil
		},
	})

	strHdr := EncodeHeader(FrameString, 1, 3)
	strHdr[1] = 7
	evHdr := EncodeHeader(FrameEvent, 1, uint32(EventSize))
	evHdr[1] = 9

	var buf []byte
	buf = append(buf, strHdr...)
	buf = append(buf, []byte("abc")...)
	buf = append(buf, evHdr...)
	buf = append(buf, make([]byte, EventSize)...)

	if err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if gotStringStream != 7 {
		t.Errorf("got string streamID %d, want 7", gotStringStream)
	}
	if gotEventStream != 9 {
		t.Errorf("got event streamID %d, want 9", gotEventStream)
	}
}

func TestParserZeroLengthBodyDispatchesImmediately(t *testing.T) {
	calls := 0
	p := NewParser(Handlers{
		Bye: func() error { calls++; return nil },
	})
	// Two back-to-back zero-length BYE frames in one Feed call.
	buf := append(frameBytes(FrameBye, 0, nil), frameBytes(FrameBye, 0, nil)...)
	if err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("got %d BYE dispatches, want 2", calls)
	}
}
