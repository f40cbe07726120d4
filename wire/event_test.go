// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "testing"

func TestEventRoundTrip(t *testing.T) {
	e := Event{
		NameIndex: 42,
		Kind:      EventKindMemoryAlloc,
		Flags:     EventFlagExternalString,
		Value:     7,
		Tick:      0xdeadbeefcafef00d,
		Payload:   0x1000,
	}
	buf := e.Encode(nil)
	if len(buf) != EventSize {
		t.Fatalf("encoded length %d, want %d", len(buf), EventSize)
	}
	got, n, err := DecodeEvent(buf)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if n != EventSize {
		t.Fatalf("consumed %d bytes, want %d", n, EventSize)
	}
	if got != e {
		t.Fatalf("got %+v, want %+v", got, e)
	}
}

func TestEventTruncated(t *testing.T) {
	e := Event{Kind: EventKindScopeBegin}
	full := e.Encode(nil)
	if _, _, err := DecodeEvent(full[:EventSize-1]); err == nil {
		t.Fatal("expected TruncatedBody error")
	}
}

func TestCompactEventWidensShortFields(t *testing.T) {
	buf := bufEncoder{}
	buf.u16(9)
	buf.u8(uint8(EventKindContextSwitch))
	buf.u8(0)
	buf.u32(123)
	buf.u32(0xaabbccdd)
	buf.u32(0x11223344)

	got, n, err := DecodeCompactEvent(buf.buf)
	if err != nil {
		t.Fatalf("DecodeCompactEvent: %v", err)
	}
	if n != CompactEventSize {
		t.Fatalf("consumed %d, want %d", n, CompactEventSize)
	}
	if got.Flags&EventFlagIsShortDate == 0 {
		t.Error("EventFlagIsShortDate not set on compact decode")
	}
	if got.Tick != 0xaabbccdd {
		t.Errorf("Tick = %#x, want %#x", got.Tick, 0xaabbccdd)
	}
	if got.Payload != 0x11223344 {
		t.Errorf("Payload = %#x, want %#x", got.Payload, 0x11223344)
	}
}

func TestCompactEventTruncated(t *testing.T) {
	if _, _, err := DecodeCompactEvent(make([]byte, CompactEventSize-1)); err == nil {
		t.Fatal("expected TruncatedBody error")
	}
}

func TestEventKindString(t *testing.T) {
	if EventKindMemoryAlloc.String() != "MemoryAlloc" {
		t.Errorf("got %q", EventKindMemoryAlloc.String())
	}
	if EventKind(0xff).String() != "Unknown" {
		t.Errorf("got %q for unknown kind", EventKind(0xff).String())
	}
}
