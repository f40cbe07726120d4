// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"path/filepath"
	"testing"

	"github.com/gotrace/recorder/elem"
	"github.com/gotrace/recorder/record"
	"github.com/gotrace/recorder/wire"
)

func newTestSession(t *testing.T) (*Session, *record.Writer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.rec")
	w, err := record.NewWriter(path, record.NewFlateCodec())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	s := New(w, elem.New())
	return s, w
}

func helloFrame(flags wire.EncodingFlags) []byte {
	hello := wire.Hello{
		ProtocolVersion: wire.ProtocolVersion,
		Flags:           flags,
		AppName:         "testapp",
		BuildName:       "testbuild",
	}.Encode()
	return append(wire.EncodeHeader(wire.FrameHello, 0, uint32(len(hello))), hello...)
}

func stringFrame(streamID uint8, hash uint64, value string) []byte {
	body := wire.EncodeStrings([]wire.WireString{{Hash: hash, Value: value}}, false)
	hdr := wire.EncodeHeader(wire.FrameString, 1, uint32(len(body)))
	hdr[1] = streamID
	return append(hdr, body...)
}

func eventFrame(streamID uint8, evs ...wire.Event) []byte {
	var body []byte
	for _, ev := range evs {
		body = ev.Encode(body)
	}
	hdr := wire.EncodeHeader(wire.FrameEvent, uint16(len(evs)), uint32(len(body)))
	hdr[1] = streamID
	return append(hdr, body...)
}

func TestSessionHandshakeNegotiatesHello(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())

	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	if !s.negotiated {
		t.Fatalf("expected session to be negotiated after a valid hello")
	}
	if s.hello.AppName != "testapp" {
		t.Fatalf("got AppName=%q, want testapp", s.hello.AppName)
	}
}

func TestSessionHandshakeRejectsVersionMismatch(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())

	hello := wire.Hello{ProtocolVersion: 0x0200, AppName: "a", BuildName: "b"}.Encode()
	buf := append(wire.EncodeHeader(wire.FrameHello, 0, uint32(len(hello))), hello...)
	if err := p.Feed(buf); err == nil {
		t.Fatalf("expected an error for a mismatched major protocol version")
	}
	if s.negotiated {
		t.Fatalf("session should not be negotiated after a rejected hello")
	}
}

func TestSessionInternsStringsByStreamFrame(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())

	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	if err := p.Feed(stringFrame(0, 555, "myFunction")); err != nil {
		t.Fatalf("Feed string: %v", err)
	}
	if got := s.strings.Get(0); got != "myFunction" {
		t.Fatalf("got interned string %q, want myFunction", got)
	}
}

func TestSessionScopeBeginEndCreatesElemAndClosesCleanly(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())

	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	if err := p.Feed(stringFrame(0, 1, "doWork")); err != nil {
		t.Fatalf("Feed string: %v", err)
	}

	begin := wire.Event{NameIndex: 0, Kind: wire.EventKindScopeBegin, Tick: 100}
	end := wire.Event{NameIndex: 0, Kind: wire.EventKindScopeEnd, Tick: 200}
	if err := p.Feed(eventFrame(0, begin, end)); err != nil {
		t.Fatalf("Feed events: %v", err)
	}

	if s.elems.Len() != 1 {
		t.Fatalf("got elems.Len()=%d, want 1", s.elems.Len())
	}
	if s.ThreadCount() != 1 {
		t.Fatalf("got ThreadCount()=%d, want 1", s.ThreadCount())
	}
	tb := s.threads[0]
	if tb.curLevel != 0 {
		t.Fatalf("got curLevel=%d, want 0 after a balanced scope", tb.curLevel)
	}
	if tb.scopeEventQty != 2 {
		t.Fatalf("got scopeEventQty=%d, want 2", tb.scopeEventQty)
	}
}

func TestSessionTwoStreamsAttributeToDistinctThreads(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())

	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	ev := wire.Event{Kind: wire.EventKindScopeBegin, Tick: 10}
	if err := p.Feed(eventFrame(0, ev)); err != nil {
		t.Fatalf("Feed stream 0: %v", err)
	}
	if err := p.Feed(eventFrame(1, ev)); err != nil {
		t.Fatalf("Feed stream 1: %v", err)
	}
	if s.ThreadCount() != 2 {
		t.Fatalf("got ThreadCount()=%d, want 2", s.ThreadCount())
	}
}

func TestSessionMemoryAllocDeallocTracksLiveSet(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}

	alloc := wire.Event{Kind: wire.EventKindMemoryAlloc, Tick: 1, Value: 64, Payload: 0xDEAD}
	if err := p.Feed(eventFrame(0, alloc)); err != nil {
		t.Fatalf("Feed alloc: %v", err)
	}
	tb := s.threads[0]
	if tb.sumAllocQty != 1 || tb.sumAllocSize != 64 {
		t.Fatalf("got allocQty=%d allocSize=%d, want 1/64", tb.sumAllocQty, tb.sumAllocSize)
	}

	dealloc := wire.Event{Kind: wire.EventKindMemoryDealloc, Tick: 2, Payload: 0xDEAD}
	if err := p.Feed(eventFrame(0, dealloc)); err != nil {
		t.Fatalf("Feed dealloc: %v", err)
	}
	if tb.sumDeallocQty != 1 || tb.sumDeallocSize != 64 {
		t.Fatalf("got deallocQty=%d deallocSize=%d, want 1/64", tb.sumDeallocQty, tb.sumDeallocSize)
	}
	if len(tb.liveAllocSnapshot()) != 0 {
		t.Fatalf("expected no live allocations after the matching dealloc")
	}
}

func TestSessionUnknownDeallocIsCountedNotFatal(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	dealloc := wire.Event{Kind: wire.EventKindMemoryDealloc, Tick: 1, Payload: 0xBEEF}
	if err := p.Feed(eventFrame(0, dealloc)); err != nil {
		t.Fatalf("Feed dealloc: %v", err)
	}
	if got := s.errors.Get(wire.UnknownDealloc); got != 1 {
		t.Fatalf("got UnknownDealloc count=%d, want 1", got)
	}
}

func TestSessionScopeBeginBeyondMaxLevelQtyIsCountedAndDropped(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}

	for i := 0; i < MaxLevelQty; i++ {
		begin := wire.Event{Kind: wire.EventKindScopeBegin, Tick: uint64(i)}
		if err := p.Feed(eventFrame(0, begin)); err != nil {
			t.Fatalf("Feed begin %d: %v", i, err)
		}
	}

	tb := s.threads[0]
	if tb.curLevel != MaxLevelQty {
		t.Fatalf("got curLevel=%d, want %d after reaching the cap via strictly-nested begins", tb.curLevel, MaxLevelQty)
	}

	overflow := wire.Event{Kind: wire.EventKindScopeBegin, Tick: uint64(MaxLevelQty)}
	if err := p.Feed(eventFrame(0, overflow)); err != nil {
		t.Fatalf("Feed overflow begin: %v", err)
	}
	if tb.curLevel != MaxLevelQty {
		t.Fatalf("got curLevel=%d after overflow begin, want unchanged %d", tb.curLevel, MaxLevelQty)
	}
	if got := s.errors.Get(wire.UnbalancedScope); got != 1 {
		t.Fatalf("got UnbalancedScope count=%d, want 1 for the begin past MaxLevelQty", got)
	}
}

func TestSessionCloseClosesUnbalancedScopesAndFinalizes(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	begin := wire.Event{Kind: wire.EventKindScopeBegin, Tick: 10}
	if err := p.Feed(eventFrame(0, begin)); err != nil {
		t.Fatalf("Feed begin: %v", err)
	}

	tb := s.threads[0]
	if tb.curLevel != 1 {
		t.Fatalf("got curLevel=%d, want 1 before close", tb.curLevel)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(tb.levels[0].open) != 0 {
		t.Fatalf("expected Close to synthesize a matching scope-end")
	}
	if got := s.errors.Get(wire.UnbalancedScope); got != 1 {
		t.Fatalf("got UnbalancedScope count=%d, want 1 for the synthesized close", got)
	}
	if !s.Closed() {
		t.Fatalf("expected Closed() to report true")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestSessionLockWaitUseNotifyRoutesToRegistry(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}

	wait := wire.Event{Kind: wire.EventKindLockWait, Tick: 1}
	use := wire.Event{Kind: wire.EventKindLockUse, Tick: 2}
	notify := wire.Event{Kind: wire.EventKindLockNotify, Tick: 3}
	if err := p.Feed(eventFrame(0, wait, use, notify)); err != nil {
		t.Fatalf("Feed lock events: %v", err)
	}
	if s.locks.Count() != 1 {
		t.Fatalf("got locks.Count()=%d, want 1", s.locks.Count())
	}
}

func TestSessionContextSwitchCountedSeparatelyFromOtherPlots(t *testing.T) {
	s, _ := newTestSession(t)
	p := wire.NewParser(s.Handlers())
	if err := p.Feed(helloFrame(wire.EncodingFlags{})); err != nil {
		t.Fatalf("Feed hello: %v", err)
	}
	cs := wire.Event{Kind: wire.EventKindContextSwitch, Tick: 1, Value: 1}
	mp := wire.Event{Kind: wire.EventKindMemoryPlot, Tick: 2, Value: 2}
	if err := p.Feed(eventFrame(0, cs, mp)); err != nil {
		t.Fatalf("Feed plot events: %v", err)
	}
	tb := s.threads[0]
	if tb.ctxSwitchEventQty != 1 {
		t.Fatalf("got ctxSwitchEventQty=%d, want 1", tb.ctxSwitchEventQty)
	}
	if tb.plotEventQty != 1 {
		t.Fatalf("got plotEventQty=%d, want 1", tb.plotEventQty)
	}
}
