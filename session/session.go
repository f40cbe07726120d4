// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/gotrace/recorder/elem"
	"github.com/gotrace/recorder/mr"
	"github.com/gotrace/recorder/record"
	"github.com/gotrace/recorder/wire"
)

// Session is the recording core's top-level state: one per
// instrumented-process connection (§4.C-M). It owns every §4.G-J
// data structure and is driven entirely by a wire.Parser on the rx
// thread — no other goroutine may touch it (§5). Session never logs:
// it returns errors and accumulates counted ones in an ErrorTable, and
// leaves deciding what to print to the cmd/* layer driving it.
type Session struct {
	writer  *record.Writer
	elems   *elem.Index
	locks   *LockRegistry
	strings *StringTable
	errors  *ErrorTable

	streams   *streamMap
	coreUsage *CoreUsageTracker

	hello         wire.Hello
	negotiated    bool
	eventBufferID uint32

	threads    []*threadBuilder
	threadByID map[uint64]int // threadHash -> index into threads

	plotPyramids map[uint32]*mr.Pyramid[mr.PlotSpeck]
	plotPending  map[uint32][]mr.PlotSpeck

	// dirtyThreads/dirtyElems accumulate ids created since the last
	// delta snapshot (§4.L). Session is single-owner (§5: only the
	// recorder thread touches it), so these need no locking of their
	// own; the delta package samples them from the same thread.
	dirtyThreads []uint32
	dirtyElems   []uint32

	closed bool
}

// New creates a Session that writes to w and canonicalizes elems into
// idx.
func New(w *record.Writer, idx *elem.Index) *Session {
	return &Session{
		writer:       w,
		elems:        idx,
		locks:        NewLockRegistry(),
		strings:      NewStringTable(),
		errors:       newErrorCounters(),
		streams:      newStreamMap(),
		coreUsage:    newCoreUsageTracker(),
		threadByID:   make(map[uint64]int),
		plotPyramids: make(map[uint32]*mr.Pyramid[mr.PlotSpeck]),
		plotPending:  make(map[uint32][]mr.PlotSpeck),
	}
}

// Handlers returns the wire.Handlers driving this session from a
// wire.Parser, wired to the session's own methods.
func (s *Session) Handlers() wire.Handlers {
	return wire.Handlers{
		Hello:  s.handleHello,
		String: s.handleStringFrame,
		Event:  s.handleEventFrame,
		Remote: func([]byte) error { return nil }, // remote commands are outbound-only from the core's perspective
		Bye:    s.handleBye,
	}
}

func (s *Session) handleHello(body []byte) error {
	h, err := wire.DecodeHello(body)
	if err != nil {
		return err
	}
	if verr := h.CheckVersion(); verr != nil {
		return verr
	}
	s.hello = h
	s.negotiated = true
	return nil
}

func (s *Session) handleStringFrame(body []byte, count int, streamID uint8) error {
	strs, err := wire.DecodeStrings(body, count, s.hello.Flags.IsStringHashShort)
	if err != nil {
		if pe, ok := err.(*wire.ProtocolError); ok && !pe.Fatal() {
			s.errors.Count(pe.Kind)
		} else {
			return err
		}
	}
	for _, wstr := range strs {
		s.strings.Intern(wstr.Hash, wstr.Value)
	}
	return nil
}

func (s *Session) handleEventFrame(body []byte, count int, streamID uint8) error {
	s.eventBufferID++
	off := 0
	for i := 0; i < count; i++ {
		var ev wire.Event
		var n int
		var err error
		if s.hello.Flags.IsCompactModel {
			ev, n, err = wire.DecodeCompactEvent(body[off:])
		} else {
			ev, n, err = wire.DecodeEvent(body[off:])
		}
		if err != nil {
			if pe, ok := err.(*wire.ProtocolError); ok && !pe.Fatal() {
				s.errors.Count(pe.Kind)
				return nil // truncated: nothing more to decode from this frame
			}
			return err
		}
		off += n

		tb := s.threadForStream(streamID)
		if err := s.route(int(streamID), tb, ev); err != nil {
			return err
		}
	}
	return nil
}

// threadForStream resolves the owning threadBuilder for streamID,
// creating one on first observation. The recording core's wire format
// carries no per-event thread field (§3's Event layout is name-index,
// kind, flags, value, tick, payload); the frame header's streamID is
// the finest attribution granularity available, so each stream maps
// to exactly one thread context, matching a single-threaded
// instrumented stream per connection.
func (s *Session) threadForStream(streamID uint8) *threadBuilder {
	threadHash := uint64(streamID)
	if i, ok := s.threadByID[threadHash]; ok {
		return s.threads[i]
	}
	tb := newThreadBuilder(len(s.threads), int(streamID), threadHash)
	s.threadByID[threadHash] = len(s.threads)
	s.threads = append(s.threads, tb)
	s.dirtyThreads = append(s.dirtyThreads, uint32(tb.idx))
	return tb
}

// markElemDirty records elemIdx as changed since the last delta
// snapshot.
func (s *Session) markElemDirty(elemIdx uint32) {
	s.dirtyElems = append(s.dirtyElems, elemIdx)
}

// TakeDirtyThreads returns the thread ids created since the last call
// and clears them, for the delta view (§4.L).
func (s *Session) TakeDirtyThreads() []uint32 {
	out := s.dirtyThreads
	s.dirtyThreads = nil
	return out
}

// TakeDirtyElems returns the elem ids created or updated since the
// last call and clears them, for the delta view (§4.L).
func (s *Session) TakeDirtyElems() []uint32 {
	out := s.dirtyElems
	s.dirtyElems = nil
	return out
}

// TakeDirtyLocks returns the lock name ids created since the last
// call and clears them, for the delta view (§4.L).
func (s *Session) TakeDirtyLocks() []uint32 {
	return s.locks.TakeDirty()
}

// TakeDirtyStrings returns the string ids interned since the last
// call and clears them, for the delta view (§4.L).
func (s *Session) TakeDirtyStrings() []uint32 {
	return s.strings.TakeDirty()
}

// LastTick returns the most recent tick observed across every thread,
// for stamping a delta snapshot with a monotonically increasing
// high-water mark (§4.L: "monotonically increasing in the last tick
// they cover").
func (s *Session) LastTick() uint64 {
	var max uint64
	for _, tb := range s.threads {
		if tb.lastTick > max {
			max = tb.lastTick
		}
	}
	return max
}

func (s *Session) handleBye() error {
	return nil
}

// plotPyramid returns elemIdx's plot MR pyramid, creating one on
// first observation.
func (s *Session) plotPyramid(elemIdx uint32) *mr.Pyramid[mr.PlotSpeck] {
	p, ok := s.plotPyramids[elemIdx]
	if !ok {
		p = mr.New(mr.MergePlotSpecks)
		s.plotPyramids[elemIdx] = p
	}
	return p
}

// Errors returns the session's error table.
func (s *Session) Errors() *ErrorTable { return s.errors }

// CoreUsage returns the session's per-core usage tracker.
func (s *Session) CoreUsage() *CoreUsageTracker { return s.coreUsage }

// Hello returns the negotiated handshake, for a caller (cmd/recorder)
// that wants to log it. Negotiated reports whether it is valid yet.
func (s *Session) Hello() (wire.Hello, bool) { return s.hello, s.negotiated }

// ThreadCount reports how many threads have been observed.
func (s *Session) ThreadCount() int { return len(s.threads) }

// String implements fmt.Stringer for diagnostic logging.
func (s *Session) String() string {
	return fmt.Sprintf("session{threads=%d elems=%d strings=%d locks=%d}",
		len(s.threads), s.elems.Len(), s.strings.Len(), s.locks.Count())
}
