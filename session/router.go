// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"github.com/gotrace/recorder/elem"
	"github.com/gotrace/recorder/mr"
	"github.com/gotrace/recorder/wire"
)

// route dispatches one decoded event to its §4.F sink. streamID
// identifies the source stream the event arrived on (for the lock
// registry's per-stream name mapping); tb is the event's owning
// thread, already resolved by the caller.
func (s *Session) route(streamID int, tb *threadBuilder, ev wire.Event) error {
	tick := s.resolveTick(tb, ev)
	tb.lastTick = tick

	switch ev.Kind {
	case wire.EventKindScopeBegin:
		return s.handleScopeBegin(tb, ev, tick)
	case wire.EventKindScopeEnd:
		return s.handleScopeEnd(tb, ev, tick)
	case wire.EventKindMemoryAlloc:
		return s.handleMemoryAlloc(tb, ev, tick)
	case wire.EventKindMemoryDealloc:
		return s.handleMemoryDealloc(tb, ev, tick)
	case wire.EventKindMemoryPlot:
		return s.handlePlot(tb, elem.ReservedNameAllocSize.RawName(), ev, tick)
	case wire.EventKindContextSwitch:
		return s.handlePlot(tb, elem.ReservedNameContextSwitch.RawName(), ev, tick)
	case wire.EventKindCoreUsage:
		return s.handleCoreUsage(streamID, tb, ev, tick)
	case wire.EventKindSoftIRQ:
		return s.handlePlot(tb, elem.ReservedNameSoftIRQ.RawName(), ev, tick)
	case wire.EventKindLockWait:
		return s.handleLockWait(streamID, tb, ev, tick)
	case wire.EventKindLockUse:
		return s.handleLockUse(streamID, tb, ev, tick)
	case wire.EventKindLockNotify:
		return s.handleLockNotify(streamID, tb, ev, tick)
	case wire.EventKindMarker:
		return s.handleMarker(tb, ev, tick)
	default:
		s.errors.Count(wire.UnknownEventKind)
		tb.droppedEventQty++
		return nil
	}
}

// resolveTick applies the correct short-date resolver (general or
// context-switch) if the event carries a short tick, per §4.E.
func (s *Session) resolveTick(tb *threadBuilder, ev wire.Event) uint64 {
	if ev.Flags&wire.EventFlagIsShortDate == 0 {
		return ev.Tick
	}
	r := tb.resolver
	if ev.Kind == wire.EventKindContextSwitch {
		r = tb.resolverCtxSwitch
	}
	return r.Resolve(s.eventBufferID, ev.Tick, 0, false)
}

func (s *Session) handleScopeBegin(tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.scopeEventQty++
	if tb.curLevel >= MaxLevelQty {
		s.errors.Count(wire.UnbalancedScope)
		tb.droppedEventQty++
		return nil
	}
	rawName := s.strings.Get(uint32(ev.NameIndex))
	parentIdx := tb.currentParentElem()
	elemIdx, _ := s.elems.GetOrCreate(uint32(tb.idx), parentIdx, uint(tb.idx), rawName, true, false)
	s.markElemDirty(elemIdx) // every scope-begin updates this elem's scope stream

	lvl := tb.level(tb.curLevel)
	if !lvl.begin(elemIdx, ev.NameIndex, tick) {
		s.errors.Count(wire.UnbalancedScope)
		tb.droppedEventQty++
		return nil
	}
	tb.curLevel++
	return nil
}

func (s *Session) handleScopeEnd(tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.scopeEventQty++
	if tb.curLevel == 0 {
		s.errors.Count(wire.UnbalancedScope)
		tb.droppedEventQty++
		return nil
	}
	tb.curLevel--
	lvl := tb.level(tb.curLevel)
	ok, err := lvl.end(s.writer, tick, false)
	if err != nil {
		return err
	}
	if !ok {
		s.errors.Count(wire.UnbalancedScope)
		tb.droppedEventQty++
	}
	return nil
}

func (s *Session) handleMemoryAlloc(tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.memEventQty++
	allocElemIdx, _ := s.elems.GetOrCreate(0, elem.NoParent, 0, elem.ReservedNameAllocSize.RawName(), false, true)
	tb.trackAlloc(ev.Payload, ev.Value, allocElemIdx)
	s.elems.ObservePlotValue(allocElemIdx, tick, float64(tb.sumAllocSize))
	s.markElemDirty(allocElemIdx)
	if tb.dueForSnapshot() {
		s.takeMemorySnapshot(tb, tick)
	}
	return nil
}

func (s *Session) handleMemoryDealloc(tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.memEventQty++
	if _, ok := tb.resolveDealloc(ev.Payload); !ok {
		s.errors.Count(wire.UnknownDealloc)
		return nil
	}
	allocElemIdx, _ := s.elems.GetOrCreate(0, elem.NoParent, 0, elem.ReservedNameAllocSize.RawName(), false, true)
	s.elems.ObservePlotValue(allocElemIdx, tick, float64(tb.sumAllocSize)-float64(tb.sumDeallocSize))
	s.markElemDirty(allocElemIdx)
	if tb.dueForSnapshot() {
		s.takeMemorySnapshot(tb, tick)
	}
	return nil
}

// takeMemorySnapshot writes the live-alloc set as a dedicated chunk
// (§4.G), keyed by a per-thread snapshot stream. Each entry is a
// (vPtr uint64, size uint32) pair rather than a bare pointer, so
// replayalloc (§4.K) can later replay a Malloc for every allocation
// that appears in one snapshot but not the previous one.
func (s *Session) takeMemorySnapshot(tb *threadBuilder, tick uint64) {
	live := tb.liveAllocSnapshot()
	var buf []byte
	for _, a := range live {
		var b [12]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(a.VPtr >> (8 * i))
		}
		for i := 0; i < 4; i++ {
			b[8+i] = byte(a.Size >> (8 * i))
		}
		buf = append(buf, b[:]...)
	}
	streamName := tb.snapshotStream()
	_ = s.writer.Append(streamName, buf)
}

func (s *Session) handlePlot(tb *threadBuilder, rawName string, ev wire.Event, tick uint64) error {
	if ev.Kind == wire.EventKindContextSwitch {
		tb.ctxSwitchEventQty++
	} else {
		tb.plotEventQty++
	}
	elemIdx, _ := s.elems.GetOrCreate(uint32(tb.idx), elem.NoParent, uint(tb.idx), rawName, false, false)
	value := float64(ev.Value)
	s.elems.ObservePlotValue(elemIdx, tick, value)
	s.markElemDirty(elemIdx)

	pyramid := s.plotPyramid(elemIdx)
	pending := s.plotPending[elemIdx]
	pending = append(pending, mr.NewPlotSpeck(tick, value))
	if len(pending) >= ChunkEventQty {
		pyramid.Push(mr.MergePlotSpecks(pending))
		pending = pending[:0]
	}
	s.plotPending[elemIdx] = pending
	return nil
}

// handleCoreUsage canonicalizes ev.Payload (the stream-local core
// index) to a session-wide core id via streamMap, records it in the
// core-usage tracker (§12), and feeds the value to this thread's own
// `core-usage` plot elem through handlePlot; there is no session-wide
// core-usage stream.
func (s *Session) handleCoreUsage(streamID int, tb *threadBuilder, ev wire.Event, tick uint64) error {
	coreID, _ := s.streams.canonicalize(streamID, uint32(ev.Payload))
	s.coreUsage.Observe(coreID)
	return s.handlePlot(tb, elem.ReservedNameCoreUsage.RawName(), ev, tick)
}

func (s *Session) handleLockWait(streamID int, tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.lockEventQty++
	nameIdx, _ := s.elems.GetOrCreate(0, elem.NoParent, 0, s.strings.Get(uint32(ev.NameIndex)), false, true)
	s.locks.beginWait(streamID, nameIdx, uint32(tb.idx))
	tb.lockWaiting = true
	tb.lockWaitStartTick = tick
	tb.lockWaitName = nameIdx
	return nil
}

func (s *Session) handleLockUse(streamID int, tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.lockEventQty++
	nameIdx, _ := s.elems.GetOrCreate(0, elem.NoParent, 0, s.strings.Get(uint32(ev.NameIndex)), false, true)
	s.locks.use(streamID, nameIdx, uint32(tb.idx), tick)
	// A lock-use implicitly ends any wait the same thread was in on
	// this lock: the thread's lock-wait state is cleared here. No
	// separate lock-wait-end event is written.
	if tb.lockWaiting && tb.lockWaitName == nameIdx {
		tb.lockWaiting = false
	}
	return nil
}

func (s *Session) handleLockNotify(streamID int, tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.lockEventQty++
	nameIdx, _ := s.elems.GetOrCreate(0, elem.NoParent, 0, s.strings.Get(uint32(ev.NameIndex)), false, true)
	s.locks.notify(streamID, nameIdx)
	return nil
}

func (s *Session) handleMarker(tb *threadBuilder, ev wire.Event, tick uint64) error {
	tb.markerEventQty++
	lvl := tb.level(tb.curLevel)
	return lvl.appendNonScope(s.writer, ev)
}
