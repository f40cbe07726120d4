// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/gotrace/recorder/mr"
	"github.com/gotrace/recorder/record"
	"github.com/gotrace/recorder/wire"
)

// openScope is one entry of a levelBuilder's open-scope stack: a
// scope-begin observed but not yet closed by a matching scope-end.
type openScope struct {
	elemIdx   uint32 // canonical elem, used for MR/aggregate bookkeeping
	nameIdx   uint16 // raw wire name index, written back out on scope-end
	startTick uint64
}

// levelBuilder holds the four parallel streams §3 assigns to one
// (thread, nesting level) pair: the scope-event chunk stream, the
// non-scope-event chunk stream, the scope MR pyramid, and the working
// open-scope stack.
type levelBuilder struct {
	threadIdx int
	level     int

	scopeStream    string
	nonScopeStream string

	open []openScope

	pyramid       *mr.Pyramid[mr.ScopeSpeck]
	pendingSpecks []mr.ScopeSpeck // accumulates to ChunkEventQty before merging into one level-0 MR push
}

func newLevelBuilder(threadIdx, level int) *levelBuilder {
	return &levelBuilder{
		threadIdx:      threadIdx,
		level:          level,
		scopeStream:    fmt.Sprintf("t%d/l%d/scope", threadIdx, level),
		nonScopeStream: fmt.Sprintf("t%d/l%d/nonscope", threadIdx, level),
		pyramid:        mr.New(mr.MergeScopeSpecks),
	}
}

// begin pushes a new open scope. The nesting-depth bound (MaxLevelQty)
// is enforced by the router against the thread's curLevel before a new
// levelBuilder is even reached; len(lb.open) here never exceeds 1 in
// practice (each level holds at most one open scope at a time), but
// the check is kept as a last-resort guard against that invariant.
func (lb *levelBuilder) begin(elemIdx uint32, nameIdx uint16, tick uint64) bool {
	if len(lb.open) >= MaxLevelQty {
		return false
	}
	lb.open = append(lb.open, openScope{elemIdx: elemIdx, nameIdx: nameIdx, startTick: tick})
	return true
}

// end pops the innermost open scope and writes its (nameIdx, start,
// end) as a scope event, flushing a chunk and cascading the MR
// pyramid whenever ChunkEventQty entries accumulate. It reports
// whether a matching open scope existed.
func (lb *levelBuilder) end(w *record.Writer, tick uint64, autoClosed bool) (ok bool, err error) {
	if len(lb.open) == 0 {
		return false, nil
	}
	n := len(lb.open) - 1
	s := lb.open[n]
	lb.open = lb.open[:n]

	flags := wire.EventFlags(0)
	if autoClosed {
		flags |= wire.EventFlagAutoClosed
	}
	ev := wire.Event{
		NameIndex: s.nameIdx,
		Kind:      wire.EventKindScopeEnd,
		Flags:     flags,
		Tick:      s.startTick,
		Payload:   tick,
	}
	w.RegisterStream(lb.scopeStream, ChunkEventQty*wire.EventSize)
	if err := w.Append(lb.scopeStream, ev.Encode(nil)); err != nil {
		return true, err
	}

	lb.pendingSpecks = append(lb.pendingSpecks, mr.NewScopeSpeck(s.startTick, tick))
	if len(lb.pendingSpecks) >= ChunkEventQty {
		lb.pyramid.Push(mr.MergeScopeSpecks(lb.pendingSpecks))
		lb.pendingSpecks = lb.pendingSpecks[:0]
	}
	return true, nil
}

// appendNonScope writes a non-scope event (e.g. a marker observed at
// this nesting level) to the level's non-scope stream.
func (lb *levelBuilder) appendNonScope(w *record.Writer, ev wire.Event) error {
	w.RegisterStream(lb.nonScopeStream, ChunkEventQty*wire.EventSize)
	return w.Append(lb.nonScopeStream, ev.Encode(nil))
}

// closeUnbalanced synthesizes a scope-end at lastTick for every scope
// still open, in innermost-first order, as the finalizer does for a
// session that ended mid-trace (§4.G, §4.M). It returns the number of
// scopes it closed.
func (lb *levelBuilder) closeUnbalanced(w *record.Writer, lastTick uint64) (int, error) {
	n := 0
	for len(lb.open) > 0 {
		if _, err := lb.end(w, lastTick, true); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// sealMR flushes any partial pending window into the pyramid so a
// finalized record's MR levels reflect every scope, not just whole
// ChunkEventQty groups.
func (lb *levelBuilder) sealMR() {
	if len(lb.pendingSpecks) > 0 {
		lb.pyramid.Push(mr.MergeScopeSpecks(lb.pendingSpecks))
		lb.pendingSpecks = lb.pendingSpecks[:0]
	}
}
