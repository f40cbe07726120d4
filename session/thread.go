// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/gotrace/recorder/elem"
	"github.com/gotrace/recorder/hashmap"
	"github.com/gotrace/recorder/shortdate"
)

// allocInfo is what a live allocation's vPtr resolves to, so a later
// dealloc can be attributed back to the thread and scope that made it
// (§4.G).
type allocInfo struct {
	threadIdx       int
	size            uint32
	allocElemIdx    uint32
	currentScopeIdx uint32
}

// threadBuilder is the per-thread state §3 describes: nesting stack
// (via its levels), running memory totals, per-kind counters, and the
// two independent short-date resolvers.
type threadBuilder struct {
	idx      int
	streamID int

	threadHash uint64
	nameIdx    uint32

	curLevel int
	levels   []*levelBuilder

	resolver          *shortdate.Resolver // scope / memory / marker
	resolverCtxSwitch *shortdate.Resolver // context-switch only

	// Counters, monotonically updated (§8 invariant: total reported
	// per kind equals received minus errors).
	scopeEventQty     uint64
	memEventQty       uint64
	ctxSwitchEventQty uint64
	plotEventQty      uint64
	lockEventQty      uint64
	markerEventQty    uint64
	droppedEventQty   uint64

	sumAllocQty    uint64
	sumAllocSize   uint64
	sumDeallocQty  uint64
	sumDeallocSize uint64

	memAllocs          *hashmap.Map[uint64, allocInfo]
	memEventsSinceSnap int

	lastTick uint64

	lockWaitName      uint32
	lockWaiting       bool
	lockWaitStartTick uint64
}

func newThreadBuilder(idx, streamID int, threadHash uint64) *threadBuilder {
	return &threadBuilder{
		idx:               idx,
		streamID:          streamID,
		threadHash:        threadHash,
		resolver:          shortdate.NewResolver(shortdate.DefaultWidth, true),
		resolverCtxSwitch: shortdate.NewResolver(shortdate.DefaultWidth, false),
		memAllocs:         hashmap.New[uint64, allocInfo](64, hashmap.HashUint64),
	}
}

// level returns the levelBuilder for the given nesting level,
// creating intervening levels as needed.
func (tb *threadBuilder) level(n int) *levelBuilder {
	for len(tb.levels) <= n {
		tb.levels = append(tb.levels, newLevelBuilder(tb.idx, len(tb.levels)))
	}
	return tb.levels[n]
}

// trackAlloc records a live allocation so a later dealloc at the same
// vPtr can be attributed.
func (tb *threadBuilder) trackAlloc(vPtr uint64, size uint32, allocElemIdx uint32) {
	tb.memAllocs.Insert(vPtr, allocInfo{
		threadIdx:       tb.idx,
		size:            size,
		allocElemIdx:    allocElemIdx,
		currentScopeIdx: uint32(tb.curLevel),
	})
	tb.sumAllocQty++
	tb.sumAllocSize += uint64(size)
}

// resolveDealloc looks up and removes vPtr's tracked allocation,
// reporting whether one existed (an UnknownDealloc error otherwise,
// per §7).
func (tb *threadBuilder) resolveDealloc(vPtr uint64) (allocInfo, bool) {
	info, ok := tb.memAllocs.Find(vPtr)
	if !ok {
		return allocInfo{}, false
	}
	tb.memAllocs.Erase(vPtr)
	tb.sumDeallocQty++
	tb.sumDeallocSize += uint64(info.size)
	return info, true
}

// dueForSnapshot reports whether MemorySnapshotEventInterval memory
// events have elapsed since the last live-alloc-set snapshot, and
// resets the counter if so.
func (tb *threadBuilder) dueForSnapshot() bool {
	tb.memEventsSinceSnap++
	if tb.memEventsSinceSnap >= MemorySnapshotEventInterval {
		tb.memEventsSinceSnap = 0
		return true
	}
	return false
}

// currentParentElem returns the elem of the innermost currently-open
// scope, or elem.NoParent if no scope is open, for canonicalizing a
// new child scope's parent.
func (tb *threadBuilder) currentParentElem() uint32 {
	if tb.curLevel == 0 {
		return elem.NoParent
	}
	lvl := tb.levels[tb.curLevel-1]
	if len(lvl.open) == 0 {
		return elem.NoParent
	}
	return lvl.open[len(lvl.open)-1].elemIdx
}

// snapshotStream names this thread's memory-snapshot chunk stream.
func (tb *threadBuilder) snapshotStream() string {
	return fmt.Sprintf("t%d/memsnapshot", tb.idx)
}

// LiveAlloc is one entry of a memory-snapshot chunk: a live
// allocation's virtual pointer and size. The replay allocator (§4.K)
// needs the size to replay a Malloc call; a bare vPtr list would only
// let it replay Frees.
type LiveAlloc struct {
	VPtr uint64
	Size uint32
}

// liveAllocSnapshot returns every allocation currently tracked as
// live, for the periodic memory snapshot chunk (§4.G).
func (tb *threadBuilder) liveAllocSnapshot() []LiveAlloc {
	var out []LiveAlloc
	tb.memAllocs.Each(func(vPtr uint64, info allocInfo) {
		out = append(out, LiveAlloc{VPtr: vPtr, Size: info.size})
	})
	return out
}
