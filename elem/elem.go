// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elem implements the elem index (§4.H): canonicalization of a
// (thread, nesting path, name) tuple into a stable, session-lifetime
// element identifier.
package elem

import (
	"sync"

	"github.com/aclements/go-moremath/stats"

	"github.com/gotrace/recorder/hashmap"
	"github.com/gotrace/recorder/symbol"
)

// NoParent is the sentinel ParentIdx for a root-level elem.
const NoParent = ^uint32(0)

// Flags are the per-elem bits named in §3.
type Flags uint8

const (
	// FlagDoRepresentScope selects the MR pyramid's density-merge mode
	// for this elem's specks (§4.J); when unset, the subsampling mode
	// applies (the elem represents a plot, not a scope).
	FlagDoRepresentScope Flags = 1 << iota
	// FlagThreadWildcard marks an elem aggregated across all threads
	// rather than attributed to one (ThreadID is meaningless).
	FlagThreadWildcard
)

// Elem is the canonical descriptor for one observable point, as
// specified in §3. Once created it is immutable except for the
// per-element aggregates, which are updated in place as new events
// are routed to it.
type Elem struct {
	Idx uint32

	FullHashPath    uint64 // chained hash including ThreadID
	PartialHashPath uint64 // chained hash excluding ThreadID

	ThreadBitmap uint64 // bit i set: thread i has reported this elem
	ParentIdx    uint32 // NoParent for a root elem
	ThreadID     uint32
	Level        uint16

	RawName     string // as received on the wire (possibly mangled)
	DisplayName string // demangled form, or RawName unchanged

	Flags Flags

	// Aggregates, updated as events are routed to this elem.
	YMin, YMax float64
	LastTick   uint64

	// PlotStats is non-nil only for plot (non-scope) elems: every value
	// the elem has observed, from which mean and variance can be
	// computed (§11 enrichment beyond the speck's required
	// min/max/first-time/last-time summary).
	PlotStats *stats.Sample
}

// key is the lookup identity hashmap.Map collision-resolves on by
// exact equality, mirroring "the full path" spec.md §4.H says a
// collision is resolved against.
type key struct {
	threadID  uint32
	parentIdx uint32
	nameHash  uint64
}

func keyHash(k key) uint64 {
	h := hashmap.HashStep(uint64(k.threadID), 0)
	h = hashmap.HashStep(uint64(k.parentIdx), h)
	h = hashmap.HashStep(k.nameHash, h)
	return h
}

// Index is the elem index: a dense array of Elems plus the
// (thread, parent, name) -> index lookup table that canonicalizes new
// observations. Index is safe for concurrent use; in this module's
// concurrency model (§5) only the recorder thread calls it.
type Index struct {
	mu    sync.Mutex
	byKey *hashmap.Map[key, uint32]
	elems []Elem

	// OnNew, if set, is called synchronously with the index of each
	// newly created elem — the "new elem" notification §4.H sends to
	// the delta view (§4.L). It is called with the Index's mutex held,
	// so it must not call back into the Index.
	OnNew func(idx uint32)
}

// New creates an empty Index.
func New() *Index {
	return &Index{byKey: hashmap.New[key, uint32](256, keyHash)}
}

// Len returns the number of elems created so far.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.elems)
}

// Get returns a copy of the elem at i. i must be a value previously
// returned by GetOrCreate.
func (idx *Index) Get(i uint32) Elem {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.elems[i]
}

// GetOrCreate canonicalizes (threadID, parentIdx, rawName) to a dense
// elem index, creating a new Elem on first observation. threadBit is
// the thread's dense bit position (0-63) in the returned elem's
// ThreadBitmap; wildcard sets FlagThreadWildcard and threadID is
// ignored for hashing purposes beyond distinguishing the wildcard
// bucket (callers pass 0 for threadID in that case).
func (idx *Index) GetOrCreate(threadID uint32, parentIdx uint32, threadBit uint, rawName string, doRepresentScope bool, wildcard bool) (elemIdx uint32, created bool) {
	nameHash := hashmap.HashString(rawName)
	hashThread := threadID
	if wildcard {
		hashThread = ^uint32(0) // a bucket no dense thread index reaches
	}
	k := key{threadID: hashThread, parentIdx: parentIdx, nameHash: nameHash}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if i, ok := idx.byKey.Find(k); ok {
		if threadBit < 64 {
			idx.elems[i].ThreadBitmap |= 1 << threadBit
		}
		return i, false
	}

	var parentFull, parentPartial uint64
	var level uint16
	if parentIdx != NoParent {
		p := &idx.elems[parentIdx]
		parentFull = p.FullHashPath
		parentPartial = p.PartialHashPath
		level = p.Level + 1
	}

	e := Elem{
		Idx:             uint32(len(idx.elems)),
		FullHashPath:    hashmap.HashStep(nameHash, hashmap.HashStep(uint64(hashThread), parentFull)),
		PartialHashPath: hashmap.HashStep(nameHash, parentPartial),
		ParentIdx:       parentIdx,
		ThreadID:        threadID,
		Level:           level,
		RawName:         rawName,
		DisplayName:     symbol.Demangle(rawName),
		YMin:            0,
		YMax:            0,
	}
	if doRepresentScope {
		e.Flags |= FlagDoRepresentScope
	}
	if wildcard {
		e.Flags |= FlagThreadWildcard
	}
	if threadBit < 64 {
		e.ThreadBitmap = 1 << threadBit
	}

	idx.elems = append(idx.elems, e)
	idx.byKey.Insert(k, e.Idx)

	if idx.OnNew != nil {
		idx.OnNew(e.Idx)
	}
	return e.Idx, true
}

// ObservePlotValue folds a new plot sample into a non-scope elem's
// (min, max, last-time) summary and appends the value to its
// PlotStats sample (§4.J subsampling mode, enriched per §11).
func (idx *Index) ObservePlotValue(i uint32, tick uint64, value float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e := &idx.elems[i]
	if e.PlotStats == nil {
		e.PlotStats = new(stats.Sample)
	}
	if e.YMin == 0 && e.YMax == 0 && e.LastTick == 0 {
		e.YMin, e.YMax = value, value
	} else {
		if value < e.YMin {
			e.YMin = value
		}
		if value > e.YMax {
			e.YMax = value
		}
	}
	e.LastTick = tick
	e.PlotStats.Xs = append(e.PlotStats.Xs, value)
}

// Each calls f for every elem currently indexed, in index order. f
// must not mutate the Index.
func (idx *Index) Each(f func(Elem)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := range idx.elems {
		f(idx.elems[i])
	}
}
